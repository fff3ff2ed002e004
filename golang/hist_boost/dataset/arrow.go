package dataset

import (
	"math"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/pkg/errors"

	"github.com/tarstars/hist_boosting/golang/hist_boost/hbl"
)

//ReadArrowFile loads every record batch of an Arrow IPC file. labelColumn is -1 when
//the file has no label column.
func ReadArrowFile(fileName string, labelColumn int, missing float64) (*hbl.DMatrix, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", fileName)
	}
	defer reader.Close()

	records := make([]arrow.Record, 0, reader.NumRecords())
	for ind := 0; ind < reader.NumRecords(); ind++ {
		rec, err := reader.Record(ind)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s batch %d", fileName, ind)
		}
		// the reader reuses a batch on the next call
		rec.Retain()
		defer rec.Release()
		records = append(records, rec)
	}
	return FromArrowRecords(records, labelColumn, missing)
}

//FromArrowRecord converts one record batch of numeric columns. Null cells are missing.
func FromArrowRecord(rec arrow.Record, labelColumn int, missing float64) (*hbl.DMatrix, error) {
	return FromArrowRecords([]arrow.Record{rec}, labelColumn, missing)
}

//FromArrowRecords converts record batches sharing one schema into a single matrix.
func FromArrowRecords(records []arrow.Record, labelColumn int, missing float64) (*hbl.DMatrix, error) {
	if len(records) == 0 {
		return nil, errors.Wrap(hbl.ErrEmptyInput, "no record batches")
	}
	numCols := int(records[0].NumCols())
	if labelColumn >= numCols {
		return nil, errors.Wrapf(hbl.ErrOutOfRange, "label column %d of %d", labelColumn, numCols)
	}
	rows := 0
	for _, rec := range records {
		if int(rec.NumCols()) != numCols {
			return nil, errors.Wrapf(hbl.ErrInvalidConfig, "record batch has %d columns, expected %d", rec.NumCols(), numCols)
		}
		rows += int(rec.NumRows())
	}

	width := numCols
	if labelColumn >= 0 {
		width--
	}
	if rows == 0 || width == 0 {
		return nil, errors.Wrapf(hbl.ErrEmptyInput, "arrow data has %d rows and %d feature columns", rows, width)
	}

	// arrow keeps columns contiguous, so the column-major buffer is filled column by column
	data := make([]float64, 0, rows*width)
	var labels []float64
	for q := 0; q < numCols; q++ {
		column := make([]float64, 0, rows)
		for _, rec := range records {
			values, err := columnValues(rec.Column(q))
			if err != nil {
				return nil, errors.Wrapf(err, "column %s", rec.ColumnName(q))
			}
			column = append(column, values...)
		}
		if q == labelColumn {
			labels = column
		} else {
			data = append(data, column...)
		}
	}

	m, err := hbl.NewDMatrixFromColMajor(data, rows, width, missing)
	if err != nil {
		return nil, err
	}
	if labels != nil {
		return m.WithLabels(labels)
	}
	return m, nil
}

func columnValues(column arrow.Array) ([]float64, error) {
	values := make([]float64, column.Len())
	for p := range values {
		if column.IsNull(p) {
			values[p] = math.NaN()
			continue
		}
		switch typed := column.(type) {
		case *array.Float64:
			values[p] = typed.Value(p)
		case *array.Float32:
			values[p] = float64(typed.Value(p))
		case *array.Int64:
			values[p] = float64(typed.Value(p))
		case *array.Int32:
			values[p] = float64(typed.Value(p))
		case *array.Int16:
			values[p] = float64(typed.Value(p))
		case *array.Int8:
			values[p] = float64(typed.Value(p))
		case *array.Uint8:
			values[p] = float64(typed.Value(p))
		case *array.Boolean:
			if typed.Value(p) {
				values[p] = 1
			}
		default:
			return nil, errors.Wrapf(hbl.ErrInvalidConfig, "unsupported arrow type %s", column.DataType())
		}
	}
	return values, nil
}
