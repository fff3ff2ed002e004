package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/tarstars/hist_boosting/golang/hist_boost/hbl"
)

//CSVOptions describes the layout of a delimited text file.
type CSVOptions struct {
	//LabelColumn is the index of the label column, -1 when the file has no labels.
	LabelColumn int
	//HasHeader skips the first row.
	HasHeader bool
	//Missing is the value that marks a missing cell. Empty cells are always missing.
	Missing float64
	//Delimiter defaults to a comma.
	Delimiter rune
}

//DefaultCSVOptions returns the options of a comma separated file with a header and no labels.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{LabelColumn: -1, HasHeader: true, Missing: math.NaN(), Delimiter: ','}
}

//ReadCSV loads a delimited text file of numeric columns.
func ReadCSV(fileName string, opts CSVOptions) (*hbl.DMatrix, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := ReadCSVFrom(f, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", fileName)
	}
	return m, nil
}

//ReadCSVFrom loads delimited numeric columns from r.
func ReadCSVFrom(r io.Reader, opts CSVOptions) (*hbl.DMatrix, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	var columns [][]float64
	var labels []float64
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(hbl.ErrInvalidConfig, "csv: %v", err)
		}
		line++
		if line == 1 && opts.HasHeader {
			continue
		}
		if columns == nil {
			if opts.LabelColumn >= len(record) {
				return nil, errors.Wrapf(hbl.ErrOutOfRange, "label column %d of %d", opts.LabelColumn, len(record))
			}
			width := len(record)
			if opts.LabelColumn >= 0 {
				width--
			}
			columns = make([][]float64, width)
		}

		q := 0
		for ind, field := range record {
			value, err := parseCell(field)
			if err != nil {
				return nil, errors.Wrapf(hbl.ErrInvalidConfig, "line %d column %d: %v", line, ind, err)
			}
			if ind == opts.LabelColumn {
				labels = append(labels, value)
				continue
			}
			columns[q] = append(columns[q], value)
			q++
		}
	}
	if len(columns) == 0 || len(columns[0]) == 0 {
		return nil, errors.Wrap(hbl.ErrEmptyInput, "csv has no data rows")
	}

	rows := len(columns[0])
	data := make([]float64, 0, rows*len(columns))
	for _, column := range columns {
		data = append(data, column...)
	}
	m, err := hbl.NewDMatrixFromColMajor(data, rows, len(columns), opts.Missing)
	if err != nil {
		return nil, err
	}
	if labels != nil {
		return m.WithLabels(labels)
	}
	return m, nil
}

func parseCell(field string) (float64, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(field, 64)
}
