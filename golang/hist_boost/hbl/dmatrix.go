package hbl

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

//DMatrix contains training features in column-major order plus optional labels and weights.
//The feature grid is stored as a numCols x numRows dense matrix, so every raw row of the
//storage is one feature column. Missing values are stored as NaN. A DMatrix is never
//modified after construction and may be shared by concurrent readers.
type DMatrix struct {
	columns *mat.Dense
	labels  *mat.VecDense
	weights *mat.VecDense
	rows    int
	cols    int
}

//NewDMatrixFromColMajor builds a matrix from a column-major buffer: element (r, c) is
//data[r + c*rows]. Values equal to missing, and NaNs, are treated as missing.
func NewDMatrixFromColMajor(data []float64, rows, cols int, missing float64) (*DMatrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, errors.Wrapf(ErrEmptyInput, "matrix dimensions %dx%d", rows, cols)
	}
	if len(data) != rows*cols {
		return nil, errors.Wrapf(ErrInvalidConfig, "buffer length %d does not match %dx%d", len(data), rows, cols)
	}
	storage := make([]float64, len(data))
	for i, v := range data {
		storage[i] = normalizeMissing(v, missing)
	}
	return &DMatrix{columns: mat.NewDense(cols, rows, storage), rows: rows, cols: cols}, nil
}

//NewDMatrixFromDense builds a matrix from a row-major gonum matrix.
func NewDMatrixFromDense(m mat.Matrix, missing float64) (*DMatrix, error) {
	rows, cols := m.Dims()
	if rows <= 0 || cols <= 0 {
		return nil, errors.Wrapf(ErrEmptyInput, "matrix dimensions %dx%d", rows, cols)
	}
	columns := mat.NewDense(cols, rows, nil)
	for q := 0; q < cols; q++ {
		for p := 0; p < rows; p++ {
			columns.Set(q, p, normalizeMissing(m.At(p, q), missing))
		}
	}
	return &DMatrix{columns: columns, rows: rows, cols: cols}, nil
}

func normalizeMissing(v, missing float64) float64 {
	if v == missing {
		return math.NaN()
	}
	return v
}

//WithLabels returns a copy of the matrix carrying the given labels.
func (m *DMatrix) WithLabels(labels []float64) (*DMatrix, error) {
	if len(labels) != m.rows {
		return nil, errors.Wrapf(ErrInvalidConfig, "got %d labels for %d rows", len(labels), m.rows)
	}
	for p, v := range labels {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.Wrapf(ErrInvalidConfig, "label of row %d is %g", p, v)
		}
	}
	out := *m
	out.labels = mat.NewVecDense(m.rows, append([]float64(nil), labels...))
	return &out, nil
}

//WithWeights returns a copy of the matrix carrying the given row weights.
func (m *DMatrix) WithWeights(weights []float64) (*DMatrix, error) {
	if len(weights) != m.rows {
		return nil, errors.Wrapf(ErrInvalidConfig, "got %d weights for %d rows", len(weights), m.rows)
	}
	for p, v := range weights {
		if !(v >= 0) || math.IsInf(v, 0) {
			return nil, errors.Wrapf(ErrInvalidConfig, "weight of row %d is %g", p, v)
		}
	}
	out := *m
	out.weights = mat.NewVecDense(m.rows, append([]float64(nil), weights...))
	return &out, nil
}

//NumRows returns the number of rows.
func (m *DMatrix) NumRows() int {
	return m.rows
}

//NumCols returns the number of feature columns.
func (m *DMatrix) NumCols() int {
	return m.cols
}

//HasLabels reports whether labels were supplied.
func (m *DMatrix) HasLabels() bool {
	return m.labels != nil
}

//ValueAt returns the feature value at (row, col); NaN means missing.
func (m *DMatrix) ValueAt(row, col int) (float64, error) {
	if row < 0 || row >= m.rows || col < 0 || col >= m.cols {
		return 0, errors.Wrapf(ErrOutOfRange, "cell (%d, %d) of a %dx%d matrix", row, col, m.rows, m.cols)
	}
	return m.columns.At(col, row), nil
}

//LabelAt returns the label of a row.
func (m *DMatrix) LabelAt(row int) (float64, error) {
	if m.labels == nil {
		return 0, errors.Wrap(ErrMissingLabel, "matrix has no labels")
	}
	if row < 0 || row >= m.rows {
		return 0, errors.Wrapf(ErrOutOfRange, "row %d of %d", row, m.rows)
	}
	return m.labels.AtVec(row), nil
}

//WeightAt returns the weight of a row, 1 when no weights were supplied.
func (m *DMatrix) WeightAt(row int) float64 {
	if m.weights == nil {
		return 1
	}
	return m.weights.AtVec(row)
}

//Row returns a copy of one row of features.
func (m *DMatrix) Row(row int) ([]float64, error) {
	if row < 0 || row >= m.rows {
		return nil, errors.Wrapf(ErrOutOfRange, "row %d of %d", row, m.rows)
	}
	out := make([]float64, m.cols)
	for q := range out {
		out[q] = m.columns.At(q, row)
	}
	return out, nil
}

//RowsView returns a restartable view over the given ordered subset of rows.
func (m *DMatrix) RowsView(subset []int) (RowsView, error) {
	for _, p := range subset {
		if p < 0 || p >= m.rows {
			return RowsView{}, errors.Wrapf(ErrOutOfRange, "row %d of %d", p, m.rows)
		}
	}
	return RowsView{rows: append([]int(nil), subset...)}, nil
}

//AllRows returns a view over every row in order.
func (m *DMatrix) AllRows() RowsView {
	return collectRows(NewRange(0, m.rows, 1))
}

//column returns the raw storage of one feature column. Callers must not modify it.
func (m *DMatrix) column(col int) []float64 {
	return m.columns.RawRowView(col)
}

//labelData returns the raw labels or nil. Callers must not modify it.
func (m *DMatrix) labelData() []float64 {
	if m.labels == nil {
		return nil
	}
	return m.labels.RawVector().Data
}

//weightData returns the raw weights or nil when all weights are 1.
func (m *DMatrix) weightData() []float64 {
	if m.weights == nil {
		return nil
	}
	return m.weights.RawVector().Data
}
