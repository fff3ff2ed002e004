package hbl

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

//QuantileCuts holds per-feature bin boundaries. Cuts[f] is ascending; bin b of feature f
//holds the values v with Cuts[f][b-1] < v <= Cuts[f][b]. Values above the last cut fall
//into the last bin. A feature without any observed value has no bins.
type QuantileCuts struct {
	Cuts [][]float64 `json:"cuts"`
}

//NewQuantileCuts computes the bin boundaries of every feature of the matrix.
//Features with at most maxBin distinct values get one bin per distinct value,
//the others get empirical quantiles at k/maxBin.
func NewQuantileCuts(m *DMatrix, maxBin int, threadsNum int) (*QuantileCuts, error) {
	if maxBin < 2 {
		return nil, errors.Wrapf(ErrInvalidConfig, "max_bin must be at least 2, got %d", maxBin)
	}
	qc := &QuantileCuts{Cuts: make([][]float64, m.NumCols())}

	pool := NewPool(threadsNum)
	for q := 0; q < m.NumCols(); q++ {
		feature := q
		pool.AddTask(TaskFunc(func() error {
			qc.Cuts[feature] = featureCuts(m.column(feature), maxBin)
			return nil
		}))
	}
	pool.Close()
	if err := pool.WaitAll(); err != nil {
		return nil, err
	}
	return qc, nil
}

func featureCuts(column []float64, maxBin int) []float64 {
	sorted := make([]float64, 0, len(column))
	for _, v := range column {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.Float64s(sorted)

	unique := make([]float64, 0)
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			unique = append(unique, v)
		}
	}
	if len(unique) <= maxBin {
		return unique
	}

	cuts := make([]float64, 0, maxBin)
	for k := 1; k <= maxBin; k++ {
		v := stat.Quantile(float64(k)/float64(maxBin), stat.Empirical, sorted, nil)
		if len(cuts) == 0 || v > cuts[len(cuts)-1] {
			cuts = append(cuts, v)
		}
	}
	if last := sorted[len(sorted)-1]; cuts[len(cuts)-1] < last {
		cuts = append(cuts, last)
	}
	return cuts
}

//NumFeatures returns the number of features covered by the cuts.
func (qc *QuantileCuts) NumFeatures() int {
	return len(qc.Cuts)
}

//NumBins returns the number of bins of a feature.
func (qc *QuantileCuts) NumBins(feature int) int {
	return len(qc.Cuts[feature])
}

//Bin returns the bin of a value. The second result is false for missing values.
func (qc *QuantileCuts) Bin(feature int, value float64) (int, bool) {
	cuts := qc.Cuts[feature]
	if math.IsNaN(value) || len(cuts) == 0 {
		return -1, false
	}
	bin := sort.SearchFloat64s(cuts, value)
	if bin >= len(cuts) {
		bin = len(cuts) - 1
	}
	return bin, true
}

//Threshold returns the upper boundary of a bin; a split after this bin sends
//values <= Threshold to the left child.
func (qc *QuantileCuts) Threshold(feature, bin int) float64 {
	return qc.Cuts[feature][bin]
}

//missingBin marks a missing value in a BinnedMatrix.
const missingBin = -1

//BinnedMatrix caches the bin index of every training cell.
type BinnedMatrix struct {
	matrix *DMatrix
	cuts   *QuantileCuts
	bins   [][]int32 // bins[feature][row]
}

//NewBinnedMatrix quantizes the matrix with the given cuts.
func NewBinnedMatrix(m *DMatrix, cuts *QuantileCuts, threadsNum int) (*BinnedMatrix, error) {
	if cuts.NumFeatures() != m.NumCols() {
		return nil, errors.Wrapf(ErrInvalidConfig, "cuts cover %d features, matrix has %d", cuts.NumFeatures(), m.NumCols())
	}
	bm := &BinnedMatrix{matrix: m, cuts: cuts, bins: make([][]int32, m.NumCols())}

	pool := NewPool(threadsNum)
	for q := 0; q < m.NumCols(); q++ {
		feature := q
		pool.AddTask(TaskFunc(func() error {
			column := m.column(feature)
			binned := make([]int32, len(column))
			for p, v := range column {
				bin, ok := cuts.Bin(feature, v)
				if !ok {
					binned[p] = missingBin
				} else {
					binned[p] = int32(bin)
				}
			}
			bm.bins[feature] = binned
			return nil
		}))
	}
	pool.Close()
	if err := pool.WaitAll(); err != nil {
		return nil, err
	}
	return bm, nil
}

//Matrix returns the quantized matrix.
func (bm *BinnedMatrix) Matrix() *DMatrix {
	return bm.matrix
}

//Cuts returns the cuts used for quantization.
func (bm *BinnedMatrix) Cuts() *QuantileCuts {
	return bm.cuts
}

//NumRows returns the number of rows.
func (bm *BinnedMatrix) NumRows() int {
	return bm.matrix.NumRows()
}

//NumFeatures returns the number of features.
func (bm *BinnedMatrix) NumFeatures() int {
	return len(bm.bins)
}

//BinAt returns the bin of a cell, -1 when it is missing.
func (bm *BinnedMatrix) BinAt(row, feature int) int {
	return int(bm.bins[feature][row])
}
