package hbl

import (
	"github.com/pkg/errors"
)

//HistogramBin aggregates the gradient statistics of the rows falling into one bin.
type HistogramBin struct {
	SumGrad float64
	SumHess float64
	Count   int
}

//Add accumulates another bin into the receiver.
func (bin *HistogramBin) Add(other HistogramBin) {
	bin.SumGrad += other.SumGrad
	bin.SumHess += other.SumHess
	bin.Count += other.Count
}

//Sub returns the difference of two bins.
func (bin HistogramBin) Sub(other HistogramBin) HistogramBin {
	return HistogramBin{
		SumGrad: bin.SumGrad - other.SumGrad,
		SumHess: bin.SumHess - other.SumHess,
		Count:   bin.Count - other.Count,
	}
}

func (bin *HistogramBin) addPair(pair GradientPair) {
	bin.SumGrad += pair.Grad
	bin.SumHess += pair.Hess
	bin.Count++
}

//Histogram is the per-bin statistics of one feature over one row subset.
//Rows whose value is missing are collected in Missing and in no regular bin.
type Histogram struct {
	Feature int
	Bins    []HistogramBin
	Missing HistogramBin
}

//NewHistogram allocates an empty histogram.
func NewHistogram(feature, numBins int) Histogram {
	return Histogram{Feature: feature, Bins: make([]HistogramBin, numBins)}
}

//BuildHistogram accumulates the gradient pairs of the given rows into the bins of a feature.
func BuildHistogram(binned *BinnedMatrix, feature int, rows RowIterable, grads []GradientPair) Histogram {
	hist := NewHistogram(feature, binned.Cuts().NumBins(feature))
	column := binned.bins[feature]
	for rows.HasNext() {
		p := rows.GetNext()
		bin := column[p]
		if bin == missingBin {
			hist.Missing.addPair(grads[p])
		} else {
			hist.Bins[bin].addPair(grads[p])
		}
	}
	return hist
}

//Merge adds the statistics of another histogram of the same feature.
func (hist *Histogram) Merge(other Histogram) error {
	if hist.Feature != other.Feature || len(hist.Bins) != len(other.Bins) {
		return errors.Wrapf(ErrInvalidConfig, "merge histogram of feature %d (%d bins) into feature %d (%d bins)",
			other.Feature, len(other.Bins), hist.Feature, len(hist.Bins))
	}
	for b := range hist.Bins {
		hist.Bins[b].Add(other.Bins[b])
	}
	hist.Missing.Add(other.Missing)
	return nil
}

//Total returns the statistics of all rows, missing ones included.
func (hist Histogram) Total() HistogramBin {
	total := hist.Missing
	for _, bin := range hist.Bins {
		total.Add(bin)
	}
	return total
}

//Count returns the number of rows accumulated in the histogram.
func (hist Histogram) Count() int {
	return hist.Total().Count
}
