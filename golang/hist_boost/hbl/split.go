package hbl

import (
	"math"

	"go.uber.org/zap"
)

//TreeParams collects the arguments of tree growth.
type TreeParams struct {
	MaxDepth       int
	Lambda         float64
	Gamma          float64
	MinChildWeight float64
	ThreadsNum     int
	Logger         *zap.Logger
}

//BestSplit contains results of the split selection algorithm.
type BestSplit struct {
	FeatureIndex int
	BinIndex     int
	Threshold    float64
	Gain         float64
	DefaultLeft  bool
	Left, Right  HistogramBin
	Valid        bool
}

//CalcWeight returns the Newton step -G/(H+lambda) of a leaf, or 0 when H+lambda is 0.
func CalcWeight(sumGrad, sumHess, lambda float64) float64 {
	if sumHess+lambda <= 0 {
		return 0
	}
	return -sumGrad / (sumHess + lambda)
}

//calcScore returns the structure score G^2/(H+lambda) of a node, or 0 when H+lambda is 0.
func calcScore(sumGrad, sumHess, lambda float64) float64 {
	if sumHess+lambda <= 0 {
		return 0
	}
	return sumGrad * sumGrad / (sumHess + lambda)
}

//SplitGain returns 0.5*(score(L) + score(R) - score(L+R)) - gamma.
func SplitGain(left, right HistogramBin, lambda, gamma float64) float64 {
	total := left
	total.Add(right)
	return 0.5*(calcScore(left.SumGrad, left.SumHess, lambda)+
		calcScore(right.SumGrad, right.SumHess, lambda)-
		calcScore(total.SumGrad, total.SumHess, lambda)) - gamma
}

//acceptable checks that both children are non-empty and heavy enough.
func (params TreeParams) acceptable(left, right HistogramBin) bool {
	return left.Count > 0 && right.Count > 0 &&
		left.SumHess >= params.MinChildWeight && right.SumHess >= params.MinChildWeight
}

//FindBestSplit scans the bins of a histogram left to right and returns the split with the
//highest gain. Every position is tried with the missing rows on the left and on the right;
//on equal gain the lower bin wins, and for one bin the left direction wins.
//The returned split is not Valid when no position is acceptable.
func (hist Histogram) FindBestSplit(cuts *QuantileCuts, params TreeParams) (bestSplit BestSplit) {
	bestSplit.FeatureIndex = hist.Feature
	bestSplit.BinIndex = -1

	var present HistogramBin
	for _, bin := range hist.Bins {
		present.Add(bin)
	}

	var prefix HistogramBin
	for b := 0; b+1 < len(hist.Bins); b++ {
		prefix.Add(hist.Bins[b])
		suffix := present.Sub(prefix)

		for _, defaultLeft := range []bool{true, false} {
			left, right := prefix, suffix
			if defaultLeft {
				left.Add(hist.Missing)
			} else {
				right.Add(hist.Missing)
			}
			if !params.acceptable(left, right) {
				continue
			}
			gain := SplitGain(left, right, params.Lambda, params.Gamma)
			if math.IsNaN(gain) {
				continue
			}
			if !bestSplit.Valid || gain > bestSplit.Gain {
				bestSplit.Valid = true
				bestSplit.Gain = gain
				bestSplit.BinIndex = b
				bestSplit.Threshold = cuts.Threshold(hist.Feature, b)
				bestSplit.DefaultLeft = defaultLeft
				bestSplit.Left = left
				bestSplit.Right = right
			}
		}
	}
	return
}

//betterSplit returns the candidate with the higher gain; a tie keeps the current one,
//so scanning features in index order prefers the lowest feature index.
func betterSplit(current, candidate BestSplit) BestSplit {
	if !candidate.Valid {
		return current
	}
	if !current.Valid || candidate.Gain > current.Gain {
		return candidate
	}
	return current
}
