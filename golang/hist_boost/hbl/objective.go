package hbl

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

//minHessian keeps softmax hessians strictly positive when a probability saturates.
const minHessian = 1e-16

//Objective converts raw scores into gradient pairs and into final predictions.
type Objective interface {
	Name() ObjectiveKind
	//NumGroups is the number of raw scores (and trees per round) for each row.
	NumGroups() int
	DefaultMetric() string
	//ValidateLabels rejects labels the loss is not defined for.
	ValidateLabels(labels []float64) error
	//ComputeGradients fills out with one pair per row and group.
	ComputeGradients(preds *PredictionBuffer, labels, weights []float64, out *GradientBuffer) error
	//FinalizePrediction maps the raw scores of one row into the user-facing output.
	FinalizePrediction(raw []float64) []float64
	//OutputSize is the length of the slice returned by FinalizePrediction.
	OutputSize() int
}

//NewObjective creates the objective selected by the parameters.
func NewObjective(params Params) (Objective, error) {
	switch params.Objective {
	case SquaredErrorObjective:
		return SquaredError{}, nil
	case SoftmaxObjective, SoftprobObjective:
		if params.NumClass < 2 {
			return nil, errors.Wrapf(ErrInvalidConfig, "softmax needs num_class >= 2, got %d", params.NumClass)
		}
		return Softmax{NumClass: params.NumClass, OutputProb: params.Objective == SoftprobObjective}, nil
	}
	return nil, errors.Wrapf(ErrInvalidConfig, "unknown objective %q", params.Objective)
}

func checkGradientShapes(preds *PredictionBuffer, labels []float64, out *GradientBuffer, groups int) error {
	rows := preds.NumRows()
	if len(labels) != rows {
		return errors.Wrapf(ErrInvalidConfig, "got %d labels for %d predictions", len(labels), rows)
	}
	if preds.NumGroups() != groups {
		return errors.Wrapf(ErrInvalidConfig, "predictions have %d groups, objective needs %d", preds.NumGroups(), groups)
	}
	if out.rows != rows || out.groups != groups {
		return errors.Wrapf(ErrInvalidConfig, "gradient buffer shape %v does not match %d x %d", out.Shape(), rows, groups)
	}
	return nil
}

func rowWeight(weights []float64, row int) float64 {
	if weights == nil {
		return 1
	}
	return weights[row]
}

//SquaredError is the regression loss 0.5*(pred-label)^2.
type SquaredError struct{}

func (SquaredError) Name() ObjectiveKind {
	return SquaredErrorObjective
}

func (SquaredError) NumGroups() int {
	return 1
}

func (SquaredError) DefaultMetric() string {
	return "rmse"
}

func (SquaredError) ValidateLabels(labels []float64) error {
	for p, label := range labels {
		if math.IsNaN(label) || math.IsInf(label, 0) {
			return errors.Wrapf(ErrInvalidConfig, "label of row %d is %g", p, label)
		}
	}
	return nil
}

func (obj SquaredError) ComputeGradients(preds *PredictionBuffer, labels, weights []float64, out *GradientBuffer) error {
	if err := checkGradientShapes(preds, labels, out, 1); err != nil {
		return err
	}
	for p, label := range labels {
		w := rowWeight(weights, p)
		out.Set(p, 0, GradientPair{Grad: (preds.At(p, 0) - label) * w, Hess: w})
	}
	return nil
}

func (SquaredError) FinalizePrediction(raw []float64) []float64 {
	return []float64{raw[0]}
}

func (SquaredError) OutputSize() int {
	return 1
}

//Softmax is the multi-class cross entropy over NumClass raw scores.
//With OutputProb the finalized prediction is the probability vector, otherwise the argmax class.
type Softmax struct {
	NumClass   int
	OutputProb bool
}

func (obj Softmax) Name() ObjectiveKind {
	if obj.OutputProb {
		return SoftprobObjective
	}
	return SoftmaxObjective
}

func (obj Softmax) NumGroups() int {
	return obj.NumClass
}

func (Softmax) DefaultMetric() string {
	return "mlogloss"
}

func (obj Softmax) ValidateLabels(labels []float64) error {
	for p, label := range labels {
		if _, err := obj.classOf(label); err != nil {
			return errors.Wrapf(err, "row %d", p)
		}
	}
	return nil
}

func (obj Softmax) classOf(label float64) (int, error) {
	if math.IsNaN(label) || label < 0 || label >= float64(obj.NumClass) || label != math.Trunc(label) {
		return 0, errors.Wrapf(ErrInvalidConfig, "label %g is not a class in [0, %d)", label, obj.NumClass)
	}
	return int(label), nil
}

func (obj Softmax) ComputeGradients(preds *PredictionBuffer, labels, weights []float64, out *GradientBuffer) error {
	if err := checkGradientShapes(preds, labels, out, obj.NumClass); err != nil {
		return err
	}
	prob := make([]float64, obj.NumClass)
	for p, label := range labels {
		class, err := obj.classOf(label)
		if err != nil {
			return errors.Wrapf(err, "row %d", p)
		}
		w := rowWeight(weights, p)
		SoftmaxProbabilities(preds.Row(p), prob)
		for c, pc := range prob {
			grad := pc
			if c == class {
				grad -= 1
			}
			hess := math.Max(pc*(1-pc), minHessian)
			out.Set(p, c, GradientPair{Grad: grad * w, Hess: hess * w})
		}
	}
	return nil
}

func (obj Softmax) FinalizePrediction(raw []float64) []float64 {
	prob := make([]float64, len(raw))
	SoftmaxProbabilities(raw, prob)
	if obj.OutputProb {
		return prob
	}
	return []float64{float64(floats.MaxIdx(prob))}
}

func (obj Softmax) OutputSize() int {
	if obj.OutputProb {
		return obj.NumClass
	}
	return 1
}

//SoftmaxProbabilities writes the numerically stable softmax of raw into dst.
func SoftmaxProbabilities(raw, dst []float64) {
	maxScore := floats.Max(raw)
	for c, score := range raw {
		dst[c] = math.Exp(score - maxScore)
	}
	floats.Scale(1/floats.Sum(dst), dst)
}
