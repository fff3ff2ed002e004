package hbl

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

//probabilityFloor keeps the log loss finite when a true class gets zero probability.
const probabilityFloor = 1e-15

//Metric scores raw predictions against labels.
type Metric interface {
	Name() string
	Evaluate(preds *PredictionBuffer, labels, weights []float64) (float64, error)
}

//NewMetric creates a metric by name. An empty name selects the default metric of the objective.
func NewMetric(name string, objective ObjectiveKind) (Metric, error) {
	softmax := objective == SoftmaxObjective || objective == SoftprobObjective
	if name == "" {
		if softmax {
			name = "mlogloss"
		} else {
			name = "rmse"
		}
	}
	var metric Metric
	switch name {
	case "rmse":
		metric = RMSE{}
	case "mae":
		metric = MAE{}
	case "mlogloss":
		metric = MultiLogLoss{}
	case "merror":
		metric = MultiError{}
	default:
		return nil, errors.Wrapf(ErrInvalidConfig, "unknown eval_metric %q", name)
	}
	_, multiclass := metric.(multiclassMetric)
	if multiclass != softmax {
		return nil, errors.Wrapf(ErrInvalidConfig, "eval_metric %q does not apply to objective %q", name, objective)
	}
	return metric, nil
}

type multiclassMetric interface {
	multiclass()
}

func checkMetricInput(preds *PredictionBuffer, labels, weights []float64) error {
	if len(labels) == 0 || preds.NumRows() == 0 {
		return errors.Wrap(ErrEmptyInput, "evaluate zero rows")
	}
	if preds.NumRows() != len(labels) {
		return errors.Wrapf(ErrInvalidConfig, "got %d labels for %d predictions", len(labels), preds.NumRows())
	}
	if weights != nil && len(weights) != len(labels) {
		return errors.Wrapf(ErrInvalidConfig, "got %d weights for %d labels", len(weights), len(labels))
	}
	if weights != nil && floats.Sum(weights) == 0 {
		return errors.Wrap(ErrEmptyInput, "every row has zero weight")
	}
	return nil
}

//RMSE is the root of the weighted mean squared error.
type RMSE struct{}

func (RMSE) Name() string {
	return "rmse"
}

func (RMSE) Evaluate(preds *PredictionBuffer, labels, weights []float64) (float64, error) {
	if err := checkMetricInput(preds, labels, weights); err != nil {
		return 0, err
	}
	residuals := make([]float64, len(labels))
	for p, label := range labels {
		d := preds.At(p, 0) - label
		residuals[p] = d * d
	}
	return math.Sqrt(stat.Mean(residuals, weights)), nil
}

//MAE is the weighted mean absolute error.
type MAE struct{}

func (MAE) Name() string {
	return "mae"
}

func (MAE) Evaluate(preds *PredictionBuffer, labels, weights []float64) (float64, error) {
	if err := checkMetricInput(preds, labels, weights); err != nil {
		return 0, err
	}
	residuals := make([]float64, len(labels))
	for p, label := range labels {
		residuals[p] = math.Abs(preds.At(p, 0) - label)
	}
	return stat.Mean(residuals, weights), nil
}

//MultiLogLoss is the weighted mean of -log(probability of the true class).
type MultiLogLoss struct{}

func (MultiLogLoss) multiclass() {}

func (MultiLogLoss) Name() string {
	return "mlogloss"
}

func (MultiLogLoss) Evaluate(preds *PredictionBuffer, labels, weights []float64) (float64, error) {
	if err := checkMetricInput(preds, labels, weights); err != nil {
		return 0, err
	}
	prob := make([]float64, preds.NumGroups())
	losses := make([]float64, len(labels))
	for p, label := range labels {
		class, err := metricClass(label, preds.NumGroups())
		if err != nil {
			return 0, errors.Wrapf(err, "row %d", p)
		}
		SoftmaxProbabilities(preds.Row(p), prob)
		losses[p] = -math.Log(math.Max(prob[class], probabilityFloor))
	}
	return stat.Mean(losses, weights), nil
}

//MultiError is the weighted share of rows whose argmax class differs from the label.
type MultiError struct{}

func (MultiError) multiclass() {}

func (MultiError) Name() string {
	return "merror"
}

func (MultiError) Evaluate(preds *PredictionBuffer, labels, weights []float64) (float64, error) {
	if err := checkMetricInput(preds, labels, weights); err != nil {
		return 0, err
	}
	wrong := make([]float64, len(labels))
	for p, label := range labels {
		class, err := metricClass(label, preds.NumGroups())
		if err != nil {
			return 0, errors.Wrapf(err, "row %d", p)
		}
		if floats.MaxIdx(preds.Row(p)) != class {
			wrong[p] = 1
		}
	}
	return stat.Mean(wrong, weights), nil
}

func metricClass(label float64, numClass int) (int, error) {
	return Softmax{NumClass: numClass}.classOf(label)
}
