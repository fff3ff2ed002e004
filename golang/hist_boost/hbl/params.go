package hbl

import (
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/cpu"
)

//ObjectiveKind names a learning objective in the XGBoost spelling.
type ObjectiveKind string

const (
	SquaredErrorObjective ObjectiveKind = "reg:squarederror"
	SoftmaxObjective      ObjectiveKind = "multi:softmax"
	SoftprobObjective     ObjectiveKind = "multi:softprob"
)

//Params collects hyperparameters required to construct a booster.
type Params struct {
	Objective      ObjectiveKind `json:"objective" mapstructure:"objective"`
	NumClass       int           `json:"num_class" mapstructure:"num_class"`
	MaxDepth       int           `json:"max_depth" mapstructure:"max_depth"`
	Eta            float64       `json:"eta" mapstructure:"eta"`
	Gamma          float64       `json:"gamma" mapstructure:"gamma"`
	Lambda         float64       `json:"lambda" mapstructure:"lambda"`
	MaxBin         int           `json:"max_bin" mapstructure:"max_bin"`
	MinChildWeight float64       `json:"min_child_weight" mapstructure:"min_child_weight"`
	BaseScore      float64       `json:"base_score" mapstructure:"base_score"`
	NThread        int           `json:"nthread" mapstructure:"nthread"`
	EvalMetric     string        `json:"eval_metric" mapstructure:"eval_metric"`
}

//DefaultParams returns parameters with the library defaults.
func DefaultParams() Params {
	return Params{
		Objective:      SquaredErrorObjective,
		NumClass:       1,
		MaxDepth:       6,
		Eta:            0.3,
		Gamma:          0,
		Lambda:         1,
		MaxBin:         256,
		MinChildWeight: 1,
		BaseScore:      0.5,
		NThread:        DefaultThreadsNum(),
	}
}

//DefaultThreadsNum returns the number of physical cores, or the logical CPU count
//when the physical count cannot be read.
func DefaultThreadsNum() int {
	n, err := cpu.Counts(false)
	if err != nil || n < 1 {
		return runtime.NumCPU()
	}
	return n
}

//IsSoftmax reports whether the objective is one of the multi-class softmax variants.
func (p Params) IsSoftmax() bool {
	return p.Objective == SoftmaxObjective || p.Objective == SoftprobObjective
}

//NumGroups returns the number of trees grown per boosting round.
func (p Params) NumGroups() int {
	if p.IsSoftmax() {
		return p.NumClass
	}
	return 1
}

//Validate checks hyperparameter ranges.
func (p Params) Validate() error {
	switch p.Objective {
	case SquaredErrorObjective:
		if p.NumClass != 1 {
			return errors.Wrapf(ErrInvalidConfig, "num_class must be 1 for %s, got %d", p.Objective, p.NumClass)
		}
	case SoftmaxObjective, SoftprobObjective:
		if p.NumClass < 2 {
			return errors.Wrapf(ErrInvalidConfig, "num_class must be at least 2 for %s, got %d", p.Objective, p.NumClass)
		}
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown objective %q", p.Objective)
	}
	if p.MaxDepth < 1 {
		return errors.Wrapf(ErrInvalidConfig, "max_depth must be positive, got %d", p.MaxDepth)
	}
	if !(p.Eta > 0 && p.Eta <= 1) {
		return errors.Wrapf(ErrInvalidConfig, "eta must be in (0, 1], got %g", p.Eta)
	}
	if p.Gamma < 0 {
		return errors.Wrapf(ErrInvalidConfig, "gamma must be non-negative, got %g", p.Gamma)
	}
	if p.Lambda < 0 {
		return errors.Wrapf(ErrInvalidConfig, "lambda must be non-negative, got %g", p.Lambda)
	}
	if p.MaxBin < 2 {
		return errors.Wrapf(ErrInvalidConfig, "max_bin must be at least 2, got %d", p.MaxBin)
	}
	if p.MinChildWeight < 0 {
		return errors.Wrapf(ErrInvalidConfig, "min_child_weight must be non-negative, got %g", p.MinChildWeight)
	}
	if p.EvalMetric != "" {
		if _, err := NewMetric(p.EvalMetric, p.Objective); err != nil {
			return err
		}
	}
	return nil
}

//Set assigns one parameter from its string form. Keys follow the XGBoost names and aliases.
func (p *Params) Set(key, value string) error {
	value = strings.TrimSpace(value)
	var err error
	switch strings.TrimSpace(key) {
	case "objective":
		if value == "reg:linear" {
			value = string(SquaredErrorObjective)
		}
		p.Objective = ObjectiveKind(value)
	case "num_class":
		p.NumClass, err = strconv.Atoi(value)
	case "max_depth":
		p.MaxDepth, err = strconv.Atoi(value)
	case "eta", "learning_rate":
		p.Eta, err = strconv.ParseFloat(value, 64)
	case "gamma", "min_split_loss":
		p.Gamma, err = strconv.ParseFloat(value, 64)
	case "lambda", "reg_lambda":
		p.Lambda, err = strconv.ParseFloat(value, 64)
	case "max_bin":
		p.MaxBin, err = strconv.Atoi(value)
	case "min_child_weight":
		p.MinChildWeight, err = strconv.ParseFloat(value, 64)
	case "base_score":
		p.BaseScore, err = strconv.ParseFloat(value, 64)
	case "nthread", "n_jobs":
		p.NThread, err = strconv.Atoi(value)
		if err == nil && p.NThread <= 0 {
			p.NThread = DefaultThreadsNum()
		}
	case "eval_metric":
		p.EvalMetric = value
	case "device":
		if value != "cpu" {
			return errors.Wrapf(ErrInvalidConfig, "unsupported device %q", value)
		}
	case "booster":
		if value != "gbtree" {
			return errors.Wrapf(ErrInvalidConfig, "unsupported booster %q", value)
		}
	case "seed", "random_state", "verbosity", "silent", "tree_method":
		// accepted for compatibility, no effect
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown parameter %q", key)
	}
	if err != nil {
		return errors.Wrapf(ErrInvalidConfig, "parameter %s=%q: %v", key, value, err)
	}
	return nil
}

//treeParams extracts the per-tree growth parameters.
func (p Params) treeParams() TreeParams {
	return TreeParams{
		MaxDepth:       p.MaxDepth,
		Lambda:         p.Lambda,
		Gamma:          p.Gamma,
		MinChildWeight: p.MinChildWeight,
		ThreadsNum:     p.NThread,
	}
}
