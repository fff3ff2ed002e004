package hbl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParamsSet(t *testing.T) {
	params := DefaultParams()
	for _, kv := range [][2]string{
		{"objective", "multi:softmax"},
		{"num_class", "4"},
		{"max_depth", "3"},
		{"learning_rate", "0.1"},
		{"max_bin", "16"},
		{"min_split_loss", "0.5"},
		{"reg_lambda", "2"},
		{"min_child_weight", "0"},
		{"nthread", "1"},
		{"device", "cpu"},
		{"booster", "gbtree"},
		{"seed", "42"},
		{"eval_metric", "merror"},
	} {
		require.NoError(t, params.Set(kv[0], kv[1]), "%s=%s", kv[0], kv[1])
	}

	assert.Equal(t, SoftmaxObjective, params.Objective)
	assert.Equal(t, 4, params.NumClass)
	assert.Equal(t, 3, params.MaxDepth)
	assert.Equal(t, 0.1, params.Eta)
	assert.Equal(t, 16, params.MaxBin)
	assert.Equal(t, 0.5, params.Gamma)
	assert.Equal(t, 2.0, params.Lambda)
	assert.Equal(t, 0.0, params.MinChildWeight)
	assert.Equal(t, 1, params.NThread)
	assert.Equal(t, "merror", params.EvalMetric)
	assert.Equal(t, 4, params.NumGroups())
	require.NoError(t, params.Validate())

	require.NoError(t, params.Set("objective", "reg:linear"))
	assert.Equal(t, SquaredErrorObjective, params.Objective)

	require.NoError(t, params.Set("nthread", "0"))
	assert.Equal(t, DefaultThreadsNum(), params.NThread)
}

func TestParamsSetErrors(t *testing.T) {
	params := DefaultParams()
	for _, kv := range [][2]string{
		{"max_depth", "three"},
		{"eta", ""},
		{"colsample_bytree", "0.5"},
		{"device", "cuda"},
		{"booster", "dart"},
	} {
		assert.ErrorIs(t, params.Set(kv[0], kv[1]), ErrInvalidConfig, "%s=%s", kv[0], kv[1])
	}
}

func TestParamsValidate(t *testing.T) {
	require.NoError(t, DefaultParams().Validate())

	for name, mutate := range map[string]func(*Params){
		"zero depth":          func(p *Params) { p.MaxDepth = 0 },
		"zero eta":            func(p *Params) { p.Eta = 0 },
		"eta above one":       func(p *Params) { p.Eta = 1.5 },
		"negative gamma":      func(p *Params) { p.Gamma = -1 },
		"negative lambda":     func(p *Params) { p.Lambda = -1 },
		"one bin":             func(p *Params) { p.MaxBin = 1 },
		"negative child":      func(p *Params) { p.MinChildWeight = -1 },
		"softmax one class":   func(p *Params) { p.Objective = SoftmaxObjective; p.NumClass = 1 },
		"regression classes":  func(p *Params) { p.NumClass = 3 },
		"unknown objective":   func(p *Params) { p.Objective = "binary:hinge" },
		"mismatched metric":   func(p *Params) { p.EvalMetric = "mlogloss" },
	} {
		params := DefaultParams()
		mutate(&params)
		assert.ErrorIs(t, params.Validate(), ErrInvalidConfig, name)
	}
}
