package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarstars/hist_boosting/golang/hist_boost/hbl"
)

// blockMatrix stores a 256 x 3 column-major matrix with labels (i/64)%4; -1 marks missing.
func blockMatrix(t *testing.T, r *registry) uint64 {
	t.Helper()
	rows, cols := 256, 3
	data := make([]float64, rows*cols)
	labels := make([]float64, rows)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			data[i+j*rows] = float64(i + j)
		}
		labels[i] = float64((i / 64) % 4)
	}
	data[5] = -1
	handle, err := r.matrixFromColMajor(data, rows, cols, -1)
	require.NoError(t, err)
	require.NoError(t, r.setFloatInfo(handle, "label", labels))
	return handle
}

func trainedSession(t *testing.T, r *registry, train uint64, rounds int) uint64 {
	t.Helper()
	handle, err := r.createSession([]uint64{train})
	require.NoError(t, err)
	for _, kv := range [][2]string{
		{"objective", "multi:softmax"},
		{"num_class", "4"},
		{"max_bin", "16"},
		{"max_depth", "3"},
		{"eta", "0.3"},
		{"nthread", "2"},
	} {
		require.NoError(t, r.setParam(handle, kv[0], kv[1]))
	}
	for iter := 0; iter < rounds; iter++ {
		require.NoError(t, r.updateOneIter(handle, iter, train))
	}
	return handle
}

func TestSessionTrainEvalPredict(t *testing.T) {
	r := newRegistry()
	train := blockMatrix(t, r)
	handle := trainedSession(t, r, train, 5)

	result, err := r.evalOneIter(handle, 4, []uint64{train}, []string{"train"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result, "train:mlogloss:"), result)

	_, err = r.evalOneIter(handle, 4, []uint64{train, train}, []string{"train"})
	assert.ErrorIs(t, err, hbl.ErrInvalidConfig)

	n, err := r.numFeature(handle)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	prediction, err := r.predict(handle, train, false, 0)
	require.NoError(t, err)
	require.Len(t, prediction, 256)
	correct := 0
	for i, class := range prediction {
		if class == float64((i/64)%4) {
			correct++
		}
	}
	assert.Greater(t, correct, 230)

	margins, err := r.predict(handle, train, true, 0)
	require.NoError(t, err)
	assert.Len(t, margins, 256*4)
}

func TestSessionRejectsLateParams(t *testing.T) {
	r := newRegistry()
	train := blockMatrix(t, r)
	handle := trainedSession(t, r, train, 1)
	assert.ErrorIs(t, r.setParam(handle, "max_depth", "2"), hbl.ErrInvalidConfig)
}

func TestSessionBeforeTraining(t *testing.T) {
	r := newRegistry()
	train := blockMatrix(t, r)
	handle, err := r.createSession([]uint64{train})
	require.NoError(t, err)

	n, err := r.numFeature(handle)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = r.evalOneIter(handle, 0, []uint64{train}, []string{"train"})
	assert.ErrorIs(t, err, hbl.ErrNotReady)
	_, err = r.predict(handle, train, false, 0)
	assert.ErrorIs(t, err, hbl.ErrNotReady)
	assert.ErrorIs(t, r.saveModel(handle, filepath.Join(t.TempDir(), "m.json")), hbl.ErrNotReady)
	assert.ErrorIs(t, r.setParam(handle, "no_such_param", "1"), hbl.ErrInvalidConfig)
}

func TestSessionSaveLoad(t *testing.T) {
	r := newRegistry()
	train := blockMatrix(t, r)
	handle := trainedSession(t, r, train, 3)
	fileName := filepath.Join(t.TempDir(), "model.json.zst")
	require.NoError(t, r.saveModel(handle, fileName))

	loaded, err := r.loadModel(fileName)
	require.NoError(t, err)
	n, err := r.numFeature(loaded)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	expected, err := r.predict(handle, train, true, 0)
	require.NoError(t, err)
	actual, err := r.predict(loaded, train, true, 0)
	require.NoError(t, err)
	assert.InDeltaSlice(t, expected, actual, 1e-12)
}

func TestHandles(t *testing.T) {
	r := newRegistry()
	train := blockMatrix(t, r)

	assert.ErrorIs(t, r.setFloatInfo(train, "base_margin", []float64{1}), hbl.ErrInvalidConfig)
	assert.ErrorIs(t, r.setFloatInfo(train, "label", []float64{1}), hbl.ErrInvalidConfig)

	_, err := r.createSession([]uint64{train + 100})
	assert.Error(t, err)

	r.freeMatrix(train)
	_, err = r.matrix(train)
	assert.Error(t, err)

	r.setLastError(err)
	assert.Contains(t, r.getLastError(), "invalid matrix handle")
	r.setLastError(nil)
	assert.Empty(t, r.getLastError())
}

func TestFailedFirstUpdateCanBeRetried(t *testing.T) {
	r := newRegistry()
	rows, cols := 256, 3
	data := make([]float64, rows*cols)
	labels := make([]float64, rows)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			data[i+j*rows] = float64(i + j)
		}
		labels[i] = float64(i % 2)
	}
	train, err := r.matrixFromColMajor(data, rows, cols, -1)
	require.NoError(t, err)
	handle, err := r.createSession([]uint64{train})
	require.NoError(t, err)

	assert.ErrorIs(t, r.updateOneIter(handle, 0, train), hbl.ErrMissingLabel)
	_, err = r.predict(handle, train, false, 0)
	assert.ErrorIs(t, err, hbl.ErrNotReady)

	require.NoError(t, r.setParam(handle, "max_depth", "2"))
	require.NoError(t, r.setFloatInfo(train, "label", labels))
	require.NoError(t, r.updateOneIter(handle, 0, train))
	require.NoError(t, r.updateOneIter(handle, 1, train))

	s, err := r.session(handle)
	require.NoError(t, err)
	booster, err := s.engine("test")
	require.NoError(t, err)
	assert.Equal(t, 2, booster.BoostedRounds())
	assert.Equal(t, 2, booster.Params().MaxDepth)
}

func TestUpdateRejectsAnotherTrainingMatrix(t *testing.T) {
	r := newRegistry()
	train := blockMatrix(t, r)
	other := blockMatrix(t, r)
	handle := trainedSession(t, r, train, 1)

	assert.ErrorIs(t, r.updateOneIter(handle, 1, other), hbl.ErrInvalidConfig)
	require.NoError(t, r.updateOneIter(handle, 1, train))
}

func TestReplacedAndFreedMatricesLeaveEvalCache(t *testing.T) {
	r := newRegistry()
	train := blockMatrix(t, r)
	valid := blockMatrix(t, r)
	handle := trainedSession(t, r, train, 2)

	_, err := r.evalOneIter(handle, 1, []uint64{valid}, []string{"valid"})
	require.NoError(t, err)
	old, err := r.matrix(valid)
	require.NoError(t, err)
	s, err := r.session(handle)
	require.NoError(t, err)
	booster, err := s.engine("test")
	require.NoError(t, err)

	require.Equal(t, 1, booster.NumCachedSets())

	labels := make([]float64, 256)
	require.NoError(t, r.setFloatInfo(valid, "label", labels))
	assert.Equal(t, 0, booster.NumCachedSets())

	result, err := r.evalOneIter(handle, 1, []uint64{valid}, []string{"valid"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result, "valid:mlogloss:"), result)
	current, err := r.matrix(valid)
	require.NoError(t, err)
	assert.NotSame(t, old, current)
	assert.Equal(t, 1, booster.NumCachedSets())

	r.freeMatrix(valid)
	assert.Equal(t, 0, booster.NumCachedSets())
}
