package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNpyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	featuresFile := filepath.Join(dir, "features.npy")
	labelsFile := filepath.Join(dir, "labels.npy")

	features := mat.NewDense(3, 2, []float64{
		1, 2,
		3, -1,
		5, 6,
	})
	require.NoError(t, WriteNpy(featuresFile, features))
	labels, err := os.Create(labelsFile)
	require.NoError(t, err)
	require.NoError(t, npyio.Write(labels, []float64{0, 1, 0}))
	require.NoError(t, labels.Close())

	m, err := ReadNpy(featuresFile, labelsFile, -1)
	require.NoError(t, err)
	assert.Equal(t, 3, m.NumRows())
	assert.Equal(t, 2, m.NumCols())

	v, err := m.ValueAt(2, 0)
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)
	_, err = m.ValueAt(1, 1)
	require.NoError(t, err)

	label, err := m.LabelAt(1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, label)

	loaded, err := Load(featuresFile + "?labels=" + labelsFile)
	require.NoError(t, err)
	assert.True(t, loaded.HasLabels())

	unlabeled, err := ReadNpy(featuresFile, "", -1)
	require.NoError(t, err)
	assert.False(t, unlabeled.HasLabels())
}
