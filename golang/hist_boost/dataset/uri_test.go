package dataset

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarstars/hist_boosting/golang/hist_boost/hbl"
)

func TestParseURI(t *testing.T) {
	source, err := ParseURI("data/original/iris.csv?format=csv")
	require.NoError(t, err)
	assert.Equal(t, "data/original/iris.csv", source.Path)
	assert.Equal(t, CSV, source.Format)
	assert.Equal(t, -1, source.LabelColumn)
	assert.True(t, source.HasHeader)
	assert.True(t, math.IsNaN(source.Missing))

	source, err = ParseURI("train.csv?format=csv&label_column=0&header=0&missing=-1")
	require.NoError(t, err)
	assert.Equal(t, 0, source.LabelColumn)
	assert.False(t, source.HasHeader)
	assert.Equal(t, -1.0, source.Missing)

	source, err = ParseURI("features.npy?labels=labels.npy")
	require.NoError(t, err)
	assert.Equal(t, Npy, source.Format)
	assert.Equal(t, "labels.npy", source.Labels)

	source, err = ParseURI("table.arrow?label_column=2")
	require.NoError(t, err)
	assert.Equal(t, Arrow, source.Format)
}

func TestParseURIErrors(t *testing.T) {
	for _, uri := range []string{
		"",
		"?format=csv",
		"a.csv?format=parquet",
		"a.csv?label_column=first",
		"a.csv?header=maybe",
		"a.csv?compression=gzip",
	} {
		_, err := ParseURI(uri)
		assert.ErrorIs(t, err, hbl.ErrInvalidConfig, uri)
	}
}

func TestLoadCSV(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "iris.csv")
	require.NoError(t, os.WriteFile(fileName, []byte(irisHead), 0o644))

	m, err := Load(fileName + "?format=csv&label_column=4")
	require.NoError(t, err)
	assert.Equal(t, 3, m.NumRows())
	assert.Equal(t, 4, m.NumCols())
	assert.True(t, m.HasLabels())
}
