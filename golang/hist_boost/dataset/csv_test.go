package dataset

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarstars/hist_boosting/golang/hist_boost/hbl"
)

const irisHead = `sepal_length,sepal_width,petal_length,petal_width,species
5.1,3.5,1.4,0.2,0
7.0,3.2,4.7,1.4,1
6.3,,6.0,2.5,2
`

func TestReadCSVWithLabelColumn(t *testing.T) {
	opts := DefaultCSVOptions()
	opts.LabelColumn = 4
	m, err := ReadCSVFrom(strings.NewReader(irisHead), opts)
	require.NoError(t, err)

	assert.Equal(t, 3, m.NumRows())
	assert.Equal(t, 4, m.NumCols())
	label, err := m.LabelAt(1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, label)

	v, err := m.ValueAt(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 4.7, v)

	v, err = m.ValueAt(2, 1)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v), "empty cells are missing")
}

func TestReadCSVWithoutLabels(t *testing.T) {
	m, err := ReadCSVFrom(strings.NewReader(irisHead), DefaultCSVOptions())
	require.NoError(t, err)
	assert.Equal(t, 5, m.NumCols())
	assert.False(t, m.HasLabels())

	opts := DefaultCSVOptions()
	opts.HasHeader = false
	opts.Missing = -1
	opts.Delimiter = ';'
	m, err = ReadCSVFrom(strings.NewReader("1;-1\n2;3\n"), opts)
	require.NoError(t, err)
	v, err := m.ValueAt(0, 1)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v))
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSVFrom(strings.NewReader("a,b\n"), DefaultCSVOptions())
	assert.ErrorIs(t, err, hbl.ErrEmptyInput)

	_, err = ReadCSVFrom(strings.NewReader("a,b\n1,x\n"), DefaultCSVOptions())
	assert.ErrorIs(t, err, hbl.ErrInvalidConfig)

	_, err = ReadCSVFrom(strings.NewReader("a,b\n1,2\n3\n"), DefaultCSVOptions())
	assert.ErrorIs(t, err, hbl.ErrInvalidConfig)

	opts := DefaultCSVOptions()
	opts.LabelColumn = 2
	_, err = ReadCSVFrom(strings.NewReader("a,b\n1,2\n"), opts)
	assert.ErrorIs(t, err, hbl.ErrOutOfRange)

	_, err = ReadCSV(filepath.Join(t.TempDir(), "absent.csv"), DefaultCSVOptions())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadCSVSemicolonDelimited(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "iris.csv")
	require.NoError(t, os.WriteFile(fileName, []byte(strings.ReplaceAll(irisHead, ",", ";")), 0o644))

	opts := DefaultCSVOptions()
	opts.LabelColumn = 4
	opts.Delimiter = ';'
	m, err := ReadCSV(fileName, opts)
	require.NoError(t, err)
	assert.Equal(t, 3, m.NumRows())
	assert.Equal(t, 4, m.NumCols())

	v, err := m.ValueAt(0, 1)
	require.NoError(t, err)
	assert.Equal(t, 3.5, v)
	label, err := m.LabelAt(2)
	require.NoError(t, err)
	assert.Equal(t, 2.0, label)

	// with the default comma every line is one unparsable field
	_, err = ReadCSV(fileName, DefaultCSVOptions())
	assert.ErrorIs(t, err, hbl.ErrInvalidConfig)
}
