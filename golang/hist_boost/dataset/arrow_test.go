package dataset

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarstars/hist_boosting/golang/hist_boost/hbl"
)

func buildRecord(t *testing.T, x []float64, valid []bool, y []int64) arrow.Record {
	t.Helper()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "x", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "y", Type: arrow.PrimitiveTypes.Int64},
	}, nil)
	builder := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer builder.Release()
	builder.Field(0).(*array.Float64Builder).AppendValues(x, valid)
	builder.Field(1).(*array.Int64Builder).AppendValues(y, nil)
	return builder.NewRecord()
}

func TestFromArrowRecord(t *testing.T) {
	rec := buildRecord(t, []float64{0.5, 0, 2.5}, []bool{true, false, true}, []int64{1, 0, 2})
	defer rec.Release()

	m, err := FromArrowRecord(rec, 1, math.NaN())
	require.NoError(t, err)
	assert.Equal(t, 3, m.NumRows())
	assert.Equal(t, 1, m.NumCols())

	v, err := m.ValueAt(1, 0)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v), "null cells are missing")
	label, err := m.LabelAt(2)
	require.NoError(t, err)
	assert.Equal(t, 2.0, label)

	features, err := FromArrowRecord(rec, -1, math.NaN())
	require.NoError(t, err)
	assert.Equal(t, 2, features.NumCols())
	assert.False(t, features.HasLabels())

	_, err = FromArrowRecord(rec, 2, math.NaN())
	assert.ErrorIs(t, err, hbl.ErrOutOfRange)
}

func TestReadArrowFile(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "table.arrow")
	first := buildRecord(t, []float64{1, 2}, nil, []int64{0, 1})
	defer first.Release()
	second := buildRecord(t, []float64{3}, nil, []int64{1})
	defer second.Release()

	f, err := os.Create(fileName)
	require.NoError(t, err)
	writer, err := ipc.NewFileWriter(f, ipc.WithSchema(first.Schema()), ipc.WithAllocator(memory.NewGoAllocator()))
	require.NoError(t, err)
	require.NoError(t, writer.Write(first))
	require.NoError(t, writer.Write(second))
	require.NoError(t, writer.Close())
	require.NoError(t, f.Close())

	m, err := ReadArrowFile(fileName, 1, math.NaN())
	require.NoError(t, err)
	assert.Equal(t, 3, m.NumRows())
	v, err := m.ValueAt(2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)
	label, err := m.LabelAt(2)
	require.NoError(t, err)
	assert.Equal(t, 1.0, label)

	loaded, err := Load(fileName + "?label_column=1")
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.NumRows())
}
