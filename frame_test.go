package delta

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/apache/arrow/go/v15/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildIDNameRecord(t *testing.T, n int) arrow.Record {
	t.Helper()

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int32},
		{Name: "name", Type: arrow.BinaryTypes.String},
	}, nil)

	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()

	for i := 0; i < n; i++ {
		builder.Field(0).(*array.Int32Builder).Append(int32(i + 1))
		builder.Field(1).(*array.StringBuilder).Append(fmt.Sprintf("row-%d", i+1))
	}

	return builder.NewRecord()
}

func TestFrameRender(t *testing.T) {
	rec := buildIDNameRecord(t, 3)
	defer rec.Release()

	frame := NewFrame(rec)
	assert.Equal(t, int64(3), frame.NumRows())
	assert.Equal(t, int64(2), frame.NumCols())

	var buf bytes.Buffer
	require.NoError(t, frame.Render(&buf, DefaultRenderOptions()))
	out := buf.String()

	assert.Contains(t, out, "id")
	assert.Contains(t, out, "name")
	for _, want := range []string{"row-1", "row-2", "row-3"} {
		assert.Equal(t, 1, strings.Count(out, want+" "), want)
	}
	assert.NotContains(t, out, ellipsis)
	assert.NotContains(t, out, "[3 rows")
}

func TestFrameRenderTruncatesRows(t *testing.T) {
	rec := buildIDNameRecord(t, 30)
	defer rec.Release()

	var buf bytes.Buffer
	require.NoError(t, NewFrame(rec).Render(&buf, RenderOptions{MaxRows: 5}))
	out := buf.String()

	assert.Contains(t, out, "row-5")
	assert.NotContains(t, out, "row-6")
	assert.Contains(t, out, ellipsis)
	assert.Contains(t, out, "[30 rows x 2 columns]")
}

func TestFrameRenderTruncatesColumns(t *testing.T) {
	rec := buildIDNameRecord(t, 2)
	defer rec.Release()

	var buf bytes.Buffer
	require.NoError(t, NewFrame(rec).Render(&buf, RenderOptions{MaxColumns: 1}))
	out := buf.String()

	assert.Contains(t, out, "id")
	assert.NotContains(t, out, "row-1")
	assert.Contains(t, out, ellipsis)
	assert.Contains(t, out, "[2 rows x 2 columns]")
}

func TestFrameRendersNulls(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "note", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)
	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()
	builder.Field(0).(*array.StringBuilder).AppendNull()

	rec := builder.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	require.NoError(t, NewFrame(rec).Render(&buf, DefaultRenderOptions()))
	assert.Contains(t, buf.String(), "null")
}

func TestFrameStringIdempotent(t *testing.T) {
	rec := buildIDNameRecord(t, 4)
	defer rec.Release()

	frame := NewFrame(rec)
	assert.Equal(t, frame.String(), frame.String())
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "null", formatValue(nil, arrow.BinaryTypes.String))
	assert.Equal(t, "true", formatValue(true, arrow.FixedWidthTypes.Boolean))
	assert.Equal(t, "42", formatValue(int32(42), arrow.PrimitiveTypes.Int32))
	assert.Equal(t, "-7", formatValue(int64(-7), arrow.PrimitiveTypes.Int64))
	assert.Equal(t, "1.5", formatValue(float64(1.5), arrow.PrimitiveTypes.Float64))
	assert.Equal(t, "hello", formatValue("hello", arrow.BinaryTypes.String))
}
