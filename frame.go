package delta

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

const ellipsis = "..."

// Frame is a column-oriented view over a materialized record, with a textual
// rendering. It does not own the record; releasing it is still the creator's
// job.
type Frame struct {
	rec arrow.Record
}

// NewFrame wraps a record.
func NewFrame(rec arrow.Record) *Frame {
	return &Frame{rec: rec}
}

// NumRows returns the number of rows.
func (f *Frame) NumRows() int64 { return f.rec.NumRows() }

// NumCols returns the number of columns.
func (f *Frame) NumCols() int64 { return f.rec.NumCols() }

// Schema returns the frame's Arrow schema.
func (f *Frame) Schema() *arrow.Schema { return f.rec.Schema() }

// Record returns the wrapped record.
func (f *Frame) Record() arrow.Record { return f.rec }

// Render writes the frame as a bordered text table: a header row of column
// names and the frame's rows, bounded by the display limits. Truncated
// output carries an ellipsis row and a trailing "[N rows x M columns]"
// marker. The writer is written exactly once.
func (f *Frame) Render(w io.Writer, opts RenderOptions) error {
	defaults := DefaultRenderOptions()
	if opts.MaxRows <= 0 {
		opts.MaxRows = defaults.MaxRows
	}
	if opts.MaxColumns <= 0 {
		opts.MaxColumns = defaults.MaxColumns
	}

	numRows := int(f.rec.NumRows())
	numCols := int(f.rec.NumCols())

	visibleRows := numRows
	if visibleRows > opts.MaxRows {
		visibleRows = opts.MaxRows
	}
	visibleCols := numCols
	if visibleCols > opts.MaxColumns {
		visibleCols = opts.MaxColumns
	}
	truncated := visibleRows < numRows || visibleCols < numCols

	fields := f.rec.Schema().Fields()
	header := lo.Map(fields[:visibleCols], func(field arrow.Field, _ int) string {
		return field.Name
	})
	if visibleCols < numCols {
		header = append(header, ellipsis)
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)

	for r := 0; r < visibleRows; r++ {
		cells := make([]string, 0, len(header))
		for c := 0; c < visibleCols; c++ {
			v, err := columnValue(f.rec.Column(c), r)
			if err != nil {
				return fmt.Errorf("render row %d: %w", r, err)
			}
			cells = append(cells, formatValue(v, fields[c].Type))
		}
		if visibleCols < numCols {
			cells = append(cells, ellipsis)
		}
		table.Append(cells)
	}
	if visibleRows < numRows {
		row := make([]string, len(header))
		for i := range row {
			row[i] = ellipsis
		}
		table.Append(row)
	}

	table.Render()
	if truncated {
		fmt.Fprintf(&buf, "[%d rows x %d columns]\n", numRows, numCols)
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// String renders the frame with the default limits.
func (f *Frame) String() string {
	var buf bytes.Buffer
	if err := f.Render(&buf, DefaultRenderOptions()); err != nil {
		return fmt.Sprintf("!frame: %v", err)
	}
	return buf.String()
}

func formatValue(v any, dt arrow.DataType) string {
	if v == nil {
		return "null"
	}

	switch x := v.(type) {
	case bool:
		return strconv.FormatBool(x)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return x
	case time.Time:
		if dt.ID() == arrow.DATE32 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04:05.000000")
	default:
		return fmt.Sprint(x)
	}
}
