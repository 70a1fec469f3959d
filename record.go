package delta

import (
	"fmt"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/apache/arrow/go/v15/arrow/memory"
	"github.com/cloudquery/plugin-sdk/v4/scalar"
)

// recordFromRows builds an Arrow record from row-major values, coercing each
// value to its column type through a scalar. Strings holding numbers,
// booleans or RFC 3339 times pass; anything else fails with the offending
// row and column.
func (t *Table) recordFromRows(rows [][]any) (arrow.Record, error) {
	aschema, err := t.schema.ArrowSchema()
	if err != nil {
		return nil, err
	}

	builder := array.NewRecordBuilder(memory.DefaultAllocator, aschema)
	defer builder.Release()

	numFields := len(aschema.Fields())
	for ri, row := range rows {
		if len(row) != numFields {
			return nil, fmt.Errorf("row %d has %d values, table has %d columns", ri, len(row), numFields)
		}
		for i, v := range row {
			field := aschema.Field(i)
			sc := scalar.NewScalar(field.Type)
			if err := sc.Set(v); err != nil {
				return nil, fmt.Errorf("row %d, column %q: %w", ri, field.Name, err)
			}
			scalar.AppendToBuilder(builder.Field(i), sc)
		}
	}

	return builder.NewRecord(), nil
}

// columnValue extracts one cell as a plain Go value. Dates and timestamps
// come back as time.Time in UTC, nulls as nil.
func columnValue(arr arrow.Array, i int) (any, error) {
	if arr.IsNull(i) {
		return nil, nil
	}

	switch a := arr.(type) {
	case *array.Boolean:
		return a.Value(i), nil
	case *array.Int8:
		return a.Value(i), nil
	case *array.Int16:
		return a.Value(i), nil
	case *array.Int32:
		return a.Value(i), nil
	case *array.Int64:
		return a.Value(i), nil
	case *array.Float32:
		return a.Value(i), nil
	case *array.Float64:
		return a.Value(i), nil
	case *array.String:
		return a.Value(i), nil
	case *array.Date32:
		return a.Value(i).ToTime().UTC(), nil
	case *array.Timestamp:
		return a.Value(i).ToTime(arrow.Microsecond).UTC(), nil
	default:
		return nil, fmt.Errorf("unsupported column type %s", arr.DataType())
	}
}

// recordRow extracts one row as a column-name keyed map, the shape seen by
// Delete predicates.
func recordRow(rec arrow.Record, i int) (map[string]any, error) {
	row := make(map[string]any, rec.NumCols())
	for c := 0; c < int(rec.NumCols()); c++ {
		v, err := columnValue(rec.Column(c), i)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", rec.ColumnName(c), err)
		}
		row[rec.ColumnName(c)] = v
	}
	return row, nil
}
