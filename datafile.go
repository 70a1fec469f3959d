package delta

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ArkamFahry/deltatable/internal/schemas"
	"github.com/apache/arrow/go/v15/arrow"
	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/apache/arrow/go/v15/arrow/memory"
	"github.com/cloudquery/plugin-sdk/v4/scalar"
	"github.com/segmentio/parquet-go"
)

// readBatchSize is the number of parquet rows decoded per ReadRows call.
const readBatchSize = 128

type dataFile struct {
	name string
	size int64
}

// writeDataFile persists an Arrow record as the table's next numbered
// parquet data file, snappy-compressed. The file is created exclusively;
// data files are immutable once written.
func (t *Table) writeDataFile(rec arrow.Record) (dataFile, error) {
	pqSchema, err := t.schema.ParquetSchema(t.name)
	if err != nil {
		return dataFile{}, err
	}

	name, err := t.nextDataFileName()
	if err != nil {
		return dataFile{}, err
	}
	path := filepath.Join(t.baseDir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return dataFile{}, err
	}

	// Parquet orders columns by name; place each value at the column index
	// the file schema assigned to its field.
	colIndex := make(map[string]int, len(pqSchema.Fields()))
	for i, field := range pqSchema.Fields() {
		colIndex[field.Name()] = i
	}

	rows := make([]parquet.Row, 0, rec.NumRows())
	for r := 0; r < int(rec.NumRows()); r++ {
		row := make(parquet.Row, rec.NumCols())
		for c := 0; c < int(rec.NumCols()); c++ {
			field := t.schema.Fields[c]
			v, err := columnValue(rec.Column(c), r)
			if err != nil {
				f.Close()
				return dataFile{}, fmt.Errorf("write %q: %w", name, err)
			}
			pv, err := parquetValue(v, field, colIndex[field.Name])
			if err != nil {
				f.Close()
				return dataFile{}, fmt.Errorf("write %q: row %d: %w", name, r, err)
			}
			row[colIndex[field.Name]] = pv
		}
		rows = append(rows, row)
	}

	w := parquet.NewWriter(f, pqSchema, parquet.Compression(&parquet.Snappy))
	if _, err := w.WriteRows(rows); err != nil {
		f.Close()
		return dataFile{}, fmt.Errorf("write %q: %w", name, err)
	}
	if err := w.Close(); err != nil {
		f.Close()
		return dataFile{}, fmt.Errorf("write %q: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return dataFile{}, fmt.Errorf("write %q: %w", name, err)
	}

	st, err := os.Stat(path)
	if err != nil {
		return dataFile{}, err
	}

	return dataFile{name: name, size: st.Size()}, nil
}

// parquetValue converts a Go value extracted from an Arrow column into a
// parquet value at the given column index. time.Time collapses to days for
// date columns and microseconds for timestamp columns.
func parquetValue(v any, field schemas.Field, col int) (parquet.Value, error) {
	if v == nil {
		if !field.Nullable {
			return parquet.Value{}, fmt.Errorf("null value in non-nullable column %q", field.Name)
		}
		return parquet.ValueOf(nil).Level(0, 0, col), nil
	}

	if ts, ok := v.(time.Time); ok {
		switch field.Type {
		case schemas.TypeDate:
			v = int32(ts.Unix() / 86400)
		case schemas.TypeTimestamp:
			v = ts.UnixMicro()
		default:
			return parquet.Value{}, fmt.Errorf("time value in non-temporal column %q", field.Name)
		}
	}

	definitionLevel := 0
	if field.Nullable {
		definitionLevel = 1
	}

	return parquet.ValueOf(v).Level(0, definitionLevel, col), nil
}

// appendDataFile streams one parquet data file into the record builder,
// mapping parquet columns back to schema fields by name.
func (t *Table) appendDataFile(builder *array.RecordBuilder, name string) error {
	f, err := os.Open(filepath.Join(t.baseDir, name))
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}

	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return fmt.Errorf("open parquet file: %w", err)
	}

	fieldIndex := make(map[int]int, len(pf.Schema().Fields()))
	for col, pqField := range pf.Schema().Fields() {
		fi := t.schema.FieldIndex(pqField.Name())
		if fi < 0 {
			return fmt.Errorf("parquet column %q not in table schema", pqField.Name())
		}
		fieldIndex[col] = fi
	}

	buf := make([]parquet.Row, readBatchSize)
	for _, rowGroup := range pf.RowGroups() {
		rows := rowGroup.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				for _, v := range row {
					fi, ok := fieldIndex[v.Column()]
					if !ok {
						rows.Close()
						return fmt.Errorf("value in unmapped parquet column %d", v.Column())
					}
					if err := appendScalar(builder, fi, t.schema.Fields[fi], v); err != nil {
						rows.Close()
						return err
					}
				}
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				rows.Close()
				return fmt.Errorf("read rows: %w", err)
			}
		}
		if err := rows.Close(); err != nil {
			return err
		}
	}

	return nil
}

func appendScalar(builder *array.RecordBuilder, fi int, field schemas.Field, v parquet.Value) error {
	goV, err := fieldGoValue(v, field.Type)
	if err != nil {
		return fmt.Errorf("column %q: %w", field.Name, err)
	}

	sc := scalar.NewScalar(builder.Schema().Field(fi).Type)
	if err := sc.Set(goV); err != nil {
		return fmt.Errorf("column %q: %w", field.Name, err)
	}
	scalar.AppendToBuilder(builder.Field(fi), sc)

	return nil
}

// fieldGoValue converts a parquet value into the Go value appended to the
// Arrow builders. Temporal columns surface as time.Time in UTC.
func fieldGoValue(v parquet.Value, deltaType string) (any, error) {
	if v.IsNull() {
		return nil, nil
	}

	switch deltaType {
	case schemas.TypeDate:
		return time.Unix(int64(v.Int32())*86400, 0).UTC(), nil
	case schemas.TypeTimestamp:
		return time.UnixMicro(v.Int64()).UTC(), nil
	}

	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean(), nil
	case parquet.Int32:
		return v.Int32(), nil
	case parquet.Int64:
		return v.Int64(), nil
	case parquet.Float:
		return v.Float(), nil
	case parquet.Double:
		return v.Double(), nil
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray()), nil
	default:
		return nil, fmt.Errorf("unsupported parquet kind %s", v.Kind())
	}
}

// readDataFile materializes a single data file into its own record.
func (t *Table) readDataFile(name string) (arrow.Record, error) {
	aschema, err := t.schema.ArrowSchema()
	if err != nil {
		return nil, err
	}

	builder := array.NewRecordBuilder(memory.DefaultAllocator, aschema)
	defer builder.Release()

	if err := t.appendDataFile(builder, name); err != nil {
		return nil, fmt.Errorf("data file %q: %w", name, err)
	}

	return builder.NewRecord(), nil
}

// filterDataFile reads one data file and splits its rows by the predicate.
// Kept rows come back row-major in schema order, ready for recordFromRows.
func (t *Table) filterDataFile(ctx context.Context, name string, match Predicate) (kept [][]any, dropped int, err error) {
	rec, err := t.readDataFile(name)
	if err != nil {
		return nil, 0, err
	}
	defer rec.Release()

	for r := 0; r < int(rec.NumRows()); r++ {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}

		row, err := recordRow(rec, r)
		if err != nil {
			return nil, 0, fmt.Errorf("data file %q: %w", name, err)
		}
		if match(row) {
			dropped++
			continue
		}

		values := make([]any, rec.NumCols())
		for c := 0; c < int(rec.NumCols()); c++ {
			values[c] = row[rec.ColumnName(c)]
		}
		kept = append(kept, values)
	}

	return kept, dropped, nil
}
