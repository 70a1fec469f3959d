// Package schemas models a table's column schema as it travels in the
// metaData action's schemaString, and maps it onto the Arrow and parquet
// type systems.
package schemas

import (
	"errors"
	"fmt"
	"strings"

	"github.com/apache/arrow/go/v15/arrow"
	"github.com/goccy/go-json"
	"github.com/segmentio/parquet-go"
)

// Delta type names as serialized inside schemaString.
const (
	TypeString    = "string"
	TypeLong      = "long"
	TypeInteger   = "integer"
	TypeShort     = "short"
	TypeByte      = "byte"
	TypeFloat     = "float"
	TypeDouble    = "double"
	TypeBoolean   = "boolean"
	TypeDate      = "date"
	TypeTimestamp = "timestamp"
)

var ErrUnknownType = errors.New("unknown column type")

// sqlTypes maps the SQL type names accepted at table creation onto delta
// type names.
var sqlTypes = map[string]string{
	"TEXT":      TypeString,
	"BIGINT":    TypeLong,
	"INT":       TypeInteger,
	"SMALLINT":  TypeShort,
	"TINYINT":   TypeByte,
	"FLOAT":     TypeFloat,
	"DOUBLE":    TypeDouble,
	"BOOL":      TypeBoolean,
	"DATE":      TypeDate,
	"TIMESTAMP": TypeTimestamp,
}

// Field is one column definition.
type Field struct {
	Name     string            `json:"name"`
	Type     string            `json:"type"`
	Nullable bool              `json:"nullable"`
	Metadata map[string]string `json:"metadata"`
}

// Schema is the schemaString payload. Type is always "struct".
type Schema struct {
	Fields []Field `json:"fields"`
	Type   string  `json:"type"`
}

// New builds a schema over the given fields.
func New(fields []Field) Schema {
	return Schema{Fields: fields, Type: "struct"}
}

// FieldFromSQL builds a non-nullable field from an SQL column declaration.
// The type name is case-insensitive.
func FieldFromSQL(name, sqlType string) (Field, error) {
	typ, ok := sqlTypes[strings.ToUpper(sqlType)]
	if !ok {
		return Field{}, fmt.Errorf("column %q: %w %q", name, ErrUnknownType, sqlType)
	}
	return Field{
		Name:     name,
		Type:     typ,
		Nullable: false,
		Metadata: map[string]string{},
	}, nil
}

// Validate enforces the constraints required of a freshly created table:
// at least one field, unique field names, no nullable columns.
func (s Schema) Validate() error {
	if s.Type != "struct" {
		return fmt.Errorf("schema type must be \"struct\", got %q", s.Type)
	}
	if len(s.Fields) == 0 {
		return errors.New("schema has no fields")
	}

	seen := make(map[string]struct{}, len(s.Fields))
	for _, field := range s.Fields {
		if _, dup := seen[field.Name]; dup {
			return fmt.Errorf("duplicate field name %q", field.Name)
		}
		seen[field.Name] = struct{}{}

		if field.Nullable {
			return fmt.Errorf("field %q: nullable columns are not supported", field.Name)
		}
		if _, err := arrowType(field.Type); err != nil {
			return err
		}
	}

	return nil
}

// FieldIndex returns the position of the named field, or -1.
func (s Schema) FieldIndex(name string) int {
	for i, field := range s.Fields {
		if field.Name == name {
			return i
		}
	}
	return -1
}

// Marshal serializes the schema to the schemaString form.
func (s Schema) Marshal() (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Parse deserializes a schemaString.
func Parse(schemaString string) (Schema, error) {
	var s Schema
	if err := json.Unmarshal([]byte(schemaString), &s); err != nil {
		return Schema{}, fmt.Errorf("parse schema string: %w", err)
	}
	return s, nil
}

// ArrowSchema maps the schema onto Arrow, preserving declared field order.
func (s Schema) ArrowSchema() (*arrow.Schema, error) {
	fields := make([]arrow.Field, 0, len(s.Fields))
	for _, field := range s.Fields {
		typ, err := arrowType(field.Type)
		if err != nil {
			return nil, err
		}
		fields = append(fields, arrow.Field{
			Name:     field.Name,
			Type:     typ,
			Nullable: field.Nullable,
			Metadata: arrow.Metadata{},
		})
	}
	return arrow.NewSchema(fields, nil), nil
}

func arrowType(deltaType string) (arrow.DataType, error) {
	switch deltaType {
	case TypeString:
		return arrow.BinaryTypes.String, nil
	case TypeLong:
		return arrow.PrimitiveTypes.Int64, nil
	case TypeInteger:
		return arrow.PrimitiveTypes.Int32, nil
	case TypeShort:
		return arrow.PrimitiveTypes.Int16, nil
	case TypeByte:
		return arrow.PrimitiveTypes.Int8, nil
	case TypeFloat:
		return arrow.PrimitiveTypes.Float32, nil
	case TypeDouble:
		return arrow.PrimitiveTypes.Float64, nil
	case TypeBoolean:
		return arrow.FixedWidthTypes.Boolean, nil
	case TypeDate:
		return arrow.FixedWidthTypes.Date32, nil
	case TypeTimestamp:
		return arrow.FixedWidthTypes.Timestamp_us, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownType, deltaType)
	}
}

// ParquetSchema maps the schema onto a parquet file schema. Parquet groups
// order their columns by name, not by declaration order, so readers must map
// columns back by field name.
func (s Schema) ParquetSchema(name string) (*parquet.Schema, error) {
	group := parquet.Group{}
	for _, field := range s.Fields {
		node, err := parquetNode(field.Type)
		if err != nil {
			return nil, err
		}
		if field.Nullable {
			node = parquet.Optional(node)
		}
		group[field.Name] = node
	}
	return parquet.NewSchema(name, group), nil
}

func parquetNode(deltaType string) (parquet.Node, error) {
	switch deltaType {
	case TypeString:
		return parquet.String(), nil
	case TypeLong:
		return parquet.Int(64), nil
	case TypeInteger:
		return parquet.Int(32), nil
	case TypeShort:
		return parquet.Int(16), nil
	case TypeByte:
		return parquet.Int(8), nil
	case TypeFloat:
		return parquet.Leaf(parquet.FloatType), nil
	case TypeDouble:
		return parquet.Leaf(parquet.DoubleType), nil
	case TypeBoolean:
		return parquet.Leaf(parquet.BooleanType), nil
	case TypeDate:
		return parquet.Date(), nil
	case TypeTimestamp:
		return parquet.Timestamp(parquet.Microsecond), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownType, deltaType)
	}
}
