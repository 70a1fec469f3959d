package delta

// Column declares a table column at creation time. Type is an SQL type name:
// TEXT, BIGINT, INT, SMALLINT, TINYINT, FLOAT, DOUBLE, BOOL, DATE or
// TIMESTAMP.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// RenderOptions bound the textual output of a Frame.
type RenderOptions struct {
	// MaxRows is the number of rows shown before the output is truncated
	// with a marker line.
	MaxRows int `json:"max_rows"`
	// MaxColumns is the number of columns shown before the remainder is
	// collapsed into an ellipsis column.
	MaxColumns int `json:"max_columns"`
}

// DefaultRenderOptions returns the display limits used when RenderOptions
// fields are left zero.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		MaxRows:    20,
		MaxColumns: 100,
	}
}
