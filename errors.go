package delta

import "errors"

var (
	// ErrTableNotExist reports that the table location could not be found.
	ErrTableNotExist = errors.New("table does not exist")

	// ErrTableExists reports that CreateTable hit an existing location.
	ErrTableExists = errors.New("table already exists")

	// ErrInvalidTable reports a location that exists but does not hold a
	// readable table: missing or malformed log, bad metadata, wrong format.
	ErrInvalidTable = errors.New("invalid table")
)
