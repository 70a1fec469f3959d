// Package actions models the entries of a table's transaction log.
//
// Each log file holds one JSON-encoded action per line. Actions are
// externally tagged with camelCase keys, matching the delta protocol:
//
//	{"add":{"path":"...","partitionValues":{},"size":1024,"modificationTime":1700000000000,"dataChange":true}}
//	{"remove":{"path":"...","dataChange":true}}
//	{"metaData":{"id":"...","name":"...","format":{"provider":"parquet","options":{}},...}}
package actions

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// FormatProvider is the only data file format the log accepts.
const FormatProvider = "parquet"

// Add records a new data file becoming part of the table.
type Add struct {
	Path             string            `json:"path"`
	PartitionValues  map[string]string `json:"partitionValues"`
	Size             int64             `json:"size"`
	ModificationTime int64             `json:"modificationTime"`
	DataChange       bool              `json:"dataChange"`
}

// Remove records a data file leaving the table. The file stays on disk and
// is only shadowed during log replay.
type Remove struct {
	Path       string `json:"path"`
	DataChange bool   `json:"dataChange"`
}

// Format describes how data files are stored.
type Format struct {
	Provider string            `json:"provider"`
	Options  map[string]string `json:"options"`
}

// Metadata is written once, at table creation, as the first action of log
// version zero. The schema travels as a JSON string in SchemaString.
type Metadata struct {
	ID               uuid.UUID         `json:"id"`
	Name             string            `json:"name"`
	Format           Format            `json:"format"`
	SchemaString     string            `json:"schemaString"`
	PartitionColumns []string          `json:"partitionColumns"`
	Configuration    map[string]string `json:"configuration"`
}

// IsValid reports whether the metadata describes a table this package can
// serve. Only plain parquet tables without partitioning or extra
// configuration are supported.
func (m Metadata) IsValid() bool {
	return m.Format.Provider == FormatProvider &&
		len(m.Format.Options) == 0 &&
		len(m.PartitionColumns) == 0 &&
		len(m.Configuration) == 0
}

// Action is the externally tagged envelope carried by a log line. Exactly
// one member is set.
type Action struct {
	Add      *Add      `json:"add,omitempty"`
	Remove   *Remove   `json:"remove,omitempty"`
	MetaData *Metadata `json:"metaData,omitempty"`
}

func (a Action) validate() error {
	set := 0
	if a.Add != nil {
		set++
	}
	if a.Remove != nil {
		set++
	}
	if a.MetaData != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("action must carry exactly one of add, remove or metaData, got %d", set)
	}
	return nil
}

// Encode writes actions to w, one JSON object per line.
func Encode(w io.Writer, acts []Action) error {
	for i, act := range acts {
		if err := act.validate(); err != nil {
			return fmt.Errorf("encode action %d: %w", i, err)
		}
		line, err := json.Marshal(act)
		if err != nil {
			return fmt.Errorf("encode action %d: %w", i, err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads line-delimited actions from r. Unknown action tags and blank
// envelopes are errors; empty lines are skipped.
func Decode(r io.Reader) ([]Action, error) {
	var acts []Action

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var act Action
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&act); err != nil {
			return nil, fmt.Errorf("decode action on line %d: %w", lineNo, err)
		}
		if err := act.validate(); err != nil {
			return nil, fmt.Errorf("decode action on line %d: %w", lineNo, err)
		}

		acts = append(acts, act)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return acts, nil
}
