// Package delta implements a minimal delta-style table: parquet data files
// tracked by a line-delimited JSON transaction log under _delta_log/, plus
// materialization of the live data into Arrow record batches.
package delta

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ArkamFahry/deltatable/internal/actions"
	"github.com/ArkamFahry/deltatable/internal/schemas"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	logDirName    = "_delta_log"
	logFileExt    = ".json"
	dataFileExt   = ".parquet"
	fileNameWidth = 20
)

// Table is a handle on a table location. It carries no open resources; every
// operation works against the filesystem underneath the location.
type Table struct {
	name    string
	baseDir string
	logDir  string
	meta    actions.Metadata
	schema  schemas.Schema
	logger  *zap.Logger
}

// OpenTable opens the table rooted at location by reading the metadata
// committed at log version zero. It fails with ErrTableNotExist when the
// location is missing and ErrInvalidTable when the location does not hold a
// readable table.
func OpenTable(location string, logger *zap.Logger) (*Table, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if _, err := os.Stat(location); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("open table at %q: %w", location, ErrTableNotExist)
		}
		return nil, fmt.Errorf("open table at %q: %w", location, err)
	}

	logDir := filepath.Join(location, logDirName)
	contents, err := os.ReadFile(filepath.Join(logDir, versionFileName(0, logFileExt)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no transaction log at %q: %w", location, ErrInvalidTable)
		}
		return nil, fmt.Errorf("open table at %q: %w", location, err)
	}

	acts, err := actions.Decode(bytes.NewReader(contents))
	if err != nil {
		return nil, fmt.Errorf("table at %q: %w: %v", location, ErrInvalidTable, err)
	}

	var meta *actions.Metadata
	for _, act := range acts {
		if act.MetaData != nil {
			meta = act.MetaData
			break
		}
	}
	if meta == nil {
		return nil, fmt.Errorf("table at %q has no metadata action: %w", location, ErrInvalidTable)
	}
	if !meta.IsValid() {
		return nil, fmt.Errorf("table at %q has unsupported metadata: %w", location, ErrInvalidTable)
	}

	schema, err := schemas.Parse(meta.SchemaString)
	if err != nil {
		return nil, fmt.Errorf("table at %q: %w: %v", location, ErrInvalidTable, err)
	}

	table := &Table{
		name:    meta.Name,
		baseDir: location,
		logDir:  logDir,
		meta:    *meta,
		schema:  schema,
		logger:  logger,
	}

	logger.Info("opened table",
		zap.String("table", meta.Name),
		zap.String("location", location),
		zap.String("id", meta.ID.String()),
		zap.Int("columns", len(schema.Fields)))

	return table, nil
}

// CreateTable creates a new table at location with the given columns and
// commits its metadata as log version zero. The location itself must not
// exist yet; missing parent directories are created.
func CreateTable(location string, columns []Column, logger *zap.Logger) (*Table, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fields := make([]schemas.Field, 0, len(columns))
	for _, col := range columns {
		field, err := schemas.FieldFromSQL(col.Name, col.Type)
		if err != nil {
			return nil, err
		}
		fields = append(fields, field)
	}

	schema := schemas.New(fields)
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("create table at %q: %w", location, err)
	}

	schemaString, err := schema.Marshal()
	if err != nil {
		return nil, fmt.Errorf("create table at %q: %w", location, err)
	}

	meta := actions.Metadata{
		ID:               uuid.New(),
		Name:             filepath.Base(location),
		Format:           actions.Format{Provider: actions.FormatProvider, Options: map[string]string{}},
		SchemaString:     schemaString,
		PartitionColumns: []string{},
		Configuration:    map[string]string{},
	}

	if parent := filepath.Dir(location); parent != "." {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return nil, fmt.Errorf("create table at %q: %w", location, err)
		}
	}
	if err := os.Mkdir(location, 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create table at %q: %w", location, ErrTableExists)
		}
		return nil, fmt.Errorf("create table at %q: %w", location, err)
	}

	logDir := filepath.Join(location, logDirName)
	if err := os.Mkdir(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create table at %q: %w", location, err)
	}

	table := &Table{
		name:    meta.Name,
		baseDir: location,
		logDir:  logDir,
		meta:    meta,
		schema:  schema,
		logger:  logger,
	}

	if _, err := table.commit([]actions.Action{{MetaData: &meta}}); err != nil {
		return nil, fmt.Errorf("create table at %q: %w", location, err)
	}

	logger.Info("created table",
		zap.String("table", meta.Name),
		zap.String("location", location),
		zap.String("id", meta.ID.String()))

	return table, nil
}

// Name returns the table name recorded in its metadata.
func (t *Table) Name() string { return t.name }

// Location returns the table root directory.
func (t *Table) Location() string { return t.baseDir }

// Insert writes rows as one new parquet data file and commits an add action.
// Row values are coerced to the column types; strings holding numbers,
// booleans or RFC 3339 times are accepted.
func (t *Table) Insert(ctx context.Context, rows [][]any) error {
	if len(rows) == 0 {
		return errors.New("insert: no rows")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rec, err := t.recordFromRows(rows)
	if err != nil {
		return fmt.Errorf("insert into %q: %w", t.name, err)
	}
	defer rec.Release()

	dataFile, err := t.writeDataFile(rec)
	if err != nil {
		return fmt.Errorf("insert into %q: %w", t.name, err)
	}

	version, err := t.commit([]actions.Action{{Add: &actions.Add{
		Path:             dataFile.name,
		PartitionValues:  map[string]string{},
		Size:             dataFile.size,
		ModificationTime: time.Now().UnixMilli(),
		DataChange:       true,
	}}})
	if err != nil {
		return fmt.Errorf("insert into %q: %w", t.name, err)
	}

	t.logger.Info("inserted rows",
		zap.String("table", t.name),
		zap.Int("rows", len(rows)),
		zap.String("data_file", dataFile.name),
		zap.Int64("version", version))

	return nil
}

// Predicate decides, per row, whether Delete removes it. Keys are column
// names; values follow the read-side Go mapping (int32, int64, string,
// float32, float64, bool, time.Time, nil).
type Predicate func(row map[string]any) bool

// Delete removes every row matched by the predicate. Data files containing
// matches are rewritten without the matched rows and swapped in a single log
// commit; untouched files are left alone. Assumes a single writer.
func (t *Table) Delete(ctx context.Context, match Predicate) error {
	snap, err := t.Snapshot()
	if err != nil {
		return fmt.Errorf("delete from %q: %w", t.name, err)
	}

	var acts []actions.Action
	var removed []string
	modificationTime := time.Now().UnixMilli()

	for _, file := range snap.Files() {
		if err := ctx.Err(); err != nil {
			return err
		}

		kept, dropped, err := t.filterDataFile(ctx, file, match)
		if err != nil {
			return fmt.Errorf("delete from %q: %w", t.name, err)
		}
		if dropped == 0 {
			continue
		}

		if len(kept) > 0 {
			rec, err := t.recordFromRows(kept)
			if err != nil {
				return fmt.Errorf("delete from %q: %w", t.name, err)
			}
			dataFile, err := t.writeDataFile(rec)
			rec.Release()
			if err != nil {
				return fmt.Errorf("delete from %q: %w", t.name, err)
			}
			acts = append(acts, actions.Action{Add: &actions.Add{
				Path:             dataFile.name,
				PartitionValues:  map[string]string{},
				Size:             dataFile.size,
				ModificationTime: modificationTime,
				DataChange:       true,
			}})
		}

		acts = append(acts, actions.Action{Remove: &actions.Remove{
			Path:       file,
			DataChange: true,
		}})
		removed = append(removed, file)
	}

	if len(acts) == 0 {
		t.logger.Debug("delete matched no rows", zap.String("table", t.name))
		return nil
	}

	version, err := t.commit(acts)
	if err != nil {
		return fmt.Errorf("delete from %q: %w", t.name, err)
	}

	t.logger.Info("deleted rows",
		zap.String("table", t.name),
		zap.Strings("rewritten_files", removed),
		zap.Int64("version", version))

	return nil
}

// commit writes the actions as the next log version. The log file is created
// exclusively so a concurrent writer fails instead of clobbering history.
func (t *Table) commit(acts []actions.Action) (int64, error) {
	version, err := t.nextLogVersion()
	if err != nil {
		return 0, err
	}

	path := filepath.Join(t.logDir, versionFileName(version, logFileExt))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("commit version %d: %w", version, err)
	}

	if err := actions.Encode(f, acts); err != nil {
		f.Close()
		return 0, fmt.Errorf("commit version %d: %w", version, err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("commit version %d: %w", version, err)
	}

	return version, nil
}

func (t *Table) nextLogVersion() (int64, error) {
	versions, err := t.logVersions()
	if err != nil {
		return 0, err
	}
	if len(versions) == 0 {
		return 0, nil
	}
	return versions[len(versions)-1] + 1, nil
}

// logVersions lists the committed log versions in ascending order.
func (t *Table) logVersions() ([]int64, error) {
	entries, err := os.ReadDir(t.logDir)
	if err != nil {
		return nil, err
	}

	var versions []int64
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, logFileExt) {
			continue
		}
		v, err := strconv.ParseInt(strings.TrimSuffix(name, logFileExt), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("unexpected log file %q: %w", name, ErrInvalidTable)
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })

	return versions, nil
}

// nextDataFileName numbers data files by how many already exist in the table
// directory. Removed files stay on disk, so the count never goes backwards.
func (t *Table) nextDataFileName() (string, error) {
	entries, err := os.ReadDir(t.baseDir)
	if err != nil {
		return "", err
	}

	n := int64(0)
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), dataFileExt) {
			n++
		}
	}

	return versionFileName(n, dataFileExt), nil
}

func versionFileName(version int64, ext string) string {
	return fmt.Sprintf("%0*d%s", fileNameWidth, version, ext)
}
