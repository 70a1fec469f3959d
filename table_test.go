package delta

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow/go/v15/arrow/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestTable(t *testing.T, columns []Column) *Table {
	t.Helper()

	table, err := CreateTable(filepath.Join(t.TempDir(), "my-table"), columns, zap.NewNop())
	require.NoError(t, err)

	return table
}

func idNameColumns() []Column {
	return []Column{
		{Name: "id", Type: "INT"},
		{Name: "name", Type: "TEXT"},
	}
}

func TestCreateAndOpenTable(t *testing.T) {
	created := newTestTable(t, idNameColumns())

	opened, err := OpenTable(created.Location(), zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "my-table", opened.Name())
	assert.Equal(t, created.meta.ID, opened.meta.ID)
	assert.Equal(t, created.schema, opened.schema)
}

func TestOpenTableMissingLocation(t *testing.T) {
	location := filepath.Join(t.TempDir(), "does-not-exist")

	_, err := OpenTable(location, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTableNotExist)
	assert.Contains(t, err.Error(), location)
}

func TestOpenTableWithoutLog(t *testing.T) {
	location := filepath.Join(t.TempDir(), "not-a-table")
	require.NoError(t, os.Mkdir(location, 0o755))

	_, err := OpenTable(location, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidTable)
}

func TestOpenTableCorruptLog(t *testing.T) {
	location := filepath.Join(t.TempDir(), "corrupt")
	require.NoError(t, os.MkdirAll(filepath.Join(location, logDirName), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(location, logDirName, versionFileName(0, logFileExt)),
		[]byte("{not json"), 0o644))

	_, err := OpenTable(location, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidTable)
}

func TestCreateTableAlreadyExists(t *testing.T) {
	table := newTestTable(t, idNameColumns())

	_, err := CreateTable(table.Location(), idNameColumns(), zap.NewNop())
	assert.ErrorIs(t, err, ErrTableExists)
}

func TestCreateTableUnknownColumnType(t *testing.T) {
	_, err := CreateTable(filepath.Join(t.TempDir(), "t"), []Column{{Name: "x", Type: "VARCHAR"}}, zap.NewNop())
	assert.Error(t, err)
}

func TestInsertAndRead(t *testing.T) {
	table := newTestTable(t, idNameColumns())
	ctx := context.Background()

	require.NoError(t, table.Insert(ctx, [][]any{
		{1, "alice"},
		{2, "bob"},
		{3, "carol"},
	}))

	snap, err := table.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Version())
	assert.Equal(t, 1, snap.NumFiles())

	rec, err := snap.Read(ctx)
	require.NoError(t, err)
	defer rec.Release()

	require.Equal(t, int64(3), rec.NumRows())
	require.Equal(t, int64(2), rec.NumCols())
	assert.Equal(t, "id", rec.ColumnName(0))
	assert.Equal(t, "name", rec.ColumnName(1))

	ids := rec.Column(0).(*array.Int32)
	names := rec.Column(1).(*array.String)
	assert.Equal(t, []int32{1, 2, 3}, []int32{ids.Value(0), ids.Value(1), ids.Value(2)})
	assert.Equal(t, []string{"alice", "bob", "carol"}, []string{names.Value(0), names.Value(1), names.Value(2)})
}

func TestInsertCoercesStrings(t *testing.T) {
	table := newTestTable(t, idNameColumns())
	ctx := context.Background()

	require.NoError(t, table.Insert(ctx, [][]any{{"7", "dave"}}))

	snap, err := table.Snapshot()
	require.NoError(t, err)
	rec, err := snap.Read(ctx)
	require.NoError(t, err)
	defer rec.Release()

	assert.Equal(t, int32(7), rec.Column(0).(*array.Int32).Value(0))
}

func TestInsertWrongArity(t *testing.T) {
	table := newTestTable(t, idNameColumns())

	err := table.Insert(context.Background(), [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "columns")
}

func TestInsertNoRows(t *testing.T) {
	table := newTestTable(t, idNameColumns())
	assert.Error(t, table.Insert(context.Background(), nil))
}

func TestReadEmptyTable(t *testing.T) {
	table := newTestTable(t, idNameColumns())

	snap, err := table.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.Version())
	assert.Equal(t, 0, snap.NumFiles())

	rec, err := snap.Read(context.Background())
	require.NoError(t, err)
	defer rec.Release()

	assert.Equal(t, int64(0), rec.NumRows())
	assert.Equal(t, int64(2), rec.NumCols())
}

func TestTemporalRoundTrip(t *testing.T) {
	table := newTestTable(t, []Column{
		{Name: "day", Type: "DATE"},
		{Name: "at", Type: "TIMESTAMP"},
	})
	ctx := context.Background()

	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	at := time.Date(2024, 3, 15, 12, 30, 45, 123456000, time.UTC)
	require.NoError(t, table.Insert(ctx, [][]any{{day, at}}))

	snap, err := table.Snapshot()
	require.NoError(t, err)
	rec, err := snap.Read(ctx)
	require.NoError(t, err)
	defer rec.Release()

	gotDay, err := columnValue(rec.Column(0), 0)
	require.NoError(t, err)
	assert.Equal(t, day, gotDay)

	gotAt, err := columnValue(rec.Column(1), 0)
	require.NoError(t, err)
	assert.Equal(t, at, gotAt)
}

func TestDelete(t *testing.T) {
	table := newTestTable(t, idNameColumns())
	ctx := context.Background()

	require.NoError(t, table.Insert(ctx, [][]any{
		{1, "alice"},
		{2, "bob"},
		{3, "carol"},
	}))

	err := table.Delete(ctx, func(row map[string]any) bool {
		return row["name"] == "bob"
	})
	require.NoError(t, err)

	snap, err := table.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Version())
	assert.Equal(t, 1, snap.NumFiles())

	rec, err := snap.Read(ctx)
	require.NoError(t, err)
	defer rec.Release()

	require.Equal(t, int64(2), rec.NumRows())
	ids := rec.Column(0).(*array.Int32)
	assert.Equal(t, []int32{1, 3}, []int32{ids.Value(0), ids.Value(1)})
}

func TestDeleteNoMatchCommitsNothing(t *testing.T) {
	table := newTestTable(t, idNameColumns())
	ctx := context.Background()

	require.NoError(t, table.Insert(ctx, [][]any{{1, "alice"}}))

	require.NoError(t, table.Delete(ctx, func(map[string]any) bool { return false }))

	snap, err := table.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Version())
}

func TestDeleteOnlyRewritesAffectedFiles(t *testing.T) {
	table := newTestTable(t, idNameColumns())
	ctx := context.Background()

	require.NoError(t, table.Insert(ctx, [][]any{{1, "alice"}, {2, "bob"}}))
	require.NoError(t, table.Insert(ctx, [][]any{{3, "carol"}, {4, "dave"}}))

	before, err := table.Snapshot()
	require.NoError(t, err)
	require.Equal(t, 2, before.NumFiles())
	untouched := before.Files()[1]

	require.NoError(t, table.Delete(ctx, func(row map[string]any) bool {
		return row["id"] == int32(1)
	}))

	after, err := table.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 2, after.NumFiles())
	assert.Contains(t, after.Files(), untouched)
	assert.NotContains(t, after.Files(), before.Files()[0])

	rec, err := after.Read(ctx)
	require.NoError(t, err)
	defer rec.Release()
	assert.Equal(t, int64(3), rec.NumRows())
}

func TestDeleteEverything(t *testing.T) {
	table := newTestTable(t, idNameColumns())
	ctx := context.Background()

	require.NoError(t, table.Insert(ctx, [][]any{{1, "alice"}, {2, "bob"}}))
	require.NoError(t, table.Delete(ctx, func(map[string]any) bool { return true }))

	snap, err := table.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 0, snap.NumFiles())

	rec, err := snap.Read(ctx)
	require.NoError(t, err)
	defer rec.Release()
	assert.Equal(t, int64(0), rec.NumRows())
}

func TestPipelineOutputIsIdempotent(t *testing.T) {
	table := newTestTable(t, idNameColumns())
	ctx := context.Background()

	require.NoError(t, table.Insert(ctx, [][]any{{1, "alice"}, {2, "bob"}, {3, "carol"}}))

	render := func() string {
		t.Helper()
		opened, err := OpenTable(table.Location(), zap.NewNop())
		require.NoError(t, err)
		snap, err := opened.Snapshot()
		require.NoError(t, err)
		rec, err := snap.Read(ctx)
		require.NoError(t, err)
		defer rec.Release()
		return NewFrame(rec).String()
	}

	first := render()
	second := render()
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}
