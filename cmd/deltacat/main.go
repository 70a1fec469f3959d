// deltacat opens a table, materializes its latest snapshot and prints it.
//
//	deltacat [location]
//
// The location defaults to tables/my-table. The rendered table is the only
// thing written to stdout; logs go to stderr. Any failure exits non-zero
// before a single byte of table output is produced.
package main

import (
	"context"
	"os"

	delta "github.com/ArkamFahry/deltatable"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	location := "tables/my-table"
	if len(os.Args) > 1 {
		location = os.Args[1]
	}

	table, err := delta.OpenTable(location, logger)
	if err != nil {
		logger.Fatal("failed to open table", zap.String("location", location), zap.Error(err))
	}

	snapshot, err := table.Snapshot()
	if err != nil {
		logger.Fatal("failed to load table snapshot", zap.String("location", location), zap.Error(err))
	}

	record, err := snapshot.Read(context.Background())
	if err != nil {
		logger.Fatal("failed to materialize table", zap.String("location", location), zap.Error(err))
	}
	defer record.Release()

	frame := delta.NewFrame(record)
	if err := frame.Render(os.Stdout, delta.DefaultRenderOptions()); err != nil {
		logger.Fatal("failed to render table", zap.Error(err))
	}
}
