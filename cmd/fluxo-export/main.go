// Command fluxo-export computes the projection once and writes it to a
// Google Sheet.
package main

import (
	"context"
	"os"
	"time"

	"fluxo/internal/cli"
	"fluxo/internal/log"
	"fluxo/internal/sheets/google"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := run(ctx, logger, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, func(ctx context.Context) (*cli.Stack, error) {
		return cli.NewStack(ctx, cfg, logger)
	}); err != nil {
		logger.Error("Export failed", log.FieldError, err, log.FieldOperation, log.OpExport)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *log.Logger, spreadsheetID, sheetName string, build func(context.Context) (*cli.Stack, error)) error {
	exp, err := google.NewFromEnv(ctx, spreadsheetID, sheetName, logger)
	if err != nil {
		return err
	}
	stack, err := build(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := stack.Close(); err != nil {
			logger.Warn("Backend close error", log.FieldError, err)
		}
	}()

	snap, err := stack.Service.Snapshot(ctx)
	if err != nil {
		return err
	}
	if len(snap.Failed) > 0 {
		logger.Warn("Exporting partial projection", "failed_sources", snap.Failed)
	}
	return exp.ExportProjection(ctx, snap.Months, snap.GeneratedAt)
}
