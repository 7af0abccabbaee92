package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/export"
	"github.com/joseph-ayodele/invoice-pipeline/internal/store"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	_ = godotenv.Load()
	cfg := common.LoadConfig()

	out := "invoices.xlsx"
	if len(os.Args) > 1 {
		out = os.Args[1]
	}

	st, err := store.NewSQLiteStore(cfg.Store.DSN)
	if err != nil {
		logger.Error("failed to open store", "error", err, "dsn", cfg.Store.DSN)
		os.Exit(1)
	}
	defer st.Close()

	svc := export.NewService(st, logger)
	data, err := svc.ExportInvoicesXLSX(context.Background())
	if err != nil {
		logger.Error("export failed", "error", err)
		os.Exit(1)
	}

	if err := os.WriteFile(out, data, 0o644); err != nil {
		logger.Error("failed to write workbook", "error", err, "path", out)
		os.Exit(1)
	}
	logger.Info("workbook written", "path", out)
}
