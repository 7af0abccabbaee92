package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/invoice-pipeline/internal/async"
	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm"
	"github.com/joseph-ayodele/invoice-pipeline/internal/llm/ratelimit"
	"github.com/joseph-ayodele/invoice-pipeline/internal/pipeline"
	"github.com/joseph-ayodele/invoice-pipeline/internal/store"
)

func main() {
	// Setup structured logger that outputs messages with variables but no time/level
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if len(os.Args) < 2 {
		logger.Error("usage: invoiced <document.txt> [more documents...]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.NewSQLiteStore(cfg.Store.DSN)
	if err != nil {
		logger.Error("failed to open store", "error", err, "dsn", cfg.Store.DSN)
		os.Exit(1)
	}
	defer st.Close()

	ledger := ratelimit.NewLedger(ratelimit.Config{
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		TokensPerMinute:   cfg.RateLimit.TokensPerMinute,
		TokensPerDay:      cfg.RateLimit.TokensPerDay,
	}, logger)

	client := llm.NewClient(cfg.LLM, ledger, logger)
	pipe := pipeline.New(cfg.Pipeline, st, client, pipeline.NewFileTextSource(), logger)

	queue := async.NewProcessorQueue(pipe, logger,
		async.WithWorkers(cfg.Pipeline.Workers),
		async.WithQueueSize(cfg.Pipeline.QueueSize),
		async.WithProcessTimeout(cfg.Pipeline.ProcessTimeout),
	)

	for _, path := range os.Args[1:] {
		_ = queue.Enqueue(ctx, async.Job{Path: path, SubmittedAt: time.Now()})
	}

	// Drain the queue; a signal interrupts the drain.
	done := make(chan struct{})
	go func() {
		defer close(done)
		queue.Shutdown(context.Background())
	}()

	select {
	case <-ctx.Done():
		logger.Warn("interrupted, shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		queue.Shutdown(shutdownCtx)
	case <-done:
	}
}
