package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/saturnino-fabrica-de-software/proctor/internal/config"
	"github.com/saturnino-fabrica-de-software/proctor/internal/database"
	"github.com/saturnino-fabrica-de-software/proctor/internal/importer"
	"github.com/saturnino-fabrica-de-software/proctor/internal/repository"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	file := flag.String("file", "violations.csv", "CSV file with one violation tally per row")
	emailDomain := flag.String("email-domain", "", "Domain for candidate_id@domain when a row has no candidate_email")
	flag.Parse()

	cfg, err := config.LoadCollector()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := config.NewLogger(cfg.Environment)

	f, err := os.Open(*file)
	if err != nil {
		return fmt.Errorf("failed to open csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	rows, rowErrs, err := importer.Parse(f, importer.Options{EmailDomain: *emailDomain})
	if err != nil {
		return fmt.Errorf("failed to parse csv: %w", err)
	}
	for _, rowErr := range rowErrs {
		logger.Warn("skipping invalid row", slog.String("error", rowErr.Error()))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, database.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return err
	}
	defer pool.Close()

	logger.Info("connected to database", slog.String("database", cfg.DatabaseName))

	summary, err := importer.New(repository.NewResultRepository(pool), logger).Import(ctx, rows)
	logger.Info("import finished",
		slog.String("file", *file),
		slog.Int("inserted", summary.Inserted),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed),
		slog.Int("invalid", len(rowErrs)),
	)
	if err != nil {
		return fmt.Errorf("import interrupted: %w", err)
	}
	return nil
}
