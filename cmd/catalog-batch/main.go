package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/copy-catalog/internal/app"
	"github.com/joseph-ayodele/copy-catalog/internal/common"
	"github.com/joseph-ayodele/copy-catalog/internal/export"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		inmem  = flag.Bool("inmem", false, "use an in-memory SQLite database")
		dir    = flag.String("dir", "", "directory of product copy documents (required)")
		out    = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		locale = flag.String("locale", "", "only export variants in this locale")
		glyphs = flag.Bool("superscripts", true, "render {{sup:N}} tokens as superscript glyphs in the export")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "catalog.xlsx")
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	if *inmem {
		cfg.Database.Driver = "sqlite"
		cfg.Database.DSN = ""
	}
	logger := common.NewLogger(cfg.Logging)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	logger.Info("starting ingestion", "dir", *dir)
	results, stats, err := a.Ingestor.IngestDirectory(ctx, *dir, true)
	if err != nil {
		logger.Error("failed to ingest directory", "error", err)
		os.Exit(1)
	}

	var ingested []uuid.UUID
	for _, r := range results {
		if r.Err != "" {
			continue
		}
		id, err := uuid.Parse(r.DocumentID)
		if err != nil {
			logger.Error("failed to parse document ID", "document_id", r.DocumentID, "error", err)
			continue
		}
		ingested = append(ingested, id)
	}
	logger.Info("ingestion complete",
		"documents", len(ingested),
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"deduplicated", stats.Deduplicated)

	processed, failures, review := 0, 0, 0
	for _, id := range ingested {
		outcome, err := a.Processor.ProcessDocument(ctx, id, "batch run")
		if err != nil {
			logger.Error("failed to process document", "document_id", id, "error", err)
			failures++
			continue
		}
		processed++
		if outcome.Verdict.NeedsReview() {
			review++
		}
	}

	logger.Info("exporting to XLSX", "output", *out)
	data, rows, err := a.Exporter.ExportCatalogXLSX(ctx, export.Options{RenderSuperscripts: *glyphs, Locale: *locale})
	if err != nil {
		logger.Error("failed to export catalog", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	logger.Info("batch processing complete",
		"documents", len(ingested),
		"processed", processed,
		"needs_review", review,
		"failures", failures,
		"rows", rows,
		"output_file", *out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Documents ingested: %d\n", len(ingested))
	fmt.Printf("- Documents processed: %d (%d need review)\n", processed, review)
	fmt.Printf("- Failures: %d\n", failures)
	fmt.Printf("- Catalog rows: %d\n", rows)
	fmt.Printf("- Output: %s\n", *out)
}
