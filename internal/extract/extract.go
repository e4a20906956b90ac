// Package extract turns uploaded document bytes into raw text.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/copy-catalog/constants"
	"github.com/joseph-ayodele/copy-catalog/internal/common"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	MaxBytes  int64  // 0 = no limit
}

type Result struct {
	Text     string
	Pages    int
	Kind     constants.FileKind
	Method   string // "docx-xml" | "pdftotext" | "pdf-go" | "xlsx"
	Duration time.Duration
	Warnings []string
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, logger: logger}
}

// Extract picks a strategy based on the file kind. Kinds without a text
// path fail with ErrUnsupportedInput before any work is done.
func (e *Extractor) Extract(ctx context.Context, data []byte, kind constants.FileKind) (Result, error) {
	start := time.Now()
	if e.cfg.MaxBytes > 0 && int64(len(data)) > e.cfg.MaxBytes {
		return Result{Kind: kind}, common.UnsupportedInputError("file is %d bytes, limit is %d", len(data), e.cfg.MaxBytes)
	}

	e.logger.Debug("extract.start", "kind", kind, "bytes", len(data))
	var (
		res Result
		err error
	)
	switch kind {
	case constants.DOCX:
		res, err = extractDOCX(data)
	case constants.PDF:
		res, err = e.extractPDF(ctx, data)
	case constants.XLSX:
		res, err = extractXLSX(data)
	case constants.PAGES:
		return Result{Kind: kind}, common.UnsupportedInputError("Pages documents cannot be read; convert to PDF or DOCX and upload again")
	default:
		e.logger.Error("extract.unsupported_kind", "kind", kind)
		return Result{Kind: kind}, common.UnsupportedInputError("unsupported file kind %q; upload PDF, DOCX or XLSX", kind)
	}
	res.Kind = kind
	res.Duration = time.Since(start)
	if err != nil {
		e.logger.Error("extract.failed", "kind", kind, "error", err, "elapsed_ms", res.Duration.Milliseconds())
		return res, err
	}

	res.Text = normalizeText(res.Text)
	if strings.TrimSpace(res.Text) == "" {
		return res, common.UnsupportedInputError("no extractable text in %s file; scanned documents are not supported", strings.ToLower(string(kind)))
	}
	e.logger.Info("extract.ok",
		"kind", kind,
		"method", res.Method,
		"pages", res.Pages,
		"chars", len(res.Text),
		"warnings", len(res.Warnings),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// normalizeText unifies line endings and trims trailing blanks per line.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func corrupt(kind constants.FileKind, err error) error {
	return fmt.Errorf("%w: unreadable %s file: %v", common.ErrUnsupportedInput, strings.ToLower(string(kind)), err)
}
