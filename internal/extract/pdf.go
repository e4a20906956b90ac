package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/copy-catalog/constants"
)

// extractPDF prefers poppler's pdftotext, which keeps superscript glyphs, and
// falls back to a pure-Go reader when the binary is missing or fails.
func (e *Extractor) extractPDF(ctx context.Context, data []byte) (Result, error) {
	pages, err := api.PageCount(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return Result{}, corrupt(constants.PDF, err)
	}

	var warns []string
	text, err := e.pdfToText(ctx, data)
	if err == nil && strings.TrimSpace(text) != "" {
		return Result{Text: text, Pages: pages, Method: "pdftotext"}, nil
	}
	if err != nil {
		warns = append(warns, fmt.Sprintf("pdftotext: %v", err))
	}

	text, err = pdfToTextGo(data)
	if err != nil {
		return Result{Pages: pages, Warnings: warns}, corrupt(constants.PDF, err)
	}
	return Result{Text: text, Pages: pages, Method: "pdf-go", Warnings: warns}, nil
}

func (e *Extractor) pdfToText(ctx context.Context, data []byte) (string, error) {
	f, err := os.CreateTemp("", "catalog-*.pdf")
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(f.Name()) }()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, e.logger, "-layout", "-enc", "UTF-8", "-eol", "unix", f.Name(), "-")
	if err != nil {
		return "", fmt.Errorf("%v: %s", err, truncate(string(errb), 512))
	}
	// pdftotext separates pages with form feeds.
	return strings.ReplaceAll(string(out), "\f", "\n"), nil
}

func pdfToTextGo(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(text)
	}
	return b.String(), nil
}
