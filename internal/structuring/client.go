// Package structuring turns raw document text into a normalized StructuredExtraction
// through a schema-constrained structuring capability.
package structuring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/copy-catalog/internal/common"
	"github.com/joseph-ayodele/copy-catalog/internal/extraction"
	"github.com/joseph-ayodele/copy-catalog/internal/llm"
	"github.com/joseph-ayodele/copy-catalog/internal/superscript"
)

const capabilityName = "structuring"

// Result is a normalized extraction and the facts gathered while producing it.
type Result struct {
	Extraction extraction.StructuredExtraction
	Canonical  []byte   // ordered-key JSON of Extraction
	Raw        []byte   // provider reply as received
	Issues     []string // local findings, e.g. ambiguous superscripts
	LegacyRaw  bool     // reply used the single-object section shape
}

// Client produces structured extractions. It owns normalization; the provider
// only has to satisfy the reply schema.
type Client struct {
	provider llm.Structurer
	timeout  time.Duration
	logger   *slog.Logger
}

func NewClient(provider llm.Structurer, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{provider: provider, timeout: timeout, logger: logger}
}

// Structure encodes footnotes in text, asks the provider for an extraction,
// validates the reply and normalizes it. Provider failures and schema
// violations come back as retryable *common.CapabilityError values.
func (c *Client) Structure(ctx context.Context, text, filename string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, common.UnsupportedInputError("document has no extractable text")
	}

	encoded := superscript.Encode(text)
	issues := encoded.Issues()

	ctx, cancel := common.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	raw, err := c.provider.StructureText(ctx, llm.StructureRequest{Text: encoded.Text, FilenameHint: filename})
	if err != nil {
		if !errors.Is(err, common.ErrSchemaViolation) && !errors.Is(err, common.ErrCapabilityUnavailable) {
			err = fmt.Errorf("%w: %v", common.ErrCapabilityUnavailable, err)
		}
		c.logger.Error("structuring.provider_failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return Result{}, common.NewCapabilityError(capabilityName, err)
	}

	x, legacy, err := Decode(raw)
	if err != nil {
		c.logger.Error("structuring.schema_violation", "error", err, "reply", llm.Truncate(string(raw), 1024))
		return Result{Raw: raw}, common.NewCapabilityError(capabilityName, err)
	}
	if legacy {
		c.logger.Warn("structuring.legacy_shape", "hint", "section returned as a single object")
	}

	// Residual glyphs the model copied verbatim get the same treatment as the source.
	seen := make(map[string]bool, len(issues))
	for _, is := range issues {
		seen[is] = true
	}
	x = x.MapStrings(func(s string) string {
		res := superscript.Encode(s)
		for _, is := range res.Issues() {
			if !seen[is] {
				seen[is] = true
				issues = append(issues, is)
			}
		}
		return res.Text
	}).Normalize()
	if x.IsEmpty() {
		c.logger.Warn("structuring.empty_reply", "reply", llm.Truncate(string(raw), 256))
		return Result{Raw: raw}, common.NewCapabilityError(capabilityName,
			fmt.Errorf("%w: reply contains no product entries", common.ErrSchemaViolation))
	}

	canonical, err := x.Canonical()
	if err != nil {
		return Result{Raw: raw}, fmt.Errorf("%w: %v", common.ErrDataIntegrity, err)
	}

	c.logger.Info("structuring.ok",
		"entries", x.EntryCount(),
		"footnotes", len(encoded.Footnotes),
		"issues", len(issues),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Result{
		Extraction: x,
		Canonical:  canonical,
		Raw:        raw,
		Issues:     issues,
		LegacyRaw:  legacy,
	}, nil
}

// Decode validates a provider reply against the extraction schema and parses
// it. The bool reports whether any section used the legacy single-object shape.
func Decode(raw []byte) (extraction.StructuredExtraction, bool, error) {
	if err := llm.ValidateJSONAgainstSchema(llm.BuildExtractionJSONSchema(), raw); err != nil {
		return extraction.StructuredExtraction{}, false, fmt.Errorf("%w: %v", common.ErrSchemaViolation, err)
	}
	shapes, err := extraction.ParseShapes(raw)
	if err != nil {
		return extraction.StructuredExtraction{}, false, fmt.Errorf("%w: %v", common.ErrSchemaViolation, err)
	}
	legacy := false
	for _, s := range shapes {
		if s.IsLegacySingle() {
			legacy = true
		}
	}
	return extraction.FromShapes(shapes), legacy, nil
}
