// Package catalog projects structured extractions into the flattened product catalog.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/copy-catalog/internal/entity"
	"github.com/joseph-ayodele/copy-catalog/internal/extraction"
	"github.com/joseph-ayodele/copy-catalog/internal/repository"
)

// variantNamespace seeds the name-based variant ids.
var variantNamespace = uuid.MustParse("6f1c1a8e-3b0d-5a52-9a57-1f4b2b7a9c10")

type DocumentReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error)
}

type VersionLister interface {
	NextVersionNumber(ctx context.Context, docID uuid.UUID) (int, error)
}

type VariantWriter interface {
	ReplaceVariants(ctx context.Context, docID uuid.UUID, variants []entity.ProductVariant) (repository.ReplaceStats, error)
}

// ProjectionResult describes one projection run.
type ProjectionResult struct {
	DocumentID      uuid.UUID
	VersionNumber   int
	Skipped         bool // document had no structured extraction
	Variants        int
	Removed         int
	ProductsCreated int
}

// Projector rebuilds a document's product variants from its current extraction.
type Projector struct {
	docs     DocumentReader
	versions VersionLister
	variants VariantWriter
	logger   *slog.Logger
}

func NewProjector(docs DocumentReader, versions VersionLister, variants VariantWriter, logger *slog.Logger) *Projector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Projector{docs: docs, versions: versions, variants: variants, logger: logger}
}

// Project replaces every variant owned by docID with ones built from the
// document's current extraction. Running it twice on an unchanged document
// yields identical rows. A document without an extraction is a no-op.
func (p *Projector) Project(ctx context.Context, docID uuid.UUID) (ProjectionResult, error) {
	start := time.Now()
	res := ProjectionResult{DocumentID: docID}

	doc, err := p.docs.GetByID(ctx, docID)
	if err != nil {
		return res, fmt.Errorf("load document: %w", err)
	}
	if len(doc.StructuredData) == 0 {
		p.logger.Info("catalog.project.skip", "document_id", docID, "reason", "no structured data")
		res.Skipped = true
		return res, nil
	}

	x, err := extraction.Parse(doc.StructuredData)
	if err != nil {
		return res, fmt.Errorf("parse stored extraction: %w", err)
	}

	next, err := p.versions.NextVersionNumber(ctx, docID)
	if err != nil {
		return res, fmt.Errorf("latest version: %w", err)
	}
	res.VersionNumber = next - 1

	variants := BuildVariants(docID, doc.Locale, res.VersionNumber, x)
	stats, err := p.variants.ReplaceVariants(ctx, docID, variants)
	if err != nil {
		return res, err
	}
	res.Variants = stats.Inserted
	res.Removed = stats.Deleted
	res.ProductsCreated = stats.ProductsCreated

	p.logger.Info("catalog.project.ok",
		"document_id", docID,
		"version", res.VersionNumber,
		"variants", res.Variants,
		"removed", res.Removed,
		"products_created", res.ProductsCreated,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// BuildVariants flattens x into variants. Entries with a blank product name
// are skipped; positions keep the entry's index within its section.
func BuildVariants(docID uuid.UUID, locale string, version int, x extraction.StructuredExtraction) []entity.ProductVariant {
	var out []entity.ProductVariant
	for _, s := range extraction.Sections {
		for i, e := range x.Entries(s) {
			if strings.TrimSpace(e.ProductName) == "" {
				continue
			}
			out = append(out, entity.ProductVariant{
				ID:                VariantID(docID, s, i, e.ProductName),
				ProductName:       e.ProductName,
				DocumentID:        docID,
				Section:           string(s),
				Locale:            locale,
				VersionNumber:     version,
				Position:          i,
				Headlines:         copyStrings(e.Headlines),
				AdvertisingCopy:   e.AdvertisingCopy,
				KeyFeatureBullets: copyStrings(e.KeyFeatureBullets),
				LegalReferences:   copyStrings(e.LegalReferences),
			})
		}
	}
	return out
}

// VariantID is stable for a document, section, position and product name.
func VariantID(docID uuid.UUID, s extraction.Section, position int, productName string) uuid.UUID {
	key := fmt.Sprintf("%s/%s/%d/%s", docID, s, position, productName)
	return uuid.NewSHA1(variantNamespace, []byte(key))
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
