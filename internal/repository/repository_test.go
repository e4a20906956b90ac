package repository

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/copy-catalog/constants"
	"github.com/joseph-ayodele/copy-catalog/internal/common"
	"github.com/joseph-ayodele/copy-catalog/internal/entity"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "_" + uuid.NewString()[:8]
	db, err := OpenSQLite(context.Background(), "file:"+name+"?mode=memory&cache=shared", nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func newDoc(t *testing.T, docs DocumentRepository, hash string) *entity.Document {
	t.Helper()
	d, dedup, err := docs.CreateOrGet(context.Background(), NewDocument{
		Filename:    hash + ".docx",
		FileKind:    constants.DOCX,
		ContentHash: hash,
	})
	require.NoError(t, err)
	require.False(t, dedup)
	return d
}

func TestDocuments_CreateOrGetDeduplicates(t *testing.T) {
	db := openTestDB(t)
	docs := NewDocumentRepository(db, nil)
	ctx := context.Background()

	first := newDoc(t, docs, "abc")
	assert.Equal(t, constants.UnknownLanguage, first.Language)
	assert.Equal(t, constants.UnknownLocale, first.Locale)
	assert.False(t, first.IsProcessed)

	again, dedup, err := docs.CreateOrGet(ctx, NewDocument{Filename: "other.docx", FileKind: constants.DOCX, ContentHash: "abc"})
	require.NoError(t, err)
	assert.True(t, dedup)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "abc.docx", again.Filename)

	all, err := docs.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDocuments_GetAndDelete(t *testing.T) {
	db := openTestDB(t)
	docs := NewDocumentRepository(db, nil)
	ctx := context.Background()

	_, err := docs.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)

	d := newDoc(t, docs, "h1")
	require.NoError(t, docs.SetTranslation(ctx, d.ID, "hello"))
	got, err := docs.GetByID(ctx, d.ID)
	require.NoError(t, err)
	require.NotNil(t, got.TranslatedText)
	assert.Equal(t, "hello", *got.TranslatedText)

	require.NoError(t, docs.Delete(ctx, d.ID))
	assert.ErrorIs(t, docs.Delete(ctx, d.ID), common.ErrNotFound)
	// Translation of a vanished document is a no-op.
	assert.NoError(t, docs.SetTranslation(ctx, d.ID, "late"))
}

func TestVersions_ApplyExtractionAppends(t *testing.T) {
	db := openTestDB(t)
	docs := NewDocumentRepository(db, nil)
	versions := NewVersionRepository(db, nil)
	ctx := context.Background()
	d := newDoc(t, docs, "v1")

	n, err := versions.NextVersionNumber(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	desc := "initial"
	v1, err := versions.ApplyExtraction(ctx, d.ID, ProcessingOutcome{
		Language: "English", Locale: "en",
		RawText:           "Phone X",
		StructuredData:    []byte(`{"ProductCopy":[]}`),
		Confidence:        0.925,
		Issues:            []string{},
		ChangeDescription: &desc,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, v1.VersionNumber)

	v2, err := versions.ApplyExtraction(ctx, d.ID, ProcessingOutcome{
		Language: "German", Locale: "de",
		StructuredData: []byte(`{"ProductCopy":[{"name":"X"}]}`),
		Confidence:     0.5,
		Issues:         []string{"weak"},
		NeedsReview:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, v2.VersionNumber)
	assert.True(t, v2.NeedsReview)

	got, err := docs.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, got.IsProcessed)
	assert.True(t, got.NeedsReview)
	assert.Equal(t, "de", got.Locale)
	assert.Equal(t, []string{"weak"}, got.ValidationIssues)

	list, err := versions.ListVersions(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	nums := []int{list[0].VersionNumber, list[1].VersionNumber}
	assert.ElementsMatch(t, []int{1, 2}, nums)

	_, err = versions.ApplyExtraction(ctx, uuid.New(), ProcessingOutcome{})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestVersions_RestoreAppendsNewVersion(t *testing.T) {
	db := openTestDB(t)
	docs := NewDocumentRepository(db, nil)
	versions := NewVersionRepository(db, nil)
	ctx := context.Background()
	d := newDoc(t, docs, "r1")

	v1, err := versions.ApplyExtraction(ctx, d.ID, ProcessingOutcome{
		StructuredData: []byte(`{"a":1}`), Confidence: 0.9, Issues: []string{}, NeedsReview: true,
	})
	require.NoError(t, err)
	_, err = versions.ApplyExtraction(ctx, d.ID, ProcessingOutcome{
		StructuredData: []byte(`{"a":2}`), Confidence: 0.95, Issues: []string{},
	})
	require.NoError(t, err)

	restored, err := versions.Restore(ctx, d.ID, v1.ID, "rollback")
	require.NoError(t, err)
	assert.Equal(t, 3, restored.VersionNumber)
	assert.JSONEq(t, `{"a":1}`, string(restored.StructuredData))
	assert.True(t, restored.NeedsReview)
	require.NotNil(t, restored.ChangeDescription)
	assert.Equal(t, "restored from version 1: rollback", *restored.ChangeDescription)

	got, err := docs.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(got.StructuredData))
	assert.True(t, got.NeedsReview)

	// Version 1 itself is untouched.
	orig, err := versions.GetVersion(ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, orig.VersionNumber)
}

func TestVersions_RestoreRejectsForeignVersion(t *testing.T) {
	db := openTestDB(t)
	docs := NewDocumentRepository(db, nil)
	versions := NewVersionRepository(db, nil)
	ctx := context.Background()
	a := newDoc(t, docs, "a")
	b := newDoc(t, docs, "b")

	va, err := versions.ApplyExtraction(ctx, a.ID, ProcessingOutcome{StructuredData: []byte(`{}`), Issues: []string{}})
	require.NoError(t, err)

	_, err = versions.Restore(ctx, b.ID, va.ID, "")
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = versions.Restore(ctx, a.ID, uuid.New(), "")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func variant(name, section string, pos int) entity.ProductVariant {
	return entity.ProductVariant{
		ID:              uuid.New(),
		ProductName:     name,
		Section:         section,
		Locale:          "en",
		VersionNumber:   1,
		Position:        pos,
		Headlines:       []string{name + " headline"},
		AdvertisingCopy: "copy{{sup:1}}",
		LegalReferences: []string{"1 Terms apply."},
	}
}

func TestCatalog_ReplaceVariantsIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	docs := NewDocumentRepository(db, nil)
	catalog := NewCatalogRepository(db, nil)
	ctx := context.Background()
	d := newDoc(t, docs, "c1")

	in := []entity.ProductVariant{
		variant("Phone X", "ProductCopy", 0),
		variant("Phone Y", "ProductCopy", 1),
		variant("Phone X", "Accessories", 0),
	}
	stats, err := catalog.ReplaceVariants(ctx, d.ID, in)
	require.NoError(t, err)
	assert.Equal(t, ReplaceStats{Deleted: 0, Inserted: 3, ProductsCreated: 2}, stats)

	// Same input again; fresh variant ids to mimic a re-run.
	for i := range in {
		in[i].ID = uuid.New()
	}
	stats, err = catalog.ReplaceVariants(ctx, d.ID, in)
	require.NoError(t, err)
	assert.Equal(t, ReplaceStats{Deleted: 3, Inserted: 3, ProductsCreated: 0}, stats)

	products, err := catalog.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Phone X", products[0].Name)
	assert.Equal(t, "Phone Y", products[1].Name)

	px, err := catalog.GetProduct(ctx, products[0].ID)
	require.NoError(t, err)
	require.Len(t, px.Variants, 2)
	assert.Equal(t, "Accessories", px.Variants[0].Section)
	assert.Equal(t, "ProductCopy", px.Variants[1].Section)
	assert.Equal(t, []string{"1 Terms apply."}, px.Variants[1].LegalReferences)
	assert.Equal(t, "copy{{sup:1}}", px.Variants[1].AdvertisingCopy)

	byDoc, err := catalog.ListVariantsByDocument(ctx, d.ID)
	require.NoError(t, err)
	assert.Len(t, byDoc, 3)
}

func TestCatalog_ReplaceVariantsSharesProductsAcrossDocuments(t *testing.T) {
	db := openTestDB(t)
	docs := NewDocumentRepository(db, nil)
	catalog := NewCatalogRepository(db, nil)
	ctx := context.Background()
	a := newDoc(t, docs, "a")
	b := newDoc(t, docs, "b")

	_, err := catalog.ReplaceVariants(ctx, a.ID, []entity.ProductVariant{variant("Tablet", "ProductCopy", 0)})
	require.NoError(t, err)
	stats, err := catalog.ReplaceVariants(ctx, b.ID, []entity.ProductVariant{variant("Tablet", "ProductCopy", 0)})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.ProductsCreated)
	assert.Equal(t, 0, stats.Deleted)

	// Clearing one document leaves the other's variants and the product.
	stats, err = catalog.ReplaceVariants(ctx, a.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Deleted)

	products, err := catalog.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)
	p, err := catalog.GetProduct(ctx, products[0].ID)
	require.NoError(t, err)
	require.Len(t, p.Variants, 1)
	assert.Equal(t, b.ID, p.Variants[0].DocumentID)
}

func TestCatalog_GetProductNotFound(t *testing.T) {
	db := openTestDB(t)
	catalog := NewCatalogRepository(db, nil)
	_, err := catalog.GetProduct(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestJobs_Lifecycle(t *testing.T) {
	db := openTestDB(t)
	docs := NewDocumentRepository(db, nil)
	jobs := NewJobRepository(db, nil)
	ctx := context.Background()
	d := newDoc(t, docs, "j1")

	ok, err := jobs.Start(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusRunning), ok.Status)
	require.NoError(t, jobs.FinishSuccess(ctx, ok.ID))

	bad, err := jobs.Start(ctx, d.ID)
	require.NoError(t, err)
	require.NoError(t, jobs.FinishFailure(ctx, bad.ID, "structuring", "provider down"))

	gone, err := jobs.Start(ctx, d.ID)
	require.NoError(t, err)
	require.NoError(t, jobs.FinishDiscarded(ctx, gone.ID))

	list, err := jobs.ListByDocument(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	byID := map[uuid.UUID]*entity.ProcessingJob{}
	for _, j := range list {
		byID[j.ID] = j
		assert.NotNil(t, j.FinishedAt)
	}
	assert.Equal(t, string(constants.JobStatusSucceeded), byID[ok.ID].Status)
	assert.Equal(t, string(constants.JobStatusFailed), byID[bad.ID].Status)
	require.NotNil(t, byID[bad.ID].Stage)
	assert.Equal(t, "structuring", *byID[bad.ID].Stage)
	require.NotNil(t, byID[bad.ID].ErrorMessage)
	assert.Equal(t, "provider down", *byID[bad.ID].ErrorMessage)
	assert.Equal(t, string(constants.JobStatusDiscarded), byID[gone.ID].Status)
}
