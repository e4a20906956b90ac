package repository

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/copy-catalog/constants"
	"github.com/joseph-ayodele/copy-catalog/internal/common"
	"github.com/joseph-ayodele/copy-catalog/internal/entity"
)

const documentsTable = "documents"

var documentColumns = []string{
	"id", "filename", "file_kind", "content_hash", "language", "locale", "raw_text",
	"translated_text", "structured_data", "is_processed", "validation_confidence",
	"validation_issues", "needs_review", "original_file_path", "created_at", "updated_at",
}

// NewDocument is the input for registering an ingested file.
type NewDocument struct {
	Filename         string
	FileKind         constants.FileKind
	ContentHash      string
	OriginalFilePath string
}

type DocumentRepository interface {
	// CreateOrGet registers a document, deduplicating by content hash.
	CreateOrGet(ctx context.Context, in NewDocument) (*entity.Document, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	List(ctx context.Context, needsReviewOnly bool) ([]*entity.Document, error)
	// SetTranslation stores a translation of the raw text; missing rows are ignored.
	SetTranslation(ctx context.Context, id uuid.UUID, translated string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type documentRepo struct {
	db  *DB
	log *slog.Logger
}

func NewDocumentRepository(db *DB, log *slog.Logger) DocumentRepository {
	if log == nil {
		log = slog.Default()
	}
	return &documentRepo{db: db, log: log}
}

func (r *documentRepo) CreateOrGet(ctx context.Context, in NewDocument) (*entity.Document, bool, error) {
	if existing, err := r.getBy(ctx, r.db.drv, "content_hash", in.ContentHash); err == nil {
		r.log.Info("document deduplicated", "document_id", existing.ID, "hash", in.ContentHash)
		return existing, true, nil
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, false, err
	}

	now := time.Now().UTC()
	doc := &entity.Document{
		ID:               uuid.New(),
		Filename:         in.Filename,
		FileKind:         in.FileKind,
		ContentHash:      in.ContentHash,
		Language:         constants.UnknownLanguage,
		Locale:           constants.UnknownLocale,
		ValidationIssues: []string{},
		OriginalFilePath: in.OriginalFilePath,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	q, args := r.db.builder().Insert(documentsTable).
		Columns(documentColumns...).
		Values(doc.ID, doc.Filename, string(doc.FileKind), doc.ContentHash, doc.Language, doc.Locale, doc.RawText,
			nil, nil, false, nil, encodeStrings(doc.ValidationIssues), false, doc.OriginalFilePath, now, now).
		Query()
	if _, err := exec(ctx, r.db.drv, q, args); err != nil {
		r.log.Error("document insert failed", "filename", in.Filename, "error", err)
		return nil, false, fmt.Errorf("%w: insert document: %v", common.ErrDatabase, err)
	}
	r.log.Info("document created", "document_id", doc.ID, "filename", doc.Filename, "kind", doc.FileKind)
	return doc, false, nil
}

func (r *documentRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	return r.getBy(ctx, r.db.drv, "id", id)
}

func (r *documentRepo) getBy(ctx context.Context, q dialect.ExecQuerier, column string, value any) (*entity.Document, error) {
	return getDocument(ctx, r.db, q, column, value)
}

func (r *documentRepo) List(ctx context.Context, needsReviewOnly bool) ([]*entity.Document, error) {
	sel := r.db.builder().Select(documentColumns...).From(entsql.Table(documentsTable))
	if needsReviewOnly {
		sel.Where(entsql.EQ("needs_review", true))
	}
	sel.OrderBy(entsql.Desc("created_at"))
	sqlText, args := sel.Query()

	var out []*entity.Document
	err := query(ctx, r.db.drv, sqlText, args, func(rows *entsql.Rows) error {
		d, err := scanDocument(rows)
		if err != nil {
			return err
		}
		out = append(out, d)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list documents: %v", common.ErrDatabase, err)
	}
	return out, nil
}

func (r *documentRepo) SetTranslation(ctx context.Context, id uuid.UUID, translated string) error {
	q, args := r.db.builder().Update(documentsTable).
		Set("translated_text", translated).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.EQ("id", id)).
		Query()
	n, err := exec(ctx, r.db.drv, q, args)
	if err != nil {
		return fmt.Errorf("%w: set translation: %v", common.ErrDatabase, err)
	}
	if n == 0 {
		r.log.Warn("translation discarded: document gone", "document_id", id)
	}
	return nil
}

func (r *documentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	q, args := r.db.builder().Delete(documentsTable).Where(entsql.EQ("id", id)).Query()
	n, err := exec(ctx, r.db.drv, q, args)
	if err != nil {
		return fmt.Errorf("%w: delete document: %v", common.ErrDatabase, err)
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, common.ErrNotFound)
	}
	r.log.Info("document deleted", "document_id", id)
	return nil
}

// getDocument is shared with the version and catalog repositories so they can
// read inside their own transactions.
func getDocument(ctx context.Context, db *DB, q dialect.ExecQuerier, column string, value any) (*entity.Document, error) {
	sqlText, args := db.builder().Select(documentColumns...).
		From(entsql.Table(documentsTable)).
		Where(entsql.EQ(column, value)).
		Limit(1).
		Query()

	var doc *entity.Document
	err := query(ctx, q, sqlText, args, func(rows *entsql.Rows) error {
		d, err := scanDocument(rows)
		doc = d
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get document: %v", common.ErrDatabase, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("document %v: %w", value, common.ErrNotFound)
	}
	return doc, nil
}

func scanDocument(rows *entsql.Rows) (*entity.Document, error) {
	var (
		d          entity.Document
		kind       string
		translated stdsql.NullString
		structured stdsql.NullString
		confidence stdsql.NullFloat64
		issues     string
	)
	if err := rows.Scan(&d.ID, &d.Filename, &kind, &d.ContentHash, &d.Language, &d.Locale, &d.RawText,
		&translated, &structured, &d.IsProcessed, &confidence, &issues, &d.NeedsReview,
		&d.OriginalFilePath, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.FileKind = constants.FileKind(kind)
	d.TranslatedText = stringPtr(translated)
	if structured.Valid && structured.String != "" {
		d.StructuredData = []byte(structured.String)
	}
	d.ValidationConfidence = floatPtr(confidence)
	d.ValidationIssues = decodeStrings(issues)
	return &d, nil
}
