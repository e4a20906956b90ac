package repository

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/copy-catalog/internal/common"
	"github.com/joseph-ayodele/copy-catalog/internal/entity"
)

const versionsTable = "document_versions"

var versionColumns = []string{
	"id", "document_id", "version_number", "structured_data", "validation_confidence",
	"validation_issues", "needs_review", "change_description", "created_at",
}

// NewVersion is a snapshot to append to a document's history.
type NewVersion struct {
	DocumentID           uuid.UUID
	StructuredData       []byte
	ValidationConfidence *float64
	ValidationIssues     []string
	NeedsReview          bool
	ChangeDescription    *string
}

// ProcessingOutcome is everything a successful processing attempt writes back.
type ProcessingOutcome struct {
	Language          string
	Locale            string
	RawText           string
	StructuredData    []byte
	Confidence        float64
	Issues            []string
	NeedsReview       bool
	ChangeDescription *string
}

type VersionRepository interface {
	NextVersionNumber(ctx context.Context, docID uuid.UUID) (int, error)
	CreateVersion(ctx context.Context, in NewVersion) (*entity.DocumentVersion, error)
	ListVersions(ctx context.Context, docID uuid.UUID) ([]*entity.DocumentVersion, error)
	GetVersion(ctx context.Context, versionID uuid.UUID) (*entity.DocumentVersion, error)
	// Restore copies an old version onto the live document and records the
	// restore as a new version. Older versions are never touched.
	Restore(ctx context.Context, docID, versionID uuid.UUID, description string) (*entity.DocumentVersion, error)
	// ApplyExtraction updates the live document and appends a version in one
	// transaction. A vanished document yields ErrNotFound and writes nothing.
	ApplyExtraction(ctx context.Context, docID uuid.UUID, out ProcessingOutcome) (*entity.DocumentVersion, error)
}

type versionRepo struct {
	db  *DB
	log *slog.Logger
}

func NewVersionRepository(db *DB, log *slog.Logger) VersionRepository {
	if log == nil {
		log = slog.Default()
	}
	return &versionRepo{db: db, log: log}
}

func (r *versionRepo) NextVersionNumber(ctx context.Context, docID uuid.UUID) (int, error) {
	n, err := r.nextVersionNumber(ctx, r.db.drv, docID)
	if err != nil {
		return 0, fmt.Errorf("%w: next version number: %v", common.ErrDatabase, err)
	}
	return n, nil
}

func (r *versionRepo) nextVersionNumber(ctx context.Context, q dialect.ExecQuerier, docID uuid.UUID) (int, error) {
	sqlText, args := r.db.builder().
		Select(entsql.Max("version_number")).
		From(entsql.Table(versionsTable)).
		Where(entsql.EQ("document_id", docID)).
		Query()

	var current stdsql.NullInt64
	err := query(ctx, q, sqlText, args, func(rows *entsql.Rows) error {
		return rows.Scan(&current)
	})
	if err != nil {
		return 0, err
	}
	return int(current.Int64) + 1, nil
}

func (r *versionRepo) CreateVersion(ctx context.Context, in NewVersion) (*entity.DocumentVersion, error) {
	var v *entity.DocumentVersion
	err := r.db.withTx(ctx, func(tx dialect.Tx) error {
		var err error
		v, err = r.appendVersion(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create version: %v", common.ErrDatabase, err)
	}
	r.log.Info("version created", "document_id", in.DocumentID, "version", v.VersionNumber)
	return v, nil
}

// appendVersion numbers and inserts a version inside tx.
func (r *versionRepo) appendVersion(ctx context.Context, tx dialect.Tx, in NewVersion) (*entity.DocumentVersion, error) {
	next, err := r.nextVersionNumber(ctx, tx, in.DocumentID)
	if err != nil {
		return nil, err
	}
	issues := in.ValidationIssues
	if issues == nil {
		issues = []string{}
	}
	v := &entity.DocumentVersion{
		ID:                   uuid.New(),
		DocumentID:           in.DocumentID,
		VersionNumber:        next,
		StructuredData:       in.StructuredData,
		ValidationConfidence: in.ValidationConfidence,
		ValidationIssues:     issues,
		NeedsReview:          in.NeedsReview,
		ChangeDescription:    in.ChangeDescription,
		CreatedAt:            time.Now().UTC(),
	}
	sqlText, args := r.db.builder().Insert(versionsTable).
		Columns(versionColumns...).
		Values(v.ID, v.DocumentID, v.VersionNumber, string(v.StructuredData), nullFloat(v.ValidationConfidence),
			encodeStrings(v.ValidationIssues), v.NeedsReview, nullString(v.ChangeDescription), v.CreatedAt).
		Query()
	if _, err := exec(ctx, tx, sqlText, args); err != nil {
		return nil, err
	}
	return v, nil
}

func (r *versionRepo) ListVersions(ctx context.Context, docID uuid.UUID) ([]*entity.DocumentVersion, error) {
	sqlText, args := r.db.builder().Select(versionColumns...).
		From(entsql.Table(versionsTable)).
		Where(entsql.EQ("document_id", docID)).
		OrderBy(entsql.Asc("version_number")).
		Query()

	var out []*entity.DocumentVersion
	err := query(ctx, r.db.drv, sqlText, args, func(rows *entsql.Rows) error {
		v, err := scanVersion(rows)
		if err != nil {
			return err
		}
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list versions: %v", common.ErrDatabase, err)
	}
	return out, nil
}

func (r *versionRepo) GetVersion(ctx context.Context, versionID uuid.UUID) (*entity.DocumentVersion, error) {
	return r.getVersion(ctx, r.db.drv, versionID)
}

func (r *versionRepo) getVersion(ctx context.Context, q dialect.ExecQuerier, versionID uuid.UUID) (*entity.DocumentVersion, error) {
	sqlText, args := r.db.builder().Select(versionColumns...).
		From(entsql.Table(versionsTable)).
		Where(entsql.EQ("id", versionID)).
		Limit(1).
		Query()

	var v *entity.DocumentVersion
	err := query(ctx, q, sqlText, args, func(rows *entsql.Rows) error {
		var err error
		v, err = scanVersion(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: get version: %v", common.ErrDatabase, err)
	}
	if v == nil {
		return nil, fmt.Errorf("version %s: %w", versionID, common.ErrNotFound)
	}
	return v, nil
}

func (r *versionRepo) Restore(ctx context.Context, docID, versionID uuid.UUID, description string) (*entity.DocumentVersion, error) {
	var restored *entity.DocumentVersion
	err := r.db.withTx(ctx, func(tx dialect.Tx) error {
		src, err := r.getVersion(ctx, tx, versionID)
		if err != nil {
			return err
		}
		if src.DocumentID != docID {
			return fmt.Errorf("version %s does not belong to document %s: %w", versionID, docID, common.ErrInvalidInput)
		}

		n, err := r.updateDocument(ctx, tx, docID, func(u *entsql.UpdateBuilder) {
			u.Set("structured_data", string(src.StructuredData)).
				Set("is_processed", len(src.StructuredData) > 0).
				Set("validation_confidence", nullFloat(src.ValidationConfidence)).
				Set("validation_issues", encodeStrings(src.ValidationIssues)).
				Set("needs_review", src.NeedsReview)
		})
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("document %s: %w", docID, common.ErrNotFound)
		}

		change := fmt.Sprintf("restored from version %d", src.VersionNumber)
		if description != "" {
			change += ": " + description
		}
		restored, err = r.appendVersion(ctx, tx, NewVersion{
			DocumentID:           docID,
			StructuredData:       src.StructuredData,
			ValidationConfidence: src.ValidationConfidence,
			ValidationIssues:     src.ValidationIssues,
			NeedsReview:          src.NeedsReview,
			ChangeDescription:    &change,
		})
		return err
	})
	if err != nil {
		r.log.Error("version restore failed", "document_id", docID, "version_id", versionID, "error", err)
		return nil, wrapDB("restore version", err)
	}
	r.log.Info("version restored", "document_id", docID, "from_version_id", versionID, "new_version", restored.VersionNumber)
	return restored, nil
}

func (r *versionRepo) ApplyExtraction(ctx context.Context, docID uuid.UUID, out ProcessingOutcome) (*entity.DocumentVersion, error) {
	var v *entity.DocumentVersion
	err := r.db.withTx(ctx, func(tx dialect.Tx) error {
		n, err := r.updateDocument(ctx, tx, docID, func(u *entsql.UpdateBuilder) {
			u.Set("language", out.Language).
				Set("locale", out.Locale).
				Set("raw_text", out.RawText).
				Set("structured_data", string(out.StructuredData)).
				Set("is_processed", true).
				Set("validation_confidence", out.Confidence).
				Set("validation_issues", encodeStrings(out.Issues)).
				Set("needs_review", out.NeedsReview)
		})
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("document %s: %w", docID, common.ErrNotFound)
		}
		confidence := out.Confidence
		v, err = r.appendVersion(ctx, tx, NewVersion{
			DocumentID:           docID,
			StructuredData:       out.StructuredData,
			ValidationConfidence: &confidence,
			ValidationIssues:     out.Issues,
			NeedsReview:          out.NeedsReview,
			ChangeDescription:    out.ChangeDescription,
		})
		return err
	})
	if err != nil {
		return nil, wrapDB("apply extraction", err)
	}
	r.log.Info("extraction applied", "document_id", docID, "version", v.VersionNumber, "needs_review", out.NeedsReview)
	return v, nil
}

func (r *versionRepo) updateDocument(ctx context.Context, tx dialect.Tx, docID uuid.UUID, set func(u *entsql.UpdateBuilder)) (int64, error) {
	u := r.db.builder().Update(documentsTable)
	set(u)
	u.Set("updated_at", time.Now().UTC()).Where(entsql.EQ("id", docID))
	sqlText, args := u.Query()
	return exec(ctx, tx, sqlText, args)
}

func scanVersion(rows *entsql.Rows) (*entity.DocumentVersion, error) {
	var (
		v          entity.DocumentVersion
		structured stdsql.NullString
		confidence stdsql.NullFloat64
		issues     string
		change     stdsql.NullString
	)
	if err := rows.Scan(&v.ID, &v.DocumentID, &v.VersionNumber, &structured, &confidence, &issues, &v.NeedsReview, &change, &v.CreatedAt); err != nil {
		return nil, err
	}
	if structured.Valid && structured.String != "" {
		v.StructuredData = []byte(structured.String)
	}
	v.ValidationConfidence = floatPtr(confidence)
	v.ValidationIssues = decodeStrings(issues)
	v.ChangeDescription = stringPtr(change)
	return &v, nil
}
