package repository

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/copy-catalog/constants"
	"github.com/joseph-ayodele/copy-catalog/internal/common"
	"github.com/joseph-ayodele/copy-catalog/internal/entity"
)

const jobsTable = "processing_jobs"

type JobRepository interface {
	Start(ctx context.Context, docID uuid.UUID) (*entity.ProcessingJob, error)
	FinishSuccess(ctx context.Context, jobID uuid.UUID) error
	FinishFailure(ctx context.Context, jobID uuid.UUID, stage, message string) error
	// FinishDiscarded marks a job whose document disappeared mid-flight.
	FinishDiscarded(ctx context.Context, jobID uuid.UUID) error
	ListByDocument(ctx context.Context, docID uuid.UUID) ([]*entity.ProcessingJob, error)
}

type jobRepo struct {
	db  *DB
	log *slog.Logger
}

func NewJobRepository(db *DB, log *slog.Logger) JobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &jobRepo{db: db, log: log}
}

func (r *jobRepo) Start(ctx context.Context, docID uuid.UUID) (*entity.ProcessingJob, error) {
	job := &entity.ProcessingJob{
		ID:         uuid.New(),
		DocumentID: docID,
		Status:     string(constants.JobStatusRunning),
		StartedAt:  time.Now().UTC(),
	}
	sqlText, args := r.db.builder().Insert(jobsTable).
		Columns("id", "document_id", "status", "started_at").
		Values(job.ID, job.DocumentID, job.Status, job.StartedAt).
		Query()
	if _, err := exec(ctx, r.db.drv, sqlText, args); err != nil {
		r.log.Error("processing_job start failed", "document_id", docID, "err", err)
		return nil, fmt.Errorf("%w: start job: %v", common.ErrDatabase, err)
	}
	r.log.Info("processing_job started", "job_id", job.ID, "document_id", docID)
	return job, nil
}

func (r *jobRepo) FinishSuccess(ctx context.Context, jobID uuid.UUID) error {
	if err := r.finish(ctx, jobID, constants.JobStatusSucceeded, nil, nil); err != nil {
		r.log.Error("processing_job finish(OK) failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Info("processing_job finished (SUCCEEDED)", "job_id", jobID)
	return nil
}

func (r *jobRepo) FinishFailure(ctx context.Context, jobID uuid.UUID, stage, message string) error {
	if err := r.finish(ctx, jobID, constants.JobStatusFailed, &stage, &message); err != nil {
		r.log.Error("processing_job finish(FAILED) failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Warn("processing_job finished (FAILED)", "job_id", jobID, "stage", stage, "error", message)
	return nil
}

func (r *jobRepo) FinishDiscarded(ctx context.Context, jobID uuid.UUID) error {
	if err := r.finish(ctx, jobID, constants.JobStatusDiscarded, nil, nil); err != nil {
		r.log.Error("processing_job finish(DISCARDED) failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Info("processing_job finished (DISCARDED)", "job_id", jobID)
	return nil
}

func (r *jobRepo) finish(ctx context.Context, jobID uuid.UUID, status constants.JobStatus, stage, message *string) error {
	sqlText, args := r.db.builder().Update(jobsTable).
		Set("status", string(status)).
		Set("stage", nullString(stage)).
		Set("error_message", nullString(message)).
		Set("finished_at", time.Now().UTC()).
		Where(entsql.EQ("id", jobID)).
		Query()
	// A cascade delete of the document may already have removed the row.
	if _, err := exec(ctx, r.db.drv, sqlText, args); err != nil {
		return fmt.Errorf("%w: finish job: %v", common.ErrDatabase, err)
	}
	return nil
}

func (r *jobRepo) ListByDocument(ctx context.Context, docID uuid.UUID) ([]*entity.ProcessingJob, error) {
	sqlText, args := r.db.builder().
		Select("id", "document_id", "status", "stage", "error_message", "started_at", "finished_at").
		From(entsql.Table(jobsTable)).
		Where(entsql.EQ("document_id", docID)).
		OrderBy(entsql.Desc("started_at")).
		Query()

	var out []*entity.ProcessingJob
	err := query(ctx, r.db.drv, sqlText, args, func(rows *entsql.Rows) error {
		var (
			j        entity.ProcessingJob
			stage    stdsql.NullString
			message  stdsql.NullString
			finished stdsql.NullTime
		)
		if err := rows.Scan(&j.ID, &j.DocumentID, &j.Status, &stage, &message, &j.StartedAt, &finished); err != nil {
			return err
		}
		j.Stage = stringPtr(stage)
		j.ErrorMessage = stringPtr(message)
		if finished.Valid {
			t := finished.Time
			j.FinishedAt = &t
		}
		out = append(out, &j)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list jobs: %v", common.ErrDatabase, err)
	}
	return out, nil
}
