// Package pipeline runs one document through extraction, structuring,
// validation, persistence and catalog projection.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/copy-catalog/constants"
	"github.com/joseph-ayodele/copy-catalog/internal/catalog"
	"github.com/joseph-ayodele/copy-catalog/internal/common"
	"github.com/joseph-ayodele/copy-catalog/internal/consensus"
	"github.com/joseph-ayodele/copy-catalog/internal/entity"
	"github.com/joseph-ayodele/copy-catalog/internal/extract"
	"github.com/joseph-ayodele/copy-catalog/internal/language"
	"github.com/joseph-ayodele/copy-catalog/internal/llm"
	"github.com/joseph-ayodele/copy-catalog/internal/repository"
	"github.com/joseph-ayodele/copy-catalog/internal/storage"
	"github.com/joseph-ayodele/copy-catalog/internal/structuring"
)

type TextExtractor interface {
	Extract(ctx context.Context, data []byte, kind constants.FileKind) (extract.Result, error)
}

type LanguageDetector interface {
	Detect(ctx context.Context, text string) language.Detection
}

type Structurer interface {
	Structure(ctx context.Context, text, filename string) (structuring.Result, error)
}

type Validator interface {
	Validate(ctx context.Context, source string, payload []byte, localIssues []string) consensus.Verdict
}

type Projector interface {
	Project(ctx context.Context, docID uuid.UUID) (catalog.ProjectionResult, error)
}

// Deps are the collaborators of a Processor. Translator is optional.
type Deps struct {
	Documents  repository.DocumentRepository
	Versions   repository.VersionRepository
	Jobs       repository.JobRepository
	Blobs      storage.FileStore
	Extractor  TextExtractor
	Detector   LanguageDetector
	Structurer Structurer
	Validator  Validator
	Projector  Projector
	Translator llm.Translator
}

// Outcome summarizes a processing attempt.
type Outcome struct {
	DocumentID uuid.UUID
	JobID      uuid.UUID
	Language   language.Detection
	Verdict    consensus.Verdict
	Version    *entity.DocumentVersion
	Projection catalog.ProjectionResult
	// Discarded is set when the document vanished before results were written.
	Discarded bool
}

// Processor coordinates the stages for one document at a time. Callers must
// not process the same document concurrently; the async queue guarantees that.
type Processor struct {
	deps   Deps
	logger *slog.Logger
}

func NewProcessor(deps Deps, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{deps: deps, logger: logger}
}

// ProcessDocument runs every stage for docID. On failure the error is a
// *StageError, the job row records the stage, and the document's prior
// extraction is left as it was.
func (p *Processor) ProcessDocument(ctx context.Context, docID uuid.UUID, changeDescription string) (Outcome, error) {
	start := time.Now()
	out := Outcome{DocumentID: docID}
	ctx = common.WithDocumentID(ctx, docID.String())
	log := p.logger.With("document_id", docID)

	// load
	doc, err := p.deps.Documents.GetByID(ctx, docID)
	if err != nil {
		log.Error("pipeline.load.failed", "error", err)
		return out, &StageError{Stage: StageLoad, Err: err}
	}
	job, err := p.deps.Jobs.Start(ctx, docID)
	if err != nil {
		return out, &StageError{Stage: StageLoad, Err: err}
	}
	out.JobID = job.ID

	fail := func(stage Stage, err error) (Outcome, error) {
		// Record the failure even when ctx is already cancelled.
		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if ferr := p.deps.Jobs.FinishFailure(recCtx, job.ID, string(stage), err.Error()); ferr != nil {
			log.Warn("pipeline.job.record_failed", "job_id", job.ID, "error", ferr)
		}
		log.Error("pipeline."+string(stage)+".failed",
			"job_id", job.ID,
			"error", err,
			"retryable", common.IsRetryable(err),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return out, &StageError{Stage: stage, Err: err}
	}
	discard := func(stage Stage) (Outcome, error) {
		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = p.deps.Jobs.FinishDiscarded(recCtx, job.ID)
		log.Warn("pipeline.discarded", "stage", stage, "reason", "document no longer exists")
		out.Discarded = true
		return out, nil
	}

	// extraction
	data, err := storage.ReadAll(ctx, p.deps.Blobs, doc.OriginalFilePath)
	if err != nil {
		return fail(StageExtraction, fmt.Errorf("read original: %w", err))
	}
	text, err := p.deps.Extractor.Extract(ctx, data, doc.FileKind)
	if err != nil {
		return fail(StageExtraction, err)
	}
	log.Info("pipeline.extraction.ok", "method", text.Method, "pages", text.Pages, "chars", len(text.Text))

	// structuring, with language detection alongside
	var (
		det  language.Detection
		sres structuring.Result
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		det = p.deps.Detector.Detect(gctx, text.Text)
		return nil
	})
	g.Go(func() error {
		var err error
		sres, err = p.deps.Structurer.Structure(gctx, text.Text, doc.Filename)
		return err
	})
	if err := g.Wait(); err != nil {
		return fail(StageStructuring, err)
	}
	out.Language = det
	log.Info("pipeline.structuring.ok", "language", det.Name, "locale", det.Locale, "entries", sres.Extraction.EntryCount())

	// validation
	local := append(append([]string{}, sres.Issues...), sres.Extraction.CrossReferenceIssues()...)
	verdict := p.deps.Validator.Validate(ctx, text.Text, sres.Canonical, local)
	if err := ctx.Err(); err != nil {
		return fail(StageValidation, err)
	}
	out.Verdict = verdict

	// persistence
	var desc *string
	if changeDescription != "" {
		desc = &changeDescription
	}
	version, err := p.deps.Versions.ApplyExtraction(ctx, docID, repository.ProcessingOutcome{
		Language:          det.Name,
		Locale:            det.Locale,
		RawText:           text.Text,
		StructuredData:    sres.Canonical,
		Confidence:        verdict.Confidence,
		Issues:            verdict.Issues,
		NeedsReview:       verdict.NeedsReview(),
		ChangeDescription: desc,
	})
	if errors.Is(err, common.ErrNotFound) {
		return discard(StagePersistence)
	}
	if err != nil {
		return fail(StagePersistence, err)
	}
	out.Version = version
	p.translate(ctx, log, docID, text.Text, det)

	// projection
	proj, err := p.deps.Projector.Project(ctx, docID)
	if errors.Is(err, common.ErrNotFound) {
		return discard(StageProjection)
	}
	if err != nil {
		return fail(StageProjection, err)
	}
	out.Projection = proj

	if err := p.deps.Jobs.FinishSuccess(ctx, job.ID); err != nil {
		log.Warn("pipeline.job.record_failed", "job_id", job.ID, "error", err)
	}
	log.Info("pipeline.ok",
		"job_id", job.ID,
		"version", version.VersionNumber,
		"confidence", verdict.Confidence,
		"passed", verdict.Passed,
		"needs_review", verdict.NeedsReview(),
		"variants", proj.Variants,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// translate stores an English rendering of non-English text. Failures are
// logged only; translation never fails an attempt.
func (p *Processor) translate(ctx context.Context, log *slog.Logger, docID uuid.UUID, text string, det language.Detection) {
	if p.deps.Translator == nil || det.IsEnglish() || det.Locale == constants.UnknownLocale {
		return
	}
	translated, err := p.deps.Translator.Translate(ctx, text, "English")
	if err != nil {
		log.Warn("pipeline.translation.failed", "error", err)
		return
	}
	if err := p.deps.Documents.SetTranslation(ctx, docID, translated); err != nil {
		log.Warn("pipeline.translation.store_failed", "error", err)
	}
}
