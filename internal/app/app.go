// Package app wires configuration into a ready-to-run processing stack.
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/copy-catalog/internal/async"
	"github.com/joseph-ayodele/copy-catalog/internal/catalog"
	"github.com/joseph-ayodele/copy-catalog/internal/common"
	"github.com/joseph-ayodele/copy-catalog/internal/consensus"
	"github.com/joseph-ayodele/copy-catalog/internal/export"
	"github.com/joseph-ayodele/copy-catalog/internal/extract"
	"github.com/joseph-ayodele/copy-catalog/internal/ingest"
	"github.com/joseph-ayodele/copy-catalog/internal/language"
	"github.com/joseph-ayodele/copy-catalog/internal/llm"
	"github.com/joseph-ayodele/copy-catalog/internal/llm/openai"
	"github.com/joseph-ayodele/copy-catalog/internal/llm/vertex"
	"github.com/joseph-ayodele/copy-catalog/internal/pipeline"
	"github.com/joseph-ayodele/copy-catalog/internal/repository"
	"github.com/joseph-ayodele/copy-catalog/internal/server"
	"github.com/joseph-ayodele/copy-catalog/internal/storage"
	"github.com/joseph-ayodele/copy-catalog/internal/structuring"
)

// App holds every long-lived component of the service.
type App struct {
	DB        *repository.DB
	Documents repository.DocumentRepository
	Versions  repository.VersionRepository
	Catalog   repository.CatalogRepository
	Jobs      repository.JobRepository
	Blobs     storage.FileStore
	Projector *catalog.Projector
	Processor *pipeline.Processor
	Queue     *async.ProcessorQueue
	Ingestor  *ingest.FSIngestor
	Exporter  *export.Service

	closers []func() error
	logger  *slog.Logger
}

// Build opens the database, runs migrations and wires the pipeline.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{logger: logger}

	db, err := repository.Open(ctx, repository.Config{
		Driver:           cfg.Database.Driver,
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, common.WrapError(err, "open database")
	}
	a.DB = db
	a.closers = append(a.closers, func() error { db.Close(); return nil })

	if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
		a.Close()
		return nil, common.WrapError(err, "ping database")
	}
	if err := db.Migrate(ctx); err != nil {
		a.Close()
		return nil, common.WrapError(err, "migrate")
	}

	a.Blobs, err = storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		a.Close()
		return nil, common.WrapError(err, "open storage")
	}

	a.Documents = repository.NewDocumentRepository(db, logger)
	a.Versions = repository.NewVersionRepository(db, logger)
	a.Catalog = repository.NewCatalogRepository(db, logger)
	a.Jobs = repository.NewJobRepository(db, logger)

	oa := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)

	primary, err := a.judge(ctx, cfg, cfg.Judges.Primary, cfg.Judges.PrimaryModel)
	if err != nil {
		a.Close()
		return nil, err
	}
	secondary, err := a.judge(ctx, cfg, cfg.Judges.Secondary, cfg.Judges.SecondaryModel)
	if err != nil {
		a.Close()
		return nil, err
	}

	var translator llm.Translator
	if cfg.Pipeline.Translate {
		translator = oa
	}

	a.Projector = catalog.NewProjector(a.Documents, a.Versions, a.Catalog, logger)
	a.Processor = pipeline.NewProcessor(pipeline.Deps{
		Documents:  a.Documents,
		Versions:   a.Versions,
		Jobs:       a.Jobs,
		Blobs:      a.Blobs,
		Extractor:  extract.NewExtractor(extract.Config{
			Pdftotext: cfg.Pipeline.Pdftotext,
			MaxBytes:  cfg.Pipeline.MaxFileBytes,
		}, logger),
		Detector:   language.NewDetector(oa, cfg.Pipeline.LanguageTimeout, logger),
		Structurer: structuring.NewClient(oa, cfg.Pipeline.StructuringTimeout, logger),
		Validator:  consensus.NewValidator(primary, secondary, cfg.Judges.Timeout, logger),
		Projector:  a.Projector,
		Translator: translator,
	}, logger)

	a.Queue = async.NewProcessorQueue(a.Processor, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
	)
	a.Ingestor = ingest.NewFSIngestor(a.Documents, a.Blobs, logger)
	a.Exporter = export.NewService(a.Catalog, logger)
	return a, nil
}

// judge builds the named judge provider. Vertex clients are closed with the app.
func (a *App) judge(ctx context.Context, cfg *common.Config, provider, model string) (llm.Judge, error) {
	switch provider {
	case "vertex":
		if model == "" {
			model = cfg.Vertex.Model
		}
		vc, err := vertex.NewClient(ctx, vertex.Config{Project: cfg.Vertex.Project, Region: cfg.Vertex.Region, Model: model}, a.logger)
		if err != nil {
			return nil, common.WrapError(err, "vertex judge")
		}
		a.closers = append(a.closers, vc.Close)
		return vc, nil
	case "openai", "":
		if model == "" {
			model = cfg.LLM.Model
		}
		return openai.NewClient(openai.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   model,
			Timeout: cfg.LLM.Timeout,
		}, a.logger), nil
	default:
		return nil, common.NewAppError("CONFIG_ERROR", "unknown judge provider "+provider, common.ErrInvalidInput)
	}
}

// Service returns the gRPC catalog service backed by this app.
func (a *App) Service() *server.CatalogService {
	return server.NewCatalogService(server.Deps{
		Documents: a.Documents,
		Versions:  a.Versions,
		Catalog:   a.Catalog,
		Jobs:      a.Jobs,
		Processor: a.Processor,
		Projector: a.Projector,
		Queue:     a.Queue,
		Ingestor:  a.Ingestor,
		Exporter:  a.Exporter,
	}, a.logger)
}

// Close drains the queue and releases clients in reverse order of creation.
func (a *App) Close() error {
	if a.Queue != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		a.Queue.Shutdown(ctx)
		cancel()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
