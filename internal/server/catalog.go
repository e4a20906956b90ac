package server

import (
	"context"
	"encoding/base64"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/copy-catalog/internal/async"
	"github.com/joseph-ayodele/copy-catalog/internal/common"
	"github.com/joseph-ayodele/copy-catalog/internal/export"
	"github.com/joseph-ayodele/copy-catalog/internal/ingest"
	"github.com/joseph-ayodele/copy-catalog/internal/pipeline"
	"github.com/joseph-ayodele/copy-catalog/internal/repository"
)

// Deps are the collaborators of CatalogService. Queue and Exporter are optional.
type Deps struct {
	Documents repository.DocumentRepository
	Versions  repository.VersionRepository
	Catalog   repository.CatalogRepository
	Jobs      repository.JobRepository
	Processor async.DocumentProcessor
	Projector pipeline.Projector
	Queue     async.Queue
	Ingestor  ingest.Ingestor
	Exporter  *export.Service
}

type CatalogService struct {
	deps   Deps
	logger *slog.Logger
}

var _ CatalogServer = (*CatalogService)(nil)

func NewCatalogService(deps Deps, logger *slog.Logger) *CatalogService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogService{deps: deps, logger: logger}
}

// ProcessDocument runs the pipeline for document_id. With async=true the
// document is queued and the call returns at once.
func (s *CatalogService) ProcessDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	docID, err := uuidField(req, "document_id")
	if err != nil {
		return nil, err
	}
	desc := stringField(req, "change_description")

	if boolField(req, "async", false) {
		if s.deps.Queue == nil {
			return nil, common.InvalidArgumentError("async processing is not enabled")
		}
		if _, err := s.deps.Documents.GetByID(ctx, docID); err != nil {
			return nil, common.ToStatus(err)
		}
		if err := s.deps.Queue.Enqueue(ctx, async.Job{DocumentID: docID, ChangeDescription: desc, SubmittedAt: time.Now(), TraceID: common.RequestIDFromContext(ctx)}); err != nil {
			s.logger.Warn("process.enqueue_failed", "document_id", docID, "error", err)
			return nil, common.ToStatus(common.NewCapabilityError("queue", err))
		}
		s.logger.Info("process.queued", "document_id", docID)
		return toStruct(map[string]any{"document_id": docID.String(), "queued": true})
	}

	out, err := s.deps.Processor.ProcessDocument(ctx, docID, desc)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return toStruct(outcomeMap(out))
}

func (s *CatalogService) GetDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	docID, err := uuidField(req, "document_id")
	if err != nil {
		return nil, err
	}
	doc, err := s.deps.Documents.GetByID(ctx, docID)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return toStruct(documentMap(doc, boolField(req, "include_raw_text", false)))
}

func (s *CatalogService) ListDocuments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	docs, err := s.deps.Documents.List(ctx, boolField(req, "needs_review_only", false))
	if err != nil {
		return nil, common.ToStatus(err)
	}
	items := make([]any, 0, len(docs))
	for _, d := range docs {
		items = append(items, documentMap(d, false))
	}
	return toStruct(map[string]any{"documents": items})
}

func (s *CatalogService) ListVersions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	docID, err := uuidField(req, "document_id")
	if err != nil {
		return nil, err
	}
	if _, err := s.deps.Documents.GetByID(ctx, docID); err != nil {
		return nil, common.ToStatus(err)
	}
	versions, err := s.deps.Versions.ListVersions(ctx, docID)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	items := make([]any, 0, len(versions))
	for _, v := range versions {
		items = append(items, versionMap(v))
	}
	return toStruct(map[string]any{"versions": items})
}

// RestoreVersion makes an earlier version current again by appending a new
// version, then rebuilds the document's catalog variants from it.
func (s *CatalogService) RestoreVersion(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	docID, err := uuidField(req, "document_id")
	if err != nil {
		return nil, err
	}
	versionID, err := uuidField(req, "version_id")
	if err != nil {
		return nil, err
	}

	v, err := s.deps.Versions.Restore(ctx, docID, versionID, stringField(req, "description"))
	if err != nil {
		return nil, common.ToStatus(err)
	}
	s.logger.Info("restore.ok", "document_id", docID, "from_version_id", versionID, "version", v.VersionNumber)

	proj, err := s.deps.Projector.Project(ctx, docID)
	if err != nil {
		s.logger.Error("restore.projection_failed", "document_id", docID, "version", v.VersionNumber, "error", err)
		return nil, common.ToStatus(&pipeline.StageError{Stage: pipeline.StageProjection, Err: err})
	}
	return toStruct(map[string]any{
		"version":    versionMap(v),
		"projection": projectionMap(proj),
	})
}

func (s *CatalogService) ListJobs(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	docID, err := uuidField(req, "document_id")
	if err != nil {
		return nil, err
	}
	jobs, err := s.deps.Jobs.ListByDocument(ctx, docID)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	items := make([]any, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, jobMap(j))
	}
	return toStruct(map[string]any{"jobs": items})
}

func (s *CatalogService) ListProducts(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	products, err := s.deps.Catalog.ListProducts(ctx)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	items := make([]any, 0, len(products))
	for _, p := range products {
		items = append(items, productMap(p))
	}
	return toStruct(map[string]any{"products": items})
}

func (s *CatalogService) GetProduct(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := uuidField(req, "product_id")
	if err != nil {
		return nil, err
	}
	p, err := s.deps.Catalog.GetProduct(ctx, id)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	m := productMap(p.Product)
	variants := make([]any, 0, len(p.Variants))
	for _, v := range p.Variants {
		variants = append(variants, variantMap(v))
	}
	m["variants"] = variants
	return toStruct(m)
}

// IngestFile registers a file from the server's disk. New documents are
// processed unless process=false; async=true queues them instead.
func (s *CatalogService) IngestFile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path := stringField(req, "path")
	if path == "" {
		s.logger.Error("ingest request missing path")
		return nil, common.InvalidArgumentError("path is required")
	}

	s.logger.Info("starting file ingest", "path", path)
	r, err := s.deps.Ingestor.IngestPath(ctx, path)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	s.logger.Info("file ingest succeeded", "document_id", r.DocumentID, "deduplicated", r.Deduplicated)

	resp := ingestMap(r)
	if r.Deduplicated || !boolField(req, "process", true) {
		return toStruct(resp)
	}
	if perr := s.dispatch(ctx, r, boolField(req, "async", false)); perr != nil {
		resp["error"] = perr.Error()
	}
	return toStruct(resp)
}

// IngestDirectory ingests every supported file under root_path and queues
// the new documents for processing.
func (s *CatalogService) IngestDirectory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	root := stringField(req, "root_path")
	if root == "" {
		s.logger.Error("ingest directory request missing root_path")
		return nil, common.InvalidArgumentError("root_path is required")
	}
	skipHidden := boolField(req, "skip_hidden", true)
	process := boolField(req, "process", true)

	s.logger.Info("starting directory ingest", "root", root, "skip_hidden", skipHidden)
	results, stats, err := s.deps.Ingestor.IngestDirectory(ctx, root, skipHidden)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	s.logger.Info("directory ingest completed", "scanned", stats.Scanned, "matched", stats.Matched, "succeeded", stats.Succeeded, "deduplicated", stats.Deduplicated, "failed", stats.Failed)

	items := make([]any, 0, len(results))
	for _, r := range results {
		item := ingestMap(r)
		if process && r.Err == "" && !r.Deduplicated && r.DocumentID != "" {
			if perr := s.dispatch(ctx, r, true); perr != nil {
				item["error"] = perr.Error()
			}
		}
		items = append(items, item)
	}
	return toStruct(map[string]any{
		"scanned":      stats.Scanned,
		"matched":      stats.Matched,
		"succeeded":    stats.Succeeded,
		"deduplicated": stats.Deduplicated,
		"failed":       stats.Failed,
		"results":      items,
	})
}

// dispatch processes a freshly ingested document inline or through the queue.
func (s *CatalogService) dispatch(ctx context.Context, r ingest.IngestionResult, queued bool) error {
	id, err := uuid.Parse(r.DocumentID)
	if err != nil {
		return err
	}
	if queued && s.deps.Queue != nil {
		return s.deps.Queue.Enqueue(ctx, async.Job{DocumentID: id, ChangeDescription: "initial ingest", SubmittedAt: time.Now(), TraceID: common.RequestIDFromContext(ctx)})
	}
	if _, err := s.deps.Processor.ProcessDocument(ctx, id, "initial ingest"); err != nil {
		s.logger.Error("pipeline.failed", "document_id", id, "error", err)
		return err
	}
	return nil
}

// ExportCatalog returns the catalog workbook as base64 in xlsx_base64.
func (s *CatalogService) ExportCatalog(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.deps.Exporter == nil {
		return nil, common.InternalError("export is not configured")
	}
	data, rows, err := s.deps.Exporter.ExportCatalogXLSX(ctx, export.Options{
		RenderSuperscripts: boolField(req, "render_superscripts", false),
		Locale:             stringField(req, "locale"),
	})
	if err != nil {
		s.logger.Error("export failed", "error", err)
		return nil, common.ToStatus(err)
	}
	return toStruct(map[string]any{
		"rows":        rows,
		"xlsx_base64": base64.StdEncoding.EncodeToString(data),
	})
}
