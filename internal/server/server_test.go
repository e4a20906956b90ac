package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/joseph-ayodele/copy-catalog/internal/async"
	"github.com/joseph-ayodele/copy-catalog/internal/catalog"
	"github.com/joseph-ayodele/copy-catalog/internal/common"
	"github.com/joseph-ayodele/copy-catalog/internal/consensus"
	"github.com/joseph-ayodele/copy-catalog/internal/export"
	"github.com/joseph-ayodele/copy-catalog/internal/ingest"
	"github.com/joseph-ayodele/copy-catalog/internal/pipeline"
	"github.com/joseph-ayodele/copy-catalog/internal/repository"
	"github.com/joseph-ayodele/copy-catalog/internal/storage"
)

const extractionJSON = `{"ProductCopy":[{"ProductName":"Phone X","Headlines":["Fast{{sup:1}}"],"AdvertisingCopy":"Copy","KeyFeatureBullets":[],"LegalReferences":["{{sup:1}} Tested."]}]}`

// stubProcessor writes a fixed extraction instead of calling any model.
type stubProcessor struct {
	versions  repository.VersionRepository
	projector *catalog.Projector
	err       error
}

func (p *stubProcessor) ProcessDocument(ctx context.Context, docID uuid.UUID, desc string) (pipeline.Outcome, error) {
	if p.err != nil {
		return pipeline.Outcome{}, p.err
	}
	v, err := p.versions.ApplyExtraction(ctx, docID, repository.ProcessingOutcome{
		Language: "English", Locale: "en", RawText: "Fast¹",
		StructuredData: []byte(extractionJSON), Confidence: 0.925, Issues: []string{},
		ChangeDescription: &desc,
	})
	if err != nil {
		return pipeline.Outcome{}, &pipeline.StageError{Stage: pipeline.StagePersistence, Err: err}
	}
	proj, err := p.projector.Project(ctx, docID)
	if err != nil {
		return pipeline.Outcome{}, &pipeline.StageError{Stage: pipeline.StageProjection, Err: err}
	}
	return pipeline.Outcome{
		DocumentID: docID,
		Version:    v,
		Projection: proj,
		Verdict:    consensus.Verdict{Confidence: 0.925, Passed: true, Issues: []string{}},
	}, nil
}

type testEnv struct {
	client *CatalogClient
	conn   *grpc.ClientConn
	proc   *stubProcessor
	dir    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := repository.OpenSQLite(ctx, "file:server_"+uuid.NewString()[:8]+"?mode=memory&cache=shared", nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))

	blobs, err := storage.NewLocalStore(t.TempDir(), nil)
	require.NoError(t, err)

	docs := repository.NewDocumentRepository(db, nil)
	versions := repository.NewVersionRepository(db, nil)
	cat := repository.NewCatalogRepository(db, nil)
	jobs := repository.NewJobRepository(db, nil)
	projector := catalog.NewProjector(docs, versions, cat, nil)
	proc := &stubProcessor{versions: versions, projector: projector}
	queue := async.NewProcessorQueue(proc, nil, async.WithWorkers(1))
	t.Cleanup(func() { queue.Shutdown(context.Background()) })

	svc := NewCatalogService(Deps{
		Documents: docs,
		Versions:  versions,
		Catalog:   cat,
		Jobs:      jobs,
		Processor: proc,
		Projector: projector,
		Queue:     queue,
		Ingestor:  ingest.NewFSIngestor(docs, blobs, nil),
		Exporter:  export.NewService(cat, nil),
	}, nil)

	lis := bufconn.Listen(1 << 20)
	srv, _ := NewGRPCServer(svc, nil)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &testEnv{client: NewCatalogClient(conn), conn: conn, proc: proc, dir: t.TempDir()}
}

func (e *testEnv) writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func (e *testEnv) ingest(t *testing.T, name string, process bool) string {
	t.Helper()
	path := e.writeFile(t, name, []byte("contents of "+name))
	resp, err := e.client.Call(context.Background(), "IngestFile", map[string]any{"path": path, "process": process})
	require.NoError(t, err)
	id := resp.Fields["document_id"].GetStringValue()
	require.NotEmpty(t, id)
	return id
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp, err := healthpb.NewHealthClient(env.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestGetDocument_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.client.Call(ctx, "GetDocument", nil)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = env.client.Call(ctx, "GetDocument", map[string]any{"document_id": "nope"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = env.client.Call(ctx, "GetDocument", map[string]any{"document_id": uuid.NewString()})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestIngestAndGetDocument(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.ingest(t, "copy.docx", false)

	doc, err := env.client.Call(ctx, "GetDocument", map[string]any{"document_id": id})
	require.NoError(t, err)
	m := doc.AsMap()
	assert.Equal(t, "copy.docx", m["filename"])
	assert.Equal(t, "DOCX", m["file_kind"])
	assert.Equal(t, false, m["is_processed"])
	assert.NotContains(t, m, "original_file_path")
	assert.NotContains(t, m, "raw_text")

	// Same bytes again deduplicate and are not processed.
	path := filepath.Join(env.dir, "copy.docx")
	resp, err := env.client.Call(ctx, "IngestFile", map[string]any{"path": path})
	require.NoError(t, err)
	assert.Equal(t, true, resp.AsMap()["deduplicated"])
	assert.Equal(t, id, resp.AsMap()["document_id"])

	list, err := env.client.Call(ctx, "ListDocuments", nil)
	require.NoError(t, err)
	assert.Len(t, list.Fields["documents"].GetListValue().GetValues(), 1)
}

func TestIngestFile_RejectsUnsupportedKind(t *testing.T) {
	env := newTestEnv(t)
	path := env.writeFile(t, "notes.txt", []byte("hello"))
	_, err := env.client.Call(context.Background(), "IngestFile", map[string]any{"path": path})
	require.Error(t, err)
	assert.NotEqual(t, codes.OK, status.Code(err))
}

func TestProcessRestoreAndCatalog(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.ingest(t, "phone.docx", false)

	out, err := env.client.Call(ctx, "ProcessDocument", map[string]any{"document_id": id, "change_description": "first"})
	require.NoError(t, err)
	om := out.AsMap()
	verdict := om["verdict"].(map[string]any)
	assert.InDelta(t, 0.925, verdict["confidence"], 1e-9)
	assert.Equal(t, true, verdict["passed"])
	assert.Equal(t, float64(1), om["version"].(map[string]any)["version_number"])

	_, err = env.client.Call(ctx, "ProcessDocument", map[string]any{"document_id": id, "change_description": "second"})
	require.NoError(t, err)

	versions, err := env.client.Call(ctx, "ListVersions", map[string]any{"document_id": id})
	require.NoError(t, err)
	vs := versions.AsMap()["versions"].([]any)
	require.Len(t, vs, 2)
	var firstID string
	for _, v := range vs {
		vm := v.(map[string]any)
		if vm["version_number"] == float64(1) {
			firstID = vm["id"].(string)
		}
	}
	require.NotEmpty(t, firstID)

	restored, err := env.client.Call(ctx, "RestoreVersion", map[string]any{"document_id": id, "version_id": firstID})
	require.NoError(t, err)
	rm := restored.AsMap()
	assert.Equal(t, float64(3), rm["version"].(map[string]any)["version_number"])
	assert.Equal(t, float64(1), rm["projection"].(map[string]any)["variants"])

	products, err := env.client.Call(ctx, "ListProducts", nil)
	require.NoError(t, err)
	ps := products.AsMap()["products"].([]any)
	require.Len(t, ps, 1)
	pid := ps[0].(map[string]any)["id"].(string)

	product, err := env.client.Call(ctx, "GetProduct", map[string]any{"product_id": pid})
	require.NoError(t, err)
	pm := product.AsMap()
	assert.Equal(t, "Phone X", pm["name"])
	require.Len(t, pm["variants"].([]any), 1)

	jobs, err := env.client.Call(ctx, "ListJobs", map[string]any{"document_id": id})
	require.NoError(t, err)
	assert.NotNil(t, jobs.Fields["jobs"])

	exp, err := env.client.Call(ctx, "ExportCatalog", map[string]any{"render_superscripts": true})
	require.NoError(t, err)
	em := exp.AsMap()
	assert.Equal(t, float64(1), em["rows"])
	raw, err := base64.StdEncoding.DecodeString(em["xlsx_base64"].(string))
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer f.Close()
	headline, err := f.GetCellValue("Catalog", "G2")
	require.NoError(t, err)
	assert.Equal(t, "Fast¹", headline)
}

func TestRestoreVersion_ForeignVersion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.ingest(t, "a.docx", true)
	b := env.ingest(t, "b.docx", false)

	versions, err := env.client.Call(ctx, "ListVersions", map[string]any{"document_id": a})
	require.NoError(t, err)
	vs := versions.AsMap()["versions"].([]any)
	require.Len(t, vs, 1)
	vid := vs[0].(map[string]any)["id"].(string)

	_, err = env.client.Call(ctx, "RestoreVersion", map[string]any{"document_id": b, "version_id": vid})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestProcessDocument_ErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.ingest(t, "x.docx", false)

	env.proc.err = &pipeline.StageError{Stage: pipeline.StageStructuring, Err: common.NewCapabilityError("structuring", common.ErrCapabilityUnavailable)}
	_, err := env.client.Call(ctx, "ProcessDocument", map[string]any{"document_id": id})
	assert.Equal(t, codes.Unavailable, status.Code(err))

	env.proc.err = &pipeline.StageError{Stage: pipeline.StageExtraction, Err: common.UnsupportedInputError("scanned")}
	_, err = env.client.Call(ctx, "ProcessDocument", map[string]any{"document_id": id})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestProcessDocument_Async(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.ingest(t, "q.docx", false)

	resp, err := env.client.Call(ctx, "ProcessDocument", map[string]any{"document_id": id, "async": true})
	require.NoError(t, err)
	assert.Equal(t, true, resp.AsMap()["queued"])

	_, err = env.client.Call(ctx, "ProcessDocument", map[string]any{"document_id": uuid.NewString(), "async": true})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestIngestDirectory(t *testing.T) {
	env := newTestEnv(t)
	env.writeFile(t, "one.docx", []byte("one"))
	env.writeFile(t, "two.pdf", []byte("two"))
	env.writeFile(t, ".hidden.docx", []byte("hidden"))
	env.writeFile(t, "skip.txt", []byte("skip"))

	resp, err := env.client.Call(context.Background(), "IngestDirectory", map[string]any{"root_path": env.dir, "process": false})
	require.NoError(t, err)
	m := resp.AsMap()
	assert.Equal(t, float64(2), m["succeeded"])
	assert.Len(t, m["results"].([]any), 2)

	_, err = env.client.Call(context.Background(), "IngestDirectory", nil)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
