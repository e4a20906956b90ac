package async

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/copy-catalog/internal/pipeline"
)

type recordingProcessor struct {
	mu       sync.Mutex
	order    map[uuid.UUID][]string
	inflight map[uuid.UUID]int
	overlap  atomic.Bool
	total    atomic.Int32
	delay    time.Duration
	block    chan struct{}
}

func newRecordingProcessor() *recordingProcessor {
	return &recordingProcessor{order: map[uuid.UUID][]string{}, inflight: map[uuid.UUID]int{}}
}

func (p *recordingProcessor) ProcessDocument(ctx context.Context, docID uuid.UUID, desc string) (pipeline.Outcome, error) {
	p.mu.Lock()
	p.inflight[docID]++
	if p.inflight[docID] > 1 {
		p.overlap.Store(true)
	}
	p.mu.Unlock()

	if p.block != nil {
		<-p.block
	}
	time.Sleep(p.delay)

	p.mu.Lock()
	p.inflight[docID]--
	p.order[docID] = append(p.order[docID], desc)
	p.mu.Unlock()
	p.total.Add(1)
	return pipeline.Outcome{DocumentID: docID}, nil
}

func TestProcessorQueue_SerializesPerDocument(t *testing.T) {
	proc := newRecordingProcessor()
	proc.delay = time.Millisecond
	q := NewProcessorQueue(proc, nil, WithWorkers(4), WithQueueSize(64))

	docs := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	descs := []string{"a", "b", "c", "d", "e"}
	ctx := context.Background()
	for _, d := range descs {
		for _, id := range docs {
			require.NoError(t, q.Enqueue(ctx, Job{DocumentID: id, ChangeDescription: d}))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	q.Shutdown(shutdownCtx)

	assert.EqualValues(t, len(docs)*len(descs), proc.total.Load())
	assert.False(t, proc.overlap.Load(), "a document was processed concurrently")
	for _, id := range docs {
		assert.Equal(t, descs, proc.order[id])
	}
}

func TestProcessorQueue_EnqueueAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(newRecordingProcessor(), nil, WithWorkers(1))
	q.Shutdown(context.Background())
	// Shutdown is idempotent.
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), Job{DocumentID: uuid.New()})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestProcessorQueue_BackpressureHonoursContext(t *testing.T) {
	proc := newRecordingProcessor()
	proc.block = make(chan struct{})
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithQueueSize(1))

	id := uuid.New()
	ctx := context.Background()
	// One job is picked up by the worker and blocks; the next fills the buffer.
	require.NoError(t, q.Enqueue(ctx, Job{DocumentID: id}))
	require.Eventually(t, func() bool {
		proc.mu.Lock()
		defer proc.mu.Unlock()
		return proc.inflight[id] == 1
	}, time.Second, time.Millisecond)
	require.NoError(t, q.Enqueue(ctx, Job{DocumentID: id}))

	full, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := q.Enqueue(full, Job{DocumentID: id})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(proc.block)
	shutdownCtx, stop := context.WithTimeout(ctx, 5*time.Second)
	defer stop()
	q.Shutdown(shutdownCtx)
	assert.EqualValues(t, 2, proc.total.Load())
}

func TestProcessorQueue_ShutdownReleasesBlockedEnqueue(t *testing.T) {
	proc := newRecordingProcessor()
	proc.block = make(chan struct{})
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithQueueSize(1))

	id := uuid.New()
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, Job{DocumentID: id}))
	require.Eventually(t, func() bool {
		proc.mu.Lock()
		defer proc.mu.Unlock()
		return proc.inflight[id] == 1
	}, time.Second, time.Millisecond)
	require.NoError(t, q.Enqueue(ctx, Job{DocumentID: id}))

	// The shard is full and the worker is stuck, so this sender waits.
	blocked := make(chan error, 1)
	go func() { blocked <- q.Enqueue(ctx, Job{DocumentID: id}) }()
	time.Sleep(20 * time.Millisecond)

	shutdownCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	returned := make(chan struct{})
	go func() { q.Shutdown(shutdownCtx); close(returned) }()

	select {
	case err := <-blocked:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("blocked enqueue was not released by shutdown")
	}
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("shutdown did not honour its context")
	}
	close(proc.block)
}
