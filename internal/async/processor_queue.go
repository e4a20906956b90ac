package async

import (
	"context"
	"encoding/binary"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/copy-catalog/internal/common"
	"github.com/joseph-ayodele/copy-catalog/internal/pipeline"
)

type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, docID uuid.UUID, changeDescription string) (pipeline.Outcome, error)
}

// ProcessorQueue runs jobs on a fixed set of workers. Each document hashes to
// one worker, so jobs for the same document run one at a time and in order.
type ProcessorQueue struct {
	proc    DocumentProcessor
	logger  *slog.Logger
	workers int
	size    int
	timeout time.Duration

	shards []chan Job
	wg     sync.WaitGroup
	once   sync.Once

	// stopping is closed when Shutdown begins and wakes senders blocked on a full shard.
	stopping chan struct{}
	stopOnce sync.Once

	mu     sync.RWMutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithQueueSize sets the total buffer, split evenly across workers.
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.size = n
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(proc DocumentProcessor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		size:    256,
		timeout: 5 * time.Minute,

		stopping: make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	per := q.size / q.workers
	if per < 1 {
		per = 1
	}
	q.shards = make([]chan Job, q.workers)
	for i := range q.shards {
		q.shards[i] = make(chan Job, per)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i, ch := range q.shards {
			q.wg.Add(1)
			go func(workerID int, ch <-chan Job) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)
				for job := range ch {
					q.run(workerID, job)
				}
				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i+1, ch)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
	}

	out, err := q.proc.ProcessDocument(ctx, job.DocumentID, job.ChangeDescription)
	if err != nil {
		stage, _ := pipeline.FailedStage(err)
		q.logger.Error("processing failed", "worker_id", workerID, "document_id", job.DocumentID, "stage", stage, "error", err)
		return
	}
	q.logger.Info("processed document",
		"worker_id", workerID,
		"document_id", job.DocumentID,
		"discarded", out.Discarded,
		"needs_review", out.Verdict.NeedsReview(),
		"waited_ms", time.Since(job.SubmittedAt).Milliseconds(),
	)
}

func (q *ProcessorQueue) shard(id uuid.UUID) chan Job {
	return q.shards[binary.BigEndian.Uint32(id[12:])%uint32(len(q.shards))]
}

// Enqueue blocks while the document's shard is full, until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "document_id", job.DocumentID)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}

	ch := q.shard(job.DocumentID)
	select {
	case ch <- job:
		q.logger.Info("queued document for processing", "document_id", job.DocumentID)
		return nil
	default:
	}
	q.logger.Warn("queue full, applying backpressure", "document_id", job.DocumentID)
	select {
	case ch <- job:
		return nil
	case <-q.stopping:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to drain.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.stopOnce.Do(func() { close(q.stopping) })
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for _, ch := range q.shards {
		close(ch)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
