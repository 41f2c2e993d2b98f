// Package async runs shipment pairs on a fixed pool of workers.
package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/shipdocs/internal/common"
	"github.com/joseph-ayodele/shipdocs/internal/locator"
	"github.com/joseph-ayodele/shipdocs/internal/pipeline"
)

// Job is one order/email pair found by the inbox watcher or submitted by a client.
type Job struct {
	Pair        locator.Pair
	SubmittedAt time.Time
	TraceID     string
}

// ErrClosed is returned by Enqueue after Shutdown.
var ErrClosed = errors.New("queue is shutting down")

// PairProcessor is the part of pipeline.Processor a worker needs.
type PairProcessor interface {
	ProcessPair(ctx context.Context, orders []pipeline.OrderInput, body string) (*pipeline.Outcome, error)
}

// Reader fetches the bytes behind a locator ref.
type Reader interface {
	Locate(ctx context.Context, ref string) ([]byte, error)
}

// ResultFunc observes every finished job. out is nil when err is set.
type ResultFunc func(job Job, out *pipeline.Outcome, err error)

type Queue struct {
	proc     PairProcessor
	reader   Reader
	logger   *slog.Logger
	workers  int
	timeout  time.Duration
	onResult ResultFunc

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu      sync.Mutex
	closed  bool
	quit    chan struct{}
	senders sync.WaitGroup
}

type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func WithResultFunc(f ResultFunc) Option {
	return func(q *Queue) { q.onResult = f }
}

func NewQueue(proc PairProcessor, reader Reader, logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		proc:    proc,
		reader:  reader,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
		quit:    make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("queue.worker.started", "worker_id", workerID)
				for job := range q.ch {
					q.run(workerID, job)
				}
				q.logger.Debug("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *Queue) run(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
	}

	out, err := q.process(ctx, job)
	if err != nil {
		q.logger.Error("queue.job.failed", "worker_id", workerID, "dir", job.Pair.Dir, "error", err)
	} else {
		q.logger.Info("queue.job.ok",
			"worker_id", workerID,
			"dir", job.Pair.Dir,
			"run_id", out.RunID,
			"overall_status", out.Validation.OverallStatus,
			"wait_ms", time.Since(job.SubmittedAt).Milliseconds(),
		)
	}
	if q.onResult != nil {
		q.onResult(job, out, err)
	}
}

func (q *Queue) process(ctx context.Context, job Job) (*pipeline.Outcome, error) {
	body, err := q.reader.Locate(ctx, job.Pair.Email)
	if err != nil {
		return nil, err
	}
	orders := make([]pipeline.OrderInput, 0, len(job.Pair.Orders))
	for _, ref := range job.Pair.Orders {
		data, err := q.reader.Locate(ctx, ref)
		if err != nil {
			return nil, err
		}
		orders = append(orders, pipeline.OrderInput{Filename: ref, Data: data})
	}
	return q.proc.ProcessPair(ctx, orders, string(body))
}

// Enqueue blocks when the buffer is full, until ctx is done or the queue shuts down.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("queue.enqueue.closed", "dir", job.Pair.Dir)
		return ErrClosed
	}
	q.senders.Add(1)
	q.mu.Unlock()
	defer q.senders.Done()

	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Info("queue.enqueued", "dir", job.Pair.Dir, "orders", len(job.Pair.Orders))
		return nil
	default:
	}
	q.logger.Warn("queue.full", "dir", job.Pair.Dir)
	select {
	case q.ch <- job:
		return nil
	case <-q.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs, releases blocked enqueuers and waits for queued and
// in-flight jobs until ctx is done.
func (q *Queue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.quit)
	q.mu.Unlock()

	// the channel closes only once no sender can still write to it
	q.senders.Wait()
	close(q.ch)

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}
