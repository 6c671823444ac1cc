package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/medextract/internal/common"
	"github.com/joseph-ayodele/medextract/internal/core/assemble"
	"github.com/joseph-ayodele/medextract/internal/metrics"
)

// ErrQueueClosed is returned by Submit after Shutdown.
var ErrQueueClosed = errors.New("processor queue is shutting down")

// Processor runs one document through the pipeline.
type Processor interface {
	Process(ctx context.Context, pdf []byte) (assemble.Outcome, error)
}

// Job is one submitted document. The caller's context travels with it so a
// disconnect cancels the work.
type Job struct {
	ctx         context.Context
	pdf         []byte
	submittedAt time.Time
	reply       chan result
}

type result struct {
	out assemble.Outcome
	err error
}

// ProcessorQueue bounds how many documents run at once.
type ProcessorQueue struct {
	proc    Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

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
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n >= 0 {
			q.ch = make(chan Job, n)
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

func NewProcessorQueue(proc Processor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 5 * time.Minute,
		ch:      make(chan Job, 64),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("worker started", "worker_id", workerID)
				for job := range q.ch {
					metrics.QueueDepth.Set(float64(len(q.ch)))
					q.run(workerID, job)
				}
				q.logger.Debug("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	log := common.LoggerFor(job.ctx, q.logger).With("worker_id", workerID)
	if err := job.ctx.Err(); err != nil {
		log.Info("queue.job.abandoned", "error", err)
		job.reply <- result{err: err}
		return
	}

	ctx, cancel := context.WithTimeout(job.ctx, q.timeout)
	defer cancel()

	log.Debug("queue.job.start", "wait_ms", time.Since(job.submittedAt).Milliseconds())
	out, err := q.proc.Process(ctx, job.pdf)
	job.reply <- result{out: out, err: err}
}

// Submit queues pdf and waits for its outcome. It blocks while the queue is
// full and returns early when ctx ends.
func (q *ProcessorQueue) Submit(ctx context.Context, pdf []byte) (assemble.Outcome, error) {
	job := Job{ctx: ctx, pdf: pdf, submittedAt: time.Now(), reply: make(chan result, 1)}

	if err := q.enqueue(ctx, job); err != nil {
		return assemble.Outcome{}, err
	}

	select {
	case r := <-job.reply:
		return r.out, r.err
	case <-ctx.Done():
		return assemble.Outcome{}, ctx.Err()
	}
}

func (q *ProcessorQueue) enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- job:
		metrics.QueueDepth.Set(float64(len(q.ch)))
		return nil
	default:
	}

	common.LoggerFor(ctx, q.logger).Warn("queue full, applying backpressure", "capacity", cap(q.ch))
	select {
	case q.ch <- job:
		metrics.QueueDepth.Set(float64(len(q.ch)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting work and waits for queued jobs to finish or ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
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
