package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/breakfast/internal/domain/model"
	"github.com/okian/breakfast/pkg/logger"
	"github.com/okian/breakfast/pkg/metrics"
)

const (
	defaultWorkerCount    = 2
	defaultJobTimeout     = 2 * time.Minute
	workerShutdownTimeout = 5 * time.Second
)

// Job is what workers read off the queue.
type Job = model.ReminderJob

// Handler processes one job.
type Handler interface {
	Handle(ctx context.Context, job Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, job Job) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, job Job) error { return f(ctx, job) }

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes jobs until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in flight.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue      Queue
	handler    Handler
	name       string
	jobTimeout time.Duration

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	processed atomic.Int64
	logger    logger.Logger
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(queue Queue, handler Handler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:      queue,
		handler:    handler,
		name:       "worker",
		jobTimeout: defaultJobTimeout,
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Default("worker")
		if w.name != "worker" {
			w.logger = w.logger.Named(w.name)
		}
	}
	return w
}

// Processed returns how many jobs the worker has handled, failed or not.
func (w *InMemoryWorker) Processed() int64 { return w.processed.Load() }

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.processJob(ctx, job); err != nil {
				w.logger.Error(ctx, "error processing reminder job",
					logger.String("job_id", job.ID),
					logger.String("date", job.Date.String()),
					logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) processJob(ctx context.Context, job Job) (err error) {
	start := time.Now()
	defer func() {
		w.processed.Add(1)
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
		if r := recover(); r != nil {
			err = fmt.Errorf("reminder job %s panicked: %v", job.ID, r)
		}
		if err != nil {
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "job_failed")
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()
	if err := w.handler.Handle(jobCtx, job); err != nil {
		return fmt.Errorf("reminder job %s: %w", job.ID, err)
	}
	return nil
}

// Pool runs a fixed number of workers over one queue.
type Pool struct {
	size       int
	queue      Queue
	handler    Handler
	jobTimeout time.Duration
	logger     logger.Logger

	mu      sync.Mutex
	workers []*InMemoryWorker
}

// NewPool creates a worker pool. A size below one means the default.
func NewPool(size int, queue Queue, handler Handler, opts ...PoolOption) *Pool {
	if size < 1 {
		size = defaultWorkerCount
	}
	p := &Pool{
		size:       size,
		queue:      queue,
		handler:    handler,
		jobTimeout: defaultJobTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Default("worker-pool")
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

// Processed sums the jobs handled by the current workers.
func (p *Pool) Processed() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var n int64
	for _, w := range p.workers {
		n += w.Processed()
	}
	return n
}

// Serve runs the workers until ctx is done, then waits for jobs in flight.
// It can be called again after it returns.
func (p *Pool) Serve(ctx context.Context) error {
	workers := make([]*InMemoryWorker, p.size)
	for i := range workers {
		workers[i] = NewInMemoryWorker(p.queue, p.handler,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(p.logger))
		workers[i].jobTimeout = p.jobTimeout
	}
	p.mu.Lock()
	p.workers = workers
	p.mu.Unlock()

	for _, w := range workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerActiveCount(len(workers))
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(workers)))

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), workerShutdownTimeout)
	defer cancel()
	for i, w := range workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(shutdownCtx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerActiveCount(0)

	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}
