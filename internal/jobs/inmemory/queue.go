package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/bookkeeper/internal/jobs"
	"github.com/dvloznov/bookkeeper/internal/logger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultWorkers    = 2
	defaultMaxRetries = 3
)

// Queue is an in-memory implementation of job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
type Queue struct {
	jobChan   chan *jobs.Job
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool

	workers int
	backoff func(retry int) time.Duration
	log     zerolog.Logger
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithWorkers sets the number of concurrent workers started by Start.
func WithWorkers(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithBackoff sets the delay before retry number n (starting at 1).
func WithBackoff(fn func(retry int) time.Duration) QueueOption {
	return func(q *Queue) { q.backoff = fn }
}

// WithQueueLogger sets the logger used for job lifecycle events.
func WithQueueLogger(log zerolog.Logger) QueueOption {
	return func(q *Queue) { q.log = log }
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can be queued before Publish blocks.
func NewQueue(bufferSize int, store jobs.JobStore, opts ...QueueOption) *Queue {
	q := &Queue{
		jobChan:   make(chan *jobs.Job, bufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		workers:   defaultWorkers,
		backoff:   func(retry int) time.Duration { return time.Duration(retry) * time.Second },
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Publish implements the Publisher interface.
func (q *Queue) Publish(ctx context.Context, job *jobs.Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = defaultMaxRetries
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job.Clone():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start implements the Consumer interface.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single job with retry logic. Jobs that reached a
// terminal status while waiting in the queue, such as dismissed ones, are
// dropped without running.
func (q *Queue) processJob(ctx context.Context, job *jobs.Job, handler jobs.JobHandler) {
	log := logger.WithFields(q.log, map[string]interface{}{
		"job_id":   job.JobID,
		"job_type": string(job.Type),
	})

	if q.store != nil {
		if stored, err := q.store.GetJob(ctx, job.JobID); err == nil && stored.Status.Terminal() {
			log.Debug().Str("status", string(stored.Status)).Msg("skipping job in terminal status")
			return
		}
	}

	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	job.CompletedAt = nil
	q.save(ctx, job)

	err := handler(logger.WithContext(ctx, log), job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if err != nil {
		job.Error = err.Error()
		job.ClearResult()

		if job.RetryCount < job.MaxRetries && !jobs.IsPermanent(err) {
			job.RetryCount++
			job.Status = jobs.JobStatusRetrying
			q.save(ctx, job)
			log.Warn().Err(err).Int("retry", job.RetryCount).Msg("job failed, retrying")

			retry := job.Clone()
			time.AfterFunc(q.backoff(retry.RetryCount), func() {
				retry.Status = jobs.JobStatusPending
				retry.StartedAt = nil
				retry.CompletedAt = nil
				if err := q.Publish(ctx, retry); err != nil {
					log.Warn().Err(err).Msg("failed to re-enqueue job")
				}
			})
			return
		}

		job.Status = jobs.JobStatusFailed
		log.Warn().Err(err).Msg("job failed")
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		log.Debug().Msg("job completed")
	}

	q.save(ctx, job)
}

func (q *Queue) save(ctx context.Context, job *jobs.Job) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		q.log.Warn().Err(err).Str("job_id", job.JobID).Msg("failed to save job")
	}
}

// Stop implements the Consumer interface.
// It stops the queue and waits for all in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
