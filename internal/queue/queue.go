// Package queue is the producer/consumer job system that sequences
// discovery, classification, and generation asynchronously. Delivery is
// at-least-once: handlers are idempotent with respect to their keyed
// identity, and a re-run after partial failure may produce different (not
// identical) draft text, which is fine because drafts are additive.
package queue

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/voicedraft/voicedraft/internal/apperr"
	"github.com/voicedraft/voicedraft/internal/models"
)

// ErrQueueUnavailable signals that the job could not be accepted; callers
// fall back to the synchronous path.
var ErrQueueUnavailable = errors.New("job queue unavailable")

// Handler processes one job. Both the async workers and the synchronous
// fallback run the same handler, so there is exactly one copy of the
// business logic.
type Handler func(ctx context.Context, job *models.GenerationJob) error

// JobStore is the durable record behind the queue.
type JobStore interface {
	Enqueue(ctx context.Context, job *models.GenerationJob) (bool, error)
	Claim(ctx context.Context, id string) (bool, error)
	Requeue(ctx context.Context, id, lastError string) error
	Finish(ctx context.Context, id, status, lastError string) error
	// Pending returns jobs still in the queued state, oldest first.
	Pending(ctx context.Context) ([]*models.GenerationJob, error)
}

// Config tunes the worker pool.
type Config struct {
	Workers       int
	RatePerSecond float64       // global limit across workers, respects API quotas
	MaxAttempts   int           // attempts per job before terminal failure
	BaseBackoff   time.Duration // first retry delay
	BufferSize    int
}

// DefaultConfig returns conservative queue settings.
func DefaultConfig() Config {
	return Config{
		Workers:       4,
		RatePerSecond: 2,
		MaxAttempts:   3,
		BaseBackoff:   2 * time.Second,
		BufferSize:    64,
	}
}

// Queue dispatches durable jobs to a bounded worker pool.
type Queue struct {
	store   JobStore
	handler Handler
	cfg     Config
	jobs    chan *models.GenerationJob
	limiter *rate.Limiter
	logger  *zap.Logger
	stopped chan struct{}
}

func New(store JobStore, handler Handler, cfg Config, logger *zap.Logger) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 2
	}
	return &Queue{
		store:   store,
		handler: handler,
		cfg:     cfg,
		jobs:    make(chan *models.GenerationJob, cfg.BufferSize),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		logger:  logger,
		stopped: make(chan struct{}),
	}
}

// Enqueue records the job durably and hands it to the worker pool. A job
// whose idempotency key already exists is accepted without re-inserting,
// so a retried user action cannot queue duplicate work. Returns
// ErrQueueUnavailable when the job cannot be accepted.
func (q *Queue) Enqueue(ctx context.Context, job *models.GenerationJob) error {
	select {
	case <-q.stopped:
		return ErrQueueUnavailable
	default:
	}

	inserted, err := q.store.Enqueue(ctx, job)
	if err != nil {
		q.logger.Warn("job store enqueue failed", zap.String("job", job.ID), zap.Error(err))
		return ErrQueueUnavailable
	}
	if !inserted {
		q.logger.Info("duplicate enqueue ignored", zap.String("job", job.ID))
		return nil
	}

	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ErrQueueUnavailable
	case <-q.stopped:
		return ErrQueueUnavailable
	}
}

// Start runs the worker pool until ctx is cancelled. Durable jobs left
// queued by an earlier process are re-dispatched first, so a restart
// cannot strand work behind a pending placeholder.
func (q *Queue) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < q.cfg.Workers; i++ {
		g.Go(func() error {
			return q.worker(ctx)
		})
	}
	g.Go(func() error {
		return q.recoverPending(ctx)
	})

	err := g.Wait()
	close(q.stopped)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// recoverPending hands every queued durable job back to the worker pool.
// The claim transition still guards execution, so a job that also arrives
// through the live channel runs once.
func (q *Queue) recoverPending(ctx context.Context) error {
	pending, err := q.store.Pending(ctx)
	if err != nil {
		q.logger.Warn("could not scan for queued jobs", zap.Error(err))
		return nil
	}
	if len(pending) == 0 {
		return nil
	}

	q.logger.Info("re-dispatching queued jobs", zap.Int("count", len(pending)))
	for _, job := range pending {
		select {
		case q.jobs <- job:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (q *Queue) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job := <-q.jobs:
			if err := q.limiter.Wait(ctx); err != nil {
				return err
			}
			q.process(ctx, job)
		}
	}
}

// process runs one job to a terminal state, retrying retryable errors with
// backoff. The claim transition guards against concurrent execution of the
// same key: only a queued job can move to running.
func (q *Queue) process(ctx context.Context, job *models.GenerationJob) {
	claimed, err := q.store.Claim(ctx, job.ID)
	if err != nil {
		q.logger.Error("failed to claim job", zap.String("job", job.ID), zap.Error(err))
		return
	}
	if !claimed {
		q.logger.Debug("job not claimable, skipping", zap.String("job", job.ID))
		return
	}

	for attempt := 1; ; attempt++ {
		err := q.handler(ctx, job)
		if err == nil {
			if ferr := q.store.Finish(ctx, job.ID, models.JobStatusSucceeded, ""); ferr != nil {
				q.logger.Error("failed to record job success", zap.String("job", job.ID), zap.Error(ferr))
			}
			return
		}

		if !apperr.IsRetryable(err) || attempt >= q.cfg.MaxAttempts {
			q.logger.Warn("job failed terminally",
				zap.String("job", job.ID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			if ferr := q.store.Finish(ctx, job.ID, models.JobStatusFailed, err.Error()); ferr != nil {
				q.logger.Error("failed to record job failure", zap.String("job", job.ID), zap.Error(ferr))
			}
			return
		}

		q.logger.Info("retrying job after upstream failure",
			zap.String("job", job.ID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if rerr := q.store.Requeue(ctx, job.ID, err.Error()); rerr != nil {
			q.logger.Error("failed to requeue job", zap.String("job", job.ID), zap.Error(rerr))
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(Backoff(q.cfg.BaseBackoff, attempt)):
		}

		claimed, cerr := q.store.Claim(ctx, job.ID)
		if cerr != nil || !claimed {
			// Another worker picked the key up, or the store is gone.
			return
		}
	}
}
