package queue

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/voicedraft/voicedraft/internal/models"
)

// finishTimeout bounds the terminal status write after an inline run.
const finishTimeout = 10 * time.Second

// RunResult tells the caller whether the work was accepted for async
// processing or completed inline.
type RunResult struct {
	Async bool
}

// EnqueueStrategy tries the async queue first and falls back to running
// the handler synchronously within the request, bounded by a wall-clock
// budget. Both branches execute the identical handler.
type EnqueueStrategy struct {
	queue        *Queue
	store        JobStore
	handler      Handler
	inlineBudget time.Duration
	logger       *zap.Logger
}

func NewEnqueueStrategy(q *Queue, store JobStore, handler Handler, inlineBudget time.Duration, logger *zap.Logger) *EnqueueStrategy {
	if inlineBudget <= 0 {
		inlineBudget = 2 * time.Minute
	}
	return &EnqueueStrategy{
		queue:        q,
		store:        store,
		handler:      handler,
		inlineBudget: inlineBudget,
		logger:       logger,
	}
}

// Run executes the job asynchronously when the queue accepts it, otherwise
// inline. An inline failure is terminal for the request: the job record is
// marked failed so no silent pending state is left behind.
func (s *EnqueueStrategy) Run(ctx context.Context, job *models.GenerationJob) (*RunResult, error) {
	if s.queue != nil {
		err := s.queue.Enqueue(ctx, job)
		if err == nil {
			return &RunResult{Async: true}, nil
		}
		if !errors.Is(err, ErrQueueUnavailable) {
			return nil, err
		}
		s.logger.Warn("queue unreachable, running job inline", zap.String("job", job.ID))
	}

	return s.runInline(ctx, job)
}

// RunInline is the deterministic synchronous path. Exposed for callers
// that explicitly want an in-request result.
func (s *EnqueueStrategy) RunInline(ctx context.Context, job *models.GenerationJob) (*RunResult, error) {
	return s.runInline(ctx, job)
}

func (s *EnqueueStrategy) runInline(ctx context.Context, job *models.GenerationJob) (*RunResult, error) {
	// Record the job even on the inline path so polling clients see the
	// same durable lifecycle either way.
	if _, err := s.store.Enqueue(ctx, job); err != nil {
		s.logger.Warn("could not record inline job", zap.String("job", job.ID), zap.Error(err))
	}
	if claimed, err := s.store.Claim(ctx, job.ID); err != nil || !claimed {
		if err != nil {
			s.logger.Warn("could not claim inline job", zap.String("job", job.ID), zap.Error(err))
		} else {
			// The key is already running elsewhere; do not duplicate it.
			return &RunResult{Async: true}, nil
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, s.inlineBudget)
	defer cancel()
	err := s.handler(runCtx, job)

	// The terminal write must not run under the budget that may have just
	// killed the handler, or a timed-out job stays running forever.
	finishCtx, finishCancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer finishCancel()

	if err != nil {
		if ferr := s.store.Finish(finishCtx, job.ID, models.JobStatusFailed, err.Error()); ferr != nil {
			s.logger.Error("failed to record inline job failure", zap.String("job", job.ID), zap.Error(ferr))
		}
		return nil, err
	}

	if err := s.store.Finish(finishCtx, job.ID, models.JobStatusSucceeded, ""); err != nil {
		s.logger.Error("failed to record inline job success", zap.String("job", job.ID), zap.Error(err))
	}
	return &RunResult{Async: false}, nil
}
