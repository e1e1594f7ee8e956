package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voicedraft/voicedraft/internal/apperr"
	"github.com/voicedraft/voicedraft/internal/models"
)

// fakeJobStore is an in-memory JobStore with the same transition rules as
// the durable one. Writes fail once the caller's context is dead, like a
// real connection pool's would.
type fakeJobStore struct {
	mu         sync.Mutex
	jobs       map[string]*models.GenerationJob
	enqueueErr error
	claimErr   error
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: map[string]*models.GenerationJob{}}
}

func (s *fakeJobStore) Enqueue(ctx context.Context, job *models.GenerationJob) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enqueueErr != nil {
		return false, s.enqueueErr
	}
	if _, exists := s.jobs[job.ID]; exists {
		return false, nil
	}
	record := *job
	record.Status = models.JobStatusQueued
	s.jobs[job.ID] = &record
	return true, nil
}

func (s *fakeJobStore) Claim(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimErr != nil {
		return false, s.claimErr
	}
	job, ok := s.jobs[id]
	if !ok || job.Status != models.JobStatusQueued {
		return false, nil
	}
	job.Status = models.JobStatusRunning
	job.Attempts++
	return true, nil
}

func (s *fakeJobStore) Requeue(ctx context.Context, id, lastError string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok && job.Status == models.JobStatusRunning {
		job.Status = models.JobStatusQueued
		job.LastError = lastError
	}
	return nil
}

func (s *fakeJobStore) Finish(ctx context.Context, id, status, lastError string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.Status = status
		job.LastError = lastError
	}
	return nil
}

func (s *fakeJobStore) Pending(ctx context.Context) ([]*models.GenerationJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.GenerationJob
	for _, job := range s.jobs {
		if job.Status == models.JobStatusQueued {
			record := *job
			out = append(out, &record)
		}
	}
	return out, nil
}

func (s *fakeJobStore) status(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		return job.Status
	}
	return ""
}

func (s *fakeJobStore) attempts(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		return job.Attempts
	}
	return 0
}

func (s *fakeJobStore) lastError(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		return job.LastError
	}
	return ""
}

// countingHandler fails with the scripted errors first, then succeeds.
type countingHandler struct {
	mu     sync.Mutex
	errs   []error
	calls  int
	jobIDs []string
}

func (h *countingHandler) handle(ctx context.Context, job *models.GenerationJob) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	h.jobIDs = append(h.jobIDs, job.ID)
	if len(h.errs) > 0 {
		err := h.errs[0]
		h.errs = h.errs[1:]
		return err
	}
	return nil
}

func (h *countingHandler) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func testConfig() Config {
	return Config{
		Workers:       2,
		RatePerSecond: 1000,
		MaxAttempts:   3,
		BaseBackoff:   time.Millisecond,
		BufferSize:    8,
	}
}

func startQueue(t *testing.T, store JobStore, handler Handler) *Queue {
	t.Helper()
	q := New(store, handler, testConfig(), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = q.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return q
}

func testJob(topicID string) *models.GenerationJob {
	return models.NewGenerationJob("user-1", models.JobKindGeneration, topicID, time.Now())
}

func TestQueueProcessesJob(t *testing.T) {
	store := newFakeJobStore()
	handler := &countingHandler{}
	q := startQueue(t, store, handler.handle)

	job := testJob("topic-1")
	require.NoError(t, q.Enqueue(context.Background(), job))

	require.Eventually(t, func() bool {
		return store.status(job.ID) == models.JobStatusSucceeded
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, handler.callCount())
}

func TestQueueIdempotentEnqueue(t *testing.T) {
	store := newFakeJobStore()
	handler := &countingHandler{}
	q := startQueue(t, store, handler.handle)

	trigger := time.Now()
	first := models.NewGenerationJob("user-1", models.JobKindGeneration, "topic-1", trigger)
	second := models.NewGenerationJob("user-1", models.JobKindGeneration, "topic-1", trigger)
	require.Equal(t, first.ID, second.ID)

	require.NoError(t, q.Enqueue(context.Background(), first))
	require.NoError(t, q.Enqueue(context.Background(), second))

	require.Eventually(t, func() bool {
		return store.status(first.ID) == models.JobStatusSucceeded
	}, 2*time.Second, 5*time.Millisecond)

	// The duplicate was accepted but never ran.
	assert.Equal(t, 1, handler.callCount())
}

func TestQueueRetriesUpstreamFailures(t *testing.T) {
	store := newFakeJobStore()
	handler := &countingHandler{errs: []error{
		&apperr.UpstreamUnavailable{Capability: "completion", Err: errors.New("timeout")},
		&apperr.UpstreamUnavailable{Capability: "completion", Err: errors.New("timeout")},
	}}
	q := startQueue(t, store, handler.handle)

	job := testJob("topic-1")
	require.NoError(t, q.Enqueue(context.Background(), job))

	require.Eventually(t, func() bool {
		return store.status(job.ID) == models.JobStatusSucceeded
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, handler.callCount())
	assert.Equal(t, 3, store.attempts(job.ID))
}

func TestQueueFailsTerminallyAfterMaxAttempts(t *testing.T) {
	store := newFakeJobStore()
	upstream := &apperr.UpstreamUnavailable{Capability: "completion", Err: errors.New("down")}
	handler := &countingHandler{errs: []error{upstream, upstream, upstream, upstream}}
	q := startQueue(t, store, handler.handle)

	job := testJob("topic-1")
	require.NoError(t, q.Enqueue(context.Background(), job))

	require.Eventually(t, func() bool {
		return store.status(job.ID) == models.JobStatusFailed
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, handler.callCount())
}

func TestQueueDoesNotRetryNonRetryableErrors(t *testing.T) {
	store := newFakeJobStore()
	handler := &countingHandler{errs: []error{
		&apperr.ValidationError{Field: "payload", Reason: "bad"},
	}}
	q := startQueue(t, store, handler.handle)

	job := testJob("topic-1")
	require.NoError(t, q.Enqueue(context.Background(), job))

	require.Eventually(t, func() bool {
		return store.status(job.ID) == models.JobStatusFailed
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, handler.callCount())
}

func TestQueueRecoversDurableQueuedJobs(t *testing.T) {
	store := newFakeJobStore()

	// Enqueued durably by a previous process that died before any worker
	// picked the job up.
	job := testJob("topic-1")
	inserted, err := store.Enqueue(context.Background(), job)
	require.NoError(t, err)
	require.True(t, inserted)

	handler := &countingHandler{}
	startQueue(t, store, handler.handle)

	require.Eventually(t, func() bool {
		return store.status(job.ID) == models.JobStatusSucceeded
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, handler.callCount())
}

func TestQueueEnqueueStoreFailure(t *testing.T) {
	store := newFakeJobStore()
	store.enqueueErr = errors.New("connection refused")
	q := New(store, (&countingHandler{}).handle, testConfig(), zap.NewNop())

	err := q.Enqueue(context.Background(), testJob("topic-1"))
	assert.ErrorIs(t, err, ErrQueueUnavailable)
}

func TestBackoff(t *testing.T) {
	t.Run("zero attempt has no delay", func(t *testing.T) {
		assert.Equal(t, time.Duration(0), Backoff(2*time.Second, 0))
	})

	t.Run("delay stays within the jitter band", func(t *testing.T) {
		base := 2 * time.Second
		for attempt := 1; attempt <= 3; attempt++ {
			expected := base * time.Duration(1<<uint(attempt))
			if expected > 30*time.Second {
				expected = 30 * time.Second
			}
			for i := 0; i < 20; i++ {
				d := Backoff(base, attempt)
				assert.GreaterOrEqual(t, d, expected-expected/4)
				assert.Less(t, d, expected+expected/4)
			}
		}
	})

	t.Run("cap applies for deep retries", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			d := Backoff(2*time.Second, 20)
			assert.LessOrEqual(t, d, 30*time.Second+30*time.Second/4)
		}
	})
}
