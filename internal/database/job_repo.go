package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/voicedraft/voicedraft/internal/apperr"
	"github.com/voicedraft/voicedraft/internal/models"
)

type JobRepository struct {
	db *DB
}

func NewJobRepository(db *DB) *JobRepository {
	return &JobRepository{db: db}
}

// Enqueue inserts a job record keyed by its idempotency key. Returns false
// when a job with the same key already exists, in which case nothing was
// inserted.
func (r *JobRepository) Enqueue(ctx context.Context, job *models.GenerationJob) (bool, error) {
	query := `
		INSERT INTO generation_jobs
			(id, owner_id, kind, topic_id, pillar_id, payload, status, attempts, placeholder_ref, created_at)
		VALUES ($1, $2, $3, NULLIF($4, '')::uuid, NULLIF($5, '')::uuid, NULLIF($6, '')::jsonb, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`

	result, err := r.db.Pool.Exec(ctx, query,
		job.ID,
		job.OwnerID,
		job.Kind,
		job.TopicID,
		job.PillarID,
		job.Payload,
		job.Status,
		job.Attempts,
		job.PlaceholderRef,
		job.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to enqueue job: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

const jobColumns = `id, owner_id, kind, COALESCE(topic_id::text, ''), COALESCE(pillar_id::text, ''),
	COALESCE(payload::text, ''), status, attempts, COALESCE(last_error, ''),
	COALESCE(placeholder_ref, ''), created_at, started_at, finished_at`

// GetByID retrieves a job by its idempotency key.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.GenerationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = $1`

	job := &models.GenerationJob{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&job.ID,
		&job.OwnerID,
		&job.Kind,
		&job.TopicID,
		&job.PillarID,
		&job.Payload,
		&job.Status,
		&job.Attempts,
		&job.LastError,
		&job.PlaceholderRef,
		&job.CreatedAt,
		&job.StartedAt,
		&job.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &apperr.NotFoundError{Entity: "generation job", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// Pending returns jobs still waiting in the queued state, oldest first.
// The queue scans these on startup so jobs enqueued before a restart are
// not stranded behind a pending placeholder.
func (r *JobRepository) Pending(ctx context.Context) ([]*models.GenerationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE status = $1 ORDER BY created_at`

	rows, err := r.db.Pool.Query(ctx, query, models.JobStatusQueued)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.GenerationJob
	for rows.Next() {
		job := &models.GenerationJob{}
		err := rows.Scan(
			&job.ID,
			&job.OwnerID,
			&job.Kind,
			&job.TopicID,
			&job.PillarID,
			&job.Payload,
			&job.Status,
			&job.Attempts,
			&job.LastError,
			&job.PlaceholderRef,
			&job.CreatedAt,
			&job.StartedAt,
			&job.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Claim transitions a queued job to running. Returns false when the job is
// not in the queued state, which guards against two workers processing the
// same key concurrently.
func (r *JobRepository) Claim(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE generation_jobs
		SET status = $2, attempts = attempts + 1, started_at = $3
		WHERE id = $1 AND status = $4
	`

	result, err := r.db.Pool.Exec(ctx, query, id, models.JobStatusRunning, time.Now(), models.JobStatusQueued)
	if err != nil {
		return false, fmt.Errorf("failed to claim job: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// Requeue puts a running job back in the queue after a retryable failure.
func (r *JobRepository) Requeue(ctx context.Context, id, lastError string) error {
	query := `
		UPDATE generation_jobs
		SET status = $2, last_error = $3
		WHERE id = $1 AND status = $4
	`

	_, err := r.db.Pool.Exec(ctx, query, id, models.JobStatusQueued, lastError, models.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}
	return nil
}

// Finish records a terminal outcome for a job.
func (r *JobRepository) Finish(ctx context.Context, id, status, lastError string) error {
	query := `
		UPDATE generation_jobs
		SET status = $2, last_error = NULLIF($3, ''), finished_at = $4
		WHERE id = $1
	`

	result, err := r.db.Pool.Exec(ctx, query, id, status, lastError, time.Now())
	if err != nil {
		return fmt.Errorf("failed to finish job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &apperr.NotFoundError{Entity: "generation job", ID: id}
	}
	return nil
}
