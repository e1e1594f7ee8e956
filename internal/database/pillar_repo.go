package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/voicedraft/voicedraft/internal/apperr"
	"github.com/voicedraft/voicedraft/internal/models"
)

type PillarRepository struct {
	db *DB
}

func NewPillarRepository(db *DB) *PillarRepository {
	return &PillarRepository{db: db}
}

// Create inserts a new pillar.
func (r *PillarRepository) Create(ctx context.Context, pillar *models.Pillar) error {
	if pillar.ID == "" {
		pillar.ID = uuid.New().String()
	}

	query := `
		INSERT INTO pillars (id, owner_id, name, description, tone, target_audience, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		pillar.ID,
		pillar.OwnerID,
		pillar.Name,
		pillar.Description,
		pillar.Tone,
		pillar.TargetAudience,
		pillar.Status,
		pillar.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create pillar: %w", err)
	}
	return nil
}

// GetByID retrieves a pillar by its ID.
func (r *PillarRepository) GetByID(ctx context.Context, id string) (*models.Pillar, error) {
	query := `
		SELECT id, owner_id, name, COALESCE(description, ''), COALESCE(tone, ''),
		       COALESCE(target_audience, ''), status, created_at
		FROM pillars
		WHERE id = $1
	`

	pillar := &models.Pillar{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&pillar.ID,
		&pillar.OwnerID,
		&pillar.Name,
		&pillar.Description,
		&pillar.Tone,
		&pillar.TargetAudience,
		&pillar.Status,
		&pillar.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &apperr.NotFoundError{Entity: "pillar", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pillar: %w", err)
	}
	return pillar, nil
}

// GetActiveByOwner retrieves a user's active pillars, oldest first so the
// first active pillar is the stable default.
func (r *PillarRepository) GetActiveByOwner(ctx context.Context, ownerID string) ([]*models.Pillar, error) {
	query := `
		SELECT id, owner_id, name, COALESCE(description, ''), COALESCE(tone, ''),
		       COALESCE(target_audience, ''), status, created_at
		FROM pillars
		WHERE owner_id = $1 AND status = $2
		ORDER BY created_at ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, ownerID, models.PillarStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query pillars: %w", err)
	}
	defer rows.Close()

	var pillars []*models.Pillar
	for rows.Next() {
		pillar := &models.Pillar{}
		err := rows.Scan(
			&pillar.ID,
			&pillar.OwnerID,
			&pillar.Name,
			&pillar.Description,
			&pillar.Tone,
			&pillar.TargetAudience,
			&pillar.Status,
			&pillar.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pillar: %w", err)
		}
		pillars = append(pillars, pillar)
	}
	return pillars, nil
}

// UpdateStatus moves a pillar between suggested, active, and archived.
func (r *PillarRepository) UpdateStatus(ctx context.Context, id, status string) error {
	result, err := r.db.Pool.Exec(ctx, `UPDATE pillars SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update pillar status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &apperr.NotFoundError{Entity: "pillar", ID: id}
	}
	return nil
}
