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

type VoiceRepository struct {
	db *DB
}

func NewVoiceRepository(db *DB) *VoiceRepository {
	return &VoiceRepository{db: db}
}

// CreateExample inserts a new voice example.
func (r *VoiceRepository) CreateExample(ctx context.Context, example *models.VoiceExample) error {
	if example.ID == "" {
		example.ID = uuid.New().String()
	}
	if example.EngagementWeight < 1 {
		example.EngagementWeight = 1
	}

	query := `
		INSERT INTO voice_examples (id, owner_id, text, embedding, engagement_weight, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		example.ID,
		example.OwnerID,
		example.Text,
		example.Embedding,
		example.EngagementWeight,
		example.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create voice example: %w", err)
	}
	return nil
}

// GetExamplesByOwner retrieves all voice examples for a user, newest first.
func (r *VoiceRepository) GetExamplesByOwner(ctx context.Context, ownerID string) ([]*models.VoiceExample, error) {
	query := `
		SELECT id, owner_id, text, embedding, engagement_weight, created_at
		FROM voice_examples
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query voice examples: %w", err)
	}
	defer rows.Close()

	var examples []*models.VoiceExample
	for rows.Next() {
		example := &models.VoiceExample{}
		err := rows.Scan(
			&example.ID,
			&example.OwnerID,
			&example.Text,
			&example.Embedding,
			&example.EngagementWeight,
			&example.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan voice example: %w", err)
		}
		examples = append(examples, example)
	}
	return examples, nil
}

// SetExampleEmbedding attaches the embedding computed after insert.
func (r *VoiceRepository) SetExampleEmbedding(ctx context.Context, id string, embedding []float64) error {
	query := `UPDATE voice_examples SET embedding = $2 WHERE id = $1`

	result, err := r.db.Pool.Exec(ctx, query, id, embedding)
	if err != nil {
		return fmt.Errorf("failed to set example embedding: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &apperr.NotFoundError{Entity: "voice example", ID: id}
	}
	return nil
}

// DeleteExample deletes a voice example by ID.
func (r *VoiceRepository) DeleteExample(ctx context.Context, id string) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM voice_examples WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete voice example: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &apperr.NotFoundError{Entity: "voice example", ID: id}
	}
	return nil
}

// SaveProfile upserts the derived voice profile for a user.
func (r *VoiceRepository) SaveProfile(ctx context.Context, profile *models.VoiceProfile) error {
	query := `
		INSERT INTO voice_profiles
			(owner_id, master_embedding, confidence_score, archetype, tone_attributes,
			 dominant_hook_type, analysis_notes, example_count, extracted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (owner_id) DO UPDATE SET
			master_embedding = EXCLUDED.master_embedding,
			confidence_score = EXCLUDED.confidence_score,
			archetype = EXCLUDED.archetype,
			tone_attributes = EXCLUDED.tone_attributes,
			dominant_hook_type = EXCLUDED.dominant_hook_type,
			analysis_notes = EXCLUDED.analysis_notes,
			example_count = EXCLUDED.example_count,
			extracted_at = EXCLUDED.extracted_at
	`

	_, err := r.db.Pool.Exec(ctx, query,
		profile.OwnerID,
		profile.MasterEmbedding,
		profile.ConfidenceScore,
		profile.Archetype,
		profile.ToneAttributes,
		profile.DominantHookType,
		profile.AnalysisNotes,
		profile.ExampleCount,
		profile.ExtractedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save voice profile: %w", err)
	}
	return nil
}

// GetProfile retrieves the voice profile for a user.
func (r *VoiceRepository) GetProfile(ctx context.Context, ownerID string) (*models.VoiceProfile, error) {
	query := `
		SELECT owner_id, master_embedding, confidence_score, archetype, tone_attributes,
		       dominant_hook_type, analysis_notes, example_count, extracted_at
		FROM voice_profiles
		WHERE owner_id = $1
	`

	profile := &models.VoiceProfile{}
	err := r.db.Pool.QueryRow(ctx, query, ownerID).Scan(
		&profile.OwnerID,
		&profile.MasterEmbedding,
		&profile.ConfidenceScore,
		&profile.Archetype,
		&profile.ToneAttributes,
		&profile.DominantHookType,
		&profile.AnalysisNotes,
		&profile.ExampleCount,
		&profile.ExtractedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &apperr.NotFoundError{Entity: "voice profile", ID: ownerID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get voice profile: %w", err)
	}
	return profile, nil
}
