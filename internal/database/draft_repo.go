package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/voicedraft/voicedraft/internal/apperr"
	"github.com/voicedraft/voicedraft/internal/models"
)

type DraftRepository struct {
	db *DB
}

func NewDraftRepository(db *DB) *DraftRepository {
	return &DraftRepository{db: db}
}

// Create inserts a new draft variant with its quality and dedup metadata.
func (r *DraftRepository) Create(ctx context.Context, draft *models.DraftVariant) error {
	if draft.ID == "" {
		draft.ID = uuid.New().String()
	}

	metrics, err := marshalNullable(draft.QualityMetrics)
	if err != nil {
		return fmt.Errorf("failed to encode quality metrics: %w", err)
	}
	gate, err := marshalNullable(draft.QualityGate)
	if err != nil {
		return fmt.Errorf("failed to encode quality gate: %w", err)
	}
	dedup, err := marshalNullable(draft.Deduplication)
	if err != nil {
		return fmt.Errorf("failed to encode deduplication: %w", err)
	}

	query := `
		INSERT INTO draft_variants
			(id, owner_id, topic_id, pillar_id, variant_letter, full_text, hook, body, cta,
			 hashtags, character_count, voice_match_score, estimated_reach, style, status,
			 quality_metrics, quality_gate, deduplication, embedding, created_at)
		VALUES ($1, $2, NULLIF($3, '')::uuid, NULLIF($4, '')::uuid, $5, $6, $7, $8, $9,
		        $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err = r.db.Pool.Exec(ctx, query,
		draft.ID,
		draft.OwnerID,
		draft.TopicID,
		draft.PillarID,
		draft.VariantLetter,
		draft.FullText,
		draft.Hook,
		draft.Body,
		draft.CTA,
		draft.Hashtags,
		draft.CharacterCount,
		draft.VoiceMatchScore,
		draft.EstimatedReach,
		draft.Style,
		draft.Status,
		metrics,
		gate,
		dedup,
		draft.Embedding,
		draft.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create draft variant: %w", err)
	}
	return nil
}

const draftColumns = `id, owner_id, COALESCE(topic_id::text, ''), COALESCE(pillar_id::text, ''),
	COALESCE(variant_letter, ''), full_text, COALESCE(hook, ''), COALESCE(body, ''), COALESCE(cta, ''),
	hashtags, character_count, voice_match_score, estimated_reach, COALESCE(style, ''), status,
	quality_metrics, quality_gate, deduplication, embedding, created_at`

func scanDraft(row pgx.Row) (*models.DraftVariant, error) {
	draft := &models.DraftVariant{}
	var metrics, gate, dedup []byte
	err := row.Scan(
		&draft.ID,
		&draft.OwnerID,
		&draft.TopicID,
		&draft.PillarID,
		&draft.VariantLetter,
		&draft.FullText,
		&draft.Hook,
		&draft.Body,
		&draft.CTA,
		&draft.Hashtags,
		&draft.CharacterCount,
		&draft.VoiceMatchScore,
		&draft.EstimatedReach,
		&draft.Style,
		&draft.Status,
		&metrics,
		&gate,
		&dedup,
		&draft.Embedding,
		&draft.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalNullable(metrics, &draft.QualityMetrics); err != nil {
		return nil, fmt.Errorf("failed to decode quality metrics: %w", err)
	}
	if err := unmarshalNullable(gate, &draft.QualityGate); err != nil {
		return nil, fmt.Errorf("failed to decode quality gate: %w", err)
	}
	if err := unmarshalNullable(dedup, &draft.Deduplication); err != nil {
		return nil, fmt.Errorf("failed to decode deduplication: %w", err)
	}
	return draft, nil
}

// GetByID retrieves a draft variant by its ID.
func (r *DraftRepository) GetByID(ctx context.Context, id string) (*models.DraftVariant, error) {
	query := `SELECT ` + draftColumns + ` FROM draft_variants WHERE id = $1`

	draft, err := scanDraft(r.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &apperr.NotFoundError{Entity: "draft variant", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft variant: %w", err)
	}
	return draft, nil
}

// GetByOwnerAndStatus retrieves a user's drafts in a given state.
func (r *DraftRepository) GetByOwnerAndStatus(ctx context.Context, ownerID, status string) ([]*models.DraftVariant, error) {
	query := `SELECT ` + draftColumns + `
		FROM draft_variants
		WHERE owner_id = $1 AND status = $2
		ORDER BY created_at DESC`

	rows, err := r.db.Pool.Query(ctx, query, ownerID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query draft variants: %w", err)
	}
	defer rows.Close()

	return collectDrafts(rows)
}

// GetByTopic retrieves all variants generated for a topic, best voice
// match first.
func (r *DraftRepository) GetByTopic(ctx context.Context, topicID string) ([]*models.DraftVariant, error) {
	query := `SELECT ` + draftColumns + `
		FROM draft_variants
		WHERE topic_id = $1
		ORDER BY voice_match_score DESC, variant_letter ASC`

	rows, err := r.db.Pool.Query(ctx, query, topicID)
	if err != nil {
		return nil, fmt.Errorf("failed to query draft variants: %w", err)
	}
	defer rows.Close()

	return collectDrafts(rows)
}

// GetPriorEmbeddings returns embeddings of the user's published and
// approved drafts, the comparison set for deduplication.
func (r *DraftRepository) GetPriorEmbeddings(ctx context.Context, ownerID string) ([][]float64, error) {
	query := `
		SELECT embedding FROM draft_variants
		WHERE owner_id = $1 AND status IN ($2, $3) AND embedding IS NOT NULL
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, ownerID, models.DraftStatusPublished, models.DraftStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to query prior embeddings: %w", err)
	}
	defer rows.Close()

	var embeddings [][]float64
	for rows.Next() {
		var embedding []float64
		if err := rows.Scan(&embedding); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		if len(embedding) > 0 {
			embeddings = append(embeddings, embedding)
		}
	}
	return embeddings, nil
}

// Update persists text edits and derived-state resets.
func (r *DraftRepository) Update(ctx context.Context, draft *models.DraftVariant) error {
	metrics, err := marshalNullable(draft.QualityMetrics)
	if err != nil {
		return fmt.Errorf("failed to encode quality metrics: %w", err)
	}
	gate, err := marshalNullable(draft.QualityGate)
	if err != nil {
		return fmt.Errorf("failed to encode quality gate: %w", err)
	}
	dedup, err := marshalNullable(draft.Deduplication)
	if err != nil {
		return fmt.Errorf("failed to encode deduplication: %w", err)
	}

	query := `
		UPDATE draft_variants
		SET full_text = $2, hook = $3, body = $4, cta = $5, hashtags = $6, character_count = $7,
		    voice_match_score = $8, estimated_reach = $9, status = $10, quality_metrics = $11,
		    quality_gate = $12, deduplication = $13, embedding = $14
		WHERE id = $1
	`

	result, err := r.db.Pool.Exec(ctx, query,
		draft.ID,
		draft.FullText,
		draft.Hook,
		draft.Body,
		draft.CTA,
		draft.Hashtags,
		draft.CharacterCount,
		draft.VoiceMatchScore,
		draft.EstimatedReach,
		draft.Status,
		metrics,
		gate,
		dedup,
		draft.Embedding,
	)
	if err != nil {
		return fmt.Errorf("failed to update draft variant: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &apperr.NotFoundError{Entity: "draft variant", ID: draft.ID}
	}
	return nil
}

// UpdateStatus updates only the status of a draft variant.
func (r *DraftRepository) UpdateStatus(ctx context.Context, id, status string) error {
	result, err := r.db.Pool.Exec(ctx, `UPDATE draft_variants SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update draft status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &apperr.NotFoundError{Entity: "draft variant", ID: id}
	}
	return nil
}

func collectDrafts(rows pgx.Rows) ([]*models.DraftVariant, error) {
	var drafts []*models.DraftVariant
	for rows.Next() {
		draft, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan draft variant: %w", err)
		}
		drafts = append(drafts, draft)
	}
	return drafts, nil
}

// marshalNullable encodes a value for a nullable jsonb column.
func marshalNullable(v any) ([]byte, error) {
	if v == nil || isNilPointer(v) {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalNullable[T any](data []byte, target **T) error {
	if len(data) == 0 {
		return nil
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return err
	}
	*target = out
	return nil
}

func isNilPointer(v any) bool {
	switch t := v.(type) {
	case *models.QualityMetrics:
		return t == nil
	case *models.QualityGateResult:
		return t == nil
	case *models.DeduplicationResult:
		return t == nil
	}
	return false
}
