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

type TopicRepository struct {
	db *DB
}

func NewTopicRepository(db *DB) *TopicRepository {
	return &TopicRepository{db: db}
}

const topicColumns = `id, owner_id, content, source, COALESCE(source_url, ''), COALESCE(raw_data, ''),
	status, COALESCE(pillar_id::text, ''), COALESCE(pillar_name, ''), ai_score,
	COALESCE(hook_angle, ''), COALESCE(reasoning, ''), suggested_hashtags, key_points,
	confidence_score, relevance_score, trending_score, priority_score, discovered_at`

func scanTopic(row pgx.Row) (*models.Topic, error) {
	topic := &models.Topic{}
	err := row.Scan(
		&topic.ID,
		&topic.OwnerID,
		&topic.Content,
		&topic.Source,
		&topic.SourceURL,
		&topic.RawData,
		&topic.Status,
		&topic.PillarID,
		&topic.PillarName,
		&topic.AIScore,
		&topic.HookAngle,
		&topic.Reasoning,
		&topic.SuggestedHashtags,
		&topic.KeyPoints,
		&topic.ConfidenceScore,
		&topic.RelevanceScore,
		&topic.TrendingScore,
		&topic.PriorityScore,
		&topic.DiscoveredAt,
	)
	if err != nil {
		return nil, err
	}
	return topic, nil
}

// Create inserts a new topic.
func (r *TopicRepository) Create(ctx context.Context, topic *models.Topic) error {
	if topic.ID == "" {
		topic.ID = uuid.New().String()
	}

	query := `
		INSERT INTO topics
			(id, owner_id, content, source, source_url, raw_data, status, pillar_id, pillar_name,
			 ai_score, hook_angle, reasoning, suggested_hashtags, key_points,
			 confidence_score, relevance_score, trending_score, priority_score, discovered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, '')::uuid, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		topic.ID,
		topic.OwnerID,
		topic.Content,
		topic.Source,
		topic.SourceURL,
		topic.RawData,
		topic.Status,
		topic.PillarID,
		topic.PillarName,
		topic.AIScore,
		topic.HookAngle,
		topic.Reasoning,
		topic.SuggestedHashtags,
		topic.KeyPoints,
		topic.ConfidenceScore,
		topic.RelevanceScore,
		topic.TrendingScore,
		topic.PriorityScore,
		topic.DiscoveredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create topic: %w", err)
	}
	return nil
}

// GetByID retrieves a topic by its ID.
func (r *TopicRepository) GetByID(ctx context.Context, id string) (*models.Topic, error) {
	query := `SELECT ` + topicColumns + ` FROM topics WHERE id = $1`

	topic, err := scanTopic(r.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &apperr.NotFoundError{Entity: "topic", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get topic: %w", err)
	}
	return topic, nil
}

// GetByOwnerAndStatus retrieves topics for a user in a given state, best
// ranked first.
func (r *TopicRepository) GetByOwnerAndStatus(ctx context.Context, ownerID, status string) ([]*models.Topic, error) {
	query := `SELECT ` + topicColumns + `
		FROM topics
		WHERE owner_id = $1 AND status = $2
		ORDER BY priority_score DESC, discovered_at DESC`

	rows, err := r.db.Pool.Query(ctx, query, ownerID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query topics: %w", err)
	}
	defer rows.Close()

	var topics []*models.Topic
	for rows.Next() {
		topic, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan topic: %w", err)
		}
		topics = append(topics, topic)
	}
	return topics, nil
}

// Update persists classification and scoring changes to a topic.
func (r *TopicRepository) Update(ctx context.Context, topic *models.Topic) error {
	query := `
		UPDATE topics
		SET status = $2, pillar_id = NULLIF($3, '')::uuid, pillar_name = $4, ai_score = $5,
		    hook_angle = $6, reasoning = $7, suggested_hashtags = $8, key_points = $9,
		    confidence_score = $10, relevance_score = $11, trending_score = $12, priority_score = $13
		WHERE id = $1
	`

	result, err := r.db.Pool.Exec(ctx, query,
		topic.ID,
		topic.Status,
		topic.PillarID,
		topic.PillarName,
		topic.AIScore,
		topic.HookAngle,
		topic.Reasoning,
		topic.SuggestedHashtags,
		topic.KeyPoints,
		topic.ConfidenceScore,
		topic.RelevanceScore,
		topic.TrendingScore,
		topic.PriorityScore,
	)
	if err != nil {
		return fmt.Errorf("failed to update topic: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &apperr.NotFoundError{Entity: "topic", ID: topic.ID}
	}
	return nil
}

// UpdateStatus updates only the lifecycle state of a topic.
func (r *TopicRepository) UpdateStatus(ctx context.Context, id, status string) error {
	result, err := r.db.Pool.Exec(ctx, `UPDATE topics SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update topic status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return &apperr.NotFoundError{Entity: "topic", ID: id}
	}
	return nil
}
