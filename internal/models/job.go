package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Generation job statuses.
const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

// Job kinds processed by the queue.
const (
	JobKindGeneration   = "generation"
	JobKindRegeneration = "regeneration"
	JobKindDiscovery    = "discovery"
)

// GenerationJob is one queued unit of pipeline work, keyed by a
// deterministic idempotency key so retries cannot enqueue duplicates.
type GenerationJob struct {
	ID             string     `json:"id"` // idempotency key
	OwnerID        string     `json:"owner_id"`
	Kind           string     `json:"kind"`
	TopicID        string     `json:"topic_id,omitempty"`
	PillarID       string     `json:"pillar_id,omitempty"`
	Payload        string     `json:"payload,omitempty"` // JSON request snapshot
	Status         string     `json:"status"`
	Attempts       int        `json:"attempts"`
	LastError      string     `json:"last_error,omitempty"`
	PlaceholderRef string     `json:"placeholder_ref,omitempty"` // caller-visible record to update in place
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`

	// ResultDraftIDs carries the drafts created by a successful run to
	// the notification layer. In-memory only.
	ResultDraftIDs []string `json:"-"`
}

// NewGenerationJob creates a queued job with its idempotency key derived
// from the triggering action.
func NewGenerationJob(ownerID, kind, topicID string, triggeredAt time.Time) *GenerationJob {
	return &GenerationJob{
		ID:        IdempotencyKey(ownerID, kind, topicID, triggeredAt),
		OwnerID:   ownerID,
		Kind:      kind,
		TopicID:   topicID,
		Status:    JobStatusQueued,
		CreatedAt: time.Now(),
	}
}

// IdempotencyKey derives a stable job identity from the user action. Two
// enqueues for the same logical request share a key; a regeneration of
// the same topic carries its own kind and timestamp and so a new key.
func IdempotencyKey(ownerID, kind, topicID string, triggeredAt time.Time) string {
	raw := fmt.Sprintf("%s|%s|%s|%d", ownerID, kind, topicID, triggeredAt.Unix())
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:16])
}

// Terminal reports whether the job can no longer transition.
func (j *GenerationJob) Terminal() bool {
	return j.Status == JobStatusSucceeded || j.Status == JobStatusFailed
}
