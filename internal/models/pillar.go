package models

import "time"

// Pillar statuses. Only active pillars are classification/generation targets.
const (
	PillarStatusSuggested = "suggested"
	PillarStatusActive    = "active"
	PillarStatusArchived  = "archived"
)

// Pillar is a named content theme used to scope classification and generation.
type Pillar struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Tone           string    `json:"tone,omitempty"`
	TargetAudience string    `json:"target_audience,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewPillar creates a manually-defined pillar, active immediately.
func NewPillar(ownerID, name string) *Pillar {
	return &Pillar{
		OwnerID:   ownerID,
		Name:      name,
		Status:    PillarStatusActive,
		CreatedAt: time.Now(),
	}
}
