package models

import "time"

// Topic lifecycle states. Approved and rejected are terminal.
const (
	TopicStatusNew        = "new"
	TopicStatusClassified = "classified"
	TopicStatusDrafted    = "drafted"
	TopicStatusApproved   = "approved"
	TopicStatusRejected   = "rejected"
)

// Topic sources.
const (
	TopicSourceDiscovery = "discovery"
	TopicSourceManual    = "manual"
)

// ManualTopicScore is the default AI score for ad-hoc topics that bypass
// discovery and classification.
const ManualTopicScore = 85

// Topic is a candidate subject for content generation. Raw topics come out
// of discovery; classification attaches a pillar and scores.
type Topic struct {
	ID                string    `json:"id"`
	OwnerID           string    `json:"owner_id"`
	Content           string    `json:"content"`
	Source            string    `json:"source"`
	SourceURL         string    `json:"source_url,omitempty"`
	RawData           string    `json:"raw_data,omitempty"`
	Status            string    `json:"status"`
	PillarID          string    `json:"pillar_id,omitempty"`
	PillarName        string    `json:"pillar_name,omitempty"`
	AIScore           int       `json:"ai_score"` // 0-100
	HookAngle         string    `json:"hook_angle,omitempty"`
	Reasoning         string    `json:"reasoning,omitempty"`
	SuggestedHashtags []string  `json:"suggested_hashtags"`
	ConfidenceScore   int       `json:"confidence_score"` // 0-100, from classification
	KeyPoints         []string  `json:"key_points"`
	RelevanceScore    int       `json:"relevance_score"` // 0-100
	TrendingScore     int       `json:"trending_score"`  // 0-100
	PriorityScore     float64   `json:"priority_score"`
	DiscoveredAt      time.Time `json:"discovered_at"`
}

// NewTopic creates a raw discovered topic awaiting classification.
func NewTopic(ownerID, content string) *Topic {
	return &Topic{
		OwnerID:           ownerID,
		Content:           content,
		Source:            TopicSourceDiscovery,
		Status:            TopicStatusNew,
		SuggestedHashtags: []string{},
		KeyPoints:         []string{},
		DiscoveredAt:      time.Now(),
	}
}

// NewManualTopic creates an ad-hoc topic that skips discovery and
// classification, carrying the default high score.
func NewManualTopic(ownerID, content string) *Topic {
	t := NewTopic(ownerID, content)
	t.Source = TopicSourceManual
	t.Status = TopicStatusClassified
	t.AIScore = ManualTopicScore
	return t
}

// ReadyForGeneration reports whether drafts may reference this topic.
func (t *Topic) ReadyForGeneration() bool {
	switch t.Status {
	case TopicStatusClassified, TopicStatusDrafted, TopicStatusApproved:
		return true
	}
	return false
}
