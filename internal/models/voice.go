package models

import "time"

// Voice archetypes assigned by Voice DNA extraction.
const (
	ArchetypeExpert      = "expert"
	ArchetypeStoryteller = "storyteller"
	ArchetypeContrarian  = "contrarian"
	ArchetypeEducator    = "educator"
	ArchetypeAnalyst     = "analyst"
	ArchetypeMotivator   = "motivator"
)

// MinTrainingExamples is the number of embedded examples required before a
// profile is considered trained and usable for voice-match scoring.
const MinTrainingExamples = 3

// VoiceExample is a single post the user wrote, used as voice training data.
// Immutable once embedded; EngagementWeight biases which examples are picked
// for generation prompts.
type VoiceExample struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"owner_id"`
	Text             string    `json:"text"`
	Embedding        []float64 `json:"embedding,omitempty"`
	EngagementWeight int       `json:"engagement_weight"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewVoiceExample creates a voice example with defaults. The embedding is
// filled in later by the embedding service.
func NewVoiceExample(ownerID, text string) *VoiceExample {
	return &VoiceExample{
		OwnerID:          ownerID,
		Text:             text,
		EngagementWeight: 1,
		CreatedAt:        time.Now(),
	}
}

// HasEmbedding reports whether the example has been embedded.
func (e *VoiceExample) HasEmbedding() bool {
	return len(e.Embedding) > 0
}

// VoiceProfile is the derived "master voice" for a user. Always recomputed
// from the current VoiceExample set, never created directly.
type VoiceProfile struct {
	OwnerID          string    `json:"owner_id"`
	MasterEmbedding  []float64 `json:"master_embedding"`
	ConfidenceScore  int       `json:"confidence_score"` // 0-100
	Archetype        string    `json:"archetype"`
	ToneAttributes   []string  `json:"tone_attributes"`
	DominantHookType string    `json:"dominant_hook_type"`
	AnalysisNotes    string    `json:"analysis_notes"`
	ExampleCount     int       `json:"example_count"`
	ExtractedAt      time.Time `json:"extracted_at"`
}

// Trained reports whether the profile was built from enough embedded
// examples to make voice-match scores meaningful.
func (p *VoiceProfile) Trained() bool {
	return p.ExampleCount >= MinTrainingExamples && len(p.MasterEmbedding) > 0
}
