package models

import "time"

// Draft variant statuses.
const (
	DraftStatusDraft     = "draft"
	DraftStatusApproved  = "approved"
	DraftStatusPublished = "published"
	DraftStatusRejected  = "rejected"
)

// Generation styles requested when three variants are produced.
const (
	StyleNarrative      = "narrative"
	StyleAnalytical     = "analytical"
	StyleConversational = "conversational"
)

// Quality gate verdicts.
const (
	GatePass = "pass"
	GateWarn = "warn"
	GateFail = "fail"
)

// Deduplication verdicts, ordered by severity.
const (
	DedupProceed       = "proceed"
	DedupWarn          = "warn"
	DedupForceNewAngle = "force_new_angle"
)

// QualityMetrics holds the independent sub-scores produced by the quality
// gate, each normalized to 0-100 except the raw counts.
type QualityMetrics struct {
	Specificity   int     `json:"specificity"`
	Credibility   int     `json:"credibility"`
	ClicheCount   int     `json:"cliche_count"`
	AIPhraseCount int     `json:"ai_phrase_count"`
	HookStrength  int     `json:"hook_strength"`
	Readability   int     `json:"readability"`
	PronounRatio  float64 `json:"pronoun_ratio"`
	Overall       int     `json:"overall"`
}

// QualityGateResult is the three-valued gate decision plus the warnings
// that produced it. Warned/failed variants are surfaced, never dropped.
type QualityGateResult struct {
	Verdict  string   `json:"verdict"`
	Warnings []string `json:"warnings"`
}

// DeduplicationResult records the similarity screen against prior
// published/approved drafts.
type DeduplicationResult struct {
	MaxSimilarity float64 `json:"max_similarity"`
	Verdict       string  `json:"verdict"`
}

// DraftVariant is one generated draft for a topic. Text is immutable unless
// explicitly edited, which resets quality and dedup state.
type DraftVariant struct {
	ID              string               `json:"id"`
	OwnerID         string               `json:"owner_id"`
	TopicID         string               `json:"topic_id"`
	PillarID        string               `json:"pillar_id"`
	VariantLetter   string               `json:"variant_letter"`
	FullText        string               `json:"full_text"`
	Hook            string               `json:"hook"`
	Body            string               `json:"body"`
	CTA             string               `json:"cta"`
	Hashtags        []string             `json:"hashtags"`
	CharacterCount  int                  `json:"character_count"`
	VoiceMatchScore int                  `json:"voice_match_score"` // 0-100
	EstimatedReach  int                  `json:"estimated_reach"`
	Style           string               `json:"style"`
	Status          string               `json:"status"`
	QualityMetrics  *QualityMetrics      `json:"quality_metrics,omitempty"`
	QualityGate     *QualityGateResult   `json:"quality_gate,omitempty"`
	Deduplication   *DeduplicationResult `json:"deduplication,omitempty"`
	Embedding       []float64            `json:"embedding,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

// NewDraftVariant creates a draft in its initial state.
func NewDraftVariant(ownerID, topicID, pillarID, letter string) *DraftVariant {
	return &DraftVariant{
		OwnerID:       ownerID,
		TopicID:       topicID,
		PillarID:      pillarID,
		VariantLetter: letter,
		Hashtags:      []string{},
		Status:        DraftStatusDraft,
		CreatedAt:     time.Now(),
	}
}

// ApplyEdit replaces the draft text and resets derived state, since the
// old quality and dedup results no longer describe the content.
func (d *DraftVariant) ApplyEdit(fullText, hook, body, cta string) {
	d.FullText = fullText
	d.Hook = hook
	d.Body = body
	d.CTA = cta
	d.CharacterCount = len([]rune(fullText))
	d.QualityMetrics = nil
	d.QualityGate = nil
	d.Deduplication = nil
	d.Embedding = nil
	d.EstimatedReach = 0
}
