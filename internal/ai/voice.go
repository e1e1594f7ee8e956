package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voicedraft/voicedraft/internal/apperr"
	"github.com/voicedraft/voicedraft/internal/models"
)

// Profile scoring constants.
const (
	insufficientDataScore = 50  // shown instead of a discouraging 0%
	maxExampleBonus       = 5   // rewards 4-8+ examples
	varianceThreshold     = 0.1 // above this the examples are inconsistent
	variancePenalty       = 10
)

var validArchetypes = map[string]bool{
	models.ArchetypeExpert:      true,
	models.ArchetypeStoryteller: true,
	models.ArchetypeContrarian:  true,
	models.ArchetypeEducator:    true,
	models.ArchetypeAnalyst:     true,
	models.ArchetypeMotivator:   true,
}

// VoiceEngine derives the master voice representation from a user's
// example posts.
type VoiceEngine struct {
	completer Completer
	logger    *zap.Logger
}

func NewVoiceEngine(completer Completer, logger *zap.Logger) *VoiceEngine {
	return &VoiceEngine{completer: completer, logger: logger}
}

// BuildProfile computes the master embedding and confidence score from the
// embedded examples. Fewer than two embedded examples yields the neutral
// insufficient-data score.
func (e *VoiceEngine) BuildProfile(ownerID string, examples []*models.VoiceExample) (*models.VoiceProfile, error) {
	profile := &models.VoiceProfile{
		OwnerID:     ownerID,
		ExtractedAt: time.Now(),
	}

	var vectors [][]float64
	for _, ex := range examples {
		if ex.HasEmbedding() {
			vectors = append(vectors, ex.Embedding)
		}
	}
	profile.ExampleCount = len(vectors)

	if len(vectors) < 2 {
		profile.ConfidenceScore = insufficientDataScore
		if len(vectors) == 1 {
			profile.MasterEmbedding = vectors[0]
		}
		return profile, nil
	}

	master, err := Average(vectors)
	if err != nil {
		return nil, fmt.Errorf("failed to average example embeddings: %w", err)
	}
	profile.MasterEmbedding = master

	similarities := make([]float64, 0, len(vectors))
	var simSum float64
	for _, vec := range vectors {
		sim, err := CosineSimilarity(vec, master)
		if err != nil {
			return nil, fmt.Errorf("failed to score example against master: %w", err)
		}
		similarities = append(similarities, sim)
		simSum += sim
	}
	avgSimilarity := simSum / float64(len(similarities))

	score := int(avgSimilarity * 100)
	if bonus := len(vectors) - models.MinTrainingExamples; bonus > 0 {
		if bonus > maxExampleBonus {
			bonus = maxExampleBonus
		}
		score += bonus
	}
	if Variance(similarities) > varianceThreshold {
		score -= variancePenalty
	}
	profile.ConfidenceScore = ClampScore(score)

	return profile, nil
}

// VoiceDNA is the structured, human-readable description of a user's
// writing style, distinct from the numeric embedding.
type VoiceDNA struct {
	Archetype        string   `json:"archetype"`
	ToneAttributes   []string `json:"tone_attributes"`
	DominantHookType string   `json:"dominant_hook_type"`
	AnalysisNotes    string   `json:"analysis_notes"`
}

// ExtractVoiceDNA asks the completion capability for a structural style
// analysis of the examples. The output is advisory metadata; callers may
// proceed without it when extraction fails.
func (e *VoiceEngine) ExtractVoiceDNA(ctx context.Context, examples []*models.VoiceExample) (*VoiceDNA, error) {
	if len(examples) == 0 {
		return nil, apperr.ErrEmptyInput
	}

	var sb strings.Builder
	for i, ex := range examples {
		fmt.Fprintf(&sb, "POST %d:\n%s\n\n", i+1, ex.Text)
	}

	systemPrompt := fmt.Sprintf(`You analyze writing style. Given example posts, return a JSON object:
{
  "archetype": one of [%s],
  "tone_attributes": array of 3-5 adjectives describing the tone,
  "dominant_hook_type": how the writer typically opens (e.g. "question", "bold claim", "statistic", "story"),
  "analysis_notes": 2-3 sentences on what makes this voice distinctive
}`, strings.Join(archetypeList(), ", "))

	raw, err := e.completer.CompleteJSON(ctx, systemPrompt, sb.String(), 800)
	if err != nil {
		return nil, err
	}

	var dna VoiceDNA
	if err := json.Unmarshal([]byte(raw), &dna); err != nil {
		return nil, &apperr.ParseError{Capability: "voice analysis", RawPayload: raw, Err: err}
	}
	if !validArchetypes[dna.Archetype] {
		e.logger.Warn("model returned archetype outside taxonomy",
			zap.String("archetype", dna.Archetype))
		dna.Archetype = models.ArchetypeExpert
	}
	return &dna, nil
}

// EnrichProfile attaches Voice DNA to a profile. Extraction failure is
// logged and swallowed: DNA never blocks profile building.
func (e *VoiceEngine) EnrichProfile(ctx context.Context, profile *models.VoiceProfile, examples []*models.VoiceExample) {
	dna, err := e.ExtractVoiceDNA(ctx, examples)
	if err != nil {
		e.logger.Warn("voice DNA extraction failed", zap.String("owner", profile.OwnerID), zap.Error(err))
		return
	}
	profile.Archetype = dna.Archetype
	profile.ToneAttributes = dna.ToneAttributes
	profile.DominantHookType = dna.DominantHookType
	profile.AnalysisNotes = dna.AnalysisNotes
}

// SelectPromptExamples picks up to k examples to show the generator,
// biased toward proven content: highest engagement weight first, newest
// first among equals. Weighting affects selection only; the master
// embedding average stays unweighted.
func SelectPromptExamples(examples []*models.VoiceExample, k int) []*models.VoiceExample {
	sorted := make([]*models.VoiceExample, len(examples))
	copy(sorted, examples)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].EngagementWeight != sorted[j].EngagementWeight {
			return sorted[i].EngagementWeight > sorted[j].EngagementWeight
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}

func archetypeList() []string {
	list := make([]string, 0, len(validArchetypes))
	for a := range validArchetypes {
		list = append(list, a)
	}
	sort.Strings(list)
	return list
}
