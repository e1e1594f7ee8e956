package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/voicedraft/voicedraft/internal/apperr"
	"github.com/voicedraft/voicedraft/internal/models"
)

// Manual-review thresholds. Low confidence and low relevance are distinct
// failure modes: a topic can be a confident match for the wrong reason, or
// relevant but ambiguous.
const (
	reviewConfidenceFloor = 60
	reviewRelevanceFloor  = 50
)

// Classification is the strictly-validated result of classifying one topic
// against the active pillar set.
type Classification struct {
	PillarID          string   `json:"pillar_id"`
	PillarName        string   `json:"pillar_name"`
	ConfidenceScore   int      `json:"confidence_score"` // 0-100
	RelevanceScore    int      `json:"relevance_score"`  // 0-100
	AIScore           int      `json:"ai_score"`         // 0-100
	HookAngle         string   `json:"hook_angle"`
	Reasoning         string   `json:"reasoning"`
	SuggestedHashtags []string `json:"suggested_hashtags"`
}

// Classifier assigns topics to content pillars.
type Classifier struct {
	completer Completer
	logger    *zap.Logger
}

func NewClassifier(completer Completer, logger *zap.Logger) *Classifier {
	return &Classifier{completer: completer, logger: logger}
}

// Classify assigns one topic to the best-fit active pillar.
func (c *Classifier) Classify(ctx context.Context, topicContent string, pillars []*models.Pillar) (*Classification, error) {
	results, err := c.ClassifyBatch(ctx, []string{topicContent}, pillars)
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

type classifyResponse struct {
	Results []struct {
		Topic             int      `json:"topic"`
		PillarName        string   `json:"pillar_name"`
		ConfidenceScore   int      `json:"confidence_score"`
		RelevanceScore    int      `json:"relevance_score"`
		AIScore           int      `json:"ai_score"`
		HookAngle         string   `json:"hook_angle"`
		Reasoning         string   `json:"reasoning"`
		SuggestedHashtags []string `json:"suggested_hashtags"`
	} `json:"results"`
}

// ClassifyBatch classifies many topics in one completion call. The output
// order matches the input order. Fails with NoPillarsAvailable when the
// pillar set is empty: classification needs a target taxonomy.
func (c *Classifier) ClassifyBatch(ctx context.Context, topicContents []string, pillars []*models.Pillar) ([]*Classification, error) {
	if len(pillars) == 0 {
		return nil, apperr.ErrNoPillarsAvailable
	}
	if len(topicContents) == 0 {
		return nil, apperr.ErrEmptyInput
	}

	var pillarDesc strings.Builder
	for _, p := range pillars {
		fmt.Fprintf(&pillarDesc, "- %s", p.Name)
		if p.Description != "" {
			fmt.Fprintf(&pillarDesc, ": %s", p.Description)
		}
		if p.TargetAudience != "" {
			fmt.Fprintf(&pillarDesc, " (audience: %s)", p.TargetAudience)
		}
		pillarDesc.WriteString("\n")
	}

	var topicList strings.Builder
	for i, content := range topicContents {
		fmt.Fprintf(&topicList, "TOPIC %d: %s\n", i+1, content)
	}

	systemPrompt := fmt.Sprintf(`You classify content topics into pillars. The pillars are:
%s
For every topic return an entry in a JSON object:
{"results": [{"topic": <1-based topic number>, "pillar_name": <best-fit pillar name, exactly as listed>,
"confidence_score": 0-100, "relevance_score": 0-100, "ai_score": <0-100 overall quality as a post subject>,
"hook_angle": <one-sentence angle>, "reasoning": <why this pillar>, "suggested_hashtags": [...]}]}
Return one entry per topic, in topic order.`, pillarDesc.String())

	raw, err := c.completer.CompleteJSON(ctx, systemPrompt, topicList.String(), 300*len(topicContents)+500)
	if err != nil {
		return nil, err
	}

	var resp classifyResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, &apperr.ParseError{Capability: "classification", RawPayload: raw, Err: err}
	}
	if len(resp.Results) != len(topicContents) {
		return nil, &apperr.ParseError{
			Capability: "classification",
			RawPayload: raw,
			Err:        fmt.Errorf("expected %d results, got %d", len(topicContents), len(resp.Results)),
		}
	}

	byName := make(map[string]*models.Pillar, len(pillars))
	for _, p := range pillars {
		byName[strings.ToLower(p.Name)] = p
	}

	out := make([]*Classification, len(topicContents))
	for _, r := range resp.Results {
		idx := r.Topic - 1
		if idx < 0 || idx >= len(out) {
			return nil, &apperr.ParseError{
				Capability: "classification",
				RawPayload: raw,
				Err:        fmt.Errorf("result references topic %d outside batch of %d", r.Topic, len(topicContents)),
			}
		}

		confidence := ClampScore(r.ConfidenceScore)
		pillar, ok := byName[strings.ToLower(strings.TrimSpace(r.PillarName))]
		if !ok {
			// An off-taxonomy name is mapped to the first pillar rather
			// than failing the whole batch, but the substitution is not
			// the model's answer: cap the confidence below the review
			// floor so the topic cannot be filed without a human look.
			c.logger.Warn("classifier returned unknown pillar name",
				zap.String("pillar", r.PillarName))
			pillar = pillars[0]
			if confidence >= reviewConfidenceFloor {
				confidence = reviewConfidenceFloor - 1
			}
		}

		out[idx] = &Classification{
			PillarID:          pillar.ID,
			PillarName:        pillar.Name,
			ConfidenceScore:   confidence,
			RelevanceScore:    ClampScore(r.RelevanceScore),
			AIScore:           ClampScore(r.AIScore),
			HookAngle:         r.HookAngle,
			Reasoning:         r.Reasoning,
			SuggestedHashtags: r.SuggestedHashtags,
		}
	}

	for i, result := range out {
		if result == nil {
			return nil, &apperr.ParseError{
				Capability: "classification",
				RawPayload: raw,
				Err:        fmt.Errorf("no result for topic %d", i+1),
			}
		}
	}
	return out, nil
}

// NeedsManualReview reports whether a classification is too weak to act on
// without a human look.
func NeedsManualReview(result *Classification) bool {
	return result.ConfidenceScore < reviewConfidenceFloor || result.RelevanceScore < reviewRelevanceFloor
}

// ApplyClassification moves a topic into the classified state.
func ApplyClassification(topic *models.Topic, result *Classification) {
	topic.PillarID = result.PillarID
	topic.PillarName = result.PillarName
	topic.AIScore = result.AIScore
	topic.HookAngle = result.HookAngle
	topic.Reasoning = result.Reasoning
	if len(result.SuggestedHashtags) > 0 {
		topic.SuggestedHashtags = result.SuggestedHashtags
	}
	topic.RelevanceScore = result.RelevanceScore
	topic.ConfidenceScore = result.ConfidenceScore
	topic.Status = models.TopicStatusClassified
}
