package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/voicedraft/voicedraft/internal/apperr"
	"github.com/voicedraft/voicedraft/internal/models"
)

// Post validation limits.
const (
	maxPostLength   = 3000
	minPostLength   = 50
	minHookLength   = 10
	minBodyLength   = 50
	maxHashtagCount = 10

	// NeutralVoiceScore is used when no trained master voice exists.
	// Absence of a voice is not the same as a bad match.
	NeutralVoiceScore = 50

	maxPromptExamples = 3
)

var variantStyles = []string{models.StyleNarrative, models.StyleAnalytical, models.StyleConversational}

// GenerationRequest is everything one generation call needs.
type GenerationRequest struct {
	Topic           *models.Topic
	Pillar          *models.Pillar
	VoiceExamples   []*models.VoiceExample
	MasterEmbedding []float64
	UserPerspective string
	NumVariants     int
}

// Generator produces voice-matched draft variants for a topic.
type Generator struct {
	completer  Completer
	embeddings *EmbeddingService
	logger     *zap.Logger
}

func NewGenerator(completer Completer, embeddings *EmbeddingService, logger *zap.Logger) *Generator {
	return &Generator{completer: completer, embeddings: embeddings, logger: logger}
}

type generatedVariant struct {
	Style    string   `json:"style"`
	Hook     string   `json:"hook"`
	Body     string   `json:"body"`
	CTA      string   `json:"cta"`
	Hashtags []string `json:"hashtags"`
}

type generateResponse struct {
	Variants []generatedVariant `json:"variants"`
}

// GenerateVariants requests NumVariants stylistically distinct drafts in a
// single completion call, scores each against the master voice, and
// returns them sorted by voice-match score descending.
func (g *Generator) GenerateVariants(ctx context.Context, req *GenerationRequest) ([]*models.DraftVariant, error) {
	if req.Topic == nil || req.Topic.Content == "" {
		return nil, &apperr.ValidationError{Field: "topic", Reason: "topic content is required"}
	}
	if req.NumVariants <= 0 {
		req.NumVariants = 3
	}

	raw, err := g.completer.CompleteJSON(ctx, g.systemPrompt(req), g.userPrompt(req), 1200*req.NumVariants)
	if err != nil {
		return nil, err
	}

	var resp generateResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, &apperr.ParseError{Capability: "generation", RawPayload: raw, Err: err}
	}
	if len(resp.Variants) == 0 {
		return nil, &apperr.ParseError{Capability: "generation", RawPayload: raw, Err: fmt.Errorf("no variants returned")}
	}
	// Extra variants are truncated below; a shortfall is a malformed
	// response, same as a wrong classification count.
	if len(resp.Variants) < req.NumVariants {
		return nil, &apperr.ParseError{
			Capability: "generation",
			RawPayload: raw,
			Err:        fmt.Errorf("expected %d variants, got %d", req.NumVariants, len(resp.Variants)),
		}
	}

	pillarID := ""
	if req.Pillar != nil {
		pillarID = req.Pillar.ID
	}

	var drafts []*models.DraftVariant
	for i, v := range resp.Variants {
		if i >= req.NumVariants {
			break
		}
		draft := models.NewDraftVariant(req.Topic.OwnerID, req.Topic.ID, pillarID, "")
		draft.Hook = strings.TrimSpace(v.Hook)
		draft.Body = strings.TrimSpace(v.Body)
		draft.CTA = strings.TrimSpace(v.CTA)
		draft.Hashtags = v.Hashtags
		if draft.Hashtags == nil {
			draft.Hashtags = []string{}
		}
		draft.Style = v.Style
		if draft.Style == "" && i < len(variantStyles) {
			draft.Style = variantStyles[i]
		}
		draft.FullText = assembleFullText(draft)
		draft.CharacterCount = len([]rune(draft.FullText))
		drafts = append(drafts, draft)
	}

	g.scoreVoiceMatch(ctx, drafts, req.MasterEmbedding)

	// Model order carries no meaning; the sort below is the contract.
	sort.SliceStable(drafts, func(i, j int) bool {
		return drafts[i].VoiceMatchScore > drafts[j].VoiceMatchScore
	})
	for i, draft := range drafts {
		draft.VariantLetter = string(rune('A' + i))
	}

	g.logger.Info("generated draft variants",
		zap.String("topic", req.Topic.ID),
		zap.Int("variants", len(drafts)))
	return drafts, nil
}

// scoreVoiceMatch embeds each draft and scores it against the master
// voice. Without a trained voice, or when embedding is unavailable, every
// draft gets the neutral score.
func (g *Generator) scoreVoiceMatch(ctx context.Context, drafts []*models.DraftVariant, master []float64) {
	if len(master) == 0 {
		for _, d := range drafts {
			d.VoiceMatchScore = NeutralVoiceScore
		}
		return
	}

	texts := make([]string, len(drafts))
	for i, d := range drafts {
		texts[i] = d.FullText
	}
	vectors, err := g.embeddings.EmbedBatch(ctx, texts)
	if err != nil {
		g.logger.Warn("voice match scoring degraded to neutral", zap.Error(err))
		for _, d := range drafts {
			d.VoiceMatchScore = NeutralVoiceScore
		}
		return
	}

	for i, d := range drafts {
		d.Embedding = vectors[i]
		sim, err := CosineSimilarity(vectors[i], master)
		if err != nil {
			d.VoiceMatchScore = NeutralVoiceScore
			continue
		}
		d.VoiceMatchScore = ClampScore(int(math.Round(sim * 100)))
	}
}

func (g *Generator) systemPrompt(req *GenerationRequest) string {
	var sb strings.Builder
	sb.WriteString("You are a professional ghostwriter. Write posts that sound like the author, not like marketing copy.\n")

	if req.Pillar != nil {
		fmt.Fprintf(&sb, "\nContent pillar: %s", req.Pillar.Name)
		if req.Pillar.Description != "" {
			fmt.Fprintf(&sb, " — %s", req.Pillar.Description)
		}
		if req.Pillar.Tone != "" {
			fmt.Fprintf(&sb, "\nTone: %s", req.Pillar.Tone)
		}
		if req.Pillar.TargetAudience != "" {
			fmt.Fprintf(&sb, "\nAudience: %s", req.Pillar.TargetAudience)
		}
		sb.WriteString("\n")
	}

	examples := SelectPromptExamples(req.VoiceExamples, maxPromptExamples)
	if len(examples) > 0 {
		sb.WriteString("\nThe author's voice, from their own posts:\n")
		for i, ex := range examples {
			fmt.Fprintf(&sb, "\nEXAMPLE %d:\n%s\n", i+1, ex.Text)
		}
	}

	styleNote := "each with a distinct angle"
	if req.NumVariants == len(variantStyles) {
		styleNote = fmt.Sprintf("one %s, one %s, one %s", variantStyles[0], variantStyles[1], variantStyles[2])
	}
	fmt.Fprintf(&sb, `
Produce %d stylistically distinct variants (%s) as a JSON object:
{"variants": [{"style": <style name>, "hook": <opening line(s)>, "body": <main content>, "cta": <closing call to action or question>, "hashtags": [up to 5]}]}
Hooks must grab attention in the first line. Bodies use short paragraphs. No emoji walls.`, req.NumVariants, styleNote)
	return sb.String()
}

func (g *Generator) userPrompt(req *GenerationRequest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write about: %s\n", req.Topic.Content)
	if req.Topic.HookAngle != "" {
		fmt.Fprintf(&sb, "Suggested angle: %s\n", req.Topic.HookAngle)
	}
	if len(req.Topic.KeyPoints) > 0 {
		sb.WriteString("Key points:\n")
		for _, p := range req.Topic.KeyPoints {
			fmt.Fprintf(&sb, "- %s\n", p)
		}
	}
	if req.UserPerspective != "" {
		fmt.Fprintf(&sb, "\nThe author's own take, which must drive the post:\n%s\n", req.UserPerspective)
	}
	return sb.String()
}

func assembleFullText(d *models.DraftVariant) string {
	parts := []string{}
	if d.Hook != "" {
		parts = append(parts, d.Hook)
	}
	if d.Body != "" {
		parts = append(parts, d.Body)
	}
	if d.CTA != "" {
		parts = append(parts, d.CTA)
	}
	text := strings.Join(parts, "\n\n")
	if len(d.Hashtags) > 0 {
		text += "\n\n" + strings.Join(d.Hashtags, " ")
	}
	return text
}

// ValidationResult collects structural problems instead of failing on the
// first: callers may still show an invalid draft with its warnings.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ValidatePost checks structural limits on a draft.
func ValidatePost(d *models.DraftVariant) ValidationResult {
	var errs []string

	length := len([]rune(d.FullText))
	if length < minPostLength {
		errs = append(errs, fmt.Sprintf("post too short: %d chars, minimum %d", length, minPostLength))
	}
	if length > maxPostLength {
		errs = append(errs, fmt.Sprintf("post too long: %d chars, maximum %d", length, maxPostLength))
	}
	if len([]rune(d.Hook)) < minHookLength {
		errs = append(errs, fmt.Sprintf("hook missing or under %d chars", minHookLength))
	}
	if len([]rune(d.Body)) < minBodyLength {
		errs = append(errs, fmt.Sprintf("body missing or under %d chars", minBodyLength))
	}
	if len(d.Hashtags) > maxHashtagCount {
		errs = append(errs, fmt.Sprintf("too many hashtags: %d, maximum %d", len(d.Hashtags), maxHashtagCount))
	}

	if errs == nil {
		errs = []string{}
	}
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// EngagementEstimator predicts rough engagement for a draft. An interface
// so the heuristic can be replaced without touching generation logic.
type EngagementEstimator interface {
	Estimate(d *models.DraftVariant, followerBaseline int) int
}

// HeuristicEstimator is a transparent rule-of-thumb scorer, explicitly a
// rough proxy rather than a prediction model.
type HeuristicEstimator struct {
	// EngagementRate is the assumed fraction of followers who engage
	// with a typical post.
	EngagementRate float64
}

func NewHeuristicEstimator() *HeuristicEstimator {
	return &HeuristicEstimator{EngagementRate: 0.02}
}

// Estimate scores a draft by additive bonuses and scales by the assumed
// engagement rate against follower count.
func (h *HeuristicEstimator) Estimate(d *models.DraftVariant, followerBaseline int) int {
	multiplier := 1.0

	if d.CharacterCount >= 800 && d.CharacterCount <= 1500 {
		multiplier += 0.2 // length sweet spot
	}
	if strings.Contains(d.Hook, "?") {
		multiplier += 0.15
	}
	if strings.ContainsAny(d.Hook, "0123456789") {
		multiplier += 0.1
	}
	if strings.TrimSpace(d.CTA) != "" {
		multiplier += 0.15
	}
	if n := len(d.Hashtags); n >= 3 && n <= 5 {
		multiplier += 0.1
	}

	return int(float64(followerBaseline) * h.EngagementRate * multiplier)
}
