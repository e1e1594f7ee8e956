package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voicedraft/voicedraft/internal/ai"
	"github.com/voicedraft/voicedraft/internal/apperr"
	"github.com/voicedraft/voicedraft/internal/models"
)

// RegenerateRequest asks for a fresh variant set on a topic that has
// already been drafted from.
type RegenerateRequest struct {
	OwnerID         string `json:"owner_id"`
	TopicID         string `json:"topic_id"`
	UserPerspective string `json:"user_perspective,omitempty"`
	NumVariants     int    `json:"num_variants,omitempty"`
}

// RegenerateTopic runs the generation pipeline again for an existing
// topic. Regenerations are billed against their own allowance, and each
// call produces a new job; prior drafts stay in place since drafts are
// additive.
func (s *Service) RegenerateTopic(ctx context.Context, req *RegenerateRequest) (*GenerationResponse, error) {
	if req.OwnerID == "" {
		return nil, &apperr.ValidationError{Field: "owner_id", Reason: "required"}
	}
	if req.TopicID == "" {
		return nil, &apperr.ValidationError{Field: "topic_id", Reason: "required"}
	}

	topic, err := s.topics.GetByID(ctx, req.TopicID)
	if err != nil {
		return nil, err
	}
	if topic.OwnerID != req.OwnerID {
		return nil, &apperr.NotFoundError{Entity: "topic", ID: req.TopicID}
	}
	if !topic.ReadyForGeneration() {
		return nil, &apperr.ValidationError{
			Field:  "topic_id",
			Reason: fmt.Sprintf("topic in state %q cannot be regenerated", topic.Status),
		}
	}

	pillar, err := s.resolvePillar(ctx, req.OwnerID, topic.PillarID)
	if err != nil {
		return nil, err
	}

	decision, err := s.usage.CheckAllowed(ctx, req.OwnerID, models.ActionRegenerate)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, &apperr.UsageLimitExceeded{Action: models.ActionRegenerate, Plan: decision.Plan}
	}

	numVariants := req.NumVariants
	if numVariants <= 0 {
		numVariants = defaultNumVariants
	}
	payload, err := json.Marshal(jobPayload{
		TopicID:         topic.ID,
		PillarID:        pillar.ID,
		Action:          models.ActionRegenerate,
		UserPerspective: req.UserPerspective,
		NumVariants:     numVariants,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode job payload: %w", err)
	}

	job := models.NewGenerationJob(req.OwnerID, models.JobKindRegeneration, topic.ID, time.Now())
	job.PillarID = pillar.ID
	job.Payload = string(payload)

	if s.notifier != nil {
		ref, nerr := s.notifier.PostProcessing(ctx, req.OwnerID,
			fmt.Sprintf("Regenerating drafts for: %s…", topic.Content))
		if nerr != nil {
			s.logger.Warn("could not post processing placeholder", zap.Error(nerr))
		} else {
			job.PlaceholderRef = ref
		}
	}

	result, err := s.strategy.Run(ctx, job)
	if err != nil {
		return nil, err
	}
	if result.Async {
		return &GenerationResponse{Status: StatusProcessing, JobID: job.ID, TopicID: topic.ID}, nil
	}

	drafts, err := s.drafts.GetByTopic(ctx, topic.ID)
	if err != nil {
		return nil, err
	}
	return &GenerationResponse{Status: StatusCompleted, JobID: job.ID, TopicID: topic.ID, Drafts: drafts}, nil
}

// EditDraftRequest replaces a draft's text fields in full.
type EditDraftRequest struct {
	OwnerID  string   `json:"owner_id"`
	DraftID  string   `json:"draft_id"`
	FullText string   `json:"full_text"`
	Hook     string   `json:"hook"`
	Body     string   `json:"body"`
	CTA      string   `json:"cta,omitempty"`
	Hashtags []string `json:"hashtags,omitempty"`
}

// EditDraft applies a user edit to a stored variant. Editing resets the
// variant's quality, dedup, and voice-match state, so all three are
// recomputed against the new text before the update is persisted. A
// structurally invalid edit is still saved; its problems come back as
// warnings on the returned draft.
func (s *Service) EditDraft(ctx context.Context, req *EditDraftRequest) (*models.DraftVariant, error) {
	if req.OwnerID == "" {
		return nil, &apperr.ValidationError{Field: "owner_id", Reason: "required"}
	}
	if req.DraftID == "" {
		return nil, &apperr.ValidationError{Field: "draft_id", Reason: "required"}
	}
	if strings.TrimSpace(req.FullText) == "" {
		return nil, &apperr.ValidationError{Field: "full_text", Reason: "required"}
	}

	draft, err := s.drafts.GetByID(ctx, req.DraftID)
	if err != nil {
		return nil, err
	}
	if draft.OwnerID != req.OwnerID {
		return nil, &apperr.NotFoundError{Entity: "draft", ID: req.DraftID}
	}

	draft.ApplyEdit(req.FullText, req.Hook, req.Body, req.CTA)
	if req.Hashtags != nil {
		draft.Hashtags = req.Hashtags
	}

	draft.VoiceMatchScore = s.rescoreVoice(ctx, draft)
	s.gate.Evaluate(draft)
	if prior, perr := s.drafts.GetPriorEmbeddings(ctx, req.OwnerID); perr == nil {
		draft.Deduplication = s.dedup.CheckDuplicate(draft.Embedding, prior)
	} else {
		s.logger.Warn("skipping dedup screen on edit", zap.String("draft", draft.ID), zap.Error(perr))
	}
	if s.estimator != nil {
		draft.EstimatedReach = s.estimator.Estimate(draft, s.followers)
	}

	if err := s.drafts.Update(ctx, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

// rescoreVoice re-embeds the edited text and scores it against the
// owner's master voice. Falls back to the neutral score when the owner
// is untrained or the embedding capability is down.
func (s *Service) rescoreVoice(ctx context.Context, draft *models.DraftVariant) int {
	vec, err := s.embeddings.Embed(ctx, draft.FullText)
	if err != nil {
		s.logger.Warn("edited draft left without embedding", zap.String("draft", draft.ID), zap.Error(err))
		return ai.NeutralVoiceScore
	}
	draft.Embedding = vec

	profile, err := s.voice.GetProfile(ctx, draft.OwnerID)
	if err != nil || !profile.Trained() {
		return ai.NeutralVoiceScore
	}
	sim, err := ai.CosineSimilarity(vec, profile.MasterEmbedding)
	if err != nil {
		return ai.NeutralVoiceScore
	}
	return ai.ClampScore(int(math.Round(sim * 100)))
}
