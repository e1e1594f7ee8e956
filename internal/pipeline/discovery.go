package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/voicedraft/voicedraft/internal/ai"
	"github.com/voicedraft/voicedraft/internal/apperr"
	"github.com/voicedraft/voicedraft/internal/models"
)

// DiscoveryRequest triggers a discovery run for a user.
type DiscoveryRequest struct {
	OwnerID   string `json:"owner_id"`
	Domain    string `json:"domain"`
	Expertise string `json:"expertise,omitempty"`
	Count     int    `json:"count,omitempty"`
}

// DiscoveryResponse returns ranked classified topics, or a processing
// handle when the run went async.
type DiscoveryResponse struct {
	Status string          `json:"status"`
	JobID  string          `json:"job_id,omitempty"`
	Topics []*models.Topic `json:"topics,omitempty"`
}

// DiscoverTopics runs discovery, classification, and intelligence ranking
// for a user, through the queue when available.
func (s *Service) DiscoverTopics(ctx context.Context, req *DiscoveryRequest) (*DiscoveryResponse, error) {
	if req.OwnerID == "" {
		return nil, &apperr.ValidationError{Field: "owner_id", Reason: "required"}
	}
	if req.Domain == "" {
		return nil, &apperr.ValidationError{Field: "domain", Reason: "required"}
	}

	decision, err := s.usage.CheckAllowed(ctx, req.OwnerID, models.ActionDiscovery)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, &apperr.UsageLimitExceeded{Action: models.ActionDiscovery, Plan: decision.Plan}
	}

	payload, err := json.Marshal(jobPayload{
		Domain:    req.Domain,
		Count:     req.Count,
		Expertise: req.Expertise,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode job payload: %w", err)
	}

	job := models.NewGenerationJob(req.OwnerID, models.JobKindDiscovery, "", time.Now())
	job.Payload = string(payload)

	result, err := s.strategy.Run(ctx, job)
	if err != nil {
		return nil, err
	}
	if result.Async {
		return &DiscoveryResponse{Status: StatusProcessing, JobID: job.ID}, nil
	}

	topics, err := s.topics.GetByOwnerAndStatus(ctx, req.OwnerID, models.TopicStatusClassified)
	if err != nil {
		return nil, err
	}
	return &DiscoveryResponse{Status: StatusCompleted, JobID: job.ID, Topics: topics}, nil
}

// runDiscoveryJob is the queue handler for discovery work: one research
// call, batch classification against the active pillars, then the
// five-signal intelligence ranking.
func (s *Service) runDiscoveryJob(ctx context.Context, job *models.GenerationJob) error {
	var payload jobPayload
	if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
		return &apperr.ValidationError{Field: "payload", Reason: fmt.Sprintf("undecodable job payload: %v", err)}
	}

	pillars, err := s.pillars.GetActiveByOwner(ctx, job.OwnerID)
	if err != nil {
		return err
	}
	if len(pillars) == 0 {
		return apperr.ErrNoPillarsAvailable
	}

	pillarContext := ""
	for i, p := range pillars {
		if i > 0 {
			pillarContext += ", "
		}
		pillarContext += p.Name
	}

	topics, err := s.discovery.Discover(ctx, job.OwnerID, payload.Domain, pillarContext, payload.Count)
	if err != nil {
		return err
	}
	if len(topics) == 0 {
		return fmt.Errorf("discovery returned no usable topics")
	}

	contents := make([]string, len(topics))
	for i, t := range topics {
		contents[i] = t.Content
	}
	classifications, err := s.classifier.ClassifyBatch(ctx, contents, pillars)
	if err != nil {
		return err
	}
	for i, t := range topics {
		ai.ApplyClassification(t, classifications[i])
		if ai.NeedsManualReview(classifications[i]) {
			s.logger.Info("topic flagged for manual review",
				zap.String("topic", t.Content),
				zap.Int("confidence", classifications[i].ConfidenceScore),
				zap.Int("relevance", classifications[i].RelevanceScore))
		}
	}

	sc := &ai.ScoringContext{}
	if payload.Expertise != "" {
		if vec, eerr := s.embeddings.Embed(ctx, payload.Expertise); eerr == nil {
			sc.ExpertiseEmbedding = vec
		}
	}
	if prior, perr := s.drafts.GetPriorEmbeddings(ctx, job.OwnerID); perr == nil {
		sc.RecentDraftEmbeddings = prior
	}

	pillarsByID := make(map[string]*models.Pillar, len(pillars))
	for _, p := range pillars {
		pillarsByID[p.ID] = p
	}
	s.scorer.Rank(ctx, topics, pillarsByID, sc)

	for _, t := range topics {
		if err := s.topics.Create(ctx, t); err != nil {
			return err
		}
	}

	if err := s.usage.Increment(ctx, job.OwnerID, models.ActionDiscovery, 1); err != nil {
		s.logger.Warn("could not record usage", zap.String("owner", job.OwnerID), zap.Error(err))
	}

	s.logger.Info("discovery job complete",
		zap.String("job", job.ID),
		zap.Int("topics", len(topics)))
	return nil
}
