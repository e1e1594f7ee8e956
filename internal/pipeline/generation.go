package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voicedraft/voicedraft/internal/ai"
	"github.com/voicedraft/voicedraft/internal/apperr"
	"github.com/voicedraft/voicedraft/internal/models"
)

const (
	defaultNumVariants  = 3
	minRawThoughtsChars = 20
)

// SelectTopicRequest triggers generation for a chosen or ad-hoc topic.
type SelectTopicRequest struct {
	OwnerID         string   `json:"owner_id"`
	TopicID         string   `json:"topic_id,omitempty"`
	TopicContent    string   `json:"topic_content,omitempty"`
	Sources         []string `json:"sources,omitempty"`
	PillarID        string   `json:"pillar_id,omitempty"`
	UserPerspective string   `json:"user_perspective,omitempty"`
	SkipPerspective bool     `json:"skip_perspective,omitempty"`
	NumVariants     int      `json:"num_variants,omitempty"`
}

// Request statuses returned to the caller.
const (
	StatusNeedsPerspective = "needs_perspective"
	StatusProcessing       = "processing"
	StatusCompleted        = "completed"
)

// GenerationResponse is what a "select topic" or "write from scratch"
// request resolves to: either completed drafts, a processing handle for
// polling, or a prompt-for-perspective signal.
type GenerationResponse struct {
	Status  string                 `json:"status"`
	JobID   string                 `json:"job_id,omitempty"`
	TopicID string                 `json:"topic_id,omitempty"`
	Drafts  []*models.DraftVariant `json:"drafts,omitempty"`
}

// jobPayload is the request snapshot carried by a queued job.
type jobPayload struct {
	TopicID         string `json:"topic_id"`
	PillarID        string `json:"pillar_id"`
	Action          string `json:"action,omitempty"`
	UserPerspective string `json:"user_perspective,omitempty"`
	NumVariants     int    `json:"num_variants"`
	Domain          string `json:"domain,omitempty"`
	Count           int    `json:"count,omitempty"`
	Expertise       string `json:"expertise,omitempty"`
}

// SelectTopic resolves a pillar, checks the usage gate, and runs the
// generation pipeline via the queue or its synchronous fallback. When the
// caller gave neither a perspective nor an explicit skip, it returns a
// prompt-for-perspective signal instead of generating.
func (s *Service) SelectTopic(ctx context.Context, req *SelectTopicRequest) (*GenerationResponse, error) {
	if req.OwnerID == "" {
		return nil, &apperr.ValidationError{Field: "owner_id", Reason: "required"}
	}
	if req.TopicID == "" && strings.TrimSpace(req.TopicContent) == "" {
		return nil, &apperr.ValidationError{Field: "topic_content", Reason: "either topic_id or topic_content is required"}
	}
	if req.UserPerspective == "" && !req.SkipPerspective {
		return &GenerationResponse{Status: StatusNeedsPerspective}, nil
	}

	pillar, err := s.resolvePillar(ctx, req.OwnerID, req.PillarID)
	if err != nil {
		return nil, err
	}

	decision, err := s.usage.CheckAllowed(ctx, req.OwnerID, models.ActionGeneratePost)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, &apperr.UsageLimitExceeded{Action: models.ActionGeneratePost, Plan: decision.Plan}
	}

	topic, err := s.resolveTopic(ctx, req, pillar)
	if err != nil {
		return nil, err
	}

	numVariants := req.NumVariants
	if numVariants <= 0 {
		numVariants = defaultNumVariants
	}
	payload, err := json.Marshal(jobPayload{
		TopicID:         topic.ID,
		PillarID:        pillar.ID,
		UserPerspective: req.UserPerspective,
		NumVariants:     numVariants,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode job payload: %w", err)
	}

	job := models.NewGenerationJob(req.OwnerID, models.JobKindGeneration, topic.ID, time.Now())
	job.PillarID = pillar.ID
	job.Payload = string(payload)

	if s.notifier != nil {
		ref, nerr := s.notifier.PostProcessing(ctx, req.OwnerID,
			fmt.Sprintf("Drafting posts for: %s…", topic.Content))
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

// WriteFromScratch accepts free-form raw thoughts and runs the same
// resolve-pillar, enqueue-or-fallback, generate path.
func (s *Service) WriteFromScratch(ctx context.Context, ownerID, rawThoughts, pillarID string) (*GenerationResponse, error) {
	if len(strings.TrimSpace(rawThoughts)) < minRawThoughtsChars {
		return nil, &apperr.ValidationError{
			Field:  "raw_thoughts",
			Reason: fmt.Sprintf("must be at least %d characters", minRawThoughtsChars),
		}
	}
	return s.SelectTopic(ctx, &SelectTopicRequest{
		OwnerID:         ownerID,
		TopicContent:    rawThoughts,
		PillarID:        pillarID,
		UserPerspective: rawThoughts,
	})
}

// resolvePillar returns the explicit pillar, else the user's first active
// pillar, else ErrNoActivePillar.
func (s *Service) resolvePillar(ctx context.Context, ownerID, pillarID string) (*models.Pillar, error) {
	if pillarID != "" {
		pillar, err := s.pillars.GetByID(ctx, pillarID)
		if err != nil {
			return nil, err
		}
		if pillar.OwnerID != ownerID {
			return nil, &apperr.NotFoundError{Entity: "pillar", ID: pillarID}
		}
		return pillar, nil
	}

	active, err := s.pillars.GetActiveByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, apperr.ErrNoActivePillar
	}
	return active[0], nil
}

// resolveTopic loads the referenced topic or creates an ad-hoc one that
// bypasses discovery and classification.
func (s *Service) resolveTopic(ctx context.Context, req *SelectTopicRequest, pillar *models.Pillar) (*models.Topic, error) {
	if req.TopicID != "" {
		topic, err := s.topics.GetByID(ctx, req.TopicID)
		if err != nil {
			return nil, err
		}
		if !topic.ReadyForGeneration() {
			return nil, &apperr.ValidationError{
				Field:  "topic_id",
				Reason: fmt.Sprintf("topic in state %q cannot be generated from", topic.Status),
			}
		}
		return topic, nil
	}

	topic := models.NewManualTopic(req.OwnerID, strings.TrimSpace(req.TopicContent))
	topic.PillarID = pillar.ID
	topic.PillarName = pillar.Name
	if len(req.Sources) > 0 {
		topic.SourceURL = req.Sources[0]
	}
	if err := s.topics.Create(ctx, topic); err != nil {
		return nil, err
	}
	return topic, nil
}

// HandleJob is the queue handler. The identical function backs the async
// workers and the inline fallback.
func (s *Service) HandleJob(ctx context.Context, job *models.GenerationJob) error {
	var err error
	switch job.Kind {
	case models.JobKindGeneration, models.JobKindRegeneration:
		err = s.runGenerationJob(ctx, job)
	case models.JobKindDiscovery:
		err = s.runDiscoveryJob(ctx, job)
	default:
		err = &apperr.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown job kind %q", job.Kind)}
	}

	if s.notifier != nil && job.PlaceholderRef != "" {
		// A budget or cancellation that killed the job must not also
		// suppress the failure notice, or the placeholder would read
		// "processing" forever.
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		s.updatePlaceholder(nctx, job, err)
	}
	return err
}

// DraftTracker is an optional notifier extension that ties a result
// message to the drafts it shows, enabling reaction-driven approval.
type DraftTracker interface {
	TrackDraftMessage(ref string, draftIDs []string)
}

// updatePlaceholder rewrites the caller-visible record in place so polling
// clients observe processing -> completed|failed.
func (s *Service) updatePlaceholder(ctx context.Context, job *models.GenerationJob, jobErr error) {
	text := "Draft variants are ready for review."
	if jobErr != nil {
		text = fmt.Sprintf("Generation failed: %v. Please try again.", jobErr)
	}
	if err := s.notifier.UpdateResult(ctx, job.PlaceholderRef, text); err != nil {
		s.logger.Warn("could not update placeholder message",
			zap.String("job", job.ID), zap.Error(err))
		return
	}
	if tracker, ok := s.notifier.(DraftTracker); ok && jobErr == nil && len(job.ResultDraftIDs) > 0 {
		tracker.TrackDraftMessage(job.PlaceholderRef, job.ResultDraftIDs)
	}
}

// runGenerationJob produces, screens, and persists draft variants for the
// job's topic.
func (s *Service) runGenerationJob(ctx context.Context, job *models.GenerationJob) error {
	var payload jobPayload
	if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
		return &apperr.ValidationError{Field: "payload", Reason: fmt.Sprintf("undecodable job payload: %v", err)}
	}

	action := payload.Action
	if action == "" {
		action = models.ActionGeneratePost
	}

	// The enqueue-time allow decision was not a reservation; re-check
	// before committing work.
	decision, err := s.usage.CheckAllowed(ctx, job.OwnerID, action)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return &apperr.UsageLimitExceeded{Action: action, Plan: decision.Plan}
	}

	topic, err := s.topics.GetByID(ctx, payload.TopicID)
	if err != nil {
		return err
	}
	pillar, err := s.pillars.GetByID(ctx, payload.PillarID)
	if err != nil {
		return err
	}

	examples, err := s.voice.GetExamplesByOwner(ctx, job.OwnerID)
	if err != nil {
		return err
	}

	var master []float64
	if profile, perr := s.voice.GetProfile(ctx, job.OwnerID); perr == nil && profile.Trained() {
		master = profile.MasterEmbedding
	}

	genReq := &ai.GenerationRequest{
		Topic:           topic,
		Pillar:          pillar,
		VoiceExamples:   examples,
		MasterEmbedding: master,
		UserPerspective: payload.UserPerspective,
		NumVariants:     payload.NumVariants,
	}
	drafts, err := s.generator.GenerateVariants(ctx, genReq)
	if err != nil {
		return err
	}

	prior, err := s.drafts.GetPriorEmbeddings(ctx, job.OwnerID)
	if err != nil {
		return err
	}

	drafts = s.screenVariants(ctx, genReq, drafts, prior)

	if s.estimator != nil {
		for _, d := range drafts {
			d.EstimatedReach = s.estimator.Estimate(d, s.followers)
		}
	}

	anyValid := false
	for _, d := range drafts {
		if ai.ValidatePost(d).Valid {
			anyValid = true
			break
		}
	}
	if !anyValid {
		return fmt.Errorf("generation produced no structurally valid variant")
	}

	for _, d := range drafts {
		if err := s.drafts.Create(ctx, d); err != nil {
			return err
		}
		job.ResultDraftIDs = append(job.ResultDraftIDs, d.ID)
	}
	if err := s.topics.UpdateStatus(ctx, topic.ID, models.TopicStatusDrafted); err != nil {
		s.logger.Warn("could not mark topic drafted", zap.String("topic", topic.ID), zap.Error(err))
	}

	if err := s.usage.Increment(ctx, job.OwnerID, action, 1); err != nil {
		s.logger.Warn("could not record usage", zap.String("owner", job.OwnerID), zap.Error(err))
	}

	s.logger.Info("generation job complete",
		zap.String("job", job.ID),
		zap.String("topic", topic.ID),
		zap.Int("variants", len(drafts)))
	return nil
}

// screenVariants runs the quality gate and dedup screen over the drafts.
// Variants flagged force_new_angle get one regeneration attempt with an
// explicit new-angle instruction; if the rewrite still collides it is
// surfaced with its verdict for the caller to decide.
func (s *Service) screenVariants(ctx context.Context, genReq *ai.GenerationRequest, drafts []*models.DraftVariant, prior [][]float64) []*models.DraftVariant {
	forced := 0
	for _, d := range drafts {
		s.gate.Evaluate(d)
		d.Deduplication = s.dedup.CheckDuplicate(d.Embedding, prior)
		if d.Deduplication.Verdict == models.DedupForceNewAngle {
			forced++
		}
	}
	if forced == 0 {
		return drafts
	}

	s.logger.Info("regenerating near-duplicate variants", zap.Int("count", forced))
	retryReq := *genReq
	retryReq.NumVariants = forced
	retryReq.UserPerspective = strings.TrimSpace(genReq.UserPerspective +
		"\n\nTake a completely different angle from your usual treatment of this topic; avoid repeating points from prior posts.")

	replacements, err := s.generator.GenerateVariants(ctx, &retryReq)
	if err != nil {
		s.logger.Warn("regeneration failed; surfacing flagged variants", zap.Error(err))
		return drafts
	}

	ri := 0
	for i, d := range drafts {
		if d.Deduplication.Verdict != models.DedupForceNewAngle || ri >= len(replacements) {
			continue
		}
		repl := replacements[ri]
		ri++
		repl.VariantLetter = d.VariantLetter
		s.gate.Evaluate(repl)
		repl.Deduplication = s.dedup.CheckDuplicate(repl.Embedding, prior)
		drafts[i] = repl
	}
	return drafts
}
