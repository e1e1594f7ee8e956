// Package pipeline coordinates the full generation flow: topic discovery,
// classification, ranking, voice-matched generation, quality gating, and
// deduplication, reached either through the async job queue or the
// synchronous in-request fallback.
package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/voicedraft/voicedraft/internal/ai"
	"github.com/voicedraft/voicedraft/internal/models"
	"github.com/voicedraft/voicedraft/internal/queue"
)

// Repositories the pipeline persists through. Defined here so tests can
// substitute in-memory fakes.
type VoiceStore interface {
	CreateExample(ctx context.Context, example *models.VoiceExample) error
	GetExamplesByOwner(ctx context.Context, ownerID string) ([]*models.VoiceExample, error)
	SetExampleEmbedding(ctx context.Context, id string, embedding []float64) error
	SaveProfile(ctx context.Context, profile *models.VoiceProfile) error
	GetProfile(ctx context.Context, ownerID string) (*models.VoiceProfile, error)
}

type PillarStore interface {
	GetByID(ctx context.Context, id string) (*models.Pillar, error)
	GetActiveByOwner(ctx context.Context, ownerID string) ([]*models.Pillar, error)
}

type TopicStore interface {
	Create(ctx context.Context, topic *models.Topic) error
	GetByID(ctx context.Context, id string) (*models.Topic, error)
	GetByOwnerAndStatus(ctx context.Context, ownerID, status string) ([]*models.Topic, error)
	Update(ctx context.Context, topic *models.Topic) error
	UpdateStatus(ctx context.Context, id, status string) error
}

type DraftStore interface {
	Create(ctx context.Context, draft *models.DraftVariant) error
	GetByID(ctx context.Context, id string) (*models.DraftVariant, error)
	GetByTopic(ctx context.Context, topicID string) ([]*models.DraftVariant, error)
	GetPriorEmbeddings(ctx context.Context, ownerID string) ([][]float64, error)
	Update(ctx context.Context, draft *models.DraftVariant) error
}

// Notifier writes the caller-visible record for async jobs. Updates target
// the original placeholder by reference, never append, so a retried job
// cannot produce duplicate visible messages. May be nil.
type Notifier interface {
	PostProcessing(ctx context.Context, ownerID, text string) (ref string, err error)
	UpdateResult(ctx context.Context, ref, text string) error
}

// Service is the generation pipeline façade.
type Service struct {
	voice      VoiceStore
	pillars    PillarStore
	topics     TopicStore
	drafts     DraftStore
	usage      UsageLimiter
	embeddings *ai.EmbeddingService
	voiceEng   *ai.VoiceEngine
	discovery  *ai.DiscoveryEngine
	classifier *ai.Classifier
	scorer     *ai.TopicScorer
	generator  *ai.Generator
	gate       *ai.QualityGate
	dedup      *ai.Deduplicator
	estimator  ai.EngagementEstimator
	followers  int
	strategy   *queue.EnqueueStrategy
	notifier   Notifier
	logger     *zap.Logger
}

// Deps bundles the service dependencies; all are required except Notifier
// and Strategy (Strategy is attached after construction because the queue
// handler is a method of the service).
type Deps struct {
	Voice      VoiceStore
	Pillars    PillarStore
	Topics     TopicStore
	Drafts     DraftStore
	Usage      UsageLimiter
	Embeddings *ai.EmbeddingService
	VoiceEng   *ai.VoiceEngine
	Discovery  *ai.DiscoveryEngine
	Classifier *ai.Classifier
	Scorer     *ai.TopicScorer
	Generator  *ai.Generator
	Gate       *ai.QualityGate
	Dedup      *ai.Deduplicator
	Estimator  ai.EngagementEstimator
	Followers  int
	Notifier   Notifier
	Logger     *zap.Logger
}

func NewService(deps Deps) *Service {
	return &Service{
		voice:      deps.Voice,
		pillars:    deps.Pillars,
		topics:     deps.Topics,
		drafts:     deps.Drafts,
		usage:      deps.Usage,
		embeddings: deps.Embeddings,
		voiceEng:   deps.VoiceEng,
		discovery:  deps.Discovery,
		classifier: deps.Classifier,
		scorer:     deps.Scorer,
		generator:  deps.Generator,
		gate:       deps.Gate,
		dedup:      deps.Dedup,
		estimator:  deps.Estimator,
		followers:  deps.Followers,
		notifier:   deps.Notifier,
		logger:     deps.Logger,
	}
}

// SetStrategy attaches the enqueue strategy once the queue has been built
// around this service's HandleJob.
func (s *Service) SetStrategy(strategy *queue.EnqueueStrategy) {
	s.strategy = strategy
}

// AddVoiceExample stores a new example, embeds it, and rebuilds the
// profile. A failed embedding leaves the example usable for prompting;
// only voice-match scoring degrades.
func (s *Service) AddVoiceExample(ctx context.Context, ownerID, text string, engagementWeight int) (*models.VoiceExample, error) {
	example := models.NewVoiceExample(ownerID, text)
	if engagementWeight > 1 {
		example.EngagementWeight = engagementWeight
	}

	if vec, err := s.embeddings.Embed(ctx, text); err == nil {
		example.Embedding = vec
	} else {
		s.logger.Warn("storing voice example without embedding", zap.String("owner", ownerID), zap.Error(err))
	}

	if err := s.voice.CreateExample(ctx, example); err != nil {
		return nil, err
	}

	if _, err := s.RebuildVoiceProfile(ctx, ownerID); err != nil {
		s.logger.Warn("voice profile rebuild failed", zap.String("owner", ownerID), zap.Error(err))
	}
	return example, nil
}

// RebuildVoiceProfile re-derives the master voice from the current example
// set and persists it.
func (s *Service) RebuildVoiceProfile(ctx context.Context, ownerID string) (*models.VoiceProfile, error) {
	examples, err := s.voice.GetExamplesByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	profile, err := s.voiceEng.BuildProfile(ownerID, examples)
	if err != nil {
		return nil, err
	}
	s.voiceEng.EnrichProfile(ctx, profile, examples)

	if err := s.voice.SaveProfile(ctx, profile); err != nil {
		return nil, err
	}
	return profile, nil
}
