package ai

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/voicedraft/voicedraft/internal/models"
)

// Signal weights. They sum to 1.
const (
	weightTimeliness     = 0.25
	weightAudienceFit    = 0.25
	weightPillarAlign    = 0.20
	weightExpertiseMatch = 0.20
	weightNovelty        = 0.10

	neutralSignal = 50
)

// TopicScore is the five-signal breakdown behind one priority score. Each
// signal is pre-normalized to 0-100.
type TopicScore struct {
	Timeliness     int     `json:"timeliness"`
	AudienceFit    int     `json:"audience_fit"`
	PillarAlign    int     `json:"pillar_alignment"`
	ExpertiseMatch int     `json:"expertise_match"`
	Novelty        int     `json:"novelty"`
	Total          float64 `json:"total"`
}

// ScoringContext carries the per-user inputs shared across one ranking
// pass: the expertise embedding and the embeddings of recently published
// drafts.
type ScoringContext struct {
	ExpertiseEmbedding    []float64
	RecentDraftEmbeddings [][]float64
}

// TopicScorer ranks candidate topics by combining timeliness, audience
// fit, pillar alignment, expertise match, and novelty.
type TopicScorer struct {
	embeddings *EmbeddingService
	logger     *zap.Logger
	now        func() time.Time
}

func NewTopicScorer(embeddings *EmbeddingService, logger *zap.Logger) *TopicScorer {
	return &TopicScorer{embeddings: embeddings, logger: logger, now: time.Now}
}

// Score computes the weighted priority score for one topic. Missing
// embeddings degrade the semantic signals to neutral instead of failing.
func (s *TopicScorer) Score(ctx context.Context, topic *models.Topic, pillar *models.Pillar, sc *ScoringContext) *TopicScore {
	score := &TopicScore{
		Timeliness:     s.timeliness(topic),
		AudienceFit:    neutralSignal,
		PillarAlign:    ClampScore(topic.ConfidenceScore),
		ExpertiseMatch: neutralSignal,
		Novelty:        100,
	}

	topicVec, err := s.embeddings.Embed(ctx, topic.Content)
	if err != nil {
		s.logger.Warn("scoring without topic embedding", zap.String("topic", topic.ID), zap.Error(err))
	} else {
		if pillar != nil && pillar.TargetAudience != "" {
			if audienceVec, err := s.embeddings.Embed(ctx, pillar.TargetAudience); err == nil {
				score.AudienceFit = similarityScore(topicVec, audienceVec)
			}
		}
		if len(sc.ExpertiseEmbedding) > 0 {
			score.ExpertiseMatch = similarityScore(topicVec, sc.ExpertiseEmbedding)
		}
		if len(sc.RecentDraftEmbeddings) > 0 {
			var maxSim float64
			for _, prior := range sc.RecentDraftEmbeddings {
				if sim, err := CosineSimilarity(topicVec, prior); err == nil && sim > maxSim {
					maxSim = sim
				}
			}
			score.Novelty = ClampScore(int(math.Round((1 - maxSim) * 100)))
		}
	}

	score.Total = weightTimeliness*float64(score.Timeliness) +
		weightAudienceFit*float64(score.AudienceFit) +
		weightPillarAlign*float64(score.PillarAlign) +
		weightExpertiseMatch*float64(score.ExpertiseMatch) +
		weightNovelty*float64(score.Novelty)
	return score
}

// Rank scores every topic and sorts descending by total, breaking ties by
// higher novelty so the same safe topic is not surfaced repeatedly.
func (s *TopicScorer) Rank(ctx context.Context, topics []*models.Topic, pillarsByID map[string]*models.Pillar, sc *ScoringContext) []*TopicScore {
	scores := make([]*TopicScore, len(topics))
	for i, topic := range topics {
		scores[i] = s.Score(ctx, topic, pillarsByID[topic.PillarID], sc)
		topic.PriorityScore = scores[i].Total
	}

	order := make([]int, len(topics))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		sa, sb := scores[order[a]], scores[order[b]]
		if sa.Total != sb.Total {
			return sa.Total > sb.Total
		}
		return sa.Novelty > sb.Novelty
	})

	rankedTopics := make([]*models.Topic, len(topics))
	rankedScores := make([]*TopicScore, len(topics))
	for i, idx := range order {
		rankedTopics[i] = topics[idx]
		rankedScores[i] = scores[idx]
	}
	copy(topics, rankedTopics)
	return rankedScores
}

// timeliness blends the discovery-time trending signal with decay since
// discovery: a week-old topic has lost most of its edge.
func (s *TopicScorer) timeliness(topic *models.Topic) int {
	age := s.now().Sub(topic.DiscoveredAt)
	recency := 100 - int(age.Hours()/168*100) // linear decay over 7 days
	if recency < 0 {
		recency = 0
	}
	return ClampScore((recency + topic.TrendingScore) / 2)
}

// similarityScore maps cosine similarity to 0-100, flooring negatives.
func similarityScore(a, b []float64) int {
	sim, err := CosineSimilarity(a, b)
	if err != nil || sim < 0 {
		return 0
	}
	return ClampScore(int(math.Round(sim * 100)))
}
