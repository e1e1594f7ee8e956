package ai

import (
	"go.uber.org/zap"

	"github.com/voicedraft/voicedraft/internal/models"
)

// Similarity thresholds, strictly-greater-than semantics: exactly 0.85 is
// a warn, exactly 0.75 proceeds.
const (
	forceNewAngleThreshold = 0.85
	duplicateWarnThreshold = 0.75
)

// Deduplicator screens new drafts against the user's published and
// explicitly approved drafts. Rejected drafts are not compared: a
// transient rejection should not suppress legitimately different future
// content.
type Deduplicator struct {
	logger *zap.Logger
}

func NewDeduplicator(logger *zap.Logger) *Deduplicator {
	return &Deduplicator{logger: logger}
}

// CheckDuplicate compares a draft embedding against prior embeddings and
// returns the maximum similarity with its verdict. A missing embedding on
// either side proceeds: absence of the feature is not evidence of overlap.
func (d *Deduplicator) CheckDuplicate(newEmbedding []float64, priorEmbeddings [][]float64) *models.DeduplicationResult {
	result := &models.DeduplicationResult{Verdict: models.DedupProceed}
	if len(newEmbedding) == 0 || len(priorEmbeddings) == 0 {
		return result
	}

	for _, prior := range priorEmbeddings {
		sim, err := CosineSimilarity(newEmbedding, prior)
		if err != nil {
			d.logger.Warn("skipping incomparable prior draft embedding", zap.Error(err))
			continue
		}
		if sim > result.MaxSimilarity {
			result.MaxSimilarity = sim
		}
	}

	switch {
	case result.MaxSimilarity > forceNewAngleThreshold:
		result.Verdict = models.DedupForceNewAngle
	case result.MaxSimilarity > duplicateWarnThreshold:
		result.Verdict = models.DedupWarn
	}
	return result
}
