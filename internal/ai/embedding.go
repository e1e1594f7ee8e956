package ai

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/voicedraft/voicedraft/internal/apperr"
)

// EmbeddingService wraps the embedding capability and provides the vector
// math used for voice matching and deduplication.
type EmbeddingService struct {
	embedder Embedder
	logger   *zap.Logger
}

func NewEmbeddingService(embedder Embedder, logger *zap.Logger) *EmbeddingService {
	return &EmbeddingService{embedder: embedder, logger: logger}
}

// Embed converts text to a vector. Upstream failure means the feature is
// unavailable, not fatal: callers fall back to neutral scores.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float64, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.logger.Warn("embedding unavailable", zap.Error(err))
		return nil, &apperr.UpstreamUnavailable{Capability: "embedding", Err: apperr.ErrEmbeddingUnavailable}
	}
	return vec, nil
}

// EmbedBatch converts texts to vectors with the same ordering as the input.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		s.logger.Warn("batch embedding unavailable", zap.Int("count", len(texts)), zap.Error(err))
		return nil, &apperr.UpstreamUnavailable{Capability: "embedding", Err: apperr.ErrEmbeddingUnavailable}
	}
	return vectors, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, always
// in [-1, 1]. A zero-norm vector yields 0 rather than dividing by zero.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, apperr.ErrDimensionMismatch
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Floating error can push the ratio a hair past the bounds.
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim, nil
}

// Average returns the element-wise mean of the vectors.
func Average(vectors [][]float64) ([]float64, error) {
	if len(vectors) == 0 {
		return nil, apperr.ErrEmptyInput
	}

	dim := len(vectors[0])
	mean := make([]float64, dim)
	for _, vec := range vectors {
		if len(vec) != dim {
			return nil, apperr.ErrDimensionMismatch
		}
		for i, v := range vec {
			mean[i] += v
		}
	}
	n := float64(len(vectors))
	for i := range mean {
		mean[i] /= n
	}
	return mean, nil
}

// Variance returns the population variance of the values. Used for
// consistency scoring over per-example similarities.
func Variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return sq / float64(len(values))
}

// ClampScore clamps a score to the 0-100 range used everywhere.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
