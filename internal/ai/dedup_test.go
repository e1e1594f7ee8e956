package ai

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/voicedraft/voicedraft/internal/models"
)

// vectorAtSimilarity builds a unit vector whose cosine similarity to
// (1, 0) is exactly sim.
func vectorAtSimilarity(sim float64) []float64 {
	return []float64{sim, math.Sqrt(1 - sim*sim)}
}

func TestCheckDuplicate(t *testing.T) {
	dedup := NewDeduplicator(zap.NewNop())
	ref := []float64{1, 0}

	t.Run("no embedding proceeds", func(t *testing.T) {
		result := dedup.CheckDuplicate(nil, [][]float64{ref})
		assert.Equal(t, models.DedupProceed, result.Verdict)

		result = dedup.CheckDuplicate(ref, nil)
		assert.Equal(t, models.DedupProceed, result.Verdict)
	})

	t.Run("verdicts by similarity band", func(t *testing.T) {
		cases := []struct {
			name    string
			sim     float64
			verdict string
		}{
			{"well below warn", 0.50, models.DedupProceed},
			{"exactly at warn boundary", 0.75, models.DedupProceed},
			{"just above warn", 0.76, models.DedupWarn},
			{"exactly at force boundary", 0.85, models.DedupWarn},
			{"just above force", 0.86, models.DedupForceNewAngle},
			{"near duplicate", 0.99, models.DedupForceNewAngle},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				result := dedup.CheckDuplicate(ref, [][]float64{vectorAtSimilarity(tc.sim)})
				assert.Equal(t, tc.verdict, result.Verdict)
				assert.InDelta(t, tc.sim, result.MaxSimilarity, 1e-9)
			})
		}
	})

	t.Run("max similarity wins across priors", func(t *testing.T) {
		priors := [][]float64{
			vectorAtSimilarity(0.30),
			vectorAtSimilarity(0.90),
			vectorAtSimilarity(0.60),
		}
		result := dedup.CheckDuplicate(ref, priors)
		assert.Equal(t, models.DedupForceNewAngle, result.Verdict)
		assert.InDelta(t, 0.90, result.MaxSimilarity, 1e-9)
	})

	t.Run("incomparable priors are skipped", func(t *testing.T) {
		priors := [][]float64{
			{1, 0, 0}, // wrong dimension
			vectorAtSimilarity(0.40),
		}
		result := dedup.CheckDuplicate(ref, priors)
		assert.Equal(t, models.DedupProceed, result.Verdict)
		assert.InDelta(t, 0.40, result.MaxSimilarity, 1e-9)
	})
}
