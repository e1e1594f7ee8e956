package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voicedraft/voicedraft/internal/apperr"
	"github.com/voicedraft/voicedraft/internal/models"
)

func testPillars() []*models.Pillar {
	eng := models.NewPillar("user-1", "Engineering Leadership")
	eng.ID = "pillar-eng"
	prod := models.NewPillar("user-1", "AI in Production")
	prod.ID = "pillar-ai"
	return []*models.Pillar{eng, prod}
}

func TestClassifyBatch(t *testing.T) {
	logger := zap.NewNop()

	t.Run("no pillars fails before calling the model", func(t *testing.T) {
		stub := &stubCompleter{}
		c := NewClassifier(stub, logger)

		_, err := c.ClassifyBatch(context.Background(), []string{"a topic"}, nil)
		assert.ErrorIs(t, err, apperr.ErrNoPillarsAvailable)
		assert.Zero(t, stub.calls)
	})

	t.Run("no topics errors", func(t *testing.T) {
		c := NewClassifier(&stubCompleter{}, logger)
		_, err := c.ClassifyBatch(context.Background(), nil, testPillars())
		assert.ErrorIs(t, err, apperr.ErrEmptyInput)
	})

	t.Run("results map back to input order", func(t *testing.T) {
		c := NewClassifier(&stubCompleter{response: `{"results": [
			{"topic": 2, "pillar_name": "AI in Production", "confidence_score": 90, "relevance_score": 80, "ai_score": 70},
			{"topic": 1, "pillar_name": "Engineering Leadership", "confidence_score": 85, "relevance_score": 75, "ai_score": 65}
		]}`}, logger)

		results, err := c.ClassifyBatch(context.Background(),
			[]string{"managing platform teams", "LLM observability"}, testPillars())
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "pillar-eng", results[0].PillarID)
		assert.Equal(t, "pillar-ai", results[1].PillarID)
		assert.Equal(t, 90, results[1].ConfidenceScore)
	})

	t.Run("single pillar always wins", func(t *testing.T) {
		only := models.NewPillar("user-1", "Solo Pillar")
		only.ID = "pillar-solo"
		c := NewClassifier(&stubCompleter{response: `{"results": [
			{"topic": 1, "pillar_name": "Solo Pillar", "confidence_score": 60, "relevance_score": 60, "ai_score": 60}
		]}`}, logger)

		results, err := c.ClassifyBatch(context.Background(), []string{"anything"}, []*models.Pillar{only})
		require.NoError(t, err)
		assert.Equal(t, "pillar-solo", results[0].PillarID)
	})

	t.Run("unknown pillar name falls back to first pillar under review", func(t *testing.T) {
		c := NewClassifier(&stubCompleter{response: `{"results": [
			{"topic": 1, "pillar_name": "Made Up Pillar", "confidence_score": 95, "relevance_score": 70, "ai_score": 70}
		]}`}, logger)

		results, err := c.ClassifyBatch(context.Background(), []string{"a topic"}, testPillars())
		require.NoError(t, err)
		assert.Equal(t, "pillar-eng", results[0].PillarID)
		// The substituted pillar is a guess; the model's own confidence
		// does not carry over, and the topic goes to manual review.
		assert.Less(t, results[0].ConfidenceScore, 60)
		assert.True(t, NeedsManualReview(results[0]))
	})

	t.Run("pillar name matching is case-insensitive", func(t *testing.T) {
		c := NewClassifier(&stubCompleter{response: `{"results": [
			{"topic": 1, "pillar_name": "ai in production", "confidence_score": 70, "relevance_score": 70, "ai_score": 70}
		]}`}, logger)

		results, err := c.ClassifyBatch(context.Background(), []string{"a topic"}, testPillars())
		require.NoError(t, err)
		assert.Equal(t, "pillar-ai", results[0].PillarID)
	})

	t.Run("malformed json is a parse error carrying the payload", func(t *testing.T) {
		c := NewClassifier(&stubCompleter{response: `oops`}, logger)

		_, err := c.ClassifyBatch(context.Background(), []string{"a topic"}, testPillars())
		var parseErr *apperr.ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, "oops", parseErr.RawPayload)
	})

	t.Run("wrong result count is a parse error", func(t *testing.T) {
		c := NewClassifier(&stubCompleter{response: `{"results": [
			{"topic": 1, "pillar_name": "Engineering Leadership", "confidence_score": 70, "relevance_score": 70, "ai_score": 70}
		]}`}, logger)

		_, err := c.ClassifyBatch(context.Background(), []string{"one", "two"}, testPillars())
		var parseErr *apperr.ParseError
		assert.ErrorAs(t, err, &parseErr)
	})

	t.Run("out-of-range topic index is a parse error", func(t *testing.T) {
		c := NewClassifier(&stubCompleter{response: `{"results": [
			{"topic": 7, "pillar_name": "Engineering Leadership", "confidence_score": 70, "relevance_score": 70, "ai_score": 70}
		]}`}, logger)

		_, err := c.ClassifyBatch(context.Background(), []string{"a topic"}, testPillars())
		var parseErr *apperr.ParseError
		assert.ErrorAs(t, err, &parseErr)
	})

	t.Run("scores are clamped to range", func(t *testing.T) {
		c := NewClassifier(&stubCompleter{response: `{"results": [
			{"topic": 1, "pillar_name": "Engineering Leadership", "confidence_score": 140, "relevance_score": -10, "ai_score": 50}
		]}`}, logger)

		results, err := c.ClassifyBatch(context.Background(), []string{"a topic"}, testPillars())
		require.NoError(t, err)
		assert.Equal(t, 100, results[0].ConfidenceScore)
		assert.Equal(t, 0, results[0].RelevanceScore)
	})
}

func TestNeedsManualReview(t *testing.T) {
	cases := []struct {
		name       string
		confidence int
		relevance  int
		want       bool
	}{
		{"strong on both axes", 85, 80, false},
		{"low confidence alone", 59, 80, true},
		{"low relevance alone", 85, 49, true},
		{"confidence exactly at floor", 60, 80, false},
		{"relevance exactly at floor", 85, 50, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NeedsManualReview(&Classification{
				ConfidenceScore: tc.confidence,
				RelevanceScore:  tc.relevance,
			})
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestApplyClassification(t *testing.T) {
	topic := models.NewManualTopic("user-1", "observability on a budget")
	topic.SuggestedHashtags = []string{"#keep"}

	ApplyClassification(topic, &Classification{
		PillarID:        "pillar-ai",
		PillarName:      "AI in Production",
		ConfidenceScore: 88,
		RelevanceScore:  77,
		AIScore:         66,
		HookAngle:       "cost angle",
	})

	assert.Equal(t, "pillar-ai", topic.PillarID)
	assert.Equal(t, models.TopicStatusClassified, topic.Status)
	assert.Equal(t, 88, topic.ConfidenceScore)
	assert.Equal(t, 77, topic.RelevanceScore)
	// Empty suggestion list never wipes existing hashtags.
	assert.Equal(t, []string{"#keep"}, topic.SuggestedHashtags)
}
