package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voicedraft/voicedraft/internal/apperr"
	"github.com/voicedraft/voicedraft/internal/models"
)

// stubEmbedder maps texts to fixed vectors.
type stubEmbedder struct {
	vectors map[string][]float64
	batch   [][]float64
	err     error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	if vec, ok := s.vectors[text]; ok {
		return vec, nil
	}
	return []float64{1, 0, 0}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.batch != nil {
		return s.batch, nil
	}
	out := make([][]float64, len(texts))
	for i, text := range texts {
		vec, _ := s.Embed(ctx, text)
		out[i] = vec
	}
	return out, nil
}

const generatorResponse = `{"variants": [
	{"style": "narrative", "hook": "Last month our deploy broke at 2am.",
	 "body": "Here is what the postmortem taught us about ownership, alerting, and the cost of silent failure modes in a platform team. We rewrote the runbook from scratch.",
	 "cta": "What does your on-call playbook get wrong?", "hashtags": ["#devops", "#oncall"]},
	{"style": "analytical", "hook": "3 numbers that explain our incident rate.",
	 "body": "Incident count fell 40% after we changed one thing: we stopped paging on symptoms and started paging on user impact. The data across six months shows the shift clearly.",
	 "cta": "Happy to share the dashboard queries.", "hashtags": ["#sre"]},
	{"style": "conversational", "hook": "Hot take: most runbooks are write-only.",
	 "body": "Nobody reads them during an incident. They read the terminal. So we moved the runbook into the alert itself, one action per line, and deleted the wiki page entirely.",
	 "cta": "Would this work for your team?", "hashtags": []}
]}`

func generationRequest() *GenerationRequest {
	topic := models.NewManualTopic("user-1", "on-call culture in platform teams")
	topic.ID = "topic-1"
	pillar := models.NewPillar("user-1", "Engineering Leadership")
	pillar.ID = "pillar-1"
	return &GenerationRequest{
		Topic:       topic,
		Pillar:      pillar,
		NumVariants: 3,
	}
}

func TestGenerateVariants(t *testing.T) {
	logger := zap.NewNop()

	t.Run("variants come back sorted and lettered", func(t *testing.T) {
		embedder := &stubEmbedder{batch: [][]float64{
			{0.2, 0.9, 0}, // weak match
			{1, 0, 0},     // perfect match
			{0.7, 0.7, 0}, // middling
		}}
		gen := NewGenerator(&stubCompleter{response: generatorResponse},
			NewEmbeddingService(embedder, logger), logger)

		req := generationRequest()
		req.MasterEmbedding = []float64{1, 0, 0}

		drafts, err := gen.GenerateVariants(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, drafts, 3)

		assert.Equal(t, "A", drafts[0].VariantLetter)
		assert.Equal(t, "B", drafts[1].VariantLetter)
		assert.Equal(t, "C", drafts[2].VariantLetter)
		assert.Equal(t, 100, drafts[0].VoiceMatchScore)
		assert.GreaterOrEqual(t, drafts[0].VoiceMatchScore, drafts[1].VoiceMatchScore)
		assert.GreaterOrEqual(t, drafts[1].VoiceMatchScore, drafts[2].VoiceMatchScore)
	})

	t.Run("no trained voice scores neutral", func(t *testing.T) {
		gen := NewGenerator(&stubCompleter{response: generatorResponse},
			NewEmbeddingService(&stubEmbedder{}, logger), logger)

		drafts, err := gen.GenerateVariants(context.Background(), generationRequest())
		require.NoError(t, err)
		for _, d := range drafts {
			assert.Equal(t, 50, d.VoiceMatchScore)
		}
	})

	t.Run("embedding outage degrades to neutral instead of failing", func(t *testing.T) {
		embedder := &stubEmbedder{err: assert.AnError}
		gen := NewGenerator(&stubCompleter{response: generatorResponse},
			NewEmbeddingService(embedder, logger), logger)

		req := generationRequest()
		req.MasterEmbedding = []float64{1, 0, 0}

		drafts, err := gen.GenerateVariants(context.Background(), req)
		require.NoError(t, err)
		for _, d := range drafts {
			assert.Equal(t, 50, d.VoiceMatchScore)
		}
	})

	t.Run("full text is assembled from parts", func(t *testing.T) {
		gen := NewGenerator(&stubCompleter{response: generatorResponse},
			NewEmbeddingService(&stubEmbedder{}, logger), logger)

		drafts, err := gen.GenerateVariants(context.Background(), generationRequest())
		require.NoError(t, err)

		for _, d := range drafts {
			assert.True(t, strings.HasPrefix(d.FullText, d.Hook))
			assert.Contains(t, d.FullText, d.Body)
			assert.Equal(t, len([]rune(d.FullText)), d.CharacterCount)
			if len(d.Hashtags) > 0 {
				assert.Contains(t, d.FullText, d.Hashtags[0])
			}
		}
	})

	t.Run("missing topic is a validation error", func(t *testing.T) {
		gen := NewGenerator(&stubCompleter{response: generatorResponse},
			NewEmbeddingService(&stubEmbedder{}, logger), logger)

		_, err := gen.GenerateVariants(context.Background(), &GenerationRequest{})
		assert.Error(t, err)
	})

	t.Run("empty variant list is an error", func(t *testing.T) {
		gen := NewGenerator(&stubCompleter{response: `{"variants": []}`},
			NewEmbeddingService(&stubEmbedder{}, logger), logger)

		_, err := gen.GenerateVariants(context.Background(), generationRequest())
		assert.Error(t, err)
	})

	t.Run("fewer variants than requested is a parse error", func(t *testing.T) {
		short := `{"variants": [
			{"style": "narrative", "hook": "Only one came back.",
			 "body": "A single variant where three were requested means the response is malformed, not a smaller success.",
			 "cta": "", "hashtags": []}
		]}`
		gen := NewGenerator(&stubCompleter{response: short},
			NewEmbeddingService(&stubEmbedder{}, logger), logger)

		_, err := gen.GenerateVariants(context.Background(), generationRequest())
		var parseErr *apperr.ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, short, parseErr.RawPayload)
	})
}

func TestValidatePost(t *testing.T) {
	valid := func() *models.DraftVariant {
		d := models.NewDraftVariant("user-1", "topic-1", "pillar-1", "A")
		d.Hook = "A hook long enough to pass."
		d.Body = strings.Repeat("Body content with substance. ", 4)
		d.FullText = d.Hook + "\n\n" + d.Body
		return d
	}

	t.Run("well-formed draft passes", func(t *testing.T) {
		result := ValidatePost(valid())
		assert.True(t, result.Valid)
		assert.Empty(t, result.Errors)
	})

	t.Run("length boundaries", func(t *testing.T) {
		d := valid()
		d.FullText = strings.Repeat("x", 49)
		assert.False(t, ValidatePost(d).Valid)

		d = valid()
		d.FullText = strings.Repeat("x", 50)
		assert.True(t, ValidatePost(d).Valid)

		d = valid()
		d.FullText = strings.Repeat("x", 3000)
		assert.True(t, ValidatePost(d).Valid)

		d = valid()
		d.FullText = strings.Repeat("x", 3001)
		assert.False(t, ValidatePost(d).Valid)
	})

	t.Run("short hook flagged", func(t *testing.T) {
		d := valid()
		d.Hook = "Hi."
		result := ValidatePost(d)
		assert.False(t, result.Valid)
	})

	t.Run("too many hashtags flagged", func(t *testing.T) {
		d := valid()
		for i := 0; i < 11; i++ {
			d.Hashtags = append(d.Hashtags, "#tag")
		}
		assert.False(t, ValidatePost(d).Valid)
	})

	t.Run("errors accumulate", func(t *testing.T) {
		d := models.NewDraftVariant("user-1", "topic-1", "pillar-1", "A")
		result := ValidatePost(d)
		assert.False(t, result.Valid)
		assert.GreaterOrEqual(t, len(result.Errors), 3)
	})
}

func TestHeuristicEstimator(t *testing.T) {
	est := NewHeuristicEstimator()

	base := models.NewDraftVariant("user-1", "topic-1", "pillar-1", "A")
	base.Hook = "A plain statement."
	base.CharacterCount = 200

	strong := models.NewDraftVariant("user-1", "topic-1", "pillar-1", "B")
	strong.Hook = "What do 3 numbers tell us?"
	strong.CTA = "Tell me below."
	strong.CharacterCount = 1000
	strong.Hashtags = []string{"#a", "#b", "#c"}

	assert.Greater(t, est.Estimate(strong, 5000), est.Estimate(base, 5000))
	assert.Zero(t, est.Estimate(base, 0))
}
