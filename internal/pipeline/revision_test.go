package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicedraft/voicedraft/internal/apperr"
	"github.com/voicedraft/voicedraft/internal/models"
)

// draftTopic runs a full select-topic pass and returns the response so
// revision tests start from a drafted topic with stored variants.
func draftTopic(t *testing.T, env *testEnv) *GenerationResponse {
	t.Helper()
	resp, err := env.svc.SelectTopic(context.Background(), &SelectTopicRequest{
		OwnerID:         "user-1",
		TopicContent:    "incident response culture",
		UserPerspective: "blameless postmortems changed how my team ships",
	})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, resp.Status)
	return resp
}

func TestRegenerateTopic(t *testing.T) {
	env := newTestEnv(t)
	first := draftTopic(t, env)

	resp, err := env.svc.RegenerateTopic(context.Background(), &RegenerateRequest{
		OwnerID:         "user-1",
		TopicID:         first.TopicID,
		UserPerspective: "focus on the on-call rotation angle this time",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, resp.Status)
	assert.NotEqual(t, first.JobID, resp.JobID, "regeneration runs as its own job")

	// Drafts are additive: the first pass's variants survive alongside
	// the regenerated set.
	assert.Len(t, resp.Drafts, 6)

	assert.Equal(t, 1, env.usage.counts["user-1|"+models.ActionGeneratePost])
	assert.Equal(t, 1, env.usage.counts["user-1|"+models.ActionRegenerate])
}

func TestRegenerateTopicValidation(t *testing.T) {
	env := newTestEnv(t)
	first := draftTopic(t, env)

	t.Run("owner required", func(t *testing.T) {
		_, err := env.svc.RegenerateTopic(context.Background(), &RegenerateRequest{TopicID: first.TopicID})
		var verr *apperr.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("unknown topic", func(t *testing.T) {
		_, err := env.svc.RegenerateTopic(context.Background(), &RegenerateRequest{
			OwnerID: "user-1",
			TopicID: "topic-missing",
		})
		var nerr *apperr.NotFoundError
		assert.ErrorAs(t, err, &nerr)
	})

	t.Run("foreign topic looks absent", func(t *testing.T) {
		_, err := env.svc.RegenerateTopic(context.Background(), &RegenerateRequest{
			OwnerID: "user-2",
			TopicID: first.TopicID,
		})
		var nerr *apperr.NotFoundError
		assert.ErrorAs(t, err, &nerr)
	})

	t.Run("rejected topic cannot be regenerated", func(t *testing.T) {
		topic := models.NewManualTopic("user-1", "dead topic")
		topic.Status = models.TopicStatusRejected
		require.NoError(t, env.topics.Create(context.Background(), topic))

		_, err := env.svc.RegenerateTopic(context.Background(), &RegenerateRequest{
			OwnerID: "user-1",
			TopicID: topic.ID,
		})
		var verr *apperr.ValidationError
		assert.ErrorAs(t, err, &verr)
	})
}

func TestRegenerateTopicUsageLimit(t *testing.T) {
	env := newTestEnv(t)
	first := draftTopic(t, env)
	env.usage.counts["user-1|"+models.ActionRegenerate] = 120

	_, err := env.svc.RegenerateTopic(context.Background(), &RegenerateRequest{
		OwnerID: "user-1",
		TopicID: first.TopicID,
	})
	var lerr *apperr.UsageLimitExceeded
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, models.ActionRegenerate, lerr.Action)
}

func TestEditDraftRescreens(t *testing.T) {
	env := newTestEnv(t)
	first := draftTopic(t, env)
	target := first.Drafts[0]

	hook := "What would your team do if paging broke at 3am?"
	body := "Last quarter our pager integration silently dropped alerts for six hours. " +
		"Here is the runbook change that caught it, and the three checks we added so it cannot happen again."
	edited, err := env.svc.EditDraft(context.Background(), &EditDraftRequest{
		OwnerID:  "user-1",
		DraftID:  target.ID,
		FullText: hook + "\n\n" + body,
		Hook:     hook,
		Body:     body,
		Hashtags: []string{"#incidentresponse", "#oncall"},
	})
	require.NoError(t, err)

	assert.Equal(t, len([]rune(hook+"\n\n"+body)), edited.CharacterCount)
	assert.Equal(t, []string{"#incidentresponse", "#oncall"}, edited.Hashtags)
	require.NotNil(t, edited.QualityGate, "edits are re-gated")
	require.NotNil(t, edited.Deduplication, "edits are re-screened for overlap")
	assert.NotEmpty(t, edited.Embedding)
	assert.Equal(t, 100, edited.VoiceMatchScore, "stub embedder matches the master voice exactly")
	assert.Greater(t, edited.EstimatedReach, 0)

	stored, err := env.drafts.GetByID(context.Background(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, hook, stored.Hook)
}

func TestEditDraftToleratesEmbeddingOutage(t *testing.T) {
	env := newTestEnv(t)
	first := draftTopic(t, env)
	env.embedder.err = &apperr.UpstreamUnavailable{Capability: "embedding"}

	edited, err := env.svc.EditDraft(context.Background(), &EditDraftRequest{
		OwnerID:  "user-1",
		DraftID:  first.Drafts[0].ID,
		FullText: "A rewritten draft that is long enough to hold its own as a post body without an embedding.",
		Hook:     "A rewritten draft",
		Body:     "that is long enough to hold its own as a post body without an embedding.",
	})
	require.NoError(t, err)
	assert.Equal(t, 50, edited.VoiceMatchScore, "outage degrades to the neutral score")
	assert.Empty(t, edited.Embedding)
}

func TestEditDraftValidation(t *testing.T) {
	env := newTestEnv(t)
	first := draftTopic(t, env)

	t.Run("full text required", func(t *testing.T) {
		_, err := env.svc.EditDraft(context.Background(), &EditDraftRequest{
			OwnerID: "user-1",
			DraftID: first.Drafts[0].ID,
		})
		var verr *apperr.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("foreign draft looks absent", func(t *testing.T) {
		_, err := env.svc.EditDraft(context.Background(), &EditDraftRequest{
			OwnerID:  "user-2",
			DraftID:  first.Drafts[0].ID,
			FullText: "an edit from somebody else entirely",
		})
		var nerr *apperr.NotFoundError
		assert.ErrorAs(t, err, &nerr)
	})
}
