package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopicLifecycle(t *testing.T) {
	t.Run("manual topics skip classification", func(t *testing.T) {
		topic := NewManualTopic("user-1", "ad-hoc idea")
		assert.Equal(t, TopicStatusClassified, topic.Status)
		assert.Equal(t, TopicSourceManual, topic.Source)
		assert.Equal(t, ManualTopicScore, topic.AIScore)
		assert.True(t, topic.ReadyForGeneration())
	})

	t.Run("only classified and later states generate", func(t *testing.T) {
		topic := NewTopic("user-1", "discovered idea")
		assert.False(t, topic.ReadyForGeneration())

		topic.Status = TopicStatusClassified
		assert.True(t, topic.ReadyForGeneration())
		topic.Status = TopicStatusDrafted
		assert.True(t, topic.ReadyForGeneration())
		topic.Status = TopicStatusRejected
		assert.False(t, topic.ReadyForGeneration())
	})
}
