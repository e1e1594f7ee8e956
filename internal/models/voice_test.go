package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVoiceProfileTrained(t *testing.T) {
	profile := &VoiceProfile{ExampleCount: 2, MasterEmbedding: []float64{1}}
	assert.False(t, profile.Trained())

	profile.ExampleCount = 3
	assert.True(t, profile.Trained())

	profile.MasterEmbedding = nil
	assert.False(t, profile.Trained())
}

func TestVoiceExampleDefaults(t *testing.T) {
	ex := NewVoiceExample("user-1", "a post")
	assert.Equal(t, 1, ex.EngagementWeight)
	assert.False(t, ex.HasEmbedding())

	ex.Embedding = []float64{0.1}
	assert.True(t, ex.HasEmbedding())
}
