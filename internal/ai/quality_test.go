package ai

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/voicedraft/voicedraft/internal/models"
)

func gateDraft(hook, body string) *models.DraftVariant {
	d := models.NewDraftVariant("user-1", "topic-1", "pillar-1", "A")
	d.Hook = hook
	d.Body = body
	d.FullText = hook + "\n\n" + body
	return d
}

func TestQualityGateEvaluate(t *testing.T) {
	gate := NewQualityGate(DefaultThresholds(), zap.NewNop())

	t.Run("concrete first-person draft passes", func(t *testing.T) {
		d := gateDraft(
			"I cut our build time by 40% in 3 weeks?",
			"I spent last month profiling our CI pipeline. We shipped a caching layer and measured a 40% drop, from 22 minutes to 13. I learned that the slowest step was never the one we blamed. Short runs win.",
		)
		gate.Evaluate(d)

		require.NotNil(t, d.QualityGate)
		assert.Equal(t, models.GatePass, d.QualityGate.Verdict)
		assert.Empty(t, d.QualityGate.Warnings)
		require.NotNil(t, d.QualityMetrics)
		assert.Greater(t, d.QualityMetrics.Overall, 50)
	})

	t.Run("cliche-heavy draft is flagged", func(t *testing.T) {
		d := gateDraft(
			"This is a game changer for everyone.",
			"In today's fast-paced world you need to think outside the box. At the end of the day it is a win-win that will move the needle and take it to the next level for the team.",
		)
		gate.Evaluate(d)

		assert.NotEqual(t, models.GatePass, d.QualityGate.Verdict)
		assert.NotEmpty(t, d.QualityGate.Warnings)
		assert.GreaterOrEqual(t, d.QualityMetrics.ClicheCount, 4)
	})

	t.Run("ai boilerplate is flagged", func(t *testing.T) {
		d := gateDraft(
			"Let us delve into the topic at hand now.",
			"It's important to note that we must delve into the realm of possibility. Furthermore, we can unlock the potential and harness the power of this rich tapestry. In conclusion, furthermore wins.",
		)
		gate.Evaluate(d)

		assert.NotEqual(t, models.GatePass, d.QualityGate.Verdict)
		assert.GreaterOrEqual(t, d.QualityMetrics.AIPhraseCount, 4)
	})

	t.Run("verdict only demotes", func(t *testing.T) {
		// Empty text bottoms out every axis: fail must win over warn.
		d := gateDraft("", "")
		gate.Evaluate(d)
		assert.Equal(t, models.GateFail, d.QualityGate.Verdict)
	})

	t.Run("impersonal text draws a warning", func(t *testing.T) {
		d := gateDraft(
			"5 facts about database indexing worth 10 minutes?",
			"Indexes trade write cost for read speed. B-tree indexes cover 90% of cases in Postgres 16. Partial indexes cut size by 60% on sparse columns. Covering indexes avoid 2 heap visits per row.",
		)
		gate.Evaluate(d)

		assert.Equal(t, 0.0, d.QualityMetrics.PronounRatio)
		found := false
		for _, w := range d.QualityGate.Warnings {
			if strings.Contains(w, "impersonal") {
				found = true
			}
		}
		assert.True(t, found)
	})
}

func TestHookStrengthScore(t *testing.T) {
	assert.Equal(t, 0, hookStrengthScore(""))
	assert.Greater(t, hookStrengthScore("What are 3 ways to fail?"), hookStrengthScore("Some thoughts on engineering management practices I have gathered over many years of working in the field"))
}

func TestLoadThresholds(t *testing.T) {
	t.Run("missing file falls back to defaults", func(t *testing.T) {
		thresholds, err := LoadThresholds(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultThresholds(), thresholds)
	})

	t.Run("empty path uses defaults", func(t *testing.T) {
		thresholds, err := LoadThresholds("")
		require.NoError(t, err)
		assert.Equal(t, DefaultThresholds(), thresholds)
	})

	t.Run("file overrides merge onto defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gates.yaml")
		require.NoError(t, os.WriteFile(path, []byte("specificity:\n  warn: 55\n  fail: 25\n"), 0o644))

		thresholds, err := LoadThresholds(path)
		require.NoError(t, err)
		assert.Equal(t, 55, thresholds.Specificity.Warn)
		assert.Equal(t, 25, thresholds.Specificity.Fail)
		// Untouched sections keep their defaults.
		assert.Equal(t, DefaultThresholds().Readability, thresholds.Readability)
	})

	t.Run("malformed yaml errors", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gates.yaml")
		require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o644))

		_, err := LoadThresholds(path)
		assert.Error(t, err)
	})
}
