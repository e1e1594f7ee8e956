package ai

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/voicedraft/voicedraft/internal/models"
)

// Phrases that read as filler or AI-generated boilerplate.
var (
	clichePhrases = []string{
		"game changer",
		"game-changer",
		"in today's fast-paced world",
		"at the end of the day",
		"think outside the box",
		"low-hanging fruit",
		"move the needle",
		"the new normal",
		"take it to the next level",
		"win-win",
		"synergy",
	}
	aiPhrases = []string{
		"delve into",
		"it's important to note",
		"it is important to note",
		"in conclusion",
		"furthermore",
		"in the realm of",
		"navigate the landscape",
		"unlock the potential",
		"harness the power",
		"tapestry",
		"game-changing insights",
	}
	firstPersonPronouns = map[string]bool{
		"i": true, "i'm": true, "i've": true, "i'd": true, "i'll": true,
		"we": true, "we're": true, "we've": true, "my": true, "our": true, "me": true, "us": true,
	}
	sentenceSplit = regexp.MustCompile(`[.!?]+\s`)
	wordPattern   = regexp.MustCompile(`[A-Za-z']+`)
	numberOrStat  = regexp.MustCompile(`\d+%?|\$\d`)
)

// ScoreThreshold gates a 0-100 sub-score from below: under Warn demotes
// the verdict, under Fail forces failure.
type ScoreThreshold struct {
	Warn int `yaml:"warn"`
	Fail int `yaml:"fail"`
}

// CountThreshold gates a raw count from above.
type CountThreshold struct {
	Warn int `yaml:"warn"`
	Fail int `yaml:"fail"`
}

// GateThresholds configures the quality gate per sub-score. One bad
// dimension can force a warning even when the aggregate looks fine.
type GateThresholds struct {
	Specificity     ScoreThreshold `yaml:"specificity"`
	Credibility     ScoreThreshold `yaml:"credibility"`
	HookStrength    ScoreThreshold `yaml:"hook_strength"`
	Readability     ScoreThreshold `yaml:"readability"`
	Cliches         CountThreshold `yaml:"cliches"`
	AIPhrases       CountThreshold `yaml:"ai_phrases"`
	MinPronounRatio float64        `yaml:"min_pronoun_ratio"`
}

// DefaultThresholds returns the compiled-in gate configuration.
func DefaultThresholds() GateThresholds {
	return GateThresholds{
		Specificity:     ScoreThreshold{Warn: 40, Fail: 15},
		Credibility:     ScoreThreshold{Warn: 35, Fail: 10},
		HookStrength:    ScoreThreshold{Warn: 40, Fail: 15},
		Readability:     ScoreThreshold{Warn: 45, Fail: 20},
		Cliches:         CountThreshold{Warn: 2, Fail: 4},
		AIPhrases:       CountThreshold{Warn: 2, Fail: 4},
		MinPronounRatio: 0.01,
	}
}

// LoadThresholds reads gate thresholds from a yaml file, falling back to
// defaults for the whole file when it is absent.
func LoadThresholds(path string) (GateThresholds, error) {
	thresholds := DefaultThresholds()
	if path == "" {
		return thresholds, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return thresholds, nil
		}
		return thresholds, fmt.Errorf("failed to read quality gate config: %w", err)
	}
	if err := yaml.Unmarshal(data, &thresholds); err != nil {
		return thresholds, fmt.Errorf("failed to parse quality gate config: %w", err)
	}
	return thresholds, nil
}

// QualityGate scores generated text along independent axes and produces a
// pass/warn/fail verdict. Warned and failed variants are surfaced with
// their warning lists, never dropped.
type QualityGate struct {
	thresholds GateThresholds
	logger     *zap.Logger
}

func NewQualityGate(thresholds GateThresholds, logger *zap.Logger) *QualityGate {
	return &QualityGate{thresholds: thresholds, logger: logger}
}

// Evaluate scores a draft and records the gate decision on it.
func (q *QualityGate) Evaluate(d *models.DraftVariant) {
	metrics := &models.QualityMetrics{
		Specificity:   specificityScore(d.FullText),
		Credibility:   credibilityScore(d.FullText),
		ClicheCount:   countPhrases(d.FullText, clichePhrases),
		AIPhraseCount: countPhrases(d.FullText, aiPhrases),
		HookStrength:  hookStrengthScore(d.Hook),
		Readability:   readabilityScore(d.FullText),
		PronounRatio:  pronounRatio(d.FullText),
	}
	metrics.Overall = overallScore(metrics)

	result := &models.QualityGateResult{Verdict: models.GatePass, Warnings: []string{}}
	q.applyScoreGate(result, "specificity", metrics.Specificity, q.thresholds.Specificity)
	q.applyScoreGate(result, "credibility", metrics.Credibility, q.thresholds.Credibility)
	q.applyScoreGate(result, "hook strength", metrics.HookStrength, q.thresholds.HookStrength)
	q.applyScoreGate(result, "readability", metrics.Readability, q.thresholds.Readability)
	q.applyCountGate(result, "cliches", metrics.ClicheCount, q.thresholds.Cliches)
	q.applyCountGate(result, "AI-sounding phrases", metrics.AIPhraseCount, q.thresholds.AIPhrases)
	if metrics.PronounRatio < q.thresholds.MinPronounRatio {
		demote(result, models.GateWarn, "post reads impersonal: almost no first-person voice")
	}

	d.QualityMetrics = metrics
	d.QualityGate = result

	if result.Verdict != models.GatePass {
		q.logger.Debug("quality gate flagged draft",
			zap.String("verdict", result.Verdict),
			zap.Strings("warnings", result.Warnings))
	}
}

func (q *QualityGate) applyScoreGate(r *models.QualityGateResult, name string, score int, t ScoreThreshold) {
	switch {
	case score < t.Fail:
		demote(r, models.GateFail, fmt.Sprintf("%s critically low (%d)", name, score))
	case score < t.Warn:
		demote(r, models.GateWarn, fmt.Sprintf("%s below target (%d)", name, score))
	}
}

func (q *QualityGate) applyCountGate(r *models.QualityGateResult, name string, count int, t CountThreshold) {
	switch {
	case count > t.Fail:
		demote(r, models.GateFail, fmt.Sprintf("too many %s (%d)", name, count))
	case count > t.Warn:
		demote(r, models.GateWarn, fmt.Sprintf("high %s count (%d)", name, count))
	}
}

// demote lowers the verdict, never raises it.
func demote(r *models.QualityGateResult, verdict, warning string) {
	r.Warnings = append(r.Warnings, warning)
	if r.Verdict == models.GateFail {
		return
	}
	if verdict == models.GateFail || r.Verdict == models.GatePass {
		r.Verdict = verdict
	}
}

// specificityScore rewards concrete detail: numbers, statistics, named
// entities mid-sentence.
func specificityScore(text string) int {
	score := 30
	stats := numberOrStat.FindAllString(text, -1)
	score += 15 * len(stats)

	capitalized := 0
	fields := strings.Fields(text)
	if len(fields) > 0 {
		fields = fields[1:]
	}
	for _, word := range fields {
		r := []rune(word)
		if len(r) > 1 && r[0] >= 'A' && r[0] <= 'Z' {
			capitalized++
		}
	}
	if capitalized >= 3 {
		score += 15
	}
	return ClampScore(score)
}

// credibilityScore rewards first-hand experience markers and cited data.
func credibilityScore(text string) int {
	lower := strings.ToLower(text)
	score := 30
	for _, marker := range []string{"i learned", "i built", "i tried", "we shipped", "in my experience", "i spent", "i measured", "last year", "last month"} {
		if strings.Contains(lower, marker) {
			score += 15
		}
	}
	if numberOrStat.MatchString(text) {
		score += 15
	}
	return ClampScore(score)
}

func countPhrases(text string, phrases []string) int {
	lower := strings.ToLower(text)
	count := 0
	for _, phrase := range phrases {
		count += strings.Count(lower, phrase)
	}
	return count
}

// hookStrengthScore rewards hooks that pose a question, lead with a
// number, or make a short punchy claim.
func hookStrengthScore(hook string) int {
	hook = strings.TrimSpace(hook)
	if hook == "" {
		return 0
	}
	score := 35
	if strings.Contains(hook, "?") {
		score += 20
	}
	if strings.ContainsAny(hook, "0123456789") {
		score += 20
	}
	if words := len(strings.Fields(hook)); words > 0 && words <= 12 {
		score += 15 // short hooks land harder
	}
	return ClampScore(score)
}

// readabilityScore penalizes long sentences and long words.
func readabilityScore(text string) int {
	words := wordPattern.FindAllString(text, -1)
	if len(words) == 0 {
		return 0
	}
	sentences := sentenceSplit.Split(text, -1)
	nonEmpty := 0
	for _, s := range sentences {
		if strings.TrimSpace(s) != "" {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		nonEmpty = 1
	}

	avgSentenceLen := float64(len(words)) / float64(nonEmpty)
	var totalRunes int
	for _, w := range words {
		totalRunes += len([]rune(w))
	}
	avgWordLen := float64(totalRunes) / float64(len(words))

	score := 100
	if avgSentenceLen > 20 {
		score -= int((avgSentenceLen - 20) * 3)
	}
	if avgWordLen > 5.5 {
		score -= int((avgWordLen - 5.5) * 20)
	}
	return ClampScore(score)
}

// pronounRatio is first-person pronouns over total words.
func pronounRatio(text string) float64 {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	if len(words) == 0 {
		return 0
	}
	count := 0
	for _, w := range words {
		if firstPersonPronouns[w] {
			count++
		}
	}
	return float64(count) / float64(len(words))
}

// overallScore combines the sub-scores; counts subtract directly.
func overallScore(m *models.QualityMetrics) int {
	score := (m.Specificity + m.Credibility + m.HookStrength + m.Readability) / 4
	score -= 5 * m.ClicheCount
	score -= 5 * m.AIPhraseCount
	return ClampScore(score)
}
