package ai

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/voicedraft/voicedraft/internal/models"
)

// minSectionLength is the shortest research section treated as a real
// topic. Shorter fragments are dropped rather than raising parse errors.
const minSectionLength = 40

var (
	numberedSection = regexp.MustCompile(`(?m)^\s*(\d+)[.)]\s+`)
	hashtagPattern  = regexp.MustCompile(`#[A-Za-z][A-Za-z0-9_]*`)
	digitPattern    = regexp.MustCompile(`\d`)
	trendingWords   = []string{"trending", "this week", "recently", "just announced", "breaking", "new report", "latest"}
)

// DiscoveryEngine finds candidate topics by querying the research
// capability and parsing its response into discrete topics.
type DiscoveryEngine struct {
	researcher Researcher
	logger     *zap.Logger
}

func NewDiscoveryEngine(researcher Researcher, logger *zap.Logger) *DiscoveryEngine {
	return &DiscoveryEngine{researcher: researcher, logger: logger}
}

// Discover issues one research query for the domain and returns up to
// count raw topics. Malformed sections are skipped, not errors.
func (e *DiscoveryEngine) Discover(ctx context.Context, ownerID, domain, pillarContext string, count int) ([]*models.Topic, error) {
	if count <= 0 {
		count = 5
	}

	query := fmt.Sprintf(
		"Find %d current, discussion-worthy topics in %s that a practitioner could write a professional post about. "+
			"Number each topic. For each one give a short title, why it matters right now, 2-3 key points, and relevant hashtags.",
		count, domain)
	if pillarContext != "" {
		query += " Focus on topics related to: " + pillarContext
	}

	result, err := e.researcher.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	topics := e.parseTopics(ownerID, result)
	if len(topics) > count {
		topics = topics[:count]
	}
	e.logger.Info("topic discovery complete",
		zap.String("owner", ownerID),
		zap.String("domain", domain),
		zap.Int("topics", len(topics)))
	return topics, nil
}

// parseTopics splits the research content on numbered sections and builds
// a topic from each section long enough to be meaningful.
func (e *DiscoveryEngine) parseTopics(ownerID string, result *ResearchResult) []*models.Topic {
	matches := numberedSection.FindAllStringIndex(result.Content, -1)
	if len(matches) == 0 {
		return nil
	}

	var topics []*models.Topic
	for i, match := range matches {
		start := match[1]
		end := len(result.Content)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		section := strings.TrimSpace(result.Content[start:end])
		if len(section) < minSectionLength {
			continue
		}

		topic := models.NewTopic(ownerID, sectionTitle(section))
		topic.RawData = section
		topic.KeyPoints = extractKeyPoints(section)
		topic.SuggestedHashtags = extractHashtags(section)
		topic.RelevanceScore = relevanceHeuristic(section)
		topic.TrendingScore = trendingHeuristic(section)
		if len(result.Citations) > 0 {
			topic.SourceURL = result.Citations[0]
		}
		topics = append(topics, topic)
	}
	return topics
}

// sectionTitle takes the first line of a section as the topic content.
func sectionTitle(section string) string {
	line := section
	if idx := strings.IndexByte(section, '\n'); idx != -1 {
		line = section[:idx]
	}
	line = strings.Trim(strings.TrimSpace(line), "*_:")
	return line
}

// extractKeyPoints pulls bullet lines out of a section.
func extractKeyPoints(section string) []string {
	points := []string{}
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "-") || strings.HasPrefix(line, "•") || strings.HasPrefix(line, "*") {
			point := strings.TrimSpace(strings.TrimLeft(line, "-•* "))
			if point != "" {
				points = append(points, point)
			}
		}
	}
	return points
}

func extractHashtags(section string) []string {
	tags := hashtagPattern.FindAllString(section, -1)
	if tags == nil {
		return []string{}
	}
	seen := make(map[string]bool, len(tags))
	unique := make([]string, 0, len(tags))
	for _, tag := range tags {
		lower := strings.ToLower(tag)
		if !seen[lower] {
			seen[lower] = true
			unique = append(unique, tag)
		}
	}
	return unique
}

// relevanceHeuristic scores a section on how substantive it looks: length,
// key points, and concrete numbers all add.
func relevanceHeuristic(section string) int {
	score := 50
	if len(section) > 200 {
		score += 15
	}
	if len(extractKeyPoints(section)) >= 2 {
		score += 15
	}
	if digitPattern.MatchString(section) {
		score += 10
	}
	return ClampScore(score)
}

// trendingHeuristic scores a section on recency signals in the text.
func trendingHeuristic(section string) int {
	lower := strings.ToLower(section)
	score := 40
	for _, word := range trendingWords {
		if strings.Contains(lower, word) {
			score += 12
		}
	}
	return ClampScore(score)
}

// splitCitations separates SOURCE: lines from research prose.
func splitCitations(raw string) (string, []string) {
	var content []string
	var citations []string
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "SOURCE:") {
			url := strings.TrimSpace(strings.TrimPrefix(trimmed, "SOURCE:"))
			if url != "" {
				citations = append(citations, url)
			}
			continue
		}
		content = append(content, line)
	}
	return strings.TrimSpace(strings.Join(content, "\n")), citations
}
