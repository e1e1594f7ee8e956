package ai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/voicedraft/voicedraft/internal/apperr"
)

const (
	// DefaultChatModel is the default model for structured completions.
	DefaultChatModel = "gpt-4o-mini"
	// DefaultEmbeddingModel produces 1536-dimensional vectors.
	DefaultEmbeddingModel = openai.SmallEmbedding3

	requestTimeout = 60 * time.Second
)

// Completer is the text completion capability. Responses are constrained
// to JSON; the pipeline never accepts free-form prose where structured
// data is required.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
}

// Embedder is the text embedding capability.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// ResearchResult is the output of one research query.
type ResearchResult struct {
	Content   string
	Citations []string
}

// Researcher is the research/search capability used by topic discovery.
type Researcher interface {
	Search(ctx context.Context, query string) (*ResearchResult, error)
}

// Client implements the completion, embedding, and research capabilities
// on top of the OpenAI API. Constructed once at startup and passed to
// components explicitly.
type Client struct {
	api            *openai.Client
	chatModel      string
	embeddingModel openai.EmbeddingModel
	logger         *zap.Logger
}

// NewClient creates a capability client. The API key is required.
func NewClient(apiKey string, logger *zap.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	return &Client{
		api:            openai.NewClient(apiKey),
		chatModel:      DefaultChatModel,
		embeddingModel: DefaultEmbeddingModel,
		logger:         logger,
	}, nil
}

// CompleteJSON runs one chat completion in JSON-object mode and returns
// the raw JSON text for the caller to parse into its typed shape.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.chatModel,
		MaxTokens: maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", &apperr.UpstreamUnavailable{Capability: "completion", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &apperr.UpstreamUnavailable{Capability: "completion", Err: fmt.Errorf("no completion choices returned")}
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed generates one embedding vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for all texts, preserving input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, apperr.ErrEmptyInput
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: c.embeddingModel,
	})
	if err != nil {
		return nil, &apperr.UpstreamUnavailable{Capability: "embedding", Err: err}
	}
	if len(resp.Data) != len(texts) {
		return nil, &apperr.UpstreamUnavailable{
			Capability: "embedding",
			Err:        fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)),
		}
	}

	// Response data is indexed; keep input order regardless of API order.
	vectors := make([][]float64, len(texts))
	for _, item := range resp.Data {
		vec := make([]float64, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float64(v)
		}
		vectors[item.Index] = vec
	}
	return vectors, nil
}

// Search issues one research query through the completion capability and
// returns the synthesized content with any cited sources.
func (c *Client) Search(ctx context.Context, query string) (*ResearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.chatModel,
		MaxTokens: 3000,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You are a research assistant. Answer with current, factual findings. " +
					"Cite source URLs on their own lines prefixed with 'SOURCE: '.",
			},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
		Temperature: 0.4,
	})
	if err != nil {
		return nil, &apperr.UpstreamUnavailable{Capability: "research", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &apperr.UpstreamUnavailable{Capability: "research", Err: fmt.Errorf("no research choices returned")}
	}

	content, citations := splitCitations(resp.Choices[0].Message.Content)
	return &ResearchResult{Content: content, Citations: citations}, nil
}
