// Package llm wraps the chat-completion provider behind a small interface so
// stage processors can be tested without network access.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/deskmind/orchestrator/internal/metrics"
)

// Role constants for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat prompt.
type Message struct {
	Role    string
	Content string
}

// System, User and Assistant are prompt-building shorthands.
func System(content string) Message    { return Message{Role: RoleSystem, Content: content} }
func User(content string) Message      { return Message{Role: RoleUser, Content: content} }
func Assistant(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// ChatModel produces a completion for a prompt. Implementations must be safe
// for concurrent use.
type ChatModel interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Config configures the OpenAI-backed client.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Client is the OpenAI-backed ChatModel.
type Client struct {
	client      *openai.Client
	model       string
	temperature float64
	logger      *zap.Logger
}

// NewClient builds a chat client. BaseURL supports OpenAI-compatible
// endpoints, which the support deployments use for self-hosted models.
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("llm: API key not configured")
	}
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: config.Timeout}),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	client := openai.NewClient(opts...)
	return &Client{
		client:      &client,
		model:       config.Model,
		temperature: config.Temperature,
		logger:      logger,
	}, nil
}

// Complete sends the prompt and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: toParams(messages),
	}
	if c.temperature > 0 {
		params.Temperature = openai.Float(c.temperature)
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		metrics.LLMCalls.WithLabelValues(c.model, "error").Inc()
		return "", fmt.Errorf("llm: completion failed: %w", err)
	}
	metrics.LLMCalls.WithLabelValues(c.model, "ok").Inc()
	metrics.LLMTokensUsed.WithLabelValues(c.model).Add(float64(resp.Usage.TotalTokens))

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: empty response")
	}
	c.logger.Debug("LLM completion",
		zap.String("model", c.model),
		zap.Int64("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("duration", time.Since(start)),
	)
	return resp.Choices[0].Message.Content, nil
}

func toParams(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
