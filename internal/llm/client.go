// Package llm talks to the chat model behind an OpenAI-compatible endpoint
// and extracts the structured recommendation manifest from its replies.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/kdimtricp/cineman/internal/apiclient"
	"github.com/kdimtricp/cineman/internal/metrics"
)

// Message is one turn of conversation history.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

type Config struct {
	APIKey      string
	BaseURL     string // optional OpenAI-compatible endpoint override
	Model       string
	Temperature float32
	MaxTokens   int
}

// Client wraps the completion API. Safe for concurrent use.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      zerolog.Logger
}

func New(cfg Config, logger zerolog.Logger) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}

	return &Client{
		api:         openai.NewClientWithConfig(apiCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
}

// Complete sends the system prompt, prior history and the new user message,
// returning the assistant's raw reply text.
func (c *Client) Complete(ctx context.Context, systemPrompt string, history []Message, userMessage string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, m := range history {
		role := openai.ChatMessageRoleUser
		if m.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userMessage,
	})

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	elapsed := time.Since(start)
	metrics.LLMDuration.Observe(elapsed.Seconds())

	if err != nil {
		metrics.LLMInvocations.WithLabelValues("error").Inc()
		c.logger.Error().Dur("elapsed", elapsed).Err(err).Msg("llm completion failed")
		return "", classifyLLMErr(err)
	}
	if len(resp.Choices) == 0 {
		metrics.LLMInvocations.WithLabelValues("error").Inc()
		return "", &apiclient.Error{Kind: apiclient.KindUnknown, API: "LLM", Message: "completion returned no choices"}
	}

	metrics.LLMInvocations.WithLabelValues("success").Inc()
	c.logger.Debug().
		Dur("elapsed", elapsed).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("llm completion finished")
	return resp.Choices[0].Message.Content, nil
}

// classifyLLMErr maps provider errors onto the shared taxonomy so the chat
// layer can tell auth misconfiguration from a transient blip.
func classifyLLMErr(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		kind := apiclient.KindUnknown
		switch {
		case apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403:
			kind = apiclient.KindAuth
		case apiErr.HTTPStatusCode == 429:
			kind = apiclient.KindQuota
		case apiErr.HTTPStatusCode >= 500:
			kind = apiclient.KindTransient
		}
		return &apiclient.Error{
			Kind:       kind,
			StatusCode: apiErr.HTTPStatusCode,
			API:        "LLM",
			Message:    apiErr.Message,
			Err:        err,
		}
	}
	return fmt.Errorf("llm completion: %w", err)
}
