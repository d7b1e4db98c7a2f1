// Package engine wraps an OpenAI-compatible chat completion endpoint behind
// the small surface the composer needs. The deployment points it at Groq's
// compatible API, but any compatible base URL works.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/Pranay-a-1/telegram-persona-bot/internal/domain"
)

// ErrEngine marks any response-engine failure: transport, API, timeout or a
// malformed (empty) completion. Callers recover by falling back to templates.
var ErrEngine = errors.New("response engine failure")

// Config holds the engine connection settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Engine is a configured chat-completion client.
type Engine struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// New builds an engine from cfg. It returns nil when no API key is configured;
// a nil *Engine means "not available" and the composer falls back to templates.
func New(cfg Config) *Engine {
	if cfg.APIKey == "" {
		return nil
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Engine{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		timeout: timeout,
	}
}

// Complete runs one chat completion: system prompt, prior turns, then the new
// user message or instruction. The wait is bounded by the configured timeout.
func (e *Engine) Complete(ctx context.Context, system string, history []domain.Turn, prompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})
	for _, t := range history {
		role := openai.ChatMessageRoleUser
		if t.Role == domain.RoleBot {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Messages:    messages,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEngine, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty completion", ErrEngine)
	}
	return resp.Choices[0].Message.Content, nil
}
