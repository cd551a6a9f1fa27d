package rewrite

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider calls any OpenAI-compatible chat-completion endpoint
// (OpenAI, Groq, OpenRouter, DeepSeek, Mistral...).
type OpenAIProvider struct {
	id     string
	model  string
	hasKey bool
	client *openai.Client
}

// NewOpenAI creates a provider for an OpenAI-compatible endpoint.
func NewOpenAI(cfg ProviderConfig, httpClient *http.Client) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}
	return &OpenAIProvider{
		id:     cfg.ID,
		model:  cfg.Model,
		hasKey: cfg.APIKey != "",
		client: openai.NewClientWithConfig(clientCfg),
	}
}

func (p *OpenAIProvider) ID() string      { return p.id }
func (p *OpenAIProvider) Available() bool { return p.hasKey }

// Complete sends one chat completion. A response without choices or with
// blank content is a failed attempt.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) Attempt {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return Attempt{Provider: p.id, Err: fmt.Errorf("chat completion: %w", err)}
	}
	if len(resp.Choices) == 0 {
		return Attempt{Provider: p.id, Err: ErrEmptyContent}
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return Attempt{Provider: p.id, Err: ErrEmptyContent}
	}
	return Attempt{Provider: p.id, Content: content}
}
