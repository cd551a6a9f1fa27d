package rewrite

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider calls the Anthropic Messages API.
type AnthropicProvider struct {
	id     string
	model  string
	hasKey bool
	client anthropic.Client
}

// NewAnthropic creates an Anthropic provider. SDK retries are disabled; the
// fallback chain decides what happens after a failure.
func NewAnthropic(cfg ProviderConfig, httpClient *http.Client) *AnthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &AnthropicProvider{
		id:     cfg.ID,
		model:  cfg.Model,
		hasKey: cfg.APIKey != "",
		client: anthropic.NewClient(opts...),
	}
}

func (p *AnthropicProvider) ID() string      { return p.id }
func (p *AnthropicProvider) Available() bool { return p.hasKey }

func (p *AnthropicProvider) Complete(ctx context.Context, req Request) Attempt {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(req.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		Temperature: anthropic.Float(float64(req.Temperature)),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return Attempt{Provider: p.id, Err: fmt.Errorf("create message: %w", err)}
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	content := strings.TrimSpace(sb.String())
	if content == "" {
		return Attempt{Provider: p.id, Err: ErrEmptyContent}
	}
	return Attempt{Provider: p.id, Content: content}
}
