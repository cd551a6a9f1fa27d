package rewrite

import (
	"context"
	"errors"
	"fmt"
)

// ErrTooShort marks output that is too short to be useful after cleaning.
var ErrTooShort = errors.New("rewrite too short")

// Options tunes prompt building and post-processing.
type Options struct {
	MinLength   int
	MaxLength   int
	MinViable   int
	MaxTokens   int
	Temperature float32
}

// DefaultOptions returns the 200-400 character blurb settings.
func DefaultOptions() Options {
	return Options{
		MinLength:   200,
		MaxLength:   400,
		MinViable:   20,
		MaxTokens:   300,
		Temperature: 0.7,
	}
}

// Completer is satisfied by *Chain.
type Completer interface {
	Complete(ctx context.Context, req Request) (Attempt, error)
}

// Engine produces clamped blurbs from article text.
type Engine struct {
	completer Completer
	opts      Options
}

// NewEngine creates an engine. Zero-valued options fall back to DefaultOptions.
func NewEngine(c Completer, opts Options) *Engine {
	def := DefaultOptions()
	if opts.MinLength <= 0 {
		opts.MinLength = def.MinLength
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = def.MaxLength
	}
	if opts.MinViable <= 0 {
		opts.MinViable = def.MinViable
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = def.MaxTokens
	}
	return &Engine{completer: c, opts: opts}
}

// Rewrite runs prompt through the provider chain and post-processes the result.
func (e *Engine) Rewrite(ctx context.Context, prompt string) (string, error) {
	a, err := e.completer.Complete(ctx, Request{
		System:      systemPrompt,
		Prompt:      prompt,
		MaxTokens:   e.opts.MaxTokens,
		Temperature: e.opts.Temperature,
	})
	if err != nil {
		return "", err
	}
	out := Clamp(Clean(a.Content), e.opts.MinLength, e.opts.MaxLength)
	if n := len([]rune(out)); n < e.opts.MinViable {
		return "", fmt.Errorf("%w: %d characters from %s", ErrTooShort, n, a.Provider)
	}
	return out, nil
}

// RewriteArticle builds the prompt for an article and rewrites it.
func (e *Engine) RewriteArticle(ctx context.Context, title, body string) (string, error) {
	return e.Rewrite(ctx, BuildPrompt(title, body, e.opts.MinLength, e.opts.MaxLength))
}
