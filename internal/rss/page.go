package rss

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"

	"github.com/bryan-buckman/feedrewrite/internal/model"
)

// ErrNoContent is returned when a page yields no readable text.
var ErrNoContent = errors.New("no readable content")

// FetchPage downloads a direct article URL and extracts its title and main text.
func (f *Fetcher) FetchPage(ctx context.Context, pageURL string) (model.Article, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return model.Article{}, fmt.Errorf("parse url %s: %w", pageURL, err)
	}

	body, err := f.get(ctx, pageURL, "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return model.Article{}, err
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return model.Article{}, fmt.Errorf("extract %s: %w", pageURL, err)
	}

	text := collapseSpace(article.TextContent)
	if text == "" {
		return model.Article{}, fmt.Errorf("extract %s: %w", pageURL, ErrNoContent)
	}

	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = pageURL
	}
	return model.Article{
		Title:   title,
		Link:    pageURL,
		Summary: text,
	}, nil
}
