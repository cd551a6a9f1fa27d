// Package shortener shortens article links through a Bitly-compatible API.
package shortener

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bryan-buckman/feedrewrite/internal/logger"
	"github.com/bryan-buckman/feedrewrite/internal/metrics"
)

// DefaultEndpoint is the Bitly v4 shorten endpoint.
const DefaultEndpoint = "https://api-ssl.bitly.com/v4/shorten"

// DefaultTimeout bounds a single shorten call.
const DefaultTimeout = 10 * time.Second

var errNoLink = errors.New("response has no link")

// Shortener returns a short form of url, or url itself when shortening fails.
type Shortener interface {
	Shorten(ctx context.Context, url string) string
}

// Noop returns every URL unchanged.
type Noop struct{}

func (Noop) Shorten(_ context.Context, url string) string { return url }

// Config configures the HTTP shortener.
type Config struct {
	Endpoint string        `mapstructure:"endpoint"`
	Token    string        `mapstructure:"token"`
	Domain   string        `mapstructure:"domain"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Client talks to a Bitly-compatible shorten endpoint.
type Client struct {
	cfg     Config
	http    *http.Client
	log     logger.Logger
	metrics *metrics.Metrics
}

// New returns a Client, or Noop when no token is configured.
func New(cfg Config, httpClient *http.Client, log logger.Logger, m *metrics.Metrics) Shortener {
	if strings.TrimSpace(cfg.Token) == "" {
		return Noop{}
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{cfg: cfg, http: httpClient, log: log, metrics: m}
}

// Shorten never fails: any error is logged and the original URL returned.
func (c *Client) Shorten(ctx context.Context, url string) string {
	short, err := c.shorten(ctx, url)
	if err != nil {
		c.log.Warn("Shorten failed, using original URL", logger.String("url", url), logger.Error(err))
		c.metrics.ShortenFallback()
		return url
	}
	return short
}

func (c *Client) shorten(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	payload := map[string]string{"long_url": url}
	if c.cfg.Domain != "" {
		payload["domain"] = c.cfg.Domain
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Link string `json:"link"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	link := strings.TrimSpace(out.Link)
	if link == "" {
		return "", errNoLink
	}
	return link, nil
}
