// Package rss fetches syndication feeds and article pages.
package rss

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/bryan-buckman/feedrewrite/internal/logger"
	"github.com/bryan-buckman/feedrewrite/internal/metrics"
	"github.com/bryan-buckman/feedrewrite/internal/model"
)

// Fetch defaults.
const (
	DefaultTimeout = 15 * time.Second
	// MaxConcurrency caps parallel feed fetches.
	MaxConcurrency = 5
	// DelayBetweenDomainRequests is the minimum delay between requests to the same domain.
	DelayBetweenDomainRequests = 500 * time.Millisecond
	// MaxBodyBytes caps how much of a response is read.
	MaxBodyBytes = 10 << 20

	DefaultUserAgent = "Mozilla/5.0 (compatible; feedrewrite/1.0; +https://github.com/bryan-buckman/feedrewrite)"
)

// ErrStatus is wrapped by fetch errors caused by a non-2xx response.
var ErrStatus = errors.New("unexpected status")

// domainLimiter paces requests per host so a batch never hammers one site.
type domainLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	limiters map[string]*rate.Limiter
}

func newDomainLimiter(interval time.Duration) *domainLimiter {
	return &domainLimiter{
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
	}
}

// wait blocks until the domain may be requested again.
func (dl *domainLimiter) wait(ctx context.Context, domain string) error {
	if dl.interval <= 0 {
		return nil
	}
	dl.mu.Lock()
	lim, ok := dl.limiters[domain]
	if !ok {
		lim = rate.NewLimiter(rate.Every(dl.interval), 1)
		dl.limiters[domain] = lim
	}
	dl.mu.Unlock()
	return lim.Wait(ctx)
}

// extractDomain gets the host from a URL.
func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}

// Options tunes the fetcher.
type Options struct {
	Timeout        time.Duration
	Concurrency    int
	DomainInterval time.Duration
	UserAgent      string
}

// Fetcher retrieves and parses feeds and pages.
type Fetcher struct {
	client  *http.Client
	opts    Options
	limiter *domainLimiter
	log     logger.Logger
	metrics *metrics.Metrics
}

// NewFetcher creates a fetcher. Zero options fall back to the package defaults;
// Concurrency is clamped to [1, MaxConcurrency].
func NewFetcher(client *http.Client, opts Options, log logger.Logger, m *metrics.Metrics) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	opts.Concurrency = min(max(opts.Concurrency, 1), MaxConcurrency)
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Fetcher{
		client:  client,
		opts:    opts,
		limiter: newDomainLimiter(opts.DomainInterval),
		log:     log,
		metrics: m,
	}
}

// get performs a paced GET bounded by the fetch timeout and returns the body.
func (f *Fetcher) get(ctx context.Context, rawURL, accept string) ([]byte, error) {
	if err := f.limiter.wait(ctx, extractDomain(rawURL)); err != nil {
		return nil, fmt.Errorf("rate limit cancelled for %s: %w", rawURL, err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", accept)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("get %s: %w %d", rawURL, ErrStatus, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	return body, nil
}

// FetchFeed fetches and parses one feed. Article fields are returned untruncated.
func (f *Fetcher) FetchFeed(ctx context.Context, feedURL string) ([]model.Article, error) {
	body, err := f.get(ctx, feedURL, "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")
	if err != nil {
		return nil, err
	}

	// gofeed parsers keep per-parse state, so each fetch gets its own.
	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	articles := make([]model.Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		link := strings.TrimSpace(item.Link)
		if link == "" {
			link = strings.TrimSpace(item.GUID)
		}
		if link == "" {
			continue
		}
		pub := item.PublishedParsed
		if pub == nil {
			pub = item.UpdatedParsed
		}
		summary := item.Description
		if summary == "" {
			summary = item.Content
		}
		articles = append(articles, model.Article{
			Title:       strings.TrimSpace(item.Title),
			Link:        link,
			PublishDate: pub,
			Summary:     summary,
		})
	}
	return articles, nil
}

// FetchResult holds the outcome of fetching a single feed.
type FetchResult struct {
	URL      string
	Articles []model.Article
	Err      error
}

// FetchAll fetches every feed and returns one result per URL, in input order.
// A failing feed never affects the others.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) []FetchResult {
	results := make([]FetchResult, len(urls))
	if len(urls) == 0 {
		return results
	}

	f.log.Debug("Fetching feeds", logger.Int("count", len(urls)), logger.Int("concurrency", f.opts.Concurrency))

	if f.opts.Concurrency <= 1 {
		for i, u := range urls {
			results[i] = f.fetchOne(ctx, u)
		}
		return results
	}

	g := new(errgroup.Group)
	g.SetLimit(f.opts.Concurrency)
	for i, u := range urls {
		g.Go(func() error {
			results[i] = f.fetchOne(ctx, u)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (f *Fetcher) fetchOne(ctx context.Context, feedURL string) FetchResult {
	if err := ctx.Err(); err != nil {
		return FetchResult{URL: feedURL, Err: err}
	}
	articles, err := f.FetchFeed(ctx, feedURL)
	if err != nil {
		f.metrics.FeedFetched("error")
		f.log.Warn("Feed fetch failed", logger.String("url", feedURL), logger.Error(err))
		return FetchResult{URL: feedURL, Err: err}
	}
	f.metrics.FeedFetched("ok")
	return FetchResult{URL: feedURL, Articles: articles}
}
