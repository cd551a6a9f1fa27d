package rss

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryan-buckman/feedrewrite/internal/metrics"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Example</title>
  <link>https://a.example/</link>
  <item>
    <title>First story</title>
    <link>https://a.example/1</link>
    <description>&lt;p&gt;Council &amp;amp; mayor agree.&lt;/p&gt;</description>
    <pubDate>Sat, 01 Jun 2024 12:00:00 +0000</pubDate>
  </item>
  <item>
    <title>Second story</title>
    <guid>https://a.example/2</guid>
    <description>Plain summary.</description>
  </item>
  <item>
    <title>No link at all</title>
  </item>
</channel>
</rss>`

const sampleAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Example</title>
  <entry>
    <title>Atom entry</title>
    <link href="https://b.example/entry"/>
    <id>urn:uuid:1</id>
    <updated>2024-06-01T10:00:00Z</updated>
    <summary>Atom summary.</summary>
  </entry>
</feed>`

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/rss", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = io.WriteString(w, sampleRSS)
	})
	mux.HandleFunc("/atom", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, sampleAtom)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "this is not a feed")
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchFeedRSS(t *testing.T) {
	srv := feedServer(t)
	f := NewFetcher(srv.Client(), Options{}, nil, nil)

	articles, err := f.FetchFeed(context.Background(), srv.URL+"/rss")
	require.NoError(t, err)
	require.Len(t, articles, 2)

	assert.Equal(t, "First story", articles[0].Title)
	assert.Equal(t, "https://a.example/1", articles[0].Link)
	require.NotNil(t, articles[0].PublishDate)
	assert.Equal(t, 2024, articles[0].PublishDate.Year())
	assert.Contains(t, articles[0].Summary, "<p>", "fetcher returns raw summaries")

	assert.Equal(t, "https://a.example/2", articles[1].Link, "guid stands in for a missing link")
	assert.Nil(t, articles[1].PublishDate)
}

func TestFetchFeedAtom(t *testing.T) {
	srv := feedServer(t)
	f := NewFetcher(srv.Client(), Options{}, nil, nil)

	articles, err := f.FetchFeed(context.Background(), srv.URL+"/atom")
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "https://b.example/entry", articles[0].Link)
	assert.Equal(t, "Atom summary.", articles[0].Summary)
	require.NotNil(t, articles[0].PublishDate)
}

func TestFetchFeedErrors(t *testing.T) {
	srv := feedServer(t)
	f := NewFetcher(srv.Client(), Options{Timeout: 50 * time.Millisecond}, nil, nil)

	_, err := f.FetchFeed(context.Background(), srv.URL+"/missing")
	assert.ErrorIs(t, err, ErrStatus)

	_, err = f.FetchFeed(context.Background(), srv.URL+"/broken")
	assert.Error(t, err)

	_, err = f.FetchFeed(context.Background(), srv.URL+"/slow")
	assert.Error(t, err)
}

func TestFetchAllIsolatesFailures(t *testing.T) {
	for _, concurrency := range []int{1, 3} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			srv := feedServer(t)
			m := metrics.New(prometheus.NewRegistry())
			f := NewFetcher(srv.Client(), Options{Concurrency: concurrency}, nil, m)

			urls := []string{srv.URL + "/missing", srv.URL + "/rss", srv.URL + "/broken", srv.URL + "/atom"}
			results := f.FetchAll(context.Background(), urls)
			require.Len(t, results, 4)

			for i, r := range results {
				assert.Equal(t, urls[i], r.URL, "results keep input order")
			}
			assert.Error(t, results[0].Err)
			assert.NoError(t, results[1].Err)
			assert.Len(t, results[1].Articles, 2)
			assert.Error(t, results[2].Err)
			assert.Len(t, results[3].Articles, 1)

			assert.Equal(t, 2.0, testutil.ToFloat64(m.FeedFetches.WithLabelValues("ok")))
			assert.Equal(t, 2.0, testutil.ToFloat64(m.FeedFetches.WithLabelValues("error")))
		})
	}
}

func TestFetchAllCancelled(t *testing.T) {
	srv := feedServer(t)
	f := NewFetcher(srv.Client(), Options{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := f.FetchAll(ctx, []string{srv.URL + "/rss"})
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}

func TestDomainLimiterPaces(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, sampleRSS)
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), Options{DomainInterval: 100 * time.Millisecond}, nil, nil)
	start := time.Now()
	results := f.FetchAll(context.Background(), []string{srv.URL + "/a", srv.URL + "/b", srv.URL + "/c"})
	elapsed := time.Since(start)

	for _, r := range results {
		require.NoError(t, r.Err)
	}
	assert.Equal(t, int32(3), hits.Load())
	assert.GreaterOrEqual(t, elapsed, 190*time.Millisecond)
}

func TestExtractDomain(t *testing.T) {
	assert.Equal(t, "a.example:8080", extractDomain("https://a.example:8080/rss"))
	assert.Equal(t, "not a url", extractDomain("not a url"))
}

func TestNewFetcherClampsConcurrency(t *testing.T) {
	assert.Equal(t, 1, NewFetcher(nil, Options{Concurrency: -2}, nil, nil).opts.Concurrency)
	assert.Equal(t, MaxConcurrency, NewFetcher(nil, Options{Concurrency: 50}, nil, nil).opts.Concurrency)
}
