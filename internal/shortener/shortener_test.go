package shortener

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryan-buckman/feedrewrite/internal/metrics"
)

const longURL = "https://news.example.com/2024/06/some-long-article"

func TestNewWithoutTokenIsNoop(t *testing.T) {
	s := New(Config{}, nil, nil, nil)
	assert.IsType(t, Noop{}, s)
	assert.Equal(t, longURL, s.Shorten(context.Background(), longURL))
}

func TestShortenSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, longURL, body["long_url"])
		assert.Equal(t, "bit.ly", body["domain"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"link":"https://bit.ly/abc123","id":"bit.ly/abc123"}`)
	}))
	defer srv.Close()

	s := New(Config{Endpoint: srv.URL, Token: "tok", Domain: "bit.ly"}, srv.Client(), nil, nil)
	assert.Equal(t, "https://bit.ly/abc123", s.Shorten(context.Background(), longURL))
}

func TestShortenFallsBack(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "not json")
		}},
		{"missing link", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"id":"x"}`)
		}},
		{"hung", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			m := metrics.New(prometheus.NewRegistry())
			s := New(Config{Endpoint: srv.URL, Token: "tok", Timeout: 50 * time.Millisecond}, srv.Client(), nil, m)
			assert.Equal(t, longURL, s.Shorten(context.Background(), longURL))
			assert.Equal(t, 1.0, testutil.ToFloat64(m.ShortenFallbacks))
		})
	}
}

func TestShortenUnreachable(t *testing.T) {
	s := New(Config{Endpoint: "http://127.0.0.1:1/shorten", Token: "tok", Timeout: 100 * time.Millisecond}, nil, nil, nil)
	assert.Equal(t, longURL, s.Shorten(context.Background(), longURL))
}
