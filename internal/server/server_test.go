package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryan-buckman/feedrewrite/internal/items"
	"github.com/bryan-buckman/feedrewrite/internal/lock"
	"github.com/bryan-buckman/feedrewrite/internal/metrics"
	"github.com/bryan-buckman/feedrewrite/internal/model"
	"github.com/bryan-buckman/feedrewrite/internal/pipeline"
	"github.com/bryan-buckman/feedrewrite/internal/rotation"
	"github.com/bryan-buckman/feedrewrite/internal/storage"
)

type fakeRunner struct {
	summary model.RunSummary
	err     error
	calls   int
}

func (f *fakeRunner) Run(context.Context) (model.RunSummary, error) {
	f.calls++
	return f.summary, f.err
}

func (f *fakeRunner) State() pipeline.State { return pipeline.StateIdle }

func newTestServer(t *testing.T, runner Runner) (*Server, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemory()
	reg := prometheus.NewRegistry()
	metrics.New(reg).ObserveRun("ok", time.Second)
	return New(Options{
		Store:    store,
		Runner:   runner,
		Keys:     pipeline.DefaultKeys(),
		Gatherer: reg,
	}), store
}

func do(t *testing.T, s *Server, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRunEndpoint(t *testing.T) {
	runner := &fakeRunner{summary: model.RunSummary{
		Selected: 3, Succeeded: 2, Skipped: 1, Cursor: model.Cursor{FeedIndex: 4, URLIndex: 1},
	}}
	s, _ := newTestServer(t, runner)

	rec := do(t, s, http.MethodPost, "/api/rewrite/run", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, float64(3), body["selected"])
	assert.Equal(t, map[string]any{"feedIndex": float64(4), "urlIndex": float64(1)}, body["cursor"])
	assert.Equal(t, 1, runner.calls)
}

func TestRunEndpointErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"no sources", pipeline.ErrNoSources, http.StatusInternalServerError},
		{"persistence", &pipeline.PersistenceError{Key: "items.json", Err: errors.New("denied")}, http.StatusInternalServerError},
		{"locked", lock.ErrLocked, http.StatusConflict},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := newTestServer(t, &fakeRunner{err: tc.err})
			rec := do(t, s, http.MethodPost, "/api/rewrite/run", nil, "")
			assert.Equal(t, tc.status, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, false, body["ok"])
			assert.Equal(t, tc.err.Error(), body["error"])
		})
	}
}

func TestRunEndpointRejectsGet(t *testing.T) {
	s, _ := newTestServer(t, &fakeRunner{})
	rec := do(t, s, http.MethodGet, "/api/rewrite/run", nil, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCursorAndItems(t *testing.T) {
	s, store := newTestServer(t, &fakeRunner{})
	ctx := context.Background()

	rec := do(t, s, http.MethodGet, "/api/cursor", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"feedIndex":0,"urlIndex":0}`, rec.Body.String())

	require.NoError(t, rotation.SaveCursor(ctx, store, "cursor.json", model.Cursor{FeedIndex: 2}))
	require.NoError(t, items.Save(ctx, store, "items.json", []model.Item{
		{ID: "1", URL: "https://a.example/1", Timestamp: 100},
		{ID: "2", URL: "https://a.example/2", Timestamp: 200},
	}))

	rec = do(t, s, http.MethodGet, "/api/cursor", nil, "")
	assert.JSONEq(t, `{"feedIndex":2,"urlIndex":0}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/items?limit=1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []model.Item
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "2", list[0].ID)

	rec = do(t, s, http.MethodGet, "/api/items?limit=abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeedXML(t *testing.T) {
	s, store := newTestServer(t, &fakeRunner{})

	rec := do(t, s, http.MethodGet, "/feed.xml", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, storage.PutText(context.Background(), store, "rss.xml", "<rss/>", storage.ContentTypeRSS))
	rec = do(t, s, http.MethodGet, "/feed.xml", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, storage.ContentTypeRSS, rec.Header().Get("Content-Type"))
	assert.Equal(t, "<rss/>", rec.Body.String())
}

func TestOPMLImportExport(t *testing.T) {
	s, store := newTestServer(t, &fakeRunner{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("opml", "subs.opml")
	require.NoError(t, err)
	_, _ = io.WriteString(fw, `<opml version="2.0"><body>
		<outline text="A" xmlUrl="https://a.example/rss"/>
		<outline text="B" xmlUrl="https://b.example/rss"/>
	</body></opml>`)
	require.NoError(t, mw.Close())

	rec := do(t, s, http.MethodPost, "/api/import-opml", &buf, mw.FormDataContentType())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, float64(2), body["imported"])

	text, ok, err := storage.GetText(context.Background(), store, "feeds.txt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "https://a.example/rss\nhttps://b.example/rss\n", text)

	rec = do(t, s, http.MethodGet, "/api/export-opml", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `xmlUrl="https://b.example/rss"`)
}

func TestImportOPMLWithoutFile(t *testing.T) {
	s, _ := newTestServer(t, &fakeRunner{})
	rec := do(t, s, http.MethodPost, "/api/import-opml", strings.NewReader(""), "text/plain")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthStatusMetrics(t *testing.T) {
	s, _ := newTestServer(t, &fakeRunner{})

	rec := do(t, s, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/status", nil, "")
	body := decode(t, rec)
	assert.Equal(t, "idle", body["state"])
	assert.Equal(t, "memory", body["backend"])

	rec = do(t, s, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "feedrewrite_runs_total")
}
