// Package server provides the HTTP trigger and inspection endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bryan-buckman/feedrewrite/internal/items"
	"github.com/bryan-buckman/feedrewrite/internal/lock"
	"github.com/bryan-buckman/feedrewrite/internal/logger"
	"github.com/bryan-buckman/feedrewrite/internal/model"
	"github.com/bryan-buckman/feedrewrite/internal/pipeline"
	"github.com/bryan-buckman/feedrewrite/internal/rotation"
	"github.com/bryan-buckman/feedrewrite/internal/sources"
	"github.com/bryan-buckman/feedrewrite/internal/storage"
)

// DefaultRunTimeout bounds a run triggered over HTTP.
const DefaultRunTimeout = 10 * time.Minute

// maxUploadBytes caps OPML uploads.
const maxUploadBytes = 5 << 20

// Runner is the pipeline as seen by the HTTP layer.
type Runner interface {
	Run(ctx context.Context) (model.RunSummary, error)
	State() pipeline.State
}

// Options configures a Server.
type Options struct {
	Store      storage.Store
	Runner     Runner
	Keys       pipeline.Keys
	Scheduler  *pipeline.Scheduler
	Gatherer   prometheus.Gatherer
	Logger     logger.Logger
	RunTimeout time.Duration
	OPMLTitle  string
}

// Server is the main HTTP server.
type Server struct {
	opts   Options
	router chi.Router
	http   *http.Server
}

// New creates a new server.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = DefaultRunTimeout
	}
	if opts.OPMLTitle == "" {
		opts.OPMLTitle = "Feedrewrite Sources"
	}
	s := &Server{opts: opts}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	r.Get("/feed.xml", s.handleFeedXML)

	r.Route("/api", func(r chi.Router) {
		r.Post("/rewrite/run", s.handleRun)
		r.Get("/status", s.handleStatus)
		r.Get("/cursor", s.handleCursor)
		r.Get("/items", s.handleItems)
		r.Post("/import-opml", s.handleImportOPML)
		r.Get("/export-opml", s.handleExportOPML)
	})

	s.router = r
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the scheduler, if any, and serves until Shutdown.
func (s *Server) Start(addr string) error {
	if s.opts.Scheduler != nil {
		s.opts.Scheduler.Start()
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.opts.Logger.Info("Server starting", logger.String("addr", addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the scheduler and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.opts.Scheduler != nil {
		s.opts.Scheduler.Stop()
	}
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// --- API Handlers ---

type runResponse struct {
	OK        bool         `json:"ok"`
	Count     int          `json:"count"`
	Selected  int          `json:"selected"`
	Succeeded int          `json:"succeeded"`
	Skipped   int          `json:"skipped"`
	Cursor    model.Cursor `json:"cursor"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.RunTimeout)
	defer cancel()

	summary, err := s.opts.Runner.Run(ctx)
	switch {
	case errors.Is(err, lock.ErrLocked):
		writeError(w, http.StatusConflict, err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, runResponse{
		OK:        true,
		Count:     summary.Succeeded,
		Selected:  summary.Selected,
		Succeeded: summary.Succeeded,
		Skipped:   summary.Skipped,
		Cursor:    summary.Cursor,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"state":   s.opts.Runner.State().String(),
		"backend": s.opts.Store.Backend(),
	})
}

func (s *Server) handleCursor(w http.ResponseWriter, r *http.Request) {
	c, err := rotation.LoadCursor(r.Context(), s.opts.Store, s.opts.Keys.Cursor)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	list, err := items.Load(r.Context(), s.opts.Store, s.opts.Keys.Items)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, items.Recent(list, limit))
}

func (s *Server) handleFeedXML(w http.ResponseWriter, r *http.Request) {
	text, ok, err := storage.GetText(r.Context(), s.opts.Store, s.opts.Keys.FeedXML)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", storage.ContentTypeRSS)
	_, _ = w.Write([]byte(text))
}

func (s *Server) handleImportOPML(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, _, err := r.FormFile("opml")
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("no file provided"))
		return
	}
	defer file.Close()

	added, total, err := sources.ImportOPML(r.Context(), s.opts.Store, s.opts.Keys.Feeds, file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("import opml: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"imported": added,
		"total":    total,
	})
}

func (s *Server) handleExportOPML(w http.ResponseWriter, r *http.Request) {
	data, err := sources.ExportOPML(r.Context(), s.opts.Store, s.opts.Keys.Feeds, s.opts.OPMLTitle)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Disposition", "attachment; filename=feedrewrite-feeds.opml")
	_, _ = w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"ok": false, "error": err.Error()})
}
