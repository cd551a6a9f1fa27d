package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bryan-buckman/feedrewrite/internal/logger"
	"github.com/bryan-buckman/feedrewrite/internal/model"
)

// DefaultWebhookTimeout bounds a next-stage notification.
const DefaultWebhookTimeout = 10 * time.Second

// Webhook POSTs each run summary to a downstream stage in the background.
// Failures are logged and never reach the run.
type Webhook struct {
	url     string
	client  *http.Client
	timeout time.Duration
	log     logger.Logger
	wg      sync.WaitGroup
}

// NewWebhook creates a notifier for url.
func NewWebhook(url string, client *http.Client, timeout time.Duration, log logger.Logger) *Webhook {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultWebhookTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Webhook{url: url, client: client, timeout: timeout, log: log}
}

// Notify sends summary without waiting for the response.
func (w *Webhook) Notify(summary model.RunSummary) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.post(summary); err != nil {
			w.log.Warn("Next-stage notification failed", logger.String("url", w.url), logger.Error(err))
		}
	}()
}

// Wait blocks until in-flight notifications finish.
func (w *Webhook) Wait() {
	w.wg.Wait()
}

func (w *Webhook) post(summary model.RunSummary) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]any{
		"ok":      true,
		"count":   summary.Succeeded,
		"summary": summary,
	})
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
