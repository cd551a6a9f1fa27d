package rewrite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bryan-buckman/feedrewrite/internal/logger"
	"github.com/bryan-buckman/feedrewrite/internal/metrics"
)

// ErrAllProvidersFailed is returned when no provider in the chain produced content.
var ErrAllProvidersFailed = errors.New("all providers failed")

// DefaultAttemptTimeout bounds a single provider call.
const DefaultAttemptTimeout = 45 * time.Second

// Chain tries providers in order until one succeeds.
type Chain struct {
	providers []Provider
	timeout   time.Duration
	log       logger.Logger
	metrics   *metrics.Metrics
}

// NewChain creates a fallback chain. A non-positive timeout uses DefaultAttemptTimeout.
func NewChain(providers []Provider, timeout time.Duration, log logger.Logger, m *metrics.Metrics) *Chain {
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Chain{providers: providers, timeout: timeout, log: log, metrics: m}
}

// Available returns the number of providers holding a credential.
func (c *Chain) Available() int {
	n := 0
	for _, p := range c.providers {
		if p.Available() {
			n++
		}
	}
	return n
}

// Complete returns the first successful provider's content. Providers are
// called strictly one at a time; providers without a credential are skipped.
func (c *Chain) Complete(ctx context.Context, req Request) (Attempt, error) {
	tried := 0
	for _, p := range c.providers {
		if !p.Available() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return Attempt{}, err
		}
		tried++

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		start := time.Now()
		a := p.Complete(attemptCtx, req)
		cancel()

		if a.OK() {
			c.metrics.ProviderAttempt(p.ID(), "ok")
			c.log.Debug("provider succeeded",
				logger.String("provider", p.ID()),
				logger.Duration("duration", time.Since(start)))
			a.Provider = p.ID()
			return a, nil
		}

		err := a.Err
		if err == nil {
			err = ErrEmptyContent
		}
		c.metrics.ProviderAttempt(p.ID(), "error")
		c.log.Warn("provider failed, trying next",
			logger.String("provider", p.ID()),
			logger.Duration("duration", time.Since(start)),
			logger.Error(err))
	}
	return Attempt{}, fmt.Errorf("%w: %d of %d providers tried", ErrAllProvidersFailed, tried, len(c.providers))
}
