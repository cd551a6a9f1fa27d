package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bryan-buckman/feedrewrite/internal/lock"
	"github.com/bryan-buckman/feedrewrite/internal/logger"
	"github.com/bryan-buckman/feedrewrite/internal/model"
)

// DefaultRunTimeout bounds a scheduled run.
const DefaultRunTimeout = 10 * time.Minute

// Runner runs the pipeline once.
type Runner interface {
	Run(ctx context.Context) (model.RunSummary, error)
}

// Scheduler triggers runs on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	timeout time.Duration
	log     logger.Logger
}

// NewScheduler parses a standard 5-field cron expression (descriptors such
// as "@every 30m" are accepted too).
func NewScheduler(spec string, runner Runner, timeout time.Duration, log logger.Logger) (*Scheduler, error) {
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	s := &Scheduler{
		cron:    cron.New(cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		runner:  runner,
		timeout: timeout,
		log:     log,
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	summary, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, lock.ErrLocked):
		s.log.Info("Scheduler: run skipped, another run in progress")
	case err != nil:
		s.log.Warn("Scheduler: run failed", logger.Error(err))
	default:
		s.log.Info("Scheduler: run finished",
			logger.Int("succeeded", summary.Succeeded),
			logger.Int("skipped", summary.Skipped),
		)
	}
}

// Start begins the schedule.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
