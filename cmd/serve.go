package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/bryan-buckman/feedrewrite/internal/logger"
	"github.com/bryan-buckman/feedrewrite/internal/pipeline"
	"github.com/bryan-buckman/feedrewrite/internal/server"
)

const defaultShutdownTimeout = 30 * time.Second

func serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP trigger and run the optional schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, map[string]string{"server.addr": "addr"})
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, prometheus.DefaultRegisterer)
			if err != nil {
				return err
			}
			defer a.Close()

			var sched *pipeline.Scheduler
			if cfg.Pipeline.Schedule != "" {
				sched, err = pipeline.NewScheduler(cfg.Pipeline.Schedule, a.orchestrator, cfg.Server.RunTimeout, a.log)
				if err != nil {
					return err
				}
				a.log.Info("Scheduler enabled", logger.String("schedule", cfg.Pipeline.Schedule))
			}

			srv := server.New(server.Options{
				Store:      a.store,
				Runner:     a.orchestrator,
				Keys:       cfg.Keys,
				Scheduler:  sched,
				Gatherer:   prometheus.DefaultGatherer,
				Logger:     a.log,
				RunTimeout: cfg.Server.RunTimeout,
			})

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start(cfg.Server.Addr)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			a.log.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("shutdown: %w", err)
			}
			return <-errCh
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	return cmd
}
