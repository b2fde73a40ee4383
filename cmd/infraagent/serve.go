package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/szaher/infraagent/internal/auth"
	"github.com/szaher/infraagent/internal/runtime"
	"github.com/szaher/infraagent/internal/telemetry"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP chat API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, telemetry.FormatJSON)
			if err != nil {
				return err
			}
			if listen == "" {
				listen = a.cfg.Server.Listen
			}

			srv := runtime.NewServer(a.agent,
				runtime.WithLogger(a.logger),
				runtime.WithAPIKey(a.cfg.Server.APIKey),
				runtime.WithMetricsHandler(a.metrics.Handler()),
				runtime.WithRequestTimeout(a.cfg.Server.RequestTimeout),
				runtime.WithRateLimiter(auth.NewRateLimiter(a.cfg.Server.RateLimit)),
			)
			if a.cfg.Server.APIKey == "" {
				a.logger.Warn("API key authentication disabled", "hint", "set INFRA_AGENT_API_KEY")
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.ListenAndServe(listen)
			})
			g.Go(func() error {
				<-gctx.Done()
				a.logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default from config, :8000)")
	return cmd
}
