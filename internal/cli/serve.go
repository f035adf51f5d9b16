package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/arquery/arquery/internal/observability"
	"github.com/arquery/arquery/internal/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
			Enabled:     cfg.OTelEnabled,
			ServiceName: "arquery",
			Environment: cfg.Environment,
			Version:     Version,
			Endpoint:    cfg.OTelEndpoint,
			Insecure:    cfg.OTelInsecure,
			Headers:     observability.ParseHeaders(cfg.OTelHeaders),
			SampleRatio: cfg.OTelSampleRatio,
		})
		if err != nil {
			return err
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(flushCtx); err != nil {
				log.Warn().Err(err).Msg("tracer shutdown")
			}
		}()

		srv, err := server.New(ctx, cfg)
		if err != nil {
			return err
		}
		log.Info().Str("version", Version).Str("environment", cfg.Environment).Msg("starting arquery")
		return srv.Run(ctx)
	},
}
