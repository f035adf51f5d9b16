package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/arquery/arquery/internal/config"
	"github.com/rs/zerolog/log"
)

type Server struct {
	cfg  *config.Config
	http *http.Server
	deps *Deps
}

func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	deps, err := Build(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build dependencies: %w", err)
	}

	s := &Server{cfg: cfg, deps: deps}
	s.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           NewRouter(cfg, deps),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Leave room for the request deadline plus the response write.
		WriteTimeout: cfg.RequestTimeout.D() + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

func (s *Server) Run(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go s.deps.RateLimiter.Run(stop)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.http.Addr).Msg("listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("graceful shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := s.http.Shutdown(shutdownCtx)

		if closeErr := s.deps.Close(shutdownCtx); closeErr != nil {
			log.Warn().Err(closeErr).Msg("error closing clients")
		} else {
			log.Info().Msg("clients closed")
		}

		return err
	case err := <-errCh:
		if closeErr := s.deps.Close(context.Background()); closeErr != nil {
			log.Warn().Err(closeErr).Msg("error closing clients")
		}
		return err
	}
}
