package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppinggu9/trpg-server-sub001/internal/auth"
	"github.com/ppinggu9/trpg-server-sub001/internal/config"
	"github.com/ppinggu9/trpg-server-sub001/internal/core"
	"github.com/ppinggu9/trpg-server-sub001/internal/service/access"
	"github.com/ppinggu9/trpg-server-sub001/internal/service/maps"
	"github.com/ppinggu9/trpg-server-sub001/internal/service/tokens"
	"github.com/ppinggu9/trpg-server-sub001/internal/store"
	"github.com/ppinggu9/trpg-server-sub001/internal/store/sqlite"
	transporthttp "github.com/ppinggu9/trpg-server-sub001/internal/transport/http"
)

// App wires together gateway, services and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
	authService := auth.NewService(st, jwtConfig)

	bus := core.NewBus()
	accessService := access.NewService(st)
	mapService := maps.NewService(st, bus, logger)
	tokenService := tokens.NewService(st, bus, logger)

	gateway := core.NewGateway(accessService, mapService, tokenService, bus, logger)
	server := transporthttp.NewServer(gateway, authService, mapService, tokenService, st, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
