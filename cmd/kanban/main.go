package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/gosuda/kanban/internal/auth"
	"github.com/gosuda/kanban/internal/board"
	"github.com/gosuda/kanban/internal/config"
	"github.com/gosuda/kanban/internal/domain"
	"github.com/gosuda/kanban/internal/realtime"
	"github.com/gosuda/kanban/internal/server"
	"github.com/gosuda/kanban/internal/store/memory"
	"github.com/gosuda/kanban/internal/store/postgres"
	redisstore "github.com/gosuda/kanban/internal/store/redis"
	"github.com/gosuda/kanban/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func setupLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}

// setupTracing installs the configured tracer provider globally. The returned
// function flushes pending spans.
func setupTracing(cfg *config.Config) func() {
	tp := telemetry.NewTracerProvider(cfg.Tracing, log.Logger)
	if tp == nil {
		return func() {}
	}
	otel.SetTracerProvider(tp)
	log.Info().Float64("sample_ratio", cfg.Tracing.SampleRatio).Msg("tracing to log")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("tracer shutdown")
		}
	}
}

func run() error {
	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log)
	defer setupTracing(cfg)()

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var (
		store   domain.Store
		pingers []server.Pinger
	)

	switch cfg.Store {
	case config.StoreMemory:
		log.Warn().Msg("using in-memory store; data is lost on restart")
		store = memory.New()

	default:
		if cfg.Database.MaxConns > math.MaxInt32 {
			return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
		}

		pg, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
		if err != nil {
			return err
		}
		defer pg.Close()

		if cfg.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				return err
			}
			log.Info().Msg("schema applied")
		}
		store = pg
		pingers = append(pingers, pg)
	}

	hub := realtime.NewHub(cfg.Realtime.BufferSize)

	// Committed events reach local connections directly, or go through Redis
	// so that every instance relays them to its own connections.
	var (
		broadcaster board.Broadcaster = hub
		relay       *redisstore.Relay
	)
	if cfg.Realtime.Mode == config.RealtimeRedis {
		pubsub, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer pubsub.Close()

		broadcaster = redisstore.NewBroadcaster(pubsub)
		relay = redisstore.NewRelay(pubsub, hub)
		pingers = append(pingers, pubsub)
	}

	boards := board.NewService(store, broadcaster)
	authSvc := auth.NewService(store.Users(), cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL, cfg.AdminEmails...)

	srv := server.New(ctx, cfg, boards, authSvc, hub, pingers...)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().
			Str("addr", cfg.Server.Addr).
			Str("store", cfg.Store).
			Str("realtime", cfg.Realtime.Mode).
			Msg("starting server")
		return srv.Start(gctx)
	})

	if relay != nil {
		g.Go(func() error { return relay.Run(gctx) })
	}

	// Block until shutdown signal or a component fails.
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info().Msg("stopped")
	return nil
}
