package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"handyhub-backend/internal/application/alerts"
	"handyhub-backend/internal/config"
	"handyhub-backend/internal/interfaces/router"
	"handyhub-backend/internal/worker"

	"github.com/bsm/redislock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	app, deps, err := router.CreateApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("app create")
	}
	defer deps.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sqlDB, err := deps.DB.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("Postgres: get DB")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("Postgres connection failed")
	}
	log.Info().Msg("Postgres connected")
	if deps.Redis != nil {
		if err := deps.Redis.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("Redis connection failed")
		}
		log.Info().Msg("Redis connected")
	}

	var wg sync.WaitGroup
	if cfg.WorkersEnabled {
		for _, r := range workers(cfg, deps) {
			wg.Add(1)
			go func(r *worker.Runner) {
				defer wg.Done()
				r.Run(ctx)
			}(r)
		}
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("server shutdown")
		}
	}()

	log.Info().Str("port", cfg.Port).Msgf("Server running at http://localhost:%s (health: /health/json)", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Error().Err(err).Msg("server stopped")
	}
	stop()
	wg.Wait()
}

// workers builds the expiry sweep and alert dispatch loops. Both share the
// engines behind the admin endpoints and take a Redis lock per tick.
func workers(cfg *config.Config, deps *router.Deps) []*worker.Runner {
	var locker *redislock.Client
	if deps.Redis != nil {
		locker = redislock.New(deps.Redis)
	}
	sweep := &worker.Runner{
		Name:     "expiry_sweep",
		Interval: cfg.SweepInterval,
		Locker:   locker,
		LockTTL:  cfg.WorkerLockTTL,
		Redis:    deps.Redis,
		Task: func(ctx context.Context, now time.Time) error {
			_, err := deps.Sweeper.SweepExpired(ctx, now)
			return err
		},
	}
	dispatch := &worker.Runner{
		Name:     "alert_dispatch",
		Interval: cfg.AlertInterval,
		Locker:   locker,
		LockTTL:  cfg.WorkerLockTTL,
		Redis:    deps.Redis,
		Task: func(ctx context.Context, now time.Time) error {
			_, err := deps.Alerts.Dispatch(ctx, now, alerts.Filter{})
			return err
		},
	}
	return []*worker.Runner{sweep, dispatch}
}
