package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/playperu/triviabattle/internal/config"
	"github.com/playperu/triviabattle/internal/database"
	"github.com/playperu/triviabattle/internal/events"
	"github.com/playperu/triviabattle/internal/handler/health"
	"github.com/playperu/triviabattle/internal/handler/roomws"
	"github.com/playperu/triviabattle/internal/lobby"
	"github.com/playperu/triviabattle/internal/migrations"
	"github.com/playperu/triviabattle/internal/presence"
	"github.com/playperu/triviabattle/internal/questions"
	"github.com/playperu/triviabattle/internal/rounds"
	"github.com/playperu/triviabattle/internal/server"
	"github.com/playperu/triviabattle/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- Database ---
	db, err := database.Open(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", cfg.DBDriver, err)
	}
	defer db.Close()

	if err := migrations.Run(db, cfg.DBDriver); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	st, err := store.New(db, cfg.DBDriver)
	if err != nil {
		return fmt.Errorf("preparing store: %w", err)
	}
	logger.Info("connected to database", "driver", cfg.DBDriver)

	// --- Events and presence ---
	broker := events.NewBroker(logger)
	var (
		publisher events.Publisher = broker
		tracker   presence.Tracker = presence.NewMemoryTracker(cfg.PresenceTTL)
		relay     *events.Relay
		redisPing health.Checker
	)
	if cfg.RedisURL != "" {
		rdb, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		logger.Info("connected to redis")

		publisher = events.NewRedisPublisher(rdb, broker, logger)
		tracker = presence.NewRedisTracker(rdb, cfg.PresenceTTL)
		relay = events.NewRelay(rdb, broker, logger)
		redisPing = health.CheckFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	} else {
		logger.Info("redis not configured, events and presence stay in process")
	}

	// --- Questions ---
	var ai questions.Source
	if cfg.AIActive() {
		ai = questions.NewAIProvider(questions.AIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.AITimeout,
		})
		logger.Info("ai question generation enabled", "model", cfg.OpenAIModel)
	} else {
		logger.Warn("ai question generation disabled, multiple-choice rooms cannot start")
	}
	source := questions.NewSelector(logger, ai, questions.NewBankProvider(st))

	// --- Battle ---
	registry := lobby.NewRegistry(st, publisher, tracker, logger)
	engine := rounds.NewEngine(st, source, publisher, logger, cfg.AnswerGrace)
	api := server.NewAPI(st, registry, engine, broker, logger, server.Options{
		Dev:           cfg.Dev(),
		CookieSecure:  cfg.CookieSecure,
		PublicBaseURL: cfg.PublicBaseURL,
	})

	if cfg.AdminEmail != "" {
		if err := server.SeedAdmin(ctx, logger, st, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return fmt.Errorf("seeding admin: %w", err)
		}
	}

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, func(r chi.Router) {
		r.Mount("/healthz", health.NewHandler(logger, map[string]health.Checker{
			"database": health.CheckFunc(st.Ping),
			"redis":    redisPing,
		}).Routes())
		r.Mount("/ws", roomws.NewHandler(logger, registry, broker).Routes())
		r.Mount("/api", api.Routes())
		server.MountSPA(r, logger, cfg.SPADir)
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr, "env", cfg.AppEnv)
		return srv.Run(gctx)
	})

	if relay != nil {
		g.Go(func() error {
			return relay.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}
