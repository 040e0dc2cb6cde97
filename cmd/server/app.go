package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/phrazzld/render-api/internal/config"
	"github.com/phrazzld/render-api/internal/generation"
	"github.com/phrazzld/render-api/internal/platform/gemini"
	"github.com/phrazzld/render-api/internal/platform/postgres"
	"github.com/phrazzld/render-api/internal/ratelimit"
	"github.com/phrazzld/render-api/internal/service"
	"github.com/phrazzld/render-api/internal/store"
	"github.com/phrazzld/render-api/internal/task"
	"github.com/phrazzld/render-api/internal/webhook"
)

// dependencyTimeout bounds the startup probes of optional backing services.
const dependencyTimeout = 5 * time.Second

// application holds the wired components and the handles needed for
// shutdown.
type application struct {
	config    *config.Config
	logger    *slog.Logger
	db        *sql.DB       // nil when the in-memory store is active
	redis     *redis.Client // nil when distributed limiting is off
	taskStore store.TaskStore
	queue     *task.Queue
	service   service.GenerationService
}

// newApplication wires the task store, rate limiter, worker queue, webhook
// dispatcher, and generation provider into a runnable application.
//
// Postgres and Redis are optional: when unconfigured or unreachable the
// server starts anyway with the in-memory store and the process-local
// limiter, and logs what it fell back to.
func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	log := slog.Default()
	app := &application{config: cfg, logger: log}

	app.setupTaskStore(ctx)
	limiter := app.setupLimiter(ctx)

	dispatcher := webhook.NewDispatcher(cfg.Webhook, log)

	app.queue = task.NewQueue(app.taskStore, dispatcher, cfg.Queue, log)
	app.queue.Start()

	generator, err := gemini.NewGenerator(log, cfg.Provider)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to build generator: %w", err)
	}

	svc, err := service.NewGenerationService(
		limiter,
		generator,
		generation.NewFormatter(),
		app.taskStore,
		app.queue,
		log,
	)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to build generation service: %w", err)
	}
	app.service = svc

	return app, nil
}

// setupTaskStore selects the durable store when a database is configured and
// reachable, and the in-memory store otherwise.
func (app *application) setupTaskStore(ctx context.Context) {
	app.taskStore = store.NewMemoryTaskStore()

	if app.config.Database.URL == "" {
		app.logger.Info("no database configured, using in-memory task store")
		return
	}

	db, err := sql.Open("pgx", app.config.Database.URL)
	if err != nil {
		app.logger.Warn("failed to open database, falling back to in-memory task store",
			"error", err)
		return
	}

	if err := postgres.Ping(ctx, db, dependencyTimeout); err != nil {
		app.logger.Warn("database unreachable, falling back to in-memory task store",
			"error", err)
		_ = db.Close()
		return
	}

	if err := postgres.Migrate(db); err != nil {
		app.logger.Warn("database migration failed, falling back to in-memory task store",
			"error", err)
		_ = db.Close()
		return
	}

	app.db = db
	app.taskStore = postgres.NewPostgresTaskStore(db, app.logger)
	app.logger.Info("using postgres task store")
}

// setupLimiter builds the session rate limiter, attaching the Redis-backed
// admitter when distributed mode is configured and the server is reachable.
func (app *application) setupLimiter(ctx context.Context) *ratelimit.SessionLimiter {
	var admitter *ratelimit.RedisAdmitter

	if app.config.RateLimit.Distributed && app.config.Redis.URL != "" {
		opts, err := redis.ParseURL(app.config.Redis.URL)
		if err != nil {
			app.logger.Warn("invalid redis URL, using process-local rate limiting",
				"error", err)
		} else {
			client := redis.NewClient(opts)
			pingCtx, cancel := context.WithTimeout(ctx, dependencyTimeout)
			err = client.Ping(pingCtx).Err()
			cancel()
			if err != nil {
				app.logger.Warn("redis unreachable, using process-local rate limiting",
					"error", err)
				_ = client.Close()
			} else {
				app.redis = client
				admitter = ratelimit.NewRedisAdmitter(client, app.config.RateLimit, app.logger)
				app.logger.Info("distributed rate limiting enabled")
			}
		}
	}

	return ratelimit.NewSessionLimiter(app.config.RateLimit, admitter, app.logger)
}

// cleanup releases the application's long-lived resources in reverse
// construction order.
func (app *application) cleanup() {
	if app.queue != nil {
		app.queue.Stop()
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Warn("failed to close redis client", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Warn("failed to close database", "error", err)
		}
	}
}
