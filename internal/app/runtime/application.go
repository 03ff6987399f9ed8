// Package runtime wires configuration, storage, services and the HTTP server
// into a runnable process.
package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	app "github.com/openquill/platform/internal/app"
	"github.com/openquill/platform/internal/app/httpapi"
	"github.com/openquill/platform/internal/app/metrics"
	articlesvc "github.com/openquill/platform/internal/app/services/articles"
	"github.com/openquill/platform/internal/app/storage/postgres"
	"github.com/openquill/platform/internal/config"
	"github.com/openquill/platform/internal/middleware"
	"github.com/openquill/platform/internal/platform/cache"
	"github.com/openquill/platform/internal/platform/database"
	"github.com/openquill/platform/internal/platform/migrations"
	"github.com/openquill/platform/pkg/logger"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg    *config.Config
	log    *logger.Logger
	app    *app.Application
	server *http.Server
	db     *sql.DB
	cache  *cache.ArticleCache
}

// NewApplication constructs a fully wired application from the environment.
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.Logging)

	stores, db, err := buildStores(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("configure stores: %w", err)
	}

	var articleCache *cache.ArticleCache
	if cfg.Redis.Addr != "" {
		articleCache, err = cache.NewArticleCache(ctx, cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      time.Duration(cfg.Redis.TTL) * time.Second,
		}, log)
		if err != nil {
			log.WithError(err).Warn("redis unavailable; article cache disabled")
			articleCache = nil
		}
	}

	opts := app.Options{
		JWTSecret:          cfg.Auth.JWTSecret,
		TokenTTL:           time.Duration(cfg.Auth.TokenTTL) * time.Second,
		ReconcilerSchedule: cfg.Reconciler.Schedule,
		ReconcilerEnabled:  cfg.Reconciler.Enabled,
	}
	if articleCache != nil {
		opts.ArticleCache = articlesvc.Cache(articleCache)
	}

	application, err := app.New(stores, opts, log)
	if err != nil {
		return nil, fmt.Errorf("assemble application: %w", err)
	}

	handler := buildHandler(cfg, application, log)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return &Application{
		cfg:    cfg,
		log:    log,
		app:    application,
		server: server,
		db:     db,
		cache:  articleCache,
	}, nil
}

// Run starts the background services and the HTTP server, blocking until the
// context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", a.server.Addr).Info("http server listening")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the HTTP server, the background services and the resources
// they hold.
func (a *Application) Shutdown(ctx context.Context) error {
	timeout := time.Duration(a.cfg.Server.ShutdownTimeout) * time.Second
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("error stopping services")
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis connection")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}
	return nil
}

// buildStores selects Postgres when a DSN is configured and falls back to the
// in-memory store otherwise. The schema is applied on every start.
func buildStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (app.Stores, *sql.DB, error) {
	if cfg.Database.DSN == "" {
		log.Warn("DATABASE_URL not set; using in-memory storage")
		return app.Stores{}, nil, nil
	}

	db, err := database.Open(ctx, database.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return app.Stores{}, nil, err
	}

	if err := migrations.Apply(ctx, db); err != nil {
		db.Close()
		return app.Stores{}, nil, fmt.Errorf("apply migrations: %w", err)
	}

	store := postgres.New(db)
	return app.Stores{
		Users:      store,
		Articles:   store,
		Comments:   store,
		Engagement: store,
		Tags:       store,
		Donations:  store,
		Sessions:   store,
		Reconciler: store,
	}, db, nil
}

// buildHandler assembles the middleware chain around the REST API and mounts
// the Prometheus endpoint.
func buildHandler(cfg *config.Config, application *app.Application, log *logger.Logger) http.Handler {
	var apiOpts []httpapi.Option
	if cfg.Server.AuditLogPath != "" {
		apiOpts = append(apiOpts, httpapi.WithAuditFile(cfg.Server.AuditLogPath))
	}
	api := httpapi.NewHandler(application, log, apiOpts...)

	limiter := middleware.NewRateLimiter(cfg.Server.RatePerSecond, cfg.Server.RateBurst, log)
	limiter.StartCleanup(10 * time.Minute)
	cors := middleware.NewCORSMiddleware(splitOrigins(cfg.Server.AllowedOrigins))
	tracing := middleware.NewTracingMiddleware(log)

	var handler http.Handler = api
	handler = limiter.Handler(handler)
	handler = cors.Handler(handler)
	handler = metrics.InstrumentHandler(handler)
	handler = tracing.Handler(handler)

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", handler)
	return mux
}

func splitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
