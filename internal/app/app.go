// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fixwork/missedcall/internal/config"
	"github.com/fixwork/missedcall/internal/delivery"
	deliverypostgres "github.com/fixwork/missedcall/internal/delivery/postgres"
	"github.com/fixwork/missedcall/internal/domain"
	"github.com/fixwork/missedcall/internal/pkg/ctxlog"
	"github.com/fixwork/missedcall/internal/pkg/httputil"
	"github.com/fixwork/missedcall/internal/pkg/metrics"
	"github.com/fixwork/missedcall/internal/pkg/postgres"
	"github.com/fixwork/missedcall/internal/platform/sms"
	"github.com/fixwork/missedcall/internal/platform/telegram"
	"github.com/fixwork/missedcall/internal/platform/whatsapp"
	"github.com/fixwork/missedcall/internal/responder"
	"github.com/fixwork/missedcall/internal/rules"
	redisrules "github.com/fixwork/missedcall/internal/rules/redis"
	"github.com/fixwork/missedcall/internal/templates"
	"github.com/fixwork/missedcall/internal/version"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool // nil when running without durable state
	redis         *redis.Client // nil when using the in-memory store
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
	manager       *delivery.Manager
	worker        *delivery.Worker
	responder     *responder.Responder
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)
	slog.SetDefault(logger)

	app := &App{
		config: cfg,
		logger: logger,
	}

	if cfg.Database.URL != "" {
		connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
		defer connectCancel()

		db, err := postgres.Connect(connectCtx, postgres.Config{
			URL:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnectAttempts: cfg.Database.ConnectAttempts,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		app.db = db

		if err := postgres.Migrate(cfg.Database.URL); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	} else {
		slog.Warn("database url is empty: queue state will not survive restarts")
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())
	app.metricsCancel = metricsCancel

	if app.db != nil {
		go app.collectDBMetrics(metricsCtx)
	}

	router, err := app.setupRouter(metricsCtx)
	if err != nil {
		app.close()
		metricsCancel()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application. The delivery worker is
// stopped before the servers so in-flight sends finish first.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.metricsCancel()

	if a.worker != nil {
		a.worker.Stop()
	}

	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.close()

	return errors.Join(errs...)
}

func (a *App) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("failed to close redis client", "error", err)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}

func (a *App) collectDBMetrics(ctx context.Context) {
	// Collect immediately on start
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Manager returns the delivery manager instance. Used in tests to access
// queue state.
func (a *App) Manager() *delivery.Manager {
	return a.manager
}

func (a *App) setupRouter(ctx context.Context) (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	store := templates.NewStore()
	for _, t := range a.config.Templates {
		store.Put(t.ToDomain())
	}
	selector := templates.NewSelector(store)

	responses, err := a.setupLastResponseStore()
	if err != nil {
		return nil, err
	}

	evaluator := rules.NewEvaluator(responses, a.config.Responder.RateLimitWindow)

	adapters, err := a.setupAdapters()
	if err != nil {
		return nil, err
	}

	var repo delivery.Repository = delivery.NopRepository{}
	if a.db != nil {
		repo = deliverypostgres.NewRepository(a.db)
	}

	a.manager = delivery.NewManager(delivery.Config{
		BatchSize:      a.config.Queue.BatchSize,
		MaxRetries:     a.config.Queue.MaxRetries,
		MessageDelay:   a.config.Queue.MessageDelay,
		BaseBackoff:    a.config.Queue.BaseBackoff,
		MaxBackoff:     a.config.Queue.MaxBackoff,
		JitterFraction: a.config.Queue.JitterFraction,
		CompletedLimit: a.config.Queue.CompletedLimit,
		Retention:      a.config.Queue.Retention,
	}, repo, adapters...)

	if err := a.manager.Restore(ctx); err != nil {
		return nil, fmt.Errorf("restore queue state: %w", err)
	}

	a.worker = delivery.NewWorker(delivery.WorkerConfig{
		DispatchInterval: a.config.Queue.DispatchInterval,
		CleanupInterval:  a.config.Queue.CleanupInterval,
	}, a.manager)
	a.worker.Start(ctx)

	a.responder = responder.New(responder.Config{
		BusinessName:      a.config.Responder.BusinessName,
		CallbackWindow:    a.config.Responder.CallbackWindow,
		EmergencyPhone:    a.config.Responder.EmergencyPhone,
		DefaultPlatform:   domain.Platform(a.config.Responder.DefaultPlatform),
		EmergencyKeywords: a.config.Responder.EmergencyKeywords,
		BusinessHours:     a.config.Responder.BusinessHours.ToDomain(),
		InitialMode:       domain.AppMode(a.config.Responder.InitialMode),
	}, evaluator, selector, a.manager, responses)

	responderHandler := responder.NewHandler(a.responder)
	deliveryHandler := delivery.NewHandler(a.manager)

	r.Route("/api/v1", func(r chi.Router) {
		responderHandler.RegisterRoutes(r)
		deliveryHandler.RegisterRoutes(r)
	})

	return r, nil
}

func (a *App) setupLastResponseStore() (rules.LastResponseStore, error) {
	if a.config.Redis.Addr == "" {
		slog.Info("using in-memory last-response store")
		return rules.NewMemoryStore(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.config.Redis.Addr,
		Password: a.config.Redis.Password,
		DB:       a.config.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	a.redis = client
	slog.Info("using redis last-response store", "addr", a.config.Redis.Addr)

	// TTL slightly over the window so entries expire on their own
	return redisrules.NewStore(client, a.config.Responder.RateLimitWindow*2), nil
}

func (a *App) setupAdapters() ([]delivery.Adapter, error) {
	telegramSender, err := telegram.NewSender(telegram.Config{
		Enabled:  a.config.Platforms.Telegram.Enabled,
		BotToken: a.config.Platforms.Telegram.BotToken,
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram sender: %w", err)
	}
	if !a.config.Platforms.Telegram.Enabled {
		slog.Warn("telegram sender is disabled: telegram messages will stay queued until retries are exhausted")
	}

	whatsappSender, err := whatsapp.NewSender(whatsapp.Config{
		Enabled:     a.config.Platforms.WhatsApp.Enabled,
		GatewayURL:  a.config.Platforms.WhatsApp.GatewayURL,
		AccessToken: a.config.Platforms.WhatsApp.AccessToken,
	})
	if err != nil {
		return nil, fmt.Errorf("create whatsapp sender: %w", err)
	}
	if !a.config.Platforms.WhatsApp.Enabled {
		slog.Warn("whatsapp sender is disabled: whatsapp messages will stay queued until retries are exhausted")
	}

	smsSender, err := sms.NewSender(sms.Config{
		Enabled:    a.config.Platforms.SMS.Enabled,
		GatewayURL: a.config.Platforms.SMS.GatewayURL,
		APIKey:     a.config.Platforms.SMS.APIKey,
		From:       a.config.Platforms.SMS.From,
	})
	if err != nil {
		return nil, fmt.Errorf("create sms sender: %w", err)
	}
	if !a.config.Platforms.SMS.Enabled {
		slog.Warn("sms sender is disabled: sms messages will stay queued until retries are exhausted")
	}

	return []delivery.Adapter{telegramSender, whatsappSender, smsSender}, nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	if a.db == nil {
		httputil.Text(w, http.StatusOK, "OK")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
