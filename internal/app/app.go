package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	"cvewatch/internal/classify"
	"cvewatch/internal/config"
	"cvewatch/internal/httpapi"
	"cvewatch/internal/infrastructure/mailer"
	"cvewatch/internal/infrastructure/scheduler"
	"cvewatch/internal/infrastructure/sources"
	"cvewatch/internal/infrastructure/storage"
	"cvewatch/internal/logging"
	"cvewatch/internal/ports"
	"cvewatch/internal/scraper"
	"cvewatch/internal/usecase"
)

// stores groups the six collection ports behind one value so either
// backend can satisfy all of them.
type stores interface {
	ports.RecordStore
	ports.SummaryStore
	ports.StatusStore
	ports.TimelineStore
	ports.SubscriberStore
	ports.DeliveryLogStore
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pipeline  *usecase.Pipeline
	scheduler *scheduler.DailyScheduler
	server    *http.Server
	closeDB   func() error
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	app := &Application{cfg: cfg, logger: baseLogger}

	store, err := app.openStore(cfg)
	if err != nil {
		return nil, err
	}

	registry := scraper.NewRegistry()
	if err := registerSources(registry, cfg.Sources); err != nil {
		return nil, err
	}

	orchestrator := usecase.NewOrchestrator(registry, cfg.Fetch.Timeout,
		baseLogger.With("component", "orchestrator"))
	timeline := usecase.NewTimelineBuilder(store, store,
		baseLogger.With("component", "timeline"))

	mail := mailer.NewSMTPMailer(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.Username,
		cfg.Mail.Password, cfg.Mail.From)
	notifier := usecase.NewNotifier(mail, store, store,
		baseLogger.With("component", "notifier"))

	app.scheduler = scheduler.NewDailyScheduler(cfg.Scheduler.Hour, cfg.Scheduler.Minute,
		cfg.Scheduler.Location())

	app.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Orchestrator: orchestrator,
		Records:      store,
		Summaries:    store,
		Status:       store,
		Timeline:     timeline,
		Notifier:     notifier,
		NextRun:      app.scheduler.NextAfter,
		Logger:       baseLogger.With("component", "pipeline"),
	})

	api := httpapi.NewServer(httpapi.Deps{
		Pipeline:    app.pipeline,
		Timeline:    timeline,
		Subscribers: usecase.NewSubscriberService(store),
		Notifier:    notifier,
		Records:     store,
		Summaries:   store,
		Status:      store,
		Logger:      baseLogger.With("component", "api"),
	})
	app.server = &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: api.Routes(),
	}

	return app, nil
}

func (a *Application) openStore(cfg config.Config) (stores, error) {
	if cfg.Database.DSN == "" {
		a.logger.Info("no database DSN configured, using in-memory store")
		return storage.NewMemoryStore(), nil
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.closeDB = db.Close

	store := storage.NewPostgresStore(db)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func registerSources(registry *scraper.Registry, configs []config.SourceConfig) error {
	for _, sc := range configs {
		cfg := sources.Config{
			Endpoint: sc.Endpoint,
			Limit:    sc.Limit,
			Keywords: classify.KeywordRule{High: sc.Keywords.High, Medium: sc.Keywords.Medium},
		}

		switch sc.Adapter {
		case "cvedetails":
			registry.Register(sources.NewCVEDetails(nil, cfg))
		case "hackernews":
			registry.Register(sources.NewHackerNews(nil, cfg))
		case "bleepingcomputer":
			registry.Register(sources.NewBleepingComputer(nil, cfg))
		case "securityweek":
			registry.Register(sources.NewSecurityWeek(nil, cfg))
		case "nvd":
			registry.Register(sources.NewNVD(nil, cfg))
		default:
			return fmt.Errorf("source %s: unknown adapter %q", sc.Name, sc.Adapter)
		}
	}
	return nil
}

// Run starts the scheduler and the API server, then blocks until the
// context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	job := func(trigger time.Time) {
		if err := a.pipeline.Run(ctx, trigger); err != nil {
			a.logger.Error("scheduled run failed", "error", err)
		}
	}
	if err := a.scheduler.Start(ctx, job); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	a.logger.Info("scheduler started",
		"hour", a.cfg.Scheduler.Hour, "minute", a.cfg.Scheduler.Minute)

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info("api listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	return a.shutdown()
}

func (a *Application) shutdown() error {
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_ = a.scheduler.Stop(shutdownCtx)
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown api server: %w", err)
	}
	if a.closeDB != nil {
		if err := a.closeDB(); err != nil {
			return fmt.Errorf("close database: %w", err)
		}
	}
	return nil
}
