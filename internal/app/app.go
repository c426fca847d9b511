package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/neurobridge-adaptive/internal/data/db"
	"github.com/yungbote/neurobridge-adaptive/internal/observability"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/envutil"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Repos    Repos
	Clients  Clients
	Services Services
	Metrics  *observability.Metrics

	store         *db.Service
	traceShutdown func(context.Context) error
	cancel        context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)
	return NewWithConfig(ctx, log, cfg)
}

// NewWithConfig wires the app from an explicit config.
func NewWithConfig(ctx context.Context, log *logger.Logger, cfg Config) (*App, error) {
	traceShutdown := observability.InitTracing(ctx, log, cfg.Tracing)
	metrics := observability.Init(log, cfg.MetricsEnabled)

	store, err := db.New(log, cfg.Store)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init store: %w", err)
	}
	theDB := store.DB()

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = store.Close()
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(theDB, log)

	serviceset, err := wireServices(theDB, log, cfg, reposet, clients, metrics)
	if err != nil {
		clients.Close(ctx, log)
		_ = store.Close()
		log.Sync()
		return nil, err
	}

	return &App{
		Log:           log,
		DB:            theDB,
		Cfg:           cfg,
		Repos:         reposet,
		Clients:       clients,
		Services:      serviceset,
		Metrics:       metrics,
		store:         store,
		traceShutdown: traceShutdown,
	}, nil
}

// Start loads the knowledge base and starts the background refresher and the
// metrics endpoint.
func (a *App) Start(ctx context.Context) error {
	if a == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.cancel != nil {
		return nil
	}
	if _, err := a.Services.KnowledgeBase.Refresh(ctx); err != nil {
		return fmt.Errorf("initial knowledge base load: %w", err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	go a.Services.KnowledgeBase.Run(runCtx)
	if a.Metrics != nil {
		a.Metrics.StartServer(runCtx, a.Log, a.Cfg.MetricsAddr)
	}
	return nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	ctx := context.Background()
	a.Clients.Close(ctx, a.Log)
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.Log.Warn("store close failed", "error", err)
		}
	}
	if a.traceShutdown != nil {
		if err := a.traceShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
