package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/AICC2024/video-review/internal/data/db"
	httpx "github.com/AICC2024/video-review/internal/http"
	"github.com/AICC2024/video-review/internal/observability"
	"github.com/AICC2024/video-review/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Clients  Clients
	Repos    Repos
	Services Services
	Server   *httpx.Server

	pg           *db.PostgresService
	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	cfg := LoadConfig()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})
	if observability.Enabled() {
		observability.Init(log)
	}

	a := &App{Log: log, Cfg: cfg, otelShutdown: otelShutdown}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	log, cfg := a.Log, a.Cfg

	pg, err := db.NewPostgresService(log)
	if err != nil {
		return fmt.Errorf("init postgres: %w", err)
	}
	a.pg = pg
	a.DB = pg.DB()
	if cfg.AutoMigrate {
		log.Info("Running auto migrations...")
		if err := db.AutoMigrateAll(a.DB); err != nil {
			return fmt.Errorf("postgres automigrate: %w", err)
		}
	}

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		return err
	}
	a.Clients = clients

	a.Repos = wireRepos(a.DB, log)

	services, err := wireServices(log, cfg, a.Repos, a.Clients)
	if err != nil {
		return err
	}
	a.Services = services

	if cfg.RunServer {
		mw, err := wireMiddleware(log, cfg)
		if err != nil {
			return err
		}
		sqlDB, err := a.DB.DB()
		if err != nil {
			return fmt.Errorf("postgres handle: %w", err)
		}
		handlers := wireHandlers(log, sqlDB, a.Repos, a.Services, a.Clients)
		a.Server = wireServer(log, cfg, handlers, mw)
	}
	return nil
}

// Run blocks until ctx is cancelled or a component fails, then drains
// in-flight review jobs.
func (a *App) Run(ctx context.Context) error {
	if a == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Server == nil && a.Services.TemporalWorker == nil {
		return fmt.Errorf("nothing to run: RUN_SERVER and RUN_WORKER are both disabled")
	}

	if m := observability.Current(); m != nil {
		m.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
	}

	g, gctx := errgroup.WithContext(ctx)
	if a.Server != nil {
		addr := net.JoinHostPort("", a.Cfg.Port)
		g.Go(func() error {
			return a.Server.Run(gctx, addr, a.Cfg.ShutdownTimeout)
		})
	}
	if w := a.Services.TemporalWorker; w != nil {
		g.Go(func() error {
			if err := w.Start(gctx); err != nil {
				return fmt.Errorf("temporal worker: %w", err)
			}
			<-gctx.Done()
			return nil
		})
	}
	runErr := g.Wait()

	a.Log.Info("Draining review jobs...")
	drainCtx, cancel := context.WithTimeout(context.Background(), a.Cfg.ShutdownTimeout)
	defer cancel()
	if err := a.Services.Dispatcher.Wait(drainCtx); err != nil {
		a.Log.Warn("review jobs still running at shutdown", "error", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.pg != nil {
		_ = a.pg.Close()
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.otelShutdown(ctx)
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
