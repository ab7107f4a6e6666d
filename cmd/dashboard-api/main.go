package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/progress-dashboard/api/swagger"
	"github.com/noah-isme/progress-dashboard/internal/handler"
	internalmiddleware "github.com/noah-isme/progress-dashboard/internal/middleware"
	"github.com/noah-isme/progress-dashboard/internal/progress"
	"github.com/noah-isme/progress-dashboard/internal/repository"
	"github.com/noah-isme/progress-dashboard/internal/service"
	"github.com/noah-isme/progress-dashboard/pkg/cache"
	"github.com/noah-isme/progress-dashboard/pkg/config"
	"github.com/noah-isme/progress-dashboard/pkg/export"
	"github.com/noah-isme/progress-dashboard/pkg/logger"
	corsmiddleware "github.com/noah-isme/progress-dashboard/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/progress-dashboard/pkg/middleware/requestid"
)

// @title Course Progress Dashboard API
// @version 1.0.0
// @description Read-only statistics over student course progress events
// @BasePath /api/v1
// @schemes http

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg.Env, cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	metrics := service.NewMetricsService()
	registry := service.NewStoreRegistry()

	var cacheRepo service.CacheRepository
	if cfg.Dashboard.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, dashboard cache disabled", zap.Error(err))
		} else {
			repo := repository.NewCacheRepository(client, "progress", logr)
			defer repo.Close() //nolint:errcheck
			cacheRepo = repo
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled)

	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Stores:  registry,
		Cache:   cacheSvc,
		Metrics: metrics,
		Logger:  logr,
		Config: service.DashboardServiceConfig{
			Workers:       cfg.Dashboard.RecomputeWorkers,
			ItemLabelMode: progress.ParseItemLabelMode(cfg.Dashboard.ItemLabelMode),
		},
	})
	exportSvc := service.NewExportService(registry, export.NewCSVExporter(), logr)
	ingestSvc := service.NewIngestService(logr, metrics)
	warmupSvc := service.NewWarmupService(dashboardSvc, registry, logr, service.WarmupConfig{Workers: cfg.Warmup.Workers})

	loader := &storeLoader{
		cfg:       cfg,
		logger:    logr,
		ingest:    ingestSvc,
		registry:  registry,
		dashboard: dashboardSvc,
		warmup:    warmupSvc,
	}
	go loader.load(ctx)
	go loader.reloadOnHangup(ctx)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics, "/metrics"))

	metricsHandler := handler.NewMetricsHandler(metrics, registry)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	exportHandler := handler.NewExportHandler(exportSvc)

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.WithResponseMeta())
	api.GET("/courses", dashboardHandler.Courses)
	api.GET("/courses/:courseId/catalog", dashboardHandler.Catalog)
	api.GET("/courses/:courseId/students/:studentId/table.csv", exportHandler.StudentTable)
	api.GET("/dashboard", dashboardHandler.Dashboard)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down", zap.Duration("timeout", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// storeLoader loads progress events into the registry and refreshes derived state.
type storeLoader struct {
	cfg       *config.Config
	logger    *zap.Logger
	ingest    *service.IngestService
	registry  *service.StoreRegistry
	dashboard *service.DashboardService
	warmup    *service.WarmupService
}

func (l *storeLoader) load(ctx context.Context) {
	source, closeSource, err := repository.OpenEventSource(ctx, l.cfg)
	if err != nil {
		l.logger.Error("event source unavailable", zap.Error(err))
		return
	}
	defer closeSource() //nolint:errcheck

	store, report, err := l.ingest.Load(ctx, source, service.IngestPolicy(l.cfg.Events.IngestPolicy))
	if err != nil {
		l.logger.Error("event load failed", zap.Error(err), zap.Int("dropped", report.Dropped))
		return
	}

	if prev := l.registry.Swap(store); prev != nil {
		if err := l.dashboard.InvalidateStore(ctx, prev.ID()); err != nil {
			l.logger.Warn("stale dashboards not invalidated", zap.String("store_id", prev.ID()), zap.Error(err))
		}
	}

	if l.cfg.Warmup.Enabled {
		if _, err := l.warmup.Run(ctx); err != nil {
			l.logger.Warn("dashboard warmup incomplete", zap.Error(err))
		}
	}
}

// reloadOnHangup reloads the store on every SIGHUP until ctx is done.
func (l *storeLoader) reloadOnHangup(ctx context.Context) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			l.logger.Info("reloading progress events")
			l.load(ctx)
		}
	}
}
