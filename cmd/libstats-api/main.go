package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/libstats-api/api/swagger"
	"github.com/noah-isme/libstats-api/internal/handler"
	"github.com/noah-isme/libstats-api/internal/middleware"
	"github.com/noah-isme/libstats-api/internal/repository"
	"github.com/noah-isme/libstats-api/internal/service"
	"github.com/noah-isme/libstats-api/pkg/cache"
	"github.com/noah-isme/libstats-api/pkg/config"
	"github.com/noah-isme/libstats-api/pkg/database"
	"github.com/noah-isme/libstats-api/pkg/jobs"
	"github.com/noah-isme/libstats-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/libstats-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/libstats-api/pkg/middleware/requestid"
	"github.com/noah-isme/libstats-api/pkg/storage"
)

// @title Library Statistics API
// @version 1.0.0
// @description Annual library statistics collection: windows, category forms, scheduled events and aggregates.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			logr.Sugar().Fatalw("failed to migrate database", "error", err)
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, aggregate cache and broadcasts disabled", "addr", cache.Addr(cfg.Redis), "error", err)
	} else {
		defer redisClient.Close()
	}

	app, err := buildApp(ctx, cfg, db, redisClient, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to build application", "error", err)
	}
	defer app.shutdown()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(app.metrics))

	r.GET("/health", app.handlers.Metrics.Health)
	r.GET("/ready", app.handlers.Metrics.Ready)
	r.GET("/metrics", app.handlers.Metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), app.auth, app.handlers)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

type application struct {
	auth     *service.AuthService
	metrics  *service.MetricsService
	handlers handler.Handlers
	queue    *jobs.Queue
}

func (a *application) shutdown() {
	if a.queue != nil {
		a.queue.Stop()
	}
}

func buildApp(ctx context.Context, cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, logr *zap.Logger) (*application, error) {
	validate := validator.New()
	metrics := service.NewMetricsService()

	auditRepo := repository.NewAuditRepository(db)
	yearRepo := repository.NewInstitutionYearRepository(db)
	statusRepo := repository.NewEntryStatusRepository(db, logr)
	eventRepo := repository.NewScheduledEventRepository(db)
	recordRepo := repository.NewCategoryRecordRepository(db, logr)
	catalogRepo := repository.NewCatalogRepository(db)

	var cacheRepo service.CacheRepository
	notifier := service.NewNotifier(nil, cfg.Broadcast.Channel, logr)
	if redisClient != nil {
		redisRepo := repository.NewCacheRepository(redisClient, logr)
		cacheRepo = redisRepo
		notifier = service.NewNotifier(redisRepo, cfg.Broadcast.Channel, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Aggregates.CacheTTL, logr, cfg.Aggregates.CacheEnabled)

	authSvc := service.NewAuthService(logr, service.AuthConfig{AccessTokenSecret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	windowSvc := service.NewWindowService(yearRepo, eventRepo, statusRepo, auditRepo, cacheSvc, validate, logr)
	statusSvc := service.NewEntryStatusService(statusRepo, yearRepo, auditRepo, cacheSvc, logr)
	eventSvc := service.NewEventService(eventRepo, windowSvc, notifier, auditRepo, metrics, validate, logr,
		service.EventServiceConfig{BatchSize: cfg.Events.RunnerBatchSize})
	submissionSvc := service.NewSubmissionService(yearRepo, windowSvc, recordRepo, auditRepo, cacheSvc, metrics, validate, logr)
	subscriptionSvc := service.NewSubscriptionService(catalogRepo, submissionSvc, logr)
	aggregateSvc := service.NewAggregateService(recordRepo, statusRepo, cacheSvc, cfg.Aggregates.CacheTTL, logr)

	app := &application{
		auth:    authSvc,
		metrics: metrics,
		handlers: handler.Handlers{
			Years:      handler.NewYearHandler(windowSvc, statusSvc),
			Categories: handler.NewCategoryHandler(submissionSvc, statusSvc, subscriptionSvc),
			Events:     handler.NewEventHandler(eventSvc),
			Aggregates: handler.NewAggregateHandler(aggregateSvc),
			Audit:      handler.NewAuditHandler(service.NewAuditTrailService(auditRepo, logr)),
			Metrics:    handler.NewMetricsHandler(metrics, db),
		},
	}

	if !cfg.Exports.Enabled {
		return app, nil
	}

	store, err := newExportStore(ctx, cfg.Exports)
	if err != nil {
		return nil, err
	}
	signer := storage.NewURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportRepo := repository.NewExportJobRepository(db)
	exporter := service.NewExportService(aggregateSvc, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr)
	worker := service.NewExportWorker(exportRepo, exporter, metrics, logr)

	app.queue = jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
		Workers:     cfg.Exports.WorkerConcurrency,
		MaxRetries:  cfg.Exports.WorkerRetries,
		RetryDelay:  2 * time.Second,
		OnExhausted: worker.Exhausted,
		Logger:      logr,
	})
	app.queue.Start(ctx)

	exportJobs := service.NewExportJobService(exportRepo, app.queue, exporter, auditRepo, validate, logr, service.ExportJobServiceConfig{
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})
	exportJobs.RecoverPendingJobs(ctx)
	exportJobs.StartCleanup(ctx)
	app.handlers.Exports = handler.NewExportHandler(exportJobs, logr)

	return app, nil
}

func newExportStore(ctx context.Context, cfg config.ExportsConfig) (storage.Store, error) {
	if cfg.StorageDriver == config.StorageDriverS3 {
		return storage.NewS3Storage(ctx, storage.S3Options{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			PathStyle:       cfg.S3.PathStyle,
			Prefix:          cfg.S3.Prefix,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
	}
	return storage.NewLocalStorage(cfg.StorageDir)
}
