package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/libstats-api/internal/dto"
	"github.com/noah-isme/libstats-api/internal/repository"
	"github.com/noah-isme/libstats-api/internal/service"
	"github.com/noah-isme/libstats-api/pkg/cache"
	"github.com/noah-isme/libstats-api/pkg/config"
	"github.com/noah-isme/libstats-api/pkg/database"
	"github.com/noah-isme/libstats-api/pkg/logger"
)

// event-runner executes every pending scheduled event whose date has passed
// and exits. It is meant to be invoked from cron.
func main() {
	timeout := flag.Duration("timeout", 5*time.Minute, "maximum run time")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck
	logr = logr.With(zap.String("component", "event-runner"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	notifier := service.NewNotifier(nil, cfg.Broadcast.Channel, logr)
	if redisClient, err := cache.NewRedis(ctx, cfg.Redis); err != nil {
		logr.Warn("redis unavailable, broadcast events will fail", zap.Error(err))
	} else {
		defer redisClient.Close()
		notifier = service.NewNotifier(repository.NewCacheRepository(redisClient, logr), cfg.Broadcast.Channel, logr)
	}

	validate := validator.New()
	auditRepo := repository.NewAuditRepository(db)
	eventRepo := repository.NewScheduledEventRepository(db)
	windows := service.NewWindowService(
		repository.NewInstitutionYearRepository(db),
		eventRepo,
		repository.NewEntryStatusRepository(db, logr),
		auditRepo,
		nil,
		validate,
		logr,
	)
	events := service.NewEventService(eventRepo, windows, notifier, auditRepo, nil, validate, logr,
		service.EventServiceConfig{BatchSize: cfg.Events.RunnerBatchSize})

	result, err := events.ExecuteDue(ctx, time.Now().UTC())
	if err != nil {
		logr.Error("due event run failed", zap.Error(err))
		os.Exit(1)
	}

	failed := 0
	for _, execution := range result.Executions {
		if execution.Outcome == dto.ExecutionFailed {
			failed++
		}
	}
	logr.Info("due events processed", zap.Int("executions", len(result.Executions)), zap.Int("failed", failed))
	if failed > 0 {
		os.Exit(1)
	}
}
