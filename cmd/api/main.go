package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/campushq/messaging/internal/config"
	"github.com/campushq/messaging/internal/handler"
	"github.com/campushq/messaging/internal/infra/postgresql"
	"github.com/campushq/messaging/internal/infra/postgresql/migrations"
	infraredis "github.com/campushq/messaging/internal/infra/redis"
	"github.com/campushq/messaging/internal/observability"
	"github.com/campushq/messaging/internal/provider"
	"github.com/campushq/messaging/internal/repository"
	"github.com/campushq/messaging/internal/service"
	"github.com/campushq/messaging/internal/settings"
	"github.com/campushq/messaging/internal/transport"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("messaging api exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}

	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer rdb.Close()

	messageRepo := repository.NewGormMessageRepo(db)
	templateRepo := repository.NewGormTemplateRepo(db)
	preferenceRepo := repository.NewGormPreferenceRepo(db)
	settingsRepo := repository.NewGormSettingsRepo(db)

	resolver := settings.NewResolver(settingsRepo, cfg, logger)

	emailProvider, err := provider.NewEmailProvider(resolver)
	if err != nil {
		return fmt.Errorf("email provider init failed: %w", err)
	}

	callbackURL := strings.TrimRight(cfg.PublicAppURL, "/") + "/v1/webhooks/sms"
	smsProvider, err := provider.NewSMSProvider(resolver, callbackURL)
	if err != nil {
		return fmt.Errorf("sms provider init failed: %w", err)
	}

	limiter, err := infraredis.NewHourlyRateLimiter(rdb)
	if err != nil {
		return fmt.Errorf("rate limiter init failed: %w", err)
	}

	metrics := observability.NewMetrics()

	dispatcher, err := service.NewDispatcher(
		messageRepo, templateRepo, preferenceRepo,
		resolver, emailProvider, smsProvider, limiter, logger,
	)
	if err != nil {
		return fmt.Errorf("dispatcher init failed: %w", err)
	}
	dispatcher.SetMetrics(metrics)

	sweepInterval := time.Duration(cfg.RetrySweepIntervalSec) * time.Second
	sweeper, err := service.NewRetrySweeper(dispatcher, sweepInterval, cfg.RetryMaxAttempts, logger)
	if err != nil {
		return fmt.Errorf("retry sweeper init failed: %w", err)
	}

	stats, err := service.NewStatsAggregator(messageRepo)
	if err != nil {
		return fmt.Errorf("stats aggregator init failed: %w", err)
	}

	templateService, err := service.NewTemplateService(templateRepo, logger)
	if err != nil {
		return fmt.Errorf("template service init failed: %w", err)
	}

	preferenceService, err := service.NewPreferenceService(preferenceRepo, settingsRepo, logger)
	if err != nil {
		return fmt.Errorf("preference service init failed: %w", err)
	}

	settingsService, err := service.NewSettingsService(settingsRepo, logger)
	if err != nil {
		return fmt.Errorf("settings service init failed: %w", err)
	}

	statusService, err := service.NewStatusService(messageRepo, logger)
	if err != nil {
		return fmt.Errorf("status service init failed: %w", err)
	}

	app := fiber.New(fiber.Config{
		AppName:      "campushq-messaging",
		ErrorHandler: transport.ErrorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.RegisterMessageRoutes(app, dispatcher, sweeper, stats, messageRepo); err != nil {
		return fmt.Errorf("message routes init failed: %w", err)
	}
	if err := handler.RegisterTemplateRoutes(app, templateService); err != nil {
		return fmt.Errorf("template routes init failed: %w", err)
	}
	if err := handler.RegisterPreferenceRoutes(app, preferenceService); err != nil {
		return fmt.Errorf("preference routes init failed: %w", err)
	}
	if err := handler.RegisterSettingsRoutes(app, settingsService); err != nil {
		return fmt.Errorf("settings routes init failed: %w", err)
	}
	if err := handler.RegisterWebhookRoutes(app, statusService, logger); err != nil {
		return fmt.Errorf("webhook routes init failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("messaging api started", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		if err := sweeper.Start(groupCtx); err != nil && !isShutdown(err) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := group.Wait(); err != nil && !isShutdown(err) {
		return err
	}

	logger.Info("messaging api stopped")
	return nil
}

func isShutdown(err error) bool {
	return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
