package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/stockroom/internal/alerts"
	"github.com/odyssey-erp/stockroom/internal/app"
	"github.com/odyssey-erp/stockroom/internal/ledger"
	"github.com/odyssey-erp/stockroom/internal/materials"
	"github.com/odyssey-erp/stockroom/internal/observability"
	"github.com/odyssey-erp/stockroom/internal/platform/cache"
	"github.com/odyssey-erp/stockroom/internal/platform/db"
	"github.com/odyssey-erp/stockroom/internal/platform/migrate"
	"github.com/odyssey-erp/stockroom/internal/rbac"
	"github.com/odyssey-erp/stockroom/internal/reports"
	"github.com/odyssey-erp/stockroom/internal/settings"
	"github.com/odyssey-erp/stockroom/internal/shared"
	"github.com/odyssey-erp/stockroom/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	var runErr error
	switch command {
	case "serve":
		runErr = serve(ctx, stop, cfg, logger)
	case "migrate":
		runErr = runMigrations(ctx, cfg, logger)
	default:
		runErr = fmt.Errorf("unknown command %q (expected serve or migrate)", command)
	}
	if runErr != nil {
		logger.Error("stockroom", slog.String("command", command), slog.Any("error", runErr))
		os.Exit(1)
	}
}

func openPool(ctx context.Context, cfg *app.Config) (*pgxpool.Pool, error) {
	return db.New(ctx, cfg.PGDSN, db.PoolOptions{
		MaxConns:        cfg.PGMaxConns,
		MaxConnLifetime: cfg.PGMaxConnLife,
	})
}

func runMigrations(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := migrate.Up(pool); err != nil {
		return err
	}
	logger.Info("migrations applied")
	return nil
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		if err := migrate.Up(pool); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	queueOpt, err := app.QueueRedisOpt(cfg.RedisAddr)
	if err != nil {
		return err
	}
	queue, err := jobs.NewClient(queueOpt)
	if err != nil {
		return err
	}
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(queueOpt)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	rbacService := rbac.NewService(pool, logger)
	rbacMiddleware := rbac.Middleware{Source: rbacService, Logger: logger}
	sessions := shared.NewSessionStore(redisClient, cfg.SessionTTL)

	settingsService := settings.NewService(settings.NewRepository(pool), rbacService, logger, cfg.DefaultAlertEmail)

	notices := alerts.NewNoticeStore(redisClient)
	notifier := alerts.NewQueueNotifier(queue, redislock.New(redisClient), cfg.AlertThrottle)
	trigger := alerts.NewTrigger(notices, notifier, settingsService, metrics, logger, cfg.AlertNoticeTTL)

	reportCache := cache.NewVersioned(redisClient, "stockroom:reports", cfg.ReportCacheTTL)
	reportService := reports.NewService(reports.NewRepository(pool), rbacService, reportCache, logger)

	materialRepo := materials.NewRepository(pool)
	materialService := materials.NewService(materialRepo, rbacService, logger).WithInvalidator(reportService)

	ledgerService := ledger.NewService(ledger.NewRepository(pool, materialRepo), rbacService, ledger.ServiceConfig{
		Alerts:      trigger,
		Invalidator: reportService,
		Metrics:     metrics,
		Logger:      logger,
		TxTimeout:   cfg.LedgerTxTimeout,
	})

	router := app.NewRouter(app.RouterParams{
		Logger:     logger,
		Config:     cfg,
		Principals: sessions,
		RBAC:       rbacMiddleware,
		Metrics:    metrics,
		Ready: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return err
			}
			return redisClient.Ping(ctx).Err()
		},
		MaterialsHandler:   materials.NewHandler(logger, materialService),
		LedgerHandler:      ledger.NewHandler(logger, ledgerService),
		ReportsHandler:     reports.NewHandler(logger, reportService),
		SettingsHandler:    settings.NewHandler(logger, settingsService),
		AlertsHandler:      alerts.NewHandler(logger, notices),
		PermissionsHandler: rbac.NewPermissionsHandler(logger, rbacService),
		JobHandler:         jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: cfg.AppReadTimeout,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
