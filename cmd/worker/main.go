package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/linkwave/portal/internal/accounts"
	"github.com/linkwave/portal/internal/app"
	"github.com/linkwave/portal/internal/catalog"
	"github.com/linkwave/portal/internal/notify"
	"github.com/linkwave/portal/internal/observability"
	"github.com/linkwave/portal/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	cat := catalog.Default()
	stores, err := app.OpenStores(ctx, cfg.StoreConfig, cat, logger)
	if err != nil {
		logger.Error("open stores", slog.Any("error", err))
		os.Exit(1)
	}
	defer stores.Close()

	handlers := jobs.NotifyHandlers{
		Email: notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}),
		Accounts: accounts.NewService(stores.Accounts, cat, accounts.ServiceDeps{Logger: logger}),
		Logger:   logger,
	}
	if cfg.SMSGatewayURL != "" {
		handlers.SMS = notify.NewSMSGateway(notify.SMSGatewayConfig{
			URL:   cfg.SMSGatewayURL,
			Token: cfg.SMSGatewayToken,
		}, logger)
	} else {
		logger.Info("sms gateway not configured; sms tasks are not processed")
	}

	var cron []jobs.CronRegistration
	if cfg.PendingDigestCron != "" {
		cron = append(cron, jobs.CronRegistration{
			Spec:    cfg.PendingDigestCron,
			Task:    jobs.NewPendingDigestTask(),
			Options: []asynq.Option{asynq.Queue(jobs.QueueDefault)},
		})
	}

	metrics := observability.NewMetrics()
	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword},
		Logger:    logger,
		Handlers:  handlers.Register(),
		Cron:      cron,
		Metrics:   jobs.NewTaskMetrics(metrics.Registerer()),
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetricsAddr != "" {
		metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
