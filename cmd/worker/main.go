package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/quillsend/quillsend-backend/internal/config"
	"github.com/quillsend/quillsend-backend/internal/engine"
	"github.com/quillsend/quillsend-backend/internal/queue"
	"github.com/quillsend/quillsend-backend/internal/secrets"
	"github.com/quillsend/quillsend-backend/internal/service"
	"github.com/quillsend/quillsend-backend/internal/store"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("worker exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, relying on OS environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Connect(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer db.Client().Disconnect(context.Background()) //nolint:errcheck

	jobs, err := queue.Dial(cfg.Queue, logger)
	if err != nil {
		return err
	}
	defer jobs.Close() //nolint:errcheck

	key, err := base64.StdEncoding.DecodeString(cfg.Secrets.EncryptionKey)
	if err != nil {
		return fmt.Errorf("SECRETS_ENCRYPTION_KEY is not valid base64: %w", err)
	}
	cipher, err := secrets.New(key)
	if err != nil {
		return err
	}

	campaignStore := store.NewCampaignStore(db)
	recipientStore := store.NewRecipientStore(db)
	logStore := store.NewDeliveryLogStore(db)
	quotaStore := store.NewQuotaStore(db)
	smtpStore := store.NewSMTPStore(db)

	dispatcher := engine.New(campaignStore, logStore, quotaStore, engine.WithLogger(logger))
	dispatch := service.NewDispatchService(
		campaignStore, recipientStore, smtpStore, cipher,
		service.NewSMTPTransport, dispatcher, logger,
	)

	// the scheduler sweep runs in the worker so deployments without an
	// external cron hitting the API endpoint still start due campaigns
	campaigns := service.NewCampaignService(campaignStore, recipientStore, logStore, jobs, logger)
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Scanner.CronSpec, func() {
		started, err := campaigns.StartDue(ctx)
		if err != nil {
			logger.Error("scheduled campaign sweep failed", slog.String("error", err.Error()))
			return
		}
		if started > 0 {
			logger.Info("started due campaigns", slog.Int("count", started))
		}
	}); err != nil {
		return fmt.Errorf("invalid scanner cron spec %q: %w", cfg.Scanner.CronSpec, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	logger.Info("worker consuming dispatch jobs", slog.String("queue", cfg.Queue.Queue))
	return jobs.Consume(ctx, dispatch.Run)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
