package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/quillsend/quillsend-backend/internal/config"
	"github.com/quillsend/quillsend-backend/internal/handler"
	"github.com/quillsend/quillsend-backend/internal/queue"
	"github.com/quillsend/quillsend-backend/internal/secrets"
	"github.com/quillsend/quillsend-backend/internal/service"
	"github.com/quillsend/quillsend-backend/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.String("error", err.Error()))
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

	cipher, err := newCipher(cfg.Secrets.EncryptionKey)
	if err != nil {
		return err
	}

	campaignStore := store.NewCampaignStore(db)
	recipientStore := store.NewRecipientStore(db)
	logStore := store.NewDeliveryLogStore(db)
	smtpStore := store.NewSMTPStore(db)
	quotaStore := store.NewQuotaStore(db)

	h := handler.New(
		service.NewCampaignService(campaignStore, recipientStore, logStore, jobs, logger),
		service.NewRecipientService(recipientStore, logger),
		service.NewSMTPService(smtpStore, cipher, service.NewSMTPTransport, logger),
		quotaStore,
		healthFunc(store.Healthcheck(db)),
		logger,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.Int("port", cfg.Server.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// healthFunc adapts a probe func to the handler's Healthchecker interface.
type healthFunc func(ctx context.Context) error

func (f healthFunc) Healthcheck(ctx context.Context) error { return f(ctx) }

func newCipher(encoded string) (*secrets.Cipher, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("SECRETS_ENCRYPTION_KEY is not valid base64: %w", err)
	}
	return secrets.New(key)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
