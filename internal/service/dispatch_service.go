package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quillsend/quillsend-backend/internal/engine"
	"github.com/quillsend/quillsend-backend/internal/mail"
	"github.com/quillsend/quillsend-backend/internal/model"
	"github.com/quillsend/quillsend-backend/internal/queue"
	"github.com/quillsend/quillsend-backend/internal/secrets"
	"github.com/quillsend/quillsend-backend/internal/store"
)

// SMTPGetter fetches a user's stored transport settings.
type SMTPGetter interface {
	Get(ctx context.Context, userID string) (*model.SMTPSettings, error)
}

// DispatchRunner runs one campaign dispatch loop.
type DispatchRunner interface {
	Dispatch(ctx context.Context, job engine.Job) error
}

// SenderFactory builds a mail transport from connection parameters.
// Indirection point for tests; production uses NewSMTPTransport.
type SenderFactory func(cfg mail.Config) (mail.Sender, error)

// NewSMTPTransport is the production SenderFactory.
func NewSMTPTransport(cfg mail.Config) (mail.Sender, error) {
	return mail.NewSMTPSender(cfg)
}

// DispatchService is the worker-side entry point: it resolves a dispatch
// job into a campaign, its recipients and a ready transport, then hands
// off to the engine.
type DispatchService struct {
	campaigns  CampaignStore
	recipients RecipientLister
	smtp       SMTPGetter
	cipher     *secrets.Cipher
	newSender  SenderFactory
	runner     DispatchRunner
	logger     *slog.Logger
}

func NewDispatchService(campaigns CampaignStore, recipients RecipientLister, smtp SMTPGetter, cipher *secrets.Cipher, newSender SenderFactory, runner DispatchRunner, logger *slog.Logger) *DispatchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DispatchService{
		campaigns:  campaigns,
		recipients: recipients,
		smtp:       smtp,
		cipher:     cipher,
		newSender:  newSender,
		runner:     runner,
		logger:     logger,
	}
}

// Run executes one dispatch job. A returned error means the job should be
// redelivered; configuration problems are logged and swallowed because
// redelivery cannot fix them, the operator has to re-trigger after fixing
// the settings.
func (s *DispatchService) Run(ctx context.Context, job queue.DispatchJob) error {
	logger := s.logger.With(
		slog.String("campaign_id", job.CampaignID),
		slog.String("user_id", job.UserID),
	)

	campaign, err := s.campaigns.Get(ctx, job.CampaignID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.WarnContext(ctx, "dispatch job for missing campaign, dropping")
			return nil
		}
		return err
	}

	switch campaign.Status {
	case model.StatusRunning:
	case model.StatusPaused:
		// a redelivered job resumes a shutdown-interrupted campaign, but a
		// quota pause waits for an explicit re-trigger
		if campaign.StatusReason != "dispatch interrupted" {
			logger.InfoContext(ctx, "dispatch job for paused campaign, dropping",
				slog.String("reason", campaign.StatusReason))
			return nil
		}
		if err := s.campaigns.SetStatus(ctx, campaign.ID, model.StatusRunning, ""); err != nil {
			return err
		}
		campaign.Status = model.StatusRunning
	default:
		logger.InfoContext(ctx, "dispatch job for non-running campaign, dropping",
			slog.String("status", string(campaign.Status)))
		return nil
	}

	sender, from, err := s.buildTransport(ctx, job.UserID)
	if err != nil {
		// ConfigurationError: fatal to this attempt, campaign status is
		// deliberately left unchanged
		logger.ErrorContext(ctx, "cannot build mail transport",
			slog.String("error", err.Error()))
		return nil
	}

	recipients, err := s.recipients.ListByUser(ctx, job.UserID)
	if err != nil {
		return err
	}

	return s.runner.Dispatch(ctx, engine.Job{
		Campaign:   campaign,
		Recipients: recipients,
		Sender:     sender,
		From:       from,
	})
}

func (s *DispatchService) buildTransport(ctx context.Context, userID string) (mail.Sender, string, error) {
	settings, err := s.smtp.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", ErrNoTransportConfig
		}
		return nil, "", err
	}

	password, err := s.cipher.Decrypt(settings.Password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decrypt smtp password: %w", err)
	}

	sender, err := s.newSender(mail.Config{
		Host:     settings.Host,
		Port:     settings.Port,
		Secure:   settings.Secure,
		Username: settings.User,
		Password: password,
	})
	if err != nil {
		return nil, "", err
	}
	return sender, settings.User, nil
}
