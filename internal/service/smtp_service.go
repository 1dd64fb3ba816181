package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/quillsend/quillsend-backend/internal/mail"
	"github.com/quillsend/quillsend-backend/internal/model"
	"github.com/quillsend/quillsend-backend/internal/secrets"
	"github.com/quillsend/quillsend-backend/internal/store"
)

// SMTPStore persists per-user transport settings.
type SMTPStore interface {
	Save(ctx context.Context, settings *model.SMTPSettings) error
	Get(ctx context.Context, userID string) (*model.SMTPSettings, error)
}

// SMTPInput is the settings payload as submitted by the operator.
type SMTPInput struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Secure   bool   `json:"secure"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// SMTPView is the masked settings representation returned by the API; the
// password never leaves the store, even encrypted.
type SMTPView struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Secure      bool   `json:"secure"`
	User        string `json:"user"`
	HasPassword bool   `json:"has_password"`
}

// SMTPService manages transport settings and the connectivity test.
type SMTPService struct {
	smtp      SMTPStore
	cipher    *secrets.Cipher
	newSender SenderFactory
	logger    *slog.Logger
	now       func() time.Time
}

func NewSMTPService(smtp SMTPStore, cipher *secrets.Cipher, newSender SenderFactory, logger *slog.Logger) *SMTPService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPService{smtp: smtp, cipher: cipher, newSender: newSender, logger: logger, now: time.Now}
}

// Save validates and stores the settings with the password encrypted.
func (s *SMTPService) Save(ctx context.Context, userID string, in SMTPInput) error {
	settings := &model.SMTPSettings{
		UserID:    userID,
		Host:      in.Host,
		Port:      in.Port,
		Secure:    in.Secure,
		User:      in.User,
		Password:  in.Password,
		UpdatedAt: s.now(),
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	encrypted, err := s.cipher.Encrypt(in.Password)
	if err != nil {
		return err
	}
	settings.Password = encrypted

	return s.smtp.Save(ctx, settings)
}

// Get returns the masked settings, or nil when none are saved.
func (s *SMTPService) Get(ctx context.Context, userID string) (*SMTPView, error) {
	settings, err := s.smtp.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &SMTPView{
		Host:        settings.Host,
		Port:        settings.Port,
		Secure:      settings.Secure,
		User:        settings.User,
		HasPassword: settings.Password != "",
	}, nil
}

// Test builds a transport from the stored settings and probes the server.
func (s *SMTPService) Test(ctx context.Context, userID string) error {
	settings, err := s.smtp.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoTransportConfig
		}
		return err
	}

	password, err := s.cipher.Decrypt(settings.Password)
	if err != nil {
		return err
	}

	sender, err := s.newSender(mail.Config{
		Host:     settings.Host,
		Port:     settings.Port,
		Secure:   settings.Secure,
		Username: settings.User,
		Password: password,
	})
	if err != nil {
		return err
	}
	return sender.Verify(ctx)
}
