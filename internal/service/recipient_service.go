package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quillsend/quillsend-backend/internal/model"
)

// RecipientStore is the recipient persistence surface.
type RecipientStore interface {
	Create(ctx context.Context, r *model.Recipient) error
	CreateMany(ctx context.Context, recipients []model.Recipient) error
	ListByUser(ctx context.Context, userID string) ([]model.Recipient, error)
	Delete(ctx context.Context, userID, id string) error
}

// RecipientInput is one recipient as supplied by the API or a list import.
type RecipientInput struct {
	Email        string            `json:"email"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
}

// RecipientService manages per-user recipient lists.
type RecipientService struct {
	recipients RecipientStore
	logger     *slog.Logger
	now        func() time.Time
}

func NewRecipientService(recipients RecipientStore, logger *slog.Logger) *RecipientService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecipientService{recipients: recipients, logger: logger, now: time.Now}
}

func (s *RecipientService) Add(ctx context.Context, userID string, in RecipientInput) (*model.Recipient, error) {
	recipient := &model.Recipient{
		ID:           uuid.NewString(),
		UserID:       userID,
		Email:        in.Email,
		CustomFields: in.CustomFields,
		CreatedAt:    s.now(),
	}
	if err := recipient.Validate(); err != nil {
		return nil, err
	}
	if err := s.recipients.Create(ctx, recipient); err != nil {
		return nil, err
	}
	return recipient, nil
}

// BulkImport inserts a batch of recipients, silently skipping entries
// without an email address, and reports how many were imported.
func (s *RecipientService) BulkImport(ctx context.Context, userID string, inputs []RecipientInput) (int, error) {
	recipients := make([]model.Recipient, 0, len(inputs))
	for _, in := range inputs {
		if in.Email == "" {
			continue
		}
		recipients = append(recipients, model.Recipient{
			ID:           uuid.NewString(),
			UserID:       userID,
			Email:        in.Email,
			CustomFields: in.CustomFields,
			CreatedAt:    s.now(),
		})
	}
	if err := s.recipients.CreateMany(ctx, recipients); err != nil {
		return 0, err
	}
	return len(recipients), nil
}

func (s *RecipientService) List(ctx context.Context, userID string) ([]model.Recipient, error) {
	return s.recipients.ListByUser(ctx, userID)
}

func (s *RecipientService) Delete(ctx context.Context, userID, id string) error {
	return s.recipients.Delete(ctx, userID, id)
}
