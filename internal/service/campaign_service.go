// Package service wires the HTTP surface and the queue worker to the
// stores and the dispatch engine. Everything here is thin glue; the
// control-flow complexity lives in the engine package.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quillsend/quillsend-backend/internal/model"
	"github.com/quillsend/quillsend-backend/internal/queue"
	"github.com/quillsend/quillsend-backend/internal/store"
)

// CampaignStore is the campaign persistence surface the services need.
type CampaignStore interface {
	Create(ctx context.Context, c *model.Campaign) error
	Get(ctx context.Context, id string) (*model.Campaign, error)
	ListByUser(ctx context.Context, userID string) ([]model.Campaign, error)
	Delete(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, status model.CampaignStatus, reason string) error
	MarkStarted(ctx context.Context, id string, total int, at time.Time) error
	FindDueScheduled(ctx context.Context, now time.Time) ([]model.Campaign, error)
}

// RecipientLister lists the recipient set a campaign dispatches to.
type RecipientLister interface {
	ListByUser(ctx context.Context, userID string) ([]model.Recipient, error)
}

// DeliveryLogReader reads and bulk-deletes delivery log entries.
type DeliveryLogReader interface {
	ListByCampaign(ctx context.Context, campaignID string, limit int64) ([]model.DeliveryLogEntry, error)
	DeleteByCampaign(ctx context.Context, campaignID string) error
}

// JobPublisher enqueues dispatch jobs for the worker.
type JobPublisher interface {
	Publish(job queue.DispatchJob) error
}

// CreateCampaignInput is the operator-supplied campaign definition.
type CreateCampaignInput struct {
	Name         string             `json:"name"`
	Subject      string             `json:"subject"`
	Body         string             `json:"body"`
	TemplateType model.TemplateType `json:"template_type"`
	RateLimit    int                `json:"rate_limit"`
	DailyQuota   int                `json:"daily_quota"`
	ScheduleTime *time.Time         `json:"schedule_time,omitempty"`
}

// CampaignDetails is a campaign with its most recent delivery log entries.
type CampaignDetails struct {
	Campaign *model.Campaign          `json:"campaign"`
	Logs     []model.DeliveryLogEntry `json:"logs"`
}

// CampaignService implements campaign CRUD and the dispatch trigger.
type CampaignService struct {
	campaigns  CampaignStore
	recipients RecipientLister
	logs       DeliveryLogReader
	jobs       JobPublisher
	logger     *slog.Logger
	now        func() time.Time
}

func NewCampaignService(campaigns CampaignStore, recipients RecipientLister, logs DeliveryLogReader, jobs JobPublisher, logger *slog.Logger) *CampaignService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CampaignService{
		campaigns:  campaigns,
		recipients: recipients,
		logs:       logs,
		jobs:       jobs,
		logger:     logger,
		now:        time.Now,
	}
}

// Create stores a new campaign, scheduled when a schedule time is given.
func (s *CampaignService) Create(ctx context.Context, userID string, in CreateCampaignInput) (*model.Campaign, error) {
	status := model.StatusDraft
	if in.ScheduleTime != nil {
		status = model.StatusScheduled
	}

	campaign := &model.Campaign{
		ID:           uuid.NewString(),
		UserID:       userID,
		Name:         in.Name,
		Subject:      in.Subject,
		Body:         in.Body,
		TemplateType: in.TemplateType,
		RateLimit:    in.RateLimit,
		DailyQuota:   in.DailyQuota,
		Status:       status,
		ScheduleTime: in.ScheduleTime,
		CreatedAt:    s.now(),
	}
	if err := campaign.Validate(); err != nil {
		return nil, err
	}
	if err := s.campaigns.Create(ctx, campaign); err != nil {
		return nil, err
	}
	return campaign, nil
}

func (s *CampaignService) List(ctx context.Context, userID string) ([]model.Campaign, error) {
	return s.campaigns.ListByUser(ctx, userID)
}

// Details returns a campaign with its 100 most recent log entries.
func (s *CampaignService) Details(ctx context.Context, userID, id string) (*CampaignDetails, error) {
	campaign, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	logs, err := s.logs.ListByCampaign(ctx, id, 100)
	if err != nil {
		return nil, err
	}
	return &CampaignDetails{Campaign: campaign, Logs: logs}, nil
}

// Delete removes a campaign together with its delivery log entries, the
// only path that deletes log entries at all.
func (s *CampaignService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.campaigns.Delete(ctx, id); err != nil {
		return err
	}
	return s.logs.DeleteByCampaign(ctx, id)
}

// Duplicate clones a campaign into a fresh draft with zeroed stats.
func (s *CampaignService) Duplicate(ctx context.Context, userID, id string) (*model.Campaign, error) {
	original, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	clone := &model.Campaign{
		ID:           uuid.NewString(),
		UserID:       userID,
		Name:         original.Name + " (copy)",
		Subject:      original.Subject,
		Body:         original.Body,
		TemplateType: original.TemplateType,
		RateLimit:    original.RateLimit,
		DailyQuota:   original.DailyQuota,
		Status:       model.StatusDraft,
		CreatedAt:    s.now(),
	}
	if err := s.campaigns.Create(ctx, clone); err != nil {
		return nil, err
	}
	return clone, nil
}

// Start triggers dispatch for a campaign. The caller only learns that
// dispatch started; outcomes are observed by polling stats and the log.
// A paused campaign resumes from its checkpoint, anything else starts
// over a fresh stats block.
func (s *CampaignService) Start(ctx context.Context, userID, id string) error {
	campaign, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if campaign.Status == model.StatusRunning {
		return ErrAlreadyRunning
	}

	recipients, err := s.recipients.ListByUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return ErrNoRecipients
	}

	if campaign.Status == model.StatusPaused {
		if err := s.campaigns.SetStatus(ctx, id, model.StatusRunning, ""); err != nil {
			return err
		}
	} else {
		if err := s.campaigns.MarkStarted(ctx, id, len(recipients), s.now()); err != nil {
			return err
		}
	}

	if err := s.jobs.Publish(queue.DispatchJob{CampaignID: id, UserID: userID}); err != nil {
		return fmt.Errorf("failed to enqueue dispatch job: %w", err)
	}

	s.logger.InfoContext(ctx, "campaign dispatch triggered",
		slog.String("campaign_id", id),
		slog.String("user_id", userID),
		slog.Int("recipients", len(recipients)),
	)
	return nil
}

// StartDue sweeps for scheduled campaigns whose time has elapsed and
// triggers each one. Returns how many were started.
func (s *CampaignService) StartDue(ctx context.Context) (int, error) {
	due, err := s.campaigns.FindDueScheduled(ctx, s.now())
	if err != nil {
		return 0, err
	}

	started := 0
	for _, campaign := range due {
		if err := s.Start(ctx, campaign.UserID, campaign.ID); err != nil {
			// one broken campaign must not starve the rest of the sweep
			s.logger.ErrorContext(ctx, "failed to start scheduled campaign",
				slog.String("campaign_id", campaign.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		started++
	}
	return started, nil
}

func (s *CampaignService) owned(ctx context.Context, userID, id string) (*model.Campaign, error) {
	campaign, err := s.campaigns.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if campaign.UserID != userID {
		return nil, ErrNotFound
	}
	return campaign, nil
}
