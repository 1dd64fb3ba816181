// Package engine implements the campaign dispatch loop: the sequential
// per-recipient orchestrator that renders, sends, paces, tracks quota and
// drives the campaign's aggregate status.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quillsend/quillsend-backend/internal/mail"
	"github.com/quillsend/quillsend-backend/internal/metrics"
	"github.com/quillsend/quillsend-backend/internal/model"
	"github.com/quillsend/quillsend-backend/internal/template"
)

// CampaignState persists status transitions, the stats cache and the
// dispatch checkpoint for one campaign.
type CampaignState interface {
	SetStatus(ctx context.Context, id string, status model.CampaignStatus, reason string) error
	UpdateProgress(ctx context.Context, id string, stats model.CampaignStats, progress model.Progress) error
	MarkCompleted(ctx context.Context, id string, stats model.CampaignStats, at time.Time) error
}

// DeliveryLog is the append-only per-attempt outcome record.
type DeliveryLog interface {
	Append(ctx context.Context, e model.DeliveryLogEntry) error
	HasDelivered(ctx context.Context, campaignID, recipientID string) (bool, error)
}

// Quota tracks the shared per-user per-UTC-day send counter. Reserve must
// be atomic across concurrently dispatching campaigns of the same user.
type Quota interface {
	Reserve(ctx context.Context, userID, day string, limit int) (bool, error)
	Release(ctx context.Context, userID, day string) error
}

// Job is one dispatch invocation: a campaign, its recipient list and the
// transport already constructed for the owning user.
type Job struct {
	Campaign   *model.Campaign
	Recipients []model.Recipient
	Sender     mail.Sender
	From       string
}

// Dispatcher runs campaign dispatch loops. One Dispatcher is shared by all
// jobs; per-campaign state lives in the Job and the stores.
type Dispatcher struct {
	campaigns CampaignState
	log       DeliveryLog
	quota     Quota

	logger       *slog.Logger
	flushEvery   int
	writeRetries int
	retryBackoff time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	now          func() time.Time
}

// New builds a Dispatcher over the store collaborators.
func New(campaigns CampaignState, log DeliveryLog, quota Quota, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		campaigns:    campaigns,
		log:          log,
		quota:        quota,
		logger:       defaultLogger(),
		flushEvery:   10,
		writeRetries: 3,
		retryBackoff: 100 * time.Millisecond,
		sleep:        sleepCtx,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch processes the job's recipients strictly sequentially: render,
// send, record, pace. It resumes from the campaign's persisted checkpoint,
// pauses on quota exhaustion or cancellation, and completes when every
// recipient has been attempted. Per-recipient send failures are recorded
// and skipped over; only persistent store failures abort the loop.
func (d *Dispatcher) Dispatch(ctx context.Context, job Job) error {
	campaign := job.Campaign
	total := len(job.Recipients)
	started := d.now()

	logger := d.logger.With(
		slog.String("campaign_id", campaign.ID),
		slog.String("user_id", campaign.UserID),
		slog.Int("recipients", total),
	)

	stats := campaign.Stats
	stats.Total = total
	start := campaign.Progress.NextIndex
	resuming := start > 0 || stats.Sent > 0 || stats.Failed > 0

	// The whole run is attributed to the day dispatch started on, matching
	// the single quota read the loop replaces. Campaigns paced across
	// midnight keep drawing from the start day's counter.
	day := model.QuotaDay(started)
	delay := Delay(campaign.RateLimit)

	logger.InfoContext(ctx, "dispatch started",
		slog.Int("start_index", start),
		slog.Bool("resuming", resuming),
		slog.Duration("pace_delay", delay),
	)

	sinceFlush := 0
	for i := start; i < total; i++ {
		recipient := job.Recipients[i]

		if err := ctx.Err(); err != nil {
			return d.interrupt(campaign, stats, i, logger)
		}

		if resuming {
			delivered, err := d.hasDelivered(ctx, campaign.ID, recipient.ID)
			if err != nil {
				return d.fail(campaign, fmt.Sprintf("delivery log read failed: %v", err), logger, err)
			}
			if delivered {
				// Attempted before the last checkpoint flush made it to the
				// store; account for it without sending again.
				stats.Sent++
				stats.Pending = total - stats.Sent - stats.Failed
				continue
			}
		}

		reserved, err := d.reserve(ctx, campaign, day)
		if err != nil {
			return d.fail(campaign, fmt.Sprintf("quota reservation failed: %v", err), logger, err)
		}
		if !reserved {
			return d.pause(campaign, stats, i, "daily quota reached", logger)
		}

		sendErr := job.Sender.Send(ctx, d.buildMessage(job, recipient))

		entry := model.DeliveryLogEntry{
			ID:             uuid.NewString(),
			CampaignID:     campaign.ID,
			UserID:         campaign.UserID,
			RecipientID:    recipient.ID,
			RecipientEmail: recipient.Email,
			Timestamp:      d.now(),
		}
		if sendErr != nil {
			stats.Failed++
			entry.Outcome = model.OutcomeFailed
			entry.Error = sendErr.Error()
			metrics.RecordAttempt("failed")
			logger.WarnContext(ctx, "send failed",
				slog.Int("recipient_index", i),
				slog.String("recipient_email", recipient.Email),
				slog.String("error", sendErr.Error()),
			)
			if err := d.release(ctx, campaign, day); err != nil {
				logger.ErrorContext(ctx, "failed to release quota reservation",
					slog.String("error", err.Error()))
			}
		} else {
			stats.Sent++
			entry.Outcome = model.OutcomeSent
			metrics.RecordAttempt("sent")
		}
		stats.Pending = total - stats.Sent - stats.Failed

		if err := d.withRetry(ctx, func(ctx context.Context) error {
			return d.log.Append(ctx, entry)
		}); err != nil {
			return d.fail(campaign, fmt.Sprintf("delivery log append failed: %v", err), logger, err)
		}

		sinceFlush++
		if sinceFlush >= d.flushEvery {
			if err := d.flush(ctx, campaign.ID, stats, i+1); err != nil {
				return d.fail(campaign, fmt.Sprintf("progress flush failed: %v", err), logger, err)
			}
			sinceFlush = 0
		}

		if i+1 < total {
			if err := d.sleep(ctx, delay); err != nil {
				return d.interrupt(campaign, stats, i+1, logger)
			}
		}
	}

	completedAt := d.now()
	if err := d.withRetry(ctx, func(ctx context.Context) error {
		return d.campaigns.MarkCompleted(ctx, campaign.ID, stats, completedAt)
	}); err != nil {
		return d.fail(campaign, fmt.Sprintf("completion write failed: %v", err), logger, err)
	}

	metrics.RecordDispatch(string(model.StatusCompleted), time.Since(started).Seconds())
	logger.InfoContext(ctx, "dispatch completed",
		slog.Int("sent", stats.Sent),
		slog.Int("failed", stats.Failed),
	)
	return nil
}

func (d *Dispatcher) buildMessage(job Job, recipient model.Recipient) mail.Message {
	data := template.Data(recipient.Email, recipient.CustomFields)
	msg := mail.Message{
		From:    job.From,
		To:      recipient.Email,
		Subject: template.Render(job.Campaign.Subject, data),
	}
	body := template.Render(job.Campaign.Body, data)
	if job.Campaign.TemplateType == model.TemplatePlain {
		msg.Text = body
	} else {
		msg.HTML = body
	}
	return msg
}

// pause checkpoints the loop position and parks the campaign. A fresh
// trigger resumes from nextIndex; there is no automatic resume.
func (d *Dispatcher) pause(campaign *model.Campaign, stats model.CampaignStats, nextIndex int, reason string, logger *slog.Logger) error {
	ctx := context.Background()
	if err := d.flush(ctx, campaign.ID, stats, nextIndex); err != nil {
		return d.fail(campaign, fmt.Sprintf("pause checkpoint failed: %v", err), logger, err)
	}
	if err := d.withRetry(ctx, func(ctx context.Context) error {
		return d.campaigns.SetStatus(ctx, campaign.ID, model.StatusPaused, reason)
	}); err != nil {
		return d.fail(campaign, fmt.Sprintf("pause status write failed: %v", err), logger, err)
	}

	metrics.RecordDispatch(string(model.StatusPaused), 0)
	logger.InfoContext(ctx, "dispatch paused",
		slog.String("reason", reason),
		slog.Int("next_index", nextIndex),
		slog.Int("pending", stats.Pending),
	)
	return nil
}

// interrupt handles context cancellation (worker shutdown): same checkpoint
// as a quota pause, but the cancellation error is surfaced to the job
// runner so the job is not acked as done.
func (d *Dispatcher) interrupt(campaign *model.Campaign, stats model.CampaignStats, nextIndex int, logger *slog.Logger) error {
	if err := d.pause(campaign, stats, nextIndex, "dispatch interrupted", logger); err != nil {
		return err
	}
	return ErrInterrupted
}

// fail is the persistence-error policy: after bounded retries were already
// exhausted, record the reason and abandon this invocation. Uses a fresh
// context because the loop context may itself be the casualty.
func (d *Dispatcher) fail(campaign *model.Campaign, reason string, logger *slog.Logger, cause error) error {
	ctx := context.Background()
	if err := d.campaigns.SetStatus(ctx, campaign.ID, model.StatusFailed, reason); err != nil {
		logger.ErrorContext(ctx, "failed to record campaign failure",
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
	}

	metrics.RecordDispatch(string(model.StatusFailed), 0)
	logger.ErrorContext(ctx, "dispatch failed", slog.String("reason", reason))
	return fmt.Errorf("%w: %s: %w", ErrPersistence, reason, cause)
}

func (d *Dispatcher) flush(ctx context.Context, campaignID string, stats model.CampaignStats, nextIndex int) error {
	return d.withRetry(ctx, func(ctx context.Context) error {
		return d.campaigns.UpdateProgress(ctx, campaignID, stats, model.Progress{NextIndex: nextIndex})
	})
}

func (d *Dispatcher) reserve(ctx context.Context, campaign *model.Campaign, day string) (bool, error) {
	var reserved bool
	err := d.withRetry(ctx, func(ctx context.Context) error {
		var err error
		reserved, err = d.quota.Reserve(ctx, campaign.UserID, day, campaign.DailyQuota)
		return err
	})
	return reserved, err
}

func (d *Dispatcher) release(ctx context.Context, campaign *model.Campaign, day string) error {
	return d.withRetry(ctx, func(ctx context.Context) error {
		return d.quota.Release(ctx, campaign.UserID, day)
	})
}

func (d *Dispatcher) hasDelivered(ctx context.Context, campaignID, recipientID string) (bool, error) {
	var delivered bool
	err := d.withRetry(ctx, func(ctx context.Context) error {
		var err error
		delivered, err = d.log.HasDelivered(ctx, campaignID, recipientID)
		return err
	})
	return delivered, err
}

// withRetry runs a store operation with bounded backoff. Context
// cancellation stops retrying immediately.
func (d *Dispatcher) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := d.retryBackoff
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt >= d.writeRetries {
			return err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		d.logger.Warn("store operation failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()),
		)
		if sleepErr := d.sleep(ctx, backoff); sleepErr != nil {
			return err
		}
		backoff *= 2
	}
}
