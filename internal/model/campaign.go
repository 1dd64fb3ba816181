package model

import (
	"fmt"
	"time"
)

// CampaignStatus tracks the lifecycle of a campaign through dispatch.
type CampaignStatus string

const (
	StatusDraft     CampaignStatus = "draft"
	StatusScheduled CampaignStatus = "scheduled"
	StatusRunning   CampaignStatus = "running"
	StatusPaused    CampaignStatus = "paused"
	StatusCompleted CampaignStatus = "completed"
	// StatusFailed marks a campaign abandoned by the dispatcher after a
	// persistence error exhausted its write retries. Send failures for
	// individual recipients never produce this status.
	StatusFailed CampaignStatus = "failed"
)

// TemplateType selects how the rendered body is delivered.
type TemplateType string

const (
	TemplatePlain TemplateType = "plain"
	TemplateRich  TemplateType = "rich"
	TemplateHTML  TemplateType = "html"
)

// CampaignStats is the denormalized attempt counter cache. The delivery log
// is the ground truth; Sent+Failed+Pending == Total holds on every persisted
// snapshot once dispatch has begun.
type CampaignStats struct {
	Total   int `bson:"total" json:"total"`
	Sent    int `bson:"sent" json:"sent"`
	Failed  int `bson:"failed" json:"failed"`
	Pending int `bson:"pending" json:"pending"`
}

// Progress is the dispatch checkpoint. NextIndex is the position in the
// recipient list the next dispatch invocation starts from, so a paused or
// interrupted campaign resumes instead of restarting.
type Progress struct {
	NextIndex int `bson:"next_index" json:"next_index"`
}

type Campaign struct {
	ID           string         `bson:"_id" json:"id"`
	UserID       string         `bson:"user_id" json:"user_id"`
	Name         string         `bson:"name" json:"name"`
	Subject      string         `bson:"subject" json:"subject"`
	Body         string         `bson:"body" json:"body"`
	TemplateType TemplateType   `bson:"template_type" json:"template_type"`
	RateLimit    int            `bson:"rate_limit" json:"rate_limit"`   // sends per hour
	DailyQuota   int            `bson:"daily_quota" json:"daily_quota"` // sends per UTC day
	Status       CampaignStatus `bson:"status" json:"status"`
	StatusReason string         `bson:"status_reason,omitempty" json:"status_reason,omitempty"`
	Stats        CampaignStats  `bson:"stats" json:"stats"`
	Progress     Progress       `bson:"progress" json:"progress"`
	ScheduleTime *time.Time     `bson:"schedule_time,omitempty" json:"schedule_time,omitempty"`
	CreatedAt    time.Time      `bson:"created_at" json:"created_at"`
	StartedAt    *time.Time     `bson:"started_at,omitempty" json:"started_at,omitempty"`
	CompletedAt  *time.Time     `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// Validate checks the fields an operator controls at campaign creation time.
func (c *Campaign) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCampaign)
	}
	if c.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidCampaign)
	}
	if c.Body == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidCampaign)
	}
	switch c.TemplateType {
	case TemplatePlain, TemplateRich, TemplateHTML:
	default:
		return fmt.Errorf("%w: template type must be plain, rich or html", ErrInvalidCampaign)
	}
	if c.RateLimit < 1 || c.RateLimit > 1000 {
		return fmt.Errorf("%w: rate limit must be between 1 and 1000 sends/hour", ErrInvalidCampaign)
	}
	if c.DailyQuota < 1 || c.DailyQuota > 10000 {
		return fmt.Errorf("%w: daily quota must be between 1 and 10000 sends/day", ErrInvalidCampaign)
	}
	return nil
}
