package model

import "time"

// DeliveryOutcome is the terminal result of a single send attempt.
type DeliveryOutcome string

const (
	OutcomeSent   DeliveryOutcome = "sent"
	OutcomeFailed DeliveryOutcome = "failed"
)

// DeliveryLogEntry records one attempt for one recipient. Entries are
// append-only: never mutated, deleted only by bulk campaign deletion.
type DeliveryLogEntry struct {
	ID             string          `bson:"_id" json:"id"`
	CampaignID     string          `bson:"campaign_id" json:"campaign_id"`
	UserID         string          `bson:"user_id" json:"user_id"`
	RecipientID    string          `bson:"recipient_id" json:"recipient_id"`
	RecipientEmail string          `bson:"recipient_email" json:"recipient_email"`
	Outcome        DeliveryOutcome `bson:"outcome" json:"outcome"`
	Error          string          `bson:"error,omitempty" json:"error,omitempty"`
	Timestamp      time.Time       `bson:"timestamp" json:"timestamp"`
}
