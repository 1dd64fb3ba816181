package model

import (
	"fmt"
	"time"
)

// Recipient is one addressable target with custom substitution data.
// Immutable once written, except for deletion by its owner.
type Recipient struct {
	ID           string            `bson:"_id" json:"id"`
	UserID       string            `bson:"user_id" json:"user_id"`
	Email        string            `bson:"email" json:"email"`
	CustomFields map[string]string `bson:"custom_fields,omitempty" json:"custom_fields,omitempty"`
	CreatedAt    time.Time         `bson:"created_at" json:"created_at"`
}

func (r *Recipient) Validate() error {
	if r.Email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidRecipient)
	}
	return nil
}
