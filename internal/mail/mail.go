// Package mail defines the outbound mail transport collaborator and its
// SMTP implementation.
package mail

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned when transport construction parameters are invalid.
	ErrInvalidConfig = errors.New("invalid mail transport config")
	// ErrSendFailed wraps any transport-level failure for a single message.
	ErrSendFailed = errors.New("failed to send message")
	// ErrVerifyFailed is returned when the connectivity probe fails.
	ErrVerifyFailed = errors.New("smtp verification failed")
)

// Message is one outbound email. Exactly one of Text or HTML carries the
// body, selected by the campaign's template type.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

// Validate rejects messages that cannot be delivered.
func (m Message) Validate() error {
	if m.From == "" {
		return fmt.Errorf("%w: from address is required", ErrSendFailed)
	}
	if m.To == "" {
		return fmt.Errorf("%w: recipient address is required", ErrSendFailed)
	}
	if m.Text == "" && m.HTML == "" {
		return fmt.Errorf("%w: message body is empty", ErrSendFailed)
	}
	return nil
}

// Sender delivers one message at a time. Implementations must be safe for
// sequential reuse across a whole campaign.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	// Verify probes connectivity and authentication without sending mail.
	Verify(ctx context.Context) error
}
