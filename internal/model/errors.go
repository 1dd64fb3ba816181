package model

import "errors"

var (
	// ErrInvalidCampaign is returned when campaign input fails validation.
	ErrInvalidCampaign = errors.New("invalid campaign")
	// ErrInvalidRecipient is returned when recipient input fails validation.
	ErrInvalidRecipient = errors.New("invalid recipient")
	// ErrInvalidSMTPSettings is returned when SMTP settings fail validation.
	ErrInvalidSMTPSettings = errors.New("invalid smtp settings")
)
