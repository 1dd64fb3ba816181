package service

import "errors"

var (
	// ErrNoTransportConfig is returned when a user has no SMTP settings
	// saved. Fatal to the dispatch attempt before the loop starts; the
	// campaign status is left unchanged.
	ErrNoTransportConfig = errors.New("no smtp configuration found for user")
	// ErrNoRecipients is returned when a campaign is started against an
	// empty recipient list.
	ErrNoRecipients = errors.New("no recipients found")
	// ErrAlreadyRunning is returned when a start is requested for a
	// campaign that is already dispatching.
	ErrAlreadyRunning = errors.New("campaign is already running")
	// ErrNotFound hides both missing documents and documents owned by a
	// different user.
	ErrNotFound = errors.New("not found")
)
