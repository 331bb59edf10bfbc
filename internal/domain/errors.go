package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidKind       = errors.New("invalid notification kind: must be email-verification or team-invitation")
	ErrTooManyRecipients = errors.New("notification exceeds maximum of 1000 recipients")
	ErrUnknownRecipient  = errors.New("recipient user does not exist")

	// Delivery outcomes recorded on the notification row.
	ErrTemplateData = errors.New("invalid template data")
	ErrRender       = errors.New("render notification")
	ErrTransport    = errors.New("email transport")

	// ErrLeaseNotFound is returned when a lease was already closed or reaped.
	ErrLeaseNotFound = errors.New("lease not found")
)
