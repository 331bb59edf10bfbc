package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MaxRecipients bounds the number of rows a single enqueue may create.
const MaxRecipients = 1000

// Kind is the notification type. It selects the payload schema and the
// template used to render the email.
type Kind string

const (
	KindEmailVerification Kind = "email-verification"
	KindTeamInvitation    Kind = "team-invitation"
)

// Kinds lists every known kind.
var Kinds = []Kind{KindEmailVerification, KindTeamInvitation}

func (k Kind) IsValid() bool {
	switch k {
	case KindEmailVerification, KindTeamInvitation:
		return true
	}
	return false
}

// ParseKind converts the stored text form into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.IsValid() {
		return "", ErrInvalidKind
	}
	return k, nil
}

// Notification is one queued email addressed to a single user.
type Notification struct {
	ID           uuid.UUID       `json:"id"`
	Kind         Kind            `json:"kind"`
	UserID       uuid.UUID       `json:"user_id"`
	Email        string          `json:"email,omitempty"`
	TemplateData json.RawMessage `json:"template_data,omitempty"`
	Processed    bool            `json:"processed"`
	Error        *string         `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty"`
}

// NewNotification is the inbound payload for an enqueue. One record is
// stored per recipient.
type NewNotification struct {
	Kind         Kind            `json:"kind"`
	Recipients   []uuid.UUID     `json:"recipients"`
	TemplateData json.RawMessage `json:"template_data,omitempty"`
}

func (n *NewNotification) Validate() error {
	if !n.Kind.IsValid() {
		return ErrInvalidKind
	}
	if len(n.Recipients) > MaxRecipients {
		return ErrTooManyRecipients
	}
	if _, err := DecodePayload(n.Kind, n.TemplateData); err != nil {
		return err
	}
	return nil
}

// ListFilter holds query parameters for paginated notification listing.
type ListFilter struct {
	Kind      *Kind
	Processed *bool
	Failed    *bool
	Page      int
	Limit     int
}

// Stats is a point-in-time view of the delivery pipeline.
type Stats struct {
	Pending    int `json:"pending"`
	OpenLeases int `json:"open_leases"`
}
