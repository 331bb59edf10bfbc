package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Payload is the decoded template data of a notification. The set of
// implementations is closed: one struct per Kind, all in this file.
type Payload interface {
	Kind() Kind
	validate() error
}

// EmailVerification carries the link a new user follows to confirm their
// address.
type EmailVerification struct {
	Link string `json:"link"`
}

func (EmailVerification) Kind() Kind { return KindEmailVerification }

func (p EmailVerification) validate() error { return requireLink(p.Link) }

// TeamInvitation carries the link to the employer dashboard invitations tab.
type TeamInvitation struct {
	Link string `json:"link"`
}

func (TeamInvitation) Kind() Kind { return KindTeamInvitation }

func (p TeamInvitation) validate() error { return requireLink(p.Link) }

// DecodePayload unmarshals raw template data into the payload type expected
// by kind. Missing, null or malformed data yields ErrTemplateData.
func DecodePayload(kind Kind, data json.RawMessage) (Payload, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%w: %s requires template data", ErrTemplateData, kind)
	}

	var p Payload
	switch kind {
	case KindEmailVerification:
		var v EmailVerification
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrTemplateData, kind, err)
		}
		p = v
	case KindTeamInvitation:
		var v TeamInvitation
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrTemplateData, kind, err)
		}
		p = v
	default:
		return nil, ErrInvalidKind
	}

	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTemplateData, kind, err)
	}
	return p, nil
}

func requireLink(link string) error {
	if strings.TrimSpace(link) == "" {
		return fmt.Errorf("link must not be empty")
	}
	return nil
}
