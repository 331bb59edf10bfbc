package domain_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/gitjobs/notifier/internal/domain"
)

func TestNewNotification_Validate(t *testing.T) {
	valid := domain.NewNotification{
		Kind:         domain.KindEmailVerification,
		Recipients:   []uuid.UUID{uuid.New()},
		TemplateData: json.RawMessage(`{"link":"https://x/verify-email/abc"}`),
	}

	t.Run("valid request passes", func(t *testing.T) {
		if err := valid.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("invalid kind", func(t *testing.T) {
		r := valid
		r.Kind = "password-reset"
		if err := r.Validate(); err != domain.ErrInvalidKind {
			t.Fatalf("expected ErrInvalidKind, got %v", err)
		}
	})

	t.Run("no recipients passes", func(t *testing.T) {
		r := valid
		r.Recipients = nil
		if err := r.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("too many recipients", func(t *testing.T) {
		r := valid
		r.Recipients = make([]uuid.UUID, domain.MaxRecipients+1)
		if err := r.Validate(); err != domain.ErrTooManyRecipients {
			t.Fatalf("expected ErrTooManyRecipients, got %v", err)
		}
	})

	t.Run("missing template data", func(t *testing.T) {
		r := valid
		r.TemplateData = nil
		if err := r.Validate(); !errors.Is(err, domain.ErrTemplateData) {
			t.Fatalf("expected ErrTemplateData, got %v", err)
		}
	})
}

func TestParseKind(t *testing.T) {
	for _, k := range domain.Kinds {
		got, err := domain.ParseKind(string(k))
		if err != nil {
			t.Fatalf("kind %q: expected no error, got %v", k, err)
		}
		if got != k {
			t.Fatalf("expected %q, got %q", k, got)
		}
	}

	if _, err := domain.ParseKind("sms"); err != domain.ErrInvalidKind {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name    string
		kind    domain.Kind
		data    string
		wantErr error
	}{
		{"email verification", domain.KindEmailVerification, `{"link":"https://x/verify-email/1"}`, nil},
		{"team invitation", domain.KindTeamInvitation, `{"link":"https://x/dashboard/employer?tab=invitations"}`, nil},
		{"null data", domain.KindEmailVerification, `null`, domain.ErrTemplateData},
		{"empty data", domain.KindTeamInvitation, ``, domain.ErrTemplateData},
		{"not an object", domain.KindEmailVerification, `[1,2]`, domain.ErrTemplateData},
		{"wrong field type", domain.KindEmailVerification, `{"link":42}`, domain.ErrTemplateData},
		{"empty link", domain.KindTeamInvitation, `{"link":"  "}`, domain.ErrTemplateData},
		{"unknown kind", domain.Kind("fax"), `{"link":"x"}`, domain.ErrInvalidKind},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := domain.DecodePayload(tc.kind, json.RawMessage(tc.data))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Kind() != tc.kind {
				t.Fatalf("expected payload kind %q, got %q", tc.kind, p.Kind())
			}
		})
	}
}
