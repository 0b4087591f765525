package domain

import (
	"strings"
	"time"
)

type MagicLinkStatus string

const (
	MagicLinkIssued    MagicLinkStatus = "issued"
	MagicLinkOpened    MagicLinkStatus = "opened"
	MagicLinkStarted   MagicLinkStatus = "started"
	MagicLinkCompleted MagicLinkStatus = "completed"
)

// ParseTrackAction accepts exactly the three trackable usage actions. The
// initial "issued" state is not a valid action.
func ParseTrackAction(s string) (MagicLinkStatus, bool) {
	switch MagicLinkStatus(s) {
	case MagicLinkOpened, MagicLinkStarted, MagicLinkCompleted:
		return MagicLinkStatus(s), true
	default:
		return "", false
	}
}

// MagicLinkToken is a single-use, time-bounded credential bound to an
// (email, survey, organization) triple. Repeated issuance for the same triple
// mints independent tokens.
type MagicLinkToken struct {
	ID        string          `json:"id"`
	Token     string          `json:"token"`
	Email     string          `json:"email"`
	SurveyID  string          `json:"survey_id"`
	OrgID     string          `json:"org_id"`
	Status    MagicLinkStatus `json:"status"`
	ExpiresAt time.Time       `json:"expires_at"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (t *MagicLinkToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Usable reports whether the token may still be validated or tracked.
// Completed is terminal; expiry invalidates regardless of usage state.
func (t *MagicLinkToken) Usable(now time.Time) bool {
	return !t.Expired(now) && t.Status != MagicLinkCompleted
}

type GenerateMagicLinkInput struct {
	Email     string         `json:"email"`
	SurveyID  string         `json:"survey_id"`
	OrgID     string         `json:"org_id"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (in *GenerateMagicLinkInput) Validate() error {
	if !ValidEmail(strings.TrimSpace(in.Email)) {
		return E(KindValidation, "email is not a valid email address")
	}
	if strings.TrimSpace(in.SurveyID) == "" {
		return E(KindValidation, "survey_id is required")
	}
	if strings.TrimSpace(in.OrgID) == "" {
		return E(KindValidation, "organization_id is required")
	}
	return nil
}

// MagicLinkValidation is the non-throwing validation result: invalid tokens
// produce Valid=false with a reason, never an error.
type MagicLinkValidation struct {
	Valid     bool      `json:"valid"`
	Reason    string    `json:"reason,omitempty"`
	Email     string    `json:"email,omitempty"`
	SurveyID  string    `json:"survey_id,omitempty"`
	OrgID     string    `json:"org_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}
