package domain

import (
	"strings"
	"time"
)

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationExpired  InvitationStatus = "expired"
)

func ParseInvitationStatus(s string) (InvitationStatus, bool) {
	switch InvitationStatus(s) {
	case InvitationPending, InvitationAccepted, InvitationDeclined, InvitationExpired:
		return InvitationStatus(s), true
	default:
		return "", false
	}
}

// Invitation has a soft lifecycle: rows are never hard-deleted, only moved
// through status transitions.
type Invitation struct {
	ID            string           `json:"id"`
	BookingID     string           `json:"booking_id"`
	InviterUserID string           `json:"inviter_user_id"`
	InviterEmail  string           `json:"inviter_email"`
	InvitedEmail  string           `json:"invited_email"`
	InvitedName   string           `json:"invited_name,omitempty"`
	InvitedUserID *string          `json:"invited_user_id,omitempty"`
	Message       string           `json:"message,omitempty"`
	Status        InvitationStatus `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

type SendInvitationInput struct {
	InvitedEmail  string  `json:"invited_email"`
	InvitedName   string  `json:"invited_name,omitempty"`
	InvitedUserID *string `json:"invited_user_id,omitempty"`
	Message       string  `json:"message,omitempty"`
}

func (in *SendInvitationInput) Validate() error {
	if strings.TrimSpace(in.InvitedEmail) == "" {
		return E(KindValidation, "invited_email is required")
	}
	if !ValidEmail(in.InvitedEmail) {
		return E(KindValidation, "invited_email is not a valid email address")
	}
	return nil
}
