package mailer

import (
	"time"

	"github.com/meridianarts/meridian-bookings/pkg/logger"
)

// DevMailer logs emails instead of sending them.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) SendInvitationEmail(toEmail, toName, bookingTitle, inviterEmail, message string, startsAt time.Time) error {
	logger.Info("[DEV MAIL] Invitation Email",
		"to", toEmail,
		"name", toName,
		"booking_title", bookingTitle,
		"inviter", inviterEmail,
		"message", message,
		"starts_at", startsAt.Format(time.RFC3339),
	)
	return nil
}

func (d *DevMailer) SendMagicLinkEmail(toEmail, link string, expiresAt time.Time) error {
	logger.Info("[DEV MAIL] Magic Link Email",
		"to", toEmail,
		"link", link,
		"expires_at", expiresAt.Format(time.RFC3339),
	)
	return nil
}

var _ Service = (*DevMailer)(nil)
