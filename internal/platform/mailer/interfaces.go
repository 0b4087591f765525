package mailer

import "time"

type Service interface {
	SendInvitationEmail(toEmail, toName, bookingTitle, inviterEmail, message string, startsAt time.Time) error
	SendMagicLinkEmail(toEmail, link string, expiresAt time.Time) error
}
