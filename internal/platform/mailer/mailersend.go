package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

type MailerSendClient struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	enabled bool
}

func NewMailerSend(apiKey, fromName, fromEmail string) *MailerSendClient {
	m := &MailerSendClient{
		enabled: apiKey != "" && fromEmail != "",
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}

	if m.enabled {
		m.client = mailersend.NewMailersend(apiKey)
	}

	return m
}

func (m *MailerSendClient) SendInvitationEmail(toEmail, toName, bookingTitle, inviterEmail, message string, startsAt time.Time) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	subject := fmt.Sprintf("You're invited: %s", bookingTitle)
	when := startsAt.Format("Monday, 2 January 2006 at 15:04")

	var note string
	if strings.TrimSpace(message) != "" {
		note = fmt.Sprintf("<blockquote>%s</blockquote>", message)
	}

	html := fmt.Sprintf(`
		<h2>You've been invited to %s</h2>
		<p>%s invited you to join a session on %s.</p>
		%s
		<p>Sign in to your account to accept or decline.</p>
	`, bookingTitle, inviterEmail, when, note)

	text := fmt.Sprintf("%s invited you to join %q on %s. Sign in to accept or decline.", inviterEmail, bookingTitle, when)

	return m.sendEmail(toEmail, toName, subject, text, html)
}

func (m *MailerSendClient) SendMagicLinkEmail(toEmail, link string, expiresAt time.Time) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	subject := "Your survey link"
	html := fmt.Sprintf(`
		<h2>Your survey is ready</h2>
		<p>Click the link below to complete your survey:</p>
		<p><a href="%s" style="background-color: #4B0082; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Complete Survey</a></p>
		<p>This link is personal and expires on %s.</p>
	`, link, expiresAt.Format("2 January 2006"))

	text := fmt.Sprintf("Complete your survey here: %s\n\nThis link expires on %s.", link, expiresAt.Format("2 January 2006"))

	return m.sendEmail(toEmail, "", subject, text, html)
}

func (m *MailerSendClient) sendEmail(toEmail, toName, subject, text, html string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Name: toName, Email: toEmail}})
	msg.SetSubject(subject)

	if strings.TrimSpace(text) != "" {
		msg.SetText(text)
	}
	if strings.TrimSpace(html) != "" {
		msg.SetHTML(html)
	}

	_, err := m.client.Email.Send(ctx, msg)
	return err
}

var _ Service = (*MailerSendClient)(nil)
