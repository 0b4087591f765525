package mailer

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

type SMTPMailer struct {
	Host   string
	Port   int
	From   string
	User   string
	Pass   string
	UseTLS bool
}

func NewSMTPMailer(host string, port int, from, user, pass string, useTLS bool) *SMTPMailer {
	return &SMTPMailer{
		Host:   strings.TrimSpace(host),
		Port:   port,
		From:   strings.TrimSpace(from),
		User:   strings.TrimSpace(user),
		Pass:   strings.TrimSpace(pass),
		UseTLS: useTLS,
	}
}

func (s *SMTPMailer) SendInvitationEmail(toEmail, toName, bookingTitle, inviterEmail, message string, startsAt time.Time) error {
	subject := fmt.Sprintf("You're invited: %s", bookingTitle)
	when := startsAt.Format("Monday, 2 January 2006 at 15:04")

	text := fmt.Sprintf("%s invited you to join %q on %s. Sign in to accept or decline.", inviterEmail, bookingTitle, when)

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

	return s.sendEmail(toEmail, toName, subject, text, html)
}

func (s *SMTPMailer) SendMagicLinkEmail(toEmail, link string, expiresAt time.Time) error {
	subject := "Your survey link"
	text := fmt.Sprintf("Complete your survey here: %s\n\nThis link expires on %s.", link, expiresAt.Format("2 January 2006"))
	html := fmt.Sprintf(`
		<h2>Your survey is ready</h2>
		<p>Click the link below to complete your survey:</p>
		<p><a href="%s" style="background-color: #4B0082; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Complete Survey</a></p>
		<p>This link is personal and expires on %s.</p>
	`, link, expiresAt.Format("2 January 2006"))

	return s.sendEmail(toEmail, "", subject, text, html)
}

func (s *SMTPMailer) sendEmail(toEmail, toName, subject, text, html string) error {
	toEmail = strings.TrimSpace(toEmail)
	if toEmail == "" {
		return fmt.Errorf("empty recipient email")
	}

	var buf bytes.Buffer
	boundary := "mixed-boundary"

	fmt.Fprintf(&buf, "From: %s\r\n", s.From)
	fmt.Fprintf(&buf, "To: %s\r\n", toEmail)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", boundary)

	// Text part
	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	fmt.Fprintf(&buf, "Content-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&buf, "%s\r\n\r\n", text)

	// HTML part
	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	fmt.Fprintf(&buf, "Content-Type: text/html; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&buf, "%s\r\n\r\n", html)

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)

	// Mailpit or development SMTP (no auth, no TLS)
	if !s.UseTLS && s.User == "" {
		return smtp.SendMail(addr, nil, s.From, []string{toEmail}, buf.Bytes())
	}

	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Pass, s.Host)
	}

	// Try plain SMTP first (with STARTTLS if supported)
	if err := smtp.SendMail(addr, auth, s.From, []string{toEmail}, buf.Bytes()); err == nil {
		return nil
	}

	// Fallback to implicit TLS (port 465)
	if s.UseTLS {
		tlsCfg := &tls.Config{ServerName: s.Host}
		conn, err := tls.Dial("tcp", addr, tlsCfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		c, err := smtp.NewClient(conn, s.Host)
		if err != nil {
			return err
		}
		defer c.Quit()

		if s.User != "" {
			if err := c.Auth(auth); err != nil {
				return err
			}
		}

		if err := c.Mail(s.From); err != nil {
			return err
		}
		if err := c.Rcpt(toEmail); err != nil {
			return err
		}

		w, err := c.Data()
		if err != nil {
			return err
		}

		if _, err := w.Write(buf.Bytes()); err != nil {
			return err
		}

		return w.Close()
	}

	return fmt.Errorf("smtp send failed")
}

var _ Service = (*SMTPMailer)(nil)
