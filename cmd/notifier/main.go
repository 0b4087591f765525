package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/meridianarts/meridian-bookings/internal/platform/mailer"
	"github.com/meridianarts/meridian-bookings/pkg/config"
	"github.com/meridianarts/meridian-bookings/pkg/events"
	"github.com/meridianarts/meridian-bookings/pkg/logger"
)

const queueGroup = "notifier"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	mail := newMailer(cfg)

	subscriptions := map[string]func(msg *events.Message){
		events.InvitationCreated: func(msg *events.Message) {
			var ev events.InvitationCreatedEvent
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				logger.Error("Malformed invitation event", "error", err)
				return
			}
			if err := mail.SendInvitationEmail(ev.InvitedEmail, ev.InvitedName, ev.BookingTitle, ev.InviterEmail, ev.Message, ev.StartsAt); err != nil {
				logger.Error("Failed to send invitation email",
					"error", err, "invitation_id", ev.InvitationID, "to", ev.InvitedEmail)
			}
		},
		events.MagicLinkIssued: func(msg *events.Message) {
			var ev events.MagicLinkIssuedEvent
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				logger.Error("Malformed magic link event", "error", err)
				return
			}
			if err := mail.SendMagicLinkEmail(ev.Email, ev.Link, ev.ExpiresAt); err != nil {
				logger.Error("Failed to send magic link email",
					"error", err, "survey_id", ev.SurveyID, "to", ev.Email)
			}
		},
	}

	for subject, handler := range subscriptions {
		if err := eventBus.QueueSubscribe(subject, queueGroup, handler); err != nil {
			logger.Error("Failed to subscribe", "error", err, "subject", subject)
			os.Exit(1)
		}
		logger.Info("Subscribed", "subject", subject, "queue", queueGroup)
	}

	logger.Info("Notifier running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down notifier...")
}

func newMailer(cfg *config.Config) mailer.Service {
	switch {
	case cfg.Email.DevMode:
		logger.Info("Using dev mailer")
		return mailer.NewDevMailer()
	case cfg.Email.MailerSendKey != "":
		logger.Info("Using MailerSend")
		return mailer.NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.SMTPFromName, cfg.Email.SMTPFrom)
	default:
		logger.Info("Using SMTP mailer", "host", cfg.Email.SMTPHost, "port", cfg.Email.SMTPPort)
		return mailer.NewSMTPMailer(
			cfg.Email.SMTPHost,
			cfg.Email.SMTPPort,
			cfg.Email.SMTPFrom,
			cfg.Email.SMTPUser,
			cfg.Email.SMTPPass,
			cfg.Email.SMTPUseTLS,
		)
	}
}
