package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/meridianarts/meridian-bookings/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event subjects
const (
	BookingCreated   = "booking.created"
	BookingCanceled  = "booking.canceled"
	BookingCompleted = "booking.completed"
	DepositPaid      = "booking.deposit.paid"

	InvitationCreated   = "booking.invitation.created"
	InvitationResponded = "booking.invitation.responded"

	WaitlistJoined   = "booking.waitlist.joined"
	WaitlistPromoted = "booking.waitlist.promoted"

	ConflictDetected = "conflict.detected"
	ConflictResolved = "conflict.resolved"

	MagicLinkIssued = "magiclink.issued"
)

// Event payloads
type BookingCreatedEvent struct {
	BookingID string    `json:"booking_id"`
	OrgID     string    `json:"org_id"`
	Title     string    `json:"title"`
	Resource  string    `json:"resource"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Capacity  int       `json:"capacity"`
	CreatedAt time.Time `json:"created_at"`
}

type BookingCanceledEvent struct {
	BookingID  string    `json:"booking_id"`
	OrgID      string    `json:"org_id"`
	Reason     string    `json:"reason"`
	CanceledAt time.Time `json:"canceled_at"`
}

type BookingCompletedEvent struct {
	BookingID   string    `json:"booking_id"`
	CompletedAt time.Time `json:"completed_at"`
}

type DepositPaidEvent struct {
	BookingID         string    `json:"booking_id"`
	CheckoutSessionID string    `json:"checkout_session_id"`
	PaidAt            time.Time `json:"paid_at"`
}

type InvitationCreatedEvent struct {
	InvitationID string    `json:"invitation_id"`
	BookingID    string    `json:"booking_id"`
	BookingTitle string    `json:"booking_title"`
	InviterEmail string    `json:"inviter_email"`
	InvitedEmail string    `json:"invited_email"`
	InvitedName  string    `json:"invited_name"`
	Message      string    `json:"message"`
	StartsAt     time.Time `json:"starts_at"`
	CreatedAt    time.Time `json:"created_at"`
}

type InvitationRespondedEvent struct {
	InvitationID string    `json:"invitation_id"`
	BookingID    string    `json:"booking_id"`
	Status       string    `json:"status"`
	RespondedAt  time.Time `json:"responded_at"`
}

type WaitlistJoinedEvent struct {
	EntryID   string    `json:"entry_id"`
	BookingID string    `json:"booking_id"`
	Email     string    `json:"email"`
	JoinedAt  time.Time `json:"joined_at"`
}

type WaitlistPromotedEvent struct {
	EntryID       string    `json:"entry_id"`
	BookingID     string    `json:"booking_id"`
	BookingTitle  string    `json:"booking_title"`
	ParticipantID string    `json:"participant_id"`
	Email         string    `json:"email"`
	PromotedAt    time.Time `json:"promoted_at"`
}

type ConflictDetectedEvent struct {
	ConflictID string    `json:"conflict_id"`
	OrgID      string    `json:"org_id"`
	BookingA   string    `json:"booking_a"`
	BookingB   string    `json:"booking_b"`
	Resource   string    `json:"resource"`
	DetectedAt time.Time `json:"detected_at"`
}

type ConflictResolvedEvent struct {
	ConflictID string    `json:"conflict_id"`
	OrgID      string    `json:"org_id"`
	Resolution string    `json:"resolution"`
	ResolvedBy string    `json:"resolved_by"`
	ResolvedAt time.Time `json:"resolved_at"`
}

type MagicLinkIssuedEvent struct {
	Email     string    `json:"email"`
	SurveyID  string    `json:"survey_id"`
	OrgID     string    `json:"org_id"`
	Link      string    `json:"link"`
	ExpiresAt time.Time `json:"expires_at"`
	IssuedAt  time.Time `json:"issued_at"`
}
