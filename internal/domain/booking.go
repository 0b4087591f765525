package domain

import (
	"net/mail"
	"strings"
	"time"
)

type BookingStatus string

const (
	BookingOpen      BookingStatus = "open"
	BookingFull      BookingStatus = "full"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch BookingStatus(s) {
	case BookingOpen, BookingFull, BookingCancelled, BookingCompleted:
		return BookingStatus(s), true
	default:
		return "", false
	}
}

// Terminal reports whether no further mutation is allowed.
func (s BookingStatus) Terminal() bool {
	return s == BookingCancelled || s == BookingCompleted
}

type ParticipantRole string

const (
	RoleOrganizer ParticipantRole = "organizer"
	RoleAttendee  ParticipantRole = "attendee"
)

// GroupBooking is a reservable session with a participant capacity.
type GroupBooking struct {
	ID                string        `json:"id"`
	OrgID             string        `json:"org_id"`
	Title             string        `json:"title"`
	Resource          string        `json:"resource"`
	StartsAt          time.Time     `json:"starts_at"`
	EndsAt            time.Time     `json:"ends_at"`
	Capacity          int           `json:"capacity"`
	Status            BookingStatus `json:"status"`
	DepositRequired   bool          `json:"deposit_required"`
	DepositPaid       bool          `json:"deposit_paid"`
	CheckoutSessionID string        `json:"checkout_session_id,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Overlaps reports whether two bookings contend for the same resource in
// overlapping time windows. Touching boundaries do not overlap.
func (b *GroupBooking) Overlaps(other *GroupBooking) bool {
	if b.ID == other.ID || b.Resource != other.Resource {
		return false
	}
	return b.StartsAt.Before(other.EndsAt) && other.StartsAt.Before(b.EndsAt)
}

type Participant struct {
	ID        string          `json:"id"`
	BookingID string          `json:"booking_id"`
	UserID    string          `json:"user_id"`
	Email     string          `json:"email"`
	Name      string          `json:"name"`
	Role      ParticipantRole `json:"role"`
	JoinedAt  time.Time       `json:"joined_at"`
}

type WaitlistStatus string

const (
	WaitlistWaiting  WaitlistStatus = "waiting"
	WaitlistPromoted WaitlistStatus = "promoted"
	WaitlistRemoved  WaitlistStatus = "removed"
)

// WaitlistEntry queues an identity for a slot in a full booking. Position is
// implicit in creation order.
type WaitlistEntry struct {
	ID        string         `json:"id"`
	BookingID string         `json:"booking_id"`
	UserID    string         `json:"user_id"`
	Email     string         `json:"email"`
	Status    WaitlistStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// BookingDetails aggregates a booking with its dependent entities.
type BookingDetails struct {
	Booking          GroupBooking    `json:"booking"`
	Participants     []Participant   `json:"participants"`
	Invitations      []Invitation    `json:"invitations"`
	Waitlist         []WaitlistEntry `json:"waitlist"`
	ParticipantCount int             `json:"participant_count"`
}

type CreateBookingInput struct {
	Title           string    `json:"title"`
	Resource        string    `json:"resource"`
	StartsAt        time.Time `json:"starts_at"`
	EndsAt          time.Time `json:"ends_at"`
	Capacity        int       `json:"capacity"`
	DepositRequired bool      `json:"deposit_required"`
}

func (in *CreateBookingInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return E(KindValidation, "title is required")
	}
	if strings.TrimSpace(in.Resource) == "" {
		return E(KindValidation, "resource is required")
	}
	if in.Capacity < 1 {
		return E(KindValidation, "capacity must be at least 1")
	}
	if !in.EndsAt.After(in.StartsAt) {
		return E(KindValidation, "ends_at must be after starts_at")
	}
	return nil
}

// ValidEmail reports whether s parses as a single address.
func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
