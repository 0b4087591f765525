package service

import (
	"context"
	"fmt"
	"time"

	"github.com/meridianarts/meridian-bookings/internal/domain"
	"github.com/meridianarts/meridian-bookings/internal/repo/postgres"
	"github.com/meridianarts/meridian-bookings/pkg/config"
	"github.com/meridianarts/meridian-bookings/pkg/events"
	"github.com/meridianarts/meridian-bookings/pkg/logger"
)

// Identity is the caller resolved from the request's auth context.
type Identity struct {
	UserID string
	Email  string
	Name   string
	OrgID  string
}

type GroupBookingService interface {
	Create(ctx context.Context, orgID string, in *domain.CreateBookingInput) (*domain.GroupBooking, error)
	GetDetails(ctx context.Context, bookingID string) (*domain.BookingDetails, error)
	SendInvitation(ctx context.Context, bookingID string, inviter Identity, in *domain.SendInvitationInput) (*domain.Invitation, error)
	RespondToInvitation(ctx context.Context, bookingID, invitationID string, accept bool, responder Identity) (*domain.Invitation, error)
	Join(ctx context.Context, bookingID string, identity Identity) (*domain.Participant, *domain.WaitlistEntry, error)
	PromoteWaitlistEntry(ctx context.Context, bookingID, entryID string) (*domain.Participant, error)
	RemoveWaitlistEntry(ctx context.Context, bookingID, entryID string) error
	Cancel(ctx context.Context, bookingID, reason string) error
	ConfirmDeposit(ctx context.Context, bookingID, checkoutSessionID string) error
	CompleteElapsed(ctx context.Context) (int64, error)
	ExpireInvitations(ctx context.Context) (int64, error)
}

type groupBookingService struct {
	bookingRepo    postgres.GroupBookingRepo
	invitationRepo postgres.InvitationRepo
	waitlistRepo   postgres.WaitlistRepo
	bus            events.Publisher
	cfg            *config.Config
}

func NewGroupBookingService(
	bookingRepo postgres.GroupBookingRepo,
	invitationRepo postgres.InvitationRepo,
	waitlistRepo postgres.WaitlistRepo,
	bus events.Publisher,
	cfg *config.Config,
) GroupBookingService {
	return &groupBookingService{
		bookingRepo:    bookingRepo,
		invitationRepo: invitationRepo,
		waitlistRepo:   waitlistRepo,
		bus:            bus,
		cfg:            cfg,
	}
}

func (s *groupBookingService) Create(ctx context.Context, orgID string, in *domain.CreateBookingInput) (*domain.GroupBooking, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.StartsAt.Before(time.Now()) {
		return nil, domain.E(domain.KindValidation, "starts_at must be in the future")
	}

	booking, err := s.bookingRepo.Create(ctx, orgID, in)
	if err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	s.publish(ctx, events.BookingCreated, events.BookingCreatedEvent{
		BookingID: booking.ID,
		OrgID:     booking.OrgID,
		Title:     booking.Title,
		Resource:  booking.Resource,
		StartsAt:  booking.StartsAt,
		EndsAt:    booking.EndsAt,
		Capacity:  booking.Capacity,
		CreatedAt: booking.CreatedAt,
	})

	return booking, nil
}

// GetDetails assembles the booking aggregate from its dependent tables.
func (s *groupBookingService) GetDetails(ctx context.Context, bookingID string) (*domain.BookingDetails, error) {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if booking == nil {
		return nil, domain.E(domain.KindNotFound, "booking not found")
	}

	participants, err := s.bookingRepo.ListParticipants(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	invitations, err := s.invitationRepo.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	waitlist, err := s.waitlistRepo.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list waitlist: %w", err)
	}

	return &domain.BookingDetails{
		Booking:          *booking,
		Participants:     participants,
		Invitations:      invitations,
		Waitlist:         waitlist,
		ParticipantCount: len(participants),
	}, nil
}

// SendInvitation records a pending invitation. The email itself goes out via
// the event bus, so a delivery failure never rolls back the invitation row.
func (s *groupBookingService) SendInvitation(ctx context.Context, bookingID string, inviter Identity, in *domain.SendInvitationInput) (*domain.Invitation, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if booking == nil {
		return nil, domain.E(domain.KindNotFound, "booking not found")
	}
	if booking.Status.Terminal() {
		return nil, domain.E(domain.KindConflict, "booking is %s", booking.Status)
	}

	inv, err := s.invitationRepo.Create(ctx, bookingID, inviter.UserID, inviter.Email, in)
	if err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	s.publish(ctx, events.InvitationCreated, events.InvitationCreatedEvent{
		InvitationID: inv.ID,
		BookingID:    booking.ID,
		BookingTitle: booking.Title,
		InviterEmail: inviter.Email,
		InvitedEmail: inv.InvitedEmail,
		InvitedName:  inv.InvitedName,
		Message:      inv.Message,
		StartsAt:     booking.StartsAt,
		CreatedAt:    inv.CreatedAt,
	})

	return inv, nil
}

// RespondToInvitation moves a pending invitation to accepted or declined.
// Accepting also joins the responder: a slot when one is open, the waitlist
// when the booking is full.
func (s *groupBookingService) RespondToInvitation(ctx context.Context, bookingID, invitationID string, accept bool, responder Identity) (*domain.Invitation, error) {
	inv, err := s.invitationRepo.GetByID(ctx, invitationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	if inv == nil {
		return nil, domain.E(domain.KindNotFound, "invitation not found")
	}
	if inv.BookingID != bookingID {
		return nil, domain.E(domain.KindValidation, "invitation does not belong to this booking")
	}
	if inv.Status != domain.InvitationPending {
		return nil, domain.E(domain.KindConflict, "invitation is already %s", inv.Status)
	}

	target := domain.InvitationDeclined
	if accept {
		target = domain.InvitationAccepted
	}

	ok, err := s.invitationRepo.UpdateStatus(ctx, invitationID, domain.InvitationPending, target)
	if err != nil {
		return nil, fmt.Errorf("failed to update invitation: %w", err)
	}
	if !ok {
		return nil, domain.E(domain.KindConflict, "invitation was already responded to")
	}
	inv.Status = target

	if accept {
		if _, _, err := s.Join(ctx, bookingID, responder); err != nil && !domain.IsConflict(err) {
			logger.ErrorContext(ctx, "Failed to join booking after accepting invitation",
				"error", err, "booking_id", bookingID, "invitation_id", invitationID)
		}
	}

	s.publish(ctx, events.InvitationResponded, events.InvitationRespondedEvent{
		InvitationID: inv.ID,
		BookingID:    bookingID,
		Status:       string(inv.Status),
		RespondedAt:  time.Now(),
	})

	return inv, nil
}

func (s *groupBookingService) Join(ctx context.Context, bookingID string, identity Identity) (*domain.Participant, *domain.WaitlistEntry, error) {
	participant, entry, err := s.bookingRepo.Join(ctx, bookingID, identity.UserID, identity.Email, identity.Name)
	if err != nil {
		return nil, nil, err
	}

	if entry != nil {
		s.publish(ctx, events.WaitlistJoined, events.WaitlistJoinedEvent{
			EntryID:   entry.ID,
			BookingID: bookingID,
			Email:     entry.Email,
			JoinedAt:  entry.CreatedAt,
		})
	}

	return participant, entry, nil
}

func (s *groupBookingService) PromoteWaitlistEntry(ctx context.Context, bookingID, entryID string) (*domain.Participant, error) {
	participant, err := s.bookingRepo.PromoteWaitlistEntry(ctx, bookingID, entryID)
	if err != nil {
		return nil, err
	}

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	title := ""
	if err == nil && booking != nil {
		title = booking.Title
	}

	s.publish(ctx, events.WaitlistPromoted, events.WaitlistPromotedEvent{
		EntryID:       entryID,
		BookingID:     bookingID,
		BookingTitle:  title,
		ParticipantID: participant.ID,
		Email:         participant.Email,
		PromotedAt:    participant.JoinedAt,
	})

	return participant, nil
}

func (s *groupBookingService) RemoveWaitlistEntry(ctx context.Context, bookingID, entryID string) error {
	entry, err := s.waitlistRepo.GetByID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("failed to get waitlist entry: %w", err)
	}
	if entry == nil {
		return domain.E(domain.KindNotFound, "waitlist entry not found")
	}
	if entry.BookingID != bookingID {
		return domain.E(domain.KindValidation, "waitlist entry does not belong to this booking")
	}

	ok, err := s.waitlistRepo.Remove(ctx, entryID)
	if err != nil {
		return fmt.Errorf("failed to remove waitlist entry: %w", err)
	}
	if !ok {
		return domain.E(domain.KindConflict, "waitlist entry is already %s", entry.Status)
	}
	return nil
}

func (s *groupBookingService) Cancel(ctx context.Context, bookingID, reason string) error {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("failed to get booking: %w", err)
	}
	if booking == nil {
		return domain.E(domain.KindNotFound, "booking not found")
	}
	if booking.Status.Terminal() {
		return domain.E(domain.KindConflict, "booking is already %s", booking.Status)
	}

	ok, err := s.bookingRepo.Cancel(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	if !ok {
		return domain.E(domain.KindConflict, "booking can no longer be cancelled")
	}

	s.publish(ctx, events.BookingCanceled, events.BookingCanceledEvent{
		BookingID:  bookingID,
		OrgID:      booking.OrgID,
		Reason:     reason,
		CanceledAt: time.Now(),
	})

	return nil
}

// ConfirmDeposit is driven by the payment provider webhook.
func (s *groupBookingService) ConfirmDeposit(ctx context.Context, bookingID, checkoutSessionID string) error {
	ok, err := s.bookingRepo.MarkDepositPaid(ctx, bookingID, checkoutSessionID)
	if err != nil {
		return fmt.Errorf("failed to mark deposit paid: %w", err)
	}
	if !ok {
		return domain.E(domain.KindNotFound, "no booking awaiting a deposit for this payment")
	}

	s.publish(ctx, events.DepositPaid, events.DepositPaidEvent{
		BookingID:         bookingID,
		CheckoutSessionID: checkoutSessionID,
		PaidAt:            time.Now(),
	})

	return nil
}

func (s *groupBookingService) CompleteElapsed(ctx context.Context) (int64, error) {
	now := time.Now()
	ids, err := s.bookingRepo.CompleteElapsed(ctx, now)
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		s.publish(ctx, events.BookingCompleted, events.BookingCompletedEvent{
			BookingID:   id,
			CompletedAt: now,
		})
	}

	return int64(len(ids)), nil
}

func (s *groupBookingService) ExpireInvitations(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.cfg.App.InvitationTTL)
	return s.invitationRepo.ExpireOlderThan(ctx, cutoff)
}

func (s *groupBookingService) publish(ctx context.Context, subject string, event any) {
	if err := s.bus.Publish(ctx, subject, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish event", "error", err, "subject", subject)
	}
}
