package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridianarts/meridian-bookings/internal/domain"
	"github.com/meridianarts/meridian-bookings/internal/http/response"
	"github.com/meridianarts/meridian-bookings/pkg/logger"
)

// CreateBooking opens a new group booking for the caller's organization.
func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var in domain.CreateBookingInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	claims := getClaims(r)
	booking, err := h.bookings.Create(r.Context(), claims.OrgID, &in)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to create booking", "error", err)
		response.DomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, booking)
}

// GetBookingDetails returns a booking with its participants, invitations and
// waitlist.
func (h *Handlers) GetBookingDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		response.BadRequest(w, "Invalid booking ID")
		return
	}

	details, err := h.bookings.GetDetails(r.Context(), id)
	if err != nil {
		response.DomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, details)
}

// CancelBooking moves an open or full booking to cancelled.
func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		response.BadRequest(w, "Invalid booking ID")
		return
	}

	if err := h.bookings.Cancel(r.Context(), id, "user_requested"); err != nil {
		response.DomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// JoinBooking adds the caller as a participant, or queues them on the
// waitlist when the booking is full.
func (h *Handlers) JoinBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		response.BadRequest(w, "Invalid booking ID")
		return
	}

	participant, entry, err := h.bookings.Join(r.Context(), id, identityFromRequest(r))
	if err != nil {
		response.DomainError(w, err)
		return
	}

	if entry != nil {
		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"waitlisted":     true,
			"waitlist_entry": entry,
		})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"waitlisted":  false,
		"participant": participant,
	})
}

// SendInvitation creates a pending invitation for the booking.
func (h *Handlers) SendInvitation(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		response.BadRequest(w, "Invalid booking ID")
		return
	}

	var in domain.SendInvitationInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	inv, err := h.bookings.SendInvitation(r.Context(), id, identityFromRequest(r), &in)
	if err != nil {
		response.DomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, inv)
}

type respondInvitationReq struct {
	Response string `json:"response"` // accept | decline
}

// RespondToInvitation accepts or declines a pending invitation.
func (h *Handlers) RespondToInvitation(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		response.BadRequest(w, "Invalid booking ID")
		return
	}
	invitationID, ok := parseID(chi.URLParam(r, "invitationID"))
	if !ok {
		response.BadRequest(w, "Invalid invitation ID")
		return
	}

	var req respondInvitationReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}
	if req.Response != "accept" && req.Response != "decline" {
		response.BadRequest(w, "response must be accept or decline")
		return
	}

	inv, err := h.bookings.RespondToInvitation(r.Context(), bookingID, invitationID, req.Response == "accept", identityFromRequest(r))
	if err != nil {
		response.DomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, inv)
}

type promoteWaitlistReq struct {
	WaitlistID string `json:"waitlist_id"`
}

// PromoteWaitlistEntry converts a waiting entry into a participant.
func (h *Handlers) PromoteWaitlistEntry(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		response.BadRequest(w, "Invalid booking ID")
		return
	}

	var req promoteWaitlistReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}
	entryID, ok := parseID(req.WaitlistID)
	if !ok {
		response.BadRequest(w, "Invalid waitlist ID")
		return
	}

	participant, err := h.bookings.PromoteWaitlistEntry(r.Context(), bookingID, entryID)
	if err != nil {
		response.DomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"promoted":    true,
		"participant": participant,
	})
}

// RemoveWaitlistEntry marks a waiting entry removed.
func (h *Handlers) RemoveWaitlistEntry(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		response.BadRequest(w, "Invalid booking ID")
		return
	}
	entryID, ok := parseID(chi.URLParam(r, "entryID"))
	if !ok {
		response.BadRequest(w, "Invalid waitlist entry ID")
		return
	}

	if err := h.bookings.RemoveWaitlistEntry(r.Context(), bookingID, entryID); err != nil {
		response.DomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RunSweeps completes elapsed bookings and expires stale invitations.
func (h *Handlers) RunSweeps(w http.ResponseWriter, r *http.Request) {
	completed, err := h.bookings.CompleteElapsed(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to complete elapsed bookings", "error", err)
		response.InternalError(w, "Sweep failed")
		return
	}

	expired, err := h.bookings.ExpireInvitations(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to expire invitations", "error", err)
		response.InternalError(w, "Sweep failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{
		"bookings_completed":  completed,
		"invitations_expired": expired,
	})
}
