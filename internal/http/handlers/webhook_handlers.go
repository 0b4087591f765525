package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/meridianarts/meridian-bookings/internal/http/response"
	"github.com/meridianarts/meridian-bookings/pkg/logger"
)

const maxWebhookBody = 64 * 1024

// StripeWebhook verifies the provider signature and applies payment events.
// Unknown event types are acknowledged without action.
func (h *Handlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "Unable to read request body")
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), h.cfg.Payments.WebhookSecret)
	if err != nil {
		logger.WarnContext(r.Context(), "Stripe webhook signature verification failed", "error", err)
		response.BadRequest(w, "Invalid signature")
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			response.BadRequest(w, "Malformed event payload")
			return
		}

		bookingID, ok := parseID(session.Metadata["booking_id"])
		if !ok {
			logger.WarnContext(r.Context(), "Checkout session without booking metadata", "session_id", session.ID)
			break
		}

		if err := h.bookings.ConfirmDeposit(r.Context(), bookingID, session.ID); err != nil {
			logger.ErrorContext(r.Context(), "Failed to confirm deposit",
				"error", err, "booking_id", bookingID, "session_id", session.ID)
		}
	default:
		logger.DebugContext(r.Context(), "Ignoring webhook event", "type", event.Type)
	}

	w.WriteHeader(http.StatusOK)
}
