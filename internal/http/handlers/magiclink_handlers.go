package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/meridianarts/meridian-bookings/internal/domain"
	"github.com/meridianarts/meridian-bookings/internal/http/response"
)

// CreateMagicLink issues a single-use survey-completion link.
func (h *Handlers) CreateMagicLink(w http.ResponseWriter, r *http.Request) {
	var in domain.GenerateMagicLinkInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	token, link, err := h.magicLinks.Generate(r.Context(), &in)
	if err != nil {
		response.DomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":    true,
		"token":      token.Token,
		"link":       link,
		"expires_at": token.ExpiresAt,
	})
}

// ValidateMagicLink reports whether a token is still usable. Invalid tokens
// come back as 200 with valid=false, never an error status.
func (h *Handlers) ValidateMagicLink(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		response.BadRequest(w, "token query parameter is required")
		return
	}

	result, err := h.magicLinks.Validate(r.Context(), token)
	if err != nil {
		response.DomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type trackMagicLinkReq struct {
	Token  string `json:"token"`
	Action string `json:"action"`
}

// TrackMagicLink records a usage transition for a token.
func (h *Handlers) TrackMagicLink(w http.ResponseWriter, r *http.Request) {
	var req trackMagicLinkReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}
	if req.Token == "" {
		response.BadRequest(w, "token is required")
		return
	}

	token, err := h.magicLinks.TrackUsage(r.Context(), req.Token, req.Action)
	if err != nil {
		response.DomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"status":  token.Status,
	})
}
