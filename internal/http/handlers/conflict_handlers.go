package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridianarts/meridian-bookings/internal/domain"
	"github.com/meridianarts/meridian-bookings/internal/http/response"
)

// DetectConflicts runs the overlap sweep for the caller's organization.
func (h *Handlers) DetectConflicts(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)

	created, err := h.conflicts.DetectForOrganization(r.Context(), claims.OrgID)
	if err != nil {
		response.DomainError(w, err)
		return
	}

	if created == nil {
		created = []domain.Conflict{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"detected":  len(created),
		"conflicts": created,
	})
}

// ListConflicts returns the organization's conflicts, optionally filtered by
// status.
func (h *Handlers) ListConflicts(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	limit, offset := parsePagination(r)

	var statusPtr *domain.ConflictStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		switch domain.ConflictStatus(raw) {
		case domain.ConflictOpen, domain.ConflictResolved:
			st := domain.ConflictStatus(raw)
			statusPtr = &st
		default:
			response.BadRequest(w, "Invalid status parameter")
			return
		}
	}

	conflicts, err := h.conflicts.List(r.Context(), claims.OrgID, statusPtr, limit, offset)
	if err != nil {
		response.DomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, conflicts)
}

type resolveConflictReq struct {
	Resolution      string `json:"resolution"`
	ResolvedBy      string `json:"resolved_by"`
	ResolutionNotes string `json:"resolution_notes,omitempty"`
}

// ResolveConflict closes an open conflict. Re-resolving returns the stored
// record unchanged.
func (h *Handlers) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		response.BadRequest(w, "Invalid conflict ID")
		return
	}

	var req resolveConflictReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	conflict, err := h.conflicts.Resolve(r.Context(), id, req.Resolution, req.ResolvedBy, req.ResolutionNotes)
	if err != nil {
		response.DomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, conflict)
}
