package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/meridianarts/meridian-bookings/internal/http/response"
	"github.com/meridianarts/meridian-bookings/internal/service"
	"github.com/meridianarts/meridian-bookings/pkg/auth"
	"github.com/meridianarts/meridian-bookings/pkg/config"
	"github.com/meridianarts/meridian-bookings/pkg/logger"
)

type ctxKey string

const claimsKey ctxKey = "claims"

type Handlers struct {
	bookings   service.GroupBookingService
	conflicts  service.ConflictService
	magicLinks service.MagicLinkService
	cfg        *config.Config
}

func New(
	bookings service.GroupBookingService,
	conflicts service.ConflictService,
	magicLinks service.MagicLinkService,
	cfg *config.Config,
) *Handlers {
	return &Handlers{
		bookings:   bookings,
		conflicts:  conflicts,
		magicLinks: magicLinks,
		cfg:        cfg,
	}
}

// RequireAuth rejects requests without a valid bearer token.
func (h *Handlers) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := h.parseBearer(r)
		if claims == nil {
			response.Unauthorized(w, "Authentication required")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		ctx = context.WithValue(ctx, logger.UserIDKey, claims.UserID)
		ctx = context.WithValue(ctx, logger.OrgIDKey, claims.OrgID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireStaff additionally requires an organization staff or admin role.
func (h *Handlers) RequireStaff(next http.Handler) http.Handler {
	return h.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := getClaims(r)
		if claims == nil || !claims.IsStaff() {
			response.Forbidden(w, "Staff role required")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func (h *Handlers) parseBearer(r *http.Request) *auth.Claims {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil
	}

	claims, err := auth.Parse(strings.TrimPrefix(header, "Bearer "), h.cfg.Auth.JWTSecret)
	if err != nil {
		return nil
	}
	return claims
}

func getClaims(r *http.Request) *auth.Claims {
	if claims, ok := r.Context().Value(claimsKey).(*auth.Claims); ok {
		return claims
	}
	return nil
}

func identityFromRequest(r *http.Request) service.Identity {
	claims := getClaims(r)
	if claims == nil {
		return service.Identity{}
	}
	return service.Identity{
		UserID: claims.UserID,
		Email:  claims.Email,
		OrgID:  claims.OrgID,
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// parseID validates a path or body identifier as a UUID.
func parseID(raw string) (string, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}
