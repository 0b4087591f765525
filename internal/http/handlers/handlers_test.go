package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridianarts/meridian-bookings/internal/domain"
	"github.com/meridianarts/meridian-bookings/internal/http/handlers"
	"github.com/meridianarts/meridian-bookings/internal/service"
	"github.com/meridianarts/meridian-bookings/pkg/auth"
	"github.com/meridianarts/meridian-bookings/pkg/config"
)

const testSecret = "test-secret"

// ---------- Mocks ----------

type mockBookingService struct {
	bookings map[string]*domain.GroupBooking
	// when full, Join answers with a waitlist entry instead of a participant
	full bool
}

func newMockBookingService() *mockBookingService {
	return &mockBookingService{bookings: make(map[string]*domain.GroupBooking)}
}

func (m *mockBookingService) Create(_ context.Context, orgID string, in *domain.CreateBookingInput) (*domain.GroupBooking, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	b := &domain.GroupBooking{
		ID:       uuid.NewString(),
		OrgID:    orgID,
		Title:    in.Title,
		Resource: in.Resource,
		StartsAt: in.StartsAt,
		EndsAt:   in.EndsAt,
		Capacity: in.Capacity,
		Status:   domain.BookingOpen,
	}
	m.bookings[b.ID] = b
	return b, nil
}

func (m *mockBookingService) GetDetails(_ context.Context, bookingID string) (*domain.BookingDetails, error) {
	b, ok := m.bookings[bookingID]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "booking not found")
	}
	return &domain.BookingDetails{Booking: *b}, nil
}

func (m *mockBookingService) SendInvitation(_ context.Context, bookingID string, inviter service.Identity, in *domain.SendInvitationInput) (*domain.Invitation, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if _, ok := m.bookings[bookingID]; !ok {
		return nil, domain.E(domain.KindNotFound, "booking not found")
	}
	return &domain.Invitation{
		ID:           uuid.NewString(),
		BookingID:    bookingID,
		InviterEmail: inviter.Email,
		InvitedEmail: in.InvitedEmail,
		Status:       domain.InvitationPending,
	}, nil
}

func (m *mockBookingService) RespondToInvitation(_ context.Context, bookingID, invitationID string, accept bool, _ service.Identity) (*domain.Invitation, error) {
	status := domain.InvitationDeclined
	if accept {
		status = domain.InvitationAccepted
	}
	return &domain.Invitation{ID: invitationID, BookingID: bookingID, Status: status}, nil
}

func (m *mockBookingService) Join(_ context.Context, bookingID string, identity service.Identity) (*domain.Participant, *domain.WaitlistEntry, error) {
	if _, ok := m.bookings[bookingID]; !ok {
		return nil, nil, domain.E(domain.KindNotFound, "booking not found")
	}
	if m.full {
		return nil, &domain.WaitlistEntry{
			ID:        uuid.NewString(),
			BookingID: bookingID,
			UserID:    identity.UserID,
			Email:     identity.Email,
			Status:    domain.WaitlistWaiting,
		}, nil
	}
	return &domain.Participant{
		ID:        uuid.NewString(),
		BookingID: bookingID,
		UserID:    identity.UserID,
		Email:     identity.Email,
		Role:      domain.RoleAttendee,
	}, nil, nil
}

func (m *mockBookingService) PromoteWaitlistEntry(_ context.Context, bookingID, entryID string) (*domain.Participant, error) {
	if m.full {
		return nil, domain.E(domain.KindConflict, "booking is at capacity")
	}
	return &domain.Participant{ID: uuid.NewString(), BookingID: bookingID}, nil
}

func (m *mockBookingService) RemoveWaitlistEntry(context.Context, string, string) error { return nil }

func (m *mockBookingService) Cancel(_ context.Context, bookingID, _ string) error {
	b, ok := m.bookings[bookingID]
	if !ok {
		return domain.E(domain.KindNotFound, "booking not found")
	}
	if b.Status.Terminal() {
		return domain.E(domain.KindConflict, "booking is already %s", b.Status)
	}
	b.Status = domain.BookingCancelled
	return nil
}

func (m *mockBookingService) ConfirmDeposit(context.Context, string, string) error { return nil }

func (m *mockBookingService) CompleteElapsed(context.Context) (int64, error) { return 2, nil }

func (m *mockBookingService) ExpireInvitations(context.Context) (int64, error) { return 3, nil }

type mockConflictService struct {
	conflicts map[string]*domain.Conflict
}

func newMockConflictService() *mockConflictService {
	return &mockConflictService{conflicts: make(map[string]*domain.Conflict)}
}

func (m *mockConflictService) DetectForOrganization(_ context.Context, orgID string) ([]domain.Conflict, error) {
	var out []domain.Conflict
	for _, c := range m.conflicts {
		if c.OrgID == orgID && c.Status == domain.ConflictOpen {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockConflictService) Resolve(_ context.Context, conflictID, resolution, resolvedBy, notes string) (*domain.Conflict, error) {
	if resolution == "" || resolvedBy == "" {
		return nil, domain.E(domain.KindValidation, "resolution and resolved_by are required")
	}
	c, ok := m.conflicts[conflictID]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "conflict not found")
	}
	if c.Status == domain.ConflictOpen {
		now := time.Now()
		c.Status = domain.ConflictResolved
		c.Resolution = resolution
		c.ResolvedBy = resolvedBy
		c.ResolutionNotes = notes
		c.ResolvedAt = &now
	}
	return c, nil
}

func (m *mockConflictService) List(_ context.Context, orgID string, status *domain.ConflictStatus, _, _ int) ([]domain.Conflict, error) {
	var out []domain.Conflict
	for _, c := range m.conflicts {
		if c.OrgID != orgID {
			continue
		}
		if status != nil && c.Status != *status {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

type mockMagicLinkService struct {
	tokens map[string]*domain.MagicLinkToken
}

func newMockMagicLinkService() *mockMagicLinkService {
	return &mockMagicLinkService{tokens: make(map[string]*domain.MagicLinkToken)}
}

func (m *mockMagicLinkService) Generate(_ context.Context, in *domain.GenerateMagicLinkInput) (*domain.MagicLinkToken, string, error) {
	if err := in.Validate(); err != nil {
		return nil, "", err
	}
	t := &domain.MagicLinkToken{
		ID:        uuid.NewString(),
		Token:     uuid.NewString(),
		Email:     in.Email,
		SurveyID:  in.SurveyID,
		OrgID:     in.OrgID,
		Status:    domain.MagicLinkIssued,
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
	}
	m.tokens[t.Token] = t
	return t, "http://localhost:8080/surveys/complete?token=" + t.Token, nil
}

func (m *mockMagicLinkService) Validate(_ context.Context, token string) (*domain.MagicLinkValidation, error) {
	t, ok := m.tokens[token]
	if !ok {
		return &domain.MagicLinkValidation{Valid: false, Reason: "token not found"}, nil
	}
	if t.Status == domain.MagicLinkCompleted {
		return &domain.MagicLinkValidation{Valid: false, Reason: "token already used"}, nil
	}
	return &domain.MagicLinkValidation{Valid: true, Email: t.Email, SurveyID: t.SurveyID, OrgID: t.OrgID}, nil
}

func (m *mockMagicLinkService) TrackUsage(_ context.Context, token, action string) (*domain.MagicLinkToken, error) {
	status, ok := domain.ParseTrackAction(action)
	if !ok {
		return nil, domain.E(domain.KindValidation, "action must be one of: opened, started, completed")
	}
	t, exists := m.tokens[token]
	if !exists {
		return nil, domain.E(domain.KindNotFound, "token not found")
	}
	if t.Status == domain.MagicLinkCompleted {
		return nil, domain.E(domain.KindConflict, "token already completed")
	}
	t.Status = status
	return t, nil
}

// ---------- Test Setup ----------

func setupTestServer() (*httptest.Server, *mockBookingService, *mockConflictService, *mockMagicLinkService) {
	bookings := newMockBookingService()
	conflicts := newMockConflictService()
	magicLinks := newMockMagicLinkService()

	cfg := &config.Config{
		Auth: config.AuthConfig{JWTSecret: testSecret},
	}

	h := handlers.New(bookings, conflicts, magicLinks, cfg)

	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Route("/bookings", func(r chi.Router) {
			r.With(h.RequireStaff).Post("/", h.CreateBooking)
			r.Route("/{id}", func(r chi.Router) {
				r.With(h.RequireAuth).Get("/", h.GetBookingDetails)
				r.With(h.RequireStaff).Delete("/", h.CancelBooking)
				r.With(h.RequireAuth).Post("/join", h.JoinBooking)
				r.Route("/invitations", func(r chi.Router) {
					r.Use(h.RequireAuth)
					r.Post("/", h.SendInvitation)
					r.Post("/{invitationID}/respond", h.RespondToInvitation)
				})
				r.Route("/waitlist", func(r chi.Router) {
					r.Use(h.RequireStaff)
					r.Post("/promote", h.PromoteWaitlistEntry)
					r.Delete("/{entryID}", h.RemoveWaitlistEntry)
				})
			})
		})
		r.Route("/conflicts", func(r chi.Router) {
			r.Use(h.RequireStaff)
			r.Post("/detect", h.DetectConflicts)
			r.Get("/", h.ListConflicts)
			r.Post("/{id}/resolve", h.ResolveConflict)
		})
		r.Route("/magic-links", func(r chi.Router) {
			r.With(h.RequireStaff).Post("/", h.CreateMagicLink)
			r.Get("/validate", h.ValidateMagicLink)
			r.Post("/track", h.TrackMagicLink)
		})
		r.With(h.RequireStaff).Post("/admin/sweeps", h.RunSweeps)
	})

	return httptest.NewServer(r), bookings, conflicts, magicLinks
}

func token(t *testing.T, role string) string {
	t.Helper()

	tok, err := auth.NewToken("user-1", "user1@example.com", "org-1", role, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("failed to mint token: %v", err)
	}
	return tok
}

func doJSON(t *testing.T, method, url, bearer string, body interface{}, expectedStatus int) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	if resp.StatusCode != expectedStatus {
		t.Fatalf("%s %s: expected status %d, got %d", method, url, expectedStatus, resp.StatusCode)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, into interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func validCreateBody() map[string]interface{} {
	return map[string]interface{}{
		"title":     "Evening rehearsal",
		"resource":  "studio-1",
		"starts_at": time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		"ends_at":   time.Now().Add(26 * time.Hour).Format(time.RFC3339),
		"capacity":  8,
	}
}

// ---------- Tests ----------

func TestCreateBooking_RequiresStaff(t *testing.T) {
	server, _, _, _ := setupTestServer()
	defer server.Close()

	url := server.URL + "/v1/bookings"

	doJSON(t, "POST", url, "", validCreateBody(), http.StatusUnauthorized)
	doJSON(t, "POST", url, token(t, auth.RoleMember), validCreateBody(), http.StatusForbidden)

	resp := doJSON(t, "POST", url, token(t, auth.RoleStaff), validCreateBody(), http.StatusCreated)

	var booking domain.GroupBooking
	decode(t, resp, &booking)
	if booking.ID == "" || booking.OrgID != "org-1" {
		t.Fatalf("unexpected booking: %+v", booking)
	}
}

func TestCreateBooking_InvalidInput(t *testing.T) {
	server, _, _, _ := setupTestServer()
	defer server.Close()

	body := validCreateBody()
	body["capacity"] = 0
	doJSON(t, "POST", server.URL+"/v1/bookings", token(t, auth.RoleStaff), body, http.StatusBadRequest)
}

func TestGetBookingDetails(t *testing.T) {
	server, bookings, _, _ := setupTestServer()
	defer server.Close()

	b, _ := bookings.Create(context.Background(), "org-1", &domain.CreateBookingInput{
		Title: "Show", Resource: "stage", Capacity: 4,
		StartsAt: time.Now().Add(time.Hour), EndsAt: time.Now().Add(2 * time.Hour),
	})

	resp := doJSON(t, "GET", server.URL+"/v1/bookings/"+b.ID, token(t, auth.RoleMember), nil, http.StatusOK)

	var details domain.BookingDetails
	decode(t, resp, &details)
	if details.Booking.ID != b.ID {
		t.Fatalf("expected booking %s, got %s", b.ID, details.Booking.ID)
	}

	// Unknown booking
	doJSON(t, "GET", server.URL+"/v1/bookings/"+uuid.NewString(), token(t, auth.RoleMember), nil, http.StatusNotFound)

	// Malformed ID
	doJSON(t, "GET", server.URL+"/v1/bookings/not-a-uuid", token(t, auth.RoleMember), nil, http.StatusBadRequest)
}

func TestJoinBooking_ParticipantAndWaitlist(t *testing.T) {
	server, bookings, _, _ := setupTestServer()
	defer server.Close()

	b, _ := bookings.Create(context.Background(), "org-1", &domain.CreateBookingInput{
		Title: "Workshop", Resource: "room-2", Capacity: 1,
		StartsAt: time.Now().Add(time.Hour), EndsAt: time.Now().Add(2 * time.Hour),
	})
	joinURL := server.URL + "/v1/bookings/" + b.ID + "/join"

	resp := doJSON(t, "POST", joinURL, token(t, auth.RoleMember), nil, http.StatusCreated)
	var joined struct {
		Waitlisted  bool                `json:"waitlisted"`
		Participant *domain.Participant `json:"participant"`
	}
	decode(t, resp, &joined)
	if joined.Waitlisted || joined.Participant == nil {
		t.Fatalf("expected a direct join, got %+v", joined)
	}

	// Full booking waitlists with 202
	bookings.full = true
	resp = doJSON(t, "POST", joinURL, token(t, auth.RoleMember), nil, http.StatusAccepted)
	var waitlisted struct {
		Waitlisted    bool                  `json:"waitlisted"`
		WaitlistEntry *domain.WaitlistEntry `json:"waitlist_entry"`
	}
	decode(t, resp, &waitlisted)
	if !waitlisted.Waitlisted || waitlisted.WaitlistEntry == nil {
		t.Fatalf("expected a waitlist response, got %+v", waitlisted)
	}
}

func TestRespondToInvitation_ValidatesResponse(t *testing.T) {
	server, bookings, _, _ := setupTestServer()
	defer server.Close()

	b, _ := bookings.Create(context.Background(), "org-1", &domain.CreateBookingInput{
		Title: "Show", Resource: "stage", Capacity: 4,
		StartsAt: time.Now().Add(time.Hour), EndsAt: time.Now().Add(2 * time.Hour),
	})
	url := server.URL + "/v1/bookings/" + b.ID + "/invitations/" + uuid.NewString() + "/respond"

	doJSON(t, "POST", url, token(t, auth.RoleMember), map[string]string{"response": "maybe"}, http.StatusBadRequest)

	resp := doJSON(t, "POST", url, token(t, auth.RoleMember), map[string]string{"response": "accept"}, http.StatusOK)
	var inv domain.Invitation
	decode(t, resp, &inv)
	if inv.Status != domain.InvitationAccepted {
		t.Fatalf("expected accepted, got %s", inv.Status)
	}
}

func TestPromoteWaitlist_FullBooking_Conflict(t *testing.T) {
	server, bookings, _, _ := setupTestServer()
	defer server.Close()

	b, _ := bookings.Create(context.Background(), "org-1", &domain.CreateBookingInput{
		Title: "Workshop", Resource: "room-2", Capacity: 1,
		StartsAt: time.Now().Add(time.Hour), EndsAt: time.Now().Add(2 * time.Hour),
	})
	bookings.full = true

	url := server.URL + "/v1/bookings/" + b.ID + "/waitlist/promote"
	body := map[string]string{"waitlist_id": uuid.NewString()}

	doJSON(t, "POST", url, token(t, auth.RoleMember), body, http.StatusForbidden)
	doJSON(t, "POST", url, token(t, auth.RoleStaff), body, http.StatusConflict)
}

func TestCancelBooking(t *testing.T) {
	server, bookings, _, _ := setupTestServer()
	defer server.Close()

	b, _ := bookings.Create(context.Background(), "org-1", &domain.CreateBookingInput{
		Title: "Show", Resource: "stage", Capacity: 4,
		StartsAt: time.Now().Add(time.Hour), EndsAt: time.Now().Add(2 * time.Hour),
	})
	url := server.URL + "/v1/bookings/" + b.ID

	doJSON(t, "DELETE", url, token(t, auth.RoleStaff), nil, http.StatusNoContent)
	// Double cancel conflicts
	doJSON(t, "DELETE", url, token(t, auth.RoleStaff), nil, http.StatusConflict)
}

func TestResolveConflict(t *testing.T) {
	server, _, conflicts, _ := setupTestServer()
	defer server.Close()

	id := uuid.NewString()
	conflicts.conflicts[id] = &domain.Conflict{
		ID: id, OrgID: "org-1", BookingA: uuid.NewString(), BookingB: uuid.NewString(),
		Resource: "studio-1", Status: domain.ConflictOpen,
	}
	url := server.URL + "/v1/conflicts/" + id + "/resolve"

	doJSON(t, "POST", url, token(t, auth.RoleStaff), map[string]string{}, http.StatusBadRequest)

	body := map[string]string{"resolution": "rescheduled", "resolved_by": "staff-1"}
	resp := doJSON(t, "POST", url, token(t, auth.RoleStaff), body, http.StatusOK)

	var c domain.Conflict
	decode(t, resp, &c)
	if c.Status != domain.ConflictResolved {
		t.Fatalf("expected resolved, got %s", c.Status)
	}

	// Idempotent re-resolve
	doJSON(t, "POST", url, token(t, auth.RoleStaff), body, http.StatusOK)
}

func TestMagicLinks_EndToEnd(t *testing.T) {
	server, _, _, _ := setupTestServer()
	defer server.Close()

	// Issue (staff only)
	createBody := map[string]string{
		"email":     "alice@example.com",
		"survey_id": "post-show-2026",
		"org_id":    "org-1",
	}
	doJSON(t, "POST", server.URL+"/v1/magic-links", "", createBody, http.StatusUnauthorized)

	resp := doJSON(t, "POST", server.URL+"/v1/magic-links", token(t, auth.RoleStaff), createBody, http.StatusCreated)
	var created struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
		Link    string `json:"link"`
	}
	decode(t, resp, &created)
	if !created.Success || created.Token == "" || created.Link == "" {
		t.Fatalf("unexpected create response: %+v", created)
	}

	// Validate is public
	resp = doJSON(t, "GET", server.URL+"/v1/magic-links/validate?token="+created.Token, "", nil, http.StatusOK)
	var validation domain.MagicLinkValidation
	decode(t, resp, &validation)
	if !validation.Valid {
		t.Fatalf("fresh token invalid: %s", validation.Reason)
	}

	// Track through to completion
	trackURL := server.URL + "/v1/magic-links/track"
	doJSON(t, "POST", trackURL, "", map[string]string{"token": created.Token, "action": "finished"}, http.StatusBadRequest)
	doJSON(t, "POST", trackURL, "", map[string]string{"token": created.Token, "action": "completed"}, http.StatusOK)

	// Completed token no longer validates
	resp = doJSON(t, "GET", server.URL+"/v1/magic-links/validate?token="+created.Token, "", nil, http.StatusOK)
	decode(t, resp, &validation)
	if validation.Valid || validation.Reason != "token already used" {
		t.Fatalf("completed token still valid: %+v", validation)
	}

	// Tracking a completed token conflicts
	doJSON(t, "POST", trackURL, "", map[string]string{"token": created.Token, "action": "opened"}, http.StatusConflict)
}

func TestValidateMagicLink_UnknownToken(t *testing.T) {
	server, _, _, _ := setupTestServer()
	defer server.Close()

	resp := doJSON(t, "GET", server.URL+"/v1/magic-links/validate?token=nope", "", nil, http.StatusOK)
	var validation domain.MagicLinkValidation
	decode(t, resp, &validation)
	if validation.Valid {
		t.Fatal("unknown token validated")
	}

	doJSON(t, "GET", server.URL+"/v1/magic-links/validate", "", nil, http.StatusBadRequest)
}

func TestRunSweeps(t *testing.T) {
	server, _, _, _ := setupTestServer()
	defer server.Close()

	resp := doJSON(t, "POST", server.URL+"/v1/admin/sweeps", token(t, auth.RoleAdmin), nil, http.StatusOK)
	var result map[string]int64
	decode(t, resp, &result)
	if result["bookings_completed"] != 2 || result["invitations_expired"] != 3 {
		t.Fatalf("unexpected sweep result: %v", result)
	}
}
