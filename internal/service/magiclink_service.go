package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridianarts/meridian-bookings/internal/domain"
	"github.com/meridianarts/meridian-bookings/internal/repo/postgres"
	"github.com/meridianarts/meridian-bookings/pkg/config"
	"github.com/meridianarts/meridian-bookings/pkg/events"
	"github.com/meridianarts/meridian-bookings/pkg/logger"
)

type MagicLinkService interface {
	Generate(ctx context.Context, in *domain.GenerateMagicLinkInput) (*domain.MagicLinkToken, string, error)
	Validate(ctx context.Context, token string) (*domain.MagicLinkValidation, error)
	TrackUsage(ctx context.Context, token, action string) (*domain.MagicLinkToken, error)
}

type magicLinkService struct {
	repo postgres.MagicLinkRepo
	bus  events.Publisher
	cfg  *config.Config
}

func NewMagicLinkService(repo postgres.MagicLinkRepo, bus events.Publisher, cfg *config.Config) MagicLinkService {
	return &magicLinkService{repo: repo, bus: bus, cfg: cfg}
}

// Generate mints a fresh single-use token for the (email, survey, org)
// triple. Repeated calls mint independent tokens; each stays valid until it
// is completed or expires.
func (s *magicLinkService) Generate(ctx context.Context, in *domain.GenerateMagicLinkInput) (*domain.MagicLinkToken, string, error) {
	if err := in.Validate(); err != nil {
		return nil, "", err
	}

	expiresAt := time.Now().Add(s.cfg.App.MagicLinkTTL)
	if in.ExpiresAt != nil {
		expiresAt = *in.ExpiresAt
	}
	if !expiresAt.After(time.Now()) {
		return nil, "", domain.E(domain.KindValidation, "expires_at must be in the future")
	}

	token, err := s.repo.Create(ctx, uuid.NewString(), in.Email, in.SurveyID, in.OrgID, expiresAt, in.Metadata)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create magic link token: %w", err)
	}

	link := s.Link(token.Token)

	if err := s.bus.Publish(ctx, events.MagicLinkIssued, events.MagicLinkIssuedEvent{
		Email:     token.Email,
		SurveyID:  token.SurveyID,
		OrgID:     token.OrgID,
		Link:      link,
		ExpiresAt: token.ExpiresAt,
		IssuedAt:  token.CreatedAt,
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to publish magic link issued event", "error", err)
	}

	return token, link, nil
}

// Link builds the public survey-completion URL for a token.
func (s *magicLinkService) Link(token string) string {
	return s.cfg.App.PublicBaseURL + "/surveys/complete?token=" + token
}

// Validate never returns an error for an expected invalidity; unknown,
// expired and completed tokens all come back as Valid=false with a reason.
func (s *magicLinkService) Validate(ctx context.Context, token string) (*domain.MagicLinkValidation, error) {
	t, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}
	if t == nil {
		return &domain.MagicLinkValidation{Valid: false, Reason: "token not found"}, nil
	}
	if t.Expired(time.Now()) {
		return &domain.MagicLinkValidation{Valid: false, Reason: "token expired"}, nil
	}
	if t.Status == domain.MagicLinkCompleted {
		return &domain.MagicLinkValidation{Valid: false, Reason: "token already used"}, nil
	}

	return &domain.MagicLinkValidation{
		Valid:     true,
		Email:     t.Email,
		SurveyID:  t.SurveyID,
		OrgID:     t.OrgID,
		Status:    string(t.Status),
		ExpiresAt: t.ExpiresAt,
	}, nil
}

// TrackUsage records a usage transition. The three actions are not ordered
// against each other, but completed is terminal and expiry blocks tracking.
func (s *magicLinkService) TrackUsage(ctx context.Context, token, action string) (*domain.MagicLinkToken, error) {
	status, ok := domain.ParseTrackAction(action)
	if !ok {
		return nil, domain.E(domain.KindValidation, "action must be one of: opened, started, completed")
	}

	t, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}
	if t == nil {
		return nil, domain.E(domain.KindNotFound, "token not found")
	}
	if t.Expired(time.Now()) {
		return nil, domain.E(domain.KindConflict, "token expired")
	}
	if t.Status == domain.MagicLinkCompleted {
		return nil, domain.E(domain.KindConflict, "token already completed")
	}

	updated, err := s.repo.UpdateStatus(ctx, token, status)
	if err != nil {
		return nil, fmt.Errorf("failed to update token: %w", err)
	}
	if updated == nil {
		return nil, domain.E(domain.KindConflict, "token already completed")
	}
	return updated, nil
}
