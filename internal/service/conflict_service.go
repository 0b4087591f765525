package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/meridianarts/meridian-bookings/internal/domain"
	"github.com/meridianarts/meridian-bookings/internal/repo/postgres"
	"github.com/meridianarts/meridian-bookings/pkg/events"
	"github.com/meridianarts/meridian-bookings/pkg/logger"
)

type ConflictService interface {
	DetectForOrganization(ctx context.Context, orgID string) ([]domain.Conflict, error)
	Resolve(ctx context.Context, conflictID, resolution, resolvedBy, notes string) (*domain.Conflict, error)
	List(ctx context.Context, orgID string, status *domain.ConflictStatus, limit, offset int) ([]domain.Conflict, error)
}

type conflictService struct {
	conflictRepo postgres.ConflictRepo
	bookingRepo  postgres.GroupBookingRepo
	bus          events.Publisher
}

func NewConflictService(
	conflictRepo postgres.ConflictRepo,
	bookingRepo postgres.GroupBookingRepo,
	bus events.Publisher,
) ConflictService {
	return &conflictService{
		conflictRepo: conflictRepo,
		bookingRepo:  bookingRepo,
		bus:          bus,
	}
}

// DetectForOrganization scans every pair of active bookings that share a
// resource and flags overlapping time windows. A pair with an existing open
// conflict, in either order, is not flagged again.
func (s *conflictService) DetectForOrganization(ctx context.Context, orgID string) ([]domain.Conflict, error) {
	bookings, err := s.bookingRepo.ListActiveByOrg(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	var created []domain.Conflict
	for i := range bookings {
		for j := i + 1; j < len(bookings); j++ {
			a, b := &bookings[i], &bookings[j]
			if !a.Overlaps(b) {
				continue
			}

			exists, err := s.conflictRepo.ExistsOpenPair(ctx, a.ID, b.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to check conflict pair: %w", err)
			}
			if exists {
				continue
			}

			conflict, err := s.conflictRepo.Create(ctx, orgID, a.ID, b.ID, a.Resource)
			if err != nil {
				return nil, fmt.Errorf("failed to create conflict: %w", err)
			}
			created = append(created, *conflict)

			if err := s.bus.Publish(ctx, events.ConflictDetected, events.ConflictDetectedEvent{
				ConflictID: conflict.ID,
				OrgID:      orgID,
				BookingA:   conflict.BookingA,
				BookingB:   conflict.BookingB,
				Resource:   conflict.Resource,
				DetectedAt: conflict.DetectedAt,
			}); err != nil {
				logger.ErrorContext(ctx, "Failed to publish conflict detected event",
					"error", err, "conflict_id", conflict.ID)
			}
		}
	}

	return created, nil
}

// Resolve is idempotent: resolving an already-resolved conflict returns the
// stored record unchanged.
func (s *conflictService) Resolve(ctx context.Context, conflictID, resolution, resolvedBy, notes string) (*domain.Conflict, error) {
	if strings.TrimSpace(resolution) == "" {
		return nil, domain.E(domain.KindValidation, "resolution is required")
	}
	if strings.TrimSpace(resolvedBy) == "" {
		return nil, domain.E(domain.KindValidation, "resolved_by is required")
	}

	resolved, err := s.conflictRepo.Resolve(ctx, conflictID, resolution, notes, resolvedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve conflict: %w", err)
	}

	if resolved == nil {
		existing, err := s.conflictRepo.GetByID(ctx, conflictID)
		if err != nil {
			return nil, fmt.Errorf("failed to get conflict: %w", err)
		}
		if existing == nil {
			return nil, domain.E(domain.KindNotFound, "conflict not found")
		}
		return existing, nil
	}

	if err := s.bus.Publish(ctx, events.ConflictResolved, events.ConflictResolvedEvent{
		ConflictID: resolved.ID,
		OrgID:      resolved.OrgID,
		Resolution: resolved.Resolution,
		ResolvedBy: resolved.ResolvedBy,
		ResolvedAt: time.Now(),
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to publish conflict resolved event",
			"error", err, "conflict_id", resolved.ID)
	}

	return resolved, nil
}

func (s *conflictService) List(ctx context.Context, orgID string, status *domain.ConflictStatus, limit, offset int) ([]domain.Conflict, error) {
	return s.conflictRepo.ListByOrg(ctx, orgID, status, limit, offset)
}
