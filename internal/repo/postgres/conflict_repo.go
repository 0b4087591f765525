package postgres

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianarts/meridian-bookings/internal/domain"
)

type ConflictRepo interface {
	Create(ctx context.Context, orgID, bookingA, bookingB, resource string) (*domain.Conflict, error)
	GetByID(ctx context.Context, id string) (*domain.Conflict, error)
	ExistsOpenPair(ctx context.Context, bookingA, bookingB string) (bool, error)
	Resolve(ctx context.Context, id, resolution, notes, resolvedBy string) (*domain.Conflict, error)
	ListByOrg(ctx context.Context, orgID string, status *domain.ConflictStatus, limit, offset int) ([]domain.Conflict, error)
}

type ConflictRepoImpl struct{ pool *pgxpool.Pool }

func NewConflictRepo(pool *pgxpool.Pool) *ConflictRepoImpl {
	return &ConflictRepoImpl{pool: pool}
}

const conflictCols = `id, org_id, booking_a, booking_b, resource, status,
resolution, resolution_notes, resolved_by, resolved_at, detected_at`

func scanConflict(row pgx.Row) (*domain.Conflict, error) {
	var c domain.Conflict
	err := row.Scan(
		&c.ID, &c.OrgID, &c.BookingA, &c.BookingB, &c.Resource, &c.Status,
		&c.Resolution, &c.ResolutionNotes, &c.ResolvedBy, &c.ResolvedAt, &c.DetectedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ConflictRepoImpl) Create(ctx context.Context, orgID, bookingA, bookingB, resource string) (*domain.Conflict, error) {
	const q = `INSERT INTO conflicts (id, org_id, booking_a, booking_b, resource)
VALUES ($1,$2,$3,$4,$5)
RETURNING ` + conflictCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanConflict(r.pool.QueryRow(ctx, q, uuid.NewString(), orgID, bookingA, bookingB, resource))
}

func (r *ConflictRepoImpl) GetByID(ctx context.Context, id string) (*domain.Conflict, error) {
	const q = `SELECT ` + conflictCols + ` FROM conflicts WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	c, err := scanConflict(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

// ExistsOpenPair checks both orderings: a pair counts as flagged no matter
// which booking was scanned first.
func (r *ConflictRepoImpl) ExistsOpenPair(ctx context.Context, bookingA, bookingB string) (bool, error) {
	const q = `SELECT EXISTS (
  SELECT 1 FROM conflicts
  WHERE status='open'
    AND ((booking_a=$1 AND booking_b=$2) OR (booking_a=$2 AND booking_b=$1))
)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var exists bool
	err := r.pool.QueryRow(ctx, q, bookingA, bookingB).Scan(&exists)
	return exists, err
}

// Resolve transitions open to resolved. Returns nil when the conflict was
// not open; the caller decides how to treat an already-resolved record.
func (r *ConflictRepoImpl) Resolve(ctx context.Context, id, resolution, notes, resolvedBy string) (*domain.Conflict, error) {
	const q = `UPDATE conflicts
SET status='resolved', resolution=$2, resolution_notes=$3, resolved_by=$4, resolved_at=now()
WHERE id=$1 AND status='open'
RETURNING ` + conflictCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	c, err := scanConflict(r.pool.QueryRow(ctx, q, id, resolution, notes, resolvedBy))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *ConflictRepoImpl) ListByOrg(ctx context.Context, orgID string, status *domain.ConflictStatus, limit, offset int) ([]domain.Conflict, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	q := `SELECT ` + conflictCols + ` FROM conflicts WHERE org_id=$1`
	args := []any{orgID}
	if status != nil {
		q += ` AND status=$2`
		args = append(args, *status)
	}
	q += ` ORDER BY detected_at DESC LIMIT ` + strconv.Itoa(limit) + ` OFFSET ` + strconv.Itoa(offset)

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cs := make([]domain.Conflict, 0, limit)
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		cs = append(cs, *c)
	}
	return cs, rows.Err()
}

var _ ConflictRepo = (*ConflictRepoImpl)(nil)
