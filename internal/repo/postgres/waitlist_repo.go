package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianarts/meridian-bookings/internal/domain"
)

type WaitlistRepo interface {
	GetByID(ctx context.Context, id string) (*domain.WaitlistEntry, error)
	ListByBooking(ctx context.Context, bookingID string) ([]domain.WaitlistEntry, error)
	Remove(ctx context.Context, id string) (bool, error)
}

type WaitlistRepoImpl struct{ pool *pgxpool.Pool }

func NewWaitlistRepo(pool *pgxpool.Pool) *WaitlistRepoImpl {
	return &WaitlistRepoImpl{pool: pool}
}

const waitlistCols = `id, booking_id, user_id, email, status, created_at, updated_at`

func (r *WaitlistRepoImpl) GetByID(ctx context.Context, id string) (*domain.WaitlistEntry, error) {
	const q = `SELECT ` + waitlistCols + ` FROM waitlist_entries WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var e domain.WaitlistEntry
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&e.ID, &e.BookingID, &e.UserID, &e.Email, &e.Status, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *WaitlistRepoImpl) ListByBooking(ctx context.Context, bookingID string) ([]domain.WaitlistEntry, error) {
	const q = `SELECT ` + waitlistCols + ` FROM waitlist_entries WHERE booking_id=$1 ORDER BY created_at`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var es []domain.WaitlistEntry
	for rows.Next() {
		var e domain.WaitlistEntry
		if err := rows.Scan(&e.ID, &e.BookingID, &e.UserID, &e.Email, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		es = append(es, e)
	}
	return es, rows.Err()
}

// Remove marks a waiting entry removed. Promoted entries are immutable.
func (r *WaitlistRepoImpl) Remove(ctx context.Context, id string) (bool, error) {
	const q = `UPDATE waitlist_entries SET status='removed', updated_at=now()
WHERE id=$1 AND status='waiting'`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	ct, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

var _ WaitlistRepo = (*WaitlistRepoImpl)(nil)
