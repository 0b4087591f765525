package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianarts/meridian-bookings/internal/domain"
)

type InvitationRepo interface {
	Create(ctx context.Context, bookingID, inviterUserID, inviterEmail string, in *domain.SendInvitationInput) (*domain.Invitation, error)
	GetByID(ctx context.Context, id string) (*domain.Invitation, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.InvitationStatus) (bool, error)
	ListByBooking(ctx context.Context, bookingID string) ([]domain.Invitation, error)
	ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type InvitationRepoImpl struct{ pool *pgxpool.Pool }

func NewInvitationRepo(pool *pgxpool.Pool) *InvitationRepoImpl {
	return &InvitationRepoImpl{pool: pool}
}

const invitationCols = `id, booking_id, inviter_user_id, inviter_email, invited_email,
invited_name, invited_user_id, message, status, created_at, updated_at`

func scanInvitationRow(row pgx.Row) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := row.Scan(
		&inv.ID, &inv.BookingID, &inv.InviterUserID, &inv.InviterEmail,
		&inv.InvitedEmail, &inv.InvitedName, &inv.InvitedUserID,
		&inv.Message, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *InvitationRepoImpl) Create(ctx context.Context, bookingID, inviterUserID, inviterEmail string, in *domain.SendInvitationInput) (*domain.Invitation, error) {
	const q = `INSERT INTO invitations (
    id, booking_id, inviter_user_id, inviter_email,
    invited_email, invited_name, invited_user_id, message
  ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
  RETURNING ` + invitationCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanInvitationRow(r.pool.QueryRow(ctx, q,
		uuid.NewString(), bookingID, inviterUserID, inviterEmail,
		in.InvitedEmail, in.InvitedName, in.InvitedUserID, in.Message,
	))
}

func (r *InvitationRepoImpl) GetByID(ctx context.Context, id string) (*domain.Invitation, error) {
	const q = `SELECT ` + invitationCols + ` FROM invitations WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	inv, err := scanInvitationRow(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return inv, err
}

// UpdateStatus transitions an invitation only when it is still in the
// expected state; a false return means the guard did not match.
func (r *InvitationRepoImpl) UpdateStatus(ctx context.Context, id string, from, to domain.InvitationStatus) (bool, error) {
	const q = `UPDATE invitations SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	ct, err := r.pool.Exec(ctx, q, id, from, to)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (r *InvitationRepoImpl) ListByBooking(ctx context.Context, bookingID string) ([]domain.Invitation, error) {
	const q = `SELECT ` + invitationCols + ` FROM invitations WHERE booking_id=$1 ORDER BY created_at`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invs []domain.Invitation
	for rows.Next() {
		inv, err := scanInvitationRow(rows)
		if err != nil {
			return nil, err
		}
		invs = append(invs, *inv)
	}
	return invs, rows.Err()
}

func (r *InvitationRepoImpl) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `UPDATE invitations SET status='expired', updated_at=now()
WHERE status='pending' AND created_at < $1`

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ct, err := r.pool.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

var _ InvitationRepo = (*InvitationRepoImpl)(nil)
