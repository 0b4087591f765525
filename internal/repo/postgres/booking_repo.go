package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianarts/meridian-bookings/internal/domain"
)

type GroupBookingRepo interface {
	Create(ctx context.Context, orgID string, in *domain.CreateBookingInput) (*domain.GroupBooking, error)
	GetByID(ctx context.Context, id string) (*domain.GroupBooking, error)
	ListParticipants(ctx context.Context, bookingID string) ([]domain.Participant, error)
	ListActiveByOrg(ctx context.Context, orgID string) ([]domain.GroupBooking, error)
	Join(ctx context.Context, bookingID, userID, email, name string) (*domain.Participant, *domain.WaitlistEntry, error)
	PromoteWaitlistEntry(ctx context.Context, bookingID, entryID string) (*domain.Participant, error)
	Cancel(ctx context.Context, id string) (bool, error)
	CompleteElapsed(ctx context.Context, now time.Time) ([]string, error)
	MarkDepositPaid(ctx context.Context, bookingID, checkoutSessionID string) (bool, error)
}

type GroupBookingRepoImpl struct{ pool *pgxpool.Pool }

func NewGroupBookingRepo(pool *pgxpool.Pool) *GroupBookingRepoImpl {
	return &GroupBookingRepoImpl{pool: pool}
}

const bookingCols = `id, org_id, title, resource, starts_at, ends_at, capacity, status,
deposit_required, deposit_paid, checkout_session_id, created_at, updated_at`

func scanBooking(row pgx.Row) (*domain.GroupBooking, error) {
	var b domain.GroupBooking
	err := row.Scan(
		&b.ID, &b.OrgID, &b.Title, &b.Resource, &b.StartsAt, &b.EndsAt,
		&b.Capacity, &b.Status, &b.DepositRequired, &b.DepositPaid,
		&b.CheckoutSessionID, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *GroupBookingRepoImpl) Create(ctx context.Context, orgID string, in *domain.CreateBookingInput) (*domain.GroupBooking, error) {
	const q = `INSERT INTO group_bookings (
    id, org_id, title, resource, starts_at, ends_at, capacity, status, deposit_required
  ) VALUES ($1,$2,$3,$4,$5,$6,$7,'open',$8)
  RETURNING ` + bookingCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanBooking(r.pool.QueryRow(ctx, q,
		uuid.NewString(), orgID, in.Title, in.Resource,
		in.StartsAt, in.EndsAt, in.Capacity, in.DepositRequired,
	))
}

func (r *GroupBookingRepoImpl) GetByID(ctx context.Context, id string) (*domain.GroupBooking, error) {
	const q = `SELECT ` + bookingCols + ` FROM group_bookings WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	b, err := scanBooking(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func (r *GroupBookingRepoImpl) ListParticipants(ctx context.Context, bookingID string) ([]domain.Participant, error) {
	const q = `SELECT id, booking_id, user_id, email, name, role, joined_at
FROM participants WHERE booking_id=$1 ORDER BY joined_at`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ps []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.ID, &p.BookingID, &p.UserID, &p.Email, &p.Name, &p.Role, &p.JoinedAt); err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	return ps, rows.Err()
}

func (r *GroupBookingRepoImpl) ListActiveByOrg(ctx context.Context, orgID string) ([]domain.GroupBooking, error) {
	const q = `SELECT ` + bookingCols + `
FROM group_bookings
WHERE org_id=$1 AND status IN ('open','full')
ORDER BY resource, starts_at`

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bs []domain.GroupBooking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bs = append(bs, *b)
	}
	return bs, rows.Err()
}

// Join adds the identity as a participant when a slot is open, or as a
// waitlist entry when the booking is full. Runs in a transaction with the
// booking row locked so concurrent joins cannot oversubscribe capacity.
func (r *GroupBookingRepoImpl) Join(ctx context.Context, bookingID, userID, email, name string) (*domain.Participant, *domain.WaitlistEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	b, err := lockBooking(ctx, tx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if b.Status.Terminal() {
		return nil, nil, domain.E(domain.KindConflict, "booking is %s", b.Status)
	}

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM participants WHERE booking_id=$1 AND user_id=$2)`,
		bookingID, userID).Scan(&exists); err != nil {
		return nil, nil, err
	}
	if exists {
		return nil, nil, domain.E(domain.KindConflict, "already a participant of this booking")
	}

	count, err := countParticipants(ctx, tx, bookingID)
	if err != nil {
		return nil, nil, err
	}

	if count >= b.Capacity {
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM waitlist_entries WHERE booking_id=$1 AND user_id=$2 AND status='waiting')`,
			bookingID, userID).Scan(&exists); err != nil {
			return nil, nil, err
		}
		if exists {
			return nil, nil, domain.E(domain.KindConflict, "already on the waitlist for this booking")
		}

		var e domain.WaitlistEntry
		err = tx.QueryRow(ctx, `
INSERT INTO waitlist_entries (id, booking_id, user_id, email)
VALUES ($1,$2,$3,$4)
RETURNING id, booking_id, user_id, email, status, created_at, updated_at`,
			uuid.NewString(), bookingID, userID, email,
		).Scan(&e.ID, &e.BookingID, &e.UserID, &e.Email, &e.Status, &e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			return nil, nil, err
		}

		// Full bookings can drift back to open via cancellation sweeps;
		// make sure the status reflects reality while we hold the lock.
		if _, err := tx.Exec(ctx,
			`UPDATE group_bookings SET status='full', updated_at=now() WHERE id=$1 AND status='open'`,
			bookingID); err != nil {
			return nil, nil, err
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, nil, err
		}
		return nil, &e, nil
	}

	p, err := insertParticipant(ctx, tx, bookingID, userID, email, name, domain.RoleAttendee)
	if err != nil {
		return nil, nil, err
	}

	if count+1 >= b.Capacity {
		if _, err := tx.Exec(ctx,
			`UPDATE group_bookings SET status='full', updated_at=now() WHERE id=$1 AND status='open'`,
			bookingID); err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return p, nil, nil
}

// PromoteWaitlistEntry converts a waiting entry into a participant. Both
// writes happen in one transaction: a promoted entry without a matching
// participant row must never be observable. Capacity is re-checked under the
// booking row lock, so promoting into a still-full booking fails.
func (r *GroupBookingRepoImpl) PromoteWaitlistEntry(ctx context.Context, bookingID, entryID string) (*domain.Participant, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	b, err := lockBooking(ctx, tx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status.Terminal() {
		return nil, domain.E(domain.KindConflict, "booking is %s", b.Status)
	}

	var e domain.WaitlistEntry
	err = tx.QueryRow(ctx, `
SELECT id, booking_id, user_id, email, status, created_at, updated_at
FROM waitlist_entries WHERE id=$1`, entryID,
	).Scan(&e.ID, &e.BookingID, &e.UserID, &e.Email, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.E(domain.KindNotFound, "waitlist entry not found")
	}
	if err != nil {
		return nil, err
	}
	if e.BookingID != bookingID {
		return nil, domain.E(domain.KindValidation, "waitlist entry does not belong to this booking")
	}
	if e.Status != domain.WaitlistWaiting {
		return nil, domain.E(domain.KindConflict, "waitlist entry is already %s", e.Status)
	}

	count, err := countParticipants(ctx, tx, bookingID)
	if err != nil {
		return nil, err
	}
	if count >= b.Capacity {
		return nil, domain.E(domain.KindConflict, "booking is at capacity")
	}

	// Status guard serializes concurrent promotions of the same entry.
	ct, err := tx.Exec(ctx,
		`UPDATE waitlist_entries SET status='promoted', updated_at=now() WHERE id=$1 AND status='waiting'`,
		entryID)
	if err != nil {
		return nil, err
	}
	if ct.RowsAffected() == 0 {
		return nil, domain.E(domain.KindConflict, "waitlist entry was already promoted")
	}

	p, err := insertParticipant(ctx, tx, bookingID, e.UserID, e.Email, "", domain.RoleAttendee)
	if err != nil {
		return nil, err
	}

	if count+1 >= b.Capacity {
		if _, err := tx.Exec(ctx,
			`UPDATE group_bookings SET status='full', updated_at=now() WHERE id=$1 AND status='open'`,
			bookingID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *GroupBookingRepoImpl) Cancel(ctx context.Context, id string) (bool, error) {
	const q = `UPDATE group_bookings SET status='cancelled', updated_at=now()
WHERE id=$1 AND status IN ('open','full')`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	ct, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// CompleteElapsed flips every elapsed open or full booking to completed and
// returns the affected ids so the caller can emit per-booking events.
func (r *GroupBookingRepoImpl) CompleteElapsed(ctx context.Context, now time.Time) ([]string, error) {
	const q = `UPDATE group_bookings SET status='completed', updated_at=now()
WHERE status IN ('open','full') AND ends_at < $1
RETURNING id`

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *GroupBookingRepoImpl) MarkDepositPaid(ctx context.Context, bookingID, checkoutSessionID string) (bool, error) {
	const q = `UPDATE group_bookings SET deposit_paid=true, checkout_session_id=$2, updated_at=now()
WHERE id=$1 AND deposit_required AND NOT deposit_paid`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	ct, err := r.pool.Exec(ctx, q, bookingID, checkoutSessionID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func lockBooking(ctx context.Context, tx pgx.Tx, id string) (*domain.GroupBooking, error) {
	b, err := scanBooking(tx.QueryRow(ctx,
		`SELECT `+bookingCols+` FROM group_bookings WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.E(domain.KindNotFound, "booking not found")
	}
	return b, err
}

func countParticipants(ctx context.Context, tx pgx.Tx, bookingID string) (int, error) {
	var count int
	err := tx.QueryRow(ctx,
		`SELECT count(*) FROM participants WHERE booking_id=$1`, bookingID).Scan(&count)
	return count, err
}

func insertParticipant(ctx context.Context, tx pgx.Tx, bookingID, userID, email, name string, role domain.ParticipantRole) (*domain.Participant, error) {
	var p domain.Participant
	err := tx.QueryRow(ctx, `
INSERT INTO participants (id, booking_id, user_id, email, name, role)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id, booking_id, user_id, email, name, role, joined_at`,
		uuid.NewString(), bookingID, userID, email, name, role,
	).Scan(&p.ID, &p.BookingID, &p.UserID, &p.Email, &p.Name, &p.Role, &p.JoinedAt)
	if isUniqueViolation(err) {
		return nil, domain.E(domain.KindConflict, "already a participant of this booking")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ GroupBookingRepo = (*GroupBookingRepoImpl)(nil)
