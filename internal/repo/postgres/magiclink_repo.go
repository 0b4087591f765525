package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianarts/meridian-bookings/internal/domain"
)

type MagicLinkRepo interface {
	Create(ctx context.Context, token, email, surveyID, orgID string, expiresAt time.Time, metadata map[string]any) (*domain.MagicLinkToken, error)
	GetByToken(ctx context.Context, token string) (*domain.MagicLinkToken, error)
	UpdateStatus(ctx context.Context, token string, status domain.MagicLinkStatus) (*domain.MagicLinkToken, error)
}

type MagicLinkRepoImpl struct{ pool *pgxpool.Pool }

func NewMagicLinkRepo(pool *pgxpool.Pool) *MagicLinkRepoImpl {
	return &MagicLinkRepoImpl{pool: pool}
}

const magicLinkCols = `id, token, email, survey_id, org_id, status, expires_at, metadata, created_at, updated_at`

func scanMagicLink(row pgx.Row) (*domain.MagicLinkToken, error) {
	var t domain.MagicLinkToken
	var meta []byte
	err := row.Scan(
		&t.ID, &t.Token, &t.Email, &t.SurveyID, &t.OrgID,
		&t.Status, &t.ExpiresAt, &meta, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &t.Metadata); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

func (r *MagicLinkRepoImpl) Create(ctx context.Context, token, email, surveyID, orgID string, expiresAt time.Time, metadata map[string]any) (*domain.MagicLinkToken, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}

	const q = `INSERT INTO magic_link_tokens (id, token, email, survey_id, org_id, expires_at, metadata)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING ` + magicLinkCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanMagicLink(r.pool.QueryRow(ctx, q,
		uuid.NewString(), token, email, surveyID, orgID, expiresAt, meta,
	))
}

func (r *MagicLinkRepoImpl) GetByToken(ctx context.Context, token string) (*domain.MagicLinkToken, error) {
	const q = `SELECT ` + magicLinkCols + ` FROM magic_link_tokens WHERE token=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	t, err := scanMagicLink(r.pool.QueryRow(ctx, q, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// UpdateStatus records a usage transition. Completed is terminal: the guard
// refuses to move a completed token anywhere, and a nil return tells the
// caller the transition did not happen.
func (r *MagicLinkRepoImpl) UpdateStatus(ctx context.Context, token string, status domain.MagicLinkStatus) (*domain.MagicLinkToken, error) {
	const q = `UPDATE magic_link_tokens SET status=$2, updated_at=now()
WHERE token=$1 AND status <> 'completed'
RETURNING ` + magicLinkCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	t, err := scanMagicLink(r.pool.QueryRow(ctx, q, token, status))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

var _ MagicLinkRepo = (*MagicLinkRepoImpl)(nil)
