package repository

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/iliyamo/student-records/internal/model"
)

// TokenRepo persists refresh tokens by the SHA-256 of their value.
type TokenRepo struct{ DB bun.IDB }

// NewTokenRepo returns a TokenRepo running its queries on db, which may be a
// *bun.DB or a transaction.
func NewTokenRepo(db bun.IDB) *TokenRepo { return &TokenRepo{DB: db} }

// Store makes tokenHash the user's only refresh token. refresh_tokens has a
// unique index on user_id, so the insert is an upsert and two concurrent
// logins can never leave the user with two live rows.
func (r *TokenRepo) Store(ctx context.Context, userID int64, tokenHash string, exp time.Time) error {
	row := &model.RefreshToken{
		TokenHash: tokenHash,
		UserID:    userID,
		ExpiresAt: exp.UTC(),
		CreatedAt: time.Now().UTC(),
	}
	q := r.DB.NewInsert().Model(row)
	if r.DB.Dialect().Name() == dialect.MySQL {
		q = q.On("DUPLICATE KEY UPDATE").
			Set("token_hash = VALUES(token_hash)").
			Set("expires_at = VALUES(expires_at)").
			Set("created_at = VALUES(created_at)")
	} else {
		q = q.On("CONFLICT (user_id) DO UPDATE").
			Set("token_hash = EXCLUDED.token_hash").
			Set("expires_at = EXCLUDED.expires_at").
			Set("created_at = EXCLUDED.created_at")
	}
	_, err := q.Exec(ctx)
	return err
}

// Find returns the row for tokenHash or ErrNotFound.
func (r *TokenRepo) Find(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	row := new(model.RefreshToken)
	err := r.DB.NewSelect().Model(row).Where("token_hash = ?", tokenHash).Limit(1).Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return row, nil
}

// DeleteByHash removes one token and reports whether this call removed it.
// Two requests racing to consume the same token see true exactly once.
func (r *TokenRepo) DeleteByHash(ctx context.Context, tokenHash string) (bool, error) {
	res, err := r.DB.NewDelete().Model((*model.RefreshToken)(nil)).Where("token_hash = ?", tokenHash).Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteByUser removes every refresh token of the user.
func (r *TokenRepo) DeleteByUser(ctx context.Context, userID int64) error {
	_, err := r.DB.NewDelete().Model((*model.RefreshToken)(nil)).Where("user_id = ?", userID).Exec(ctx)
	return err
}
