package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/ride-queue-auth/internal/model"
)

// TokenRepo stores the one refresh-token credential a user may hold.
type TokenRepo struct{ db *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{db: db} }

// Save writes the user's credential, replacing any previous token. The
// first created_at is kept on overwrite.
func (r *TokenRepo) Save(ctx context.Context, t model.RefreshToken) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)
		 ON DUPLICATE KEY UPDATE token_hash=VALUES(token_hash), expires_at=VALUES(expires_at)`,
		t.UserID, t.TokenHash, t.ExpiresAt)
	return err
}

const tokenSelect = "SELECT user_id, token_hash, expires_at, created_at FROM refresh_tokens WHERE user_id=? LIMIT 1"

// Get returns the stored credential for userID.
func (r *TokenRepo) Get(ctx context.Context, userID uint64) (model.RefreshToken, error) {
	return r.get(ctx, tokenSelect, userID)
}

// GetForUpdate is Get with the row locked until the caller's transaction
// ends, so two rotations of the same token run one after the other. Outside
// a transaction the lock is released as soon as the statement finishes.
func (r *TokenRepo) GetForUpdate(ctx context.Context, userID uint64) (model.RefreshToken, error) {
	return r.get(ctx, tokenSelect+" FOR UPDATE", userID)
}

func (r *TokenRepo) get(ctx context.Context, q string, userID uint64) (model.RefreshToken, error) {
	var t model.RefreshToken
	err := conn(ctx, r.db).QueryRowContext(ctx, q, userID).Scan(&t.UserID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	return t, err
}

// Delete removes the user's credential. Deleting a missing row is not an error.
func (r *TokenRepo) Delete(ctx context.Context, userID uint64) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, "DELETE FROM refresh_tokens WHERE user_id=?", userID)
	return err
}
