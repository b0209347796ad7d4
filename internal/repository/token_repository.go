package repository

import (
	"context"
	"database/sql"
	"time"
)

// TokenRepo stores refresh tokens by the sha256 of their raw value.
// Expiry and revocation are checked in SQL against the server clock.
type TokenRepo struct{ db *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{db: db} }

func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?, ?, ?)`,
		userID, tokenHash, exp.UTC())
	if isMissingParent(err) {
		return ErrNotFound
	}
	return err
}

// ValidateRefresh returns the owner of a live token, ErrNotFound when
// the token is unknown, revoked or expired.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	var userID uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id FROM refresh_tokens
		 WHERE token_hash = ? AND revoked_at IS NULL AND expires_at > UTC_TIMESTAMP()
		 LIMIT 1`, tokenHash).Scan(&userID)
	if err != nil {
		return 0, notFound(err)
	}
	return userID, nil
}

// RevokeByHash revokes a live token.  ErrNotFound means another request
// revoked it first, which makes rotation single-use under concurrency.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	return affected(r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = UTC_TIMESTAMP()
		 WHERE token_hash = ? AND revoked_at IS NULL`, tokenHash))
}

func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = UTC_TIMESTAMP()
		 WHERE user_id = ? AND revoked_at IS NULL`, userID)
	return err
}
