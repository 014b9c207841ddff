package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"blueprint-api/internal/model"
)

type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

func (r *TokenRepository) Store(ctx context.Context, token model.RefreshToken) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO refresh_tokens (jti, user_id, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		token.TokenID, token.UserID, token.CreatedAt, token.ExpiresAt)
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

func (r *TokenRepository) Find(ctx context.Context, tokenID string) (model.RefreshToken, error) {
	var t model.RefreshToken
	err := r.pool.QueryRow(ctx,
		`SELECT jti, user_id, created_at, expires_at, blacklisted_at
		 FROM refresh_tokens WHERE jti = $1`, tokenID).
		Scan(&t.TokenID, &t.UserID, &t.CreatedAt, &t.ExpiresAt, &t.BlacklistedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.RefreshToken{}, model.ErrTokenNotFound
	}
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("find refresh token: %w", err)
	}
	return t, nil
}

// Blacklist moves an active token to its terminal state. A token that is
// unknown or expired yields model.ErrTokenNotFound, one that is already
// blacklisted yields model.ErrTokenBlacklisted.
func (r *TokenRepository) Blacklist(ctx context.Context, tokenID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE refresh_tokens SET blacklisted_at = $2
		 WHERE jti = $1 AND blacklisted_at IS NULL AND expires_at > now()`,
		tokenID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("blacklist refresh token: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	existing, err := r.Find(ctx, tokenID)
	if err != nil {
		return err
	}
	if existing.BlacklistedAt != nil {
		return model.ErrTokenBlacklisted
	}
	return model.ErrTokenNotFound
}

func (r *TokenRepository) CleanExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("clean expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
