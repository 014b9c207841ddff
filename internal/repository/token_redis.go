package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"blueprint-api/internal/model"
)

const refreshTokenKeyPrefix = "refresh_token:"

// blacklistScript flips a stored token to blacklisted and keeps its TTL.
// It returns 1 on success, 0 if the key is missing and -1 if the token was
// already blacklisted.
var blacklistScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if not raw then
  return 0
end
local token = cjson.decode(raw)
if token["blacklisted_at"] then
  return -1
end
token["blacklisted_at"] = ARGV[1]
redis.call("SET", KEYS[1], cjson.encode(token), "KEEPTTL")
return 1
`)

type redisToken struct {
	TokenID       string     `json:"jti"`
	UserID        string     `json:"user_id"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	BlacklistedAt *time.Time `json:"blacklisted_at,omitempty"`
}

// RedisTokenRepository keeps refresh tokens in Redis; keys expire together
// with the token they describe.
type RedisTokenRepository struct {
	client *redis.Client
}

func NewRedisTokenRepository(client *redis.Client) *RedisTokenRepository {
	return &RedisTokenRepository{client: client}
}

// NewRedisClient parses redisURL and verifies the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

func (r *RedisTokenRepository) Store(ctx context.Context, token model.RefreshToken) error {
	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("store refresh token: token already expired")
	}

	raw, err := json.Marshal(redisToken{
		TokenID:   token.TokenID,
		UserID:    token.UserID,
		CreatedAt: token.CreatedAt,
		ExpiresAt: token.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("marshal refresh token: %w", err)
	}

	if err := r.client.Set(ctx, refreshTokenKey(token.TokenID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

func (r *RedisTokenRepository) Find(ctx context.Context, tokenID string) (model.RefreshToken, error) {
	raw, err := r.client.Get(ctx, refreshTokenKey(tokenID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.RefreshToken{}, model.ErrTokenNotFound
	}
	if err != nil {
		return model.RefreshToken{}, fmt.Errorf("find refresh token: %w", err)
	}

	var stored redisToken
	if err := json.Unmarshal(raw, &stored); err != nil {
		return model.RefreshToken{}, fmt.Errorf("decode refresh token: %w", err)
	}

	return model.RefreshToken{
		TokenID:       stored.TokenID,
		UserID:        stored.UserID,
		CreatedAt:     stored.CreatedAt,
		ExpiresAt:     stored.ExpiresAt,
		BlacklistedAt: stored.BlacklistedAt,
	}, nil
}

func (r *RedisTokenRepository) Blacklist(ctx context.Context, tokenID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	result, err := blacklistScript.Run(ctx, r.client, []string{refreshTokenKey(tokenID)}, now).Int()
	if err != nil {
		return fmt.Errorf("blacklist refresh token: %w", err)
	}

	switch result {
	case 1:
		return nil
	case -1:
		return model.ErrTokenBlacklisted
	default:
		return model.ErrTokenNotFound
	}
}

func refreshTokenKey(tokenID string) string {
	return refreshTokenKeyPrefix + tokenID
}
