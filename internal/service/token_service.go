package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"blueprint-api/internal/model"
	"blueprint-api/pkg/apierror"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

const (
	msgTokenInvalid     = "Token is invalid or expired"
	msgTokenBlacklisted = "Token is blacklisted"
)

// RefreshTokenStore persists refresh token identifiers so they can be
// blacklisted before they expire.
type RefreshTokenStore interface {
	Store(ctx context.Context, token model.RefreshToken) error
	Find(ctx context.Context, tokenID string) (model.RefreshToken, error)
	Blacklist(ctx context.Context, tokenID string) error
}

type tokenClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	store      RefreshTokenStore
	now        func() time.Time
}

func NewTokenService(secret string, accessTTL time.Duration, refreshTTL time.Duration, store RefreshTokenStore) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}

	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		store:      store,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Issue signs a new access/refresh pair for userID and records the refresh
// token's jti.
func (s *TokenService) Issue(ctx context.Context, userID string) (model.TokenPair, error) {
	now := s.now()

	access, _, err := s.sign(userID, TokenTypeAccess, now, s.accessTTL)
	if err != nil {
		return model.TokenPair{}, err
	}

	refresh, refreshID, err := s.sign(userID, TokenTypeRefresh, now, s.refreshTTL)
	if err != nil {
		return model.TokenPair{}, err
	}

	if err := s.store.Store(ctx, model.RefreshToken{
		TokenID:   refreshID,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.refreshTTL),
	}); err != nil {
		return model.TokenPair{}, fmt.Errorf("persist refresh token: %w", err)
	}

	return model.TokenPair{Access: access, Refresh: refresh}, nil
}

// ValidateToken checks signature, expiry and token type without touching the
// store.
func (s *TokenService) ValidateToken(tokenString string, expectedType string) (*model.AuthClaims, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, apierror.Unauthorized(msgTokenInvalid)
	}

	if expectedType != "" && claims.Type != expectedType {
		return nil, apierror.Unauthorized("Token has wrong type")
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, apierror.Unauthorized(msgTokenInvalid)
	}

	return &model.AuthClaims{
		UserID:    claims.Subject,
		Type:      claims.Type,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Refresh exchanges an active refresh token for a new access token.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.ValidateToken(refreshToken, TokenTypeRefresh)
	if err != nil {
		return "", err
	}

	stored, err := s.store.Find(ctx, claims.TokenID)
	if errors.Is(err, model.ErrTokenNotFound) {
		return "", apierror.Unauthorized(msgTokenInvalid)
	}
	if err != nil {
		return "", fmt.Errorf("find refresh token: %w", err)
	}
	if stored.BlacklistedAt != nil {
		return "", apierror.Unauthorized(msgTokenBlacklisted)
	}
	if !stored.Active(s.now()) {
		return "", apierror.Unauthorized(msgTokenInvalid)
	}

	access, _, err := s.sign(claims.UserID, TokenTypeAccess, s.now(), s.accessTTL)
	return access, err
}

// Blacklist revokes a refresh token owned by userID. Every rejection is a
// validation error on the refresh_token field.
func (s *TokenService) Blacklist(ctx context.Context, userID string, refreshToken string) error {
	claims, err := s.ValidateToken(refreshToken, TokenTypeRefresh)
	if err != nil {
		return apierror.Validation(msgTokenInvalid, "refresh_token")
	}
	if claims.UserID != userID {
		return apierror.Validation("Token does not belong to the authenticated user", "refresh_token")
	}

	err = s.store.Blacklist(ctx, claims.TokenID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrTokenBlacklisted):
		return apierror.Validation(msgTokenBlacklisted, "refresh_token")
	case errors.Is(err, model.ErrTokenNotFound):
		return apierror.Validation(msgTokenInvalid, "refresh_token")
	default:
		return fmt.Errorf("blacklist refresh token: %w", err)
	}
}

func (s *TokenService) sign(userID string, tokenType string, now time.Time, ttl time.Duration) (string, string, error) {
	tokenID := uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, tokenID, nil
}
