package model

import (
	"strings"
	"time"
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// FullName joins first and last name, trimmed.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		Name:       u.FullName(),
		Email:      u.Email,
		DateJoined: u.CreatedAt,
	}
}

// PublicUser is the only user shape ever returned to clients.
type PublicUser struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	DateJoined time.Time `json:"date_joined"`
}

type AuthClaims struct {
	UserID    string    `json:"sub"`
	Type      string    `json:"typ"`
	TokenID   string    `json:"jti"`
	ExpiresAt time.Time `json:"exp"`
}

type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// RefreshToken is the persisted half of a refresh JWT.
type RefreshToken struct {
	TokenID       string
	UserID        string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	BlacklistedAt *time.Time
}

func (t RefreshToken) Active(now time.Time) bool {
	return t.BlacklistedAt == nil && now.Before(t.ExpiresAt)
}

type RegisterResponse struct {
	User    PublicUser `json:"user"`
	Tokens  TokenPair  `json:"tokens"`
	Message string     `json:"message"`
}

type LoginResponse struct {
	User    PublicUser `json:"user"`
	Access  string     `json:"access"`
	Refresh string     `json:"refresh"`
}

type RefreshResponse struct {
	Access string `json:"access"`
}
