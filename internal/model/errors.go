package model

import "errors"

var (
	// User related errors
	ErrUserNotFound  = errors.New("user not found")
	ErrEmailTaken    = errors.New("email already exists")
	ErrUsernameTaken = errors.New("username already exists")

	// Token related errors
	ErrTokenNotFound    = errors.New("token not found")
	ErrTokenBlacklisted = errors.New("token is blacklisted")

	// Specification related errors
	ErrSpecNotFound = errors.New("specification not found")
)
