package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"blueprint-api/internal/model"
	"blueprint-api/pkg/apierror"
)

const (
	DefaultBcryptCost = 12

	// registerAttempts bounds retries when a concurrent registration takes
	// the derived username first.
	registerAttempts = 5

	msgInvalidCredentials = "Invalid credentials"
)

type UserStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, u model.User) error
}

type AuthService struct {
	users      UserStore
	tokens     *TokenService
	policy     PasswordPolicy
	bcryptCost int

	// dummyHash is compared against when the email is unknown so both
	// login failures cost one bcrypt comparison.
	dummyHash []byte
}

func NewAuthService(users UserStore, tokens *TokenService, policy PasswordPolicy, bcryptCost int) (*AuthService, error) {
	if bcryptCost == 0 {
		bcryptCost = DefaultBcryptCost
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", bcryptCost)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &AuthService{
		users:      users,
		tokens:     tokens,
		policy:     policy,
		bcryptCost: bcryptCost,
		dummyHash:  dummy,
	}, nil
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (model.RegisterResponse, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if err := validateRequest(req); err != nil {
		return model.RegisterResponse{}, err
	}

	exists, err := s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return model.RegisterResponse{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return model.RegisterResponse{}, emailTakenError()
	}

	problems := s.policy.Check(req.Password,
		Attribute{Name: "email address", Value: baseUsername(req.Email)},
		Attribute{Name: "first name", Value: req.FirstName},
		Attribute{Name: "last name", Value: req.LastName},
	)
	if len(problems) > 0 {
		return model.RegisterResponse{}, apierror.Validation(strings.Join(problems, " "), "password")
	}

	if req.Password != req.PasswordConfirm {
		return model.RegisterResponse{}, apierror.Validation("Password fields didn't match.", "password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return model.RegisterResponse{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.createUser(ctx, model.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return model.RegisterResponse{}, err
	}

	tokens, err := s.tokens.Issue(ctx, user.ID)
	if err != nil {
		return model.RegisterResponse{}, err
	}

	slog.Info("user registered", "user_id", user.ID, "username", user.Username)

	return model.RegisterResponse{
		User:    user.Public(),
		Tokens:  tokens,
		Message: "User registered successfully",
	}, nil
}

// createUser derives a free username and inserts the user, deriving again if
// another registration claims the same username in between.
func (s *AuthService) createUser(ctx context.Context, user model.User) (model.User, error) {
	base := baseUsername(user.Email)

	for attempt := 0; attempt < registerAttempts; attempt++ {
		username, err := uniqueUsername(ctx, s.users, base)
		if err != nil {
			return model.User{}, err
		}
		user.Username = username

		err = s.users.Create(ctx, user)
		switch {
		case err == nil:
			return user, nil
		case errors.Is(err, model.ErrUsernameTaken):
			continue
		case errors.Is(err, model.ErrEmailTaken):
			return model.User{}, emailTakenError()
		default:
			return model.User{}, fmt.Errorf("create user: %w", err)
		}
	}

	return model.User{}, fmt.Errorf("create user: %w", model.ErrUsernameTaken)
}

func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (model.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return model.LoginResponse{}, apierror.Validation("Email and password are required", "")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
		return model.LoginResponse{}, apierror.Unauthorized(msgInvalidCredentials)
	}
	if err != nil {
		return model.LoginResponse{}, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return model.LoginResponse{}, apierror.Unauthorized(msgInvalidCredentials)
	}

	tokens, err := s.tokens.Issue(ctx, user.ID)
	if err != nil {
		return model.LoginResponse{}, err
	}

	return model.LoginResponse{
		User:    user.Public(),
		Access:  tokens.Access,
		Refresh: tokens.Refresh,
	}, nil
}

// Me resolves the authenticated user; a token whose user no longer exists is
// rejected.
func (s *AuthService) Me(ctx context.Context, userID string) (model.PublicUser, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.PublicUser{}, apierror.Unauthorized("User not found")
	}
	if err != nil {
		return model.PublicUser{}, fmt.Errorf("find user: %w", err)
	}
	return user.Public(), nil
}

func (s *AuthService) Logout(ctx context.Context, userID string, refreshToken string) error {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return apierror.Validation("Refresh token is required", "refresh_token")
	}

	if err := s.tokens.Blacklist(ctx, userID, refreshToken); err != nil {
		return err
	}

	slog.Info("user logged out", "user_id", userID)
	return nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.RefreshResponse, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return model.RefreshResponse{}, apierror.Validation("Refresh token is required", "refresh")
	}

	access, err := s.tokens.Refresh(ctx, refreshToken)
	if err != nil {
		return model.RefreshResponse{}, err
	}
	return model.RefreshResponse{Access: access}, nil
}

// Authenticate resolves an access token to its claims. The token must be
// valid and its user must still exist.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*model.AuthClaims, error) {
	claims, err := s.tokens.ValidateToken(accessToken, TokenTypeAccess)
	if err != nil {
		return nil, apierror.Unauthorized(msgTokenInvalid)
	}

	if _, err := s.users.FindByID(ctx, claims.UserID); err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, apierror.Unauthorized("User not found")
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return claims, nil
}

func emailTakenError() error {
	return apierror.Validation("A user with this email already exists.", "email")
}
