package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"blueprint-api/internal/model"
	"blueprint-api/internal/repository/memstore"
)

func TestRegisterDerivesUniqueUsernames(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	first, err := f.auth.Register(ctx, registerRequest("Jane", "Doe", "jane@x.com"))
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", first.User.Name)
	assert.Equal(t, "jane@x.com", first.User.Email)
	assert.Equal(t, "User registered successfully", first.Message)
	assert.NotEmpty(t, first.Tokens.Access)
	assert.NotEmpty(t, first.Tokens.Refresh)

	second, err := f.auth.Register(ctx, registerRequest("Jane", "Roe", "jane@y.com"))
	require.NoError(t, err)
	third, err := f.auth.Register(ctx, registerRequest("Jane", "Poe", "jane@z.com"))
	require.NoError(t, err)

	usernames := []string{}
	for _, id := range []string{first.User.ID, second.User.ID, third.User.ID} {
		u, err := f.users.FindByID(ctx, id)
		require.NoError(t, err)
		usernames = append(usernames, u.Username)
	}
	assert.Equal(t, []string{"jane", "jane1", "jane2"}, usernames)
}

func TestRegisterPicksLowestFreeSuffix(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	require.NoError(t, f.users.Create(ctx, model.User{ID: "a", Username: "sam", Email: "a@a.com"}))
	require.NoError(t, f.users.Create(ctx, model.User{ID: "b", Username: "sam2", Email: "b@b.com"}))

	resp, err := f.auth.Register(ctx, registerRequest("Sam", "Lee", "sam@x.com"))
	require.NoError(t, err)

	u, err := f.users.FindByID(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "sam1", u.Username)
}

func TestRegisterRejectsDuplicateEmailCaseInsensitively(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	_, err := f.auth.Register(ctx, registerRequest("Jane", "Doe", "jane@x.com"))
	require.NoError(t, err)

	_, err = f.auth.Register(ctx, registerRequest("Jane", "Doe", "JANE@x.com"))
	apiErr := requireAPIError(t, err, http.StatusBadRequest, "A user with this email already exists.")
	assert.Equal(t, "email", apiErr.Details)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	t.Run("missing field", func(t *testing.T) {
		req := registerRequest("", "Doe", "jane@x.com")
		_, err := f.auth.Register(ctx, req)
		apiErr := requireAPIError(t, err, http.StatusBadRequest, "This field is required.")
		assert.Equal(t, "first_name", apiErr.Details)
	})

	t.Run("malformed email", func(t *testing.T) {
		_, err := f.auth.Register(ctx, registerRequest("Jane", "Doe", "not-an-email"))
		apiErr := requireAPIError(t, err, http.StatusBadRequest, "Enter a valid email address.")
		assert.Equal(t, "email", apiErr.Details)
	})

	t.Run("password mismatch", func(t *testing.T) {
		req := registerRequest("Jane", "Doe", "jane@x.com")
		req.PasswordConfirm = "something-else-entirely"
		_, err := f.auth.Register(ctx, req)
		apiErr := requireAPIError(t, err, http.StatusBadRequest, "Password fields didn't match.")
		assert.Equal(t, "password", apiErr.Details)
	})

	t.Run("weak password", func(t *testing.T) {
		req := registerRequest("Jane", "Doe", "jane@x.com")
		req.Password, req.PasswordConfirm = "1234", "1234"
		_, err := f.auth.Register(ctx, req)
		apiErr := requireAPIError(t, err, http.StatusBadRequest, "")
		assert.Equal(t, "password", apiErr.Details)
		assert.Contains(t, apiErr.Message, "too short")
		assert.Contains(t, apiErr.Message, "entirely numeric")
	})

	exists, err := f.users.ExistsByEmail(ctx, "jane@x.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRegisterNeverStoresPlaintext(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	resp, err := f.auth.Register(ctx, registerRequest("Jane", "Doe", "jane@x.com"))
	require.NoError(t, err)

	u, err := f.users.FindByID(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "s3cure-Passphrase", u.PasswordHash)
	assert.NotContains(t, u.PasswordHash, "s3cure")
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	_, err := f.auth.Register(ctx, registerRequest("Jane", "Doe", "jane@x.com"))
	require.NoError(t, err)

	t.Run("success with mixed case email", func(t *testing.T) {
		resp, err := f.auth.Login(ctx, model.LoginRequest{Email: " Jane@X.com ", Password: "s3cure-Passphrase"})
		require.NoError(t, err)
		assert.Equal(t, "jane@x.com", resp.User.Email)
		assert.NotEmpty(t, resp.Access)
		assert.NotEmpty(t, resp.Refresh)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := f.auth.Login(ctx, model.LoginRequest{Email: "jane@x.com"})
		requireAPIError(t, err, http.StatusBadRequest, "Email and password are required")
	})

	t.Run("unknown email and wrong password look identical", func(t *testing.T) {
		_, unknownErr := f.auth.Login(ctx, model.LoginRequest{Email: "nobody@x.com", Password: "whatever-pass"})
		_, wrongErr := f.auth.Login(ctx, model.LoginRequest{Email: "jane@x.com", Password: "whatever-pass"})

		unknown := requireAPIError(t, unknownErr, http.StatusUnauthorized, "Invalid credentials")
		wrong := requireAPIError(t, wrongErr, http.StatusUnauthorized, "Invalid credentials")
		assert.Equal(t, unknown, wrong)
	})
}

func TestMe(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	resp, err := f.auth.Register(ctx, registerRequest("Jane", "Doe", "jane@x.com"))
	require.NoError(t, err)

	claims, err := f.auth.Authenticate(ctx, resp.Tokens.Access)
	require.NoError(t, err)

	me, err := f.auth.Me(ctx, claims.UserID)
	require.NoError(t, err)
	assert.Equal(t, resp.User, me)

	_, err = f.auth.Me(ctx, "ghost")
	requireAPIError(t, err, http.StatusUnauthorized, "User not found")
}

func TestAuthenticateRequiresLiveUser(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	resp, err := f.auth.Register(ctx, registerRequest("Jane", "Doe", "jane@x.com"))
	require.NoError(t, err)

	claims, err := f.auth.Authenticate(ctx, resp.Tokens.Access)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)

	_, err = f.auth.Authenticate(ctx, resp.Tokens.Refresh)
	requireAPIError(t, err, http.StatusUnauthorized, "Token is invalid or expired")

	_, err = f.auth.Authenticate(ctx, "garbage")
	requireAPIError(t, err, http.StatusUnauthorized, "Token is invalid or expired")

	// Same signing key, but the user is unknown to this store.
	emptied, err := NewAuthService(memstore.NewUserStore(), f.tokens, PasswordPolicy{MinLength: 8}, bcrypt.MinCost)
	require.NoError(t, err)
	_, err = emptied.Authenticate(ctx, resp.Tokens.Access)
	requireAPIError(t, err, http.StatusUnauthorized, "User not found")
}

func TestLogoutTwiceFails(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	resp, err := f.auth.Register(ctx, registerRequest("Jane", "Doe", "jane@x.com"))
	require.NoError(t, err)

	require.NoError(t, f.auth.Logout(ctx, resp.User.ID, resp.Tokens.Refresh))

	err = f.auth.Logout(ctx, resp.User.ID, resp.Tokens.Refresh)
	requireAPIError(t, err, http.StatusBadRequest, "Token is blacklisted")

	_, err = f.auth.Refresh(ctx, resp.Tokens.Refresh)
	requireAPIError(t, err, http.StatusUnauthorized, "Token is blacklisted")
}

func TestLogoutRejections(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	jane, err := f.auth.Register(ctx, registerRequest("Jane", "Doe", "jane@x.com"))
	require.NoError(t, err)
	john, err := f.auth.Register(ctx, registerRequest("John", "Roe", "john@x.com"))
	require.NoError(t, err)

	err = f.auth.Logout(ctx, jane.User.ID, "")
	requireAPIError(t, err, http.StatusBadRequest, "Refresh token is required")

	err = f.auth.Logout(ctx, jane.User.ID, "garbage")
	requireAPIError(t, err, http.StatusBadRequest, "Token is invalid or expired")

	err = f.auth.Logout(ctx, jane.User.ID, jane.Tokens.Access)
	requireAPIError(t, err, http.StatusBadRequest, "Token is invalid or expired")

	err = f.auth.Logout(ctx, jane.User.ID, john.Tokens.Refresh)
	requireAPIError(t, err, http.StatusBadRequest, "Token does not belong to the authenticated user")
}

func TestRefreshIssuesAccessToken(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	resp, err := f.auth.Register(ctx, registerRequest("Jane", "Doe", "jane@x.com"))
	require.NoError(t, err)

	refreshed, err := f.auth.Refresh(ctx, resp.Tokens.Refresh)
	require.NoError(t, err)

	claims, err := f.auth.Authenticate(ctx, refreshed.Access)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)

	_, err = f.auth.Refresh(ctx, resp.Tokens.Access)
	requireAPIError(t, err, http.StatusUnauthorized, "")
}
