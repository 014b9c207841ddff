package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"blueprint-api/internal/model"
	"blueprint-api/internal/repository/memstore"
	"blueprint-api/pkg/apierror"
)

const testSecret = "test-secret"

type authFixture struct {
	auth   *AuthService
	tokens *TokenService
	users  *memstore.UserStore
	store  *memstore.TokenStore
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()

	users := memstore.NewUserStore()
	store := memstore.NewTokenStore()

	tokens, err := NewTokenService(testSecret, 15*time.Minute, 24*time.Hour, store)
	require.NoError(t, err)

	auth, err := NewAuthService(users, tokens, PasswordPolicy{MinLength: 8}, bcrypt.MinCost)
	require.NoError(t, err)

	return authFixture{auth: auth, tokens: tokens, users: users, store: store}
}

func registerRequest(first, last, email string) model.RegisterRequest {
	return model.RegisterRequest{
		FirstName:       first,
		LastName:        last,
		Email:           email,
		Password:        "s3cure-Passphrase",
		PasswordConfirm: "s3cure-Passphrase",
	}
}

func requireAPIError(t *testing.T, err error, status int, message string) *apierror.APIError {
	t.Helper()

	var apiErr *apierror.APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
	require.Equal(t, status, apiErr.HTTPStatus)
	if message != "" {
		require.Equal(t, message, apiErr.Message)
	}
	return apiErr
}


// fakeGenerator records calls and returns canned results.
type fakeGenerator struct {
	mu         sync.Mutex
	configured bool
	doc        model.Document
	impl       model.Implementation
	err        error

	calls      int
	lastIdea   string
	lastDoc    model.Document
	lastModule string
}

func (f *fakeGenerator) Configured() bool { return f.configured }

func (f *fakeGenerator) GenerateSpec(_ context.Context, idea string) (model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastIdea = idea
	return f.doc, f.err
}

func (f *fakeGenerator) RefineSpec(_ context.Context, current model.Document, instruction string) (model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastIdea = instruction
	f.lastDoc = current
	return f.doc, f.err
}

func (f *fakeGenerator) GenerateImplementation(_ context.Context, doc model.Document, moduleName string) (model.Implementation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastDoc = doc
	f.lastModule = moduleName
	return f.impl, f.err
}

func sampleDocument(title string, moduleNames ...string) model.Document {
	modules := make([]model.Module, 0, len(moduleNames))
	for _, name := range moduleNames {
		modules = append(modules, model.Module{Name: name, Entities: []model.Entity{}, APIs: []model.API{}, UI: []model.UI{}})
	}
	return model.Document{Title: title, Modules: modules, KPIs: []string{"signups"}}
}
