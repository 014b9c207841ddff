//go:build integration

package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blueprint-api/internal/database"
	"blueprint-api/internal/model"
)

// Run with TEST_DATABASE_URL pointing at a disposable database:
//
//	go test -tags integration ./internal/repository/...
func openTestDB(t *testing.T) *database.DB {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()
	db, err := database.New(ctx, url, 4, 0)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.EnsureSchema(ctx))
	_, err = db.Pool.Exec(ctx, `TRUNCATE specs, refresh_tokens, users CASCADE`)
	require.NoError(t, err)

	return db
}

func newUser(username, email string) model.User {
	return model.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		FirstName:    "Test",
		LastName:     "User",
		PasswordHash: "$2a$04$placeholder",
		CreatedAt:    time.Now().UTC(),
	}
}

func TestUserRepositoryUniqueness(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db.Pool)

	jane := newUser("jane", "jane@x.com")
	require.NoError(t, repo.Create(ctx, jane))

	require.ErrorIs(t, repo.Create(ctx, newUser("other", "JANE@x.com")), model.ErrEmailTaken)
	require.ErrorIs(t, repo.Create(ctx, newUser("JANE", "jane@y.com")), model.ErrUsernameTaken)

	found, err := repo.FindByEmail(ctx, "Jane@X.com")
	require.NoError(t, err)
	assert.Equal(t, jane.ID, found.ID)

	taken, err := repo.ExistsByUsername(ctx, "jane")
	require.NoError(t, err)
	assert.True(t, taken)

	_, err = repo.FindByID(ctx, uuid.NewString())
	require.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestTokenRepositoryBlacklist(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(db.Pool)
	tokens := NewTokenRepository(db.Pool)

	user := newUser("jane", "jane@x.com")
	require.NoError(t, users.Create(ctx, user))

	now := time.Now().UTC()
	live := model.RefreshToken{TokenID: uuid.NewString(), UserID: user.ID, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	stale := model.RefreshToken{TokenID: uuid.NewString(), UserID: user.ID, CreatedAt: now, ExpiresAt: now.Add(-time.Minute)}
	require.NoError(t, tokens.Store(ctx, live))
	require.NoError(t, tokens.Store(ctx, stale))

	require.NoError(t, tokens.Blacklist(ctx, live.TokenID))
	require.ErrorIs(t, tokens.Blacklist(ctx, live.TokenID), model.ErrTokenBlacklisted)
	require.ErrorIs(t, tokens.Blacklist(ctx, stale.TokenID), model.ErrTokenNotFound)
	require.ErrorIs(t, tokens.Blacklist(ctx, uuid.NewString()), model.ErrTokenNotFound)

	removed, err := tokens.CleanExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)
}

func TestSpecRepositoryOwnershipAndOrdering(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(db.Pool)
	specs := NewSpecRepository(db.Pool)

	owner := newUser("owner", "owner@x.com")
	other := newUser("other", "other@x.com")
	require.NoError(t, users.Create(ctx, owner))
	require.NoError(t, users.Create(ctx, other))

	base := time.Now().UTC().Truncate(time.Microsecond)
	var ids []string
	for i := 0; i < 12; i++ {
		spec := model.Spec{
			ID:        uuid.NewString(),
			UserID:    owner.ID,
			Idea:      "idea",
			Document:  model.Document{Title: "t", Modules: []model.Module{}, KPIs: []string{}},
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			UpdatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, specs.Create(ctx, spec))
		ids = append(ids, spec.ID)
	}

	list, err := specs.ListRecentForUser(ctx, owner.ID, model.SpecListLimit)
	require.NoError(t, err)
	require.Len(t, list, model.SpecListLimit)
	assert.Equal(t, ids[11], list[0].ID)

	_, err = specs.FindForUser(ctx, ids[0], other.ID)
	require.ErrorIs(t, err, model.ErrSpecNotFound)

	_, err = specs.UpdateDocument(ctx, ids[0], other.ID, model.Document{Title: "hijack"})
	require.ErrorIs(t, err, model.ErrSpecNotFound)

	before, err := specs.FindForUser(ctx, ids[0], owner.ID)
	require.NoError(t, err)
	updated, err := specs.UpdateDocument(ctx, ids[0], owner.ID, model.Document{Title: "v2", Modules: []model.Module{}, KPIs: []string{}})
	require.NoError(t, err)
	assert.Equal(t, "v2", updated.Document.Title)
	assert.True(t, before.CreatedAt.Equal(updated.CreatedAt))
	assert.True(t, updated.UpdatedAt.After(before.UpdatedAt))
}
