// Package memstore holds in-memory implementations of the user, refresh
// token and spec stores. They follow the PostgreSQL repositories' semantics
// and are used by tests and by STORE_DRIVER=memory.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"blueprint-api/internal/model"
)

type UserStore struct {
	mu    sync.RWMutex
	users map[string]model.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: map[string]model.User{}}
}

func (s *UserStore) FindByID(_ context.Context, id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (s *UserStore) FindByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (s *UserStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := s.FindByEmail(ctx, email)
	return err == nil, nil
}

func (s *UserStore) ExistsByUsername(_ context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.usernameTakenLocked(username), nil
}

func (s *UserStore) Create(_ context.Context, u model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return model.ErrEmailTaken
		}
	}
	if s.usernameTakenLocked(u.Username) {
		return model.ErrUsernameTaken
	}

	s.users[u.ID] = u
	return nil
}

func (s *UserStore) usernameTakenLocked(username string) bool {
	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, strings.TrimSpace(username)) {
			return true
		}
	}
	return false
}

type TokenStore struct {
	mu     sync.Mutex
	tokens map[string]model.RefreshToken
	now    func() time.Time
}

func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: map[string]model.RefreshToken{}, now: time.Now}
}

func (s *TokenStore) Store(_ context.Context, token model.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[token.TokenID] = token
	return nil
}

func (s *TokenStore) Find(_ context.Context, tokenID string) (model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[tokenID]
	if !ok {
		return model.RefreshToken{}, model.ErrTokenNotFound
	}
	return t, nil
}

func (s *TokenStore) Blacklist(_ context.Context, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[tokenID]
	if !ok {
		return model.ErrTokenNotFound
	}
	if t.BlacklistedAt != nil {
		return model.ErrTokenBlacklisted
	}

	now := s.now().UTC()
	if !now.Before(t.ExpiresAt) {
		return model.ErrTokenNotFound
	}
	t.BlacklistedAt = &now
	s.tokens[tokenID] = t
	return nil
}

type SpecStore struct {
	mu    sync.RWMutex
	specs map[string]model.Spec
	now   func() time.Time
}

func NewSpecStore() *SpecStore {
	return &SpecStore{specs: map[string]model.Spec{}, now: time.Now}
}

func (s *SpecStore) Create(_ context.Context, spec model.Spec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.specs[spec.ID] = spec
	return nil
}

func (s *SpecStore) FindForUser(_ context.Context, id string, userID string) (model.Spec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	spec, ok := s.specs[id]
	if !ok || spec.UserID != userID {
		return model.Spec{}, model.ErrSpecNotFound
	}
	return spec, nil
}

func (s *SpecStore) ListRecentForUser(_ context.Context, userID string, limit int) ([]model.Spec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owned := make([]model.Spec, 0)
	for _, spec := range s.specs {
		if spec.UserID == userID {
			owned = append(owned, spec)
		}
	}

	sort.Slice(owned, func(i, j int) bool {
		if owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].ID > owned[j].ID
		}
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})

	if limit >= 0 && len(owned) > limit {
		owned = owned[:limit]
	}
	return owned, nil
}

func (s *SpecStore) UpdateDocument(_ context.Context, id string, userID string, doc model.Document) (model.Spec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	spec, ok := s.specs[id]
	if !ok || spec.UserID != userID {
		return model.Spec{}, model.ErrSpecNotFound
	}

	updated := s.now().UTC()
	if floor := spec.UpdatedAt.Add(time.Microsecond); updated.Before(floor) {
		updated = floor
	}

	spec.Document = doc
	spec.UpdatedAt = updated
	s.specs[id] = spec
	return spec, nil
}
