package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/movielix/auth-api/internal/models"
	appErrors "github.com/movielix/auth-api/pkg/errors"
)

type mapCache struct {
	entries map[string][]byte
	sets    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string][]byte{}}
}

func (m *mapCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	m.sets++
	return nil
}

type countingUserStore struct {
	*mockUserStore
	lookups int
}

func (c *countingUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	c.lookups++
	return c.mockUserStore.FindByID(ctx, id)
}

func TestUserServiceCacheAside(t *testing.T) {
	store := &countingUserStore{mockUserStore: newMockUserStore(&models.User{ID: "u1", Email: "user@example.com", Role: models.RoleUser})}
	cache := newMapCache()
	svc := NewUserService(store, cache, time.Minute, zap.NewNop())

	first, err := svc.FindByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", first.Email)
	assert.Equal(t, 1, store.lookups)
	assert.Equal(t, 1, cache.sets)

	second, err := svc.FindByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, first.Email, second.Email)
	// Served from cache, no second store hit.
	assert.Equal(t, 1, store.lookups)
}

func TestUserServiceUnknownSubject(t *testing.T) {
	store := &countingUserStore{mockUserStore: newMockUserStore()}
	svc := NewUserService(store, newMapCache(), time.Minute, zap.NewNop())

	_, err := svc.FindByID(context.Background(), "ghost")
	require.Error(t, err)
}

func TestUserServiceNilCache(t *testing.T) {
	store := &countingUserStore{mockUserStore: newMockUserStore(&models.User{ID: "u1", Email: "user@example.com"})}
	svc := NewUserService(store, nil, time.Minute, zap.NewNop())

	_, err := svc.FindByID(context.Background(), "u1")
	require.NoError(t, err)
	_, err = svc.FindByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, store.lookups)
}
