package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/movielix/auth-api/internal/models"
	appErrors "github.com/movielix/auth-api/pkg/errors"
)

type userByIDStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type userCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// UserService resolves user identities for the request gate, front-loaded by
// a short-TTL cache so every authenticated request does not hit Postgres.
type UserService struct {
	users  userByIDStore
	cache  userCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewUserService constructs a UserService. Cache may be nil-backed; lookups
// then always go to the store.
func NewUserService(users userByIDStore, cache userCache, ttl time.Duration, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &UserService{users: users, cache: cache, ttl: ttl, logger: logger}
}

// FindByID returns the user for the given identifier, consulting the cache
// first. Store misses propagate unchanged so callers can distinguish an
// unknown subject from an infrastructure failure.
func (s *UserService) FindByID(ctx context.Context, id string) (*models.User, error) {
	key := userCacheKey(id)

	if s.cache != nil {
		var cached models.User
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if appErrors.FromError(err).Code != appErrors.ErrCacheMiss.Code {
			s.logger.Warn("user cache lookup failed", zap.String("user_id", id), zap.Error(err))
		}
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, user, s.ttl); err != nil {
			s.logger.Warn("user cache write failed", zap.String("user_id", id), zap.Error(err))
		}
	}

	return user, nil
}

func userCacheKey(id string) string {
	return fmt.Sprintf("user:%s", id)
}
