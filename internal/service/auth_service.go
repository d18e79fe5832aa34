package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/movielix/auth-api/internal/models"
	appErrors "github.com/movielix/auth-api/pkg/errors"
)

type authUserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

type refreshTokenStore interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	FindByToken(ctx context.Context, token string) (*models.RefreshToken, error)
	Delete(ctx context.Context, id string) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	// RefreshExpiry bounds refresh-token lifetime. Zero means refresh
	// tokens never expire, matching the minimal exchange flow.
	RefreshExpiry time.Duration
}

// AuthService provides registration, login and refresh-token exchange.
type AuthService struct {
	users     authUserStore
	tokens    refreshTokenStore
	issuer    *TokenService
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users authUserStore, tokens refreshTokenStore, issuer *TokenService, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{users: users, tokens: tokens, issuer: issuer, validator: validate, logger: logger, metrics: metrics, config: config}
}

// Register creates a new account and returns an issued token pair.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing user")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	return s.issueTokenPair(ctx, user)
}

// Login authenticates a user and returns issued tokens.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.IncLogin(false)
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.metrics.IncLogin(false)
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	res, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}
	s.metrics.IncLogin(true)
	return res, nil
}

// Refresh exchanges a refresh token string for a new access token. The
// refresh token string is returned unchanged and stays usable: exchange
// verifies, it does not replace.
func (s *AuthService) Refresh(ctx context.Context, req models.RefreshTokenRequest) (*models.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid refresh payload")
	}

	stored, err := s.tokens.FindByToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.IncRefresh(false)
			return nil, appErrors.Clone(appErrors.ErrRefreshTokenNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch refresh token")
	}

	if stored.Expired(time.Now().UTC()) {
		s.metrics.IncRefresh(false)
		return nil, appErrors.Clone(appErrors.ErrRefreshTokenNotFound, "refresh token expired")
	}

	user, err := s.users.FindByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.IncRefresh(false)
			return nil, appErrors.Clone(appErrors.ErrUserNotFound, "associated user no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	accessToken, expiresAt, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate access token")
	}

	s.metrics.IncRefresh(true)
	return &models.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: stored.Token,
		ExpiresIn:    int64(time.Until(expiresAt).Seconds()),
		IssuedAt:     time.Now().UTC(),
		User:         userInfo(user),
	}, nil
}

// Logout deletes the presented refresh token so it can no longer be
// exchanged.
func (s *AuthService) Logout(ctx context.Context, refreshToken, userID string) error {
	stored, err := s.tokens.FindByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrRefreshTokenNotFound, "")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load refresh token")
	}

	if stored.UserID != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "token does not belong to user")
	}

	if err := s.tokens.Delete(ctx, stored.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete refresh token")
	}
	return nil
}

func (s *AuthService) issueTokenPair(ctx context.Context, user *models.User) (*models.AuthResponse, error) {
	accessToken, expiresAt, err := s.issuer.IssueAccessToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	refreshValue, err := s.issuer.GenerateRefreshTokenString()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}

	refresh := &models.RefreshToken{
		UserID:    user.ID,
		Token:     refreshValue,
		CreatedAt: time.Now().UTC(),
	}
	if s.config.RefreshExpiry > 0 {
		expiry := time.Now().UTC().Add(s.config.RefreshExpiry)
		refresh.ExpiresAt = &expiry
	}

	if err := s.tokens.Create(ctx, refresh); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist refresh token")
	}

	return &models.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refresh.Token,
		ExpiresIn:    int64(time.Until(expiresAt).Seconds()),
		IssuedAt:     time.Now().UTC(),
		User:         userInfo(user),
	}, nil
}

func userInfo(user *models.User) models.UserInfo {
	return models.UserInfo{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
		Role:     user.Role,
	}
}
