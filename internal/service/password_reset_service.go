package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"math/big"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/movielix/auth-api/internal/models"
	appErrors "github.com/movielix/auth-api/pkg/errors"
)

const (
	otpMin = 100000
	otpMax = 999999
)

type resetUserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePasswordByEmail(ctx context.Context, email, passwordHash string, updatedAt time.Time) error
}

type otpStore interface {
	Create(ctx context.Context, challenge *models.OtpChallenge) error
	FindByCodeAndUser(ctx context.Context, code int, userID string) (*models.OtpChallenge, error)
	Delete(ctx context.Context, id string) error
}

// OtpNotifier dispatches a reset code to a user out-of-band.
type OtpNotifier interface {
	NotifyOtp(email string, code int) error
}

// ResetConfig controls the challenge window.
type ResetConfig struct {
	OtpWindow time.Duration
}

// PasswordResetService implements the three-stage reset flow: a challenge is
// requested and mailed, verified against its absolute expiry, then the
// password is replaced.
type PasswordResetService struct {
	users     resetUserStore
	otps      otpStore
	notifier  OtpNotifier
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	config    ResetConfig
}

// NewPasswordResetService constructs a PasswordResetService.
func NewPasswordResetService(users resetUserStore, otps otpStore, notifier OtpNotifier, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService, config ResetConfig) *PasswordResetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.OtpWindow <= 0 {
		config.OtpWindow = 70 * time.Second
	}
	return &PasswordResetService{users: users, otps: otps, notifier: notifier, validator: validate, logger: logger, metrics: metrics, config: config}
}

// RequestReset generates a challenge for the account owning the email and
// dispatches the code. Prior outstanding challenges are left untouched; each
// request writes its own row. A dispatch failure is logged but does not roll
// back the persisted challenge, the caller may simply retry.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrUserNotFound, "no account for this email")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	code, err := generateOtp()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate otp")
	}

	challenge := &models.OtpChallenge{
		UserID:    user.ID,
		Code:      code,
		ExpiresAt: time.Now().UTC().Add(s.config.OtpWindow),
	}
	if err := s.otps.Create(ctx, challenge); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist otp challenge")
	}

	if err := s.notifier.NotifyOtp(email, code); err != nil {
		s.logger.Warn("failed to dispatch otp notification", zap.String("email", email), zap.Error(err))
	}

	s.metrics.IncOtpIssued()
	return nil
}

// VerifyOtp checks a presented code against the newest matching challenge.
// A challenge found at or past its expiration instant is deleted and the
// call fails; the caller must restart the flow.
func (s *PasswordResetService) VerifyOtp(ctx context.Context, code int, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrUserNotFound, "no account for this email")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	challenge, err := s.otps.FindByCodeAndUser(ctx, code, user.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.IncOtpVerification("invalid")
			return appErrors.Clone(appErrors.ErrInvalidOtp, "")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch otp challenge")
	}

	if challenge.Expired(time.Now().UTC()) {
		if err := s.otps.Delete(ctx, challenge.ID); err != nil {
			s.logger.Warn("failed to delete expired otp challenge", zap.String("challenge_id", challenge.ID), zap.Error(err))
		}
		s.metrics.IncOtpVerification("expired")
		return appErrors.Clone(appErrors.ErrOtpExpired, "")
	}

	s.metrics.IncOtpVerification("ok")
	return nil
}

// ChangePassword completes the flow: the two supplied passwords must match,
// then the stored hash is replaced for the account owning the email.
func (s *PasswordResetService) ChangePassword(ctx context.Context, email string, req models.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change password payload")
	}

	if req.Password != req.RepeatPassword {
		return appErrors.Clone(appErrors.ErrPasswordMismatch, "")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	if err := s.users.UpdatePasswordByEmail(ctx, email, string(hash), time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}

	s.metrics.IncPasswordReset()
	return nil
}

// generateOtp draws uniformly from [100000, 999999] using crypto/rand.
func generateOtp() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return 0, err
	}
	return otpMin + int(n.Int64()), nil
}
