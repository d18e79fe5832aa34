package handler

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/movielix/auth-api/internal/models"
	"github.com/movielix/auth-api/internal/service"
)

type memOtpStore struct {
	challenges []*models.OtpChallenge
	seq        int
}

func (s *memOtpStore) Create(ctx context.Context, challenge *models.OtpChallenge) error {
	s.seq++
	challenge.ID = fmt.Sprintf("otp-%d", s.seq)
	if challenge.CreatedAt.IsZero() {
		challenge.CreatedAt = time.Now().UTC()
	}
	copied := *challenge
	s.challenges = append(s.challenges, &copied)
	return nil
}

func (s *memOtpStore) FindByCodeAndUser(ctx context.Context, code int, userID string) (*models.OtpChallenge, error) {
	var newest *models.OtpChallenge
	for _, c := range s.challenges {
		if c.Code != code || c.UserID != userID {
			continue
		}
		if newest == nil || c.CreatedAt.After(newest.CreatedAt) {
			newest = c
		}
	}
	if newest == nil {
		return nil, sql.ErrNoRows
	}
	copied := *newest
	return &copied, nil
}

func (s *memOtpStore) Delete(ctx context.Context, id string) error {
	for i, c := range s.challenges {
		if c.ID == id {
			s.challenges = append(s.challenges[:i], s.challenges[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

type recordingNotifier struct {
	emails []string
	codes  []int
}

func (n *recordingNotifier) NotifyOtp(email string, code int) error {
	n.emails = append(n.emails, email)
	n.codes = append(n.codes, code)
	return nil
}

func newResetFixture(t *testing.T) (*PasswordResetHandler, *memUserStore, *memOtpStore, *recordingNotifier) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := &memUserStore{}
	otps := &memOtpStore{}
	notifier := &recordingNotifier{}
	svc := service.NewPasswordResetService(users, otps, notifier, nil, nil, nil, service.ResetConfig{OtpWindow: 70 * time.Second})
	return NewPasswordResetHandler(svc), users, otps, notifier
}

func pathContext(t *testing.T, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodPost, "/", nil)
	require.NoError(t, err)
	c.Request = req
	c.Params = params
	return c, w
}

func TestPasswordResetVerifyMail(t *testing.T) {
	handler, users, otps, notifier := newResetFixture(t)
	user := seedUser(t, users, "user@example.com", "sekret1")

	c, w := pathContext(t, gin.Params{{Key: "email", Value: "user@example.com"}})
	handler.VerifyMail(c)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, otps.challenges, 1)
	challenge := otps.challenges[0]
	require.Equal(t, user.ID, challenge.UserID)
	require.GreaterOrEqual(t, challenge.Code, 100000)
	require.LessOrEqual(t, challenge.Code, 999999)

	require.Equal(t, []string{"user@example.com"}, notifier.emails)
	require.Equal(t, []int{challenge.Code}, notifier.codes)
}

func TestPasswordResetVerifyMailUnknownEmail(t *testing.T) {
	handler, _, otps, _ := newResetFixture(t)

	c, w := pathContext(t, gin.Params{{Key: "email", Value: "nobody@example.com"}})
	handler.VerifyMail(c)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Empty(t, otps.challenges)
}

func TestPasswordResetVerifyOtp(t *testing.T) {
	handler, users, otps, _ := newResetFixture(t)
	user := seedUser(t, users, "user@example.com", "sekret1")
	require.NoError(t, otps.Create(context.Background(), &models.OtpChallenge{
		UserID:    user.ID,
		Code:      123456,
		ExpiresAt: time.Now().UTC().Add(time.Minute),
	}))

	c, w := pathContext(t, gin.Params{
		{Key: "otp", Value: "123456"},
		{Key: "email", Value: "user@example.com"},
	})
	handler.VerifyOtp(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestPasswordResetVerifyOtpExpired(t *testing.T) {
	handler, users, otps, _ := newResetFixture(t)
	user := seedUser(t, users, "user@example.com", "sekret1")
	require.NoError(t, otps.Create(context.Background(), &models.OtpChallenge{
		UserID:    user.ID,
		Code:      123456,
		ExpiresAt: time.Now().UTC().Add(-time.Second),
	}))

	// The expired challenge is consumed by the failed check.
	c, w := pathContext(t, gin.Params{
		{Key: "otp", Value: "123456"},
		{Key: "email", Value: "user@example.com"},
	})
	handler.VerifyOtp(c)
	require.Equal(t, http.StatusExpectationFailed, w.Code)
	require.Contains(t, w.Body.String(), "OTP_EXPIRED")
	require.Empty(t, otps.challenges)

	// Presenting the same code again now reads as invalid, not expired.
	c, w = pathContext(t, gin.Params{
		{Key: "otp", Value: "123456"},
		{Key: "email", Value: "user@example.com"},
	})
	handler.VerifyOtp(c)
	require.Equal(t, http.StatusExpectationFailed, w.Code)
	require.Contains(t, w.Body.String(), "INVALID_OTP")
}

func TestPasswordResetVerifyOtpNonNumeric(t *testing.T) {
	handler, users, _, _ := newResetFixture(t)
	seedUser(t, users, "user@example.com", "sekret1")

	c, w := pathContext(t, gin.Params{
		{Key: "otp", Value: "abc123"},
		{Key: "email", Value: "user@example.com"},
	})
	handler.VerifyOtp(c)
	require.Equal(t, http.StatusExpectationFailed, w.Code)
	require.Contains(t, w.Body.String(), "INVALID_OTP")
}

func TestPasswordResetVerifyOtpWrongCode(t *testing.T) {
	handler, users, otps, _ := newResetFixture(t)
	user := seedUser(t, users, "user@example.com", "sekret1")
	require.NoError(t, otps.Create(context.Background(), &models.OtpChallenge{
		UserID:    user.ID,
		Code:      123456,
		ExpiresAt: time.Now().UTC().Add(time.Minute),
	}))

	c, w := pathContext(t, gin.Params{
		{Key: "otp", Value: "654321"},
		{Key: "email", Value: "user@example.com"},
	})
	handler.VerifyOtp(c)
	require.Equal(t, http.StatusExpectationFailed, w.Code)
	require.Contains(t, w.Body.String(), "INVALID_OTP")
}

func TestPasswordResetChangePassword(t *testing.T) {
	handler, users, _, _ := newResetFixture(t)
	seedUser(t, users, "user@example.com", "oldpass1")

	c, w := jsonContext(t, models.ChangePasswordRequest{Password: "newpass1", RepeatPassword: "newpass1"})
	c.Params = gin.Params{{Key: "email", Value: "user@example.com"}}
	handler.ChangePassword(c)
	require.Equal(t, http.StatusOK, w.Code)

	updated, err := users.FindByEmail(context.Background(), "user@example.com")
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("newpass1")))
}

func TestPasswordResetChangePasswordMismatch(t *testing.T) {
	handler, users, _, _ := newResetFixture(t)
	user := seedUser(t, users, "user@example.com", "oldpass1")
	originalHash := user.PasswordHash

	c, w := jsonContext(t, models.ChangePasswordRequest{Password: "newpass1", RepeatPassword: "different1"})
	c.Params = gin.Params{{Key: "email", Value: "user@example.com"}}
	handler.ChangePassword(c)
	require.Equal(t, http.StatusExpectationFailed, w.Code)
	require.Contains(t, w.Body.String(), "PASSWORD_MISMATCH")

	stored, err := users.FindByEmail(context.Background(), "user@example.com")
	require.NoError(t, err)
	require.Equal(t, originalHash, stored.PasswordHash)
}
