package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/movielix/auth-api/internal/middleware"
	"github.com/movielix/auth-api/internal/models"
	"github.com/movielix/auth-api/internal/service"
)

type memUserStore struct {
	users []*models.User
	seq   int
}

func (s *memUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memUserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			copied := *u
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memUserStore) Create(ctx context.Context, user *models.User) error {
	s.seq++
	user.ID = fmt.Sprintf("user-%d", s.seq)
	copied := *user
	s.users = append(s.users, &copied)
	return nil
}

func (s *memUserStore) UpdatePasswordByEmail(ctx context.Context, email, passwordHash string, updatedAt time.Time) error {
	for _, u := range s.users {
		if u.Email == email {
			u.PasswordHash = passwordHash
			u.UpdatedAt = updatedAt
			return nil
		}
	}
	return sql.ErrNoRows
}

type memTokenStore struct {
	tokens []*models.RefreshToken
	seq    int
}

func (s *memTokenStore) Create(ctx context.Context, token *models.RefreshToken) error {
	s.seq++
	token.ID = fmt.Sprintf("rt-%d", s.seq)
	copied := *token
	s.tokens = append(s.tokens, &copied)
	return nil
}

func (s *memTokenStore) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	for _, t := range s.tokens {
		if t.Token == token {
			copied := *t
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memTokenStore) Delete(ctx context.Context, id string) error {
	for i, t := range s.tokens {
		if t.ID == id {
			s.tokens = append(s.tokens[:i], s.tokens[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func seedUser(t *testing.T, store *memUserStore, email, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{Email: email, Username: "seeded", PasswordHash: string(hash), Role: models.RoleUser}
	require.NoError(t, store.Create(context.Background(), user))
	return user
}

func newAuthFixture(t *testing.T) (*AuthHandler, *memUserStore, *memTokenStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	issuer, err := service.NewTokenService(service.TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"})
	require.NoError(t, err)

	users := &memUserStore{}
	tokens := &memTokenStore{}
	svc := service.NewAuthService(users, tokens, issuer, nil, nil, nil, service.AuthConfig{})
	return NewAuthHandler(svc), users, tokens
}

func jsonContext(t *testing.T, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(http.MethodPost, "/", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func decodeAuthResponse(t *testing.T, w *httptest.ResponseRecorder) models.AuthResponse {
	t.Helper()
	var envelope struct {
		Data models.AuthResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestAuthHandlerRegisterThenLogin(t *testing.T) {
	handler, _, _ := newAuthFixture(t)

	c, w := jsonContext(t, models.RegisterRequest{Email: "new@example.com", Username: "newbie", Password: "sekret1"})
	handler.Register(c)
	require.Equal(t, http.StatusOK, w.Code)
	registered := decodeAuthResponse(t, w)
	require.NotEmpty(t, registered.AccessToken)
	require.NotEmpty(t, registered.RefreshToken)

	c, w = jsonContext(t, models.LoginRequest{Email: "new@example.com", Password: "sekret1"})
	handler.Login(c)
	require.Equal(t, http.StatusOK, w.Code)
	loggedIn := decodeAuthResponse(t, w)
	require.Equal(t, "new@example.com", loggedIn.User.Email)
}

func TestAuthHandlerRegisterDuplicateEmail(t *testing.T) {
	handler, users, _ := newAuthFixture(t)
	seedUser(t, users, "taken@example.com", "sekret1")

	c, w := jsonContext(t, models.RegisterRequest{Email: "taken@example.com", Username: "other", Password: "sekret1"})
	handler.Register(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestAuthHandlerLoginWrongPassword(t *testing.T) {
	handler, users, _ := newAuthFixture(t)
	seedUser(t, users, "user@example.com", "correct1")

	c, w := jsonContext(t, models.LoginRequest{Email: "user@example.com", Password: "wrong1"})
	handler.Login(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerLoginMalformedBody(t *testing.T) {
	handler, _, _ := newAuthFixture(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	c.Request = req

	handler.Login(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerRefreshKeepsTokenUsable(t *testing.T) {
	handler, users, _ := newAuthFixture(t)
	seedUser(t, users, "user@example.com", "sekret1")

	c, w := jsonContext(t, models.LoginRequest{Email: "user@example.com", Password: "sekret1"})
	handler.Login(c)
	require.Equal(t, http.StatusOK, w.Code)
	session := decodeAuthResponse(t, w)

	// First exchange returns the same refresh token alongside a fresh access token.
	c, w = jsonContext(t, models.RefreshTokenRequest{RefreshToken: session.RefreshToken})
	handler.Refresh(c)
	require.Equal(t, http.StatusOK, w.Code)
	first := decodeAuthResponse(t, w)
	require.Equal(t, session.RefreshToken, first.RefreshToken)
	require.NotEqual(t, session.AccessToken, first.AccessToken)

	// The same string exchanges again.
	c, w = jsonContext(t, models.RefreshTokenRequest{RefreshToken: session.RefreshToken})
	handler.Refresh(c)
	require.Equal(t, http.StatusOK, w.Code)
	second := decodeAuthResponse(t, w)
	require.Equal(t, session.RefreshToken, second.RefreshToken)
}

func TestAuthHandlerRefreshUnknownToken(t *testing.T) {
	handler, _, _ := newAuthFixture(t)

	c, w := jsonContext(t, models.RefreshTokenRequest{RefreshToken: "never-issued"})
	handler.Refresh(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerLogoutInvalidatesToken(t *testing.T) {
	handler, users, _ := newAuthFixture(t)
	user := seedUser(t, users, "user@example.com", "sekret1")

	c, w := jsonContext(t, models.LoginRequest{Email: "user@example.com", Password: "sekret1"})
	handler.Login(c)
	require.Equal(t, http.StatusOK, w.Code)
	session := decodeAuthResponse(t, w)

	c, w = jsonContext(t, models.RefreshTokenRequest{RefreshToken: session.RefreshToken})
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: user.ID, Role: user.Role, Email: user.Email})
	handler.Logout(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)

	c, w = jsonContext(t, models.RefreshTokenRequest{RefreshToken: session.RefreshToken})
	handler.Refresh(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerLogoutWithoutIdentity(t *testing.T) {
	handler, _, _ := newAuthFixture(t)

	c, w := jsonContext(t, models.RefreshTokenRequest{RefreshToken: "whatever"})
	handler.Logout(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerMe(t *testing.T) {
	handler, _, _ := newAuthFixture(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodGet, "/auth/me", nil)
	require.NoError(t, err)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleUser, Email: "me@example.com"})

	handler.Me(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "me@example.com")
}
