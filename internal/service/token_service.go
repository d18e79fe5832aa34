package service

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/movielix/auth-api/internal/models"
	appErrors "github.com/movielix/auth-api/pkg/errors"
)

// TokenConfig holds key material and the access-token lifetime.
type TokenConfig struct {
	Secret string
	Expiry time.Duration
	Issuer string
}

// TokenService issues and verifies access tokens and mints opaque refresh
// token strings. Verification is a pure check against the signing key and
// wall clock; it never touches a store.
type TokenService struct {
	config TokenConfig
}

// NewTokenService constructs a TokenService. An empty secret is a
// programming error surfaced at startup, not a per-call condition.
func NewTokenService(config TokenConfig) (*TokenService, error) {
	if config.Secret == "" {
		return nil, fmt.Errorf("token service: signing secret is required")
	}
	if config.Expiry <= 0 {
		config.Expiry = 25 * time.Minute
	}
	return &TokenService{config: config}, nil
}

// IssueAccessToken signs a short-lived access token bound to the user.
func (s *TokenService) IssueAccessToken(user *models.User) (string, time.Time, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.config.Expiry)
	claims := &models.JWTClaims{
		UserID: user.ID,
		Role:   user.Role,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// GenerateRefreshTokenString mints an opaque random token string. The value
// carries no claims; validity is established by the persisted row alone.
func (s *TokenService) GenerateRefreshTokenString() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Verify validates signature, expiry and structural encoding, returning the
// claims on success. Signature mismatch, expiry and malformed input all
// surface as an unauthorized error.
func (s *TokenService) Verify(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

// ExtractSubject decodes the subject claim without trusting the token. It is
// used by the request gate to decide which user to load before the real
// verification runs; callers must never treat the result as authenticated.
func (s *TokenService) ExtractSubject(tokenString string) (string, error) {
	parser := jwt.NewParser()
	var claims models.JWTClaims
	if _, _, err := parser.ParseUnverified(tokenString, &claims); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "malformed token")
	}
	return claims.Subject, nil
}
