package models

import "time"

// RefreshToken represents a persisted long-lived credential. The token string
// is opaque and not self-verifying; possession plus a live row is the proof.
// ExpiresAt is optional: a nil value means the token never expires.
type RefreshToken struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	Token     string     `db:"token" json:"token"`
	ExpiresAt *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Expired reports whether the token carries an expiry that has passed.
func (t *RefreshToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !t.ExpiresAt.After(now)
}
