package models

import "time"

// OtpChallenge is a single password-reset challenge. One row is written per
// reset request; rows are never updated, only deleted once found expired.
type OtpChallenge struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Code      int       `db:"code" json:"-"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Expired reports whether the challenge may no longer be accepted. A
// challenge checked exactly at its expiration instant counts as expired.
func (c *OtpChallenge) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}
