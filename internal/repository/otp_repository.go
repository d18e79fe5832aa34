package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/movielix/auth-api/internal/models"
)

// OtpRepository provides database access for password-reset challenges.
type OtpRepository struct {
	db *sqlx.DB
}

// NewOtpRepository creates a new instance of OtpRepository.
func NewOtpRepository(db *sqlx.DB) *OtpRepository {
	return &OtpRepository{db: db}
}

// Create persists a challenge row.
func (r *OtpRepository) Create(ctx context.Context, challenge *models.OtpChallenge) error {
	if challenge.ID == "" {
		challenge.ID = uuid.NewString()
	}
	if challenge.CreatedAt.IsZero() {
		challenge.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO otp_challenges (id, user_id, code, expires_at, created_at) VALUES (:id, :user_id, :code, :expires_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, challenge); err != nil {
		return fmt.Errorf("create otp challenge: %w", err)
	}
	return nil
}

// FindByCodeAndUser returns the newest challenge matching the code for the
// user. Multiple outstanding challenges may exist; the most recent wins.
func (r *OtpRepository) FindByCodeAndUser(ctx context.Context, code int, userID string) (*models.OtpChallenge, error) {
	const query = `SELECT id, user_id, code, expires_at, created_at FROM otp_challenges WHERE code = $1 AND user_id = $2 ORDER BY created_at DESC LIMIT 1`
	var challenge models.OtpChallenge
	if err := r.db.GetContext(ctx, &challenge, query, code, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find otp challenge: %w", err)
	}
	return &challenge, nil
}

// Delete removes a challenge row.
func (r *OtpRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM otp_challenges WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete otp challenge: %w", err)
	}
	return nil
}
