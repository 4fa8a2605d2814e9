package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lendstate/lendstate/pkg/models"
	"github.com/lendstate/lendstate/pkg/persistence"
)

// VerificationRepository handles the verification_attempts table.
type VerificationRepository struct {
	db *sql.DB
}

// NewVerificationRepository creates a new verification repository.
func NewVerificationRepository(db *sql.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

func (r *VerificationRepository) Latest(ctx context.Context, key models.AttemptKey) (*models.VerificationAttempt, error) {
	query := `
		SELECT
			id
		  , subject_id
		  , service_type
		  , action_type
		  , token_hash
		  , issued_at
		  , expires_at
		  , is_used
		  , retry_validate_count
		  , max_retry
		  , validated_at
		  , version
		FROM verification_attempts
		WHERE subject_id = $1 AND service_type = $2 AND action_type = $3
		ORDER BY issued_at DESC, id DESC
		LIMIT 1
	`

	var (
		attempt     models.VerificationAttempt
		validatedAt sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, key.SubjectID, key.ServiceType, key.ActionType).Scan(
		&attempt.ID,
		&attempt.SubjectID,
		&attempt.ServiceType,
		&attempt.ActionType,
		&attempt.TokenHash,
		&attempt.IssuedAt,
		&attempt.ExpiresAt,
		&attempt.IsUsed,
		&attempt.RetryValidateCount,
		&attempt.MaxRetry,
		&validatedAt,
		&attempt.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrAttemptNotFound
		}

		return nil, fmt.Errorf("failed to scan verification attempt: %w", err)
	}

	if validatedAt.Valid {
		attempt.ValidatedAt = &validatedAt.Time
	}

	return &attempt, nil
}

func (r *VerificationRepository) CountIssuedSince(ctx context.Context, key models.AttemptKey, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM verification_attempts
		WHERE subject_id = $1 AND service_type = $2 AND action_type = $3 AND issued_at >= $4
	`

	var count int

	err := r.db.QueryRowContext(ctx, query, key.SubjectID, key.ServiceType, key.ActionType, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count verification attempts: %w", err)
	}

	return count, nil
}

func (r *VerificationRepository) Create(ctx context.Context, attempt *models.VerificationAttempt) error {
	query := `
		INSERT INTO verification_attempts (id, subject_id, service_type, action_type, token_hash,
			issued_at, expires_at, is_used, retry_validate_count, max_retry, validated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		attempt.ID,
		attempt.SubjectID,
		attempt.ServiceType,
		attempt.ActionType,
		attempt.TokenHash,
		attempt.IssuedAt,
		attempt.ExpiresAt,
		attempt.IsUsed,
		attempt.RetryValidateCount,
		attempt.MaxRetry,
		attempt.ValidatedAt,
		attempt.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to create verification attempt: %w", err)
	}

	return nil
}

// Update writes the mutable columns when the stored version still matches.
func (r *VerificationRepository) Update(ctx context.Context, attempt *models.VerificationAttempt) error {
	query := `
		UPDATE verification_attempts
		SET is_used = $3, retry_validate_count = $4, validated_at = $5, version = version + 1
		WHERE id = $1 AND version = $2
	`

	result, err := r.db.ExecContext(ctx, query,
		attempt.ID,
		attempt.Version,
		attempt.IsUsed,
		attempt.RetryValidateCount,
		attempt.ValidatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update verification attempt: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return persistence.ErrConcurrentUpdate
	}

	attempt.Version++

	return nil
}
