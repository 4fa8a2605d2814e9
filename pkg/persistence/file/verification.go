package file

import (
	"context"
	"fmt"
	"time"

	"github.com/lendstate/lendstate/pkg/models"
	"github.com/lendstate/lendstate/pkg/persistence"
)

// VerificationRepository keeps the attempts of one key in a single JSON array, oldest first.
type VerificationRepository struct {
	fp *Persistence
}

func keyFile(key models.AttemptKey) string {
	return key.Encoded()
}

func (vr *VerificationRepository) readLocked(key models.AttemptKey) ([]*models.VerificationAttempt, error) {
	attempts := make([]*models.VerificationAttempt, 0)

	_, err := readJSON(vr.fp.path("verifications", keyFile(key)), &attempts)
	if err != nil {
		return nil, fmt.Errorf("failed to read attempts for %s: %w", keyFile(key), err)
	}

	return attempts, nil
}

func (vr *VerificationRepository) writeLocked(key models.AttemptKey, attempts []*models.VerificationAttempt) error {
	return writeJSON(vr.fp.path("verifications", keyFile(key)), attempts)
}

func (vr *VerificationRepository) Latest(_ context.Context, key models.AttemptKey) (*models.VerificationAttempt, error) {
	vr.fp.mu.Lock()
	defer vr.fp.mu.Unlock()

	attempts, err := vr.readLocked(key)
	if err != nil {
		return nil, err
	}

	if len(attempts) == 0 {
		return nil, persistence.ErrAttemptNotFound
	}

	return attempts[len(attempts)-1], nil
}

func (vr *VerificationRepository) CountIssuedSince(_ context.Context, key models.AttemptKey, since time.Time) (int, error) {
	vr.fp.mu.Lock()
	defer vr.fp.mu.Unlock()

	attempts, err := vr.readLocked(key)
	if err != nil {
		return 0, err
	}

	count := 0

	for _, attempt := range attempts {
		if !attempt.IssuedAt.Before(since) {
			count++
		}
	}

	return count, nil
}

func (vr *VerificationRepository) Create(_ context.Context, attempt *models.VerificationAttempt) error {
	vr.fp.mu.Lock()
	defer vr.fp.mu.Unlock()

	attempts, err := vr.readLocked(attempt.Key())
	if err != nil {
		return err
	}

	stored := *attempt

	return vr.writeLocked(attempt.Key(), append(attempts, &stored))
}

func (vr *VerificationRepository) Update(_ context.Context, attempt *models.VerificationAttempt) error {
	vr.fp.mu.Lock()
	defer vr.fp.mu.Unlock()

	attempts, err := vr.readLocked(attempt.Key())
	if err != nil {
		return err
	}

	for i, existing := range attempts {
		if existing.ID != attempt.ID {
			continue
		}

		if existing.Version != attempt.Version {
			return persistence.ErrConcurrentUpdate
		}

		stored := *attempt
		stored.Version++
		attempts[i] = &stored

		err = vr.writeLocked(attempt.Key(), attempts)
		if err != nil {
			return err
		}

		attempt.Version = stored.Version

		return nil
	}

	return persistence.ErrAttemptNotFound
}
