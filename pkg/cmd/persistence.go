package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lendstate/lendstate/pkg/persistence"
	"github.com/lendstate/lendstate/pkg/persistence/file"
	"github.com/lendstate/lendstate/pkg/persistence/postgresql"
	"github.com/lendstate/lendstate/pkg/persistence/redisstore"
)

var supportedPersistenceProviders = []string{"file", "postgres", "postgresql"}

const openMaxElapsed = 30 * time.Second

func newOpenBackoff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = openMaxElapsed

	return backoff.WithContext(bo, ctx)
}

// NewPersistence opens the store named by the URL scheme. PostgreSQL is
// retried while the database comes up; anything without a known scheme is a
// file store root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		var store *postgresql.Persistence

		err := backoff.RetryNotify(func() error {
			var err error

			store, err = postgresql.NewPersistence(ctx, logger, databaseURL)

			return err
		}, newOpenBackoff(ctx), func(err error, wait time.Duration) {
			logger.WarnContext(ctx, "PostgreSQL not ready, retrying", "error", err, "wait", wait)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open postgresql persistence: %w", err)
		}

		return store, nil
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	parts := strings.Split(databaseURL, "://")
	if len(parts) < 2 {
		return "file"
	}

	provider := parts[0]
	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}

// NewVerificationRepository keeps attempts in Redis when redisURL is set and
// in the main store otherwise.
func NewVerificationRepository(ctx context.Context, store persistence.Persistence, redisURL string) (persistence.VerificationRepository, error) {
	if redisURL == "" {
		return store.VerificationRepository(), nil
	}

	repo, err := redisstore.Open(ctx, redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open redis verification store: %w", err)
	}

	return repo, nil
}
