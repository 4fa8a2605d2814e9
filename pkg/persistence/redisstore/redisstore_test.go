package redisstore_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/lendstate/lendstate/pkg/models"
	"github.com/lendstate/lendstate/pkg/persistence"
	"github.com/lendstate/lendstate/pkg/persistence/redisstore"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepository(t *testing.T, opts ...redisstore.Option) (*redisstore.VerificationRepository, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})

	repo := redisstore.New(client, opts...)

	t.Cleanup(func() {
		_ = repo.Close()
	})

	return repo, server
}

func attempt(id string, issued time.Time) *models.VerificationAttempt {
	return &models.VerificationAttempt{
		ID:          id,
		SubjectID:   "cust-1",
		ServiceType: models.ServiceTypeSMS,
		ActionType:  "login",
		TokenHash:   "hash-" + id,
		IssuedAt:    issued,
		ExpiresAt:   issued.Add(time.Minute),
		MaxRetry:    3,
	}
}

func TestVerificationRepository_LatestAndCount(t *testing.T) {
	repo, _ := newRepository(t)
	ctx := t.Context()
	issued := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	key := models.AttemptKey{SubjectID: "cust-1", ServiceType: models.ServiceTypeSMS, ActionType: "login"}

	_, err := repo.Latest(ctx, key)
	assert.True(t, persistence.IsAttemptNotFound(err))

	require.NoError(t, repo.Create(ctx, attempt("a-1", issued)))
	require.NoError(t, repo.Create(ctx, attempt("a-2", issued.Add(2*time.Minute))))

	latest, err := repo.Latest(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "a-2", latest.ID)
	assert.Equal(t, "hash-a-2", latest.TokenHash)

	count, err := repo.CountIssuedSince(ctx, key, issued.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = repo.CountIssuedSince(ctx, key, issued)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	other := key
	other.ActionType = "transfer"
	count, err = repo.CountIssuedSince(ctx, other, issued)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestVerificationRepository_UpdateCompareAndSwap(t *testing.T) {
	repo, _ := newRepository(t)
	ctx := t.Context()
	issued := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	created := attempt("a-1", issued)
	require.NoError(t, repo.Create(ctx, created))

	stale := *created

	created.RetryValidateCount = 1
	require.NoError(t, repo.Update(ctx, created))
	assert.Equal(t, int64(1), created.Version)

	stale.IsUsed = true
	err := repo.Update(ctx, &stale)
	assert.True(t, persistence.IsConcurrentUpdate(err))

	latest, err := repo.Latest(ctx, created.Key())
	require.NoError(t, err)
	assert.Equal(t, 1, latest.RetryValidateCount)
	assert.False(t, latest.IsUsed)

	missing := attempt("a-9", issued)
	err = repo.Update(ctx, missing)
	assert.True(t, persistence.IsAttemptNotFound(err))
}

func TestVerificationRepository_Retention(t *testing.T) {
	repo, server := newRepository(t, redisstore.WithPrefix("test:"), redisstore.WithRetention(time.Hour))
	ctx := t.Context()

	require.NoError(t, repo.Create(ctx, attempt("a-1", time.Now())))

	assert.True(t, server.Exists("test:attempt:a-1"))
	assert.Equal(t, time.Hour, server.TTL("test:attempt:a-1"))

	server.FastForward(2 * time.Hour)

	_, err := repo.Latest(ctx, models.AttemptKey{SubjectID: "cust-1", ServiceType: models.ServiceTypeSMS, ActionType: "login"})
	assert.True(t, persistence.IsAttemptNotFound(err))
}

func TestVerificationRepository_KeysWithSeparatorsStayIsolated(t *testing.T) {
	repo, _ := newRepository(t)
	ctx := t.Context()
	issued := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	stored := attempt("a-1", issued)
	stored.SubjectID = "a:sms:b"
	stored.ActionType = "c"

	require.NoError(t, repo.Create(ctx, stored))

	lookalike := models.AttemptKey{SubjectID: "a", ServiceType: models.ServiceTypeSMS, ActionType: "b:sms:c"}

	_, err := repo.Latest(ctx, lookalike)
	assert.True(t, persistence.IsAttemptNotFound(err))

	count, err := repo.CountIssuedSince(ctx, lookalike, issued)
	require.NoError(t, err)
	assert.Zero(t, count)

	latest, err := repo.Latest(ctx, stored.Key())
	require.NoError(t, err)
	assert.Equal(t, "a-1", latest.ID)
}
