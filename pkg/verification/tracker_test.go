package verification_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lendstate/lendstate/pkg/mocks"
	"github.com/lendstate/lendstate/pkg/models"
	"github.com/lendstate/lendstate/pkg/persistence"
	"github.com/lendstate/lendstate/pkg/persistence/file"
	"github.com/lendstate/lendstate/pkg/verification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var start = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type fixedGenerator struct {
	code string
}

func (g fixedGenerator) Generate(models.AttemptKey, time.Time) (string, error) {
	return g.code, nil
}

func newTracker(t *testing.T, config verification.Config, opts ...verification.Option) (*verification.Tracker, *clockwork.FakeClock) {
	t.Helper()

	clock := clockwork.NewFakeClockAt(start)
	repo := file.NewPersistence(t.TempDir()).VerificationRepository()

	opts = append([]verification.Option{
		verification.WithClock(clock),
		verification.WithGenerator(fixedGenerator{code: "123456"}),
		verification.WithHasher(models.ServiceTypePIN, verification.NewBcryptHasher(bcrypt.MinCost)),
	}, opts...)

	tracker, err := verification.New(repo, config, []byte("hash-key"), []byte("otp-secret"), opts...)
	require.NoError(t, err)

	return tracker, clock
}

func smsIssue() verification.IssueRequest {
	return verification.IssueRequest{
		Subject:     "user-1",
		ServiceType: models.ServiceTypeSMS,
		ActionType:  "signing",
	}
}

func smsValidate(token string) verification.ValidateRequest {
	return verification.ValidateRequest{
		Subject:     "user-1",
		Token:       token,
		ServiceType: models.ServiceTypeSMS,
		ActionType:  "signing",
	}
}

func TestNew_RequiresSecrets(t *testing.T) {
	repo := &mocks.MockVerificationRepository{}

	_, err := verification.New(repo, verification.DefaultConfig(), nil, []byte("secret"))
	require.Error(t, err)

	_, err = verification.New(repo, verification.DefaultConfig(), []byte("key"), nil)
	require.Error(t, err)
}

func TestTracker_IssueStoresHashOnly(t *testing.T) {
	tracker, _ := newTracker(t, verification.DefaultConfig())

	result, err := tracker.Issue(t.Context(), smsIssue())
	require.NoError(t, err)

	assert.Equal(t, "123456", result.Token)
	assert.NotEqual(t, "123456", result.Attempt.TokenHash)
	assert.NotEmpty(t, result.Attempt.ID)
	assert.Equal(t, start.Add(300*time.Second), result.Attempt.ExpiresAt)
	assert.Equal(t, 3, result.Attempt.MaxRetry)
	assert.Zero(t, result.Attempt.Version)
}

func TestTracker_IssueUsesRequestLimits(t *testing.T) {
	tracker, _ := newTracker(t, verification.DefaultConfig())

	req := smsIssue()
	req.TTL = time.Minute
	req.MaxRetry = 5

	result, err := tracker.Issue(t.Context(), req)
	require.NoError(t, err)

	assert.Equal(t, start.Add(time.Minute), result.Attempt.ExpiresAt)
	assert.Equal(t, 5, result.Attempt.MaxRetry)
}

func TestTracker_IssueRejectsBadRequests(t *testing.T) {
	tracker, _ := newTracker(t, verification.DefaultConfig())

	_, err := tracker.Issue(t.Context(), verification.IssueRequest{Subject: "user-1", ServiceType: "fax", ActionType: "signing"})
	require.ErrorIs(t, err, verification.ErrUnknownServiceType)

	_, err = tracker.Issue(t.Context(), verification.IssueRequest{ServiceType: models.ServiceTypeSMS, ActionType: "signing"})
	require.Error(t, err)

	_, err = tracker.Issue(t.Context(), verification.IssueRequest{Subject: "user-1", ServiceType: models.ServiceTypePIN, ActionType: "signing"})
	require.ErrorIs(t, err, verification.ErrTokenRequired)
}

func TestTracker_IssueResendTooSoon(t *testing.T) {
	tracker, clock := newTracker(t, verification.DefaultConfig())

	_, err := tracker.Issue(t.Context(), smsIssue())
	require.NoError(t, err)

	clock.Advance(20 * time.Second)

	_, err = tracker.Issue(t.Context(), smsIssue())
	require.ErrorIs(t, err, verification.ErrResendTooSoon)

	var throttle *verification.ThrottleError
	require.ErrorAs(t, err, &throttle)
	assert.Equal(t, 40*time.Second, throttle.RetryAfter)

	clock.Advance(40 * time.Second)

	_, err = tracker.Issue(t.Context(), smsIssue())
	require.NoError(t, err)
}

func TestTracker_IssueAfterUseSkipsCooldown(t *testing.T) {
	tracker, clock := newTracker(t, verification.DefaultConfig())

	_, err := tracker.Issue(t.Context(), smsIssue())
	require.NoError(t, err)

	_, err = tracker.Validate(t.Context(), smsValidate("123456"))
	require.NoError(t, err)

	clock.Advance(time.Second)

	_, err = tracker.Issue(t.Context(), smsIssue())
	require.NoError(t, err)
}

func TestTracker_IssueMaxRequestsExceeded(t *testing.T) {
	config := verification.DefaultConfig()
	config.Default.ResendCooldown = 1

	tracker, clock := newTracker(t, config)

	for range 3 {
		_, err := tracker.Issue(t.Context(), smsIssue())
		require.NoError(t, err)

		clock.Advance(2 * time.Second)
	}

	_, err := tracker.Issue(t.Context(), smsIssue())
	require.ErrorIs(t, err, verification.ErrMaxRequestsExceeded)

	// Attempts older than the window stop counting.
	clock.Advance(time.Hour)

	_, err = tracker.Issue(t.Context(), smsIssue())
	require.NoError(t, err)
}

func TestTracker_IssuePerActionOverride(t *testing.T) {
	config := verification.DefaultConfig()
	config.Services = map[models.ServiceType]map[string]verification.Settings{
		models.ServiceTypeSMS: {"signing": {ExpiredSeconds: 30}},
	}

	tracker, _ := newTracker(t, config)

	result, err := tracker.Issue(t.Context(), smsIssue())
	require.NoError(t, err)

	assert.Equal(t, start.Add(30*time.Second), result.Attempt.ExpiresAt)
	assert.Equal(t, 3, result.Attempt.MaxRetry)
}

func TestTracker_ValidateSuccess(t *testing.T) {
	tracker, clock := newTracker(t, verification.DefaultConfig())

	_, err := tracker.Issue(t.Context(), smsIssue())
	require.NoError(t, err)

	clock.Advance(10 * time.Second)

	attempt, err := tracker.Validate(t.Context(), smsValidate("123456"))
	require.NoError(t, err)

	assert.True(t, attempt.IsUsed)
	require.NotNil(t, attempt.ValidatedAt)
	assert.Equal(t, start.Add(10*time.Second), *attempt.ValidatedAt)

	_, err = tracker.Validate(t.Context(), smsValidate("123456"))
	require.ErrorIs(t, err, verification.ErrAlreadyUsed)
}

func TestTracker_ValidateRetryExhausted(t *testing.T) {
	tracker, _ := newTracker(t, verification.DefaultConfig())

	req := smsIssue()
	req.MaxRetry = 3

	_, err := tracker.Issue(t.Context(), req)
	require.NoError(t, err)

	for i := range 3 {
		_, err = tracker.Validate(t.Context(), smsValidate("000000"))
		require.ErrorIs(t, err, verification.ErrInvalidToken)

		var invalid *verification.InvalidTokenError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, 2-i, invalid.Remaining)
	}

	attempt, err := tracker.Validate(t.Context(), smsValidate("123456"))
	require.ErrorIs(t, err, verification.ErrRetryExhausted)
	assert.Equal(t, 3, attempt.RetryValidateCount)
	assert.False(t, attempt.IsUsed)
}

func TestTracker_ValidateExpired(t *testing.T) {
	tracker, clock := newTracker(t, verification.DefaultConfig())

	req := smsIssue()
	req.TTL = 60 * time.Second

	_, err := tracker.Issue(t.Context(), req)
	require.NoError(t, err)

	clock.Advance(61 * time.Second)

	_, err = tracker.Validate(t.Context(), smsValidate("123456"))
	require.ErrorIs(t, err, verification.ErrExpired)
}

func TestTracker_ValidateRetryExhaustedWinsOverExpired(t *testing.T) {
	tracker, clock := newTracker(t, verification.DefaultConfig())

	req := smsIssue()
	req.TTL = 60 * time.Second
	req.MaxRetry = 1

	_, err := tracker.Issue(t.Context(), req)
	require.NoError(t, err)

	_, err = tracker.Validate(t.Context(), smsValidate("000000"))
	require.ErrorIs(t, err, verification.ErrInvalidToken)

	clock.Advance(2 * time.Minute)

	_, err = tracker.Validate(t.Context(), smsValidate("123456"))
	require.ErrorIs(t, err, verification.ErrRetryExhausted)
}

func TestTracker_ValidateNotFound(t *testing.T) {
	tracker, _ := newTracker(t, verification.DefaultConfig())

	_, err := tracker.Validate(t.Context(), smsValidate("123456"))
	require.ErrorIs(t, err, verification.ErrNotFound)
}

func TestTracker_ValidatePIN(t *testing.T) {
	tracker, _ := newTracker(t, verification.DefaultConfig())

	result, err := tracker.Issue(t.Context(), verification.IssueRequest{
		Subject:     "user-1",
		ServiceType: models.ServiceTypePIN,
		ActionType:  "withdrawal",
		Token:       "4821",
	})
	require.NoError(t, err)
	assert.Equal(t, "4821", result.Token)

	_, err = tracker.Validate(t.Context(), verification.ValidateRequest{
		Subject:     "user-1",
		Token:       "4821",
		ServiceType: models.ServiceTypePIN,
		ActionType:  "withdrawal",
	})
	require.NoError(t, err)
}

func TestTracker_ValidateConcurrentUpdate(t *testing.T) {
	repo := &mocks.MockVerificationRepository{}
	hasher := verification.NewHMACHasher([]byte("hash-key"))
	hash, err := hasher.Hash("123456")
	require.NoError(t, err)

	attempt := &models.VerificationAttempt{
		ID:          "attempt-1",
		SubjectID:   "user-1",
		ServiceType: models.ServiceTypeSMS,
		ActionType:  "signing",
		TokenHash:   hash,
		IssuedAt:    start,
		ExpiresAt:   start.Add(time.Minute),
		MaxRetry:    3,
		Version:     1,
	}

	repo.On("Latest", mock.Anything, attempt.Key()).Return(attempt, nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(persistence.ErrConcurrentUpdate)

	tracker, err := verification.New(repo, verification.DefaultConfig(), []byte("hash-key"), []byte("otp-secret"),
		verification.WithClock(clockwork.NewFakeClockAt(start)))
	require.NoError(t, err)

	_, err = tracker.Validate(t.Context(), smsValidate("123456"))
	require.ErrorIs(t, err, persistence.ErrConcurrentUpdate)
	assert.False(t, errors.Is(err, verification.ErrAlreadyUsed))

	repo.AssertExpectations(t)
}
