// Package verification tracks OTP and PIN challenges: issuance, resend
// throttling, lazy expiry and failed validation limits.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lendstate/lendstate/pkg/keylock"
	"github.com/lendstate/lendstate/pkg/models"
	"github.com/lendstate/lendstate/pkg/otelhelper"
	"github.com/lendstate/lendstate/pkg/persistence"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Tracker issues and validates verification attempts. Calls for the same
// (subject, service, action) are serialized in process, and stores reject
// stale writes through the attempt version.
type Tracker struct {
	repo      persistence.VerificationRepository
	config    Config
	clock     clockwork.Clock
	hashers   map[models.ServiceType]Hasher
	generator TokenGenerator
	locks     *keylock.Locker
	logger    *slog.Logger
	tracer    trace.Tracer
}

type Option func(*Tracker)

func WithClock(clock clockwork.Clock) Option {
	return func(t *Tracker) {
		t.clock = clock
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(t *Tracker) {
		t.tracer = tracer
	}
}

// WithHasher replaces the hasher of one service type.
func WithHasher(service models.ServiceType, hasher Hasher) Option {
	return func(t *Tracker) {
		t.hashers[service] = hasher
	}
}

func WithGenerator(generator TokenGenerator) Option {
	return func(t *Tracker) {
		t.generator = generator
	}
}

// New builds a tracker. hashKey keys the sms and email token hashes and
// otpSecret seeds generated codes; both are required.
func New(repo persistence.VerificationRepository, config Config, hashKey, otpSecret []byte, opts ...Option) (*Tracker, error) {
	if len(hashKey) == 0 {
		return nil, errors.New("verification hash key is required")
	}

	if len(otpSecret) == 0 {
		return nil, errors.New("verification otp secret is required")
	}

	hmacHasher := NewHMACHasher(hashKey)

	t := &Tracker{
		repo:   repo,
		config: config,
		clock:  clockwork.NewRealClock(),
		hashers: map[models.ServiceType]Hasher{
			models.ServiceTypeSMS:   hmacHasher,
			models.ServiceTypeEmail: hmacHasher,
			models.ServiceTypePIN:   NewBcryptHasher(0),
		},
		generator: NewHOTPGenerator(otpSecret),
		locks:     keylock.New(),
		logger:    slog.Default(),
		tracer:    otel.Tracer("lendstate/verification"),
	}

	for _, opt := range opts {
		opt(t)
	}

	t.logger = t.logger.With("module", "verification")

	return t, nil
}

// Settings returns the resolved limits of a (service, action) pair.
func (t *Tracker) Settings(service models.ServiceType, action string) Settings {
	return t.config.For(service, action)
}

type IssueRequest struct {
	Subject     string
	ServiceType models.ServiceType
	ActionType  string

	// TTL and MaxRetry fall back to the configured otp_expired_time and otp_max_validate when zero.
	TTL      time.Duration
	MaxRetry int

	// Token is used as is when set. PIN challenges must set it.
	Token string
}

// IssueResult holds the stored attempt and the plain token for delivery.
// The plain token is never persisted.
type IssueResult struct {
	Attempt *models.VerificationAttempt
	Token   string
}

type ValidateRequest struct {
	Subject     string
	Token       string
	ServiceType models.ServiceType
	ActionType  string
}

func (r ValidateRequest) Key() models.AttemptKey {
	return models.AttemptKey{SubjectID: r.Subject, ServiceType: r.ServiceType, ActionType: r.ActionType}
}

func lockKey(key models.AttemptKey) string {
	return key.Encoded()
}

// Issue creates a new attempt after checking the resend cooldown and the
// request window of the pair.
func (t *Tracker) Issue(ctx context.Context, req IssueRequest) (_ *IssueResult, err error) {
	ctx, span := otelhelper.StartSpan(ctx, t.tracer, "verification.issue",
		attribute.String(otelhelper.SubjectIDKey, req.Subject),
		attribute.String(otelhelper.ServiceTypeKey, string(req.ServiceType)),
		attribute.String(otelhelper.ActionTypeKey, req.ActionType),
	)
	defer func() {
		if err != nil {
			otelhelper.SetError(span, err)
		}

		span.End()
	}()

	if !req.ServiceType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownServiceType, req.ServiceType)
	}

	if req.Subject == "" || req.ActionType == "" {
		return nil, errors.New("subject and action type are required")
	}

	if req.ServiceType == models.ServiceTypePIN && req.Token == "" {
		return nil, ErrTokenRequired
	}

	key := models.AttemptKey{SubjectID: req.Subject, ServiceType: req.ServiceType, ActionType: req.ActionType}
	settings := t.config.For(req.ServiceType, req.ActionType)

	unlock, err := t.locks.Lock(ctx, lockKey(key))
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := t.clock.Now().UTC()

	err = t.checkThrottle(ctx, key, settings, now)
	if err != nil {
		t.logger.InfoContext(ctx, "Verification issue throttled",
			"subject_id", key.SubjectID, "service_type", key.ServiceType, "action_type", key.ActionType, "reason", err)

		return nil, err
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = settings.TTL()
	}

	maxRetry := req.MaxRetry
	if maxRetry <= 0 {
		maxRetry = settings.MaxValidate
	}

	token := req.Token
	if token == "" {
		token, err = t.generator.Generate(key, now)
		if err != nil {
			return nil, err
		}
	}

	hash, err := t.hashers[req.ServiceType].Hash(token)
	if err != nil {
		return nil, err
	}

	attempt := &models.VerificationAttempt{
		ID:          uuid.NewString(),
		SubjectID:   key.SubjectID,
		ServiceType: key.ServiceType,
		ActionType:  key.ActionType,
		TokenHash:   hash,
		IssuedAt:    now,
		ExpiresAt:   now.Add(ttl),
		MaxRetry:    maxRetry,
	}

	err = t.repo.Create(ctx, attempt)
	if err != nil {
		return nil, fmt.Errorf("failed to store verification attempt: %w", err)
	}

	t.logger.InfoContext(ctx, "Verification attempt issued",
		"attempt_id", attempt.ID, "subject_id", key.SubjectID, "service_type", key.ServiceType,
		"action_type", key.ActionType, "expires_at", attempt.ExpiresAt)

	return &IssueResult{Attempt: attempt, Token: token}, nil
}

func (t *Tracker) checkThrottle(ctx context.Context, key models.AttemptKey, settings Settings, now time.Time) error {
	latest, err := t.repo.Latest(ctx, key)
	if err != nil && !persistence.IsAttemptNotFound(err) {
		return fmt.Errorf("failed to load latest attempt: %w", err)
	}

	if latest != nil && latest.State(now) == models.AttemptStateIssued {
		elapsed := now.Sub(latest.IssuedAt)
		if elapsed < settings.Cooldown() {
			return &ThrottleError{Err: ErrResendTooSoon, RetryAfter: settings.Cooldown() - elapsed}
		}
	}

	if settings.MaxRequests <= 0 || settings.WindowSeconds <= 0 {
		return nil
	}

	count, err := t.repo.CountIssuedSince(ctx, key, now.Add(-settings.Window()))
	if err != nil {
		return fmt.Errorf("failed to count issued attempts: %w", err)
	}

	if count >= settings.MaxRequests {
		return &ThrottleError{Err: ErrMaxRequestsExceeded}
	}

	return nil
}

// Validate checks token against the latest attempt of the pair. Checks run in
// order: not found, already used, retries exhausted, expired, then the token
// comparison. A mismatch is counted against the attempt before returning.
func (t *Tracker) Validate(ctx context.Context, req ValidateRequest) (_ *models.VerificationAttempt, err error) {
	ctx, span := otelhelper.StartSpan(ctx, t.tracer, "verification.validate",
		attribute.String(otelhelper.SubjectIDKey, req.Subject),
		attribute.String(otelhelper.ServiceTypeKey, string(req.ServiceType)),
		attribute.String(otelhelper.ActionTypeKey, req.ActionType),
	)
	defer func() {
		if err != nil {
			otelhelper.SetError(span, err)
		}

		span.End()
	}()

	if !req.ServiceType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownServiceType, req.ServiceType)
	}

	key := req.Key()

	unlock, err := t.locks.Lock(ctx, lockKey(key))
	if err != nil {
		return nil, err
	}
	defer unlock()

	attempt, err := t.repo.Latest(ctx, key)
	if err != nil {
		if persistence.IsAttemptNotFound(err) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("failed to load attempt: %w", err)
	}

	now := t.clock.Now().UTC()

	switch attempt.State(now) {
	case models.AttemptStateUsed:
		return attempt, ErrAlreadyUsed
	case models.AttemptStateRetryExhausted:
		return attempt, ErrRetryExhausted
	case models.AttemptStateExpired:
		return attempt, ErrExpired
	}

	if !t.hashers[key.ServiceType].Compare(attempt.TokenHash, req.Token) {
		attempt.RetryValidateCount++

		err = t.repo.Update(ctx, attempt)
		if err != nil {
			return nil, fmt.Errorf("failed to record failed validation: %w", err)
		}

		t.logger.InfoContext(ctx, "Verification token rejected",
			"attempt_id", attempt.ID, "subject_id", key.SubjectID, "retry_validate_count", attempt.RetryValidateCount)

		return attempt, &InvalidTokenError{Remaining: attempt.MaxRetry - attempt.RetryValidateCount}
	}

	attempt.IsUsed = true
	attempt.ValidatedAt = &now

	err = t.repo.Update(ctx, attempt)
	if err != nil {
		return nil, fmt.Errorf("failed to mark attempt used: %w", err)
	}

	t.logger.InfoContext(ctx, "Verification attempt validated", "attempt_id", attempt.ID, "subject_id", key.SubjectID)

	return attempt, nil
}
