package services

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/lendstate/lendstate/pkg/eventbus"
	"github.com/lendstate/lendstate/pkg/events"
	"github.com/lendstate/lendstate/pkg/models"
	"github.com/lendstate/lendstate/pkg/verification"
)

// Verification issues challenges and hands the plain token to the
// notification service through the event bus. Tokens never leave through the API.
type Verification struct {
	tracker   *verification.Tracker
	publisher eventbus.EventPublisher
	clock     clockwork.Clock
	logger    *slog.Logger
}

func NewVerification(tracker *verification.Tracker, publisher eventbus.EventPublisher, clock clockwork.Clock, logger *slog.Logger) *Verification {
	return &Verification{
		tracker:   tracker,
		publisher: publisher,
		clock:     clock,
		logger:    logger.With("module", "verification_service"),
	}
}

// Issue creates an attempt and publishes the token for delivery. The attempt
// stays valid when publishing fails so the caller may resend after the cooldown.
func (v *Verification) Issue(ctx context.Context, req verification.IssueRequest) (*models.VerificationAttempt, error) {
	result, err := v.tracker.Issue(ctx, req)
	if err != nil {
		return nil, err
	}

	if v.publisher == nil {
		return result.Attempt, nil
	}

	event := events.VerificationTokenIssued{
		BaseEvent:   events.NewBaseEvent(events.VerificationTokenIssuedEvent, v.clock.Now()),
		AttemptID:   result.Attempt.ID,
		SubjectID:   result.Attempt.SubjectID,
		ServiceType: result.Attempt.ServiceType,
		ActionType:  result.Attempt.ActionType,
		Token:       result.Token,
		ExpiresAt:   result.Attempt.ExpiresAt,
	}

	err = v.publisher.Publish(ctx, result.Attempt.SubjectID, event)
	if err != nil {
		v.logger.ErrorContext(ctx, "Failed to publish verification token",
			"attempt_id", result.Attempt.ID, "subject_id", result.Attempt.SubjectID, "error", err)
	}

	return result.Attempt, nil
}

func (v *Verification) Validate(ctx context.Context, req verification.ValidateRequest) (*models.VerificationAttempt, error) {
	attempt, err := v.tracker.Validate(ctx, req)
	if err != nil {
		return attempt, err
	}

	if v.publisher != nil {
		event := events.VerificationValidated{
			BaseEvent:   events.NewBaseEvent(events.VerificationValidatedEvent, v.clock.Now()),
			AttemptID:   attempt.ID,
			SubjectID:   attempt.SubjectID,
			ServiceType: attempt.ServiceType,
			ActionType:  attempt.ActionType,
		}

		err = v.publisher.Publish(ctx, attempt.SubjectID, event)
		if err != nil {
			v.logger.WarnContext(ctx, "Failed to publish verification result", "attempt_id", attempt.ID, "error", err)
		}
	}

	return attempt, nil
}

func (v *Verification) Settings(service models.ServiceType, action string) verification.Settings {
	return v.tracker.Settings(service, action)
}
