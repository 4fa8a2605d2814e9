package verification

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound indicates no attempt was issued for the subject, service and action.
	ErrNotFound = errors.New("verification attempt not found")

	// ErrAlreadyUsed indicates the attempt was already validated successfully.
	ErrAlreadyUsed = errors.New("verification attempt already used")

	// ErrRetryExhausted indicates the attempt reached its failed validation limit.
	ErrRetryExhausted = errors.New("verification retries exhausted")

	// ErrExpired indicates the attempt outlived its time to live.
	ErrExpired = errors.New("verification attempt expired")

	// ErrInvalidToken indicates the supplied token does not match.
	ErrInvalidToken = errors.New("invalid verification token")

	// ErrResendTooSoon indicates a live attempt is younger than the resend cooldown.
	ErrResendTooSoon = errors.New("verification resend too soon")

	// ErrMaxRequestsExceeded indicates the throttling window already holds the maximum attempts.
	ErrMaxRequestsExceeded = errors.New("verification max requests exceeded")

	// ErrTokenRequired indicates a PIN challenge was issued without a token.
	ErrTokenRequired = errors.New("token required for pin verification")

	// ErrUnknownServiceType indicates a service type other than sms, email or pin.
	ErrUnknownServiceType = errors.New("unknown verification service type")
)

// ThrottleError carries how long the caller should wait before issuing again.
type ThrottleError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *ThrottleError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%v: retry after %s", e.Err, e.RetryAfter)
	}

	return e.Err.Error()
}

func (e *ThrottleError) Unwrap() error {
	return e.Err
}

// InvalidTokenError reports how many validations the attempt still accepts.
type InvalidTokenError struct {
	Remaining int
}

func (e *InvalidTokenError) Error() string {
	return fmt.Sprintf("%v: %d attempts remaining", ErrInvalidToken, e.Remaining)
}

func (e *InvalidTokenError) Unwrap() error {
	return ErrInvalidToken
}
