package models

import (
	"strconv"
	"strings"
	"time"
)

// ServiceType is the channel a verification code travels through.
type ServiceType string

const (
	ServiceTypeSMS   ServiceType = "sms"
	ServiceTypeEmail ServiceType = "email"
	ServiceTypePIN   ServiceType = "pin"
)

// Valid reports whether s is a known service type.
func (s ServiceType) Valid() bool {
	switch s {
	case ServiceTypeSMS, ServiceTypeEmail, ServiceTypePIN:
		return true
	default:
		return false
	}
}

// AttemptState is the derived lifecycle state of a verification attempt.
type AttemptState string

const (
	AttemptStateIssued         AttemptState = "issued"
	AttemptStateUsed           AttemptState = "used"
	AttemptStateExpired        AttemptState = "expired"
	AttemptStateRetryExhausted AttemptState = "retry_exhausted"
)

// AttemptKey scopes attempts to one subject, channel and action.
type AttemptKey struct {
	SubjectID   string      `json:"subject_id"`
	ServiceType ServiceType `json:"service_type"`
	ActionType  string      `json:"action_type"`
}

// Encoded renders the key as a single string that is distinct for every
// distinct key. Each part is length-prefixed, so separators inside a part
// cannot make two keys collide.
func (k AttemptKey) Encoded() string {
	parts := []string{k.SubjectID, string(k.ServiceType), k.ActionType}
	encoded := make([]string, len(parts))

	for i, part := range parts {
		encoded[i] = strconv.Itoa(len(part)) + "-" + part
	}

	return strings.Join(encoded, ".")
}

// VerificationAttempt is an OTP or PIN challenge. Only a hash of the token is kept.
type VerificationAttempt struct {
	ID                 string      `json:"id"`
	SubjectID          string      `json:"subject_id"`
	ServiceType        ServiceType `json:"service_type"`
	ActionType         string      `json:"action_type"`
	TokenHash          string      `json:"token_hash"`
	IssuedAt           time.Time   `json:"issued_at"`
	ExpiresAt          time.Time   `json:"expires_at"`
	IsUsed             bool        `json:"is_used"`
	RetryValidateCount int         `json:"retry_validate_count"`
	MaxRetry           int         `json:"max_retry"`
	ValidatedAt        *time.Time  `json:"validated_at,omitempty"`
	Version            int64       `json:"version"`
}

// Key returns the scope the attempt belongs to.
func (a *VerificationAttempt) Key() AttemptKey {
	return AttemptKey{
		SubjectID:   a.SubjectID,
		ServiceType: a.ServiceType,
		ActionType:  a.ActionType,
	}
}

// State derives the lifecycle state at now. Retry exhaustion wins over expiry.
func (a *VerificationAttempt) State(now time.Time) AttemptState {
	switch {
	case a.IsUsed:
		return AttemptStateUsed
	case a.RetryValidateCount >= a.MaxRetry:
		return AttemptStateRetryExhausted
	case now.After(a.ExpiresAt):
		return AttemptStateExpired
	default:
		return AttemptStateIssued
	}
}
