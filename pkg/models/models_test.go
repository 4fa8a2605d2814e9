package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusCatalog(t *testing.T) {
	status, ok := LookupStatus(ApplicationFormSubmitted)
	assert.True(t, ok)
	assert.Equal(t, NamespaceApplication, status.Namespace)

	_, ok = LookupStatus(999)
	assert.False(t, ok)

	assert.Equal(t, "status 999", StatusCode(999).Label())
	assert.Equal(t, "520 (Deleted)", CustomerDeleted.String())

	customer := StatusesIn(NamespaceCustomer)
	assert.Equal(t, []StatusCode{CustomerActive, CustomerDeletionRequested, CustomerDeleted},
		[]StatusCode{customer[0].Code, customer[1].Code, customer[2].Code})
}

func TestServiceType_Valid(t *testing.T) {
	assert.True(t, ServiceTypeSMS.Valid())
	assert.True(t, ServiceTypeEmail.Valid())
	assert.True(t, ServiceTypePIN.Valid())
	assert.False(t, ServiceType("fax").Valid())
}

func TestVerificationAttempt_State(t *testing.T) {
	issued := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		attempt  VerificationAttempt
		now      time.Time
		expected AttemptState
	}{
		{
			name:     "fresh",
			attempt:  VerificationAttempt{ExpiresAt: issued.Add(time.Minute), MaxRetry: 3},
			now:      issued,
			expected: AttemptStateIssued,
		},
		{
			name:     "used wins",
			attempt:  VerificationAttempt{ExpiresAt: issued, MaxRetry: 3, RetryValidateCount: 3, IsUsed: true},
			now:      issued.Add(time.Hour),
			expected: AttemptStateUsed,
		},
		{
			name:     "exhausted before expired",
			attempt:  VerificationAttempt{ExpiresAt: issued, MaxRetry: 3, RetryValidateCount: 3},
			now:      issued.Add(time.Hour),
			expected: AttemptStateRetryExhausted,
		},
		{
			name:     "expired",
			attempt:  VerificationAttempt{ExpiresAt: issued.Add(time.Minute), MaxRetry: 3, RetryValidateCount: 1},
			now:      issued.Add(2 * time.Minute),
			expected: AttemptStateExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.attempt.State(tt.now))
		})
	}
}

func TestWorkflow_IsTerminal(t *testing.T) {
	w := &Workflow{TerminalStatuses: []StatusCode{CustomerDeleted}}

	assert.True(t, w.IsTerminal(CustomerDeleted))
	assert.False(t, w.IsTerminal(CustomerActive))

	edge := TransitionEdge{From: CustomerActive, To: CustomerDeletionRequested}
	assert.Equal(t, EdgeKey{From: 500, To: 510}, edge.Key())
}

func TestAttemptKey_Encoded(t *testing.T) {
	a := AttemptKey{SubjectID: "a.sms.b", ServiceType: ServiceTypeSMS, ActionType: "c"}
	b := AttemptKey{SubjectID: "a", ServiceType: ServiceTypeSMS, ActionType: "b.sms.c"}
	c := AttemptKey{SubjectID: "a:sms:b", ServiceType: ServiceTypeSMS, ActionType: "c"}
	d := AttemptKey{SubjectID: "a", ServiceType: ServiceTypeSMS, ActionType: "b:sms:c"}

	assert.NotEqual(t, a.Encoded(), b.Encoded())
	assert.NotEqual(t, c.Encoded(), d.Encoded())
	assert.Equal(t, "1-a.3-sms.7-b.sms.c", b.Encoded())
}
