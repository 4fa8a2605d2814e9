package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/lendstate/lendstate/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaseEvent(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.FixedZone("WIB", 7*3600))

	event := NewBaseEvent(StatusTransitionedEvent, at)

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, StatusTransitionedEvent, event.Type)
	assert.Equal(t, time.UTC, event.Timestamp.Location())
	assert.True(t, event.Timestamp.Equal(at))
	assert.NotNil(t, event.Metadata)
}

func TestStatusTransitioned_JSON(t *testing.T) {
	original := StatusTransitioned{
		BaseEvent:  NewBaseEvent(StatusTransitionedEvent, time.Now()),
		EntityID:   "app-1",
		EntityKind: models.EntityKindApplication,
		WorkflowID: "application",
		FromStatus: models.ApplicationFormCreated,
		ToStatus:   models.ApplicationFormPartial,
		HistoryID:  7,
		ChangedBy:  "agent-9",
		Reason:     "customer filled step one",
	}

	assert.Equal(t, StatusTransitionedEvent, original.GetType())

	payload, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"type":"status.transitioned"`)
	assert.Contains(t, string(payload), `"from_status":100`)
	assert.Contains(t, string(payload), `"to_status":105`)

	var decoded StatusTransitioned

	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, original.EntityID, decoded.EntityID)
	assert.Equal(t, original.ToStatus, decoded.ToStatus)
	assert.Equal(t, original.HistoryID, decoded.HistoryID)
}

func TestEventTypes(t *testing.T) {
	assert.Equal(t, VerificationTokenIssuedEvent, VerificationTokenIssued{}.GetType())
	assert.Equal(t, VerificationValidatedEvent, VerificationValidated{}.GetType())
	assert.Equal(t, RetrofixCompletedEvent, RetrofixCompleted{}.GetType())
}
