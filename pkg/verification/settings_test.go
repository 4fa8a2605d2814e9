package verification

import (
	"testing"
	"time"

	"github.com/lendstate/lendstate/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestConfig_For(t *testing.T) {
	config := Config{
		Default: Settings{MaxRequests: 5},
		Services: map[models.ServiceType]map[string]Settings{
			models.ServiceTypeEmail: {
				"registration": {ExpiredSeconds: 900, MaxValidate: 5},
			},
		},
	}

	tests := []struct {
		name    string
		service models.ServiceType
		action  string
		want    Settings
	}{
		{
			name:    "default fills from built in settings",
			service: models.ServiceTypeSMS,
			action:  "signing",
			want:    Settings{MaxRequests: 5, ResendCooldown: 60, WindowSeconds: 3600, MaxValidate: 3, ExpiredSeconds: 300},
		},
		{
			name:    "override keeps unset fields from default",
			service: models.ServiceTypeEmail,
			action:  "registration",
			want:    Settings{MaxRequests: 5, ResendCooldown: 60, WindowSeconds: 3600, MaxValidate: 5, ExpiredSeconds: 900},
		},
		{
			name:    "other action of same service",
			service: models.ServiceTypeEmail,
			action:  "signing",
			want:    Settings{MaxRequests: 5, ResendCooldown: 60, WindowSeconds: 3600, MaxValidate: 3, ExpiredSeconds: 300},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, config.For(tt.service, tt.action))
		})
	}
}

func TestHashers(t *testing.T) {
	hmacHasher := NewHMACHasher([]byte("key"))

	hash, err := hmacHasher.Hash("123456")
	assert.NoError(t, err)
	assert.True(t, hmacHasher.Compare(hash, "123456"))
	assert.False(t, hmacHasher.Compare(hash, "654321"))
	assert.False(t, hmacHasher.Compare("not-hex", "123456"))
	assert.False(t, NewHMACHasher([]byte("other")).Compare(hash, "123456"))

	bcryptHasher := NewBcryptHasher(4)

	hash, err = bcryptHasher.Hash("4821")
	assert.NoError(t, err)
	assert.True(t, bcryptHasher.Compare(hash, "4821"))
	assert.False(t, bcryptHasher.Compare(hash, "1111"))
}

func TestHOTPGenerator(t *testing.T) {
	generator := NewHOTPGenerator([]byte("secret"))
	key := models.AttemptKey{SubjectID: "user-1", ServiceType: models.ServiceTypeSMS, ActionType: "signing"}
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	code, err := generator.Generate(key, at)
	assert.NoError(t, err)
	assert.Regexp(t, `^\d{6}$`, code)

	again, err := generator.Generate(key, at)
	assert.NoError(t, err)
	assert.Equal(t, code, again)

	other := key
	other.SubjectID = "user-2"

	otherCode, err := generator.Generate(other, at)
	assert.NoError(t, err)
	assert.Regexp(t, `^\d{6}$`, otherCode)
}
