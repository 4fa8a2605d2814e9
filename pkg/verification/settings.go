package verification

import (
	"time"

	"github.com/lendstate/lendstate/pkg/models"
)

// Settings are the throttling and lifetime limits of one (service, action) pair.
// Durations are whole seconds, as in the configuration file.
type Settings struct {
	MaxRequests    int `json:"otp_max_request"   yaml:"otp_max_request"`
	ResendCooldown int `json:"otp_resend_time"   yaml:"otp_resend_time"`
	WindowSeconds  int `json:"wait_time_seconds" yaml:"wait_time_seconds"`
	MaxValidate    int `json:"otp_max_validate"  yaml:"otp_max_validate"`
	ExpiredSeconds int `json:"otp_expired_time"  yaml:"otp_expired_time"`
}

func (s Settings) Cooldown() time.Duration {
	return time.Duration(s.ResendCooldown) * time.Second
}

func (s Settings) Window() time.Duration {
	return time.Duration(s.WindowSeconds) * time.Second
}

func (s Settings) TTL() time.Duration {
	return time.Duration(s.ExpiredSeconds) * time.Second
}

// merge returns s with every zero field taken from fallback.
func (s Settings) merge(fallback Settings) Settings {
	if s.MaxRequests == 0 {
		s.MaxRequests = fallback.MaxRequests
	}

	if s.ResendCooldown == 0 {
		s.ResendCooldown = fallback.ResendCooldown
	}

	if s.WindowSeconds == 0 {
		s.WindowSeconds = fallback.WindowSeconds
	}

	if s.MaxValidate == 0 {
		s.MaxValidate = fallback.MaxValidate
	}

	if s.ExpiredSeconds == 0 {
		s.ExpiredSeconds = fallback.ExpiredSeconds
	}

	return s
}

// DefaultSettings applies when no configuration file is given.
func DefaultSettings() Settings {
	return Settings{
		MaxRequests:    3,
		ResendCooldown: 60,
		WindowSeconds:  3600,
		MaxValidate:    3,
		ExpiredSeconds: 300,
	}
}

// Config holds the default settings and overrides keyed by service type then action type.
type Config struct {
	Default  Settings                                   `json:"default"  yaml:"default"`
	Services map[models.ServiceType]map[string]Settings `json:"services" yaml:"services"`
}

func DefaultConfig() Config {
	return Config{Default: DefaultSettings()}
}

// For resolves the settings of a pair. Unset override fields fall back to
// the configured default, then to DefaultSettings.
func (c Config) For(service models.ServiceType, action string) Settings {
	base := c.Default.merge(DefaultSettings())

	override, ok := c.Services[service][action]
	if !ok {
		return base
	}

	return override.merge(base)
}
