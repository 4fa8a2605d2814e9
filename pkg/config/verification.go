package config

import (
	"fmt"
	"os"

	"github.com/lendstate/lendstate/pkg/verification"
	"gopkg.in/yaml.v3"
)

// LoadVerificationConfig reads per service and action limits. An empty path
// returns the built in defaults.
func LoadVerificationConfig(filepath string) (verification.Config, error) {
	if filepath == "" {
		return verification.DefaultConfig(), nil
	}

	data, err := os.ReadFile(filepath)
	if err != nil {
		return verification.Config{}, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	return ParseVerificationConfig(data)
}

func ParseVerificationConfig(data []byte) (verification.Config, error) {
	var config verification.Config

	err := yaml.Unmarshal(data, &config)
	if err != nil {
		return verification.Config{}, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	for service, actions := range config.Services {
		if !service.Valid() {
			return verification.Config{}, fmt.Errorf("%w: %q", verification.ErrUnknownServiceType, service)
		}

		for action, settings := range actions {
			if settings.MaxRequests < 0 || settings.ResendCooldown < 0 || settings.WindowSeconds < 0 ||
				settings.MaxValidate < 0 || settings.ExpiredSeconds < 0 {
				return verification.Config{}, fmt.Errorf("negative limit for %s/%s", service, action)
			}
		}
	}

	return config, nil
}
