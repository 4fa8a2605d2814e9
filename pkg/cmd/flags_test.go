package cmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cli "github.com/urfave/cli/v3"
)

func TestAppConfigFromCommand(t *testing.T) {
	var cfg AppConfig

	command := &cli.Command{
		Name:  "lendstate-test",
		Flags: CommonFlags(),
		Action: func(_ context.Context, command *cli.Command) error {
			cfg = AppConfigFromCommand(command, "lendstate-test")

			return nil
		},
	}

	err := command.Run(t.Context(), []string{
		"lendstate-test",
		"--database-url", "/tmp/lendstate",
		"--hash-key", "hash",
		"--otp-secret", "secret",
		"--batch-limit", "4",
	})
	require.NoError(t, err)

	assert.Equal(t, "lendstate-test", cfg.ServiceName)
	assert.Equal(t, "/tmp/lendstate", cfg.DatabaseURL)
	assert.Equal(t, "gochannel", cfg.EventBus)
	assert.Equal(t, "hash", cfg.HashKey)
	assert.Equal(t, "secret", cfg.OTPSecret)
	assert.Equal(t, 4, cfg.BatchLimit)
	assert.Empty(t, cfg.RedisURL)
}
