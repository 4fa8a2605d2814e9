package cmd

import (
	cli "github.com/urfave/cli/v3"
)

const defaultBatchLimit = 8

// CommonFlags are the flags every lendstate command reads into AppConfig.
func CommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "database-url",
			Usage:    "Database connection URL, or a directory for the file store",
			Required: true,
			Sources:  cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for verification attempts. Empty keeps them in the database",
			Sources: cli.EnvVars("REDIS_URL"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (gochannel, kafka)",
			Value:   "gochannel",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.StringFlag{
			Name:    "verification-config",
			Usage:   "Path to the verification settings YAML",
			Sources: cli.EnvVars("VERIFICATION_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "workflow-seed",
			Usage:   "Path to the workflow seed YAML applied at startup",
			Sources: cli.EnvVars("WORKFLOW_SEED"),
		},
		&cli.StringFlag{
			Name:     "hash-key",
			Usage:    "Key used to hash sms and email tokens",
			Required: true,
			Sources:  cli.EnvVars("VERIFICATION_HASH_KEY"),
		},
		&cli.StringFlag{
			Name:     "otp-secret",
			Usage:    "Secret used to derive one time codes",
			Required: true,
			Sources:  cli.EnvVars("VERIFICATION_OTP_SECRET"),
		},
		&cli.IntFlag{
			Name:    "batch-limit",
			Usage:   "Maximum number of entities a batch transitions at once",
			Value:   defaultBatchLimit,
			Sources: cli.EnvVars("BATCH_LIMIT"),
		},
		&cli.BoolFlag{
			Name:    "otel",
			Usage:   "Export traces over OTLP HTTP",
			Sources: cli.EnvVars("OTEL_ENABLED"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format (text, json)",
			Value:   "text",
			Sources: cli.EnvVars("LOG_FORMAT"),
		},
	}
}

// AppConfigFromCommand reads the CommonFlags of command.
func AppConfigFromCommand(command *cli.Command, serviceName string) AppConfig {
	return AppConfig{
		ServiceName:        serviceName,
		DatabaseURL:        command.String("database-url"),
		RedisURL:           command.String("redis-url"),
		EventBus:           command.String("event-bus"),
		KafkaBrokers:       command.String("kafka-brokers"),
		VerificationConfig: command.String("verification-config"),
		WorkflowSeed:       command.String("workflow-seed"),
		HashKey:            command.String("hash-key"),
		OTPSecret:          command.String("otp-secret"),
		BatchLimit:         command.Int("batch-limit"),
	}
}
