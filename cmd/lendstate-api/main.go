package main

import (
	"context"
	"os"

	"github.com/lendstate/lendstate/pkg/cmd"
	"github.com/lendstate/lendstate/pkg/log"
	"github.com/lendstate/lendstate/pkg/otelhelper"
	cli "github.com/urfave/cli/v3"
)

const (
	defaultPort = 9091
	serviceName = "lendstate-api"
)

func main() {
	command := &cli.Command{
		Name:                  serviceName,
		Usage:                 "Serve entity status transitions and verification challenges",
		EnableShellCompletion: true,
		Flags:                 append(cmd.CommonFlags(), &cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to run the API server on",
			Value:   defaultPort,
			Sources: cli.EnvVars("PORT"),
		}),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("api")

			logger.InfoContext(ctx, "Initializing lendstate API")

			cfg := cmd.AppConfigFromCommand(command, serviceName)

			if command.Bool("otel") {
				tracer, err := otelhelper.NewTracer(ctx, serviceName)
				if err != nil {
					return err
				}

				cfg.Tracer = tracer
			}

			app, err := cmd.NewApp(ctx, cfg, logger)
			if err != nil {
				return err
			}

			defer func() {
				err := app.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close application", "error", err)
				}
			}()

			err = NewAPI(logger, app).Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "API server stopped", "error", err)

				return err
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
