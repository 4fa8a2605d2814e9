package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lendstate/lendstate/pkg/cmd"
	"github.com/lendstate/lendstate/pkg/log"
	"github.com/lendstate/lendstate/pkg/otelhelper"
	"github.com/lendstate/lendstate/pkg/services"
	cli "github.com/urfave/cli/v3"
)

const serviceName = "lendstate-retrofix"

func main() {
	command := &cli.Command{
		Name:  serviceName,
		Usage: "Anonymize customers whose deletion was requested and move them to DELETED",
		Flags: append(cmd.CommonFlags(),
			&cli.StringSliceFlag{
				Name:  "ids",
				Usage: "Customer ids to process. Empty selects every customer at DELETION_REQUESTED",
			},
			&cli.IntFlag{
				Name:    "limit",
				Usage:   "Maximum number of customers selected per run",
				Value:   500,
				Sources: cli.EnvVars("RETROFIX_LIMIT"),
			},
			&cli.StringFlag{
				Name:    "schedule",
				Usage:   "Cron expression. Empty runs once and exits",
				Sources: cli.EnvVars("RETROFIX_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "anonymizer-url",
				Usage:   "Customer data service endpoint that scrubs a customer. Required unless --dry-run is set",
				Sources: cli.EnvVars("RETROFIX_ANONYMIZER_URL"),
			},
			&cli.BoolFlag{
				Name:    "dry-run",
				Usage:   "List the customers a run would process and exit without changing them",
				Sources: cli.EnvVars("RETROFIX_DRY_RUN"),
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			logger := log.WithModule("retrofix")

			cfg := cmd.AppConfigFromCommand(command, serviceName)

			if command.Bool("otel") {
				tracer, err := otelhelper.NewTracer(ctx, serviceName)
				if err != nil {
					return err
				}

				cfg.Tracer = tracer
			}

			dryRun := command.Bool("dry-run")

			var anonymizer services.Anonymizer

			if !dryRun {
				configured, err := newAnonymizer(command.String("anonymizer-url"), logger)
				if err != nil {
					return err
				}

				anonymizer = configured
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

			retrofix := newRetrofix(app, anonymizer)
			opts := services.RetrofixOptions{
				EntityIDs: command.StringSlice("ids"),
				Limit:     command.Int("limit"),
			}

			if dryRun {
				candidates, err := retrofix.Candidates(ctx, opts)
				if err != nil {
					return err
				}

				logger.InfoContext(ctx, "Retrofix dry run", "candidates", candidates, "count", len(candidates))

				return nil
			}

			expr := command.String("schedule")
			if expr == "" {
				report, err := retrofix.AnonymizeDeletedCustomers(ctx, opts)
				if err != nil {
					return err
				}

				logger.InfoContext(ctx, "Retrofix report",
					"succeeded", report.Succeeded, "failed", report.FailureMessages())

				return nil
			}

			scheduler, err := NewScheduler(ctx, logger, retrofix, expr, opts)
			if err != nil {
				return err
			}

			scheduler.Start()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case <-sigCh:
				logger.InfoContext(ctx, "Received shutdown signal")
			case <-ctx.Done():
			}

			scheduler.Stop()

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
