// The gateflow-sweeper binary runs the approval expiration sweep: overdue
// approvals are expired (abandoning hard-deadline transitions) and due
// reminders are dispatched.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/gateflow/gateflow/pkg/approvals"
	gateflowcmd "github.com/gateflow/gateflow/pkg/cmd"
	"github.com/gateflow/gateflow/pkg/engine"
	"github.com/gateflow/gateflow/pkg/history"
	"github.com/gateflow/gateflow/pkg/log"
	"github.com/gateflow/gateflow/pkg/models"
	"github.com/gateflow/gateflow/pkg/otelhelper"
	"github.com/gateflow/gateflow/pkg/protocol"
	"github.com/gateflow/gateflow/pkg/registry"
	"github.com/gateflow/gateflow/pkg/rules"
)

// The sweep only expires and reminds; it never evaluates caller rules, so
// static collaborators are enough here.
type staticEntityStore struct{}

func (staticEntityStore) LoadEntitySnapshot(context.Context, string, string) (map[string]any, error) {
	return map[string]any{}, nil
}

type staticResolver struct{}

func (staticResolver) ResolveCallerPermissions(context.Context, protocol.CallerContext) ([]string, error) {
	return nil, nil
}

func (staticResolver) ResolveApprovers(_ context.Context, _ models.ApproverType, approverID string) ([]string, error) {
	return []string{approverID}, nil
}

func main() {
	command := &cli.Command{
		Name:                  "gateflow-sweeper",
		Usage:                 "Start the gateflow approval expiration sweeper",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "sweeper-id",
				Aliases: []string{"id"},
				Usage:   "Custom sweeper ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("SWEEPER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the shared instance lock (process-local lock if empty)",
				Value:   "",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "sweep-cron",
				Usage:   "Cron expression controlling the sweep cadence",
				Value:   "* * * * *",
				Sources: cli.EnvVars("SWEEP_CRON"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			sweeperID := command.String("sweeper-id")
			if sweeperID == "" {
				sweeperID = fmt.Sprintf("sweeper-%s", uuid.New().String()[:8])
			}

			logger := log.WithModule("gateflow-sweeper").With("sweeper_id", sweeperID)
			logger.Info("Initializing gateflow sweeper")

			tracer, err := otelhelper.NewTracer(ctx, "gateflow-sweeper")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}

			persist := gateflowcmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persist.Close(ctx); err != nil {
					logger.Error("Failed to close persistence", "error", err)
				}
			}()

			eventBus := gateflowcmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.Error("Failed to close event bus", "error", err)
				}
			}()

			locker := gateflowcmd.NewInstanceLocker(command.String("redis-url"), logger)
			clock := protocol.SystemClock{}

			defRegistry := registry.NewDefinitionRegistry(persist.Definitions(), logger)
			evaluator := rules.NewEvaluator(logger)
			recorder := history.NewRecorder(persist.History(), clock, logger)
			coordinator := approvals.NewCoordinator(persist.Approvals(), staticResolver{}, clock, logger)

			eng := engine.NewEngine(
				persist,
				defRegistry,
				evaluator,
				recorder,
				coordinator,
				staticEntityStore{},
				staticResolver{},
				eventBus,
				locker,
				clock,
				logger,
				tracer,
			)

			sweeper, err := approvals.NewSweeper(persist.Approvals(), eng, clock, logger, command.String("sweep-cron"))
			if err != nil {
				return err
			}

			if err := sweeper.Start(ctx); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

			select {
			case <-ctx.Done():
			case sig := <-stop:
				logger.Info("Received shutdown signal", "signal", sig.String())
			}

			sweeper.Stop()

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
