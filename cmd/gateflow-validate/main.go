// The gateflow-validate binary validates workflow definition documents and
// optionally registers them with the persistence layer.
package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"

	gateflowcmd "github.com/gateflow/gateflow/pkg/cmd"
	"github.com/gateflow/gateflow/pkg/log"
	"github.com/gateflow/gateflow/pkg/registry"
)

func main() {
	command := &cli.Command{
		Name:                  "gateflow-validate",
		Usage:                 "Validate workflow definition documents",
		ArgsUsage:             "FILE [FILE...]",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "register",
				Usage: "Register valid definitions with the persistence layer",
				Value: false,
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL, required with --register",
				Sources: cli.EnvVars("DATABASE_URL"),
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
			logger := log.WithModule("gateflow-validate")

			files := command.Args().Slice()
			if len(files) == 0 {
				return fmt.Errorf("no definition files given")
			}

			var defRegistry *registry.DefinitionRegistry

			if command.Bool("register") {
				databaseURL := command.String("database-url")
				if databaseURL == "" {
					return fmt.Errorf("--database-url is required with --register")
				}

				persist := gateflowcmd.NewPersistence(ctx, logger, databaseURL)
				defer func() {
					if err := persist.Close(ctx); err != nil {
						logger.Error("Failed to close persistence", "error", err)
					}
				}()

				defRegistry = registry.NewDefinitionRegistry(persist.Definitions(), logger)
			}

			failed := 0

			for _, file := range files {
				document, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", file, err)
				}

				definition, err := registry.ParseDefinition(document)
				if err != nil {
					failed++

					fmt.Fprintf(os.Stderr, "INVALID %s: %v\n", file, err)

					continue
				}

				fmt.Printf("OK %s (%s, %d states, %d transitions)\n",
					file, definition.ID, len(definition.States), len(definition.Transitions))

				if defRegistry != nil {
					if err := defRegistry.Register(ctx, definition); err != nil {
						return fmt.Errorf("failed to register %s: %w", definition.ID, err)
					}

					logger.Info("Registered definition", "definition_id", definition.ID)
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d definition documents invalid", failed, len(files))
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
