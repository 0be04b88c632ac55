package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/paygrid/payflow/pkg/cmd"
	"github.com/paygrid/payflow/pkg/log"
)

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "payflow-api",
		Usage:                 "Inspect payment workflow records",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   "9090",
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "PostgreSQL connection URL for the record store",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "store-root",
				Usage:   "File store root directory, used when no database URL is set",
				Value:   "./data",
				Sources: cli.EnvVars("STORE_ROOT"),
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

			logger.InfoContext(ctx, "Initializing Payflow API")

			store := cmd.NewRecordStore(ctx, logger, command.String("database-url"), command.String("store-root"))

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close record store", "error", err)
				}
			}()

			api := NewAPI(logger, store)

			if err := api.Start(command.String("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
