package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Error().Err(err).Msg("portalctl failed")
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "portalctl",
		Usage: "Operator tasks for the campus portal",
		Commands: []*cli.Command{
			migrateCmd(),
			hashPasswordCmd(),
			purgeCmd(),
			issueTokenCmd(),
		},
	}
}
