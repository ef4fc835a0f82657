package main

import (
	"log/slog"
	"os"

	"github.com/gamdit/gamebox/internal/config"
	"github.com/gamdit/gamebox/internal/logging"
	"github.com/urfave/cli/v2"
)

var limitFlag = &cli.IntFlag{Name: "limit", Value: 500, Usage: "maximum games to process"}

func main() {
	// Structured logging (JSON to stdout)
	logging.Setup()
	config.LoadDotEnv()

	app := &cli.App{
		Name:  "gamebox",
		Usage: "social backend for gamers",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "create or update database tables",
				Action: migrate,
			},
			{
				Name:  "backfill",
				Usage: "repair game metadata from IGDB",
				Subcommands: []*cli.Command{
					{
						Name:   "parents",
						Usage:  "link editions to their base game",
						Flags:  []cli.Flag{limitFlag},
						Action: backfill(jobParents),
					},
					{
						Name:   "summaries",
						Usage:  "fill in missing summaries",
						Flags:  []cli.Flag{limitFlag},
						Action: backfill(jobSummaries),
					},
				},
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("gamebox exited", "error", err)
		os.Exit(1)
	}
}
