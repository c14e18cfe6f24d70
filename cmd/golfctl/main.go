package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "golfctl",
		Usage: "Golf rules Q&A backend tooling",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug, info, warn, error)",
				Value: "warn",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and the update scheduler",
				Action: serveAction,
			},
			{
				Name:      "ask",
				Usage:     "Answer a golf rules question",
				ArgsUsage: "<question>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "number of passages to retrieve",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "print the full response as JSON",
					},
				},
				Action: askAction,
			},
			{
				Name:   "update",
				Usage:  "Refresh rules and course data now",
				Action: updateAction,
			},
			{
				Name:   "freshness",
				Usage:  "Show how current the rules and course data are",
				Action: freshnessAction,
			},
			{
				Name:  "stats",
				Usage: "Show query, cost and RAG metric statistics",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "days",
						Usage: "window in days",
						Value: 30,
					},
				},
				Action: statsAction,
			},
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
