package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newApp().RunContext(ctx, os.Args)
	stop()
	if err != nil {
		slog.Error("sniugb exited with error", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "sniugb",
		Usage: "livestock registry and ownership transfer service",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP API and the transfer expiry sweeper",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "migrate",
						Usage:   "apply the schema and reference data before serving",
						EnvVars: []string{"SNIUGB_MIGRATE"},
					},
				},
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply the schema and reference data",
				Action: migrate,
			},
			{
				Name:  "sweep",
				Usage: "expire stale pending transfers once and exit",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "window",
						Usage: "age after which a pending transfer expires (defaults to TRANSFER_EXPIRY_WINDOW)",
					},
				},
				Action: sweep,
			},
			{
				Name:      "verify-cui",
				Usage:     "check the Luhn digit of one or more CUIs",
				ArgsUsage: "<cui> [cui...]",
				Action:    verifyCUI,
			},
			{
				Name:  "token",
				Usage: "issue a signed access token for local development",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "subject", Usage: "national ID of the caller", Required: true},
					&cli.StringFlag{Name: "role", Usage: "producer or admin", Value: "producer"},
					&cli.DurationFlag{Name: "ttl", Usage: "token lifetime", Value: time.Hour},
				},
				Action: issueToken,
			},
		},
	}
}
