package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:  "transfer",
		Usage: "Solana lamport transfer with compute budget and preflight diagnosis",
		Description: `Builds a system transfer, sizes its compute budget from a simulation,
attaches a priority fee, signs it and waits for confirmation over a websocket subscription.

Preflight rejections are decoded into a readable diagnosis instead of a raw RPC error.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			sendCommand(),
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a JSON or YAML config file",
				EnvVars: []string{"SOLANA_TRANSFER_CONFIG"},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
