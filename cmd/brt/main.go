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
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "brt",
		Usage: "BRT ledger gateway CLI",
		Description: `A command-line tool for the brtd ledger gateway.

Most commands talk to brtd over HTTP (--server-url). Commands that need
validation status from the ledger (tx wait, tx send --wait) talk to a node
directly (--rpc-url).`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			{
				Name:  "ledger",
				Usage: "Ledger state",
				Subcommands: []*cli.Command{
					heightCommand(),
					feeCommand(),
					supplyCommand(),
					blockCommand(),
				},
			},
			{
				Name:  "tx",
				Usage: "Transaction commands",
				Subcommands: []*cli.Command{
					getTransactionCommand(),
					waitTransactionCommand(),
					validTransactionCommand(),
					signCommand(),
					submitCommand(),
					sendCommand(),
				},
			},
			{
				Name:  "address",
				Usage: "Address commands",
				Subcommands: []*cli.Command{
					newAddressCommand(),
					balanceCommand(),
					addressTransactionsCommand(),
					validAddressCommand(),
				},
			},
			{
				Name:  "nats",
				Usage: "Submission event streaming",
				Subcommands: []*cli.Command{
					subscribeCommand(),
				},
			},
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "brtd base URL",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Ledger node JSON-RPC URL",
				EnvVars: []string{"BRT_RPC_URL"},
			},
			&cli.StringFlag{
				Name:    "rpc-user",
				Usage:   "Ledger node basic auth user",
				EnvVars: []string{"BRT_RPC_USER"},
			},
			&cli.StringFlag{
				Name:    "rpc-password",
				Usage:   "Ledger node basic auth password",
				EnvVars: []string{"BRT_RPC_PASSWORD"},
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
			&cli.StringFlag{
				Name:  "jq",
				Usage: "Filter JSON output through a jq expression",
			},
		},
	}
}
