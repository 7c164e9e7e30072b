package main

import (
	"fmt"
	"log"
	"os"
	"time"

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
		Name:  "solxr",
		Usage: "SOLXR strategy CLI",
		Description: `A command-line tool for operating a SOLXR strategy host.

Mutations are signed with the keypair given by --keypair. Every command prints
JSON; use --jq to filter it.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			initCommand(),
			investCommand(),
			airdropCommand(),
			strategyCommand(),
			balanceCommand(),
			roundCommands(),
			offeringCommands(),
			keygenCommand(),
			{
				Name:  "events",
				Usage: "Receipt stream commands",
				Subcommands: []*cli.Command{
					tailCommand(),
				},
			},
			{
				Name:  "db",
				Usage: "Database maintenance commands",
				Subcommands: []*cli.Command{
					migrateCommand(),
					migrationsCommand(),
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
				Usage:   "Strategy host URL",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "keypair",
				Aliases: []string{"k"},
				Usage:   "Path to a solana-keygen keypair file used to sign mutations",
				EnvVars: []string{"SOLXR_KEYPAIR"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "HTTP request timeout",
				Value: 30 * time.Second,
			},
			&cli.StringFlag{
				Name:  "jq",
				Usage: "jq filter applied to JSON output",
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
		},
	}
}
