package main

import (
	"fmt"

	"github.com/brojonat/solxr/service/db"
	"github.com/urfave/cli/v2"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending schema migrations",
		Action: func(c *cli.Context) error {
			databaseURL := c.String("database-url")
			if databaseURL == "" {
				return fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
			}

			pool, err := db.Connect(c.Context, databaseURL, 2)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := db.Migrate(c.Context, pool)
			if err != nil {
				return err
			}
			if applied == nil {
				applied = []string{}
			}
			return output(c, map[string]any{"applied": applied})
		},
	}
}

func migrationsCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrations",
		Usage: "List the migrations bundled with this binary",
		Action: func(c *cli.Context) error {
			names, err := db.Migrations()
			if err != nil {
				return err
			}
			return output(c, names)
		},
	}
}
