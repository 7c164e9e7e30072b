package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	natspkg "github.com/brojonat/solxr/service/nats"
	"github.com/urfave/cli/v2"
)

func tailCommand() *cli.Command {
	return &cli.Command{
		Name:  "tail",
		Usage: "Stream operation receipts from NATS JetStream",
		Description: `Receipts are published to solxr.{operation} after each committed operation.

Example:
  solxr events tail --operation buy_round --jq '.outcome.minted'`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "operation",
				Aliases: []string{"o"},
				Usage:   "Only stream one operation (e.g. invest, buy_round)",
			},
			&cli.StringFlag{
				Name:  "durable",
				Usage: "Durable consumer name (survives restarts)",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Replay the whole stream instead of only new receipts",
			},
		},
		Action: func(c *cli.Context) error {
			code, err := compileFilter(c.String("jq"))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := natspkg.SubscribeOptions{
				Operation:  c.String("operation"),
				Durable:    c.String("durable"),
				DeliverAll: c.Bool("all"),
			}
			fmt.Fprintf(c.App.ErrWriter, "streaming %s from %s (Ctrl+C to stop)\n", opts.FilterSubject(), c.String("nats-url"))

			// The consumer callback may run on more than one goroutine.
			var mu sync.Mutex
			return natspkg.Subscribe(ctx, c.String("nats-url"), opts, func(event *natspkg.ReceiptEvent) error {
				mu.Lock()
				defer mu.Unlock()
				return writeJSON(c.App.Writer, event, code)
			})
		},
	}
}
