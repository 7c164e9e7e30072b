package main

import (
	"fmt"
	"log/slog"

	"github.com/brojonat/solxr/client"
	"github.com/brojonat/solxr/service/config"
	"github.com/brojonat/solxr/service/solana"
	"github.com/urfave/cli/v2"
)

func initCommand() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Initialize the strategy from a TOML setup file",
		ArgsUsage: "SETUP.toml",
		Description: `Applies the [token], [editions] and [[offerings]] sections of the file in
that order. Sections that are absent are skipped, so the file can also be used
to create offerings on an initialized strategy.

The token and editions sections must be signed by the initializer; offerings
by governance.`,
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("setup file is required")
			}
			params, err := config.LoadInitParams(c.Args().Get(0))
			if err != nil {
				return err
			}
			cl, err := newClient(c)
			if err != nil {
				return err
			}

			var receipts []*client.Receipt
			if params.Token != nil {
				r, err := cl.InitializeToken(c.Context, *params.Token)
				if err != nil {
					return fmt.Errorf("initialize token: %w", err)
				}
				receipts = append(receipts, r)
			}
			if params.Editions != nil {
				r, err := cl.InitializeEditions(c.Context, *params.Editions)
				if err != nil {
					return fmt.Errorf("initialize editions: %w", err)
				}
				receipts = append(receipts, r)
			}
			for i, o := range params.Offerings {
				r, err := cl.CreateOffering(c.Context, o)
				if err != nil {
					return fmt.Errorf("create offering %d (%s): %w", i+1, o.Name, err)
				}
				receipts = append(receipts, r)
			}
			return output(c, receipts)
		},
	}
}

func investCommand() *cli.Command {
	return &cli.Command{
		Name:      "invest",
		Usage:     "Deposit collateral at NAV and receive SOLXR",
		ArgsUsage: "AMOUNT",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("amount is required")
			}
			amount, err := parseAmount(c.Args().Get(0))
			if err != nil {
				return err
			}
			cl, err := newClient(c)
			if err != nil {
				return err
			}
			r, err := cl.Invest(c.Context, amount)
			if err != nil {
				return err
			}
			return output(c, r)
		},
	}
}

func airdropCommand() *cli.Command {
	return &cli.Command{
		Name:      "airdrop",
		Usage:     "Credit collateral to a wallet (initializer only)",
		ArgsUsage: "WALLET AMOUNT",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("wallet and amount are required")
			}
			to, err := parseWallet(c.Args().Get(0))
			if err != nil {
				return err
			}
			amount, err := parseAmount(c.Args().Get(1))
			if err != nil {
				return err
			}
			cl, err := newClient(c)
			if err != nil {
				return err
			}
			r, err := cl.Airdrop(c.Context, to, amount)
			if err != nil {
				return err
			}
			return output(c, r)
		},
	}
}

func strategyCommand() *cli.Command {
	return &cli.Command{
		Name:  "strategy",
		Usage: "Show the strategy state, supply, NAV and premium floor",
		Action: func(c *cli.Context) error {
			cl, err := newClient(c)
			if err != nil {
				return err
			}
			snap, err := cl.Strategy(c.Context)
			if err != nil {
				return err
			}
			return output(c, snap)
		},
	}
}

func balanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "balance",
		Usage:     "Show SOLXR and collateral balances of a wallet",
		ArgsUsage: "[WALLET]",
		Description: `Without an argument the wallet of --keypair is used. With --rpc-url the
wallet's on-chain lamport balance is shown as well.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Solana RPC endpoint for the on-chain balance",
				EnvVars: []string{"SOLANA_RPC_URL"},
			},
		},
		Action: func(c *cli.Context) error {
			cl, err := newClient(c)
			if err != nil {
				return err
			}
			wallet := cl.Wallet()
			if c.NArg() > 0 {
				if wallet, err = parseWallet(c.Args().Get(0)); err != nil {
					return err
				}
			}
			if wallet.IsZero() {
				return fmt.Errorf("wallet is required (pass it or set --keypair)")
			}
			b, err := cl.Balance(c.Context, wallet)
			if err != nil {
				return err
			}
			rpcURL := c.String("rpc-url")
			if rpcURL == "" {
				return output(c, b)
			}

			logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: slog.LevelWarn}))
			lamports, err := solana.NewClient(solana.NewRPCClient(rpcURL), nil, logger).Balance(c.Context, wallet)
			if err != nil {
				return fmt.Errorf("on-chain balance: %w", err)
			}
			return output(c, struct {
				*client.Balance
				OnchainLamports uint64 `json:"onchain_lamports"`
			}{b, lamports})
		},
	}
}
