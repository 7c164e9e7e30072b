package main

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"
)

func roundCommands() *cli.Command {
	return &cli.Command{
		Name:  "round",
		Usage: "Premium mint round commands",
		Subcommands: []*cli.Command{
			roundOpenCommand(),
			roundBuyCommand(),
			roundCloseCommand(),
			roundGetCommand(),
			roundParticipantCommand(),
		},
	}
}

func parseID(s, what string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	return id, nil
}

func roundOpenCommand() *cli.Command {
	return &cli.Command{
		Name:      "open",
		Usage:     "Open a mint round at a premium (governance only)",
		ArgsUsage: "ROUND_ID PREMIUM",
		Description: `PREMIUM is a decimal multiple of NAV, e.g. 1.75.`,
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("round id and premium are required")
			}
			id, err := parseID(c.Args().Get(0), "round id")
			if err != nil {
				return err
			}
			premium, err := parseAmount(c.Args().Get(1))
			if err != nil {
				return err
			}
			cl, err := newClient(c)
			if err != nil {
				return err
			}
			r, err := cl.OpenRound(c.Context, id, premium)
			if err != nil {
				return err
			}
			return output(c, r)
		},
	}
}

func roundBuyCommand() *cli.Command {
	return &cli.Command{
		Name:      "buy",
		Usage:     "Buy SOLXR in the active round",
		ArgsUsage: "ROUND_ID AMOUNT",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "fee-recipient",
				Usage:    "Platform wallet receiving the mint fee",
				EnvVars:  []string{"SOLXR_FEE_RECIPIENT"},
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("round id and amount are required")
			}
			id, err := parseID(c.Args().Get(0), "round id")
			if err != nil {
				return err
			}
			amount, err := parseAmount(c.Args().Get(1))
			if err != nil {
				return err
			}
			feeRecipient, err := parseWallet(c.String("fee-recipient"))
			if err != nil {
				return err
			}
			cl, err := newClient(c)
			if err != nil {
				return err
			}
			r, err := cl.BuyRound(c.Context, id, amount, feeRecipient)
			if err != nil {
				return err
			}
			return output(c, r)
		},
	}
}

func roundCloseCommand() *cli.Command {
	return &cli.Command{
		Name:  "close",
		Usage: "Close the active round (governance only)",
		Action: func(c *cli.Context) error {
			cl, err := newClient(c)
			if err != nil {
				return err
			}
			r, err := cl.CloseRound(c.Context)
			if err != nil {
				return err
			}
			return output(c, r)
		},
	}
}

func roundGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show a round",
		ArgsUsage: "ROUND_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("round id is required")
			}
			id, err := parseID(c.Args().Get(0), "round id")
			if err != nil {
				return err
			}
			cl, err := newClient(c)
			if err != nil {
				return err
			}
			round, err := cl.Round(c.Context, id)
			if err != nil {
				return err
			}
			return output(c, round)
		},
	}
}

func roundParticipantCommand() *cli.Command {
	return &cli.Command{
		Name:      "participant",
		Usage:     "Show what a wallet minted in a round",
		ArgsUsage: "ROUND_ID WALLET",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("round id and wallet are required")
			}
			id, err := parseID(c.Args().Get(0), "round id")
			if err != nil {
				return err
			}
			wallet, err := parseWallet(c.Args().Get(1))
			if err != nil {
				return err
			}
			cl, err := newClient(c)
			if err != nil {
				return err
			}
			p, err := cl.RoundParticipant(c.Context, id, wallet)
			if err != nil {
				return err
			}
			return output(c, p)
		},
	}
}
