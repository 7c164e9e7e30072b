package main

import (
	"fmt"
	"time"

	"github.com/brojonat/solxr/service/strategy"
	"github.com/urfave/cli/v2"
)

func offeringCommands() *cli.Command {
	return &cli.Command{
		Name:  "offering",
		Usage: "Bond and whitelist offering commands",
		Subcommands: []*cli.Command{
			offeringCreateCommand(),
			offeringBuyCommand(),
			offeringRedeemCommand(),
			offeringTransferCommand(),
			offeringGetCommand(),
			offeringParticipantCommand(),
			offeringEditionCommand(),
		},
	}
}

func parseKind(s string) (strategy.OfferingKind, error) {
	kind := strategy.OfferingKind(s)
	if !kind.Valid() {
		return "", fmt.Errorf("invalid offering kind %q (want %s or %s)", s, strategy.Bond, strategy.Whitelist)
	}
	return kind, nil
}

// parseOffering reads KIND OFFERING_ID from the first two arguments.
func parseOffering(c *cli.Context) (strategy.OfferingKind, uint64, error) {
	kind, err := parseKind(c.Args().Get(0))
	if err != nil {
		return "", 0, err
	}
	id, err := parseID(c.Args().Get(1), "offering id")
	if err != nil {
		return "", 0, err
	}
	return kind, id, nil
}

func timestampFlag(name, usage string) *cli.TimestampFlag {
	return &cli.TimestampFlag{
		Name:     name,
		Usage:    usage + " (RFC3339)",
		Layout:   time.RFC3339,
		Required: true,
	}
}

func offeringCreateCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create a bond or whitelist offering (governance only)",
		ArgsUsage: "KIND",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Required: true},
			&cli.StringFlag{Name: "symbol", Required: true},
			&cli.StringFlag{Name: "uri"},
			&cli.StringFlag{Name: "price", Usage: "Edition price in collateral", Required: true},
			&cli.StringFlag{Name: "strike-price", Usage: "Conversion price (bond only)"},
			&cli.Uint64Flag{Name: "supply", Usage: "Edition supply cap, 0 for unlimited (bond only)"},
			&cli.Uint64Flag{Name: "max-per-wallet", Usage: "Editions a wallet may buy", Value: 1},
			timestampFlag("start", "Sale window start"),
			timestampFlag("end", "Sale window end"),
			timestampFlag("maturity", "Earliest redemption"),
			timestampFlag("expiration", "Latest redemption"),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("offering kind is required")
			}
			kind, err := parseKind(c.Args().Get(0))
			if err != nil {
				return err
			}
			price, err := parseAmount(c.String("price"))
			if err != nil {
				return fmt.Errorf("price: %w", err)
			}
			var strike uint64
			if s := c.String("strike-price"); s != "" {
				if strike, err = parseAmount(s); err != nil {
					return fmt.Errorf("strike price: %w", err)
				}
			}

			params := strategy.OfferingParams{
				Kind:             kind,
				Name:             c.String("name"),
				Symbol:           c.String("symbol"),
				URI:              c.String("uri"),
				Price:            price,
				StrikePrice:      strike,
				Supply:           c.Uint64("supply"),
				MaxMintPerWallet: c.Uint64("max-per-wallet"),
				StartTime:        *c.Timestamp("start"),
				EndTime:          *c.Timestamp("end"),
				Maturity:         *c.Timestamp("maturity"),
				Expiration:       *c.Timestamp("expiration"),
			}

			cl, err := newClient(c)
			if err != nil {
				return err
			}
			r, err := cl.CreateOffering(c.Context, params)
			if err != nil {
				return err
			}
			return output(c, r)
		},
	}
}

func offeringBuyCommand() *cli.Command {
	return &cli.Command{
		Name:      "buy",
		Usage:     "Buy the next edition of an offering",
		ArgsUsage: "KIND OFFERING_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("kind and offering id are required")
			}
			kind, id, err := parseOffering(c)
			if err != nil {
				return err
			}
			cl, err := newClient(c)
			if err != nil {
				return err
			}
			r, err := cl.BuyEdition(c.Context, kind, id)
			if err != nil {
				return err
			}
			return output(c, r)
		},
	}
}

func offeringRedeemCommand() *cli.Command {
	return &cli.Command{
		Name:      "redeem",
		Usage:     "Redeem a held edition after maturity",
		ArgsUsage: "KIND OFFERING_ID EDITION",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "convert",
				Usage: "Convert a bond at its strike price instead of claiming the price back",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 3 {
				return fmt.Errorf("kind, offering id and edition are required")
			}
			kind, id, err := parseOffering(c)
			if err != nil {
				return err
			}
			edition, err := parseID(c.Args().Get(2), "edition")
			if err != nil {
				return err
			}
			if c.Bool("convert") && kind != strategy.Bond {
				return fmt.Errorf("--convert applies to bonds only")
			}
			cl, err := newClient(c)
			if err != nil {
				return err
			}
			r, err := cl.Redeem(c.Context, kind, id, edition, c.Bool("convert"))
			if err != nil {
				return err
			}
			return output(c, r)
		},
	}
}

func offeringTransferCommand() *cli.Command {
	return &cli.Command{
		Name:      "transfer",
		Usage:     "Transfer a held edition to another wallet",
		ArgsUsage: "KIND OFFERING_ID EDITION TO",
		Action: func(c *cli.Context) error {
			if c.NArg() != 4 {
				return fmt.Errorf("kind, offering id, edition and recipient are required")
			}
			kind, id, err := parseOffering(c)
			if err != nil {
				return err
			}
			edition, err := parseID(c.Args().Get(2), "edition")
			if err != nil {
				return err
			}
			to, err := parseWallet(c.Args().Get(3))
			if err != nil {
				return err
			}
			cl, err := newClient(c)
			if err != nil {
				return err
			}
			r, err := cl.TransferEdition(c.Context, kind, id, edition, to)
			if err != nil {
				return err
			}
			return output(c, r)
		},
	}
}

func offeringGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show an offering",
		ArgsUsage: "KIND OFFERING_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("kind and offering id are required")
			}
			kind, id, err := parseOffering(c)
			if err != nil {
				return err
			}
			cl, err := newClient(c)
			if err != nil {
				return err
			}
			o, err := cl.Offering(c.Context, kind, id)
			if err != nil {
				return err
			}
			return output(c, o)
		},
	}
}

func offeringParticipantCommand() *cli.Command {
	return &cli.Command{
		Name:      "participant",
		Usage:     "Show how many editions a wallet bought",
		ArgsUsage: "KIND OFFERING_ID WALLET",
		Action: func(c *cli.Context) error {
			if c.NArg() != 3 {
				return fmt.Errorf("kind, offering id and wallet are required")
			}
			kind, id, err := parseOffering(c)
			if err != nil {
				return err
			}
			wallet, err := parseWallet(c.Args().Get(2))
			if err != nil {
				return err
			}
			cl, err := newClient(c)
			if err != nil {
				return err
			}
			p, err := cl.Participant(c.Context, kind, id, wallet)
			if err != nil {
				return err
			}
			return output(c, p)
		},
	}
}

func offeringEditionCommand() *cli.Command {
	return &cli.Command{
		Name:      "edition",
		Usage:     "Show an edition's address and redemption",
		ArgsUsage: "KIND OFFERING_ID EDITION",
		Action: func(c *cli.Context) error {
			if c.NArg() != 3 {
				return fmt.Errorf("kind, offering id and edition are required")
			}
			kind, id, err := parseOffering(c)
			if err != nil {
				return err
			}
			edition, err := parseID(c.Args().Get(2), "edition")
			if err != nil {
				return err
			}
			cl, err := newClient(c)
			if err != nil {
				return err
			}
			ed, err := cl.Edition(c.Context, kind, id, edition)
			if err != nil {
				return err
			}
			return output(c, ed)
		},
	}
}
