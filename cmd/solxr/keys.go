package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/brojonat/solxr/client"
	"github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"
)

// loadKey reads the --keypair file. It returns nil when no keypair is set.
func loadKey(c *cli.Context) (solana.PrivateKey, error) {
	path := c.String("keypair")
	if path == "" {
		return nil, nil
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair %s: %w", path, err)
	}
	return key, nil
}

// newClient builds an API client from the global flags.
func newClient(c *cli.Context) (*client.Client, error) {
	key, err := loadKey(c)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: slog.LevelWarn}))
	httpClient := &http.Client{Timeout: c.Duration("timeout")}
	return client.NewClient(c.String("server-url"), httpClient, key, logger), nil
}

func parseWallet(s string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid wallet address %q: %w", s, err)
	}
	return pk, nil
}

func keygenCommand() *cli.Command {
	return &cli.Command{
		Name:      "keygen",
		Usage:     "Generate a keypair file in solana-keygen format",
		ArgsUsage: "OUTFILE",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing file",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("output file is required")
			}
			path := c.Args().Get(0)

			if !c.Bool("force") {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", path)
				}
			}

			key, err := solana.NewRandomPrivateKey()
			if err != nil {
				return fmt.Errorf("failed to generate key: %w", err)
			}

			// solana-keygen stores the key as a JSON array of byte values.
			values := make([]int, len(key))
			for i, b := range key {
				values[i] = int(b)
			}
			raw, err := json.Marshal(values)
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, raw, 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}

			return output(c, map[string]string{
				"path":   path,
				"wallet": key.PublicKey().String(),
			})
		},
	}
}
