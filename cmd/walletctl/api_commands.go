package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/brojonat/walletwatch/client"
	"github.com/brojonat/walletwatch/service/metadata"
	"github.com/brojonat/walletwatch/service/presenter"
	"github.com/urfave/cli/v2"
)

func apiCommands() *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "HTTP client commands for interacting with the walletwatch service",
		Subcommands: []*cli.Command{
			apiTransactionCommand(),
			apiTokenCommand(),
		},
	}
}

func apiClient(c *cli.Context) *client.Client {
	httpClient := &http.Client{Timeout: c.Duration("timeout")}
	return client.NewClient(c.String("server-url"), httpClient, cliLogger())
}

func apiTransactionCommand() *cli.Command {
	return &cli.Command{
		Name:      "transaction",
		Usage:     "Fetch an enriched transaction from the server",
		ArgsUsage: "SIGNATURE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "wallet",
				Aliases:  []string{"w"},
				Usage:    "Wallet address whose view of the transaction to decode",
				Required: true,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: time.Minute,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("transaction signature is required")
			}
			signature := c.Args().Get(0)

			rec, err := apiClient(c).GetTransaction(c.Context, signature, c.String("wallet"))
			if errors.Is(err, client.ErrNotFound) {
				return fmt.Errorf("transaction %s not found", signature)
			}
			if err != nil {
				return fmt.Errorf("failed to get transaction: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, rec)
			}
			return presenter.New(presenter.ColorEnabled(c.App.Writer)).Render(c.App.Writer, rec)
		},
	}
}

func apiTokenCommand() *cli.Command {
	return &cli.Command{
		Name:      "token",
		Usage:     "Fetch token metadata from the server",
		ArgsUsage: "MINT",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 30 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("mint address is required")
			}

			meta, err := apiClient(c).GetToken(c.Context, c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("failed to get token: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, meta)
			}
			printToken(c.App.Writer, meta)
			return nil
		},
	}
}

func printToken(w io.Writer, meta *metadata.TokenMetadata) {
	fmt.Fprintf(w, "Token: %s (%s)\n", meta.Name, meta.Symbol)
	fmt.Fprintf(w, "─────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Mint:         %s\n", meta.Mint)
	fmt.Fprintf(w, "Decimals:     %d\n", meta.Decimals)
	if meta.Supply > 0 {
		fmt.Fprintf(w, "Supply:       %.2f\n", meta.Supply)
	}
	if meta.Price != nil {
		fmt.Fprintf(w, "Price:        $%.6f\n", *meta.Price)
	}
	if meta.MarketCap != nil {
		fmt.Fprintf(w, "Market Cap:   $%.2fM\n", *meta.MarketCap/1e6)
	}
	if meta.Website != "" {
		fmt.Fprintf(w, "Website:      %s\n", meta.Website)
	}
	if meta.LogoURI != "" {
		fmt.Fprintf(w, "Logo:         %s\n", meta.LogoURI)
	}
	if meta.Fallback {
		fmt.Fprintf(w, "Note:         metadata could not be resolved, showing placeholder\n")
	}
}
