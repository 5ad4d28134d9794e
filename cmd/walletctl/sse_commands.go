package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/brojonat/walletwatch/client"
	"github.com/brojonat/walletwatch/service/enrich"
	"github.com/brojonat/walletwatch/service/presenter"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

func sseCommands() *cli.Command {
	return &cli.Command{
		Name:  "sse",
		Usage: "Server-Sent Events (SSE) streaming commands",
		Subcommands: []*cli.Command{
			streamCommand(),
		},
	}
}

func streamCommand() *cli.Command {
	return &cli.Command{
		Name:      "stream",
		Usage:     "Stream enriched wallet activity via SSE (HTTP)",
		ArgsUsage: "[wallet_address]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "jq",
				Usage: "Only show records for which every jq filter is truthy (repeatable)",
			},
		},
		Action: func(c *cli.Context) error {
			walletAddress := c.Args().First()
			jsonOutput := c.Bool("json")

			codes, err := compileJQFilters(c.StringSlice("jq"))
			if err != nil {
				return err
			}

			// Create context that cancels on interrupt
			ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if !jsonOutput {
				if walletAddress != "" {
					fmt.Fprintf(os.Stderr, "Connected to SSE stream for wallet: %s\n", walletAddress)
				} else {
					fmt.Fprintf(os.Stderr, "Connected to SSE stream for all wallets\n")
				}
				fmt.Fprintf(os.Stderr, "Streaming activity... (Ctrl+C to stop)\n\n")
			}

			// no timeout for streaming
			cl := client.NewClient(c.String("server-url"), &http.Client{}, cliLogger())
			handle := recordPrinter(c.App.Writer, codes, jsonOutput)
			err = cl.StreamActivity(ctx, walletAddress, handle)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

// recordPrinter returns a callback that prints records passing codes, as
// JSON lines or as rendered reports.
func recordPrinter(w io.Writer, codes []*gojq.Code, jsonOutput bool) func(*enrich.EnrichedRecord) error {
	p := presenter.New(presenter.ColorEnabled(w))
	return func(rec *enrich.EnrichedRecord) error {
		ok, err := matchesJQ(codes, rec)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jq filter error: %v\n", err)
			return nil
		}
		if !ok {
			return nil
		}
		if jsonOutput {
			return outputJSONLine(w, rec)
		}
		return p.Render(w, rec)
	}
}
