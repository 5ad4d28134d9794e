package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/brojonat/walletwatch/service/activity"
	"github.com/brojonat/walletwatch/service/enrich"
	"github.com/brojonat/walletwatch/service/metadata"
	"github.com/brojonat/walletwatch/service/presenter"
	"github.com/brojonat/walletwatch/service/solana"
	"github.com/urfave/cli/v2"
)

func ledgerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "price-api-url",
			Usage:   "Jupiter price API endpoint",
			EnvVars: []string{"PRICE_API_URL"},
			Value:   metadata.DefaultJupiterPriceURL,
		},
		&cli.StringFlag{
			Name:    "dexscreener-api-url",
			Usage:   "DexScreener API base URL",
			EnvVars: []string{"DEXSCREENER_API_URL"},
			Value:   metadata.DefaultDexScreenerURL,
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Timeout for each RPC call",
			Value: 30 * time.Second,
		},
	}
}

// ledgerServices wires a metadata resolver, fetcher and enricher against
// the RPC endpoint, without metrics.
type ledgerServices struct {
	resolver *metadata.Resolver
	fetcher  *activity.Fetcher
	enricher *enrich.Enricher
}

func newLedgerServices(c *cli.Context) *ledgerServices {
	logger := cliLogger()
	rpcURL := c.String("rpc-url")
	timeout := c.Duration("timeout")

	rpcClient := solana.NewClient(solana.NewRPCClient(rpcURL), solana.EndpointLabel(rpcURL), nil, logger)
	httpClient := &http.Client{Timeout: timeout}
	resolver := metadata.NewResolver(
		rpcClient,
		metadata.NewOffChainFetcher(httpClient),
		metadata.ChainPriceClient{
			metadata.NewJupiterPriceClient(c.String("price-api-url"), httpClient),
			metadata.NewDexScreenerPriceClient(c.String("dexscreener-api-url"), httpClient),
		},
		metadata.ResolverConfig{
			RPCTimeout:   timeout,
			FetchTimeout: timeout,
			PriceTimeout: timeout,
		},
		nil,
		logger,
	)

	return &ledgerServices{
		resolver: resolver,
		fetcher:  activity.NewFetcher(rpcClient, resolver, nil, timeout, nil, logger),
		enricher: enrich.NewEnricher(resolver, metadata.NewSOLPriceOracle(resolver, 0), nil, nil, logger),
	}
}

// decodeCommand decodes and enriches one transaction straight from the ledger.
func decodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "Decode and enrich a transaction from a wallet's point of view",
		ArgsUsage: "SIGNATURE",
		Description: `Fetch a transaction from the Solana RPC endpoint, decode its balance changes
for the given wallet, classify DeFi activity and print the enriched record.

Example:
  walletctl decode 5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW --wallet DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK`,
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     "wallet",
				Aliases:  []string{"w"},
				Usage:    "Wallet address whose view of the transaction to decode",
				Required: true,
			},
		}, ledgerFlags()...),
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("transaction signature is required")
			}
			signature := c.Args().Get(0)
			wallet := c.String("wallet")

			svc := newLedgerServices(c)
			rec := svc.fetcher.Fetch(c.Context, signature, wallet)
			if rec == nil {
				return fmt.Errorf("transaction %s not found or could not be decoded", signature)
			}
			enriched := svc.enricher.Enrich(c.Context, wallet, rec, nil)

			if c.Bool("json") {
				return outputJSON(c.App.Writer, enriched)
			}
			return presenter.New(presenter.ColorEnabled(c.App.Writer)).Render(c.App.Writer, enriched)
		},
	}
}

// tokenCommand resolves token metadata and price for a mint.
func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:      "token",
		Usage:     "Resolve token metadata and price for a mint",
		ArgsUsage: "MINT",
		Flags:     ledgerFlags(),
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("mint address is required")
			}
			mint := c.Args().Get(0)

			svc := newLedgerServices(c)
			meta := svc.resolver.Resolve(c.Context, mint)

			if c.Bool("json") {
				return outputJSON(c.App.Writer, meta)
			}
			printToken(c.App.Writer, meta)
			return nil
		},
	}
}
