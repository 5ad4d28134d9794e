package metadata

import (
	"context"

	"github.com/brojonat/walletwatch/service/solana"
)

// DefaultSOLFallbackPrice is used when no SOL quote is available.
const DefaultSOLFallbackPrice = 170.0

// SOLPriceOracle prices SOL in USD through the resolver's cached price path.
type SOLPriceOracle struct {
	resolver *Resolver
	fallback float64
}

// NewSOLPriceOracle creates an oracle. A non-positive fallback uses
// DefaultSOLFallbackPrice.
func NewSOLPriceOracle(resolver *Resolver, fallback float64) *SOLPriceOracle {
	if fallback <= 0 {
		fallback = DefaultSOLFallbackPrice
	}
	return &SOLPriceOracle{resolver: resolver, fallback: fallback}
}

// SOLPriceUSD returns the wrapped SOL quote, or the fallback price.
func (o *SOLPriceOracle) SOLPriceUSD(ctx context.Context) float64 {
	if o.resolver != nil {
		if info := o.resolver.Price(ctx, solana.WrappedSOLMint.String()); info != nil && info.PriceUSD > 0 {
			return info.PriceUSD
		}
	}
	return o.fallback
}

// FixedSOLPrice is a constant SOL price, for tests and offline use.
type FixedSOLPrice float64

func (p FixedSOLPrice) SOLPriceUSD(context.Context) float64 {
	return float64(p)
}
