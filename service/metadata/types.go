// Package metadata resolves token identity and USD prices with caching.
package metadata

import (
	"errors"
	"time"
)

// ErrNoPrice is returned by a PriceClient that has no quote for a mint.
var ErrNoPrice = errors.New("no price available")

// TokenMetadata is the resolved identity of a mint plus price data captured
// at resolution time. Values returned by the Resolver are shared and must
// not be modified.
type TokenMetadata struct {
	Mint            string  `json:"mint"`
	Name            string  `json:"name"`
	Symbol          string  `json:"symbol"`
	Decimals        uint8   `json:"decimals"`
	Supply          float64 `json:"supply,omitempty"`
	MintAuthority   *string `json:"mint_authority,omitempty"`
	FreezeAuthority *string `json:"freeze_authority,omitempty"`
	IsMutable       bool    `json:"is_mutable"`

	URI         string `json:"uri,omitempty"`
	LogoURI     string `json:"logo_uri,omitempty"`
	Description string `json:"description,omitempty"`
	Website     string `json:"website,omitempty"`
	Twitter     string `json:"twitter,omitempty"`
	Telegram    string `json:"telegram,omitempty"`

	Price          *float64 `json:"price,omitempty"`
	PriceChange24h *float64 `json:"price_change_24h,omitempty"`
	MarketCap      *float64 `json:"market_cap,omitempty"`
	Volume24h      *float64 `json:"volume_24h,omitempty"`

	HolderEstimate *int64    `json:"holder_count,omitempty"`
	CreatedAt      time.Time `json:"created_timestamp"`

	// Fallback marks placeholder metadata cached after a failed resolution.
	Fallback bool `json:"fallback,omitempty"`
}

// PriceUSD returns the captured price, or 0 when unknown.
func (m *TokenMetadata) PriceUSD() float64 {
	if m == nil || m.Price == nil {
		return 0
	}
	return *m.Price
}

// TokenPriceInfo is a USD quote for a mint.
type TokenPriceInfo struct {
	Mint           string    `json:"mint"`
	PriceUSD       float64   `json:"price_usd"`
	PriceChange24h *float64  `json:"price_change_24h,omitempty"`
	MarketCap      *float64  `json:"market_cap,omitempty"`
	Volume24h      *float64  `json:"volume_24h,omitempty"`
	Source         string    `json:"source"`
	CapturedAt     time.Time `json:"captured_at"`
}

// FallbackMetadata is the placeholder used when a mint cannot be resolved.
func FallbackMetadata(mint string) *TokenMetadata {
	short := shortMint(mint)
	return &TokenMetadata{
		Mint:      mint,
		Name:      "Token " + short,
		Symbol:    short,
		Decimals:  6,
		CreatedAt: time.Now().UTC(),
		Fallback:  true,
	}
}

func shortMint(mint string) string {
	if len(mint) <= 8 {
		return mint
	}
	return mint[:8]
}
