package metadata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultJupiterPriceURL = "https://api.jup.ag/price/v2"
	DefaultDexScreenerURL  = "https://api.dexscreener.com"
)

// PriceClient quotes a USD price for a mint. It returns ErrNoPrice when the
// service has no quote.
type PriceClient interface {
	GetPrice(ctx context.Context, mint string) (*TokenPriceInfo, error)
}

// flexFloat accepts a JSON number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", s, err)
	}
	*f = flexFloat(v)
	return nil
}

// JupiterPriceClient queries the Jupiter price API.
type JupiterPriceClient struct {
	endpoint string
	http     *jsonClient
}

// NewJupiterPriceClient creates a client for endpoint (for example
// DefaultJupiterPriceURL). A nil httpClient uses a default.
func NewJupiterPriceClient(endpoint string, httpClient *http.Client) *JupiterPriceClient {
	if endpoint == "" {
		endpoint = DefaultJupiterPriceURL
	}
	return &JupiterPriceClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     newJSONClient(httpClient),
	}
}

func (c *JupiterPriceClient) GetPrice(ctx context.Context, mint string) (*TokenPriceInfo, error) {
	var resp struct {
		Data map[string]*struct {
			Price flexFloat `json:"price"`
		} `json:"data"`
	}
	u := c.endpoint + "?ids=" + url.QueryEscape(mint)
	if err := c.http.getJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("jupiter price for %s: %w", mint, err)
	}

	entry := resp.Data[mint]
	if entry == nil || entry.Price <= 0 {
		return nil, ErrNoPrice
	}
	return &TokenPriceInfo{
		Mint:       mint,
		PriceUSD:   float64(entry.Price),
		Source:     "jupiter",
		CapturedAt: time.Now().UTC(),
	}, nil
}

// DexScreenerPriceClient prices a mint from its most liquid DexScreener pair.
type DexScreenerPriceClient struct {
	baseURL string
	http    *jsonClient
}

// NewDexScreenerPriceClient creates a client. An empty baseURL uses DefaultDexScreenerURL.
func NewDexScreenerPriceClient(baseURL string, httpClient *http.Client) *DexScreenerPriceClient {
	if baseURL == "" {
		baseURL = DefaultDexScreenerURL
	}
	return &DexScreenerPriceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newJSONClient(httpClient),
	}
}

type dexScreenerPair struct {
	PriceUSD  flexFloat `json:"priceUsd"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	PriceChange struct {
		H24 *float64 `json:"h24"`
	} `json:"priceChange"`
	Volume struct {
		H24 *float64 `json:"h24"`
	} `json:"volume"`
	MarketCap *float64 `json:"marketCap"`
	FDV       *float64 `json:"fdv"`
}

func (c *DexScreenerPriceClient) GetPrice(ctx context.Context, mint string) (*TokenPriceInfo, error) {
	var resp struct {
		Pairs []dexScreenerPair `json:"pairs"`
	}
	u := fmt.Sprintf("%s/latest/dex/tokens/%s", c.baseURL, url.PathEscape(mint))
	if err := c.http.getJSON(ctx, u, &resp); err != nil {
		return nil, fmt.Errorf("dexscreener price for %s: %w", mint, err)
	}

	var best *dexScreenerPair
	for i := range resp.Pairs {
		p := &resp.Pairs[i]
		if p.PriceUSD <= 0 {
			continue
		}
		if best == nil || p.Liquidity.USD > best.Liquidity.USD {
			best = p
		}
	}
	if best == nil {
		return nil, ErrNoPrice
	}

	info := &TokenPriceInfo{
		Mint:           mint,
		PriceUSD:       float64(best.PriceUSD),
		PriceChange24h: best.PriceChange.H24,
		Volume24h:      best.Volume.H24,
		MarketCap:      best.MarketCap,
		Source:         "dexscreener",
		CapturedAt:     time.Now().UTC(),
	}
	if info.MarketCap == nil {
		info.MarketCap = best.FDV
	}
	return info, nil
}

// ChainPriceClient asks each client in order and returns the first quote.
type ChainPriceClient []PriceClient

func (c ChainPriceClient) GetPrice(ctx context.Context, mint string) (*TokenPriceInfo, error) {
	var errs []error
	for _, pc := range c {
		info, err := pc.GetPrice(ctx, mint)
		if err == nil {
			return info, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, ErrNoPrice) {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil, ErrNoPrice
	}
	return nil, errors.Join(errs...)
}
