package metadata

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/brojonat/walletwatch/service/metrics"
	"github.com/brojonat/walletwatch/service/solana"
	"golang.org/x/sync/singleflight"
)

// DefaultPriceTTL is how long a price quote stays fresh.
const DefaultPriceTTL = 5 * time.Minute

// AccountLookup reads mint and raw account data. *solana.Client satisfies it.
type AccountLookup interface {
	GetMintInfo(ctx context.Context, mint string) (*solana.MintInfo, error)
	GetAccountData(ctx context.Context, address string) ([]byte, error)
}

// OffChainLookup fetches the JSON document behind a metadata URI.
// *OffChainFetcher satisfies it.
type OffChainLookup interface {
	Fetch(ctx context.Context, uri string) (*OffChainMetadata, error)
}

// ResolverConfig holds cache policies and per-call timeouts. Zero timeouts
// add no deadline beyond the caller's context.
type ResolverConfig struct {
	Metadata     CachePolicy
	PriceTTL     time.Duration
	RPCTimeout   time.Duration
	FetchTimeout time.Duration
	PriceTimeout time.Duration
}

// Resolver resolves token metadata and prices. Metadata is cached per mint
// according to the metadata policy; prices are cached for PriceTTL.
// Concurrent misses for the same mint share one resolution.
type Resolver struct {
	accounts AccountLookup
	offchain OffChainLookup
	prices   PriceClient
	cfg      ResolverConfig

	metaCache  *Cache[string, *TokenMetadata]
	priceCache *Cache[string, *TokenPriceInfo]
	metaGroup  singleflight.Group
	priceGroup singleflight.Group

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewResolver creates a Resolver. offchain and prices may be nil to skip
// those lookups. A zero PriceTTL uses DefaultPriceTTL.
func NewResolver(
	accounts AccountLookup,
	offchain OffChainLookup,
	prices PriceClient,
	cfg ResolverConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Resolver {
	if cfg.PriceTTL <= 0 {
		cfg.PriceTTL = DefaultPriceTTL
	}
	return &Resolver{
		accounts:   accounts,
		offchain:   offchain,
		prices:     prices,
		cfg:        cfg,
		metaCache:  NewCache[string, *TokenMetadata](cfg.Metadata),
		priceCache: NewCache[string, *TokenPriceInfo](CachePolicy{TTL: cfg.PriceTTL}),
		logger:     logger,
		metrics:    m,
	}
}

// Resolve returns metadata for mint. It never returns nil: when resolution
// fails, placeholder metadata is cached and returned instead.
func (r *Resolver) Resolve(ctx context.Context, mint string) *TokenMetadata {
	if meta, ok := r.metaCache.Get(mint); ok {
		r.recordCache("metadata", "hit")
		return meta
	}
	r.recordCache("metadata", "miss")

	v, _, _ := r.metaGroup.Do(mint, func() (interface{}, error) {
		if meta, ok := r.metaCache.Get(mint); ok {
			return meta, nil
		}

		// result is shared with other waiters
		meta, err := r.resolve(context.WithoutCancel(ctx), mint)
		if err != nil {
			r.logger.WarnContext(ctx, "failed to resolve token metadata, using fallback",
				"mint", mint,
				"error", err,
			)
			meta = FallbackMetadata(mint)
		}

		r.metaCache.Set(mint, meta)
		if r.metrics != nil {
			r.metrics.SetCacheEntries("metadata", r.metaCache.Len())
		}
		return meta, nil
	})
	return v.(*TokenMetadata)
}

func (r *Resolver) resolve(ctx context.Context, mint string) (*TokenMetadata, error) {
	r.logger.DebugContext(ctx, "fetching token metadata", "mint", mint)

	rpcCtx, cancel := withTimeout(ctx, r.cfg.RPCTimeout)
	info, err := r.accounts.GetMintInfo(rpcCtx, mint)
	cancel()
	if err != nil {
		return nil, err
	}

	meta := &TokenMetadata{
		Mint:      mint,
		Decimals:  6,
		CreatedAt: time.Now().UTC(),
	}
	if info != nil {
		meta.Decimals = info.Decimals
		meta.Supply = float64(info.Supply) / math.Pow10(int(info.Decimals))
		meta.MintAuthority = info.MintAuthority
		meta.FreezeAuthority = info.FreezeAuthority
		meta.IsMutable = info.MintAuthority != nil
	}

	if onChain := r.onChainMetadata(ctx, mint); onChain != nil {
		meta.Name = onChain.Name
		meta.Symbol = onChain.Symbol
		meta.URI = onChain.URI
		r.applyOffChain(ctx, meta)
	}

	if price := r.Price(ctx, mint); price != nil {
		meta.Price = &price.PriceUSD
		meta.PriceChange24h = price.PriceChange24h
		meta.MarketCap = price.MarketCap
		meta.Volume24h = price.Volume24h
	}

	if meta.Supply > 0 {
		holders := int64(math.Floor(meta.Supply / 1000))
		meta.HolderEstimate = &holders
	}

	short := shortMint(mint)
	if meta.Name == "" {
		meta.Name = "Token " + short
	}
	if meta.Symbol == "" {
		meta.Symbol = short
	}

	r.logger.InfoContext(ctx, "token metadata resolved",
		"mint", mint,
		"name", meta.Name,
		"symbol", meta.Symbol,
	)
	return meta, nil
}

// onChainMetadata reads the Metaplex account for mint. Failures are logged
// and yield nil.
func (r *Resolver) onChainMetadata(ctx context.Context, mint string) *OnChainMetadata {
	addr, err := MetadataAddress(mint)
	if err != nil {
		r.logger.DebugContext(ctx, "no metadata address", "mint", mint, "error", err)
		return nil
	}

	rpcCtx, cancel := withTimeout(ctx, r.cfg.RPCTimeout)
	data, err := r.accounts.GetAccountData(rpcCtx, addr.String())
	cancel()
	if err != nil {
		r.logger.DebugContext(ctx, "failed to fetch metadata account", "mint", mint, "error", err)
		return nil
	}
	if data == nil {
		return nil
	}

	parsed, err := ParseMetaplexMetadata(data)
	if err != nil {
		r.logger.DebugContext(ctx, "failed to parse metadata account", "mint", mint, "error", err)
		return nil
	}
	return parsed
}

func (r *Resolver) applyOffChain(ctx context.Context, meta *TokenMetadata) {
	if r.offchain == nil || !IsHTTPURI(meta.URI) {
		return
	}

	fetchCtx, cancel := withTimeout(ctx, r.cfg.FetchTimeout)
	doc, err := r.offchain.Fetch(fetchCtx, meta.URI)
	cancel()
	if r.metrics != nil {
		r.metrics.RecordExternalFetch("offchain_json", err)
	}
	if err != nil {
		r.logger.DebugContext(ctx, "failed to fetch json metadata", "uri", meta.URI, "error", err)
		return
	}

	if meta.Name == "" {
		meta.Name = doc.Name
	}
	if meta.Symbol == "" {
		meta.Symbol = doc.Symbol
	}
	meta.LogoURI = doc.Image
	meta.Description = doc.Description
	meta.Website = doc.ExternalURL
	meta.Twitter = doc.Twitter
	meta.Telegram = doc.Telegram
}

// Price returns a quote for mint, or nil when none is available. Quotes are
// cached for the price TTL; failures are not cached.
func (r *Resolver) Price(ctx context.Context, mint string) *TokenPriceInfo {
	if r.prices == nil {
		return nil
	}
	if info, ok := r.priceCache.Get(mint); ok {
		r.recordCache("price", "hit")
		return info
	}
	r.recordCache("price", "miss")

	v, _, _ := r.priceGroup.Do(mint, func() (interface{}, error) {
		if info, ok := r.priceCache.Get(mint); ok {
			return info, nil
		}

		priceCtx, cancel := withTimeout(context.WithoutCancel(ctx), r.cfg.PriceTimeout)
		defer cancel()

		info, err := r.prices.GetPrice(priceCtx, mint)
		if r.metrics != nil {
			r.metrics.RecordExternalFetch("price", err)
		}
		if err != nil {
			if errors.Is(err, ErrNoPrice) {
				r.logger.DebugContext(ctx, "no price for token", "mint", mint)
			} else {
				r.logger.WarnContext(ctx, "failed to fetch token price", "mint", mint, "error", err)
			}
			return (*TokenPriceInfo)(nil), nil
		}

		r.priceCache.Set(mint, info)
		if r.metrics != nil {
			r.metrics.SetCacheEntries("price", r.priceCache.Len())
		}
		return info, nil
	})
	return v.(*TokenPriceInfo)
}

// Cached returns the cached metadata for mint without resolving it.
func (r *Resolver) Cached(mint string) (*TokenMetadata, bool) {
	return r.metaCache.Get(mint)
}

func (r *Resolver) recordCache(cache, result string) {
	if r.metrics != nil {
		r.metrics.RecordCacheLookup(cache, result)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
