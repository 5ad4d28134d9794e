package metadata

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/brojonat/walletwatch/service/solana"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockAccounts implements AccountLookup for testing.
type mockAccounts struct {
	mu        sync.Mutex
	mints     map[string]*solana.MintInfo
	data      map[string][]byte
	mintErr   error
	mintCalls int
	block     chan struct{} // when set, GetMintInfo waits for it to close
}

func (m *mockAccounts) GetMintInfo(ctx context.Context, mint string) (*solana.MintInfo, error) {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mintCalls++
	if m.mintErr != nil {
		return nil, m.mintErr
	}
	return m.mints[mint], nil
}

func (m *mockAccounts) GetAccountData(ctx context.Context, address string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[address], nil
}

func (m *mockAccounts) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mintCalls
}

type stubOffChain struct {
	doc *OffChainMetadata
	err error
}

func (s *stubOffChain) Fetch(ctx context.Context, uri string) (*OffChainMetadata, error) {
	return s.doc, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestResolver(accounts AccountLookup, offchain OffChainLookup, prices PriceClient, cfg ResolverConfig) *Resolver {
	return NewResolver(accounts, offchain, prices, cfg, nil, testLogger())
}

func TestResolver_ResolveIsIdempotent(t *testing.T) {
	accounts := &mockAccounts{
		mints: map[string]*solana.MintInfo{
			testMint: {Mint: testMint, Decimals: 5, Supply: 100_000_000},
		},
	}
	prices := &stubPriceClient{info: &TokenPriceInfo{Mint: testMint, PriceUSD: 0.25}}
	r := newTestResolver(accounts, nil, prices, ResolverConfig{})

	first := r.Resolve(context.Background(), testMint)
	second := r.Resolve(context.Background(), testMint)

	assert.Same(t, first, second)
	assert.Equal(t, 1, accounts.calls())
	assert.Equal(t, int32(1), prices.calls.Load())

	assert.Equal(t, uint8(5), first.Decimals)
	assert.Equal(t, 1000.0, first.Supply)
	require.NotNil(t, first.Price)
	assert.Equal(t, 0.25, *first.Price)
	require.NotNil(t, first.HolderEstimate)
	assert.Equal(t, int64(1), *first.HolderEstimate)
	assert.False(t, first.IsMutable)
	assert.False(t, first.Fallback)
}

func TestResolver_OnChainAndOffChainMetadata(t *testing.T) {
	pda, err := MetadataAddress(testMint)
	require.NoError(t, err)

	accounts := &mockAccounts{
		mints: map[string]*solana.MintInfo{
			testMint: {Mint: testMint, Decimals: 6, MintAuthority: pointer.ToString("auth")},
		},
		data: map[string][]byte{
			pda.String(): encodeMetaplex("Bonk", "BONK", "https://arweave.net/bonk.json"),
		},
	}
	offchain := &stubOffChain{doc: &OffChainMetadata{
		Name:        "ignored",
		Image:       "https://img.example/bonk.png",
		Description: "dog coin",
		ExternalURL: "https://bonk.example",
		Twitter:     "https://x.com/bonk",
	}}
	r := newTestResolver(accounts, offchain, nil, ResolverConfig{})

	meta := r.Resolve(context.Background(), testMint)
	assert.Equal(t, "Bonk", meta.Name, "on-chain name wins over json")
	assert.Equal(t, "BONK", meta.Symbol)
	assert.Equal(t, "https://arweave.net/bonk.json", meta.URI)
	assert.Equal(t, "https://img.example/bonk.png", meta.LogoURI)
	assert.Equal(t, "dog coin", meta.Description)
	assert.Equal(t, "https://bonk.example", meta.Website)
	assert.Equal(t, "https://x.com/bonk", meta.Twitter)
	assert.True(t, meta.IsMutable)
	assert.Nil(t, meta.Price)
}

func TestResolver_OffChainFailureIsNonFatal(t *testing.T) {
	pda, err := MetadataAddress(testMint)
	require.NoError(t, err)

	accounts := &mockAccounts{
		data: map[string][]byte{pda.String(): encodeMetaplex("Bonk", "BONK", "https://arweave.net/x.json")},
	}
	r := newTestResolver(accounts, &stubOffChain{err: errors.New("timeout")}, nil, ResolverConfig{})

	meta := r.Resolve(context.Background(), testMint)
	assert.Equal(t, "Bonk", meta.Name)
	assert.Empty(t, meta.LogoURI)
	assert.False(t, meta.Fallback)
}

func TestResolver_MissingMintUsesDefaults(t *testing.T) {
	r := newTestResolver(&mockAccounts{}, nil, nil, ResolverConfig{})

	meta := r.Resolve(context.Background(), testMint)
	assert.Equal(t, uint8(6), meta.Decimals)
	assert.Equal(t, "Token DezXAZ8z", meta.Name)
	assert.Equal(t, "DezXAZ8z", meta.Symbol)
	assert.False(t, meta.Fallback)
}

func TestResolver_FailureCachesFallback(t *testing.T) {
	accounts := &mockAccounts{mintErr: errors.New("rpc down")}
	r := newTestResolver(accounts, nil, nil, ResolverConfig{})

	meta := r.Resolve(context.Background(), testMint)
	assert.True(t, meta.Fallback)
	assert.Equal(t, "DezXAZ8z", meta.Symbol)
	assert.Equal(t, "Token DezXAZ8z", meta.Name)
	assert.Equal(t, uint8(6), meta.Decimals)

	again := r.Resolve(context.Background(), testMint)
	assert.Same(t, meta, again)
	assert.Equal(t, 1, accounts.calls(), "fallback is cached")
}

func TestResolver_ConcurrentMissesShareOneLookup(t *testing.T) {
	accounts := &mockAccounts{block: make(chan struct{})}
	r := newTestResolver(accounts, nil, nil, ResolverConfig{})

	const n = 10
	results := make([]*TokenMetadata, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Resolve(context.Background(), testMint)
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(accounts.block)
	wg.Wait()

	assert.Equal(t, 1, accounts.calls())
	for _, res := range results {
		assert.Same(t, results[0], res)
	}
}

func TestResolver_MetadataCachePolicy(t *testing.T) {
	accounts := &mockAccounts{}
	r := newTestResolver(accounts, nil, nil, ResolverConfig{Metadata: CachePolicy{MaxEntries: 1}})

	other := "So11111111111111111111111111111111111111112"
	r.Resolve(context.Background(), testMint)
	r.Resolve(context.Background(), other)
	r.Resolve(context.Background(), testMint)

	assert.Equal(t, 3, accounts.calls(), "evicted entry is resolved again")
}

func TestResolver_PriceTTL(t *testing.T) {
	clock := newFakeClock()
	prices := &stubPriceClient{info: &TokenPriceInfo{Mint: testMint, PriceUSD: 1}}
	r := newTestResolver(&mockAccounts{}, nil, prices, ResolverConfig{PriceTTL: 5 * time.Minute})
	r.priceCache.now = clock.Now

	require.NotNil(t, r.Price(context.Background(), testMint))
	assert.Equal(t, int32(1), prices.calls.Load())

	clock.Advance(4*time.Minute + 59*time.Second)
	require.NotNil(t, r.Price(context.Background(), testMint))
	assert.Equal(t, int32(1), prices.calls.Load(), "cached within ttl")

	clock.Advance(time.Second)
	require.NotNil(t, r.Price(context.Background(), testMint))
	assert.Equal(t, int32(2), prices.calls.Load(), "refetched after ttl")
}

func TestResolver_PriceFailuresAreNotCached(t *testing.T) {
	prices := &stubPriceClient{err: ErrNoPrice}
	r := newTestResolver(&mockAccounts{}, nil, prices, ResolverConfig{})

	assert.Nil(t, r.Price(context.Background(), testMint))
	assert.Nil(t, r.Price(context.Background(), testMint))
	assert.Equal(t, int32(2), prices.calls.Load())
}

func TestResolver_NoPriceClient(t *testing.T) {
	r := newTestResolver(&mockAccounts{}, nil, nil, ResolverConfig{})
	assert.Nil(t, r.Price(context.Background(), testMint))
}

func TestSOLPriceOracle(t *testing.T) {
	t.Run("uses wrapped SOL quote", func(t *testing.T) {
		prices := &stubPriceClient{info: &TokenPriceInfo{PriceUSD: 142.5}}
		r := newTestResolver(&mockAccounts{}, nil, prices, ResolverConfig{})
		assert.Equal(t, 142.5, NewSOLPriceOracle(r, 0).SOLPriceUSD(context.Background()))
	})

	t.Run("falls back without quote", func(t *testing.T) {
		r := newTestResolver(&mockAccounts{}, nil, &stubPriceClient{err: ErrNoPrice}, ResolverConfig{})
		assert.Equal(t, DefaultSOLFallbackPrice, NewSOLPriceOracle(r, 0).SOLPriceUSD(context.Background()))
		assert.Equal(t, 99.0, NewSOLPriceOracle(r, 99).SOLPriceUSD(context.Background()))
	})

	t.Run("fixed price", func(t *testing.T) {
		assert.Equal(t, 200.0, FixedSOLPrice(200).SOLPriceUSD(context.Background()))
	})
}
