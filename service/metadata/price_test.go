package metadata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"

func TestJupiterPriceClient(t *testing.T) {
	t.Run("string price", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, testMint, r.URL.Query().Get("ids"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data":{"` + testMint + `":{"id":"` + testMint + `","price":"0.0000231"}}}`))
		}))
		defer srv.Close()

		info, err := NewJupiterPriceClient(srv.URL, srv.Client()).GetPrice(context.Background(), testMint)
		require.NoError(t, err)
		assert.InDelta(t, 0.0000231, info.PriceUSD, 1e-12)
		assert.Equal(t, "jupiter", info.Source)
		assert.Equal(t, testMint, info.Mint)
	})

	t.Run("numeric price", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":{"` + testMint + `":{"price":1.5}}}`))
		}))
		defer srv.Close()

		info, err := NewJupiterPriceClient(srv.URL, srv.Client()).GetPrice(context.Background(), testMint)
		require.NoError(t, err)
		assert.Equal(t, 1.5, info.PriceUSD)
	})

	t.Run("missing mint", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":{"` + testMint + `":null}}`))
		}))
		defer srv.Close()

		_, err := NewJupiterPriceClient(srv.URL, srv.Client()).GetPrice(context.Background(), testMint)
		assert.True(t, errors.Is(err, ErrNoPrice))
	})
}

func TestDexScreenerPriceClient(t *testing.T) {
	t.Run("picks most liquid pair", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/latest/dex/tokens/"+testMint, r.URL.Path)
			_, _ = w.Write([]byte(`{"pairs":[
				{"priceUsd":"1.00","liquidity":{"usd":100}},
				{"priceUsd":"1.10","liquidity":{"usd":5000},"priceChange":{"h24":-3.5},"volume":{"h24":12000},"fdv":900000},
				{"priceUsd":"0","liquidity":{"usd":999999}}
			]}`))
		}))
		defer srv.Close()

		info, err := NewDexScreenerPriceClient(srv.URL, srv.Client()).GetPrice(context.Background(), testMint)
		require.NoError(t, err)
		assert.Equal(t, 1.10, info.PriceUSD)
		require.NotNil(t, info.PriceChange24h)
		assert.Equal(t, -3.5, *info.PriceChange24h)
		require.NotNil(t, info.Volume24h)
		assert.Equal(t, 12000.0, *info.Volume24h)
		require.NotNil(t, info.MarketCap, "fdv is used when market cap is absent")
		assert.Equal(t, 900000.0, *info.MarketCap)
		assert.Equal(t, "dexscreener", info.Source)
	})

	t.Run("no pairs", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"pairs":null}`))
		}))
		defer srv.Close()

		_, err := NewDexScreenerPriceClient(srv.URL, srv.Client()).GetPrice(context.Background(), testMint)
		assert.True(t, errors.Is(err, ErrNoPrice))
	})
}

type stubPriceClient struct {
	info  *TokenPriceInfo
	err   error
	calls atomic.Int32
}

func (s *stubPriceClient) GetPrice(ctx context.Context, mint string) (*TokenPriceInfo, error) {
	s.calls.Add(1)
	return s.info, s.err
}

func TestChainPriceClient(t *testing.T) {
	t.Run("falls through to next client", func(t *testing.T) {
		first := &stubPriceClient{err: ErrNoPrice}
		second := &stubPriceClient{info: &TokenPriceInfo{PriceUSD: 2}}
		info, err := ChainPriceClient{first, second}.GetPrice(context.Background(), testMint)
		require.NoError(t, err)
		assert.Equal(t, 2.0, info.PriceUSD)
		assert.Equal(t, int32(1), first.calls.Load())
	})

	t.Run("stops at first quote", func(t *testing.T) {
		first := &stubPriceClient{info: &TokenPriceInfo{PriceUSD: 1}}
		second := &stubPriceClient{info: &TokenPriceInfo{PriceUSD: 2}}
		info, err := ChainPriceClient{first, second}.GetPrice(context.Background(), testMint)
		require.NoError(t, err)
		assert.Equal(t, 1.0, info.PriceUSD)
		assert.Equal(t, int32(0), second.calls.Load())
	})

	t.Run("all without quote", func(t *testing.T) {
		_, err := ChainPriceClient{&stubPriceClient{err: ErrNoPrice}}.GetPrice(context.Background(), testMint)
		assert.True(t, errors.Is(err, ErrNoPrice))
	})

	t.Run("joins real errors", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := ChainPriceClient{&stubPriceClient{err: boom}, &stubPriceClient{err: ErrNoPrice}}.GetPrice(context.Background(), testMint)
		require.Error(t, err)
		assert.True(t, errors.Is(err, boom))
		assert.False(t, errors.Is(err, ErrNoPrice))
	})
}

func TestJSONClient_Retry(t *testing.T) {
	t.Run("retries server errors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		defer srv.Close()

		c := newJSONClient(srv.Client())
		c.backoff = time.Millisecond
		var out struct {
			OK bool `json:"ok"`
		}
		require.NoError(t, c.getJSON(context.Background(), srv.URL, &out))
		assert.True(t, out.OK)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			http.Error(w, "nope", http.StatusNotFound)
		}))
		defer srv.Close()

		c := newJSONClient(srv.Client())
		c.backoff = time.Millisecond
		var out map[string]any
		err := c.getJSON(context.Background(), srv.URL, &out)
		require.Error(t, err)

		var statusErr *httpStatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
		assert.Equal(t, int32(1), calls.Load())
	})
}
