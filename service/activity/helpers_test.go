package activity

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/brojonat/walletwatch/service/metadata"
	"github.com/brojonat/walletwatch/service/solana"
	"github.com/shopspring/decimal"
)

const (
	testWallet = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	otherOwner = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	mintA      = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	mintB      = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	testSig    = "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func u8(v uint8) *uint8 { return &v }

func tb(idx int, mint, owner, amount string) solana.TokenBalance {
	return solana.TokenBalance{AccountIndex: idx, Mint: mint, Owner: owner, Amount: amount, Decimals: u8(6)}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// stubMetadata implements MetadataLookup and counts lookups per mint.
type stubMetadata struct {
	mu    sync.Mutex
	calls map[string]int
}

func (s *stubMetadata) Resolve(ctx context.Context, mint string) *metadata.TokenMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[mint]++
	return &metadata.TokenMetadata{Mint: mint, Symbol: "SYM" + mint[:3], Name: "Name " + mint[:3], Decimals: 6}
}

// stubLookup implements TransactionLookup.
type stubLookup struct {
	tx    *solana.LedgerTransaction
	err   error
	calls int
}

func (s *stubLookup) GetTransaction(ctx context.Context, signature string) (*solana.LedgerTransaction, error) {
	s.calls++
	return s.tx, s.err
}
