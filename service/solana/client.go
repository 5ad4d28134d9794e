package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/brojonat/walletwatch/service/metrics"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
)

// ErrInvalidSignature is returned when a signature string cannot be decoded.
var ErrInvalidSignature = errors.New("invalid signature")

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetSignaturesForAddress(
		ctx context.Context,
		address solana.PublicKey,
		opts *rpc.GetSignaturesForAddressOpts,
	) ([]*rpc.TransactionSignature, error)

	GetTransaction(
		ctx context.Context,
		signature solana.Signature,
		opts *rpc.GetTransactionOpts,
	) (*rpc.GetTransactionResult, error)

	GetAccountInfo(
		ctx context.Context,
		account solana.PublicKey,
	) (*rpc.GetAccountInfoResult, error)
}

// Client is the ledger lookup used by the pipeline. It wraps the RPC client
// with retries, typed results and metrics.
type Client struct {
	rpc         RPCClient
	logger      *slog.Logger
	metrics     *metrics.Metrics
	endpoint    string // RPC endpoint identifier for metrics (e.g., "mainnet", "helius")
	maxAttempts int
	backoffBase time.Duration
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling.
// If metrics is nil, no metrics will be recorded.
func NewClient(rpcClient RPCClient, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	return &Client{
		rpc:         rpcClient,
		logger:      logger,
		metrics:     m,
		endpoint:    endpoint,
		maxAttempts: 3,
		backoffBase: time.Second,
	}
}

// GetTransaction fetches a confirmed transaction by base58 signature.
// A transaction the node does not know about yields (nil, nil).
func (c *Client) GetTransaction(ctx context.Context, signature string) (*LedgerTransaction, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	opts := &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: pointer.ToUint64(0),
	}

	var result *rpc.GetTransactionResult
	err = c.withRetry(ctx, "GetTransaction", func(ctx context.Context) error {
		var callErr error
		result, callErr = c.rpc.GetTransaction(ctx, sig, opts)
		return callErr
	})
	if errors.Is(err, rpc.ErrNotFound) {
		c.logger.DebugContext(ctx, "transaction not found", "signature", signature)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", signature, err)
	}

	return ledgerTransactionFromResult(signature, result)
}

// GetAccountData returns the raw data of an account, or (nil, nil) if the
// account does not exist.
func (c *Client) GetAccountData(ctx context.Context, address string) ([]byte, error) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", address, err)
	}

	var result *rpc.GetAccountInfoResult
	err = c.withRetry(ctx, "GetAccountInfo", func(ctx context.Context) error {
		var callErr error
		result, callErr = c.rpc.GetAccountInfo(ctx, pk)
		return callErr
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", address, err)
	}
	if result == nil || result.Value == nil || result.Value.Data == nil {
		return nil, nil
	}

	return result.Value.Data.GetBinary(), nil
}

// GetMintInfo fetches and decodes an SPL token mint account.
// It returns (nil, nil) when the mint account does not exist.
func (c *Client) GetMintInfo(ctx context.Context, mint string) (*MintInfo, error) {
	data, err := c.GetAccountData(ctx, mint)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	return DecodeMint(mint, data)
}

// DecodeMint decodes SPL token mint account data.
func DecodeMint(mint string, data []byte) (*MintInfo, error) {
	var m token.Mint
	if err := bin.NewBinDecoder(data).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode mint %s: %w", mint, err)
	}

	info := &MintInfo{
		Mint:     mint,
		Decimals: m.Decimals,
		Supply:   m.Supply,
	}
	if m.MintAuthority != nil {
		info.MintAuthority = pointer.ToString(m.MintAuthority.String())
	}
	if m.FreezeAuthority != nil {
		info.FreezeAuthority = pointer.ToString(m.FreezeAuthority.String())
	}
	return info, nil
}

// LatestSignature returns the most recent signature that touched address.
// The boolean is false when the address has no history.
func (c *Client) LatestSignature(ctx context.Context, address string) (solana.Signature, bool, error) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return solana.Signature{}, false, fmt.Errorf("invalid address %q: %w", address, err)
	}

	opts := &rpc.GetSignaturesForAddressOpts{
		Limit:      pointer.ToInt(1),
		Commitment: rpc.CommitmentConfirmed,
	}

	var sigs []*rpc.TransactionSignature
	err = c.withRetry(ctx, "GetSignaturesForAddress", func(ctx context.Context) error {
		var callErr error
		sigs, callErr = c.rpc.GetSignaturesForAddress(ctx, pk, opts)
		return callErr
	})
	if err != nil {
		return solana.Signature{}, false, fmt.Errorf("failed to get signatures for %s: %w", address, err)
	}
	if len(sigs) == 0 || sigs[0] == nil {
		return solana.Signature{}, false, nil
	}

	return sigs[0].Signature, true, nil
}

// withRetry runs call up to maxAttempts times with exponential backoff.
// Rate limited calls (429) back off twice as long. Not-found and context
// errors are returned immediately.
func (c *Client) withRetry(ctx context.Context, method string, call func(context.Context) error) error {
	var err error
	for attempt := range c.maxAttempts {
		start := time.Now()
		err = call(ctx)
		duration := time.Since(start).Seconds()

		status := "success"
		switch {
		case errors.Is(err, rpc.ErrNotFound):
			status = "not_found"
		case err != nil:
			status = "error"
		}
		if c.metrics != nil {
			c.metrics.RecordRPCCall(method, status, c.endpoint, duration)
		}

		if err == nil || errors.Is(err, rpc.ErrNotFound) || ctx.Err() != nil {
			return err
		}
		if attempt == c.maxAttempts-1 {
			break
		}

		backoff := c.backoffBase << uint(attempt) // 1s, 2s, ...
		reason := "timeout_or_error"
		if strings.Contains(err.Error(), "429") {
			backoff = c.backoffBase << uint(attempt+1) // 2s, 4s, ...
			reason = "rate_limit"
			if c.metrics != nil {
				c.metrics.RecordRateLimitHit(c.endpoint)
			}
			c.logger.WarnContext(ctx, "rate limited, sleeping before retry",
				"method", method,
				"attempt", attempt+1,
				"backoff_seconds", backoff.Seconds(),
			)
		} else {
			c.logger.WarnContext(ctx, "rpc call failed on attempt",
				"method", method,
				"attempt", attempt+1,
				"error", err,
				"backoff_seconds", backoff.Seconds(),
			)
		}
		if c.metrics != nil {
			c.metrics.RecordRPCRetry(method, reason)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}
