package solana

import (
	"context"
	"net/url"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// rpcAdapter backs RPCClient with a solana-go rpc.Client. Reads default to
// confirmed commitment when the caller leaves it unset.
type rpcAdapter struct {
	rpc        *rpc.Client
	commitment rpc.CommitmentType
}

// NewRPCClient returns an RPCClient for rpcURL. Keyed endpoints carry the key
// in the URL, e.g. https://mainnet.helius-rpc.com/?api-key=KEY.
func NewRPCClient(rpcURL string) RPCClient {
	return &rpcAdapter{
		rpc:        rpc.New(rpcURL),
		commitment: rpc.CommitmentConfirmed,
	}
}

// EndpointLabel reduces an RPC URL to its host for metric labels and logs,
// dropping paths and query strings that may hold API keys.
func EndpointLabel(rpcURL string) string {
	u, err := url.Parse(rpcURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

func (a *rpcAdapter) GetSignaturesForAddress(ctx context.Context, address solana.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error) {
	if opts == nil {
		opts = &rpc.GetSignaturesForAddressOpts{}
	}
	if opts.Commitment == "" {
		opts.Commitment = a.commitment
	}
	return a.rpc.GetSignaturesForAddressWithOpts(ctx, address, opts)
}

func (a *rpcAdapter) GetTransaction(ctx context.Context, signature solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error) {
	if opts == nil {
		opts = &rpc.GetTransactionOpts{}
	}
	if opts.Commitment == "" {
		opts.Commitment = a.commitment
	}
	return a.rpc.GetTransaction(ctx, signature, opts)
}

func (a *rpcAdapter) GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	return a.rpc.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: a.commitment,
	})
}
