package solana

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
)

// UpdateEvent is a raw notification produced by an update source.
// Exactly one of Ping or Account is meaningful; an event with neither is empty.
type UpdateEvent struct {
	Ping      bool
	Account   *AccountPayload
	CreatedAt time.Time
}

// AccountPayload is the account snapshot carried by an UpdateEvent.
// Lamports is a pointer so that a missing balance can be told apart from zero.
type AccountPayload struct {
	Address    string
	Lamports   *uint64
	Owner      string
	Executable bool
	RentEpoch  uint64
	Slot       uint64
	Signature  []byte // raw signature bytes, nil when the update carries none
}

// TokenBalance is one pre- or post-transaction SPL token balance snapshot.
type TokenBalance struct {
	AccountIndex int
	Mint         string
	Owner        string
	Amount       string // UI amount as a decimal string, empty when absent
	Decimals     *uint8
}

// LedgerTransaction is the typed view of a confirmed transaction that the
// decode pipeline works on. It is validated once when built from an RPC result.
type LedgerTransaction struct {
	Signature         string
	Slot              uint64
	BlockTime         *time.Time
	Success           bool
	Fee               uint64
	PreBalances       []uint64
	PostBalances      []uint64
	StaticAccountKeys []string
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
	LogMessages       []string
}

// AccountIndex returns the position of address in the static account keys, or -1.
func (t *LedgerTransaction) AccountIndex(address string) int {
	for i, k := range t.StaticAccountKeys {
		if k == address {
			return i
		}
	}
	return -1
}

// MintInfo is the decoded SPL token mint account.
type MintInfo struct {
	Mint            string
	Decimals        uint8
	Supply          uint64
	MintAuthority   *string
	FreezeAuthority *string
}

// ledgerTransactionFromResult validates an RPC getTransaction result and
// converts it to a LedgerTransaction. A nil result yields (nil, nil).
func ledgerTransactionFromResult(signature string, res *rpc.GetTransactionResult) (*LedgerTransaction, error) {
	if res == nil {
		return nil, nil
	}
	if res.Meta == nil {
		return nil, fmt.Errorf("transaction %s: missing meta", signature)
	}
	if res.Transaction == nil {
		return nil, fmt.Errorf("transaction %s: missing transaction body", signature)
	}

	tx, err := res.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("transaction %s: failed to decode: %w", signature, err)
	}

	meta := res.Meta
	if len(meta.PreBalances) != len(meta.PostBalances) {
		return nil, fmt.Errorf("transaction %s: pre/post balance length mismatch (%d != %d)",
			signature, len(meta.PreBalances), len(meta.PostBalances))
	}

	keys := make([]string, len(tx.Message.AccountKeys))
	for i, k := range tx.Message.AccountKeys {
		keys[i] = k.String()
	}

	out := &LedgerTransaction{
		Signature:         signature,
		Slot:              res.Slot,
		Success:           meta.Err == nil,
		Fee:               meta.Fee,
		PreBalances:       meta.PreBalances,
		PostBalances:      meta.PostBalances,
		StaticAccountKeys: keys,
		PreTokenBalances:  tokenBalancesFromRPC(meta.PreTokenBalances),
		PostTokenBalances: tokenBalancesFromRPC(meta.PostTokenBalances),
		LogMessages:       meta.LogMessages,
	}
	if res.BlockTime != nil {
		bt := res.BlockTime.Time().UTC()
		out.BlockTime = &bt
	}

	return out, nil
}

func tokenBalancesFromRPC(in []rpc.TokenBalance) []TokenBalance {
	out := make([]TokenBalance, 0, len(in))
	for _, b := range in {
		tb := TokenBalance{
			AccountIndex: int(b.AccountIndex),
			Mint:         b.Mint.String(),
		}
		if b.Owner != nil {
			tb.Owner = b.Owner.String()
		}
		if b.UiTokenAmount != nil {
			tb.Amount = b.UiTokenAmount.UiAmountString
			d := b.UiTokenAmount.Decimals
			tb.Decimals = &d
		}
		out = append(out, tb)
	}
	return out
}
