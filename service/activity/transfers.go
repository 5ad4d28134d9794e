package activity

import (
	"context"

	"github.com/brojonat/walletwatch/service/metadata"
	"github.com/brojonat/walletwatch/service/solana"
	"github.com/shopspring/decimal"
)

const defaultDecimals = 6

// MetadataLookup resolves token identity for a mint. *metadata.Resolver satisfies it.
type MetadataLookup interface {
	Resolve(ctx context.Context, mint string) *metadata.TokenMetadata
}

// tokenChange is a non-zero balance change of one wallet-owned token account.
type tokenChange struct {
	mint       string
	diff       decimal.Decimal
	decimals   uint8
	newAccount bool
}

// walletTokenChanges diffs pre and post token balances owned by wallet.
// Accounts present before the transaction come first, in pre-balance order,
// followed by accounts created by the transaction.
func walletTokenChanges(tx *solana.LedgerTransaction, wallet string) []tokenChange {
	postByIdx := make(map[int]solana.TokenBalance, len(tx.PostTokenBalances))
	for _, p := range tx.PostTokenBalances {
		postByIdx[p.AccountIndex] = p
	}

	var changes []tokenChange
	preIdx := make(map[int]struct{})
	for _, pre := range tx.PreTokenBalances {
		if pre.Owner != wallet {
			continue
		}
		// an existing account is never new, even without amount data
		preIdx[pre.AccountIndex] = struct{}{}
		if pre.Mint == "" || pre.Decimals == nil {
			continue
		}

		post, ok := postByIdx[pre.AccountIndex]
		if !ok || post.Mint != pre.Mint {
			continue
		}

		diff := parseAmount(post.Amount).Sub(parseAmount(pre.Amount))
		if diff.IsZero() {
			continue
		}
		changes = append(changes, tokenChange{
			mint:     pre.Mint,
			diff:     diff,
			decimals: pickDecimals(post.Decimals, pre.Decimals),
		})
	}

	for _, post := range tx.PostTokenBalances {
		if post.Mint == "" || post.Decimals == nil || post.Owner != wallet {
			continue
		}
		if _, ok := preIdx[post.AccountIndex]; ok {
			continue
		}
		amount := parseAmount(post.Amount)
		if !amount.IsPositive() {
			continue
		}
		changes = append(changes, tokenChange{
			mint:       post.Mint,
			diff:       amount,
			decimals:   pickDecimals(post.Decimals, nil),
			newAccount: true,
		})
	}

	return changes
}

// ExtractTransfers returns the wallet's token transfers in tx. Symbol and name
// come from lookup when it is non-nil.
func ExtractTransfers(ctx context.Context, tx *solana.LedgerTransaction, wallet string, lookup MetadataLookup) []TokenTransfer {
	changes := walletTokenChanges(tx, wallet)
	transfers := make([]TokenTransfer, 0, len(changes))
	for _, c := range changes {
		t := TokenTransfer{
			Mint:       c.mint,
			Amount:     c.diff.Abs(),
			Decimals:   c.decimals,
			Direction:  DirectionBuy,
			NewAccount: c.newAccount,
		}
		if c.diff.IsNegative() {
			t.Direction = DirectionSell
		}
		if lookup != nil {
			if meta := lookup.Resolve(ctx, c.mint); meta != nil {
				t.Symbol = meta.Symbol
				t.Name = meta.Name
			}
		}
		transfers = append(transfers, t)
	}
	return transfers
}

// parseAmount parses a UI amount string. Missing or malformed amounts are zero.
func parseAmount(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func pickDecimals(post, pre *uint8) uint8 {
	switch {
	case post != nil:
		return *post
	case pre != nil:
		return *pre
	default:
		return defaultDecimals
	}
}
