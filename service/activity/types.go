// Package activity turns raw account updates into decoded wallet activity:
// balance-change detection, transaction lookup, token transfer diffing and
// heuristic DeFi classification.
package activity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of a token transfer from the wallet's perspective.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Type is the kind of DeFi activity inferred for a transaction.
type Type string

const (
	TypeSwap Type = "SWAP"
	TypeBuy  Type = "BUY"
	TypeSell Type = "SELL"
)

// UnknownProtocol labels activity whose invoking program is not recognized.
const UnknownProtocol = "Unknown"

// AccountUpdate is a validated account notification.
type AccountUpdate struct {
	Address    string         `json:"address"`
	Lamports   uint64         `json:"lamports"`
	SOL        float64        `json:"sol"`
	Owner      string         `json:"owner"`
	Executable bool           `json:"executable"`
	RentEpoch  uint64         `json:"rent_epoch"`
	Slot       uint64         `json:"slot,omitempty"`
	Signature  string         `json:"signature,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Change     *BalanceChange `json:"balance_change,omitempty"`
}

// HasSignature reports whether the update should go through transaction decoding.
func (u *AccountUpdate) HasSignature() bool {
	return u.Signature != ""
}

// BalanceChange is the lamport difference between two consecutive updates.
type BalanceChange struct {
	Previous uint64  `json:"previous"`
	Current  uint64  `json:"current"`
	DeltaSOL float64 `json:"delta_sol"`
}

// TokenTransfer is a non-zero change of one mint held by the wallet.
type TokenTransfer struct {
	Mint       string          `json:"mint"`
	Symbol     string          `json:"symbol"`
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	Decimals   uint8           `json:"decimals"`
	Direction  Direction       `json:"direction"`
	NewAccount bool            `json:"new_account,omitempty"`
}

// DeFiActivity is the single best-guess activity of a transaction.
// FromAmount is always non-negative; ToAmount keeps the sign of the diff.
type DeFiActivity struct {
	Type       Type             `json:"type"`
	Protocol   string           `json:"protocol"`
	FromMint   string           `json:"from_mint,omitempty"`
	ToMint     string           `json:"to_mint,omitempty"`
	FromAmount *decimal.Decimal `json:"from_amount,omitempty"`
	ToAmount   *decimal.Decimal `json:"to_amount,omitempty"`
}

// TransactionRecord is the decoded view of one transaction for one wallet.
type TransactionRecord struct {
	Signature string          `json:"signature"`
	Slot      uint64          `json:"slot"`
	Success   bool            `json:"success"`
	SOLDelta  float64         `json:"sol_delta"`
	FeeLamps  uint64          `json:"fee_lamports"`
	Timestamp time.Time       `json:"timestamp"`
	Transfers []TokenTransfer `json:"transfers"`
	Activity  *DeFiActivity   `json:"activity,omitempty"`
	Programs  []string        `json:"programs,omitempty"`
}
