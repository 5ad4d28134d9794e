// Package enrich joins decoded transactions with token metadata and prices
// into EnrichedRecords with risk, type and pattern analytics.
package enrich

import (
	"github.com/brojonat/walletwatch/service/activity"
	"github.com/brojonat/walletwatch/service/metadata"
)

// TransactionType is the aggregate classification of a record.
type TransactionType string

const (
	SimpleTransfer  TransactionType = "SIMPLE_TRANSFER"
	TokenTrade      TransactionType = "TOKEN_TRADE"
	ComplexSwap     TransactionType = "COMPLEX_SWAP"
	DeFiInteraction TransactionType = "DEFI_INTERACTION"
)

// RiskLevel is the bucketed risk score of a record.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// SwapKind is the display kind of a DeFi activity.
type SwapKind string

const (
	TokenSwap  SwapKind = "TOKEN_SWAP"
	SOLToToken SwapKind = "SOL_TO_TOKEN"
	TokenToSOL SwapKind = "TOKEN_TO_SOL"
)

// Pattern names reported in Context.DetectedPatterns.
const (
	PatternMultiTokenTrade = "MULTI_TOKEN_TRADE"
	PatternNewPosition     = "NEW_POSITION"
	PatternLargeSOLSpend   = "LARGE_SOL_SPEND"
	PatternBuySellMix      = "BUY_SELL_MIX"
	PatternAccumulation    = "ACCUMULATION"
	PatternDistribution    = "DISTRIBUTION"
)

// TokenTransaction is one token transfer with its metadata and valuation.
type TokenTransaction struct {
	Action          activity.Direction      `json:"action"`
	TokenMetadata   *metadata.TokenMetadata `json:"token_metadata"`
	Amount          float64                 `json:"amount"`
	AmountFormatted string                  `json:"amount_formatted"`
	USDValue        *float64                `json:"usd_value,omitempty"`
	SOLEquivalent   *float64                `json:"sol_equivalent,omitempty"`
	PricePerToken   *float64                `json:"price_per_token,omitempty"`
	IsNewPosition   bool                    `json:"is_new_position"`
}

// SwapActivity is the enriched DeFi activity of a record.
type SwapActivity struct {
	Type         SwapKind                `json:"type"`
	Protocol     string                  `json:"protocol"`
	FromToken    *metadata.TokenMetadata `json:"from_token,omitempty"`
	ToToken      *metadata.TokenMetadata `json:"to_token,omitempty"`
	FromAmount   *float64                `json:"from_amount,omitempty"`
	ToAmount     *float64                `json:"to_amount,omitempty"`
	FromUSDValue *float64                `json:"from_usd_value,omitempty"`
	ToUSDValue   *float64                `json:"to_usd_value,omitempty"`
}

// WalletActivity is the wallet snapshot attached to a record.
type WalletActivity struct {
	WalletAddress        string   `json:"wallet_address"`
	CurrentBalanceSOL    *float64 `json:"current_balance_sol,omitempty"`
	SOLChange            float64  `json:"sol_change"`
	Timestamp            int64    `json:"timestamp"`
	TimestampISO         string   `json:"timestamp_iso"`
	TransactionSignature string   `json:"transaction_signature"`
	TransactionSuccess   bool     `json:"transaction_success"`
	Slot                 *uint64  `json:"slot,omitempty"`
}

// Summary aggregates a record.
type Summary struct {
	TotalTokensInvolved int             `json:"total_tokens_involved"`
	TotalUSDValue       float64         `json:"total_usd_value"`
	NetSOLChange        float64         `json:"net_sol_change"`
	TransactionType     TransactionType `json:"transaction_type"`
	RiskLevel           RiskLevel       `json:"risk_level"`
	GasFeesSOL          float64         `json:"gas_fees_sol"`
}

// Context carries behavioral analytics for a record.
type Context struct {
	DetectedPatterns         []string `json:"detected_patterns"`
	SimilarTransactionsCount int      `json:"similar_transactions_count"`
	IsFirstTimeToken         bool     `json:"is_first_time_token"`
}

// EnrichedRecord is the structured output for one wallet transaction.
type EnrichedRecord struct {
	TransactionID     string             `json:"transaction_id"`
	Signature         string             `json:"signature"`
	Slot              uint64             `json:"slot,omitempty"`
	Timestamp         int64              `json:"timestamp"`
	TimestampISO      string             `json:"timestamp_iso"`
	Success           bool               `json:"success"`
	Wallet            WalletActivity     `json:"wallet"`
	TokenTransactions []TokenTransaction `json:"token_transactions"`
	SwapActivity      *SwapActivity      `json:"swap_activity"`
	Summary           Summary            `json:"summary"`
	Context           Context            `json:"context"`
}
