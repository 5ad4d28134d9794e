package enrich

import (
	"context"
	"log/slog"

	"github.com/brojonat/walletwatch/service/activity"
	"github.com/brojonat/walletwatch/service/metadata"
	"github.com/brojonat/walletwatch/service/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// isoLayout matches JavaScript's Date.toISOString.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// defaultFeeSOL is the fee estimate used when the transaction fee is unknown.
const defaultFeeSOL = 0.000005

// MetadataResolver resolves token identity and current prices.
// *metadata.Resolver satisfies it.
type MetadataResolver interface {
	Resolve(ctx context.Context, mint string) *metadata.TokenMetadata
	Price(ctx context.Context, mint string) *metadata.TokenPriceInfo
}

// SOLPricer returns the SOL/USD rate used for SOL equivalents.
type SOLPricer interface {
	SOLPriceUSD(ctx context.Context) float64
}

// Enricher builds EnrichedRecords.
type Enricher struct {
	resolver  MetadataResolver
	sol       SOLPricer
	positions *PositionTracker
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewEnricher creates an Enricher. A nil sol uses the fallback SOL price;
// a nil positions gets a fresh tracker.
func NewEnricher(resolver MetadataResolver, sol SOLPricer, positions *PositionTracker, m *metrics.Metrics, logger *slog.Logger) *Enricher {
	if sol == nil {
		sol = metadata.FixedSOLPrice(metadata.DefaultSOLFallbackPrice)
	}
	if positions == nil {
		positions = NewPositionTracker()
	}
	return &Enricher{
		resolver:  resolver,
		sol:       sol,
		positions: positions,
		logger:    logger,
		metrics:   m,
	}
}

// Enrich builds the record for wallet. update is the account notification
// that triggered the lookup and may be nil.
func (e *Enricher) Enrich(ctx context.Context, wallet string, rec *activity.TransactionRecord, update *activity.AccountUpdate) *EnrichedRecord {
	solUSD := e.sol.SOLPriceUSD(ctx)

	tokenTxs := make([]TokenTransaction, 0, len(rec.Transfers))
	similar := 0
	counted := make(map[string]bool)
	for _, tr := range rec.Transfers {
		meta := e.resolver.Resolve(ctx, tr.Mint)
		amount := tr.Amount.InexactFloat64()
		price := e.priceOf(ctx, tr.Mint, meta)

		prior := e.positions.Touch(wallet, tr.Mint, rec.Timestamp)
		if !counted[tr.Mint] {
			similar += prior
			counted[tr.Mint] = true
		}

		tx := TokenTransaction{
			Action:          tr.Direction,
			TokenMetadata:   meta,
			Amount:          amount,
			AmountFormatted: FormatTokenAmount(amount, meta.Decimals),
			IsNewPosition:   prior == 0,
		}
		usd := amount * price
		if usd > 0 {
			tx.USDValue = &usd
			if solUSD > 0 {
				solEq := usd / solUSD
				tx.SOLEquivalent = &solEq
			}
		}
		if price > 0 {
			tx.PricePerToken = &price
		}
		tokenTxs = append(tokenTxs, tx)
	}

	swap := e.swapActivity(ctx, rec.Activity)

	totalUSD := 0.0
	firstTime := false
	for _, tx := range tokenTxs {
		if tx.USDValue != nil {
			totalUSD += *tx.USDValue
		}
		firstTime = firstTime || tx.IsNewPosition
	}

	txType := DetermineTransactionType(len(tokenTxs), swap, rec.SOLDelta)
	risk := CalculateRiskLevel(tokenTxs, totalUSD)

	gas := 0.0
	if rec.SOLDelta != 0 {
		gas = defaultFeeSOL
		if rec.FeeLamps > 0 {
			gas = float64(rec.FeeLamps) / 1e9
		}
	}

	ts := rec.Timestamp.UTC()
	out := &EnrichedRecord{
		TransactionID: uuid.New().String(),
		Signature:     rec.Signature,
		Slot:          rec.Slot,
		Timestamp:     ts.Unix(),
		TimestampISO:  ts.Format(isoLayout),
		Success:       rec.Success,
		Wallet: WalletActivity{
			WalletAddress:        wallet,
			SOLChange:            rec.SOLDelta,
			Timestamp:            ts.Unix(),
			TimestampISO:         ts.Format(isoLayout),
			TransactionSignature: rec.Signature,
			TransactionSuccess:   rec.Success,
		},
		TokenTransactions: tokenTxs,
		SwapActivity:      swap,
		Summary: Summary{
			TotalTokensInvolved: len(tokenTxs),
			TotalUSDValue:       totalUSD,
			NetSOLChange:        rec.SOLDelta,
			TransactionType:     txType,
			RiskLevel:           risk,
			GasFeesSOL:          gas,
		},
		Context: Context{
			DetectedPatterns:         DetectPatterns(tokenTxs, rec.SOLDelta),
			SimilarTransactionsCount: similar,
			IsFirstTimeToken:         firstTime,
		},
	}

	if update != nil {
		bal := update.SOL
		out.Wallet.CurrentBalanceSOL = &bal
		if update.Slot > 0 {
			slot := update.Slot
			out.Wallet.Slot = &slot
		}
	}
	if out.Wallet.Slot == nil && rec.Slot > 0 {
		slot := rec.Slot
		out.Wallet.Slot = &slot
	}

	if e.metrics != nil {
		e.metrics.RecordEnrichedRecord(string(txType), string(risk))
	}
	e.logger.DebugContext(ctx, "record enriched",
		"signature", rec.Signature,
		"wallet", wallet,
		"transaction_type", txType,
		"risk_level", risk,
		"total_usd", totalUSD,
	)
	return out
}

// priceOf prefers a fresh quote and falls back to the price captured with
// the metadata.
func (e *Enricher) priceOf(ctx context.Context, mint string, meta *metadata.TokenMetadata) float64 {
	if info := e.resolver.Price(ctx, mint); info != nil && info.PriceUSD > 0 {
		return info.PriceUSD
	}
	return meta.PriceUSD()
}

func (e *Enricher) swapActivity(ctx context.Context, act *activity.DeFiActivity) *SwapActivity {
	if act == nil {
		return nil
	}

	swap := &SwapActivity{Protocol: act.Protocol}
	switch act.Type {
	case activity.TypeSwap:
		swap.Type = TokenSwap
	case activity.TypeBuy:
		swap.Type = SOLToToken
	default:
		swap.Type = TokenToSOL
	}

	if act.FromMint != "" {
		swap.FromToken = e.resolver.Resolve(ctx, act.FromMint)
		swap.FromAmount, swap.FromUSDValue = e.valued(ctx, act.FromMint, swap.FromToken, act.FromAmount)
	}
	if act.ToMint != "" {
		swap.ToToken = e.resolver.Resolve(ctx, act.ToMint)
		swap.ToAmount, swap.ToUSDValue = e.valued(ctx, act.ToMint, swap.ToToken, act.ToAmount)
	}
	return swap
}

// valued returns the absolute amount and its USD value. Both are nil when
// the amount is missing or zero.
func (e *Enricher) valued(ctx context.Context, mint string, meta *metadata.TokenMetadata, amount *decimal.Decimal) (*float64, *float64) {
	if amount == nil || amount.IsZero() {
		return nil, nil
	}
	abs := amount.Abs().InexactFloat64()
	usd := abs * e.priceOf(ctx, mint, meta)
	return &abs, &usd
}
