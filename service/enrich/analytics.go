package enrich

import (
	"fmt"

	"github.com/brojonat/walletwatch/service/activity"
)

// RiskScore adds up the risk factors of a record.
func RiskScore(totalUSD float64, unknownPriced, tokenTxs int) int {
	score := 0
	switch {
	case totalUSD > 10000:
		score += 3
	case totalUSD > 1000:
		score += 2
	case totalUSD > 100:
		score++
	}
	score += unknownPriced
	if tokenTxs > 2 {
		score++
	}
	return score
}

// RiskLevelFor buckets a risk score.
func RiskLevelFor(score int) RiskLevel {
	switch {
	case score >= 4:
		return RiskHigh
	case score >= 2:
		return RiskMedium
	default:
		return RiskLow
	}
}

// CalculateRiskLevel scores token transactions worth totalUSD in total.
// A transaction counts as unknown-priced when it has no positive price.
func CalculateRiskLevel(txs []TokenTransaction, totalUSD float64) RiskLevel {
	unknown := 0
	for _, tx := range txs {
		if tx.PricePerToken == nil || *tx.PricePerToken == 0 {
			unknown++
		}
	}
	return RiskLevelFor(RiskScore(totalUSD, unknown, len(txs)))
}

// DetermineTransactionType classifies a record. A token swap is a complex
// swap; a buy or sell with token movement is a token trade.
func DetermineTransactionType(tokenTxs int, swap *SwapActivity, solDelta float64) TransactionType {
	if swap != nil {
		switch {
		case swap.Type == TokenSwap:
			return ComplexSwap
		case tokenTxs > 0:
			return TokenTrade
		default:
			return DeFiInteraction
		}
	}
	if tokenTxs > 0 {
		return TokenTrade
	}
	if solDelta != 0 {
		return SimpleTransfer
	}
	return DeFiInteraction
}

// DetectPatterns returns every applicable trading pattern.
func DetectPatterns(txs []TokenTransaction, solDelta float64) []string {
	patterns := []string{}
	if len(txs) > 1 {
		patterns = append(patterns, PatternMultiTokenTrade)
	}

	buys, sells := 0, 0
	newPosition := false
	for _, tx := range txs {
		if tx.IsNewPosition {
			newPosition = true
		}
		switch tx.Action {
		case activity.DirectionBuy:
			buys++
		case activity.DirectionSell:
			sells++
		}
	}
	if newPosition {
		patterns = append(patterns, PatternNewPosition)
	}
	if solDelta < -1 {
		patterns = append(patterns, PatternLargeSOLSpend)
	}

	switch {
	case buys > 0 && sells > 0:
		patterns = append(patterns, PatternBuySellMix)
	case buys > sells:
		patterns = append(patterns, PatternAccumulation)
	case sells > buys:
		patterns = append(patterns, PatternDistribution)
	}
	return patterns
}

// FormatTokenAmount renders large amounts with a B/M/K suffix and small ones
// with min(4, decimals) fractional digits.
func FormatTokenAmount(amount float64, decimals uint8) string {
	switch {
	case amount >= 1e9:
		return fmt.Sprintf("%.2fB", amount/1e9)
	case amount >= 1e6:
		return fmt.Sprintf("%.2fM", amount/1e6)
	case amount >= 1e3:
		return fmt.Sprintf("%.2fK", amount/1e3)
	default:
		return fmt.Sprintf("%.*f", min(4, int(decimals)), amount)
	}
}
