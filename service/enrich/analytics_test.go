package enrich

import (
	"testing"

	"github.com/brojonat/walletwatch/service/activity"
	"github.com/stretchr/testify/assert"
)

func TestRiskScore_Scenario15000(t *testing.T) {
	score := RiskScore(15000, 0, 1)
	assert.Equal(t, 3, score)
	assert.Equal(t, RiskMedium, RiskLevelFor(score))
}

func TestRiskLevelFor(t *testing.T) {
	assert.Equal(t, RiskLow, RiskLevelFor(0))
	assert.Equal(t, RiskLow, RiskLevelFor(1))
	assert.Equal(t, RiskMedium, RiskLevelFor(2))
	assert.Equal(t, RiskMedium, RiskLevelFor(3))
	assert.Equal(t, RiskHigh, RiskLevelFor(4))
	assert.Equal(t, RiskHigh, RiskLevelFor(9))
}

func TestRiskScore_Thresholds(t *testing.T) {
	tests := []struct {
		usd  float64
		want int
	}{
		{0, 0}, {100, 0}, {100.01, 1}, {1000, 1}, {1000.5, 2}, {10000, 2}, {10001, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RiskScore(tt.usd, 0, 1), "usd=%v", tt.usd)
	}
	assert.Equal(t, 1, RiskScore(0, 0, 3), "more than two token transactions")
	assert.Equal(t, 0, RiskScore(0, 0, 2))
}

func TestRiskLevel_Monotonic(t *testing.T) {
	usds := []float64{0, 50, 100, 150, 999, 1001, 5000, 10000, 10001, 1e6}
	rank := map[RiskLevel]int{RiskLow: 0, RiskMedium: 1, RiskHigh: 2}

	for txs := 0; txs <= 4; txs++ {
		for unknown := 0; unknown <= txs; unknown++ {
			prev := -1
			for _, usd := range usds {
				r := rank[RiskLevelFor(RiskScore(usd, unknown, txs))]
				assert.GreaterOrEqual(t, r, prev, "usd=%v unknown=%d txs=%d", usd, unknown, txs)
				prev = r
			}
		}
		for _, usd := range usds {
			prev := -1
			for unknown := 0; unknown <= txs; unknown++ {
				r := rank[RiskLevelFor(RiskScore(usd, unknown, txs))]
				assert.GreaterOrEqual(t, r, prev, "usd=%v unknown=%d txs=%d", usd, unknown, txs)
				prev = r
			}
		}
	}
}

func TestCalculateRiskLevel_UnknownPrices(t *testing.T) {
	zero := 0.0
	one := 1.0
	txs := []TokenTransaction{{PricePerToken: nil}, {PricePerToken: &zero}, {PricePerToken: &one}}
	// 2 unknown + more than two transactions
	assert.Equal(t, RiskMedium, CalculateRiskLevel(txs, 0))
	assert.Equal(t, RiskHigh, CalculateRiskLevel(txs, 150))
}

func TestDetermineTransactionType(t *testing.T) {
	tests := []struct {
		name     string
		tokenTxs int
		swap     *SwapActivity
		solDelta float64
		want     TransactionType
	}{
		{"token swap", 2, &SwapActivity{Type: TokenSwap}, 0, ComplexSwap},
		{"log-only swap", 0, &SwapActivity{Type: TokenSwap}, 0, ComplexSwap},
		{"buy with tokens", 1, &SwapActivity{Type: SOLToToken}, -0.5, TokenTrade},
		{"sell with tokens", 1, &SwapActivity{Type: TokenToSOL}, 0.5, TokenTrade},
		{"buy without tokens", 0, &SwapActivity{Type: SOLToToken}, -0.5, DeFiInteraction},
		{"tokens only", 1, nil, 0, TokenTrade},
		{"sol only", 0, nil, 1, SimpleTransfer},
		{"nothing", 0, nil, 0, DeFiInteraction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetermineTransactionType(tt.tokenTxs, tt.swap, tt.solDelta))
		})
	}
}

func TestDetectPatterns(t *testing.T) {
	buy := TokenTransaction{Action: activity.DirectionBuy}
	sell := TokenTransaction{Action: activity.DirectionSell}
	newBuy := TokenTransaction{Action: activity.DirectionBuy, IsNewPosition: true}

	tests := []struct {
		name     string
		txs      []TokenTransaction
		solDelta float64
		want     []string
	}{
		{"no tokens", nil, 0, []string{}},
		{"single buy", []TokenTransaction{buy}, -0.1, []string{PatternAccumulation}},
		{"single sell", []TokenTransaction{sell}, 0.1, []string{PatternDistribution}},
		{"mix", []TokenTransaction{buy, sell}, 0, []string{PatternMultiTokenTrade, PatternBuySellMix}},
		{"large spend new position", []TokenTransaction{newBuy}, -1.5, []string{PatternNewPosition, PatternLargeSOLSpend, PatternAccumulation}},
		{"exactly -1 is not large", []TokenTransaction{buy}, -1, []string{PatternAccumulation}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectPatterns(tt.txs, tt.solDelta))
		})
	}
}

func TestFormatTokenAmount(t *testing.T) {
	tests := []struct {
		amount   float64
		decimals uint8
		want     string
	}{
		{2_500_000_000, 6, "2.50B"},
		{1e9, 0, "1.00B"},
		{1_234_567, 6, "1.23M"},
		{1000, 6, "1.00K"},
		{999.123456, 6, "999.1235"},
		{12.5, 2, "12.50"},
		{7, 0, "7"},
		{0.00001, 9, "0.0000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatTokenAmount(tt.amount, tt.decimals))
	}
}

func TestPositionTracker(t *testing.T) {
	p := NewPositionTracker()
	assert.Equal(t, 0, p.Touch("w", "m", blockTime))
	assert.Equal(t, 1, p.Touch("w", "m", blockTime.Add(1)))
	assert.Equal(t, 2, p.Touch("w", "m", blockTime.Add(2)))
	assert.Equal(t, 0, p.Touch("w2", "m", blockTime))
	assert.Equal(t, 2, p.Len())

	first, ok := p.FirstSeen("w", "m")
	assert.True(t, ok)
	assert.Equal(t, blockTime, first)

	_, ok = p.FirstSeen("w", "other")
	assert.False(t, ok)
}
