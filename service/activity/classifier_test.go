package activity

import (
	"regexp"
	"testing"

	"github.com/brojonat/walletwatch/service/solana"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	jupiterInvoke = "Program JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4 invoke [1]"
	pumpInvoke    = "Program 6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P invoke [1]"
)

func txWith(pre, post []solana.TokenBalance) *solana.LedgerTransaction {
	return &solana.LedgerTransaction{PreTokenBalances: pre, PostTokenBalances: post}
}

func TestClassify_Swap(t *testing.T) {
	tx := txWith(
		[]solana.TokenBalance{tb(1, mintA, testWallet, "1500"), tb(2, mintB, testWallet, "0")},
		[]solana.TokenBalance{tb(1, mintA, testWallet, "1000"), tb(2, mintB, testWallet, "300")},
	)
	logs := []string{jupiterInvoke, "Program log: Instruction: Route"}

	act := NewClassifier().Classify(logs, testWallet, -0.000005, tx)
	require.NotNil(t, act)
	assert.Equal(t, TypeSwap, act.Type)
	assert.Equal(t, "Jupiter", act.Protocol)
	assert.Equal(t, mintA, act.FromMint)
	assert.Equal(t, mintB, act.ToMint)
	require.NotNil(t, act.FromAmount)
	require.NotNil(t, act.ToAmount)
	assert.True(t, dec("500").Equal(*act.FromAmount))
	assert.True(t, dec("300").Equal(*act.ToAmount))
}

func TestClassify_SwapOrderFollowsFirstSeen(t *testing.T) {
	// to side appears before the from side
	tx := txWith(
		[]solana.TokenBalance{tb(1, mintB, testWallet, "0"), tb(2, mintA, testWallet, "10")},
		[]solana.TokenBalance{tb(1, mintB, testWallet, "7"), tb(2, mintA, testWallet, "4")},
	)
	act := NewClassifier().Classify(nil, testWallet, 0, tx)
	require.NotNil(t, act)
	assert.Equal(t, mintA, act.FromMint)
	assert.Equal(t, mintB, act.ToMint)
	assert.True(t, dec("6").Equal(*act.FromAmount))
	assert.Equal(t, UnknownProtocol, act.Protocol)
}

func TestClassify_Buy(t *testing.T) {
	tx := txWith(
		[]solana.TokenBalance{tb(2, mintA, testWallet, "0")},
		[]solana.TokenBalance{tb(2, mintA, testWallet, "1000")},
	)

	t.Run("instruction name", func(t *testing.T) {
		act := NewClassifier().Classify([]string{pumpInvoke, "Program log: Instruction: Buy"}, testWallet, 0, tx)
		require.NotNil(t, act)
		assert.Equal(t, TypeBuy, act.Type)
		assert.Equal(t, "Pump.fun", act.Protocol)
		assert.Equal(t, mintA, act.ToMint)
		assert.True(t, dec("1000").Equal(*act.ToAmount))
		assert.Nil(t, act.FromAmount)
	})

	t.Run("case insensitive", func(t *testing.T) {
		act := NewClassifier().Classify([]string{"Program log: instruction:buy"}, testWallet, 0, tx)
		require.NotNil(t, act)
		assert.Equal(t, TypeBuy, act.Type)
	})

	t.Run("sol spent for tokens", func(t *testing.T) {
		act := NewClassifier().Classify(nil, testWallet, -0.5, tx)
		require.NotNil(t, act)
		assert.Equal(t, TypeBuy, act.Type)
	})

	t.Run("sell instruction blocks inference", func(t *testing.T) {
		act := NewClassifier().Classify([]string{"Program log: Instruction: Sell"}, testWallet, -0.5, tx)
		require.NotNil(t, act)
		assert.Equal(t, TypeSell, act.Type)
	})
}

func TestClassify_Sell(t *testing.T) {
	tx := txWith(
		[]solana.TokenBalance{tb(2, mintA, testWallet, "1000")},
		[]solana.TokenBalance{tb(2, mintA, testWallet, "250")},
	)

	t.Run("sol received for tokens", func(t *testing.T) {
		act := NewClassifier().Classify(nil, testWallet, 1.2, tx)
		require.NotNil(t, act)
		assert.Equal(t, TypeSell, act.Type)
		assert.Equal(t, mintA, act.FromMint)
		assert.True(t, dec("750").Equal(*act.FromAmount))
		assert.Nil(t, act.ToAmount)
	})

	t.Run("token left without sol movement falls through", func(t *testing.T) {
		assert.Nil(t, NewClassifier().Classify(nil, testWallet, 0, tx))
	})
}

func TestClassify_LogOnly(t *testing.T) {
	tests := []struct {
		name string
		logs []string
		want Type
	}{
		{name: "swap keyword", logs: []string{"Program log: Instruction: SwapBaseIn"}, want: TypeSwap},
		{name: "route keyword", logs: []string{"Program log: Instruction: SharedAccountsRoute"}, want: TypeSwap},
		{name: "swap beats buy", logs: []string{"Program log: Instruction: Buy", "Program log: swap"}, want: TypeSwap},
		{name: "buy", logs: []string{"Program log: Instruction: Buy"}, want: TypeBuy},
		{name: "sell", logs: []string{"Program log: Instruction: Sell"}, want: TypeSell},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			act := NewClassifier().Classify(tt.logs, testWallet, 0, nil)
			require.NotNil(t, act)
			assert.Equal(t, tt.want, act.Type)
			assert.Empty(t, act.FromMint)
			assert.Empty(t, act.ToMint)
			assert.Nil(t, act.FromAmount)
			assert.Nil(t, act.ToAmount)
		})
	}
}

func TestClassify_NoSignal(t *testing.T) {
	logs := []string{"Program 11111111111111111111111111111111 invoke [1]", "Program 11111111111111111111111111111111 success"}
	assert.Nil(t, NewClassifier().Classify(logs, testWallet, -0.1, txWith(nil, nil)))
}

func TestClassify_NetsChangesPerMint(t *testing.T) {
	// two accounts of the same mint that cancel out leave no change
	tx := txWith(
		[]solana.TokenBalance{tb(1, mintA, testWallet, "10"), tb(2, mintA, testWallet, "0")},
		[]solana.TokenBalance{tb(1, mintA, testWallet, "0"), tb(2, mintA, testWallet, "10")},
	)
	s := NewClassifier().Signals(nil, testWallet, 0, tx)
	assert.Empty(t, s.Changes)
}

func TestClassify_CustomRules(t *testing.T) {
	patterns := []LogPattern{{Kind: TypeSell, Re: regexp.MustCompile(`(?i)dump`)}}
	rules := []Rule{{
		Name:  "dump",
		Match: func(s *Signals) bool { return s.Mentions(TypeSell) },
		Build: func(s *Signals) *DeFiActivity { return &DeFiActivity{Type: TypeSell} },
	}}
	c := NewClassifierWithRules(patterns, rules)

	act := c.Classify([]string{"Program log: DUMP it"}, testWallet, 0, nil)
	require.NotNil(t, act)
	assert.Equal(t, TypeSell, act.Type)
	assert.Nil(t, c.Classify([]string{"Program log: Instruction: Buy"}, testWallet, 0, nil))
}

func TestDefaultRules_AreNamed(t *testing.T) {
	seen := make(map[string]bool)
	for _, r := range DefaultRules {
		require.NotEmpty(t, r.Name)
		require.NotNil(t, r.Match)
		require.NotNil(t, r.Build)
		assert.False(t, seen[r.Name], "duplicate rule %s", r.Name)
		seen[r.Name] = true
	}
}
