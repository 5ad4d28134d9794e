package solana

import (
	"regexp"

	"github.com/gagliardetto/solana-go"
)

var (
	// SystemProgramID is the native System Program.
	SystemProgramID = solana.SystemProgramID

	// TokenProgramID is the SPL Token Program.
	TokenProgramID = solana.TokenProgramID

	// MetaplexProgramID is the Metaplex Token Metadata program that owns metadata PDAs.
	MetaplexProgramID = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")

	// WrappedSOLMint is the SPL mint for wrapped SOL, used to price SOL itself.
	WrappedSOLMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
)

// KnownPrograms maps DEX and aggregator program IDs to a display label.
// Protocol attribution picks the first top-level invocation found here.
var KnownPrograms = map[string]string{
	"JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4":  "Jupiter",
	"JUP4Fb2cqiRUcaTHdrPC8h2gNsA2ETXiPDD33WcGuJB":  "Jupiter v4",
	"675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8": "Raydium AMM",
	"CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C": "Raydium CPMM",
	"CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK": "Raydium CLMM",
	"whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc":  "Orca Whirlpool",
	"LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo":  "Meteora DLMM",
	"Eo7WjKq67rjJQSZxS6z3YkapzY3eMj6Xy8X5EQVn5UaB": "Meteora Pools",
	"6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P":  "Pump.fun",
	"pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA":  "PumpSwap",
	"MoonCVVNZFSYkqNXP6bxHLPL6QQJiMagDL3qcqUQTrG":  "Moonshot",
	"6m2CDdhRgxpH4WjvdzxAYbGxwdGUz5MziiL5jek2kBma": "OKX DEX",
}

var programInvokeRe = regexp.MustCompile(`^Program (\S+) invoke \[1\]`)

// InvokedPrograms returns the program IDs of top-level invocations found in
// transaction log lines, in order of first appearance.
func InvokedPrograms(logs []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, line := range logs {
		m := programInvokeRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		out = append(out, m[1])
	}
	return out
}

// ProtocolLabel returns the label of the first known program invoked at the
// top level, or "Unknown".
func ProtocolLabel(logs []string) string {
	for _, id := range InvokedPrograms(logs) {
		if label, ok := KnownPrograms[id]; ok {
			return label
		}
	}
	return "Unknown"
}
