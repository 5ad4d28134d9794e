package activity

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/brojonat/walletwatch/service/solana"
)

const lamportsPerSOL = 1_000_000_000

// SystemProgramLabel replaces the System Program owner address in updates.
const SystemProgramLabel = "System Program"

// TrackingMode selects how the BalanceTracker keys the previous balance.
type TrackingMode string

const (
	// TrackPerAddress keeps one previous balance per address.
	TrackPerAddress TrackingMode = "per-address"
	// TrackGlobal keeps a single last-write-wins balance shared by every address.
	TrackGlobal TrackingMode = "global"
)

// ParseTrackingMode validates a tracking mode string.
func ParseTrackingMode(s string) (TrackingMode, error) {
	switch TrackingMode(s) {
	case TrackPerAddress, TrackGlobal:
		return TrackingMode(s), nil
	default:
		return "", fmt.Errorf("unknown balance tracking mode %q (want %q or %q)", s, TrackPerAddress, TrackGlobal)
	}
}

// BalanceTracker remembers the last observed lamport balance and reports changes.
type BalanceTracker struct {
	mu   sync.Mutex
	mode TrackingMode
	last map[string]uint64
}

// NewBalanceTracker creates a tracker. An empty mode means TrackPerAddress.
func NewBalanceTracker(mode TrackingMode) *BalanceTracker {
	if mode == "" {
		mode = TrackPerAddress
	}
	return &BalanceTracker{
		mode: mode,
		last: make(map[string]uint64),
	}
}

// Observe records lamports for address and returns the change from the
// previous observation, or nil when there was none or the balance is unchanged.
func (t *BalanceTracker) Observe(address string, lamports uint64) *BalanceChange {
	key := address
	if t.mode == TrackGlobal {
		key = ""
	}

	t.mu.Lock()
	prev, ok := t.last[key]
	t.last[key] = lamports
	t.mu.Unlock()

	if !ok || prev == lamports {
		return nil
	}
	return &BalanceChange{
		Previous: prev,
		Current:  lamports,
		DeltaSOL: lamportsToSOL(lamports) - lamportsToSOL(prev),
	}
}

// Normalizer validates raw update events into AccountUpdates.
type Normalizer struct {
	balances *BalanceTracker
	logger   *slog.Logger
}

// NewNormalizer creates a Normalizer. A nil tracker disables change detection.
func NewNormalizer(balances *BalanceTracker, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		balances: balances,
		logger:   logger,
	}
}

// Normalize converts ev into an AccountUpdate. It returns false for pings,
// empty events and events missing the address, lamports or owner.
func (n *Normalizer) Normalize(ev *solana.UpdateEvent) (*AccountUpdate, bool) {
	if ev == nil || ev.Ping || ev.Account == nil {
		return nil, false
	}

	acct := ev.Account
	if acct.Address == "" || acct.Lamports == nil || acct.Owner == "" {
		n.logger.Warn("incomplete account data, skipping",
			"address", acct.Address,
			"has_lamports", acct.Lamports != nil,
			"owner", acct.Owner,
		)
		return nil, false
	}

	owner := acct.Owner
	if owner == solana.SystemProgramID.String() {
		owner = SystemProgramLabel
	}

	ts := ev.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	update := &AccountUpdate{
		Address:    acct.Address,
		Lamports:   *acct.Lamports,
		SOL:        roundTo(lamportsToSOL(*acct.Lamports), 6),
		Owner:      owner,
		Executable: acct.Executable,
		RentEpoch:  acct.RentEpoch,
		Slot:       acct.Slot,
		Timestamp:  ts,
	}
	if len(acct.Signature) > 0 {
		update.Signature = solana.EncodeBase58(acct.Signature)
	}

	if n.balances != nil {
		if change := n.balances.Observe(update.Address, update.Lamports); change != nil {
			update.Change = change
			kind := "balance increase"
			if change.DeltaSOL < 0 {
				kind = "balance decrease"
			}
			n.logger.Info(kind,
				"address", update.Address,
				"change_sol", fmt.Sprintf("%+.6f", change.DeltaSOL),
			)
		}
	}

	return update, true
}

func lamportsToSOL(lamports uint64) float64 {
	return float64(lamports) / lamportsPerSOL
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
