package activity

import (
	"regexp"
	"strings"

	"github.com/brojonat/walletwatch/service/solana"
	"github.com/shopspring/decimal"
)

// LogPattern maps a log-text pattern to the activity kind it suggests.
type LogPattern struct {
	Kind Type
	Re   *regexp.Regexp
}

// DefaultLogPatterns are the instruction-name patterns seen in DEX program logs.
var DefaultLogPatterns = []LogPattern{
	{Kind: TypeBuy, Re: regexp.MustCompile(`(?i)Instruction:\s*Buy`)},
	{Kind: TypeSell, Re: regexp.MustCompile(`(?i)Instruction:\s*Sell`)},
	{Kind: TypeSwap, Re: regexp.MustCompile(`(?i)Swap|Instruction:\s*Swap|Route`)},
}

// MintChange is the net change of one mint for the wallet.
type MintChange struct {
	Mint string
	Diff decimal.Decimal
}

// Signals are the inputs every rule sees.
type Signals struct {
	Changes  []MintChange // in first-seen order, zero nets removed
	SOLDelta float64
	mentions map[Type]bool
}

// Mentions reports whether the logs matched a pattern for kind.
func (s *Signals) Mentions(kind Type) bool {
	return s.mentions[kind]
}

// Rule is one entry of the classification table. Build is called only when
// Match returns true and may still return nil to fall through.
type Rule struct {
	Name  string
	Match func(s *Signals) bool
	Build func(s *Signals) *DeFiActivity
}

// DefaultRules are evaluated in order; the first rule that builds an activity wins.
var DefaultRules = []Rule{
	{
		Name:  "balance-swap",
		Match: func(s *Signals) bool { return len(s.Changes) >= 2 },
		Build: func(s *Signals) *DeFiActivity {
			from, okFrom := firstChange(s.Changes, func(d decimal.Decimal) bool { return d.IsNegative() })
			to, okTo := firstChange(s.Changes, func(d decimal.Decimal) bool { return d.IsPositive() })
			if !okFrom || !okTo {
				return nil
			}
			fromAmt := from.Diff.Abs()
			toAmt := to.Diff
			return &DeFiActivity{
				Type:       TypeSwap,
				FromMint:   from.Mint,
				ToMint:     to.Mint,
				FromAmount: &fromAmt,
				ToAmount:   &toAmt,
			}
		},
	},
	{
		Name: "balance-buy",
		Match: func(s *Signals) bool {
			if len(s.Changes) != 1 {
				return false
			}
			return s.Mentions(TypeBuy) ||
				(!s.Mentions(TypeSell) && s.SOLDelta < 0 && s.Changes[0].Diff.IsPositive())
		},
		Build: func(s *Signals) *DeFiActivity {
			amt := s.Changes[0].Diff
			return &DeFiActivity{Type: TypeBuy, ToMint: s.Changes[0].Mint, ToAmount: &amt}
		},
	},
	{
		Name: "balance-sell",
		Match: func(s *Signals) bool {
			if len(s.Changes) != 1 {
				return false
			}
			return s.Mentions(TypeSell) ||
				(!s.Mentions(TypeBuy) && s.SOLDelta > 0 && s.Changes[0].Diff.IsNegative())
		},
		Build: func(s *Signals) *DeFiActivity {
			amt := s.Changes[0].Diff.Abs()
			return &DeFiActivity{Type: TypeSell, FromMint: s.Changes[0].Mint, FromAmount: &amt}
		},
	},
	logRule("log-swap", TypeSwap),
	logRule("log-buy", TypeBuy),
	logRule("log-sell", TypeSell),
}

func logRule(name string, kind Type) Rule {
	return Rule{
		Name:  name,
		Match: func(s *Signals) bool { return s.Mentions(kind) },
		Build: func(s *Signals) *DeFiActivity { return &DeFiActivity{Type: kind} },
	}
}

func firstChange(changes []MintChange, pred func(decimal.Decimal) bool) (MintChange, bool) {
	for _, c := range changes {
		if pred(c.Diff) {
			return c, true
		}
	}
	return MintChange{}, false
}

// Classifier infers at most one DeFiActivity per transaction.
type Classifier struct {
	patterns []LogPattern
	rules    []Rule
}

// NewClassifier creates a Classifier with the default pattern and rule tables.
func NewClassifier() *Classifier {
	return &Classifier{
		patterns: DefaultLogPatterns,
		rules:    DefaultRules,
	}
}

// NewClassifierWithRules creates a Classifier with custom tables.
func NewClassifierWithRules(patterns []LogPattern, rules []Rule) *Classifier {
	return &Classifier{
		patterns: patterns,
		rules:    rules,
	}
}

// Signals computes the rule inputs. tx may be nil, in which case there are
// no balance changes.
func (c *Classifier) Signals(logs []string, wallet string, solDelta float64, tx *solana.LedgerTransaction) *Signals {
	joined := strings.Join(logs, " ")
	s := &Signals{
		SOLDelta: solDelta,
		mentions: make(map[Type]bool, len(c.patterns)),
	}
	for _, p := range c.patterns {
		if p.Re.MatchString(joined) {
			s.mentions[p.Kind] = true
		}
	}
	if tx != nil {
		s.Changes = netByMint(walletTokenChanges(tx, wallet))
	}
	return s
}

// Classify returns the activity built by the first matching rule, or nil.
// The protocol is the first known DEX program invoked at the top level.
func (c *Classifier) Classify(logs []string, wallet string, solDelta float64, tx *solana.LedgerTransaction) *DeFiActivity {
	s := c.Signals(logs, wallet, solDelta, tx)
	for _, r := range c.rules {
		if !r.Match(s) {
			continue
		}
		if act := r.Build(s); act != nil {
			act.Protocol = solana.ProtocolLabel(logs)
			return act
		}
	}
	return nil
}

func netByMint(changes []tokenChange) []MintChange {
	var out []MintChange
	pos := make(map[string]int)
	for _, c := range changes {
		if i, ok := pos[c.mint]; ok {
			out[i].Diff = out[i].Diff.Add(c.diff)
			continue
		}
		pos[c.mint] = len(out)
		out = append(out, MintChange{Mint: c.mint, Diff: c.diff})
	}

	kept := out[:0]
	for _, c := range out {
		if !c.Diff.IsZero() {
			kept = append(kept, c)
		}
	}
	return kept
}
