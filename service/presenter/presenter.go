// Package presenter renders enriched records as human-readable reports.
package presenter

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/walletwatch/service/activity"
	"github.com/brojonat/walletwatch/service/enrich"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

const bannerWidth = 120

// Presenter writes reports to an io.Writer.
type Presenter struct {
	bold   *color.Color
	green  *color.Color
	red    *color.Color
	yellow *color.Color
	cyan   *color.Color
	faint  *color.Color
}

// New creates a Presenter. Colors are used only when colorize is true.
func New(colorize bool) *Presenter {
	p := &Presenter{
		bold:   color.New(color.Bold),
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
		cyan:   color.New(color.FgCyan),
		faint:  color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.bold, p.green, p.red, p.yellow, p.cyan, p.faint} {
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// ColorEnabled reports whether output to w should be colored: w must be a
// terminal and NO_COLOR must be unset.
func ColorEnabled(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Render writes the full report for rec.
func (p *Presenter) Render(w io.Writer, rec *enrich.EnrichedRecord) error {
	var b strings.Builder
	banner := strings.Repeat("=", bannerWidth)

	b.WriteString("\n" + banner + "\n")
	b.WriteString(p.bold.Sprint("WALLET TRACKER LOG") + "\n")
	b.WriteString(banner + "\n")

	fmt.Fprintf(&b, "Transaction: %s...\n", truncate(rec.Signature, 20))
	fmt.Fprintf(&b, "Wallet: %s\n", rec.Wallet.WalletAddress)
	fmt.Fprintf(&b, "Time: %s\n", rec.TimestampISO)
	if rec.Success {
		fmt.Fprintf(&b, "Status: %s\n", p.green.Sprint("SUCCESS"))
	} else {
		fmt.Fprintf(&b, "Status: %s\n", p.red.Sprint("FAILED"))
	}
	fmt.Fprintf(&b, "SOL Change: %s SOL\n", p.signed(rec.Wallet.SOLChange))
	fmt.Fprintf(&b, "Total USD Value: $%.2f\n", rec.Summary.TotalUSDValue)
	fmt.Fprintf(&b, "Risk Level: %s\n", p.risk(rec.Summary.RiskLevel))

	if len(rec.TokenTransactions) > 0 {
		b.WriteString("\n" + p.bold.Sprint("TOKEN TRANSACTIONS:") + "\n")
		for i, tx := range rec.TokenTransactions {
			p.writeTokenTransaction(&b, tx)
			if i < len(rec.TokenTransactions)-1 {
				b.WriteString("\n")
			}
		}
	}

	if swap := rec.SwapActivity; swap != nil {
		b.WriteString("\n" + p.bold.Sprint("SWAP ACTIVITY:") + "\n")
		fmt.Fprintf(&b, "  Type: %s\n", swap.Type)
		fmt.Fprintf(&b, "  Protocol: %s\n", swap.Protocol)
		if swap.FromToken != nil && swap.ToToken != nil {
			fmt.Fprintf(&b, "  %s %s → %s %s\n",
				number(swap.FromAmount), swap.FromToken.Symbol,
				number(swap.ToAmount), swap.ToToken.Symbol)
		}
	}

	if len(rec.Context.DetectedPatterns) > 0 {
		b.WriteString("\n" + p.bold.Sprint("DETECTED PATTERNS:") + "\n")
		for _, pattern := range rec.Context.DetectedPatterns {
			fmt.Fprintf(&b, "  • %s\n", humanize(pattern))
		}
	}

	fmt.Fprintf(&b, "\n%s %s | %d tokens | %s risk\n",
		p.bold.Sprint("SUMMARY:"),
		humanize(string(rec.Summary.TransactionType)),
		rec.Summary.TotalTokensInvolved,
		rec.Summary.RiskLevel,
	)
	b.WriteString(banner + "\n\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func (p *Presenter) writeTokenTransaction(b *strings.Builder, tx enrich.TokenTransaction) {
	icon := p.green.Sprint("▲")
	if tx.Action == activity.DirectionSell {
		icon = p.red.Sprint("▼")
	}

	symbol, name, mint := "", "", ""
	if tx.TokenMetadata != nil {
		symbol, name, mint = tx.TokenMetadata.Symbol, tx.TokenMetadata.Name, tx.TokenMetadata.Mint
	}

	line := fmt.Sprintf("  %s %s: %s %s", icon, tx.Action, tx.AmountFormatted, symbol)
	if tx.PricePerToken != nil && *tx.PricePerToken != 0 {
		line += fmt.Sprintf(" @ $%.6f", *tx.PricePerToken)
	}
	if tx.USDValue != nil && *tx.USDValue != 0 {
		line += fmt.Sprintf(" ($%.2f)", *tx.USDValue)
	}
	if tx.IsNewPosition {
		line += " " + p.yellow.Sprint("[NEW]")
	}
	b.WriteString(line + "\n")

	fmt.Fprintf(b, "     Token: %s\n", name)
	fmt.Fprintf(b, "     Token Mint: %s\n", p.faint.Sprint(mint))
	if tx.TokenMetadata == nil {
		return
	}
	if tx.TokenMetadata.LogoURI != "" {
		fmt.Fprintf(b, "     Logo: %s\n", tx.TokenMetadata.LogoURI)
	}
	if tx.TokenMetadata.Website != "" {
		fmt.Fprintf(b, "     Website: %s\n", p.cyan.Sprint(tx.TokenMetadata.Website))
	}
	if mc := tx.TokenMetadata.MarketCap; mc != nil && *mc != 0 {
		fmt.Fprintf(b, "     Market Cap: $%.2fM\n", *mc/1e6)
	}
}

// RenderBalance writes the one-line report for an update without a decodable
// transaction.
func (p *Presenter) RenderBalance(w io.Writer, u *activity.AccountUpdate) error {
	ts := u.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := fmt.Fprintf(w, "[%s] Balance Update: %.6f SOL\n", ts.Local().Format(time.TimeOnly), u.SOL)
	return err
}

func (p *Presenter) signed(v float64) string {
	s := fmt.Sprintf("%.6f", v)
	switch {
	case v > 0:
		return p.green.Sprint("+" + s)
	case v < 0:
		return p.red.Sprint(s)
	default:
		return "+" + s
	}
}

func (p *Presenter) risk(level enrich.RiskLevel) string {
	switch level {
	case enrich.RiskHigh:
		return p.red.Sprint(level)
	case enrich.RiskMedium:
		return p.yellow.Sprint(level)
	default:
		return p.green.Sprint(level)
	}
}

func humanize(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func number(v *float64) string {
	if v == nil {
		return "?"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
