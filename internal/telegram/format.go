package telegram

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Alias1177/goldscalper/internal/trading/executor"
	"github.com/Alias1177/goldscalper/models"
)

const rule = "━━━━━━━━━━━━━━━━━━━"

var statusEmoji = map[string]string{
	"STARTED":        "🟢",
	"STOPPED":        "🔴",
	"PAUSED":         "⏸️",
	"ERROR":          "❌",
	"WARNING":        "⚠️",
	"CONNECTED":      "✅",
	"DISCONNECTED":   "🔌",
	"TARGET_REACHED": "🎯",
}

// NotifyEntry reports a filled entry.
func (b *Bot) NotifyEntry(ev executor.EntryEvent) { b.notify("entry", formatEntry(ev), false) }

// NotifyExit reports a closed position.
func (b *Bot) NotifyExit(ev executor.ExitEvent) { b.notify("exit", formatExit(ev), false) }

// NotifyAction reports breakeven, trailing and scale-out updates.
func (b *Bot) NotifyAction(ev executor.ActionEvent) {
	b.notify(string(ev.Kind), formatAction(ev), false)
}

// NotifyRegime reports a regime change.
func (b *Bot) NotifyRegime(ev executor.RegimeEvent) { b.notify("regime", formatRegime(ev), false) }

// NotifyStatus reports a bot status change. ERROR and STOPPED bypass the rate
// limit.
func (b *Bot) NotifyStatus(status, details string) {
	critical := status == "ERROR" || status == "STOPPED"
	b.notify("status", formatStatus(status, details, b.now()), critical)
}

func formatEntry(ev executor.EntryEvent) string {
	riskDist := math.Abs(ev.Entry - ev.StopLoss)
	rewardDist := math.Abs(ev.TakeProfit - ev.Entry)
	var reward, rr float64
	if ev.StopLoss > 0 && riskDist > 0 {
		rr = rewardDist / riskDist
		reward = rr * ev.Risk
	}
	direction := "🟢"
	if ev.Side == models.SideSell {
		direction = "🔴"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *NEW TRADE EXECUTED*\n%s\n\n", direction, rule)
	fmt.Fprintf(&b, "*Trade Details:*\n• Symbol: `%s`\n• Type: *%s*\n• Volume: `%.2f lots`\n• Ticket: `#%d`\n\n",
		ev.Symbol, ev.Side, ev.Volume, ev.Ticket)
	fmt.Fprintf(&b, "*Price Levels:*\n• Entry: `%.2f`\n• Stop Loss: `%.2f` (-$%.2f)\n• Take Profit: `%.2f` (+$%.2f)\n• Risk:Reward = `1:%.2f`\n",
		ev.Entry, ev.StopLoss, ev.Risk, ev.TakeProfit, reward, rr)

	if ev.Balance > 0 {
		fmt.Fprintf(&b, "\n*Account Status:*\n• Balance: `$%.2f`\n• Equity: `$%.2f`\n• Risk: `%.2f%%` of balance\n",
			ev.Balance, ev.Equity, ev.Risk/ev.Balance*100)
	}

	session := ev.Session
	if session == "" {
		session = "n/a"
	}
	fmt.Fprintf(&b, "\n*Signal Context:*\n• Strategy: `%s`\n• Session: `%s`\n• Confidence: `%.1f / %.1f` %s\n• Market Regime: `%s`\n",
		ev.Mode, strings.ToUpper(session), ev.Score, ev.MinConf, strings.Repeat("⭐", int(max(0, ev.Score))), ev.Regime)

	var ind []string
	if ev.HasRSI {
		status := "Neutral"
		switch {
		case ev.RSI < 30:
			status = "Oversold"
		case ev.RSI > 70:
			status = "Overbought"
		}
		ind = append(ind, fmt.Sprintf("• RSI: `%.1f` (%s)", ev.RSI, status))
	}
	if ev.MATrend != "" {
		ind = append(ind, fmt.Sprintf("• MA Trend: `%s`", ev.MATrend))
	}
	if ev.ATR > 0 {
		ind = append(ind, fmt.Sprintf("• ATR: `%.2f`", ev.ATR))
	}
	if len(ind) > 0 {
		b.WriteString("\n*Technical Indicators:*\n" + strings.Join(ind, "\n") + "\n")
	}

	fmt.Fprintf(&b, "\n⏰ %s", ev.Time.UTC().Format("2006-01-02 15:04:05 UTC"))
	return b.String()
}

func formatExit(ev executor.ExitEvent) string {
	emoji, status := "⚪", "BREAKEVEN"
	switch {
	case ev.Profit > 0:
		emoji, status = "💚", "WIN"
	case ev.Profit < 0:
		emoji, status = "❌", "LOSS"
	}

	duration := "N/A"
	if ev.Duration > 0 {
		duration = formatDuration(ev.Duration)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *TRADE CLOSED - %s*\n%s\n\n", emoji, status, rule)
	fmt.Fprintf(&b, "• Ticket: `#%d`\n• Result: `$%+.2f`\n• Duration: `%s`\n• Reason: `%s`\n", ev.Ticket, ev.Profit, duration, ev.Reason)
	fmt.Fprintf(&b, "\n*Today's Performance:*\n• Daily P/L: `$%+.2f`\n• Total Trades: `%d`\n", ev.Today.Profit, ev.Today.Trades)
	if ev.Target > 0 {
		fmt.Fprintf(&b, "• Target Progress: %s\n", progressBar(ev.Today.Profit, ev.Target, 10))
	}
	fmt.Fprintf(&b, "\n⏰ %s", ev.Time.UTC().Format("2006-01-02 15:04:05 UTC"))
	return b.String()
}

func formatAction(ev executor.ActionEvent) string {
	at := ev.Time.UTC().Format("15:04:05 UTC")
	switch ev.Kind {
	case executor.ActionBreakeven:
		msg := fmt.Sprintf("⚖️ *BREAKEVEN ACTIVATED*\n%s\n\n• Ticket: `#%d`\n• New SL: `%.2f`\n• Status: `Risk-Free Trade`\n", rule, ev.Ticket, ev.StopLoss)
		if ev.Locked > 0 {
			msg += fmt.Sprintf("• Locked Profit: `$%.2f`\n", ev.Locked)
		}
		return msg + "\n⏰ " + at
	case executor.ActionTrailing:
		return fmt.Sprintf("🎯 *TRAILING STOP UPDATED*\n%s\n\n• Ticket: `#%d`\n• New SL: `%.2f`\n• Profit Locked: `$%.2f`\n• Status: `Securing gains`\n\n⏰ %s",
			rule, ev.Ticket, ev.StopLoss, ev.Locked, at)
	}
	return fmt.Sprintf("✂️ *PARTIAL CLOSE*\n%s\n\n• Ticket: `#%d`\n• Closed: `%.2f lots`\n• Status: `Profit banked`\n\n⏰ %s",
		rule, ev.Ticket, ev.Volume, at)
}

func formatRegime(ev executor.RegimeEvent) string {
	d := ev.Assessment.Details
	rec := ev.Recommendation
	return fmt.Sprintf("🔄 *MARKET REGIME CHANGED*\n%s\n\n%s `%s` → %s `%s`\n\n"+
		"*Recommended Adjustments:*\n• Strategy: `%s`\n• Lot Multiplier: `%gx`\n• Note: `%s`\n\n"+
		"*Technical Details:*\n• ADX: `%.1f`\n• ATR Ratio: `%.2f`\n• Confidence: `%.0f%%`\n\n⏰ %s",
		rule, ev.From.Emoji(), ev.From, ev.To.Emoji(), ev.To,
		rec.Mode, rec.LotMultiplier, rec.Note,
		d.ADX, d.ATRRatio, ev.Assessment.Confidence*100,
		ev.Time.UTC().Format("15:04:05 UTC"))
}

func formatStatus(status, details string, at time.Time) string {
	emoji, ok := statusEmoji[status]
	if !ok {
		emoji = "❓"
	}
	return fmt.Sprintf("%s *BOT STATUS: %s*\n%s\n\n%s\n\n⏰ %s", emoji, escape(status), rule, escape(details), at.UTC().Format("2006-01-02 15:04:05 UTC"))
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// escape quotes free text for legacy Markdown.
func escape(s string) string { return markdownEscaper.Replace(s) }

func formatDuration(d time.Duration) string {
	s := int(d.Seconds())
	switch {
	case s < 60:
		return fmt.Sprintf("%ds", s)
	case s < 3600:
		return fmt.Sprintf("%dm %ds", s/60, s%60)
	}
	return fmt.Sprintf("%dh %dm", s/3600, s%3600/60)
}

// progressBar fills from the left for gains and from the right for losses.
func progressBar(current, target float64, length int) string {
	if target <= 0 {
		return strings.Repeat("▱", length)
	}
	pct := math.Min(math.Abs(current/target), 1)
	filled := int(pct * float64(length))
	var bar string
	if current >= 0 {
		bar = strings.Repeat("▰", filled) + strings.Repeat("▱", length-filled)
	} else {
		bar = strings.Repeat("▱", length-filled) + strings.Repeat("▰", filled)
	}
	return fmt.Sprintf("%s %.0f%%", bar, pct*100)
}
