package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	figure "github.com/common-nighthawk/go-figure"

	"github.com/aristath/sentimentedge/internal/analytics"
	"github.com/aristath/sentimentedge/internal/domain"
	"github.com/aristath/sentimentedge/internal/queries"
	"github.com/aristath/sentimentedge/internal/reconcile"
	"github.com/aristath/sentimentedge/internal/theme"
)

const (
	footerHeight  = 1
	chartHeight   = 6
	heroMinWidth  = 80
	maxTradeRows  = 10
	sentimentRows = 4
)

func (m Model) View() string {
	if !m.ready {
		return "\n  Loading..."
	}
	t := theme.Default

	page := lipgloss.NewStyle().
		Width(m.width).
		Background(t.Base)

	return lipgloss.JoinVertical(lipgloss.Left,
		page.Render(m.viewport.View()),
		m.viewFooter(),
	)
}

func (m Model) renderContent() string {
	if !m.hasView {
		return "\n  Waiting for first snapshot..."
	}
	pad := lipgloss.NewStyle().Padding(0, 2)

	sections := []string{
		m.viewHeader(),
		m.viewHero(),
		m.viewCards(),
		m.viewPnLChart(),
		m.viewPositions(),
		m.viewTrades(),
		m.viewSignals(),
		m.viewSentiment(),
		m.viewFreshness(),
	}
	rendered := make([]string, 0, len(sections))
	for _, s := range sections {
		if s != "" {
			rendered = append(rendered, pad.Render(s))
		}
	}
	return strings.Join(rendered, "\n\n")
}

func (m Model) contentWidth() int {
	w := m.width - 4
	if w < 20 {
		w = 20
	}
	return w
}

func title(s string) string {
	t := theme.Default
	return lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Render(s)
}

func muted(s string) string {
	return lipgloss.NewStyle().Foreground(theme.Default.Muted).Render(s)
}

func (m Model) viewHeader() string {
	t := theme.Default

	name := theme.GradientText("SENTIMENTEDGE MONITOR", t.Primary, t.Accent)

	conn := m.view.Connection
	color := t.Muted
	switch conn.Status {
	case "open":
		color = t.Success
	case "connecting", "closed":
		color = t.Warning
	case "failed":
		color = t.Error
	}
	indicator := lipgloss.NewStyle().Foreground(color).Render("● " + conn.Status)
	if conn.Status == "closed" || conn.Status == "connecting" {
		indicator += muted(fmt.Sprintf(" (attempt %d)", conn.Attempt))
	}

	line := lipgloss.JoinHorizontal(lipgloss.Top, name, "   ", indicator, "   ", muted(m.apiURL))
	if conn.Status == "failed" && conn.Error != "" {
		line += "\n" + lipgloss.NewStyle().Foreground(t.Error).Render("Live updates unavailable: "+conn.Error)
	}
	return line
}

// renderFiglet renders text in the small figlet font.
func renderFiglet(text string) string {
	fig := figure.NewFigure(text, "small", false)
	return strings.Join(fig.Slicify(), "\n")
}

// viewHero shows total P&L as large text on wide terminals
func (m Model) viewHero() string {
	perf := m.view.Performance
	if perf == nil || m.width < heroMinWidth {
		return ""
	}
	t := theme.Default

	from, to := t.Primary, t.Success
	if perf.TotalPnL < 0 {
		to = t.Error
	}
	return theme.GradientText(renderFiglet(formatSignedMoney(perf.TotalPnL)), from, to)
}

func card(label, value string, color lipgloss.Color) string {
	t := theme.Default
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, 1).
		Width(18)
	return box.Render(muted(label) + "\n" + lipgloss.NewStyle().Bold(true).Foreground(color).Render(value))
}

func (m Model) viewCards() string {
	t := theme.Default
	perf := m.view.Performance

	if perf == nil {
		return muted("Performance: waiting for data")
	}

	sharpe := "n/a"
	if perf.SharpeRatio != nil {
		sharpe = fmt.Sprintf("%.2f", *perf.SharpeRatio)
	}

	cards := lipgloss.JoinHorizontal(lipgloss.Top,
		card("Total P&L", formatSignedMoney(perf.TotalPnL), t.Signed(perf.TotalPnL)),
		card("Daily P&L", formatSignedMoney(perf.DailyPnL), t.Signed(perf.DailyPnL)),
		card("Win rate", formatRatio(perf.WinRate), t.Text),
		card("Trades", fmt.Sprintf("%d (%dW/%dL)", perf.TotalTrades, perf.WinningTrades, perf.LosingTrades), t.Text),
		card("Sharpe", sharpe, t.Info),
	)
	return cards + "\n" + muted("source: "+m.view.PerformanceSource)
}

func (m Model) viewPnLChart() string {
	t := theme.Default
	points := m.view.CumulativePnL
	header := title("Cumulative P&L")

	if len(points) == 0 {
		return header + "\n" + muted("No closed trades yet")
	}

	chart := renderBaselineChart(pnlChartPoints(points), 0, m.contentWidth(), chartHeight, t.Success, t.Error)
	final := analytics.FinalPnL(points)
	summary := lipgloss.NewStyle().Foreground(t.Signed(final)).Render(formatSignedMoney(final))
	return header + "  " + summary + muted(fmt.Sprintf("  over %d closing trades", len(points))) + "\n" + chart
}

func (m Model) viewPositions() string {
	t := theme.Default
	header := title(fmt.Sprintf("Positions (%d)", len(m.view.Positions)))
	if len(m.view.Positions) == 0 {
		return header + "\n" + muted("No open positions")
	}

	lines := []string{header, muted(fmt.Sprintf("%-8s %8s %12s %12s %14s %14s %9s", "TICKER", "QTY", "ENTRY", "PRICE", "VALUE", "UNREALIZED", "PCT"))}
	for _, p := range m.view.Positions {
		pnl := lipgloss.NewStyle().Foreground(t.Signed(p.UnrealizedPnL))
		lines = append(lines, fmt.Sprintf("%-8s %8d %12s %12s %14s %s %s",
			p.Ticker,
			p.Quantity,
			formatMoney(p.EntryPrice),
			formatMoney(p.CurrentPrice),
			formatMoney(p.MarketValue()),
			pnl.Render(fmt.Sprintf("%14s", formatSignedMoney(p.UnrealizedPnL))),
			pnl.Render(fmt.Sprintf("%9s", formatPercent(p.UnrealizedPnLPct))),
		))
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewTrades() string {
	t := theme.Default
	header := title("Recent trades")
	if len(m.view.Trades) == 0 {
		return header + "\n" + muted("No trades yet")
	}

	lines := []string{header, muted(fmt.Sprintf("%-8s %-5s %6s %12s %14s %14s  %s", "TICKER", "SIDE", "QTY", "PRICE", "NOTIONAL", "REALIZED", "WHEN"))}
	now := m.view.GeneratedAt
	for i, tr := range m.view.Trades {
		if i >= maxTradeRows {
			break
		}
		sideColor := t.Success
		if tr.Side == domain.SideSell {
			sideColor = t.Error
		}
		realized := muted(fmt.Sprintf("%14s", "-"))
		if tr.RealizedPnL != nil {
			realized = lipgloss.NewStyle().Foreground(t.Signed(*tr.RealizedPnL)).
				Render(fmt.Sprintf("%14s", formatSignedMoney(*tr.RealizedPnL)))
		}
		lines = append(lines, fmt.Sprintf("%-8s %s %6d %12s %14s %s  %s",
			tr.Ticker,
			lipgloss.NewStyle().Foreground(sideColor).Render(fmt.Sprintf("%-5s", tr.Side)),
			tr.Quantity,
			formatMoney(tr.Price),
			formatMoney(tr.Notional()),
			realized,
			muted(formatAge(now.Sub(tr.Timestamp))),
		))
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewSignals() string {
	t := theme.Default
	feed := m.view.Feed
	buys, sells := analytics.SignalCounts(m.view.Signals)
	header := title("Live signals") + muted(fmt.Sprintf("  %d buffered, %d buy / %d sell", len(m.view.Signals), buys, sells))

	if len(feed) == 0 {
		return header + "\n" + muted("Waiting for signals...")
	}

	reasonWidth := m.contentWidth() - 48
	lines := []string{header}
	now := m.view.GeneratedAt
	for _, s := range feed {
		color := t.Success
		if s.Action == domain.SideSell {
			color = t.Error
		}
		lines = append(lines, fmt.Sprintf("%s %-6s %s %5d mentions %10s  %s %s",
			lipgloss.NewStyle().Bold(true).Foreground(color).Render(fmt.Sprintf("%-4s", s.Action)),
			s.Ticker,
			lipgloss.NewStyle().Foreground(t.Sentiment(s.Sentiment)).Render(formatSentiment(s.Sentiment)),
			s.MentionCount,
			formatMoney(s.Price),
			muted(fmt.Sprintf("%-8s", formatAge(now.Sub(s.Timestamp)))),
			truncate(s.Reason, reasonWidth),
		))
	}
	return strings.Join(lines, "\n")
}

func (m Model) viewSentiment() string {
	t := theme.Default

	var sel queries.SentimentSelection
	if m.sentiment != nil {
		sel = m.sentiment.Selection()
	}

	tabs := make([]string, 0, len(m.view.ActiveTickers))
	for _, tk := range m.view.ActiveTickers {
		style := lipgloss.NewStyle().Foreground(t.Muted)
		if tk == sel.Ticker {
			style = lipgloss.NewStyle().Bold(true).Foreground(t.Accent).Underline(true)
		}
		tabs = append(tabs, style.Render(tk))
	}
	header := title("Sentiment") + "  " + strings.Join(tabs, " ") + muted(fmt.Sprintf("  [%s]", sel.Window))

	series := m.view.Sentiment
	if series == nil || len(series.Points) == 0 {
		return header + "\n" + muted("No sentiment data for this selection")
	}
	if series.Selection.Ticker != sel.Ticker || series.Selection.Window != sel.Window {
		header += muted("  loading...")
	}

	lines := []string{header}
	if s := m.view.SentimentSummary; s != nil {
		lines = append(lines, fmt.Sprintf("latest %s  mean %s  σ %.2f  momentum %s  mentions %d",
			lipgloss.NewStyle().Foreground(t.Sentiment(s.Latest)).Render(formatSentiment(s.Latest)),
			formatSentiment(s.Mean),
			s.StdDev,
			formatSentiment(s.Momentum),
			s.TotalMentions,
		))
	}

	// period 1 yields the raw series in time order
	ordered := sentimentChartPoints(analytics.SmoothSentiment(series.Points, 1))
	lines = append(lines, renderBaselineChart(ordered, 0, m.contentWidth(), sentimentRows, t.Success, t.Error))
	return strings.Join(lines, "\n")
}

func (m Model) viewFreshness() string {
	t := theme.Default
	names := []string{queries.ResourcePositions, queries.ResourceTrades, queries.ResourcePerformance, queries.ResourceSentiment}

	parts := make([]string, 0, len(names))
	for _, name := range names {
		f, ok := m.view.Freshness[name]
		if !ok {
			continue
		}
		parts = append(parts, freshnessLabel(name, f, m.view.GeneratedAt, t))
	}
	return strings.Join(parts, muted("  ·  "))
}

func freshnessLabel(name string, f reconcile.Freshness, now time.Time, t theme.Theme) string {
	switch {
	case f.Error != "" && f.Ready:
		return lipgloss.NewStyle().Foreground(t.Warning).Render(fmt.Sprintf("%s stale (%s)", name, formatAge(now.Sub(f.UpdatedAt))))
	case f.Error != "":
		return lipgloss.NewStyle().Foreground(t.Error).Render(name + " unavailable")
	case !f.Ready:
		return muted(name + " loading")
	default:
		return muted(fmt.Sprintf("%s %s", name, formatAge(now.Sub(f.UpdatedAt))))
	}
}

func (m Model) viewFooter() string {
	t := theme.Default
	help := make([]string, 0, 4)
	for _, b := range keys.help() {
		h := b.Help()
		help = append(help, fmt.Sprintf("%s %s", h.Key, h.Desc))
	}
	line := muted(strings.Join(help, " · "))
	if m.notice != "" {
		line += "   " + lipgloss.NewStyle().Foreground(t.Info).Render(m.notice)
	}
	return lipgloss.NewStyle().Padding(0, 2).Render(line)
}
