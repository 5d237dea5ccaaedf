package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aristath/sentimentedge/internal/queries"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	rebuild := false

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(m.width, m.height-footerHeight)
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = m.height - footerHeight
		}
		rebuild = true

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, keys.NextTicker), key.Matches(msg, keys.PrevTicker):
			if m.sentiment == nil {
				break
			}
			step := 1
			if key.Matches(msg, keys.PrevTicker) {
				step = -1
			}
			current := m.sentiment.Selection().Ticker
			next := cycle(m.view.ActiveTickers, current, step)
			if next != "" && next != current {
				cmds = append(cmds, selectCmd(m.sentiment, queries.SentimentSelection{Ticker: next}, next))
			}

		case key.Matches(msg, keys.NextWindow):
			if m.sentiment == nil {
				break
			}
			next := m.sentiment.Selection().Window.Next()
			cmds = append(cmds, selectCmd(m.sentiment, queries.SentimentSelection{Window: next}, string(next)))

		case key.Matches(msg, keys.Refresh):
			m.core.Refresh()
			m.setNotice("Refresh requested")
			rebuild = true
		}

	case selectedMsg:
		if msg.err != nil {
			m.setNotice(fmt.Sprintf("Selection failed: %v", msg.err))
		} else {
			m.setNotice("Sentiment: " + msg.what)
		}
		rebuild = true

	case snapshotMsg:
		m.refreshView()
		rebuild = true

	case tickMsg:
		m.refreshView()
		rebuild = true
		cmds = append(cmds, tickCmd())
	}

	if m.ready {
		if rebuild {
			m.viewport.SetContent(m.renderContent())
		}
		switch msg.(type) {
		case tickMsg, snapshotMsg:
		default:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) refreshView() {
	m.view = m.core.View()
	m.hasView = true
	if !m.noticeAt.IsZero() && time.Since(m.noticeAt) > noticeTTL {
		m.notice = ""
		m.noticeAt = time.Time{}
	}
}

func (m *Model) setNotice(s string) {
	m.notice = s
	m.noticeAt = time.Now()
}

// cycle returns the ticker step positions away from current, wrapping around.
// An unknown current selects the first ticker.
func cycle(tickers []string, current string, step int) string {
	if len(tickers) == 0 {
		return ""
	}
	for i, t := range tickers {
		if t == current {
			n := len(tickers)
			return tickers[((i+step)%n+n)%n]
		}
	}
	return tickers[0]
}
