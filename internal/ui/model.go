// Package ui is the terminal dashboard. It renders copies of the reconciled
// view and never mutates monitor state except through sentiment selection
// and manual refresh.
package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aristath/sentimentedge/internal/queries"
	"github.com/aristath/sentimentedge/internal/reconcile"
)

// Dashboard is the reconciliation core as the TUI sees it
type Dashboard interface {
	View() reconcile.View
	Refresh()
}

// Selector changes the sentiment series being polled
type Selector interface {
	Selection() queries.SentimentSelection
	Select(sel queries.SentimentSelection) error
}

type Model struct {
	core      Dashboard
	sentiment Selector
	apiURL    string

	// Data
	view    reconcile.View
	hasView bool

	// transient footer message
	notice   string
	noticeAt time.Time

	// UI state
	width  int
	height int
	ready  bool

	viewport viewport.Model
}

// Messages

type tickMsg time.Time

type snapshotMsg struct{}

type selectedMsg struct {
	what string
	err  error
}

const (
	renderInterval = time.Second
	noticeTTL      = 4 * time.Second
)

func NewModel(core Dashboard, sentiment Selector, apiURL string) Model {
	return Model{
		core:      core,
		sentiment: sentiment,
		apiURL:    apiURL,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(snapshotCmd(), tickCmd())
}

// Commands

func snapshotCmd() tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg{}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(renderInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func selectCmd(s Selector, sel queries.SentimentSelection, what string) tea.Cmd {
	return func() tea.Msg {
		return selectedMsg{what: what, err: s.Select(sel)}
	}
}
