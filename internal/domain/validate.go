package domain

import (
	"errors"
	"fmt"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid payload")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks the shape of a position snapshot entry
func (p Position) Validate() error {
	if p.Ticker == "" {
		return invalid("position ticker is empty")
	}
	if p.Quantity <= 0 {
		return invalid("position %s quantity %d must be positive", p.Ticker, p.Quantity)
	}
	return nil
}

// Validate checks the shape of a trade
func (t Trade) Validate() error {
	if t.Ticker == "" {
		return invalid("trade ticker is empty")
	}
	if !t.Side.Valid() {
		return invalid("trade %d has unknown side %q", t.ID, t.Side)
	}
	if t.Side == SideBuy && t.RealizedPnL != nil {
		return invalid("trade %d: realized P&L on a BUY", t.ID)
	}
	return nil
}

// Validate checks the shape of a pushed signal
func (s Signal) Validate() error {
	if s.Ticker == "" {
		return invalid("signal ticker is empty")
	}
	if !s.Action.Valid() {
		return invalid("signal %s has unknown action %q", s.Ticker, s.Action)
	}
	if s.Sentiment < -1 || s.Sentiment > 1 {
		return invalid("signal %s sentiment %.3f outside [-1, 1]", s.Ticker, s.Sentiment)
	}
	if s.MentionCount < 0 {
		return invalid("signal %s mention count is negative", s.Ticker)
	}
	return nil
}

// Validate checks the shape of a performance record
func (p Performance) Validate() error {
	if p.WinRate < 0 || p.WinRate > 1 {
		return invalid("win rate %.3f outside [0, 1]", p.WinRate)
	}
	if p.WinningTrades < 0 || p.LosingTrades < 0 || p.TotalTrades < 0 {
		return invalid("trade counts must be non-negative")
	}
	return nil
}
