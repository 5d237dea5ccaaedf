package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestSide_Valid(t *testing.T) {
	assert.True(t, SideBuy.Valid())
	assert.True(t, SideSell.Valid())
	assert.False(t, Side("HOLD").Valid())
	assert.False(t, Side("buy").Valid())
}

func TestWindow_ValidAndNext(t *testing.T) {
	for _, w := range Windows {
		assert.True(t, w.Valid(), string(w))
	}
	assert.False(t, Window("2min").Valid())

	assert.Equal(t, Window5m, Window1m.Next())
	assert.Equal(t, Window1m, Window1h.Next())
	assert.Equal(t, Window1m, Window("bogus").Next())
}

func TestTrade_DecodeOptionalFields(t *testing.T) {
	raw := `[
		{"id": 1, "ticker": "AAPL", "side": "BUY", "quantity": 10, "price": 150.5, "timestamp": "2024-03-01T14:30:00Z"},
		{"id": 2, "ticker": "AAPL", "side": "SELL", "quantity": 10, "price": 160, "timestamp": "2024-03-02T14:30:00Z", "realized_pnl": 95, "position_id": 7}
	]`

	var trades []Trade
	require.NoError(t, json.Unmarshal([]byte(raw), &trades))
	require.Len(t, trades, 2)

	assert.Nil(t, trades[0].RealizedPnL)
	assert.Nil(t, trades[0].PositionID)
	require.NotNil(t, trades[1].RealizedPnL)
	assert.Equal(t, 95.0, *trades[1].RealizedPnL)
	assert.Equal(t, int64(7), *trades[1].PositionID)
	assert.Equal(t, 1600.0, trades[1].Notional())
	assert.Equal(t, time.Date(2024, 3, 2, 14, 30, 0, 0, time.UTC), trades[1].Timestamp)
}

func TestPerformance_NullSharpe(t *testing.T) {
	var perf Performance
	require.NoError(t, json.Unmarshal([]byte(`{"total_pnl": 12.5, "win_rate": 0.5, "sharpe_ratio": null}`), &perf))
	assert.Nil(t, perf.SharpeRatio)
	assert.Equal(t, 12.5, perf.TotalPnL)
}

func TestPosition_Validate(t *testing.T) {
	assert.NoError(t, Position{Ticker: "TSLA", Quantity: 3}.Validate())

	err := Position{Ticker: "TSLA", Quantity: 0}.Validate()
	assert.True(t, errors.Is(err, ErrInvalid))

	err = Position{Quantity: 1}.Validate()
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestTrade_Validate(t *testing.T) {
	tests := []struct {
		name    string
		trade   Trade
		wantErr bool
	}{
		{"buy without pnl", Trade{Ticker: "GME", Side: SideBuy}, false},
		{"sell with pnl", Trade{Ticker: "GME", Side: SideSell, RealizedPnL: ptr(-3.5)}, false},
		{"buy with pnl", Trade{Ticker: "GME", Side: SideBuy, RealizedPnL: ptr(1.0)}, true},
		{"unknown side", Trade{Ticker: "GME", Side: "SHORT"}, true},
		{"missing ticker", Trade{Side: SideSell}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.trade.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSignal_Validate(t *testing.T) {
	valid := Signal{Ticker: "AAPL", Action: SideBuy, Sentiment: 0.42, MentionCount: 17}
	assert.NoError(t, valid.Validate())

	outOfRange := valid
	outOfRange.Sentiment = 1.5
	assert.ErrorIs(t, outOfRange.Validate(), ErrInvalid)

	badAction := valid
	badAction.Action = "HOLD"
	assert.ErrorIs(t, badAction.Validate(), ErrInvalid)

	negativeMentions := valid
	negativeMentions.MentionCount = -1
	assert.ErrorIs(t, negativeMentions.Validate(), ErrInvalid)
}

func TestPerformance_Validate(t *testing.T) {
	assert.NoError(t, Performance{WinRate: 0.6, TotalTrades: 10}.Validate())
	assert.ErrorIs(t, Performance{WinRate: 1.2}.Validate(), ErrInvalid)
	assert.ErrorIs(t, Performance{WinningTrades: -1}.Validate(), ErrInvalid)
}

func TestPosition_MarketValue(t *testing.T) {
	p := Position{Quantity: 4, CurrentPrice: 25.5}
	assert.Equal(t, 102.0, p.MarketValue())
}
