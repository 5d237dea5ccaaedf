package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/sentimentedge/internal/analytics"
	"github.com/aristath/sentimentedge/internal/charts"
	"github.com/aristath/sentimentedge/internal/domain"
	"github.com/aristath/sentimentedge/internal/queries"
	"github.com/aristath/sentimentedge/internal/utils"
)

const (
	defaultSignalLimit = 20
	smoothingPeriod    = 5
	healthProbeTimeout = 2 * time.Second
)

// handleHealth reports the monitor's own liveness plus a quick backend probe
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"service": "sentimentedge-monitor",
	}

	if s.backend != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
		defer cancel()

		backend := map[string]interface{}{
			"breaker": s.backend.BreakerState(),
		}
		if h, err := s.backend.Health(ctx); err != nil {
			backend["status"] = "unreachable"
			backend["error"] = err.Error()
		} else {
			backend["status"] = h.Status
			backend["service"] = h.Service
		}
		response["backend"] = backend
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleView returns the full reconciled view
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.core.View())
}

// handleSignals returns the newest buffered signals
// GET /api/signals?limit=N
func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	limit := defaultSignalLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	signals := s.core.Signals(limit)
	buys, sells := analytics.SignalCounts(signals)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"signals": signals,
		"count":   len(signals),
		"buys":    buys,
		"sells":   sells,
	})
}

// handlePnL returns the cumulative realized P&L curve
func (s *Server) handlePnL(w http.ResponseWriter, r *http.Request) {
	points := s.core.View().CumulativePnL
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"points": points,
		"total":  analytics.FinalPnL(points),
	})
}

// handleTickers returns the active ticker universe and the current sentiment selection
func (s *Server) handleTickers(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"tickers": s.core.View().ActiveTickers,
		"windows": domain.Windows,
	}
	if s.sentiment != nil {
		response["selected"] = s.sentiment.Selection()
	}
	s.writeJSON(w, http.StatusOK, response)
}

// handleSentiment returns the loaded sentiment series with summary and moving average
func (s *Server) handleSentiment(w http.ResponseWriter, r *http.Request) {
	view := s.core.View()
	if view.Sentiment == nil {
		s.writeError(w, http.StatusServiceUnavailable, "sentiment not loaded yet")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"selection": view.Sentiment.Selection,
		"points":    view.Sentiment.Points,
		"summary":   view.SentimentSummary,
		"smoothed":  analytics.SmoothSentiment(view.Sentiment.Points, smoothingPeriod),
		"freshness": view.Freshness[queries.ResourceSentiment],
	})
}

// handleSelectSentiment changes the polled sentiment series
// POST /api/sentiment/select {"ticker": "GME", "window": "15min", "limit": 100}
func (s *Server) handleSelectSentiment(w http.ResponseWriter, r *http.Request) {
	if s.sentiment == nil {
		s.writeError(w, http.StatusNotImplemented, "sentiment selection unavailable")
		return
	}

	var sel queries.SentimentSelection
	if err := json.NewDecoder(r.Body).Decode(&sel); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sel.Ticker = utils.NormalizeTicker(sel.Ticker)
	if sel.Ticker != "" && !contains(s.core.View().ActiveTickers, sel.Ticker) {
		s.writeError(w, http.StatusBadRequest, "ticker is not in the active universe")
		return
	}

	if err := s.sentiment.Select(sel); err != nil {
		if errors.Is(err, domain.ErrInvalid) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"selected": s.sentiment.Selection(),
	})
}

// handleRefresh triggers a refetch of every resource
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.core.Refresh()
	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"message": "Refresh triggered",
	})
}

// handlePnLChart renders the cumulative P&L curve as PNG
func (s *Server) handlePnLChart(w http.ResponseWriter, r *http.Request) {
	png, err := charts.RenderPnLChart(s.core.View().CumulativePnL)
	s.writePNG(w, png, err)
}

// handleSentimentChart renders the selected sentiment series as PNG
func (s *Server) handleSentimentChart(w http.ResponseWriter, r *http.Request) {
	view := s.core.View()
	if view.Sentiment == nil {
		s.writeError(w, http.StatusNotFound, "sentiment not loaded yet")
		return
	}
	points := view.Sentiment.Points
	png, err := charts.RenderSentimentChart(view.Sentiment.Selection.Ticker, points, analytics.SmoothSentiment(points, smoothingPeriod))
	s.writePNG(w, png, err)
}

func (s *Server) writePNG(w http.ResponseWriter, png []byte, err error) {
	if err != nil {
		if errors.Is(err, charts.ErrNotEnoughData) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.log.Error().Err(err).Msg("Failed to render chart")
		s.writeError(w, http.StatusInternalServerError, "chart render failed")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		s.log.Debug().Err(err).Msg("Failed to write chart")
	}
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
