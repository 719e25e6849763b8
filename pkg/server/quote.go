package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sunsizer/sunsizer/pkg/log"
	"github.com/sunsizer/sunsizer/pkg/sizing"
	"github.com/sunsizer/sunsizer/pkg/types"
)

// bankComparisonVoltages are the nominal bank voltages shown in the quote's
// comparison table.
var bankComparisonVoltages = []float64{12, 24, 48}

func (s *Server) handleCreateQuote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := s.getSessionID(r)

	ss, err := s.sizeSession(ctx, sessionID, true)
	if err != nil {
		s.writeSizingError(ctx, w, err)
		return
	}

	cost, err := sizing.EstimateCost(ss.result, ss.battery, ss.panel, ss.inverter, types.CostPolicy{
		InstallRate:    ss.session.Config.InstallRate,
		MinInstallCost: ss.session.Config.MinInstallCost,
	})
	if err != nil {
		s.writeSizingError(ctx, w, err)
		return
	}

	options, err := sizing.BankOptions(ss.result.EnergyRequiredWH, ss.session.Config.DepthOfDischarge, ss.battery.CapacityAH, bankComparisonVoltages)
	if err != nil {
		s.writeSizingError(ctx, w, err)
		return
	}

	// quote documents are keyed by second-resolution timestamps, so two
	// quotes in the same second would overwrite each other
	latest, err := s.storage.GetLatestQuoteTime(ctx, sessionID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get latest quote time", slog.Any("error", err))
		writeJSONError(w, "failed to save quote", http.StatusInternalServerError)
		return
	}
	now := time.Now().UTC()
	if !latest.IsZero() && !now.Truncate(time.Second).After(latest.Truncate(time.Second)) {
		writeJSONError(w, "a quote was just created for this session, try again shortly", http.StatusTooManyRequests)
		return
	}

	quote := types.Quote{
		ID:                 uuid.NewString(),
		SessionID:          sessionID,
		Timestamp:          now,
		Client:             ss.session.Client,
		Entries:            ss.session.Entries,
		Config:             ss.session.Config,
		Selections:         ss.session.Selections,
		Load:               ss.load,
		Sizing:             ss.result,
		Cost:               cost,
		BatteryBankOptions: options,
	}
	if err := s.storage.InsertQuote(ctx, quote); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save quote", slog.Any("error", err))
		writeJSONError(w, "failed to save quote", http.StatusInternalServerError)
		return
	}

	log.Ctx(ctx).InfoContext(ctx, "quote created",
		slog.String("quoteID", quote.ID),
		slog.String("sessionID", sessionID),
		slog.String("totalCost", cost.TotalCost.String()),
	)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(quote); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleQuoteHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := s.getSessionID(r)
	start, end, err := parseQuoteTimeRange(r)
	if err != nil {
		writeJSONError(w, "invalid time range: "+err.Error(), http.StatusBadRequest)
		return
	}

	quotes, err := s.storage.GetQuoteHistory(ctx, sessionID, start, end)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get quotes", slog.String("sessionID", sessionID), slog.Any("error", err))
		writeJSONError(w, "failed to get quotes", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(struct {
		Quotes []types.Quote `json:"quotes"`
	}{Quotes: quotes}); err != nil {
		panic(http.ErrAbortHandler)
	}
}

// parseQuoteTimeRange parses an RFC3339 start/end query range. Quotes are
// sparse so the window is wider than metric history, but still bounded.
func parseQuoteTimeRange(r *http.Request) (time.Time, time.Time, error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	// a missing bound is defaulted independently: end anchors to now, start
	// anchors 30 days before end
	end := time.Now()
	if endStr != "" {
		var err error
		end, err = time.Parse(time.RFC3339, endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end time: %w", err)
		}
	}

	start := end.Add(-30 * 24 * time.Hour)
	if startStr != "" {
		var err error
		start, err = time.Parse(time.RFC3339, startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start time: %w", err)
		}
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("start time must be before end time")
	}

	if end.Sub(start) > 365*24*time.Hour {
		return time.Time{}, time.Time{}, fmt.Errorf("time range cannot exceed 365 days")
	}

	return start, end, nil
}
