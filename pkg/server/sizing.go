package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sunsizer/sunsizer/pkg/catalog"
	"github.com/sunsizer/sunsizer/pkg/log"
	"github.com/sunsizer/sunsizer/pkg/sizing"
	"github.com/sunsizer/sunsizer/pkg/types"
)

// sizedSession bundles a session with the fresh outputs of the sizing
// pipeline for it.
type sizedSession struct {
	session  types.Session
	load     types.AggregateLoad
	result   types.SizingResult
	battery  types.BatterySpec
	panel    types.PanelSpec
	inverter types.InverterSpec
}

// sizeSession runs the aggregate and sizing stages for a session. The
// aggregate is always recomputed from the stored entries; nothing derived is
// read back from storage. needInverter requires the inverter selection too,
// for the estimate and quote stages.
func (s *Server) sizeSession(ctx context.Context, sessionID string, needInverter bool) (sizedSession, error) {
	session, err := s.getSessionWithMigration(ctx, sessionID)
	if err != nil {
		return sizedSession{}, err
	}

	ss := sizedSession{session: session}
	ss.load = sizing.Aggregate(session.Entries)

	if session.Selections.Battery == "" || session.Selections.Panel == "" {
		return sizedSession{}, sizing.ErrMissingSelection
	}
	if needInverter && session.Selections.Inverter == "" {
		return sizedSession{}, sizing.ErrMissingSelection
	}

	ss.battery, err = s.catalog.Battery(session.Selections.Battery)
	if err != nil {
		return sizedSession{}, err
	}
	ss.panel, err = s.catalog.Panel(session.Selections.Panel)
	if err != nil {
		return sizedSession{}, err
	}
	if needInverter {
		ss.inverter, err = s.catalog.Inverter(session.Selections.Inverter)
		if err != nil {
			return sizedSession{}, err
		}
	}

	ss.result, err = s.engine.Size(ctx, ss.load, session.Config, session.Config.RechargeWindowHours(), ss.battery, ss.panel)
	if err != nil {
		return sizedSession{}, err
	}
	return ss, nil
}

// writeSizingError maps pipeline failures to corrective responses. Input
// problems get a 4xx telling the caller what to fix; only genuine backend
// failures surface as 500s.
func (s *Server) writeSizingError(ctx context.Context, w http.ResponseWriter, err error) {
	var invalidCfg *sizing.InvalidConfigurationError
	switch {
	case errors.Is(err, sizing.ErrEmptyLoadSet):
		writeJSONError(w, "add at least one load entry before sizing", http.StatusUnprocessableEntity)
	case errors.Is(err, sizing.ErrMissingSelection):
		writeJSONError(w, "choose a battery, panel and inverter from the catalog first", http.StatusUnprocessableEntity)
	case errors.As(err, &invalidCfg):
		writeJSONError(w, fmt.Sprintf("fix the configuration: %v", err), http.StatusUnprocessableEntity)
	case errors.Is(err, catalog.ErrUnknownComponent):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
	default:
		s.writeSessionError(ctx, w, err)
	}
}

type sizingResponse struct {
	Load   types.AggregateLoad `json:"load"`
	Sizing types.SizingResult  `json:"sizing"`
}

func (s *Server) handleSizing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ss, err := s.sizeSession(ctx, s.getSessionID(r), false)
	if err != nil {
		s.writeSizingError(ctx, w, err)
		return
	}

	log.Ctx(ctx).DebugContext(ctx, "sized session",
		slog.Float64("totalInstantWatts", ss.load.TotalInstantWatts),
		slog.Float64("energyRequiredWH", ss.result.EnergyRequiredWH),
	)

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(sizingResponse{
		Load:   ss.load,
		Sizing: ss.result,
	}); err != nil {
		panic(http.ErrAbortHandler)
	}
}

type estimateResponse struct {
	Load   types.AggregateLoad `json:"load"`
	Sizing types.SizingResult  `json:"sizing"`
	Cost   types.CostBreakdown `json:"cost"`
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ss, err := s.sizeSession(ctx, s.getSessionID(r), true)
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

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(estimateResponse{
		Load:   ss.load,
		Sizing: ss.result,
		Cost:   cost,
	}); err != nil {
		panic(http.ErrAbortHandler)
	}
}
