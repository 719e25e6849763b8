package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/sunsizer/sunsizer/pkg/log"
	"github.com/sunsizer/sunsizer/pkg/types"
)

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, err := s.getSessionWithMigration(ctx, s.getSessionID(r))
	if err != nil {
		s.writeSessionError(ctx, w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(session.Config); err != nil {
		panic(http.ErrAbortHandler)
	}
}

type updateConfigRequest struct {
	SessionID string             `json:"sessionID"`
	Config    types.SizingConfig `json:"config"`
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode config", slog.Any("error", err))
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	cfg := req.Config

	if cfg.InverterEfficiency <= 0 || cfg.InverterEfficiency > 1 {
		writeJSONError(w, "inverter efficiency must be between 0 and 1", http.StatusBadRequest)
		return
	}
	if cfg.SystemEfficiency <= 0 || cfg.SystemEfficiency > 1 {
		writeJSONError(w, "system efficiency must be between 0 and 1", http.StatusBadRequest)
		return
	}
	if cfg.DepthOfDischarge <= 0 || cfg.DepthOfDischarge > 1 {
		writeJSONError(w, "depth of discharge must be between 0 and 1", http.StatusBadRequest)
		return
	}
	if cfg.BackupHours <= 0 {
		writeJSONError(w, "backup hours must be positive", http.StatusBadRequest)
		return
	}
	if cfg.BatteryVoltage <= 0 {
		writeJSONError(w, "battery voltage must be positive", http.StatusBadRequest)
		return
	}
	if cfg.SunHoursPerDay <= 0 {
		writeJSONError(w, "sun hours per day must be positive", http.StatusBadRequest)
		return
	}
	if cfg.FastRechargeHours <= 0 {
		writeJSONError(w, "fast recharge hours must be positive", http.StatusBadRequest)
		return
	}
	if cfg.ChargeMode != types.ChargeModeSunHours && cfg.ChargeMode != types.ChargeModeFastRecharge {
		writeJSONError(w, "charge mode must be sunHours or fastRecharge", http.StatusBadRequest)
		return
	}
	if cfg.SafetyFactor <= 1 {
		writeJSONError(w, "safety factor must be greater than 1", http.StatusBadRequest)
		return
	}
	if cfg.SurgeFactor <= 1 {
		writeJSONError(w, "surge factor must be greater than 1", http.StatusBadRequest)
		return
	}
	if cfg.MinInverterWatts < 0 {
		writeJSONError(w, "minimum inverter watts cannot be negative", http.StatusBadRequest)
		return
	}
	if cfg.InstallRate < 0 {
		writeJSONError(w, "installation rate cannot be negative", http.StatusBadRequest)
		return
	}
	if cfg.MinInstallCost.IsNegative() {
		writeJSONError(w, "minimum installation cost cannot be negative", http.StatusBadRequest)
		return
	}

	session, err := s.getSessionWithMigration(ctx, s.getSessionID(r))
	if err != nil {
		s.writeSessionError(ctx, w, err)
		return
	}

	session.Config = cfg
	session.ConfigVersion = types.CurrentSizingConfigVersion
	session.UpdatedAt = time.Now().UTC()
	if err := s.storage.UpdateSession(ctx, session); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save config", slog.Any("error", err))
		writeJSONError(w, "failed to save config", http.StatusInternalServerError)
		return
	}

	log.Ctx(ctx).InfoContext(ctx, "config updated", slog.String("sessionID", session.ID))

	w.WriteHeader(http.StatusOK)
}

type updateSelectionsRequest struct {
	SessionID  string           `json:"sessionID"`
	Selections types.Selections `json:"selections"`
}

func (s *Server) handleUpdateSelections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateSelectionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode selections", slog.Any("error", err))
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// empty names clear a selection, non-empty names must exist in the catalog
	if req.Selections.Battery != "" {
		if _, err := s.catalog.Battery(req.Selections.Battery); err != nil {
			writeJSONError(w, "unknown battery: "+req.Selections.Battery, http.StatusBadRequest)
			return
		}
	}
	if req.Selections.Panel != "" {
		if _, err := s.catalog.Panel(req.Selections.Panel); err != nil {
			writeJSONError(w, "unknown panel: "+req.Selections.Panel, http.StatusBadRequest)
			return
		}
	}
	if req.Selections.Inverter != "" {
		if _, err := s.catalog.Inverter(req.Selections.Inverter); err != nil {
			writeJSONError(w, "unknown inverter: "+req.Selections.Inverter, http.StatusBadRequest)
			return
		}
	}

	session, err := s.getSessionWithMigration(ctx, s.getSessionID(r))
	if err != nil {
		s.writeSessionError(ctx, w, err)
		return
	}

	session.Selections = req.Selections
	session.UpdatedAt = time.Now().UTC()
	if err := s.storage.UpdateSession(ctx, session); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save selections", slog.Any("error", err))
		writeJSONError(w, "failed to save selections", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
