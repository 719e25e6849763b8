package sizing

import (
	"context"
	"log/slog"
	"math"

	"github.com/sunsizer/sunsizer/pkg/types"
)

// Engine applies the battery/solar/controller/inverter sizing formulas. It is
// stateless: sizing the same inputs twice yields identical results.
type Engine struct {
}

// NewEngine creates a new Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Size derives the system sizing for the given aggregate load.
//
// windowHours is the recharge window the PV array must replenish the storage
// energy within. The caller picks it from the charge mode (fast-recharge
// hours or daily sun-hours); both modes share this one formula.
//
// Inverter conversion loss is accounted for once, in the storage energy
// requirement. The PV->battery system efficiency is accounted for once, in
// the PV replenishment formula. Neither term is folded into the other.
//
// All results are real-valued; rounding up to purchasable unit counts is the
// cost estimator's job.
func (e *Engine) Size(
	ctx context.Context,
	load types.AggregateLoad,
	cfg types.SizingConfig,
	windowHours float64,
	battery types.BatterySpec,
	panel types.PanelSpec,
) (types.SizingResult, error) {
	slog.DebugContext(ctx, "sizing started",
		slog.Float64("totalInstantWatts", load.TotalInstantWatts),
		slog.Float64("totalDailyEnergyWH", load.TotalDailyEnergyWH),
		slog.Float64("backupHours", cfg.BackupHours),
		slog.Float64("windowHours", windowHours),
	)

	if load.TotalInstantWatts == 0 {
		return types.SizingResult{}, ErrEmptyLoadSet
	}

	switch {
	case cfg.InverterEfficiency <= 0 || cfg.InverterEfficiency > 1:
		return types.SizingResult{}, invalidConfig("inverterEfficiency", cfg.InverterEfficiency)
	case cfg.SystemEfficiency <= 0 || cfg.SystemEfficiency > 1:
		return types.SizingResult{}, invalidConfig("systemEfficiency", cfg.SystemEfficiency)
	case cfg.DepthOfDischarge <= 0 || cfg.DepthOfDischarge > 1:
		return types.SizingResult{}, invalidConfig("depthOfDischarge", cfg.DepthOfDischarge)
	case cfg.BatteryVoltage <= 0:
		return types.SizingResult{}, invalidConfig("batteryVoltage", cfg.BatteryVoltage)
	case cfg.BackupHours <= 0:
		return types.SizingResult{}, invalidConfig("backupHours", cfg.BackupHours)
	case windowHours <= 0:
		return types.SizingResult{}, invalidConfig("rechargeWindowHours", windowHours)
	case cfg.SafetyFactor <= 0:
		return types.SizingResult{}, invalidConfig("safetyFactor", cfg.SafetyFactor)
	case cfg.SurgeFactor <= 0:
		return types.SizingResult{}, invalidConfig("surgeFactor", cfg.SurgeFactor)
	case battery.CapacityAH <= 0:
		return types.SizingResult{}, invalidConfig("battery.capacityAH", battery.CapacityAH)
	case panel.RatedWatts <= 0:
		return types.SizingResult{}, invalidConfig("panel.ratedWatts", panel.RatedWatts)
	}

	// Energy the battery must supply during the backup window, grossed up
	// for inverter conversion loss.
	energyRequiredWH := (load.TotalInstantWatts * cfg.BackupHours) / cfg.InverterEfficiency

	// Usable capacity at the bank voltage: Wh = Ah * V * DoD.
	requiredBatteryAH := energyRequiredWH / (cfg.BatteryVoltage * cfg.DepthOfDischarge)
	batteryUnitsNeeded := requiredBatteryAH / battery.CapacityAH

	// PV power to replenish the storage energy within the window.
	requiredPVWatts := energyRequiredWH / (windowHours * cfg.SystemEfficiency)
	panelsNeeded := requiredPVWatts / panel.RatedWatts

	// PV-side current into the charge controller, with safety margin.
	controllerCurrentAmps := (requiredPVWatts / cfg.BatteryVoltage) * cfg.SafetyFactor

	recommendedInverterWatts := math.Max(load.TotalInstantWatts*cfg.SurgeFactor, cfg.MinInverterWatts)

	result := types.SizingResult{
		EnergyRequiredWH:         energyRequiredWH,
		RequiredBatteryAH:        requiredBatteryAH,
		BatteryUnitsNeeded:       batteryUnitsNeeded,
		RequiredPVWatts:          requiredPVWatts,
		PanelsNeeded:             panelsNeeded,
		ControllerCurrentAmps:    controllerCurrentAmps,
		RecommendedInverterWatts: recommendedInverterWatts,
		RechargeWindowHours:      windowHours,
	}

	slog.DebugContext(ctx, "sizing finished",
		slog.Float64("energyRequiredWH", energyRequiredWH),
		slog.Float64("requiredBatteryAH", requiredBatteryAH),
		slog.Float64("requiredPVWatts", requiredPVWatts),
	)

	return result, nil
}

// BankOptions compares the required battery bank across nominal voltages for
// the same storage energy requirement. Used to build the comparison table on
// quotes.
func BankOptions(energyRequiredWH, depthOfDischarge, unitCapacityAH float64, voltages []float64) ([]types.BatteryBankOption, error) {
	if depthOfDischarge <= 0 || depthOfDischarge > 1 {
		return nil, invalidConfig("depthOfDischarge", depthOfDischarge)
	}
	if unitCapacityAH <= 0 {
		return nil, invalidConfig("battery.capacityAH", unitCapacityAH)
	}

	options := make([]types.BatteryBankOption, 0, len(voltages))
	for _, v := range voltages {
		if v <= 0 {
			return nil, invalidConfig("batteryVoltage", v)
		}
		requiredAH := energyRequiredWH / (v * depthOfDischarge)
		options = append(options, types.BatteryBankOption{
			BatteryVoltage: v,
			RequiredAH:     requiredAH,
			UsableKWH:      (requiredAH * v * depthOfDischarge) / 1000,
			UnitsNeeded:    requiredAH / unitCapacityAH,
		})
	}
	return options, nil
}
