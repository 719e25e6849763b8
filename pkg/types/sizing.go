package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// AggregateLoad is the reduction of a session's load entries. It is derived
// data: recomputed whenever the load set changes, never cached across a
// change.
type AggregateLoad struct {
	// TotalInstantWatts is the sum of unitWatts*quantity over all entries.
	TotalInstantWatts float64 `json:"totalInstantWatts"`
	// TotalDailyEnergyWH is the sum of unitWatts*quantity*hoursPerDay.
	TotalDailyEnergyWH float64 `json:"totalDailyEnergyWH"`
}

// SizingResult holds the derived system sizing. All quantities are
// real-valued; rounding to purchasable unit counts happens in the cost
// estimator, never here.
type SizingResult struct {
	// EnergyRequiredWH is the storage energy needed to carry the load for
	// the backup window, including inverter conversion loss.
	EnergyRequiredWH float64 `json:"energyRequiredWH"`
	// RequiredBatteryAH is the usable capacity needed at the bank voltage.
	RequiredBatteryAH  float64 `json:"requiredBatteryAH"`
	BatteryUnitsNeeded float64 `json:"batteryUnitsNeeded"`
	// RequiredPVWatts is the array power needed to replenish
	// EnergyRequiredWH within the recharge window.
	RequiredPVWatts float64 `json:"requiredPVWatts"`
	PanelsNeeded    float64 `json:"panelsNeeded"`
	// ControllerCurrentAmps is the PV-side current the charge controller
	// must handle, including the safety factor.
	ControllerCurrentAmps    float64 `json:"controllerCurrentAmps"`
	RecommendedInverterWatts float64 `json:"recommendedInverterWatts"`
	// RechargeWindowHours echoes the window the PV formula used.
	RechargeWindowHours float64 `json:"rechargeWindowHours"`
}

// CostBreakdown is the itemized estimate for a sizing result. Purchased
// counts are the sizing requirements rounded up to whole units.
type CostBreakdown struct {
	BatteryUnits int `json:"batteryUnits"`
	PanelUnits   int `json:"panelUnits"`

	BatteryCost      decimal.Decimal `json:"batteryCost"`
	SolarCost        decimal.Decimal `json:"solarCost"`
	InverterCost     decimal.Decimal `json:"inverterCost"`
	InstallationCost decimal.Decimal `json:"installationCost"`
	TotalCost        decimal.Decimal `json:"totalCost"`
}

// CostPolicy holds the installation pricing constants used by the estimator.
type CostPolicy struct {
	InstallRate    float64         `json:"installRate"`
	MinInstallCost decimal.Decimal `json:"minInstallCost"`
}

// BatteryBankOption compares the required battery bank across nominal
// voltages, mirroring the comparison table shown on quotes.
type BatteryBankOption struct {
	BatteryVoltage float64 `json:"batteryVoltage"`
	RequiredAH     float64 `json:"requiredAH"`
	UsableKWH      float64 `json:"usableKWH"`
	UnitsNeeded    float64 `json:"unitsNeeded"`
}

// Quote is a point-in-time snapshot of a session's inputs and every derived
// stage, as plain structured data for a rendering collaborator. The core does
// no currency or page formatting.
type Quote struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionID"`
	Timestamp time.Time `json:"timestamp"`

	Client     ClientInfo   `json:"client"`
	Entries    []LoadEntry  `json:"entries"`
	Config     SizingConfig `json:"config"`
	Selections Selections   `json:"selections"`

	Load               AggregateLoad       `json:"load"`
	Sizing             SizingResult        `json:"sizing"`
	Cost               CostBreakdown       `json:"cost"`
	BatteryBankOptions []BatteryBankOption `json:"batteryBankOptions"`
}
