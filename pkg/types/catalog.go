package types

import "github.com/shopspring/decimal"

// PanelSpec describes one purchasable solar panel model.
type PanelSpec struct {
	Name       string          `json:"name"`
	RatedWatts float64         `json:"ratedWatts"`
	// VMP is the rated voltage at maximum power, used by callers that do
	// string sizing. Optional.
	VMP       float64         `json:"vmp,omitempty"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Hidden    bool            `json:"hidden,omitempty"`
}

// BatterySpec describes one purchasable battery unit.
type BatterySpec struct {
	Name       string          `json:"name"`
	CapacityAH float64         `json:"capacityAH"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Hidden     bool            `json:"hidden,omitempty"`
}

// InverterSpec describes one purchasable inverter model.
type InverterSpec struct {
	Name         string          `json:"name"`
	RatedWatts   float64         `json:"ratedWatts"`
	RatedVoltage float64         `json:"ratedVoltage"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	Hidden       bool            `json:"hidden,omitempty"`
}

// Catalog is the read-only component reference data supplied externally.
// The core never mutates or computes it.
type Catalog struct {
	Panels    []PanelSpec    `json:"panels"`
	Batteries []BatterySpec  `json:"batteries"`
	Inverters []InverterSpec `json:"inverters"`
}
