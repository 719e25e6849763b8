package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CurrentSizingConfigVersion is the current version of the sizing config.
// Increment this value when adding new fields that require default values.
const CurrentSizingConfigVersion = 4

// ChargeMode selects which window the PV array must replenish the battery
// bank within.
type ChargeMode string

const (
	// ChargeModeSunHours replenishes across the daily peak sun-hours.
	ChargeModeSunHours ChargeMode = "sunHours"
	// ChargeModeFastRecharge replenishes within a fixed recharge window,
	// e.g. from a generator or during a short grid availability window.
	ChargeModeFastRecharge ChargeMode = "fastRecharge"
)

// SizingConfig holds the session-scoped sizing parameters. All ratios and
// durations the formulas divide by must be strictly positive; the sizing
// engine rejects anything else instead of producing Inf/NaN.
type SizingConfig struct {
	// InverterEfficiency is the DC->AC conversion efficiency, (0, 1].
	InverterEfficiency float64 `json:"inverterEfficiency"`
	// SystemEfficiency is the PV->battery path efficiency, (0, 1].
	SystemEfficiency float64 `json:"systemEfficiency"`

	// BackupHours is the required autonomy duration.
	BackupHours float64 `json:"backupHours"`
	// BatteryVoltage is the nominal bank voltage (commonly 12, 24 or 48).
	BatteryVoltage float64 `json:"batteryVoltage"`
	// DepthOfDischarge is the usable fraction of rated capacity, (0, 1].
	DepthOfDischarge float64 `json:"depthOfDischarge"`

	SunHoursPerDay    float64    `json:"sunHoursPerDay"`
	FastRechargeHours float64    `json:"fastRechargeHours"`
	ChargeMode        ChargeMode `json:"chargeMode"`

	// SafetyFactor is applied to the charge controller current.
	SafetyFactor float64 `json:"safetyFactor"`
	// SurgeFactor covers appliance startup spikes when sizing the inverter.
	SurgeFactor      float64 `json:"surgeFactor"`
	MinInverterWatts float64 `json:"minInverterWatts"`

	// Installation pricing policy. These are observed quotation defaults,
	// not hardcoded law; they live in configuration so they can change.
	InstallRate    float64         `json:"installRate"`
	MinInstallCost decimal.Decimal `json:"minInstallCost"`
}

// RechargeWindowHours resolves the charge mode into the single recharge
// window the PV formula divides by.
func (c SizingConfig) RechargeWindowHours() float64 {
	if c.ChargeMode == ChargeModeFastRecharge {
		return c.FastRechargeHours
	}
	return c.SunHoursPerDay
}

// MigrateSizingConfig migrates the config to the current version, filling in
// defaults for fields added since the given version. It returns the migrated
// config, whether anything changed, and an error if migration failed.
func MigrateSizingConfig(c SizingConfig, currentVersion int) (SizingConfig, bool, error) {
	if currentVersion >= CurrentSizingConfigVersion {
		return c, false, nil
	}

	migrated := false
	for version := currentVersion + 1; version <= CurrentSizingConfigVersion; version++ {
		switch version {
		case 1:
			// version 1: initial sizing defaults
			if c.InverterEfficiency == 0 {
				c.InverterEfficiency = 0.95
				migrated = true
			}
			if c.SystemEfficiency == 0 {
				c.SystemEfficiency = 0.75
				migrated = true
			}
			if c.DepthOfDischarge == 0 {
				c.DepthOfDischarge = 0.8
				migrated = true
			}
			if c.BatteryVoltage == 0 {
				c.BatteryVoltage = 24
				migrated = true
			}
			if c.BackupHours == 0 {
				c.BackupHours = 4
				migrated = true
			}
			if c.SunHoursPerDay == 0 {
				c.SunHoursPerDay = 5
				migrated = true
			}
		case 2:
			// version 2: controller and inverter margins
			if c.SafetyFactor == 0 {
				c.SafetyFactor = 1.25
				migrated = true
			}
			if c.SurgeFactor == 0 {
				c.SurgeFactor = 1.3
				migrated = true
			}
			if c.MinInverterWatts == 0 {
				c.MinInverterWatts = 1000
				migrated = true
			}
		case 3:
			// version 3: installation pricing policy
			if c.InstallRate == 0 {
				c.InstallRate = 0.20
				migrated = true
			}
			if c.MinInstallCost.IsZero() {
				c.MinInstallCost = decimal.NewFromInt(150000)
				migrated = true
			}
		case 4:
			// version 4: charge mode selection
			if c.ChargeMode == "" {
				c.ChargeMode = ChargeModeSunHours
				migrated = true
			}
			if c.FastRechargeHours == 0 {
				c.FastRechargeHours = 4
				migrated = true
			}
		default:
			return c, false, fmt.Errorf("unknown sizing config version: %d", version)
		}
	}

	return c, migrated, nil
}
