package sizing

import (
	"math"

	"github.com/shopspring/decimal"
	"github.com/sunsizer/sunsizer/pkg/types"
)

// EstimateCost maps a sizing result and the chosen catalog components to an
// itemized cost breakdown. Real-valued unit requirements are rounded UP to
// whole purchasable units here; under-provisioning is the failure mode to
// avoid, so counts never round down.
//
// The inverter is a single selected unit. The caller is responsible for
// choosing one that meets or exceeds the recommended wattage; the estimator
// does not verify the match.
func EstimateCost(
	result types.SizingResult,
	battery types.BatterySpec,
	panel types.PanelSpec,
	inverter types.InverterSpec,
	policy types.CostPolicy,
) (types.CostBreakdown, error) {
	if policy.InstallRate < 0 {
		return types.CostBreakdown{}, invalidConfig("installRate", policy.InstallRate)
	}
	if result.BatteryUnitsNeeded < 0 || result.PanelsNeeded < 0 {
		return types.CostBreakdown{}, invalidConfig("unitsNeeded", math.Min(result.BatteryUnitsNeeded, result.PanelsNeeded))
	}

	batteryUnits := int(math.Ceil(result.BatteryUnitsNeeded))
	panelUnits := int(math.Ceil(result.PanelsNeeded))

	batteryCost := battery.UnitPrice.Mul(decimal.NewFromInt(int64(batteryUnits)))
	solarCost := panel.UnitPrice.Mul(decimal.NewFromInt(int64(panelUnits)))
	inverterCost := inverter.UnitPrice

	subtotal := batteryCost.Add(solarCost).Add(inverterCost)
	installationCost := subtotal.Mul(decimal.NewFromFloat(policy.InstallRate))
	if installationCost.LessThan(policy.MinInstallCost) {
		installationCost = policy.MinInstallCost
	}

	return types.CostBreakdown{
		BatteryUnits:     batteryUnits,
		PanelUnits:       panelUnits,
		BatteryCost:      batteryCost,
		SolarCost:        solarCost,
		InverterCost:     inverterCost,
		InstallationCost: installationCost,
		TotalCost:        subtotal.Add(installationCost),
	}, nil
}
