package catalog

import (
	"errors"
	"fmt"

	"github.com/levenlabs/go-lflag"
	"github.com/shopspring/decimal"
	"github.com/sunsizer/sunsizer/pkg/types"
)

// ErrUnknownComponent is returned when a selection names a component that is
// not in the catalog.
var ErrUnknownComponent = errors.New("unknown catalog component")

// Catalog holds the component price list. It is read-only reference data:
// populated once at startup (built-in defaults, optionally overridden by
// flag) and never mutated by request handling.
type Catalog struct {
	data types.Catalog
}

// Configured sets up the catalog. A JSON flag can replace the built-in
// defaults wholesale, e.g. to load a distributor's current price list.
func Configured() *Catalog {
	c := &Catalog{}
	data := defaultCatalog()
	lflag.JSON(&data, "catalog", data, "JSON component catalog overriding the built-in price list")

	lflag.Do(func() {
		c.data = data
	})

	return c
}

// New creates a catalog from the given data. This is primarily used for testing.
func New(data types.Catalog) *Catalog {
	return &Catalog{data: data}
}

// Components returns the catalog contents. Hidden specs are filtered out
// unless includeHidden is set.
func (c *Catalog) Components(includeHidden bool) types.Catalog {
	if includeHidden {
		return c.data
	}
	var out types.Catalog
	for _, p := range c.data.Panels {
		if !p.Hidden {
			out.Panels = append(out.Panels, p)
		}
	}
	for _, b := range c.data.Batteries {
		if !b.Hidden {
			out.Batteries = append(out.Batteries, b)
		}
	}
	for _, i := range c.data.Inverters {
		if !i.Hidden {
			out.Inverters = append(out.Inverters, i)
		}
	}
	return out
}

// Panel returns the panel spec with the given name.
func (c *Catalog) Panel(name string) (types.PanelSpec, error) {
	for _, p := range c.data.Panels {
		if p.Name == name {
			return p, nil
		}
	}
	return types.PanelSpec{}, fmt.Errorf("%w: panel %q", ErrUnknownComponent, name)
}

// Battery returns the battery spec with the given name.
func (c *Catalog) Battery(name string) (types.BatterySpec, error) {
	for _, b := range c.data.Batteries {
		if b.Name == name {
			return b, nil
		}
	}
	return types.BatterySpec{}, fmt.Errorf("%w: battery %q", ErrUnknownComponent, name)
}

// Inverter returns the inverter spec with the given name.
func (c *Catalog) Inverter(name string) (types.InverterSpec, error) {
	for _, i := range c.data.Inverters {
		if i.Name == name {
			return i, nil
		}
	}
	return types.InverterSpec{}, fmt.Errorf("%w: inverter %q", ErrUnknownComponent, name)
}

// defaultCatalog is the built-in price list. Prices are in the local
// currency unit; callers treat them as plain magnitudes.
func defaultCatalog() types.Catalog {
	return types.Catalog{
		Panels: []types.PanelSpec{
			{Name: "Mono 250W", RatedWatts: 250, VMP: 30.5, UnitPrice: decimal.NewFromInt(85000)},
			{Name: "Mono 300W", RatedWatts: 300, VMP: 32.2, UnitPrice: decimal.NewFromInt(100000)},
			{Name: "Mono 350W", RatedWatts: 350, VMP: 38.4, UnitPrice: decimal.NewFromInt(120000)},
			{Name: "Mono 400W", RatedWatts: 400, VMP: 41.7, UnitPrice: decimal.NewFromInt(135000)},
		},
		Batteries: []types.BatterySpec{
			{Name: "Lead-Acid 225Ah", CapacityAH: 225, UnitPrice: decimal.NewFromInt(250000)},
			{Name: "Lithium 200Ah", CapacityAH: 200, UnitPrice: decimal.NewFromInt(280000)},
		},
		Inverters: []types.InverterSpec{
			{Name: "1kW Pure Sine", RatedWatts: 1000, RatedVoltage: 12, UnitPrice: decimal.NewFromInt(200000)},
			{Name: "1.5kW Pure Sine", RatedWatts: 1500, RatedVoltage: 24, UnitPrice: decimal.NewFromInt(280000)},
			{Name: "2.5kW Pure Sine", RatedWatts: 2500, RatedVoltage: 24, UnitPrice: decimal.NewFromInt(420000)},
			{Name: "3.5kW Hybrid", RatedWatts: 3500, RatedVoltage: 48, UnitPrice: decimal.NewFromInt(550000)},
			{Name: "5kW Hybrid", RatedWatts: 5000, RatedVoltage: 48, UnitPrice: decimal.NewFromInt(800000)},
		},
	}
}
