package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/levenlabs/go-lflag"
	"github.com/sunsizer/sunsizer/pkg/catalog"
	"github.com/sunsizer/sunsizer/pkg/log"
	"github.com/sunsizer/sunsizer/pkg/sizing"
	"github.com/sunsizer/sunsizer/pkg/storage"
	"github.com/sunsizer/sunsizer/pkg/types"
)

// seeds a demo session and a week of quotes into the firestore emulator so
// the API has something to show during development
func main() {
	os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	c := catalog.Configured()
	s := storage.Configured()
	lflag.Configure()

	ctx := context.Background()

	log.Ctx(ctx).InfoContext(ctx, "seeding mock data")

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	cfg, _, err := types.MigrateSizingConfig(types.SizingConfig{}, 0)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to build default config", "error", err)
		os.Exit(1)
	}

	now := time.Now().UTC()
	session := types.Session{
		ID:      uuid.NewString(),
		Name:    "Demo Residence",
		OwnerID: "",
		Client: types.ClientInfo{
			Name:            "Demo Client",
			Phone:           "+2348000000000",
			Email:           "demo@example.com",
			Address:         "12 Harbour Rd",
			ProjectLocation: "Lagos",
		},
		Entries: []types.LoadEntry{
			{Name: "Ceiling fans", UnitWatts: 75, Quantity: 4, HoursPerDay: 10},
			{Name: "LED bulbs", UnitWatts: 9, Quantity: 12, HoursPerDay: 6},
			{Name: "Refrigerator", UnitWatts: 200, Quantity: 1, HoursPerDay: 24},
			{Name: "Television", UnitWatts: 120, Quantity: 2, HoursPerDay: 5},
			{Name: "Laptop", UnitWatts: 65, Quantity: 2, HoursPerDay: 8},
		},
		Config:        cfg,
		ConfigVersion: types.CurrentSizingConfigVersion,
		Selections: types.Selections{
			Battery:  "Lead-Acid 225Ah",
			Panel:    "Mono 300W",
			Inverter: "1.5kW Pure Sine",
		},
		CreatedAt: now.Add(-7 * 24 * time.Hour),
		UpdatedAt: now,
	}
	if err := s.CreateSession(ctx, session); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed session", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Seeded session %s (%s)\n", session.ID, session.Name)

	battery, err := c.Battery(session.Selections.Battery)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to resolve battery", "error", err)
		os.Exit(1)
	}
	panel, err := c.Panel(session.Selections.Panel)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to resolve panel", "error", err)
		os.Exit(1)
	}
	inverter, err := c.Inverter(session.Selections.Inverter)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to resolve inverter", "error", err)
		os.Exit(1)
	}

	engine := sizing.NewEngine()

	// one quote per day for the past week, walking the backup hours around to
	// simulate the client changing their mind
	for day := 7; day >= 1; day-- {
		ts := now.Add(-time.Duration(day) * 24 * time.Hour)

		quoteCfg := cfg
		quoteCfg.BackupHours = float64(2 + rng.Intn(8))

		load := sizing.Aggregate(session.Entries)
		result, err := engine.Size(ctx, load, quoteCfg, quoteCfg.RechargeWindowHours(), battery, panel)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to size seeded quote", "error", err)
			os.Exit(1)
		}

		cost, err := sizing.EstimateCost(result, battery, panel, inverter, types.CostPolicy{
			InstallRate:    quoteCfg.InstallRate,
			MinInstallCost: quoteCfg.MinInstallCost,
		})
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to estimate seeded quote", "error", err)
			os.Exit(1)
		}

		options, err := sizing.BankOptions(result.EnergyRequiredWH, quoteCfg.DepthOfDischarge, battery.CapacityAH, []float64{12, 24, 48})
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to build bank options", "error", err)
			os.Exit(1)
		}

		quote := types.Quote{
			ID:                 uuid.NewString(),
			SessionID:          session.ID,
			Timestamp:          ts,
			Client:             session.Client,
			Entries:            session.Entries,
			Config:             quoteCfg,
			Selections:         session.Selections,
			Load:               load,
			Sizing:             result,
			Cost:               cost,
			BatteryBankOptions: options,
		}
		if err := s.InsertQuote(ctx, quote); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to seed quote", "error", err)
			os.Exit(1)
		}

		fmt.Printf("Seeded quote at %s: %.0fh backup, %.0fW PV, total %s\n",
			ts.Format(time.RFC3339), quoteCfg.BackupHours, result.RequiredPVWatts, cost.TotalCost.String())
	}

	log.Ctx(ctx).InfoContext(ctx, "seeded mock data successfully")
}
