package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadEntryDerived(t *testing.T) {
	e := LoadEntry{Name: "LED light", UnitWatts: 60, Quantity: 4, HoursPerDay: 5}
	assert.Equal(t, 240.0, e.TotalWatts())
	assert.Equal(t, 1200.0, e.DailyEnergyWH())
}

func TestLoadEntryValidate(t *testing.T) {
	valid := LoadEntry{Name: "Fridge", UnitWatts: 150, Quantity: 1, HoursPerDay: 24}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name  string
		entry LoadEntry
	}{
		{"missing name", LoadEntry{UnitWatts: 10, Quantity: 1, HoursPerDay: 1}},
		{"negative watts", LoadEntry{Name: "x", UnitWatts: -1, Quantity: 1, HoursPerDay: 1}},
		{"zero quantity", LoadEntry{Name: "x", UnitWatts: 10, Quantity: 0, HoursPerDay: 1}},
		{"hours over 24", LoadEntry{Name: "x", UnitWatts: 10, Quantity: 1, HoursPerDay: 25}},
		{"negative hours", LoadEntry{Name: "x", UnitWatts: 10, Quantity: 1, HoursPerDay: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.entry.Validate())
		})
	}
}
