package types

import (
	"fmt"
	"time"
)

// ClientInfo identifies the customer a planning session belongs to. It is
// carried through to generated quotes verbatim.
type ClientInfo struct {
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	Address         string `json:"address"`
	ProjectLocation string `json:"projectLocation"`
}

// LoadEntry is one appliance/circuit line item in the load audit. Entries are
// never mutated in place; an edit is a remove followed by a re-add.
type LoadEntry struct {
	Name        string  `json:"name"`
	UnitWatts   float64 `json:"unitWatts"`
	Quantity    int     `json:"quantity"`
	HoursPerDay float64 `json:"hoursPerDay"`
}

// TotalWatts returns the instantaneous draw of all units of this entry.
func (e LoadEntry) TotalWatts() float64 {
	return e.UnitWatts * float64(e.Quantity)
}

// DailyEnergyWH returns the daily energy consumption of this entry in Wh.
func (e LoadEntry) DailyEnergyWH() float64 {
	return e.TotalWatts() * e.HoursPerDay
}

// Validate checks the entry constraints. The aggregator assumes entries were
// validated when they were constructed.
func (e LoadEntry) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("load entry requires a name")
	}
	if e.UnitWatts < 0 {
		return fmt.Errorf("load entry %q: unit watts cannot be negative", e.Name)
	}
	if e.Quantity < 1 {
		return fmt.Errorf("load entry %q: quantity must be at least 1", e.Name)
	}
	if e.HoursPerDay < 0 || e.HoursPerDay > 24 {
		return fmt.Errorf("load entry %q: hours per day must be between 0 and 24", e.Name)
	}
	return nil
}

// Selections holds the catalog component names chosen for a session. An empty
// name means nothing has been selected yet.
type Selections struct {
	Battery  string `json:"battery"`
	Panel    string `json:"panel"`
	Inverter string `json:"inverter"`
}

// Session is one customer's planning state: the load audit, the sizing
// configuration, and the chosen catalog components. Sessions are fully
// isolated from each other; every derived result is recomputed from the
// session's current inputs on each request.
type Session struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	OwnerID string     `json:"ownerID,omitempty"`
	Client  ClientInfo `json:"client"`

	// Entries are kept in insertion order, which is also display order.
	Entries []LoadEntry `json:"entries"`

	Config SizingConfig `json:"config"`
	// ConfigVersion tracks which defaults have been applied to Config.
	ConfigVersion int        `json:"configVersion"`
	Selections    Selections `json:"selections"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// User represents an authenticated user of the system.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Admin bool   `json:"-"`
}
