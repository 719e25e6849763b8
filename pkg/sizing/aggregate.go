package sizing

import "github.com/sunsizer/sunsizer/pkg/types"

// Aggregate reduces an ordered list of load entries to the total
// instantaneous draw and total daily energy. An empty list yields zero
// totals, which is a valid "no loads yet" state; downstream stages treat a
// zero aggregate as not computable rather than as a zero-load system.
//
// Entries are assumed valid (see types.LoadEntry.Validate); the aggregator
// itself is purely arithmetic and rejects nothing.
func Aggregate(entries []types.LoadEntry) types.AggregateLoad {
	var load types.AggregateLoad
	for _, e := range entries {
		load.TotalInstantWatts += e.TotalWatts()
		load.TotalDailyEnergyWH += e.DailyEnergyWH()
	}
	return load
}
