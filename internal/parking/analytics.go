package parking

import (
	"sort"
	"time"
)

type ClassCount struct {
	Class VehicleClass `json:"type"`
	Count int          `json:"count"`
}

// Stats is recomputed from the ledger on every call; nothing is cached.
type Stats struct {
	TotalSpots        int          `json:"total_spots"`
	Occupied          int          `json:"occupied"`
	Reserved          int          `json:"reserved"`
	Available         int          `json:"available"`
	OccupancyRate     float64      `json:"occupancy_rate"`
	TodayRevenue      float64      `json:"today_revenue"`
	TotalRevenue      float64      `json:"total_revenue"`
	Transactions      int          `json:"transactions"`
	AverageDuration   float64      `json:"average_duration_hours"`
	CurrentByClass    []ClassCount `json:"current_by_type"`
	HistoricalByClass []ClassCount `json:"historical_by_type"`
}

func (l *Ledger) Aggregate() Stats {
	stats := Stats{
		TotalSpots:   l.capacity,
		Transactions: len(l.history),
	}

	current := make(map[VehicleClass]int)
	for _, slot := range l.slots {
		switch slot.State {
		case Occupied:
			stats.Occupied++
			current[slot.Session.Vehicle.Class]++
		case Reserved:
			stats.Reserved++
		}
	}
	stats.Available = stats.TotalSpots - stats.Occupied - stats.Reserved
	stats.OccupancyRate = l.OccupancyRate()
	stats.CurrentByClass = orderedCounts(current)

	stats.TodayRevenue = l.TodayRevenue()

	historical := make(map[VehicleClass]int)
	var totalDuration float64
	for _, tx := range l.history {
		stats.TotalRevenue += tx.Fee
		totalDuration += tx.DurationHours
		historical[tx.Class]++
	}
	stats.TotalRevenue = round2(stats.TotalRevenue)
	if len(l.history) > 0 {
		stats.AverageDuration = round2(totalDuration / float64(len(l.history)))
	}

	stats.HistoricalByClass = orderedCounts(historical)
	sort.SliceStable(stats.HistoricalByClass, func(i, j int) bool {
		return stats.HistoricalByClass[i].Count > stats.HistoricalByClass[j].Count
	})

	return stats
}

// TodayRevenue sums the fees of stays that ended on the current local date.
func (l *Ledger) TodayRevenue() float64 {
	today := l.now()
	var revenue float64
	for _, tx := range l.history {
		if sameDay(tx.ExitTime, today) {
			revenue += tx.Fee
		}
	}
	return round2(revenue)
}

// OccupancyRate is the occupied share of all spots, from 0 to 1.
func (l *Ledger) OccupancyRate() float64 {
	if l.capacity == 0 {
		return 0
	}
	var occupied int
	for _, slot := range l.slots {
		if slot.IsOccupied() {
			occupied++
		}
	}
	return float64(occupied) / float64(l.capacity)
}

// orderedCounts lists known classes first in display order, then any others
// (history restored from older files) alphabetically.
func orderedCounts(counts map[VehicleClass]int) []ClassCount {
	result := make([]ClassCount, 0, len(counts))
	seen := make(map[VehicleClass]bool, len(counts))
	for _, class := range VehicleClasses {
		if n := counts[class]; n > 0 {
			result = append(result, ClassCount{Class: class, Count: n})
			seen[class] = true
		}
	}

	var others []VehicleClass
	for class := range counts {
		if !seen[class] {
			others = append(others, class)
		}
	}
	sort.Slice(others, func(i, j int) bool { return others[i] < others[j] })
	for _, class := range others {
		result = append(result, ClassCount{Class: class, Count: counts[class]})
	}

	return result
}

func sameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
