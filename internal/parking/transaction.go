package parking

import "time"

// Transaction is the billed record of one completed stay. Records are only
// ever appended to the ledger history.
type Transaction struct {
	Plate         string
	Class         VehicleClass
	Owner         string
	EntryTime     time.Time
	ExitTime      time.Time
	DurationHours float64
	Fee           float64
}
