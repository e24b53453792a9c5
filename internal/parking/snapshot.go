package parking

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

const (
	EntryTimeLayout   = "2006-01-02 15:04:05"
	HistoryTimeLayout = "2006-01-02 03:04:05 PM"

	// Files written before seconds were kept in history.
	legacyHistoryTimeLayout = "2006-01-02 03:04 PM"
)

// State is the persisted form of the ledger.
type State struct {
	ParkedVehicles map[string]SessionRecord `json:"parked_vehicles"`
	History        []HistoryRecord          `json:"history"`
	ReservedSpots  []int                    `json:"reserved_spots"`
}

type SessionRecord struct {
	Vehicle   string `json:"vehicle"`
	Type      string `json:"type"`
	Owner     string `json:"owner"`
	Phone     string `json:"phone"`
	EntryTime string `json:"entry_time"`
}

type HistoryRecord struct {
	Vehicle   string  `json:"vehicle"`
	Type      string  `json:"type"`
	Owner     string  `json:"owner"`
	EntryTime string  `json:"entry_time"`
	ExitTime  string  `json:"exit_time"`
	Duration  float64 `json:"duration"`
	Fee       float64 `json:"fee"`
}

func (l *Ledger) Snapshot() State {
	state := State{
		ParkedVehicles: make(map[string]SessionRecord),
		History:        make([]HistoryRecord, 0, len(l.history)),
		ReservedSpots:  []int{},
	}

	for _, slot := range l.slots {
		switch slot.State {
		case Occupied:
			s := slot.Session
			state.ParkedVehicles[strconv.Itoa(slot.Number)] = SessionRecord{
				Vehicle:   s.Vehicle.Plate,
				Type:      string(s.Vehicle.Class),
				Owner:     s.Vehicle.Owner,
				Phone:     s.Vehicle.Phone,
				EntryTime: s.EntryTime.Format(EntryTimeLayout),
			}
		case Reserved:
			state.ReservedSpots = append(state.ReservedSpots, slot.Number)
		}
	}

	for _, tx := range l.history {
		state.History = append(state.History, HistoryRecord{
			Vehicle:   tx.Plate,
			Type:      string(tx.Class),
			Owner:     tx.Owner,
			EntryTime: tx.EntryTime.Format(HistoryTimeLayout),
			ExitTime:  tx.ExitTime.Format(HistoryTimeLayout),
			Duration:  tx.DurationHours,
			Fee:       tx.Fee,
		})
	}

	return state
}

func (l *Ledger) MarshalState() ([]byte, error) {
	return json.MarshalIndent(l.Snapshot(), "", "    ")
}

func DecodeState(data []byte) (State, error) {
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("decode ledger state: %w", err)
	}
	return state, nil
}

// Restore replaces the ledger contents with state. Entries that cannot be
// applied are skipped; one error per skipped entry is returned.
func (l *Ledger) Restore(state State) []error {
	l.ClearAll()

	var skipped []error

	spots := make([]string, 0, len(state.ParkedVehicles))
	for key := range state.ParkedVehicles {
		spots = append(spots, key)
	}
	sort.Slice(spots, func(i, j int) bool {
		a, _ := strconv.Atoi(spots[i])
		b, _ := strconv.Atoi(spots[j])
		if a != b {
			return a < b
		}
		return spots[i] < spots[j]
	})

	for _, key := range spots {
		if err := l.restoreSession(key, state.ParkedVehicles[key]); err != nil {
			skipped = append(skipped, err)
		}
	}

	for _, spot := range state.ReservedSpots {
		slot, err := l.slot(spot)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("reserved spot %d: %w", spot, err))
			continue
		}
		if slot.IsOccupied() {
			skipped = append(skipped, fmt.Errorf("reserved spot %d: %w", spot, ErrSpotOccupied))
			continue
		}
		slot.Reserve()
	}

	for i, rec := range state.History {
		tx, err := rec.transaction()
		if err != nil {
			skipped = append(skipped, fmt.Errorf("history entry %d: %w", i, err))
			continue
		}
		l.history = append(l.history, tx)
	}

	return skipped
}

func (l *Ledger) restoreSession(key string, rec SessionRecord) error {
	spot, err := strconv.Atoi(key)
	if err != nil {
		return fmt.Errorf("parked spot %q: %w: not a number", key, ErrInvalidInput)
	}
	slot, err := l.slot(spot)
	if err != nil {
		return fmt.Errorf("parked spot %d: %w", spot, err)
	}
	if slot.IsOccupied() {
		return fmt.Errorf("parked spot %d: %w", spot, ErrSpotOccupied)
	}

	class, err := ParseVehicleClass(rec.Type)
	if err != nil {
		return fmt.Errorf("parked spot %d: %w", spot, err)
	}

	vehicle := NewVehicle(rec.Vehicle, class, rec.Owner, rec.Phone)
	if vehicle.Plate == "" {
		return fmt.Errorf("parked spot %d: %w: missing vehicle number", spot, ErrInvalidInput)
	}
	if other := l.slotByPlate(vehicle.Plate); other != nil {
		return fmt.Errorf("parked spot %d: %w: %s is at spot %d", spot, ErrDuplicatePlate, vehicle.Plate, other.Number)
	}

	entry, err := time.ParseInLocation(EntryTimeLayout, rec.EntryTime, time.Local)
	if err != nil {
		return fmt.Errorf("parked spot %d: %w: entry time %q", spot, ErrInvalidInput, rec.EntryTime)
	}

	slot.Park(&Session{Vehicle: *vehicle, EntryTime: entry})
	return nil
}

func (rec HistoryRecord) transaction() (Transaction, error) {
	entry, err := parseHistoryTime(rec.EntryTime)
	if err != nil {
		return Transaction{}, err
	}
	exit, err := parseHistoryTime(rec.ExitTime)
	if err != nil {
		return Transaction{}, err
	}

	// Past records keep their type even if it is no longer billable.
	class := VehicleClass(rec.Type)
	if parsed, err := ParseVehicleClass(rec.Type); err == nil {
		class = parsed
	}

	return Transaction{
		Plate:         NormalizePlate(rec.Vehicle),
		Class:         class,
		Owner:         rec.Owner,
		EntryTime:     entry,
		ExitTime:      exit,
		DurationHours: rec.Duration,
		Fee:           rec.Fee,
	}, nil
}

func parseHistoryTime(value string) (time.Time, error) {
	for _, layout := range []string{HistoryTimeLayout, legacyHistoryTimeLayout, EntryTimeLayout} {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrInvalidInput, value)
}
