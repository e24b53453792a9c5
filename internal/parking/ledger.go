package parking

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type Clock func() time.Time

type Option func(*Ledger)

func WithClock(clock Clock) Option {
	return func(l *Ledger) {
		l.now = clock
	}
}

func WithRates(rates RateTable) Option {
	return func(l *Ledger) {
		l.rates = rates
	}
}

// Ledger owns every spot, the active sessions and the transaction history.
// It is not safe for concurrent use; InstrumentedLedger serializes access.
type Ledger struct {
	capacity int
	slots    []*Slot
	history  []Transaction
	rates    RateTable
	now      Clock
}

func NewLedger(capacity int, opts ...Option) *Ledger {
	slots := make([]*Slot, capacity)
	for i := 0; i < capacity; i++ {
		slots[i] = NewSlot(i + 1)
	}

	l := &Ledger{
		capacity: capacity,
		slots:    slots,
		rates:    DefaultRates(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	return l
}

func (l *Ledger) Capacity() int {
	return l.capacity
}

func (l *Ledger) Rates() RateTable {
	rates := make(RateTable, len(l.rates))
	for class, rate := range l.rates {
		rates[class] = rate
	}
	return rates
}

// Allocate parks the vehicle in the lowest-numbered free spot.
func (l *Ledger) Allocate(plate string, class VehicleClass, owner, phone string) (int, error) {
	canonical, err := ParseVehicleClass(string(class))
	if err != nil {
		return 0, err
	}

	vehicle := NewVehicle(plate, canonical, owner, phone)
	if vehicle.Plate == "" || vehicle.Owner == "" {
		return 0, fmt.Errorf("%w: vehicle number and owner name are required", ErrInvalidInput)
	}
	if _, ok := l.rates[vehicle.Class]; !ok {
		return 0, fmt.Errorf("%w: no rate for vehicle type %q", ErrInvalidInput, vehicle.Class)
	}

	if slot := l.slotByPlate(vehicle.Plate); slot != nil {
		return 0, fmt.Errorf("%w: %s is at spot %d", ErrDuplicatePlate, vehicle.Plate, slot.Number)
	}

	for _, slot := range l.slots {
		if slot.IsFree() {
			slot.Park(&Session{
				Vehicle:   *vehicle,
				EntryTime: l.now(),
			})
			return slot.Number, nil
		}
	}

	return 0, ErrNoSpotAvailable
}

// Release frees the spot, bills the stay and appends the transaction to history.
func (l *Ledger) Release(spot int) (Transaction, error) {
	slot, err := l.slot(spot)
	if err != nil {
		return Transaction{}, err
	}
	if !slot.IsOccupied() {
		return Transaction{}, fmt.Errorf("%w %d", ErrSpotNotOccupied, spot)
	}

	exit := l.now()
	stay := exit.Sub(slot.Session.EntryTime)
	if stay < 0 {
		stay = 0
	}

	fee, err := l.rates.Fee(slot.Session.Vehicle.Class, stay)
	if err != nil {
		return Transaction{}, err
	}

	session := slot.Leave()
	tx := Transaction{
		Plate:         session.Vehicle.Plate,
		Class:         session.Vehicle.Class,
		Owner:         session.Vehicle.Owner,
		EntryTime:     session.EntryTime,
		ExitTime:      exit,
		DurationHours: DurationHours(stay),
		Fee:           fee,
	}
	l.history = append(l.history, tx)

	return tx, nil
}

// Reserve marks a free spot as reserved. Reserving an already reserved spot is
// a no-op and reports alreadyReserved.
func (l *Ledger) Reserve(spot int) (alreadyReserved bool, err error) {
	slot, err := l.slot(spot)
	if err != nil {
		return false, err
	}

	switch slot.State {
	case Occupied:
		return false, fmt.Errorf("%w: spot %d", ErrSpotOccupied, spot)
	case Reserved:
		return true, nil
	}

	slot.Reserve()
	return false, nil
}

func (l *Ledger) CancelReservation(spot int) error {
	slot, err := l.slot(spot)
	if err != nil {
		return err
	}
	if !slot.IsReserved() {
		return fmt.Errorf("%w: spot %d", ErrSpotNotReserved, spot)
	}

	slot.Reset()
	return nil
}

func (l *Ledger) FindByPlate(plate string) (Session, error) {
	normalized := NormalizePlate(plate)
	if normalized == "" {
		return Session{}, fmt.Errorf("%w: vehicle number is required", ErrInvalidInput)
	}

	slot := l.slotByPlate(normalized)
	if slot == nil {
		return Session{}, fmt.Errorf("%w: %s", ErrNotFound, normalized)
	}
	return *slot.Session, nil
}

// ClearAll frees every spot and drops all sessions, reservations and history.
func (l *Ledger) ClearAll() {
	for _, slot := range l.slots {
		slot.Reset()
	}
	l.history = nil
}

// Sessions returns the active sessions ordered by spot number.
func (l *Ledger) Sessions() []Session {
	var sessions []Session
	for _, slot := range l.slots {
		if slot.IsOccupied() {
			sessions = append(sessions, *slot.Session)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Spot < sessions[j].Spot
	})

	return sessions
}

// Slots returns a copy of every spot, in spot order.
func (l *Ledger) Slots() []Slot {
	slots := make([]Slot, len(l.slots))
	for i, slot := range l.slots {
		slots[i] = *slot
		if slot.Session != nil {
			session := *slot.Session
			slots[i].Session = &session
		}
	}
	return slots
}

func (l *Ledger) SpotState(spot int) (SpotState, error) {
	slot, err := l.slot(spot)
	if err != nil {
		return Free, err
	}
	return slot.State, nil
}

func (l *Ledger) ReservedSpots() []int {
	var spots []int
	for _, slot := range l.slots {
		if slot.IsReserved() {
			spots = append(spots, slot.Number)
		}
	}
	return spots
}

// History returns every transaction in release order.
func (l *Ledger) History() []Transaction {
	history := make([]Transaction, len(l.history))
	copy(history, l.history)
	return history
}

// RecentHistory returns up to n transactions, newest first.
func (l *Ledger) RecentHistory(n int) []Transaction {
	if n <= 0 || n > len(l.history) {
		n = len(l.history)
	}

	recent := make([]Transaction, 0, n)
	for i := len(l.history) - 1; i >= len(l.history)-n; i-- {
		recent = append(recent, l.history[i])
	}
	return recent
}

func (l *Ledger) slot(spot int) (*Slot, error) {
	if spot < 1 || spot > l.capacity {
		return nil, fmt.Errorf("%w: spot must be between 1 and %d", ErrInvalidInput, l.capacity)
	}
	return l.slots[spot-1], nil
}

func (l *Ledger) slotByPlate(plate string) *Slot {
	for _, slot := range l.slots {
		if slot.IsOccupied() && strings.EqualFold(slot.Session.Vehicle.Plate, plate) {
			return slot
		}
	}
	return nil
}
