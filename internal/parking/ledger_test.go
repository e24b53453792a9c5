package parking

import (
	"errors"
	"testing"
	"time"
)

func TestNewLedger(t *testing.T) {
	capacity := 6
	l, _ := newTestLedger(capacity)

	if l.Capacity() != capacity {
		t.Errorf("Expected capacity %d, got %d", capacity, l.Capacity())
	}

	slots := l.Slots()
	if len(slots) != capacity {
		t.Errorf("Expected %d slots, got %d", capacity, len(slots))
	}

	for i, slot := range slots {
		if slot.Number != i+1 {
			t.Errorf("Expected slot number %d, got %d", i+1, slot.Number)
		}
		if slot.State != Free {
			t.Errorf("Expected slot %d to be free", i+1)
		}
	}
}

func TestLedgerAllocate(t *testing.T) {
	l, clock := newTestLedger(3)

	spot, err := l.Allocate("KA01HH1234", Car, "Asha", "98450")
	if err != nil {
		t.Errorf("Unexpected error: %s", err.Error())
	}
	if spot != 1 {
		t.Errorf("Expected spot 1, got %d", spot)
	}

	spot, err = l.Allocate("KA01HH9999", Bike, "Ravi", "")
	if err != nil {
		t.Errorf("Unexpected error: %s", err.Error())
	}
	if spot != 2 {
		t.Errorf("Expected spot 2, got %d", spot)
	}

	spot, err = l.Allocate("KA01BB0001", Truck, "Meena", "")
	if err != nil {
		t.Errorf("Unexpected error: %s", err.Error())
	}
	if spot != 3 {
		t.Errorf("Expected spot 3, got %d", spot)
	}

	_, err = l.Allocate("KA01HH7777", Car, "Kiran", "")
	if !errors.Is(err, ErrNoSpotAvailable) {
		t.Errorf("Expected ErrNoSpotAvailable, got %v", err)
	}

	session, err := l.FindByPlate("ka01hh1234")
	if err != nil {
		t.Fatalf("Unexpected error: %s", err.Error())
	}
	if !session.EntryTime.Equal(clock.Now()) {
		t.Errorf("Expected entry time %s, got %s", clock.Now(), session.EntryTime)
	}
}

func TestLedgerAllocateSkipsReservedSpots(t *testing.T) {
	l, _ := newTestLedger(4)

	for _, spot := range []int{1, 2, 4} {
		if _, err := l.Reserve(spot); err != nil {
			t.Fatalf("Unexpected error reserving %d: %s", spot, err.Error())
		}
	}

	spot, err := l.Allocate("MH12AB1234", SUV, "Farah", "")
	if err != nil {
		t.Fatalf("Unexpected error: %s", err.Error())
	}
	if spot != 3 {
		t.Errorf("Expected the only free spot 3, got %d", spot)
	}

	_, err = l.Allocate("MH12AB9999", Car, "Gopal", "")
	if !errors.Is(err, ErrNoSpotAvailable) {
		t.Errorf("Expected ErrNoSpotAvailable with every spot occupied or reserved, got %v", err)
	}
}

func TestLedgerAllocateDuplicatePlate(t *testing.T) {
	l, _ := newTestLedger(3)

	if _, err := l.Allocate("KA01HH1234", Car, "Asha", ""); err != nil {
		t.Fatalf("Unexpected error: %s", err.Error())
	}

	_, err := l.Allocate(" ka01hh1234", Bike, "Someone Else", "")
	if !errors.Is(err, ErrDuplicatePlate) {
		t.Errorf("Expected ErrDuplicatePlate, got %v", err)
	}

	if len(l.Sessions()) != 1 {
		t.Errorf("Expected 1 session after duplicate attempt, got %d", len(l.Sessions()))
	}
}

func TestLedgerAllocateInvalidInput(t *testing.T) {
	l, _ := newTestLedger(3)

	cases := []struct {
		plate string
		class VehicleClass
		owner string
	}{
		{plate: "", class: Car, owner: "Asha"},
		{plate: "   ", class: Car, owner: "Asha"},
		{plate: "KA01HH1234", class: Car, owner: ""},
		{plate: "KA01HH1234", class: VehicleClass("Bus"), owner: "Asha"},
	}

	for _, c := range cases {
		_, err := l.Allocate(c.plate, c.class, c.owner, "")
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Expected ErrInvalidInput for %+v, got %v", c, err)
		}
	}
}

func TestLedgerRelease(t *testing.T) {
	l, clock := newTestLedger(3)
	l.Allocate("KA01HH1234", Car, "Asha", "")
	l.Allocate("KA01HH9999", Car, "Ravi", "")

	entry := clock.Now()
	clock.Advance(3 * time.Hour)

	tx, err := l.Release(1)
	if err != nil {
		t.Fatalf("Unexpected error: %s", err.Error())
	}

	if tx.Fee != 60 {
		t.Errorf("Expected fee 60, got %.2f", tx.Fee)
	}
	if tx.DurationHours != 3 {
		t.Errorf("Expected duration 3, got %.2f", tx.DurationHours)
	}
	if !tx.EntryTime.Equal(entry) || !tx.ExitTime.Equal(clock.Now()) {
		t.Errorf("Unexpected timestamps %s - %s", tx.EntryTime, tx.ExitTime)
	}

	state, _ := l.SpotState(1)
	if state != Free {
		t.Errorf("Expected spot 1 to be free after release, got %s", state)
	}

	if _, err := l.FindByPlate("KA01HH1234"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected released plate to be not found, got %v", err)
	}

	if len(l.History()) != 1 {
		t.Errorf("Expected 1 history record, got %d", len(l.History()))
	}

	spot, err := l.Allocate("KA01BB0001", Bike, "Meena", "")
	if err != nil {
		t.Errorf("Unexpected error: %s", err.Error())
	}
	if spot != 1 {
		t.Errorf("Expected to reuse spot 1, got spot %d", spot)
	}
}

func TestLedgerReleaseMinimumFee(t *testing.T) {
	l, clock := newTestLedger(1)
	l.Allocate("KA01HH1234", Car, "Asha", "")

	clock.Advance(30 * time.Minute)

	tx, err := l.Release(1)
	if err != nil {
		t.Fatalf("Unexpected error: %s", err.Error())
	}
	if tx.Fee != 20 {
		t.Errorf("Expected minimum fee 20, got %.2f", tx.Fee)
	}
	if tx.DurationHours != 0.5 {
		t.Errorf("Expected duration 0.5, got %.2f", tx.DurationHours)
	}
}

func TestLedgerReleaseErrors(t *testing.T) {
	l, _ := newTestLedger(3)

	if _, err := l.Release(2); !errors.Is(err, ErrSpotNotOccupied) {
		t.Errorf("Expected ErrSpotNotOccupied, got %v", err)
	}

	for _, spot := range []int{0, -1, 4} {
		if _, err := l.Release(spot); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Expected ErrInvalidInput for spot %d, got %v", spot, err)
		}
	}

	if len(l.History()) != 0 {
		t.Errorf("Expected no history after failed releases, got %d", len(l.History()))
	}
}

func TestLedgerReserve(t *testing.T) {
	l, _ := newTestLedger(3)
	l.Allocate("KA01HH1234", Car, "Asha", "")

	if _, err := l.Reserve(1); !errors.Is(err, ErrSpotOccupied) {
		t.Errorf("Expected ErrSpotOccupied, got %v", err)
	}

	already, err := l.Reserve(2)
	if err != nil || already {
		t.Errorf("Expected first reservation to succeed, got already=%v err=%v", already, err)
	}

	already, err = l.Reserve(2)
	if err != nil || !already {
		t.Errorf("Expected second reservation to report already reserved, got already=%v err=%v", already, err)
	}

	reserved := l.ReservedSpots()
	if len(reserved) != 1 || reserved[0] != 2 {
		t.Errorf("Expected reserved spots [2], got %v", reserved)
	}

	if _, err := l.Reserve(9); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestLedgerCancelReservation(t *testing.T) {
	l, _ := newTestLedger(1)
	l.Reserve(1)

	if _, err := l.Allocate("KA01HH1234", Car, "Asha", ""); !errors.Is(err, ErrNoSpotAvailable) {
		t.Fatalf("Expected ErrNoSpotAvailable while reserved, got %v", err)
	}

	if err := l.CancelReservation(1); err != nil {
		t.Fatalf("Unexpected error: %s", err.Error())
	}

	if err := l.CancelReservation(1); !errors.Is(err, ErrSpotNotReserved) {
		t.Errorf("Expected ErrSpotNotReserved, got %v", err)
	}

	spot, err := l.Allocate("KA01HH1234", Car, "Asha", "")
	if err != nil || spot != 1 {
		t.Errorf("Expected spot 1 after cancelling, got %d (%v)", spot, err)
	}
}

func TestLedgerFindByPlate(t *testing.T) {
	l, _ := newTestLedger(3)
	l.Allocate("KA01HH1234", Car, "Asha", "")
	l.Allocate("KA01HH9999", SUV, "Ravi", "98450")

	session, err := l.FindByPlate("ka01hh9999")
	if err != nil {
		t.Errorf("Unexpected error: %s", err.Error())
	}
	if session.Spot != 2 {
		t.Errorf("Expected spot 2, got %d", session.Spot)
	}
	if session.Vehicle.Phone != "98450" || session.Vehicle.Class != SUV {
		t.Errorf("Unexpected session %+v", session)
	}

	_, err = l.FindByPlate("NOTFOUND")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestLedgerSessions(t *testing.T) {
	l, _ := newTestLedger(6)
	l.Allocate("KA01HH1234", Car, "A", "")
	l.Allocate("KA01HH9999", Car, "B", "")
	l.Allocate("KA01BB0001", Bike, "C", "")
	l.Allocate("KA01HH7777", Truck, "D", "")
	l.Allocate("KA01HH2701", SUV, "E", "")
	l.Allocate("KA01HH3141", Car, "F", "")

	l.Release(4)

	sessions := l.Sessions()
	expectedSpots := []int{1, 2, 3, 5, 6}

	if len(sessions) != len(expectedSpots) {
		t.Fatalf("Expected %d sessions, got %d", len(expectedSpots), len(sessions))
	}

	for i, session := range sessions {
		if session.Spot != expectedSpots[i] {
			t.Errorf("Expected spot %d at position %d, got %d", expectedSpots[i], i, session.Spot)
		}
	}
}

func TestLedgerRecentHistory(t *testing.T) {
	l, clock := newTestLedger(1)
	for _, plate := range []string{"P1", "P2", "P3"} {
		l.Allocate(plate, Car, "Owner", "")
		clock.Advance(time.Hour)
		l.Release(1)
	}

	recent := l.RecentHistory(2)
	if len(recent) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(recent))
	}
	if recent[0].Plate != "P3" || recent[1].Plate != "P2" {
		t.Errorf("Expected newest first [P3 P2], got [%s %s]", recent[0].Plate, recent[1].Plate)
	}

	if all := l.RecentHistory(50); len(all) != 3 {
		t.Errorf("Expected 3 records, got %d", len(all))
	}

	history := l.History()
	if history[0].Plate != "P1" || history[2].Plate != "P3" {
		t.Errorf("Expected history in release order, got %v", history)
	}
}

func TestLedgerClearAll(t *testing.T) {
	l, clock := newTestLedger(3)
	l.Allocate("KA01HH1234", Car, "Asha", "")
	l.Allocate("KA01HH9999", Car, "Ravi", "")
	clock.Advance(time.Hour)
	l.Release(1)
	l.Reserve(3)

	before := l.Aggregate()
	if before.Occupied == 0 || before.Reserved == 0 || before.Transactions == 0 || before.TodayRevenue == 0 {
		t.Fatalf("Expected populated ledger before clear, got %+v", before)
	}

	l.ClearAll()

	stats := l.Aggregate()
	if stats.Occupied != 0 || stats.Reserved != 0 || stats.Transactions != 0 {
		t.Errorf("Expected zero counts after clear, got occupied=%d reserved=%d transactions=%d",
			stats.Occupied, stats.Reserved, stats.Transactions)
	}
	if stats.TodayRevenue != 0 || stats.TotalRevenue != 0 || stats.AverageDuration != 0 || stats.OccupancyRate != 0 {
		t.Errorf("Expected zero revenue and rates after clear, got %+v", stats)
	}
	if stats.Available != 3 {
		t.Errorf("Expected 3 available spots after clear, got %d", stats.Available)
	}
	if len(stats.CurrentByClass) != 0 || len(stats.HistoricalByClass) != 0 {
		t.Errorf("Expected empty class counts after clear, got %v %v", stats.CurrentByClass, stats.HistoricalByClass)
	}
	if l.TodayRevenue() != 0 || l.OccupancyRate() != 0 {
		t.Errorf("Expected zero today revenue and occupancy after clear")
	}

	if len(l.Sessions()) != 0 || len(l.History()) != 0 || len(l.ReservedSpots()) != 0 {
		t.Errorf("Expected empty ledger after clear")
	}
	for _, slot := range l.Slots() {
		if slot.State != Free {
			t.Errorf("Expected spot %d to be free, got %s", slot.Number, slot.State)
		}
	}
}
