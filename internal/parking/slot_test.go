package parking

import (
	"testing"
	"time"
)

func TestNewSlot(t *testing.T) {
	slotNumber := 1
	slot := NewSlot(slotNumber)

	if slot.Number != slotNumber {
		t.Errorf("Expected slot number %d, got %d", slotNumber, slot.Number)
	}

	if !slot.IsFree() {
		t.Error("Expected new slot to be free")
	}

	if slot.Session != nil {
		t.Error("Expected new slot to have no session")
	}
}

func TestSlotPark(t *testing.T) {
	slot := NewSlot(4)
	session := &Session{
		Vehicle:   *NewVehicle("ka01hh1234", Car, "Asha", ""),
		EntryTime: time.Now(),
	}

	slot.Park(session)

	if !slot.IsOccupied() {
		t.Error("Expected slot to be occupied after parking")
	}

	if slot.Session != session {
		t.Error("Expected slot to hold the parked session")
	}

	if session.Spot != 4 {
		t.Errorf("Expected session spot 4, got %d", session.Spot)
	}
}

func TestSlotLeave(t *testing.T) {
	slot := NewSlot(1)
	session := &Session{Vehicle: *NewVehicle("KA01HH1234", Car, "Asha", "")}

	slot.Park(session)
	leaving := slot.Leave()

	if !slot.IsFree() {
		t.Error("Expected slot to be free after leaving")
	}

	if slot.Session != nil {
		t.Error("Expected slot to have no session after leaving")
	}

	if leaving != session {
		t.Error("Expected leaving session to be the parked session")
	}
}

func TestSlotReserveAndReset(t *testing.T) {
	slot := NewSlot(2)

	slot.Reserve()
	if !slot.IsReserved() || slot.IsFree() || slot.IsOccupied() {
		t.Errorf("Expected slot to be only reserved, got %s", slot.State)
	}

	slot.Reset()
	if !slot.IsFree() {
		t.Errorf("Expected slot to be free after reset, got %s", slot.State)
	}
}

func TestSpotStateString(t *testing.T) {
	cases := map[SpotState]string{
		Free:     "free",
		Occupied: "occupied",
		Reserved: "reserved",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	}
}
