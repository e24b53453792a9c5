package parking

import (
	"fmt"
	"strings"
	"time"
)

type VehicleClass string

const (
	Car   VehicleClass = "Car"
	Bike  VehicleClass = "Bike"
	Truck VehicleClass = "Truck"
	SUV   VehicleClass = "SUV"
)

// VehicleClasses lists every class in display order.
var VehicleClasses = []VehicleClass{Car, Bike, Truck, SUV}

// ParseVehicleClass matches s against the known classes, ignoring case.
func ParseVehicleClass(s string) (VehicleClass, error) {
	s = strings.TrimSpace(s)
	for _, c := range VehicleClasses {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown vehicle type %q", ErrInvalidInput, s)
}

// NormalizePlate trims and upper-cases a plate so lookups are case-insensitive.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

type Vehicle struct {
	Plate string
	Class VehicleClass
	Owner string
	Phone string
}

func NewVehicle(plate string, class VehicleClass, owner, phone string) *Vehicle {
	return &Vehicle{
		Plate: NormalizePlate(plate),
		Class: class,
		Owner: strings.TrimSpace(owner),
		Phone: strings.TrimSpace(phone),
	}
}

// Session is a vehicle currently occupying a spot.
type Session struct {
	Spot      int
	Vehicle   Vehicle
	EntryTime time.Time
}
