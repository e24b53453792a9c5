package parking

import (
	"fmt"
	"math"
	"time"
)

// RateTable maps a vehicle class to its hourly rate.
type RateTable map[VehicleClass]float64

func DefaultRates() RateTable {
	return RateTable{
		Car:   20,
		Bike:  10,
		Truck: 30,
		SUV:   25,
	}
}

// RatesFromConfig overlays configured rates keyed by class name on the defaults.
func RatesFromConfig(configured map[string]float64) (RateTable, error) {
	rates := DefaultRates()
	for name, rate := range configured {
		class, err := ParseVehicleClass(name)
		if err != nil {
			return nil, err
		}
		if rate <= 0 {
			return nil, fmt.Errorf("%w: rate for %s must be positive", ErrInvalidInput, class)
		}
		rates[class] = rate
	}
	return rates, nil
}

// Fee bills the stay proportionally, but never below one hour's rate.
func (r RateTable) Fee(class VehicleClass, stay time.Duration) (float64, error) {
	rate, ok := r[class]
	if !ok {
		return 0, fmt.Errorf("%w: no rate for vehicle type %q", ErrInvalidInput, class)
	}
	return math.Max(rate, round2(stay.Hours()*rate)), nil
}

func DurationHours(stay time.Duration) float64 {
	return round2(stay.Hours())
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
