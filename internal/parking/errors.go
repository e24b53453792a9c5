package parking

import "errors"

var (
	// ErrDuplicatePlate is returned when the plate already occupies a spot.
	ErrDuplicatePlate = errors.New("vehicle is already parked")

	// ErrNoSpotAvailable is returned when every spot is occupied or reserved.
	ErrNoSpotAvailable = errors.New("no parking spots available")

	// ErrSpotNotOccupied is returned when releasing a spot without a vehicle.
	ErrSpotNotOccupied = errors.New("no vehicle parked at spot")

	// ErrSpotOccupied is returned when reserving a spot that holds a vehicle.
	ErrSpotOccupied = errors.New("spot is already occupied")

	// ErrSpotNotReserved is returned when cancelling a reservation that does not exist.
	ErrSpotNotReserved = errors.New("spot is not reserved")

	// ErrNotFound is returned when no parked vehicle matches a plate.
	ErrNotFound = errors.New("vehicle is not currently parked")

	// ErrInvalidInput covers blank required fields, unknown vehicle types and
	// spot numbers outside the lot.
	ErrInvalidInput = errors.New("invalid input")
)
