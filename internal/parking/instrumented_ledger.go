package parking

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"parking-ledger/internal/logging"
)

// Store persists the encoded ledger state. Load returns nil data when nothing
// has been saved yet.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// ChangeFunc is called after every successful mutation.
type ChangeFunc func(ctx context.Context)

// InstrumentedLedger serializes access to a Ledger, traces and meters every
// operation, and saves the full state after each mutation.
type InstrumentedLedger struct {
	mu        sync.Mutex
	ledger    *Ledger
	store     Store
	telemetry *TelemetryProvider
	listeners []ChangeFunc

	operations        metric.Int64Counter
	operationDuration metric.Float64Histogram
	revenue           metric.Float64Counter
}

func NewInstrumentedLedger(ledger *Ledger, store Store, telemetry *TelemetryProvider) (*InstrumentedLedger, error) {
	meter := telemetry.Meter()

	operations, err := meter.Int64Counter("parking_operations_total",
		metric.WithDescription("Total number of ledger operations"),
		metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	operationDuration, err := meter.Float64Histogram("parking_operation_duration_seconds",
		metric.WithDescription("Duration of ledger operations"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	revenue, err := meter.Float64Counter("parking_revenue_total",
		metric.WithDescription("Fees billed on release"))
	if err != nil {
		return nil, err
	}

	il := &InstrumentedLedger{
		ledger:            ledger,
		store:             store,
		telemetry:         telemetry,
		operations:        operations,
		operationDuration: operationDuration,
		revenue:           revenue,
	}

	_, err = meter.Int64ObservableGauge("parking_ledger_occupied_spots",
		metric.WithDescription("Current number of occupied spots"),
		metric.WithUnit("1"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			il.mu.Lock()
			defer il.mu.Unlock()
			o.Observe(int64(len(il.ledger.Sessions())))
			return nil
		}))
	if err != nil {
		return nil, err
	}

	return il, nil
}

// OnChange registers fn to run after every successful mutation.
func (il *InstrumentedLedger) OnChange(fn ChangeFunc) {
	il.mu.Lock()
	defer il.mu.Unlock()
	il.listeners = append(il.listeners, fn)
}

func (il *InstrumentedLedger) Capacity() int {
	return il.ledger.Capacity()
}

// Rates returns a copy of the hourly rate table in use.
func (il *InstrumentedLedger) Rates() RateTable {
	il.mu.Lock()
	defer il.mu.Unlock()
	return il.ledger.Rates()
}

// Load restores the ledger from the store. A missing state leaves the ledger
// empty; an unreadable one also leaves it empty and returns the error.
func (il *InstrumentedLedger) Load(ctx context.Context) error {
	ctx, span := il.telemetry.Tracer().Start(ctx, "parking_ledger.load")
	defer span.End()

	if il.store == nil {
		return nil
	}

	il.mu.Lock()
	defer il.mu.Unlock()

	data, err := il.store.Load(ctx)
	if err != nil {
		il.ledger.ClearAll()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("load ledger state: %w", err)
	}
	if data == nil {
		span.AddEvent("no_saved_state")
		return nil
	}

	state, err := DecodeState(data)
	if err != nil {
		il.ledger.ClearAll()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	skipped := il.ledger.Restore(state)
	for _, e := range skipped {
		logging.Warn(ctx).Err(e).Msg("skipped saved ledger entry")
	}

	sessions := il.ledger.Sessions()
	span.SetAttributes(
		attribute.Int("parking.sessions", len(sessions)),
		attribute.Int("parking.history", len(il.ledger.history)),
		attribute.Int("parking.skipped_entries", len(skipped)),
	)
	logging.Info(ctx).
		Int("sessions", len(sessions)).
		Int("history", len(il.ledger.history)).
		Int("reserved", len(il.ledger.ReservedSpots())).
		Msg("ledger state loaded")

	return nil
}

// Allocate parks the vehicle and returns the new session as recorded.
func (il *InstrumentedLedger) Allocate(ctx context.Context, plate string, class VehicleClass, owner, phone string) (Session, error) {
	ctx, span := il.telemetry.Tracer().Start(ctx, "parking_ledger.allocate",
		trace.WithAttributes(
			attribute.String("vehicle.plate", NormalizePlate(plate)),
			attribute.String("vehicle.type", string(class)),
		))
	defer span.End()

	start := time.Now()
	span.AddEvent("finding_available_spot")

	var session Session
	il.mu.Lock()
	spot, err := il.ledger.Allocate(plate, class, owner, phone)
	if err == nil {
		session = *il.ledger.slots[spot-1].Session
		il.persist(ctx)
	}
	il.mu.Unlock()

	il.record(ctx, span, "allocate", start, err, attribute.String("vehicle_type", string(class)))
	if err != nil {
		return Session{}, err
	}

	span.SetAttributes(attribute.Int("parking.spot", spot))
	span.AddEvent("spot_allocated")
	logging.Info(ctx).
		Str("plate", session.Vehicle.Plate).
		Str("type", string(session.Vehicle.Class)).
		Int("spot", spot).
		Msg("vehicle parked")

	il.notify(ctx)
	return session, nil
}

func (il *InstrumentedLedger) Release(ctx context.Context, spot int) (Transaction, error) {
	ctx, span := il.telemetry.Tracer().Start(ctx, "parking_ledger.release",
		trace.WithAttributes(attribute.Int("parking.spot", spot)))
	defer span.End()

	start := time.Now()

	il.mu.Lock()
	tx, err := il.ledger.Release(spot)
	if err == nil {
		il.persist(ctx)
	}
	il.mu.Unlock()

	il.record(ctx, span, "release", start, err)
	if err != nil {
		return Transaction{}, err
	}

	span.SetAttributes(
		attribute.String("vehicle.plate", tx.Plate),
		attribute.String("vehicle.type", string(tx.Class)),
		attribute.Float64("parking.duration_hours", tx.DurationHours),
		attribute.Float64("parking.fee", tx.Fee),
	)
	il.revenue.Add(ctx, tx.Fee, metric.WithAttributes(attribute.String("vehicle_type", string(tx.Class))))
	logging.Info(ctx).
		Str("plate", tx.Plate).
		Int("spot", spot).
		Float64("duration_hours", tx.DurationHours).
		Float64("fee", tx.Fee).
		Msg("vehicle released")

	il.notify(ctx)
	return tx, nil
}

func (il *InstrumentedLedger) Reserve(ctx context.Context, spot int) (bool, error) {
	ctx, span := il.telemetry.Tracer().Start(ctx, "parking_ledger.reserve",
		trace.WithAttributes(attribute.Int("parking.spot", spot)))
	defer span.End()

	start := time.Now()

	il.mu.Lock()
	already, err := il.ledger.Reserve(spot)
	if err == nil && !already {
		il.persist(ctx)
	}
	il.mu.Unlock()

	il.record(ctx, span, "reserve", start, err)
	if err != nil {
		return false, err
	}

	span.SetAttributes(attribute.Bool("parking.already_reserved", already))
	if already {
		return true, nil
	}

	logging.Info(ctx).Int("spot", spot).Msg("spot reserved")
	il.notify(ctx)
	return false, nil
}

func (il *InstrumentedLedger) CancelReservation(ctx context.Context, spot int) error {
	ctx, span := il.telemetry.Tracer().Start(ctx, "parking_ledger.cancel_reservation",
		trace.WithAttributes(attribute.Int("parking.spot", spot)))
	defer span.End()

	start := time.Now()

	il.mu.Lock()
	err := il.ledger.CancelReservation(spot)
	if err == nil {
		il.persist(ctx)
	}
	il.mu.Unlock()

	il.record(ctx, span, "cancel_reservation", start, err)
	if err != nil {
		return err
	}

	logging.Info(ctx).Int("spot", spot).Msg("reservation cancelled")
	il.notify(ctx)
	return nil
}

// ClearAll erases every session, reservation and history record.
func (il *InstrumentedLedger) ClearAll(ctx context.Context) {
	ctx, span := il.telemetry.Tracer().Start(ctx, "parking_ledger.clear_all")
	defer span.End()

	start := time.Now()

	il.mu.Lock()
	il.ledger.ClearAll()
	il.persist(ctx)
	il.mu.Unlock()

	il.record(ctx, span, "clear_all", start, nil)
	logging.Warn(ctx).Msg("all ledger data cleared")

	il.notify(ctx)
}

func (il *InstrumentedLedger) FindByPlate(ctx context.Context, plate string) (Session, error) {
	ctx, span := il.telemetry.Tracer().Start(ctx, "parking_ledger.find_by_plate",
		trace.WithAttributes(attribute.String("vehicle.plate", NormalizePlate(plate))))
	defer span.End()

	start := time.Now()

	il.mu.Lock()
	session, err := il.ledger.FindByPlate(plate)
	il.mu.Unlock()

	if errors.Is(err, ErrNotFound) {
		span.AddEvent("vehicle_not_found")
		il.observe(ctx, "find_by_plate", start, "not_found")
		return Session{}, err
	}
	il.record(ctx, span, "find_by_plate", start, err)
	if err != nil {
		return Session{}, err
	}

	span.AddEvent("vehicle_found", trace.WithAttributes(attribute.Int("parking.spot", session.Spot)))
	return session, nil
}

func (il *InstrumentedLedger) Sessions(ctx context.Context) []Session {
	_, span := il.telemetry.Tracer().Start(ctx, "parking_ledger.sessions")
	defer span.End()

	il.mu.Lock()
	defer il.mu.Unlock()

	sessions := il.ledger.Sessions()
	span.SetAttributes(attribute.Int("parking.sessions", len(sessions)))
	return sessions
}

func (il *InstrumentedLedger) Slots(ctx context.Context) []Slot {
	_, span := il.telemetry.Tracer().Start(ctx, "parking_ledger.slots")
	defer span.End()

	il.mu.Lock()
	defer il.mu.Unlock()
	return il.ledger.Slots()
}

func (il *InstrumentedLedger) RecentHistory(ctx context.Context, n int) []Transaction {
	_, span := il.telemetry.Tracer().Start(ctx, "parking_ledger.recent_history",
		trace.WithAttributes(attribute.Int("parking.limit", n)))
	defer span.End()

	il.mu.Lock()
	defer il.mu.Unlock()
	return il.ledger.RecentHistory(n)
}

func (il *InstrumentedLedger) Aggregate(ctx context.Context) Stats {
	_, span := il.telemetry.Tracer().Start(ctx, "parking_ledger.aggregate")
	defer span.End()

	il.mu.Lock()
	defer il.mu.Unlock()

	stats := il.ledger.Aggregate()
	span.SetAttributes(
		attribute.Int("parking.occupied", stats.Occupied),
		attribute.Int("parking.reserved", stats.Reserved),
		attribute.Int("parking.transactions", stats.Transactions),
	)
	return stats
}

// ExportReport writes a timestamped report file into dir and returns its path.
func (il *InstrumentedLedger) ExportReport(ctx context.Context, dir string) (string, error) {
	ctx, span := il.telemetry.Tracer().Start(ctx, "parking_ledger.export_report")
	defer span.End()

	start := time.Now()

	var buf bytes.Buffer
	il.mu.Lock()
	generated := il.ledger.now()
	err := il.ledger.WriteReport(&buf)
	il.mu.Unlock()

	path := filepath.Join(dir, ReportFileName(generated))
	if err == nil {
		err = os.MkdirAll(dir, 0o755)
	}
	if err == nil {
		err = os.WriteFile(path, buf.Bytes(), 0o644)
	}

	il.record(ctx, span, "export_report", start, err)
	if err != nil {
		return "", fmt.Errorf("export report: %w", err)
	}

	span.SetAttributes(attribute.String("report.path", path))
	logging.Info(ctx).Str("path", path).Msg("report exported")
	return path, nil
}

// persist must be called with il.mu held.
func (il *InstrumentedLedger) persist(ctx context.Context) {
	if il.store == nil {
		return
	}

	span := trace.SpanFromContext(ctx)

	data, err := il.ledger.MarshalState()
	if err == nil {
		err = il.store.Save(ctx, data)
	}
	if err != nil {
		span.RecordError(err)
		logging.Error(ctx).Err(err).Msg("failed to save ledger state")
		return
	}
	span.AddEvent("state_saved", trace.WithAttributes(attribute.Int("state.bytes", len(data))))
}

func (il *InstrumentedLedger) notify(ctx context.Context) {
	il.mu.Lock()
	listeners := make([]ChangeFunc, len(il.listeners))
	copy(listeners, il.listeners)
	il.mu.Unlock()

	for _, fn := range listeners {
		fn(ctx)
	}
}

func (il *InstrumentedLedger) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error, extra ...attribute.KeyValue) {
	status := "success"
	if err != nil {
		status = ErrorKind(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	il.observe(ctx, operation, start, status, extra...)
}

func (il *InstrumentedLedger) observe(ctx context.Context, operation string, start time.Time, status string, extra ...attribute.KeyValue) {
	labels := append([]attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.String("status", status),
	}, extra...)

	il.operations.Add(ctx, 1, metric.WithAttributes(labels...))
	il.operationDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(labels...))
}

// ErrorKind names the ledger error class of err for metrics and API responses.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrDuplicatePlate):
		return "duplicate_plate"
	case errors.Is(err, ErrNoSpotAvailable):
		return "no_spot_available"
	case errors.Is(err, ErrSpotNotOccupied):
		return "spot_not_occupied"
	case errors.Is(err, ErrSpotOccupied):
		return "spot_occupied"
	case errors.Is(err, ErrSpotNotReserved):
		return "spot_not_reserved"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "failed"
	}
}
