package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"parking-ledger/internal/logging"
	"parking-ledger/internal/parking"
)

type Meta struct {
	TraceID   string `json:"trace_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Meta    *Meta  `json:"meta,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Meta    *Meta  `json:"meta,omitempty"`
}

type ParkVehicleRequest struct {
	Plate string `json:"plate"`
	Type  string `json:"type"`
	Owner string `json:"owner"`
	Phone string `json:"phone"`
}

type SpotRequest struct {
	Spot int `json:"spot"`
}

type ClearRequest struct {
	Confirm bool `json:"confirm"`
}

type SessionResponse struct {
	Spot      int       `json:"spot"`
	Plate     string    `json:"plate"`
	Type      string    `json:"type"`
	Owner     string    `json:"owner"`
	Phone     string    `json:"phone,omitempty"`
	EntryTime time.Time `json:"entry_time"`
}

type TransactionResponse struct {
	Plate         string    `json:"plate"`
	Type          string    `json:"type"`
	Owner         string    `json:"owner"`
	EntryTime     time.Time `json:"entry_time"`
	ExitTime      time.Time `json:"exit_time"`
	DurationHours float64   `json:"duration_hours"`
	Fee           float64   `json:"fee"`
}

type ReservationResponse struct {
	Spot            int  `json:"spot"`
	AlreadyReserved bool `json:"already_reserved"`
}

type SpotStatus struct {
	Spot  int    `json:"spot"`
	State string `json:"state"`
	Plate string `json:"plate,omitempty"`
	Type  string `json:"type,omitempty"`
}

type StatusResponse struct {
	Capacity  int          `json:"capacity"`
	Occupied  int          `json:"occupied"`
	Reserved  int          `json:"reserved"`
	Available int          `json:"available"`
	Spots     []SpotStatus `json:"spots"`
}

type ReportResponse struct {
	Path string `json:"path"`
}

type RateResponse struct {
	Type       string  `json:"type"`
	HourlyRate float64 `json:"hourly_rate"`
}

func newSessionResponse(s parking.Session) SessionResponse {
	return SessionResponse{
		Spot:      s.Spot,
		Plate:     s.Vehicle.Plate,
		Type:      string(s.Vehicle.Class),
		Owner:     s.Vehicle.Owner,
		Phone:     s.Vehicle.Phone,
		EntryTime: s.EntryTime,
	}
}

func newTransactionResponse(tx parking.Transaction) TransactionResponse {
	return TransactionResponse{
		Plate:         tx.Plate,
		Type:          string(tx.Class),
		Owner:         tx.Owner,
		EntryTime:     tx.EntryTime,
		ExitTime:      tx.ExitTime,
		DurationHours: tx.DurationHours,
		Fee:           tx.Fee,
	}
}

func newStatusResponse(slots []parking.Slot) StatusResponse {
	status := StatusResponse{
		Capacity: len(slots),
		Spots:    make([]SpotStatus, 0, len(slots)),
	}

	for _, slot := range slots {
		spot := SpotStatus{Spot: slot.Number, State: slot.State.String()}
		switch slot.State {
		case parking.Occupied:
			status.Occupied++
			spot.Plate = slot.Session.Vehicle.Plate
			spot.Type = string(slot.Session.Vehicle.Class)
		case parking.Reserved:
			status.Reserved++
		}
		status.Spots = append(status.Spots, spot)
	}
	status.Available = status.Capacity - status.Occupied - status.Reserved

	return status
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Logger().Error().Err(err).Msg("failed to encode response")
	}
}

func extractMeta(ctx context.Context) *Meta {
	meta := &Meta{}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		meta.TraceID = span.SpanContext().TraceID().String()
	}

	if reqID, ok := ctx.Value(RequestIDKey).(string); ok {
		meta.RequestID = reqID
	}

	return meta
}

func WriteSuccess(ctx context.Context, w http.ResponseWriter, message string, data any) {
	WriteJSON(w, http.StatusOK, Response{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    extractMeta(ctx),
	})
}

func WriteError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Response{
		Success: false,
		Error:   message,
		Meta:    extractMeta(ctx),
	})
}
