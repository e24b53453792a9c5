package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"parking-ledger/internal/logging"
	"parking-ledger/internal/parking"
)

const defaultHistoryLimit = 50

type Handler struct {
	ledger      *parking.InstrumentedLedger
	reportDir   string
	serviceName string
}

func NewHandler(ledger *parking.InstrumentedLedger, reportDir, serviceName string) *Handler {
	return &Handler{
		ledger:      ledger,
		reportDir:   reportDir,
		serviceName: serviceName,
	}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: h.serviceName,
		Meta:    extractMeta(r.Context()),
	})
}

func (h *Handler) ParkVehicle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ParkVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Plate == "" || req.Type == "" || req.Owner == "" {
		WriteError(ctx, w, http.StatusBadRequest, "plate, type and owner are required")
		return
	}

	session, err := h.ledger.Allocate(ctx, req.Plate, parking.VehicleClass(req.Type), req.Owner, req.Phone)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}

	WriteSuccess(ctx, w, "Vehicle parked successfully", newSessionResponse(session))
}

func (h *Handler) ReleaseSpot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SpotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tx, err := h.ledger.Release(ctx, req.Spot)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}

	WriteSuccess(ctx, w, "Spot released successfully", newTransactionResponse(tx))
}

func (h *Handler) ReserveSpot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SpotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	already, err := h.ledger.Reserve(ctx, req.Spot)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}

	message := "Spot reserved successfully"
	if already {
		message = "Spot is already reserved"
	}
	WriteSuccess(ctx, w, message, ReservationResponse{Spot: req.Spot, AlreadyReserved: already})
}

func (h *Handler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	spot, err := strconv.Atoi(chi.URLParam(r, "spot"))
	if err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Spot must be a number")
		return
	}

	if err := h.ledger.CancelReservation(ctx, spot); err != nil {
		writeLedgerError(w, r, err)
		return
	}

	WriteSuccess(ctx, w, "Reservation cancelled", ReservationResponse{Spot: spot})
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	WriteSuccess(ctx, w, "Status retrieved successfully", newStatusResponse(h.ledger.Slots(ctx)))
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessions := h.ledger.Sessions(ctx)
	response := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		response = append(response, newSessionResponse(s))
	}

	WriteSuccess(ctx, w, "Sessions retrieved successfully", response)
}

func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			WriteError(ctx, w, http.StatusBadRequest, "limit must be a positive number")
			return
		}
		limit = n
	}

	history := h.ledger.RecentHistory(ctx, limit)
	response := make([]TransactionResponse, 0, len(history))
	for _, tx := range history {
		response = append(response, newTransactionResponse(tx))
	}

	WriteSuccess(ctx, w, "History retrieved successfully", response)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	WriteSuccess(ctx, w, "Statistics retrieved successfully", h.ledger.Aggregate(ctx))
}

func (h *Handler) GetRates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rates := h.ledger.Rates()
	resp := make([]RateResponse, 0, len(rates))
	for _, class := range parking.VehicleClasses {
		if rate, ok := rates[class]; ok {
			resp = append(resp, RateResponse{Type: string(class), HourlyRate: rate})
		}
	}

	WriteSuccess(ctx, w, "Rates retrieved successfully", resp)
}

func (h *Handler) FindByPlate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	plate := chi.URLParam(r, "plate")
	if plate == "" {
		WriteError(ctx, w, http.StatusBadRequest, "Vehicle number is required")
		return
	}

	session, err := h.ledger.FindByPlate(ctx, plate)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}

	WriteSuccess(ctx, w, "Vehicle found", newSessionResponse(session))
}

func (h *Handler) ClearAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ClearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !req.Confirm {
		WriteError(ctx, w, http.StatusBadRequest, "Clearing all data requires confirm=true")
		return
	}

	h.ledger.ClearAll(ctx)
	WriteSuccess(ctx, w, "All data has been cleared", nil)
}

func (h *Handler) ExportReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	path, err := h.ledger.ExportReport(ctx, h.reportDir)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}

	WriteSuccess(ctx, w, "Report exported", ReportResponse{Path: path})
}

func writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	status := statusForError(err)
	if status == http.StatusInternalServerError {
		logging.Error(ctx).Err(err).Str("path", r.URL.Path).Msg("request failed")
	}

	WriteJSON(w, status, Response{
		Success: false,
		Error:   err.Error(),
		Kind:    parking.ErrorKind(err),
		Meta:    extractMeta(ctx),
	})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, parking.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, parking.ErrNotFound), errors.Is(err, parking.ErrSpotNotOccupied):
		return http.StatusNotFound
	case errors.Is(err, parking.ErrDuplicatePlate),
		errors.Is(err, parking.ErrNoSpotAvailable),
		errors.Is(err, parking.ErrSpotOccupied),
		errors.Is(err, parking.ErrSpotNotReserved):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
