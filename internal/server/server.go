package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"parking-ledger/internal/logging"
	"parking-ledger/internal/parking"
)

type Options struct {
	Port        string
	ReportDir   string
	ServiceName string
}

type Server struct {
	httpServer *http.Server
}

func NewServer(opts Options, ledger *parking.InstrumentedLedger, hub *Hub) *Server {
	handler := NewHandler(ledger, opts.ReportDir, opts.ServiceName)

	httpServer := &http.Server{
		Addr:         ":" + opts.Port,
		Handler:      NewRouter(handler, hub, newRegistry(ledger)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{httpServer: httpServer}
}

func NewRouter(handler *Handler, hub *Hub, registry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()

	r.Use(RecoveryMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(TracingMiddleware)
	r.Use(CORSMiddleware)

	r.Get("/health", handler.HealthCheck)
	r.Get("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP)
	r.Get("/ws", hub.ServeWS)

	r.Route("/api/parking", func(r chi.Router) {
		r.Post("/park", handler.ParkVehicle)
		r.Post("/release", handler.ReleaseSpot)
		r.Post("/reservations", handler.ReserveSpot)
		r.Delete("/reservations/{spot}", handler.CancelReservation)
		r.Get("/status", handler.GetStatus)
		r.Get("/sessions", handler.ListSessions)
		r.Get("/history", handler.ListHistory)
		r.Get("/stats", handler.GetStats)
		r.Get("/rates", handler.GetRates)
		r.Get("/find/{plate}", handler.FindByPlate)
		r.Post("/clear", handler.ClearAll)
		r.Post("/reports", handler.ExportReport)
	})

	return r
}

func newRegistry(ledger *parking.InstrumentedLedger) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		NewLedgerCollector(ledger),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

func (s *Server) Start() error {
	logging.Logger().Info().Str("addr", s.httpServer.Addr).Msg("starting HTTP server")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	logging.Logger().Info().Msg("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) GetAddress() string {
	return fmt.Sprintf("http://localhost%s", s.httpServer.Addr)
}
