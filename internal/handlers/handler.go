package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"restaurant-pos/internal/floor"
	"restaurant-pos/pkg/metrics"
)

// Handler owns the HTTP surface: decoding, validation, error mapping. All
// decisions are delegated to the coordinator.
type Handler struct {
	coord           *floor.Coordinator
	log             *logrus.Entry
	m               *metrics.Server
	defaultDuration time.Duration
}

func New(coord *floor.Coordinator, log *logrus.Entry, m *metrics.Server, defaultDuration time.Duration) *Handler {
	return &Handler{coord: coord, log: log, m: m, defaultDuration: defaultDuration}
}

// Routes builds the router. Extra middleware (idempotency guard) is applied
// after instrumentation.
func (h *Handler) Routes(mw ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(h.instrument)
	for _, m := range mw {
		r.Use(m)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.openOrder)
		r.Get("/", h.listOrders)
		r.Get("/{orderID}", h.getOrder)
		r.Post("/{orderID}/lines", h.continueOrder)
		r.Post("/{orderID}/complete", h.completeOrder)
		r.Post("/{orderID}/settle", h.settleOrder)
		r.Post("/{orderID}/cancel", h.cancelOrder)
	})

	r.Route("/reservations", func(r chi.Router) {
		r.Post("/", h.requestReservation)
		r.Get("/{reservationID}", h.getReservation)
		r.Post("/{reservationID}/seat", h.seatReservation)
		r.Post("/{reservationID}/cancel", h.cancelReservation)
	})

	r.Route("/tables", func(r chi.Router) {
		r.Get("/", h.listTables)
		r.Post("/{tableID}/cleaned", h.tableCleaned)
	})

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		h.m.Requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		h.m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	})
}
