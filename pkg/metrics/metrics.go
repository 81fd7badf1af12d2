package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the HTTP-side metrics.
type Server struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewServer(reg prometheus.Registerer, service string) *Server {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pos",
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pos",
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})

	reg.MustRegister(requests, latency)
	return &Server{Requests: requests, LatencyMS: latency}
}

// Floor holds the coordinator-side lifecycle counters.
type Floor struct {
	OrdersOpened          prometheus.Counter
	OrdersSettled         prometheus.Counter
	OrdersCancelled       prometheus.Counter
	ReservationsConfirmed prometheus.Counter
	ReservationsRejected  prometheus.Counter
	ReservationsExpired   prometheus.Counter
}

func NewFloor(reg prometheus.Registerer) *Floor {
	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pos",
			Subsystem: "floor",
			Name:      name,
			Help:      help,
		})
		reg.MustRegister(c)
		return c
	}
	return &Floor{
		OrdersOpened:          counter("orders_opened_total", "Orders opened."),
		OrdersSettled:         counter("orders_settled_total", "Orders settled."),
		OrdersCancelled:       counter("orders_cancelled_total", "Orders cancelled."),
		ReservationsConfirmed: counter("reservations_confirmed_total", "Reservations confirmed."),
		ReservationsRejected:  counter("reservations_rejected_total", "Reservation requests rejected."),
		ReservationsExpired:   counter("reservations_expired_total", "Reservations expired unclaimed."),
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
