package router

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/cx-tal-miterani/flight-booking-system/internal/auth"
	"github.com/cx-tal-miterani/flight-booking-system/internal/handlers"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// RequestIDHeader carries the per-request correlation id
const RequestIDHeader = "X-Request-ID"

// NewRouter creates and configures the HTTP router
func NewRouter(h *handlers.Handler, authn *auth.Authenticator, logger *zap.Logger) *mux.Router {
	r := mux.NewRouter()

	r.Use(requestLogger(logger))
	r.Use(corsMiddleware)

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	// Passenger routes
	passenger := api.NewRoute().Subrouter()
	passenger.Use(authn.Middleware, auth.RequireRole(auth.RolePassenger))
	passenger.HandleFunc("/tickets/purchase", h.PurchaseTickets).Methods(http.MethodPost)
	passenger.HandleFunc("/tickets", h.GetTickets).Methods(http.MethodGet)
	passenger.HandleFunc("/wallet", h.GetWallet).Methods(http.MethodGet)
	passenger.HandleFunc("/wallet/deposit", h.Deposit).Methods(http.MethodPost)

	// Airline routes
	airline := api.NewRoute().Subrouter()
	airline.Use(authn.Middleware, auth.RequireRole(auth.RoleAirline))
	airline.HandleFunc("/aircraft", h.GetMyAircraft).Methods(http.MethodGet)
	airline.HandleFunc("/aircraft", h.CreateAircraft).Methods(http.MethodPost)
	airline.HandleFunc("/flights", h.CreateFlight).Methods(http.MethodPost)
	airline.HandleFunc("/flights/{id}/costs", h.UpdateFlightCosts).Methods(http.MethodPatch)
	airline.HandleFunc("/flights/{id}/tickets", h.GetFlightTickets).Methods(http.MethodGet)

	// Public flight browsing
	api.HandleFunc("/flights", h.GetFlights).Methods(http.MethodGet)
	api.HandleFunc("/flights/{id}", h.GetFlight).Methods(http.MethodGet)
	api.HandleFunc("/flights/{id}/seats", h.GetFlightSeats).Methods(http.MethodGet)

	// WebSocket for real-time updates
	api.HandleFunc("/flights/{id}/ws", h.FlightUpdates).Methods(http.MethodGet)

	// Preflight for every path
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Idempotency-Key")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status and size written by a handler. It
// stays hijackable so websocket upgrades pass through the logger.
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.size += n
	return n, err
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// requestLogger logs every request with its outcome
func requestLogger(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			fields := []zap.Field{
				zap.String("request_id", requestID),
				zap.Int("status", rec.status),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Duration("latency", time.Since(start)),
				zap.Int("body_size", rec.size),
			}

			switch {
			case rec.status >= 500:
				logger.Error("Server error", fields...)
			case rec.status >= 400:
				logger.Warn("Client error", fields...)
			default:
				logger.Info("Request completed", fields...)
			}
		})
	}
}
