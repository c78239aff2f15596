package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cx-tal-miterani/flight-booking-system/internal/auth"
	"github.com/cx-tal-miterani/flight-booking-system/internal/booking"
	"github.com/cx-tal-miterani/flight-booking-system/internal/models"
	"github.com/cx-tal-miterani/flight-booking-system/internal/service"
	"github.com/cx-tal-miterani/flight-booking-system/internal/websocket"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader names the header a client uses to make a purchase
// submission safe to retry
const IdempotencyKeyHeader = "X-Idempotency-Key"

// Handler contains HTTP handlers for the API
type Handler struct {
	bookingService service.BookingService
	hub            *websocket.Hub
	logger         *zap.Logger
}

// NewHandler creates a new Handler instance
func NewHandler(bookingService service.BookingService, hub *websocket.Hub, logger *zap.Logger) *Handler {
	return &Handler{
		bookingService: bookingService,
		hub:            hub,
		logger:         logger,
	}
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError writes the error body. kind is the machine-checkable failure
// class; message is for humans.
func respondError(w http.ResponseWriter, status int, kind, message string) {
	respondJSON(w, status, models.ErrorResponse{Message: message, Error: kind})
}

func respondBadRequest(w http.ResponseWriter, message string) {
	respondError(w, http.StatusBadRequest, string(booking.KindBadRequest), message)
}

// respondServiceError translates a booking failure into its status code.
// Internal failures are logged and reported with a generic message.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := booking.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
	if kind == booking.KindInternal {
		respondError(w, status, string(kind), "internal error")
		return
	}
	respondError(w, status, string(kind), booking.MessageOf(err))
}

func statusFor(kind booking.Kind) int {
	switch kind {
	case booking.KindBadRequest, booking.KindInsufficientFunds:
		return http.StatusBadRequest
	case booking.KindNotFound:
		return http.StatusNotFound
	case booking.KindConflict:
		return http.StatusConflict
	case booking.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, auth.KindUnauthorized, auth.ErrMissingToken.Error())
	}
	return p, ok
}

// GetFlights handles GET /api/flights
func (h *Handler) GetFlights(w http.ResponseWriter, r *http.Request) {
	flights, err := h.bookingService.GetFlights(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, flights)
}

// GetFlight handles GET /api/flights/{id}
func (h *Handler) GetFlight(w http.ResponseWriter, r *http.Request) {
	flight, err := h.bookingService.GetFlight(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, flight)
}

// GetFlightSeats handles GET /api/flights/{id}/seats
func (h *Handler) GetFlightSeats(w http.ResponseWriter, r *http.Request) {
	var filter models.SeatFilter
	query := r.URL.Query()

	if v := query.Get("available"); v != "" {
		available, err := strconv.ParseBool(v)
		if err != nil {
			respondBadRequest(w, "available must be true or false")
			return
		}
		filter.Available = &available
	}
	filter.Class = models.SeatClass(query.Get("class"))

	seats, err := h.bookingService.GetSeats(r.Context(), mux.Vars(r)["id"], filter)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, seats)
}

// PurchaseTickets handles POST /api/tickets/purchase. The body is either a
// single line item or an array of them.
func (h *Handler) PurchaseTickets(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	items, err := decodeLineItems(r)
	if err != nil {
		respondBadRequest(w, "Invalid request body")
		return
	}

	result, err := h.bookingService.PurchaseTickets(r.Context(), models.PurchaseRequest{
		PassengerID: p.ID,
		Items:       items,
		RequestID:   r.Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	message := "Ticket purchased successfully"
	if len(result.Tickets) > 1 {
		message = strconv.Itoa(len(result.Tickets)) + " tickets purchased successfully"
	}
	respondJSON(w, http.StatusCreated, models.PurchaseResponse{
		Message: message,
		Tickets: result.Tickets,
		Balance: result.Balance,
	})
}

func decodeLineItems(r *http.Request) ([]models.LineItem, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []models.LineItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var item models.LineItem
	if err := json.Unmarshal(trimmed, &item); err != nil {
		return nil, err
	}
	return []models.LineItem{item}, nil
}

// GetTickets handles GET /api/tickets
func (h *Handler) GetTickets(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	tickets, err := h.bookingService.GetPassengerTickets(r.Context(), p.ID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tickets)
}

// GetWallet handles GET /api/wallet
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	wallet, err := h.bookingService.GetWallet(r.Context(), p.ID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, wallet)
}

// Deposit handles POST /api/wallet/deposit
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req models.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "Invalid request body")
		return
	}

	wallet, err := h.bookingService.Deposit(r.Context(), p.ID, req.Amount)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, wallet)
}

// CreateAircraft handles POST /api/aircraft
func (h *Handler) CreateAircraft(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req models.CreateAircraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "Invalid request body")
		return
	}

	aircraft, err := h.bookingService.CreateAircraft(r.Context(), p.ID, &req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, aircraft)
}

// GetMyAircraft handles GET /api/aircraft
func (h *Handler) GetMyAircraft(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	fleet, err := h.bookingService.GetMyAircraft(r.Context(), p.ID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, fleet)
}

// CreateFlight handles POST /api/flights
func (h *Handler) CreateFlight(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req models.CreateFlightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "Invalid request body")
		return
	}

	flight, err := h.bookingService.CreateFlight(r.Context(), p.ID, &req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, flight)
}

// UpdateFlightCosts handles PATCH /api/flights/{id}/costs
func (h *Handler) UpdateFlightCosts(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req models.UpdateCostsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "Invalid request body")
		return
	}

	flight, err := h.bookingService.UpdateFlightCosts(r.Context(), p.ID, mux.Vars(r)["id"], req.CostTable)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, flight)
}

// GetFlightTickets handles GET /api/flights/{id}/tickets
func (h *Handler) GetFlightTickets(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	tickets, err := h.bookingService.GetFlightTickets(r.Context(), p.ID, mux.Vars(r)["id"])
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tickets)
}

// FlightUpdates handles GET /api/flights/{id}/ws
func (h *Handler) FlightUpdates(w http.ResponseWriter, r *http.Request) {
	flightID := mux.Vars(r)["id"]
	if _, err := h.bookingService.GetFlight(r.Context(), flightID); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.hub.HandleWebSocket(w, r, flightID)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
