package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateAircraftRequest registers an aircraft and its seat template
type CreateAircraftRequest struct {
	Name string `json:"name"`
	SeatLayout
}

// CreateFlightRequest creates a flight from an aircraft template
type CreateFlightRequest struct {
	AircraftID    string    `json:"aircraft_id"`
	DepartureTime time.Time `json:"departure_time"`
	CostTable
}

// UpdateCostsRequest replaces a flight's cost table
type UpdateCostsRequest struct {
	CostTable
}

// DepositRequest tops up a wallet
type DepositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// WalletResponse reports a passenger's balance
type WalletResponse struct {
	PassengerID string          `json:"passenger_id"`
	Balance     decimal.Decimal `json:"balance"`
}

// FlightSummary is the listing view of a flight without its seat snapshot
type FlightSummary struct {
	ID             string    `json:"id"`
	AirlineID      string    `json:"airline_id"`
	AircraftID     string    `json:"aircraft_id"`
	DepartureTime  time.Time `json:"departure_time"`
	Costs          CostTable `json:"costs"`
	TotalSeats     int       `json:"total_seats"`
	AvailableSeats int       `json:"available_seats"`
}

// Summary builds the listing view of f
func (f *Flight) Summary() FlightSummary {
	return FlightSummary{
		ID:             f.ID,
		AirlineID:      f.AirlineID,
		AircraftID:     f.AircraftID,
		DepartureTime:  f.DepartureTime,
		Costs:          f.Costs,
		TotalSeats:     len(f.Seats),
		AvailableSeats: f.AvailableSeats(),
	}
}

// PurchaseResponse is the HTTP body returned after a committed purchase
type PurchaseResponse struct {
	Message string          `json:"message"`
	Tickets []Ticket        `json:"tickets"`
	Balance decimal.Decimal `json:"balance"`
}

// ErrorResponse is the structured error body. Error carries the failure
// kind, e.g. "insufficient_funds" or "unauthorized".
type ErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
