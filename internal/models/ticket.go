package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Passenger owns a wallet balance
type Passenger struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// Ticket is an immutable record of one purchased seat.
// Price is captured at purchase time and never follows later cost changes.
type Ticket struct {
	ID           string          `json:"id"`
	PassengerID  string          `json:"passenger_id"`
	FlightID     string          `json:"flight_id"`
	SeatNumber   int             `json:"seat_number"`
	SeatClass    SeatClass       `json:"seat_class"`
	Price        decimal.Decimal `json:"price"`
	ExtraBaggage bool            `json:"extra_baggage"`
	CreatedAt    time.Time       `json:"created_at"`
}

// LineItem is one seat within a purchase batch
type LineItem struct {
	FlightID     string `json:"flight_id"`
	SeatNumber   int    `json:"seat_number"`
	ExtraBaggage bool   `json:"extra_baggage"`
}

// PurchaseRequest is the transient input of one atomic purchase
type PurchaseRequest struct {
	PassengerID string     `json:"passenger_id"`
	Items       []LineItem `json:"items"`
	RequestID   string     `json:"request_id,omitempty"`
}

// PurchaseResult is returned once a purchase is committed
type PurchaseResult struct {
	Tickets []Ticket        `json:"tickets"`
	Balance decimal.Decimal `json:"balance"`
}

// FlightIDs returns the distinct flights touched by the result, in ticket order
func (r *PurchaseResult) FlightIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, t := range r.Tickets {
		if !seen[t.FlightID] {
			seen[t.FlightID] = true
			ids = append(ids, t.FlightID)
		}
	}
	return ids
}

// SeatsOn returns the seat numbers sold on flightID
func (r *PurchaseResult) SeatsOn(flightID string) []int {
	var seats []int
	for _, t := range r.Tickets {
		if t.FlightID == flightID {
			seats = append(seats, t.SeatNumber)
		}
	}
	return seats
}
