package database

import (
	"context"
	"errors"

	"github.com/cx-tal-miterani/flight-booking-system/internal/models"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrSeatNotAvailable  = errors.New("seat not available")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Tx is the mutation surface of one purchase. Every change made through a Tx
// lands together on commit or not at all.
type Tx interface {
	// ReserveSeat flips an available seat to unavailable
	ReserveSeat(ctx context.Context, flightID string, seatNumber int) error
	// Debit takes amount from the passenger's wallet and returns the new balance
	Debit(ctx context.Context, passengerID string, amount decimal.Decimal) (decimal.Decimal, error)
	// AppendTicket records a ticket and assigns its ID
	AppendTicket(ctx context.Context, ticket *models.Ticket) error
}

// Store is implemented by both the Postgres repository and the in-memory store
type Store interface {
	GetFlight(ctx context.Context, id string) (*models.Flight, error)
	ListFlights(ctx context.Context) ([]*models.Flight, error)
	CreateFlight(ctx context.Context, flight *models.Flight) error
	UpdateFlightCosts(ctx context.Context, id string, costs models.CostTable) error

	GetAircraft(ctx context.Context, id string) (*models.Aircraft, error)
	CreateAircraft(ctx context.Context, aircraft *models.Aircraft) error
	ListAircraftByOwner(ctx context.Context, ownerID string) ([]*models.Aircraft, error)

	GetPassenger(ctx context.Context, id string) (*models.Passenger, error)
	CreatePassenger(ctx context.Context, passenger *models.Passenger) error
	Deposit(ctx context.Context, passengerID string, amount decimal.Decimal) (decimal.Decimal, error)

	ListTicketsByPassenger(ctx context.Context, passengerID string) ([]models.Ticket, error)
	ListTicketsByFlight(ctx context.Context, flightID string) ([]models.Ticket, error)

	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
