package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/cx-tal-miterani/flight-booking-system/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

// RepositoryTestSuite runs against a real Postgres named by TEST_DATABASE_URL
type RepositoryTestSuite struct {
	suite.Suite
	ctx  context.Context
	pool *pgxpool.Pool
	repo *Repository
}

func TestRepositorySuite(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	suite.Run(t, &RepositoryTestSuite{})
}

func (s *RepositoryTestSuite) SetupSuite() {
	s.ctx = context.Background()
	pool, err := Connect(s.ctx, os.Getenv("TEST_DATABASE_URL"), 5)
	s.Require().NoError(err)
	s.pool = pool
	s.repo = NewRepository(pool)
	s.Require().NoError(s.repo.Migrate(s.ctx))
}

func (s *RepositoryTestSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// seed creates a three-seat economy flight and a passenger with balance
func (s *RepositoryTestSuite) seed(balance int64) (flightID, passengerID string) {
	seats, err := models.SeatLayout{EconomySeats: 3, EconomySeatsExtraLegroom: 1}.BuildSeats()
	s.Require().NoError(err)

	aircraft := &models.Aircraft{ID: uuid.NewString(), OwnerID: "airline-test", Name: "Test", Seats: seats}
	s.Require().NoError(s.repo.CreateAircraft(s.ctx, aircraft))

	flight := &models.Flight{
		ID:            uuid.NewString(),
		AirlineID:     "airline-test",
		AircraftID:    aircraft.ID,
		DepartureTime: time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second),
		Costs: models.CostTable{
			EconomyCost:      decimal.RequireFromString("99.90"),
			ExtraBaggageCost: decimal.NewFromInt(20),
		},
		Seats: seats,
	}
	s.Require().NoError(s.repo.CreateFlight(s.ctx, flight))

	passenger := &models.Passenger{
		ID:      uuid.NewString(),
		Name:    "Test Passenger",
		Email:   uuid.NewString() + "@example.com",
		Balance: decimal.NewFromInt(balance),
	}
	s.Require().NoError(s.repo.CreatePassenger(s.ctx, passenger))
	return flight.ID, passenger.ID
}

func (s *RepositoryTestSuite) TestFlightRoundTrip() {
	flightID, _ := s.seed(0)

	flight, err := s.repo.GetFlight(s.ctx, flightID)
	s.Require().NoError(err)
	s.Len(flight.Seats, 3)
	s.True(decimal.RequireFromString("99.90").Equal(flight.Costs.EconomyCost))
	s.False(flight.Costs.ExtraLegroomCost.Valid)

	seat, ok := flight.Seat(1)
	s.Require().True(ok)
	s.True(seat.IsExtraLegroom)

	_, err = s.repo.GetFlight(s.ctx, uuid.NewString())
	s.ErrorIs(err, ErrNotFound)
}

func (s *RepositoryTestSuite) TestListAircraftByOwner() {
	owner := "airline-" + uuid.NewString()
	seats, err := models.SeatLayout{EconomySeats: 2, BusinessSeats: 1}.BuildSeats()
	s.Require().NoError(err)

	for _, name := range []string{"First", "Second"} {
		s.Require().NoError(s.repo.CreateAircraft(s.ctx, &models.Aircraft{OwnerID: owner, Name: name, Seats: seats}))
	}

	fleet, err := s.repo.ListAircraftByOwner(s.ctx, owner)
	s.Require().NoError(err)
	s.Require().Len(fleet, 2)
	for _, a := range fleet {
		s.Equal(owner, a.OwnerID)
		s.Len(a.Seats, 3)
	}

	fleet, err = s.repo.ListAircraftByOwner(s.ctx, "airline-"+uuid.NewString())
	s.Require().NoError(err)
	s.Empty(fleet)
}

func (s *RepositoryTestSuite) TestUpdateFlightCosts() {
	flightID, _ := s.seed(0)

	costs := models.CostTable{
		EconomyCost:      decimal.NewFromInt(120),
		ExtraLegroomCost: decimal.NewNullDecimal(decimal.NewFromInt(15)),
	}
	s.Require().NoError(s.repo.UpdateFlightCosts(s.ctx, flightID, costs))

	flight, err := s.repo.GetFlight(s.ctx, flightID)
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(120).Equal(flight.Costs.EconomyCost))
	s.True(flight.Costs.ExtraLegroomCost.Valid)

	s.ErrorIs(s.repo.UpdateFlightCosts(s.ctx, uuid.NewString(), costs), ErrNotFound)
}

func (s *RepositoryTestSuite) TestPurchaseCommits() {
	flightID, passengerID := s.seed(200)

	err := s.repo.WithTx(s.ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.ReserveSeat(ctx, flightID, 2); err != nil {
			return err
		}
		balance, err := tx.Debit(ctx, passengerID, decimal.RequireFromString("99.90"))
		if err != nil {
			return err
		}
		s.True(decimal.RequireFromString("100.10").Equal(balance))
		return tx.AppendTicket(ctx, &models.Ticket{
			PassengerID: passengerID,
			FlightID:    flightID,
			SeatNumber:  2,
			SeatClass:   models.SeatClassEconomy,
			Price:       decimal.RequireFromString("99.90"),
		})
	})
	s.Require().NoError(err)

	flight, err := s.repo.GetFlight(s.ctx, flightID)
	s.Require().NoError(err)
	seat, _ := flight.Seat(2)
	s.False(seat.IsAvailable)

	tickets, err := s.repo.ListTicketsByPassenger(s.ctx, passengerID)
	s.Require().NoError(err)
	s.Require().Len(tickets, 1)
	s.NotEmpty(tickets[0].ID)

	tickets, err = s.repo.ListTicketsByFlight(s.ctx, flightID)
	s.Require().NoError(err)
	s.Len(tickets, 1)
}

func (s *RepositoryTestSuite) TestPurchaseRollsBack() {
	flightID, passengerID := s.seed(50)

	err := s.repo.WithTx(s.ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.ReserveSeat(ctx, flightID, 1); err != nil {
			return err
		}
		_, err := tx.Debit(ctx, passengerID, decimal.NewFromInt(100))
		return err
	})
	s.ErrorIs(err, ErrInsufficientFunds)

	flight, err := s.repo.GetFlight(s.ctx, flightID)
	s.Require().NoError(err)
	seat, _ := flight.Seat(1)
	s.True(seat.IsAvailable)

	passenger, err := s.repo.GetPassenger(s.ctx, passengerID)
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(50).Equal(passenger.Balance))
}

func (s *RepositoryTestSuite) TestReserveSeatErrors() {
	flightID, _ := s.seed(0)

	err := s.repo.WithTx(s.ctx, func(ctx context.Context, tx Tx) error {
		s.Require().NoError(tx.ReserveSeat(ctx, flightID, 3))
		s.ErrorIs(tx.ReserveSeat(ctx, flightID, 3), ErrSeatNotAvailable)
		s.ErrorIs(tx.ReserveSeat(ctx, flightID, 99), ErrNotFound)
		return nil
	})
	s.Require().NoError(err)
}

func (s *RepositoryTestSuite) TestDeposit() {
	_, passengerID := s.seed(10)

	balance, err := s.repo.Deposit(s.ctx, passengerID, decimal.RequireFromString("5.25"))
	s.Require().NoError(err)
	s.True(decimal.RequireFromString("15.25").Equal(balance))

	_, err = s.repo.Deposit(s.ctx, uuid.NewString(), decimal.NewFromInt(1))
	s.ErrorIs(err, ErrNotFound)
}
