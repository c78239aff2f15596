package mocks

import (
	"context"

	"github.com/cx-tal-miterani/flight-booking-system/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockBookingService is a mock implementation of BookingService
type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) GetFlights(ctx context.Context) ([]models.FlightSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FlightSummary), args.Error(1)
}

func (m *MockBookingService) GetFlight(ctx context.Context, flightID string) (*models.Flight, error) {
	args := m.Called(ctx, flightID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Flight), args.Error(1)
}

func (m *MockBookingService) GetSeats(ctx context.Context, flightID string, filter models.SeatFilter) ([]models.Seat, error) {
	args := m.Called(ctx, flightID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Seat), args.Error(1)
}

func (m *MockBookingService) CreateAircraft(ctx context.Context, ownerID string, req *models.CreateAircraftRequest) (*models.Aircraft, error) {
	args := m.Called(ctx, ownerID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Aircraft), args.Error(1)
}

func (m *MockBookingService) GetMyAircraft(ctx context.Context, ownerID string) ([]*models.Aircraft, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Aircraft), args.Error(1)
}

func (m *MockBookingService) CreateFlight(ctx context.Context, airlineID string, req *models.CreateFlightRequest) (*models.Flight, error) {
	args := m.Called(ctx, airlineID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Flight), args.Error(1)
}

func (m *MockBookingService) UpdateFlightCosts(ctx context.Context, airlineID, flightID string, costs models.CostTable) (*models.Flight, error) {
	args := m.Called(ctx, airlineID, flightID, costs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Flight), args.Error(1)
}

func (m *MockBookingService) GetFlightTickets(ctx context.Context, airlineID, flightID string) ([]models.Ticket, error) {
	args := m.Called(ctx, airlineID, flightID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Ticket), args.Error(1)
}

func (m *MockBookingService) PurchaseTickets(ctx context.Context, req models.PurchaseRequest) (*models.PurchaseResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PurchaseResult), args.Error(1)
}

func (m *MockBookingService) GetPassengerTickets(ctx context.Context, passengerID string) ([]models.Ticket, error) {
	args := m.Called(ctx, passengerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Ticket), args.Error(1)
}

func (m *MockBookingService) GetWallet(ctx context.Context, passengerID string) (*models.WalletResponse, error) {
	args := m.Called(ctx, passengerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WalletResponse), args.Error(1)
}

func (m *MockBookingService) Deposit(ctx context.Context, passengerID string, amount decimal.Decimal) (*models.WalletResponse, error) {
	args := m.Called(ctx, passengerID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WalletResponse), args.Error(1)
}
