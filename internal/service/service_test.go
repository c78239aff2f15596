package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cx-tal-miterani/flight-booking-system/internal/booking"
	"github.com/cx-tal-miterani/flight-booking-system/internal/cache"
	"github.com/cx-tal-miterani/flight-booking-system/internal/database"
	"github.com/cx-tal-miterani/flight-booking-system/internal/events"
	"github.com/cx-tal-miterani/flight-booking-system/internal/models"
	"github.com/cx-tal-miterani/flight-booking-system/internal/pricing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SeatsSold(flightID string, seatNumbers []int) {
	m.Called(flightID, seatNumbers)
}

func (m *mockNotifier) CostsUpdated(flightID string) {
	m.Called(flightID)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishTicketsPurchased(ctx context.Context, event events.TicketsPurchased) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockPublisher) Close() error { return nil }

type serviceFixture struct {
	svc       BookingService
	store     *database.MemoryStore
	notifier  *mockNotifier
	publisher *mockPublisher
	ctx       context.Context
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	store := database.NewMemoryStore()
	logger := zap.NewNop()
	orch := booking.NewOrchestrator(store, pricing.NewEngine(decimal.NewFromInt(25)), logger)

	f := &serviceFixture{
		store:     store,
		notifier:  new(mockNotifier),
		publisher: new(mockPublisher),
		ctx:       context.Background(),
	}
	f.svc = NewBookingService(Deps{
		Store:        store,
		Orchestrator: orch,
		Notifier:     f.notifier,
		Publisher:    f.publisher,
		Logger:       logger,
	})

	require.NoError(t, SeedSampleData(f.ctx, store, logger))
	return f
}

func TestSeedSampleData_Idempotent(t *testing.T) {
	f := newServiceFixture(t)

	require.NoError(t, SeedSampleData(f.ctx, f.store, zap.NewNop()))

	flights, err := f.svc.GetFlights(f.ctx)
	require.NoError(t, err)
	assert.Len(t, flights, 3)
	assert.Equal(t, 30, flights[0].TotalSeats)

	seat, ok := mustFlight(t, f, "MXP-JFK").Seat(11)
	require.True(t, ok)
	assert.True(t, seat.IsExtraLegroom)
	assert.Equal(t, models.SeatClassEconomy, seat.Class)
}

// failOnceStore fails the first CreateFlight for one flight id
type failOnceStore struct {
	database.Store
	flightID string
	failed   bool
}

func (s *failOnceStore) CreateFlight(ctx context.Context, flight *models.Flight) error {
	if flight.ID == s.flightID && !s.failed {
		s.failed = true
		return errors.New("connection reset")
	}
	return s.Store.CreateFlight(ctx, flight)
}

func TestSeedSampleData_ResumesAfterPartialFailure(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	flaky := &failOnceStore{Store: store, flightID: "FCO-CDG"}

	require.Error(t, SeedSampleData(ctx, flaky, zap.NewNop()))

	flights, err := store.ListFlights(ctx)
	require.NoError(t, err)
	assert.Len(t, flights, 1)
	_, err = store.GetPassenger(ctx, SamplePassengerID)
	assert.ErrorIs(t, err, database.ErrNotFound)

	require.NoError(t, SeedSampleData(ctx, flaky, zap.NewNop()))

	flights, err = store.ListFlights(ctx)
	require.NoError(t, err)
	assert.Len(t, flights, 3)

	fleet, err := store.ListAircraftByOwner(ctx, SampleAirlineID)
	require.NoError(t, err)
	assert.Len(t, fleet, 2)

	passenger, err := store.GetPassenger(ctx, SamplePassengerID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5000).Equal(passenger.Balance))
}

func TestCreateFlight_SnapshotsAircraftTemplate(t *testing.T) {
	f := newServiceFixture(t)

	aircraft, err := f.svc.CreateAircraft(f.ctx, "airline-x", &models.CreateAircraftRequest{
		Name: "Embraer 190",
		SeatLayout: models.SeatLayout{
			EconomySeats:             4,
			EconomySeatsExtraLegroom: 1,
			BusinessSeats:            2,
		},
	})
	require.NoError(t, err)
	require.Len(t, aircraft.Seats, 6)

	flight, err := f.svc.CreateFlight(f.ctx, "airline-x", &models.CreateFlightRequest{
		AircraftID:    aircraft.ID,
		DepartureTime: time.Now().Add(time.Hour),
		CostTable:     models.CostTable{EconomyCost: decimal.NewFromInt(80), BusinessCost: decimal.NewFromInt(200)},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, flight.ID)
	assert.Equal(t, 6, flight.AvailableSeats())

	seat, _ := flight.Seat(1)
	assert.True(t, seat.IsExtraLegroom)
	seat, _ = flight.Seat(5)
	assert.Equal(t, models.SeatClassBusiness, seat.Class)
}

func TestGetMyAircraft(t *testing.T) {
	f := newServiceFixture(t)

	fleet, err := f.svc.GetMyAircraft(f.ctx, SampleAirlineID)
	require.NoError(t, err)
	require.Len(t, fleet, 2)
	assert.Equal(t, "boeing-737", fleet[0].ID)
	assert.Equal(t, "airbus-a320", fleet[1].ID)

	fleet, err = f.svc.GetMyAircraft(f.ctx, "other-airline")
	require.NoError(t, err)
	assert.Empty(t, fleet)
}

func TestCreateFlight_Errors(t *testing.T) {
	f := newServiceFixture(t)
	departure := time.Now().Add(time.Hour)

	tests := []struct {
		name    string
		airline string
		req     models.CreateFlightRequest
		kind    booking.Kind
	}{
		{"missing aircraft", SampleAirlineID, models.CreateFlightRequest{DepartureTime: departure}, booking.KindBadRequest},
		{"missing departure", SampleAirlineID, models.CreateFlightRequest{AircraftID: "boeing-737"}, booking.KindBadRequest},
		{"negative cost", SampleAirlineID, models.CreateFlightRequest{
			AircraftID: "boeing-737", DepartureTime: departure,
			CostTable: models.CostTable{EconomyCost: decimal.NewFromInt(-1)},
		}, booking.KindBadRequest},
		{"fractional cent cost", SampleAirlineID, models.CreateFlightRequest{
			AircraftID: "boeing-737", DepartureTime: departure,
			CostTable: models.CostTable{EconomyCost: decimal.RequireFromString("99.999")},
		}, booking.KindBadRequest},
		{"fractional cent legroom cost", SampleAirlineID, models.CreateFlightRequest{
			AircraftID: "boeing-737", DepartureTime: departure,
			CostTable: models.CostTable{ExtraLegroomCost: decimal.NewNullDecimal(decimal.RequireFromString("0.005"))},
		}, booking.KindBadRequest},
		{"unknown aircraft", SampleAirlineID, models.CreateFlightRequest{AircraftID: "concorde", DepartureTime: departure}, booking.KindNotFound},
		{"foreign aircraft", "other-airline", models.CreateFlightRequest{AircraftID: "boeing-737", DepartureTime: departure}, booking.KindForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateFlight(f.ctx, tt.airline, &tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, booking.KindOf(err))
		})
	}
}

func TestUpdateFlightCosts(t *testing.T) {
	f := newServiceFixture(t)

	costs := mustFlight(t, f, "FCO-CDG").Costs
	costs.EconomyCost = decimal.NewFromInt(120)

	_, err := f.svc.UpdateFlightCosts(f.ctx, "other-airline", "FCO-CDG", costs)
	assert.Equal(t, booking.KindForbidden, booking.KindOf(err))

	f.notifier.On("CostsUpdated", "FCO-CDG").Once()
	flight, err := f.svc.UpdateFlightCosts(f.ctx, SampleAirlineID, "FCO-CDG", costs)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(120).Equal(flight.Costs.EconomyCost))

	_, err = f.svc.UpdateFlightCosts(f.ctx, SampleAirlineID, "missing", costs)
	assert.Equal(t, booking.KindNotFound, booking.KindOf(err))

	f.notifier.AssertExpectations(t)
}

func TestGetSeats_Filters(t *testing.T) {
	f := newServiceFixture(t)
	available := true

	seats, err := f.svc.GetSeats(f.ctx, "MXP-JFK", models.SeatFilter{Class: models.SeatClassFirstClass})
	require.NoError(t, err)
	assert.Len(t, seats, 4)

	seats, err = f.svc.GetSeats(f.ctx, "MXP-JFK", models.SeatFilter{Available: &available, Class: models.SeatClassBusiness})
	require.NoError(t, err)
	assert.Len(t, seats, 6)

	_, err = f.svc.GetSeats(f.ctx, "MXP-JFK", models.SeatFilter{Class: "premium"})
	assert.Equal(t, booking.KindBadRequest, booking.KindOf(err))

	_, err = f.svc.GetSeats(f.ctx, "missing", models.SeatFilter{})
	assert.Equal(t, booking.KindNotFound, booking.KindOf(err))
}

func TestPurchaseTickets_SideEffects(t *testing.T) {
	f := newServiceFixture(t)

	f.notifier.On("SeatsSold", "MXP-JFK", []int{11, 20}).Once()
	f.publisher.On("PublishTicketsPurchased", mock.Anything, mock.MatchedBy(func(e events.TicketsPurchased) bool {
		return e.PassengerID == SamplePassengerID && len(e.Tickets) == 2
	})).Return(errors.New("broker down")).Once()

	result, err := f.svc.PurchaseTickets(f.ctx, models.PurchaseRequest{
		PassengerID: SamplePassengerID,
		Items: []models.LineItem{
			{FlightID: "MXP-JFK", SeatNumber: 11},
			{FlightID: "MXP-JFK", SeatNumber: 20, ExtraBaggage: true},
		},
	})
	require.NoError(t, err, "publish failures never fail a committed purchase")
	require.Len(t, result.Tickets, 2)

	// 500 + 25 default legroom, then 500 + 50 baggage
	assert.True(t, decimal.NewFromInt(525).Equal(result.Tickets[0].Price))
	assert.True(t, decimal.NewFromInt(550).Equal(result.Tickets[1].Price))
	assert.True(t, decimal.NewFromInt(3925).Equal(result.Balance))

	wallet, err := f.svc.GetWallet(f.ctx, SamplePassengerID)
	require.NoError(t, err)
	assert.True(t, result.Balance.Equal(wallet.Balance))

	tickets, err := f.svc.GetFlightTickets(f.ctx, SampleAirlineID, "MXP-JFK")
	require.NoError(t, err)
	assert.Len(t, tickets, 2)

	_, err = f.svc.GetFlightTickets(f.ctx, "other-airline", "MXP-JFK")
	assert.Equal(t, booking.KindForbidden, booking.KindOf(err))

	f.notifier.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestPurchaseTickets_RejectedHasNoSideEffects(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.PurchaseTickets(f.ctx, models.PurchaseRequest{
		PassengerID: SamplePassengerID,
		Items:       []models.LineItem{{FlightID: "LHR-HND", SeatNumber: 1}, {FlightID: "LHR-HND", SeatNumber: 2}},
	})
	assert.Equal(t, booking.KindInsufficientFunds, booking.KindOf(err))

	f.notifier.AssertNotCalled(t, "SeatsSold", mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "PublishTicketsPurchased", mock.Anything, mock.Anything)
}

func TestDepositAndWallet(t *testing.T) {
	f := newServiceFixture(t)

	wallet, err := f.svc.Deposit(f.ctx, SamplePassengerID, decimal.NewFromInt(250))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5250).Equal(wallet.Balance))

	_, err = f.svc.Deposit(f.ctx, SamplePassengerID, decimal.Zero)
	assert.Equal(t, booking.KindBadRequest, booking.KindOf(err))

	_, err = f.svc.GetWallet(f.ctx, "nobody")
	assert.Equal(t, booking.KindNotFound, booking.KindOf(err))
}

// generationCache keeps flights in process with the same generation rules as
// the Redis cache
type generationCache struct {
	mu      sync.Mutex
	flights map[string]*models.Flight
	gens    map[string]int64
}

func newGenerationCache() *generationCache {
	return &generationCache{flights: make(map[string]*models.Flight), gens: make(map[string]int64)}
}

func (c *generationCache) GetFlight(ctx context.Context, id string) (*models.Flight, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	flight, ok := c.flights[id]
	if !ok {
		return nil, cache.ErrMiss
	}
	return flight, nil
}

func (c *generationCache) Generation(ctx context.Context, id string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[id], nil
}

func (c *generationCache) SetFlight(ctx context.Context, flight *models.Flight, generation int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[flight.ID] == generation {
		c.flights[flight.ID] = flight
	}
	return nil
}

func (c *generationCache) Invalidate(ctx context.Context, ids ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.gens[id]++
		delete(c.flights, id)
	}
	return nil
}

// interleavingStore runs between once, right after the first flight load
type interleavingStore struct {
	database.Store
	once    sync.Once
	between func()
}

func (s *interleavingStore) GetFlight(ctx context.Context, id string) (*models.Flight, error) {
	flight, err := s.Store.GetFlight(ctx, id)
	s.once.Do(func() {
		if s.between != nil {
			s.between()
		}
	})
	return flight, err
}

func TestGetFlight_PurchaseDuringCacheFillIsNotCached(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()
	store := database.NewMemoryStore()
	require.NoError(t, SeedSampleData(ctx, store, logger))

	flightCache := newGenerationCache()
	interleaved := &interleavingStore{Store: store}
	svc := NewBookingService(Deps{
		Store:        interleaved,
		Orchestrator: booking.NewOrchestrator(store, pricing.NewEngine(decimal.NewFromInt(25)), logger),
		Cache:        flightCache,
		Logger:       logger,
	})

	interleaved.between = func() {
		_, err := svc.PurchaseTickets(ctx, models.PurchaseRequest{
			PassengerID: SamplePassengerID,
			Items:       []models.LineItem{{FlightID: "FCO-CDG", SeatNumber: 1}},
		})
		require.NoError(t, err)
	}

	stale, err := svc.GetFlight(ctx, "FCO-CDG")
	require.NoError(t, err)
	seat, _ := stale.Seat(1)
	assert.True(t, seat.IsAvailable, "loaded before the purchase committed")

	_, err = flightCache.GetFlight(ctx, "FCO-CDG")
	assert.ErrorIs(t, err, cache.ErrMiss)

	fresh, err := svc.GetFlight(ctx, "FCO-CDG")
	require.NoError(t, err)
	seat, _ = fresh.Seat(1)
	assert.False(t, seat.IsAvailable)

	cached, err := flightCache.GetFlight(ctx, "FCO-CDG")
	require.NoError(t, err)
	seat, _ = cached.Seat(1)
	assert.False(t, seat.IsAvailable)
}

func mustFlight(t *testing.T, f *serviceFixture, id string) *models.Flight {
	t.Helper()
	flight, err := f.svc.GetFlight(f.ctx, id)
	require.NoError(t, err)
	return flight
}
