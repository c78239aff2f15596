package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/cx-tal-miterani/flight-booking-system/internal/booking"
	"github.com/cx-tal-miterani/flight-booking-system/internal/cache"
	"github.com/cx-tal-miterani/flight-booking-system/internal/database"
	"github.com/cx-tal-miterani/flight-booking-system/internal/events"
	"github.com/cx-tal-miterani/flight-booking-system/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BookingService defines the booking service interface
type BookingService interface {
	GetFlights(ctx context.Context) ([]models.FlightSummary, error)
	GetFlight(ctx context.Context, flightID string) (*models.Flight, error)
	GetSeats(ctx context.Context, flightID string, filter models.SeatFilter) ([]models.Seat, error)

	CreateAircraft(ctx context.Context, ownerID string, req *models.CreateAircraftRequest) (*models.Aircraft, error)
	GetMyAircraft(ctx context.Context, ownerID string) ([]*models.Aircraft, error)
	CreateFlight(ctx context.Context, airlineID string, req *models.CreateFlightRequest) (*models.Flight, error)
	UpdateFlightCosts(ctx context.Context, airlineID, flightID string, costs models.CostTable) (*models.Flight, error)
	GetFlightTickets(ctx context.Context, airlineID, flightID string) ([]models.Ticket, error)

	PurchaseTickets(ctx context.Context, req models.PurchaseRequest) (*models.PurchaseResult, error)
	GetPassengerTickets(ctx context.Context, passengerID string) ([]models.Ticket, error)
	GetWallet(ctx context.Context, passengerID string) (*models.WalletResponse, error)
	Deposit(ctx context.Context, passengerID string, amount decimal.Decimal) (*models.WalletResponse, error)
}

// Purchaser executes one atomic purchase. The orchestrator runs it in
// process; TemporalPurchaser hands it to the worker.
type Purchaser interface {
	Purchase(ctx context.Context, req models.PurchaseRequest) (*models.PurchaseResult, error)
}

// SeatNotifier pushes seat map changes to live viewers
type SeatNotifier interface {
	SeatsSold(flightID string, seatNumbers []int)
	CostsUpdated(flightID string)
}

type nopNotifier struct{}

func (nopNotifier) SeatsSold(string, []int) {}
func (nopNotifier) CostsUpdated(string)     {}

// Deps are the collaborators of the booking service. Cache, Notifier and
// Publisher are optional.
type Deps struct {
	Store        database.Store
	Orchestrator *booking.Orchestrator
	Purchaser    Purchaser
	Cache        cache.FlightCache
	Notifier     SeatNotifier
	Publisher    events.Publisher
	Logger       *zap.Logger
}

// bookingServiceImpl implements BookingService
type bookingServiceImpl struct {
	store     database.Store
	orch      *booking.Orchestrator
	purchaser Purchaser
	cache     cache.FlightCache
	notifier  SeatNotifier
	publisher events.Publisher
	logger    *zap.Logger
}

// NewBookingService creates a new BookingService
func NewBookingService(deps Deps) BookingService {
	s := &bookingServiceImpl{
		store:     deps.Store,
		orch:      deps.Orchestrator,
		purchaser: deps.Purchaser,
		cache:     deps.Cache,
		notifier:  deps.Notifier,
		publisher: deps.Publisher,
		logger:    deps.Logger,
	}
	if s.purchaser == nil {
		s.purchaser = deps.Orchestrator
	}
	if s.cache == nil {
		s.cache = cache.Nop{}
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.publisher == nil {
		s.publisher = events.NopPublisher{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// --- Flights ---

func (s *bookingServiceImpl) GetFlights(ctx context.Context) ([]models.FlightSummary, error) {
	flights, err := s.store.ListFlights(ctx)
	if err != nil {
		return nil, storeError(err, "failed to list flights")
	}

	summaries := make([]models.FlightSummary, 0, len(flights))
	for _, f := range flights {
		summaries = append(summaries, f.Summary())
	}
	return summaries, nil
}

func (s *bookingServiceImpl) GetFlight(ctx context.Context, flightID string) (*models.Flight, error) {
	if flight, err := s.cache.GetFlight(ctx, flightID); err == nil {
		return flight, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("Flight cache read failed", zap.String("flight_id", flightID), zap.Error(err))
	}

	// The generation is read before the store so a purchase committed in
	// between makes SetFlight drop this snapshot
	gen, genErr := s.cache.Generation(ctx, flightID)
	if genErr != nil {
		s.logger.Warn("Flight cache generation read failed", zap.String("flight_id", flightID), zap.Error(genErr))
	}

	flight, err := s.store.GetFlight(ctx, flightID)
	if err != nil {
		return nil, storeError(err, fmt.Sprintf("flight %s not found", flightID))
	}

	if genErr == nil {
		if err := s.cache.SetFlight(ctx, flight, gen); err != nil {
			s.logger.Warn("Flight cache write failed", zap.String("flight_id", flightID), zap.Error(err))
		}
	}
	return flight, nil
}

func (s *bookingServiceImpl) GetSeats(ctx context.Context, flightID string, filter models.SeatFilter) ([]models.Seat, error) {
	if filter.Class != "" && !filter.Class.Valid() {
		return nil, booking.NewError(booking.KindBadRequest, fmt.Sprintf("unknown seat class %q", filter.Class))
	}

	flight, err := s.GetFlight(ctx, flightID)
	if err != nil {
		return nil, err
	}

	seats := make([]models.Seat, 0, len(flight.Seats))
	for _, seat := range flight.Seats {
		if filter.Matches(seat) {
			seats = append(seats, seat)
		}
	}
	return seats, nil
}

// --- Airline operations ---

func (s *bookingServiceImpl) CreateAircraft(ctx context.Context, ownerID string, req *models.CreateAircraftRequest) (*models.Aircraft, error) {
	if req.Name == "" {
		return nil, booking.NewError(booking.KindBadRequest, "name is required")
	}
	seats, err := req.SeatLayout.BuildSeats()
	if err != nil {
		return nil, booking.NewError(booking.KindBadRequest, err.Error())
	}

	aircraft := &models.Aircraft{OwnerID: ownerID, Name: req.Name, Seats: seats}
	if err := s.store.CreateAircraft(ctx, aircraft); err != nil {
		return nil, storeError(err, "failed to create aircraft")
	}

	s.logger.Info("Aircraft created",
		zap.String("aircraft_id", aircraft.ID),
		zap.String("owner_id", ownerID),
		zap.Int("seats", len(seats)))
	return aircraft, nil
}

func (s *bookingServiceImpl) GetMyAircraft(ctx context.Context, ownerID string) ([]*models.Aircraft, error) {
	fleet, err := s.store.ListAircraftByOwner(ctx, ownerID)
	if err != nil {
		return nil, storeError(err, "failed to list aircraft")
	}
	return fleet, nil
}

func (s *bookingServiceImpl) CreateFlight(ctx context.Context, airlineID string, req *models.CreateFlightRequest) (*models.Flight, error) {
	if req.AircraftID == "" {
		return nil, booking.NewError(booking.KindBadRequest, "aircraft_id is required")
	}
	if req.DepartureTime.IsZero() {
		return nil, booking.NewError(booking.KindBadRequest, "departure_time is required")
	}
	if err := req.CostTable.Validate(); err != nil {
		return nil, booking.NewError(booking.KindBadRequest, err.Error())
	}

	aircraft, err := s.store.GetAircraft(ctx, req.AircraftID)
	if err != nil {
		return nil, storeError(err, fmt.Sprintf("aircraft %s not found", req.AircraftID))
	}
	if aircraft.OwnerID != airlineID {
		return nil, booking.NewError(booking.KindForbidden, "aircraft belongs to another airline")
	}

	// The flight gets its own copy of the template, every seat for sale
	seats := make([]models.Seat, len(aircraft.Seats))
	for i, seat := range aircraft.Seats {
		seat.IsAvailable = true
		seats[i] = seat
	}

	flight := &models.Flight{
		AirlineID:     airlineID,
		AircraftID:    aircraft.ID,
		DepartureTime: req.DepartureTime.UTC(),
		Costs:         req.CostTable,
		Seats:         seats,
	}
	if err := s.store.CreateFlight(ctx, flight); err != nil {
		return nil, storeError(err, "failed to create flight")
	}

	s.logger.Info("Flight created",
		zap.String("flight_id", flight.ID),
		zap.String("aircraft_id", aircraft.ID),
		zap.Int("seats", len(seats)))
	return flight, nil
}

func (s *bookingServiceImpl) UpdateFlightCosts(ctx context.Context, airlineID, flightID string, costs models.CostTable) (*models.Flight, error) {
	if err := costs.Validate(); err != nil {
		return nil, booking.NewError(booking.KindBadRequest, err.Error())
	}
	if _, err := s.ownedFlight(ctx, airlineID, flightID); err != nil {
		return nil, err
	}

	if err := s.store.UpdateFlightCosts(ctx, flightID, costs); err != nil {
		return nil, storeError(err, fmt.Sprintf("flight %s not found", flightID))
	}
	s.invalidate(ctx, flightID)
	s.notifier.CostsUpdated(flightID)

	s.logger.Info("Flight costs updated", zap.String("flight_id", flightID), zap.String("airline_id", airlineID))

	flight, err := s.store.GetFlight(ctx, flightID)
	if err != nil {
		return nil, storeError(err, fmt.Sprintf("flight %s not found", flightID))
	}
	return flight, nil
}

func (s *bookingServiceImpl) GetFlightTickets(ctx context.Context, airlineID, flightID string) ([]models.Ticket, error) {
	if _, err := s.ownedFlight(ctx, airlineID, flightID); err != nil {
		return nil, err
	}

	tickets, err := s.store.ListTicketsByFlight(ctx, flightID)
	if err != nil {
		return nil, storeError(err, "failed to list tickets")
	}
	return tickets, nil
}

func (s *bookingServiceImpl) ownedFlight(ctx context.Context, airlineID, flightID string) (*models.Flight, error) {
	flight, err := s.store.GetFlight(ctx, flightID)
	if err != nil {
		return nil, storeError(err, fmt.Sprintf("flight %s not found", flightID))
	}
	if flight.AirlineID != airlineID {
		return nil, booking.NewError(booking.KindForbidden, "flight belongs to another airline")
	}
	return flight, nil
}

// --- Passenger operations ---

func (s *bookingServiceImpl) PurchaseTickets(ctx context.Context, req models.PurchaseRequest) (*models.PurchaseResult, error) {
	result, err := s.purchaser.Purchase(ctx, req)
	if err != nil {
		return nil, err
	}

	s.afterPurchase(ctx, req.PassengerID, result)
	return result, nil
}

// afterPurchase runs the side effects of a committed purchase. None of them
// can undo the purchase, so failures are only logged.
func (s *bookingServiceImpl) afterPurchase(ctx context.Context, passengerID string, result *models.PurchaseResult) {
	flightIDs := result.FlightIDs()
	s.invalidate(ctx, flightIDs...)

	for _, flightID := range flightIDs {
		s.notifier.SeatsSold(flightID, result.SeatsOn(flightID))
	}

	event := events.NewTicketsPurchased(passengerID, result)
	if err := s.publisher.PublishTicketsPurchased(ctx, event); err != nil {
		s.logger.Error("Failed to publish purchase event",
			zap.String("passenger_id", passengerID),
			zap.String("event_id", event.EventID),
			zap.Error(err))
	}
}

func (s *bookingServiceImpl) invalidate(ctx context.Context, flightIDs ...string) {
	if err := s.cache.Invalidate(ctx, flightIDs...); err != nil {
		s.logger.Warn("Flight cache invalidation failed", zap.Strings("flight_ids", flightIDs), zap.Error(err))
	}
}

func (s *bookingServiceImpl) GetPassengerTickets(ctx context.Context, passengerID string) ([]models.Ticket, error) {
	tickets, err := s.store.ListTicketsByPassenger(ctx, passengerID)
	if err != nil {
		return nil, storeError(err, "failed to list tickets")
	}
	return tickets, nil
}

func (s *bookingServiceImpl) GetWallet(ctx context.Context, passengerID string) (*models.WalletResponse, error) {
	passenger, err := s.store.GetPassenger(ctx, passengerID)
	if err != nil {
		return nil, storeError(err, fmt.Sprintf("passenger %s not found", passengerID))
	}
	return &models.WalletResponse{PassengerID: passenger.ID, Balance: passenger.Balance}, nil
}

func (s *bookingServiceImpl) Deposit(ctx context.Context, passengerID string, amount decimal.Decimal) (*models.WalletResponse, error) {
	balance, err := s.orch.Deposit(ctx, passengerID, amount)
	if err != nil {
		return nil, err
	}
	return &models.WalletResponse{PassengerID: passengerID, Balance: balance}, nil
}

// storeError classifies a storage error. notFound is the message used when
// the record does not exist.
func storeError(err error, notFound string) error {
	if errors.Is(err, database.ErrNotFound) {
		return booking.NewError(booking.KindNotFound, notFound)
	}
	return &booking.Error{Kind: booking.KindInternal, Message: "internal error", Err: err}
}
