package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cx-tal-miterani/flight-booking-system/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryStore keeps flights, wallets and the ticket ledger in process memory.
// Each flight and each wallet has its own lock, so purchases on disjoint
// flights and passengers do not contend.
type MemoryStore struct {
	mu         sync.RWMutex
	flights    map[string]*flightEntry
	order      []string
	aircraft   map[string]*models.Aircraft
	fleet      []string
	passengers map[string]*walletEntry

	ledgerMu sync.RWMutex
	ledger   []models.Ticket
}

type flightEntry struct {
	mu     sync.Mutex
	flight *models.Flight
}

type walletEntry struct {
	mu        sync.Mutex
	passenger *models.Passenger
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		flights:    make(map[string]*flightEntry),
		aircraft:   make(map[string]*models.Aircraft),
		passengers: make(map[string]*walletEntry),
	}
}

func (s *MemoryStore) lookupFlight(id string) (*flightEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.flights[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func (s *MemoryStore) lookupWallet(id string) (*walletEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.passengers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// GetFlight returns a copy of the flight. Must not be called from inside WithTx.
func (s *MemoryStore) GetFlight(ctx context.Context, id string) (*models.Flight, error) {
	e, err := s.lookupFlight(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flight.Clone(), nil
}

func (s *MemoryStore) ListFlights(ctx context.Context) ([]*models.Flight, error) {
	s.mu.RLock()
	entries := make([]*flightEntry, 0, len(s.order))
	for _, id := range s.order {
		entries = append(entries, s.flights[id])
	}
	s.mu.RUnlock()

	flights := make([]*models.Flight, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		flights = append(flights, e.flight.Clone())
		e.mu.Unlock()
	}
	return flights, nil
}

func (s *MemoryStore) CreateFlight(ctx context.Context, flight *models.Flight) error {
	if flight.ID == "" {
		flight.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	flight.CreatedAt, flight.UpdatedAt = now, now

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.flights[flight.ID]; ok {
		return fmt.Errorf("flight %s already exists", flight.ID)
	}
	s.flights[flight.ID] = &flightEntry{flight: flight.Clone()}
	s.order = append(s.order, flight.ID)
	return nil
}

func (s *MemoryStore) UpdateFlightCosts(ctx context.Context, id string, costs models.CostTable) error {
	e, err := s.lookupFlight(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.flight.Costs = costs
	e.flight.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) GetAircraft(ctx context.Context, id string) (*models.Aircraft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.aircraft[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *a
	c.Seats = append([]models.Seat(nil), a.Seats...)
	return &c, nil
}

func (s *MemoryStore) CreateAircraft(ctx context.Context, aircraft *models.Aircraft) error {
	if aircraft.ID == "" {
		aircraft.ID = uuid.NewString()
	}
	aircraft.CreatedAt = time.Now().UTC()

	c := *aircraft
	c.Seats = append([]models.Seat(nil), aircraft.Seats...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.aircraft[c.ID]; !exists {
		s.fleet = append(s.fleet, c.ID)
	}
	s.aircraft[c.ID] = &c
	return nil
}

// ListAircraftByOwner returns the owner's aircraft in creation order
func (s *MemoryStore) ListAircraftByOwner(ctx context.Context, ownerID string) ([]*models.Aircraft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fleet := []*models.Aircraft{}
	for _, id := range s.fleet {
		a := s.aircraft[id]
		if a.OwnerID != ownerID {
			continue
		}
		c := *a
		c.Seats = append([]models.Seat(nil), a.Seats...)
		fleet = append(fleet, &c)
	}
	return fleet, nil
}

// GetPassenger returns a copy of the passenger. Must not be called from inside WithTx.
func (s *MemoryStore) GetPassenger(ctx context.Context, id string) (*models.Passenger, error) {
	e, err := s.lookupWallet(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	p := *e.passenger
	return &p, nil
}

func (s *MemoryStore) CreatePassenger(ctx context.Context, passenger *models.Passenger) error {
	if passenger.ID == "" {
		passenger.ID = uuid.NewString()
	}
	passenger.CreatedAt = time.Now().UTC()
	p := *passenger

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.passengers {
		if e.passenger.Email == p.Email {
			return fmt.Errorf("passenger with email %s already exists", p.Email)
		}
	}
	s.passengers[p.ID] = &walletEntry{passenger: &p}
	return nil
}

func (s *MemoryStore) Deposit(ctx context.Context, passengerID string, amount decimal.Decimal) (decimal.Decimal, error) {
	e, err := s.lookupWallet(passengerID)
	if err != nil {
		return decimal.Zero, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.passenger.Balance = e.passenger.Balance.Add(amount)
	return e.passenger.Balance, nil
}

// ListTicketsByPassenger returns tickets newest first
func (s *MemoryStore) ListTicketsByPassenger(ctx context.Context, passengerID string) ([]models.Ticket, error) {
	s.ledgerMu.RLock()
	defer s.ledgerMu.RUnlock()

	tickets := []models.Ticket{}
	for i := len(s.ledger) - 1; i >= 0; i-- {
		if s.ledger[i].PassengerID == passengerID {
			tickets = append(tickets, s.ledger[i])
		}
	}
	return tickets, nil
}

func (s *MemoryStore) ListTicketsByFlight(ctx context.Context, flightID string) ([]models.Ticket, error) {
	s.ledgerMu.RLock()
	defer s.ledgerMu.RUnlock()

	tickets := []models.Ticket{}
	for _, t := range s.ledger {
		if t.FlightID == flightID {
			tickets = append(tickets, t)
		}
	}
	return tickets, nil
}

// WithTx runs fn with exclusive access to every flight and wallet it touches.
// Locks are taken lazily on first touch and held until fn returns. Callers
// reserve seats in ascending flight order and debit last, which keeps the
// lock order consistent across concurrent purchases.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx := &memoryTx{
		store:   s,
		flights: make(map[*flightEntry]bool),
		wallets: make(map[*walletEntry]bool),
	}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		tx.rollback()
		return err
	}

	tx.commit()
	return nil
}

type memoryTx struct {
	store   *MemoryStore
	flights map[*flightEntry]bool
	wallets map[*walletEntry]bool
	lockSeq []func()
	undo    []func()
	tickets []models.Ticket
}

func (t *memoryTx) lockFlight(e *flightEntry) {
	if t.flights[e] {
		return
	}
	e.mu.Lock()
	t.flights[e] = true
	t.lockSeq = append(t.lockSeq, e.mu.Unlock)
}

func (t *memoryTx) lockWallet(e *walletEntry) {
	if t.wallets[e] {
		return
	}
	e.mu.Lock()
	t.wallets[e] = true
	t.lockSeq = append(t.lockSeq, e.mu.Unlock)
}

func (t *memoryTx) ReserveSeat(ctx context.Context, flightID string, seatNumber int) error {
	e, err := t.store.lookupFlight(flightID)
	if err != nil {
		return err
	}
	t.lockFlight(e)

	seats := e.flight.Seats
	for i := range seats {
		if seats[i].Number != seatNumber {
			continue
		}
		if !seats[i].IsAvailable {
			return ErrSeatNotAvailable
		}
		seats[i].IsAvailable = false
		idx := i
		t.undo = append(t.undo, func() { seats[idx].IsAvailable = true })
		return nil
	}
	return ErrNotFound
}

func (t *memoryTx) Debit(ctx context.Context, passengerID string, amount decimal.Decimal) (decimal.Decimal, error) {
	e, err := t.store.lookupWallet(passengerID)
	if err != nil {
		return decimal.Zero, err
	}
	t.lockWallet(e)

	p := e.passenger
	if p.Balance.LessThan(amount) {
		return decimal.Zero, ErrInsufficientFunds
	}
	previous := p.Balance
	p.Balance = p.Balance.Sub(amount)
	t.undo = append(t.undo, func() { p.Balance = previous })
	return p.Balance, nil
}

func (t *memoryTx) AppendTicket(ctx context.Context, ticket *models.Ticket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now().UTC()
	}
	t.tickets = append(t.tickets, *ticket)
	return nil
}

func (t *memoryTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	t.tickets = nil
}

// commit publishes buffered tickets while the seat and wallet locks are still
// held, so no reader sees a sold seat without its ticket
func (t *memoryTx) commit() {
	if len(t.tickets) == 0 {
		return
	}
	t.store.ledgerMu.Lock()
	t.store.ledger = append(t.store.ledger, t.tickets...)
	t.store.ledgerMu.Unlock()
}

func (t *memoryTx) release() {
	for i := len(t.lockSeq) - 1; i >= 0; i-- {
		t.lockSeq[i]()
	}
	t.lockSeq = nil
}

var _ Store = (*MemoryStore)(nil)
