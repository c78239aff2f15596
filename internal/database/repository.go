package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/cx-tal-miterani/flight-booking-system/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schema string

// Repository handles all database operations
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Connect opens a pool against dsn and verifies it with a ping
func Connect(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Migrate creates the schema if it does not exist yet
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// --- Flight Operations ---

const flightColumns = `
	id, airline_id, aircraft_id, departure_time,
	economy_cost::text, business_cost::text, first_class_cost::text,
	extra_baggage_cost::text, extra_legroom_cost::text, created_at, updated_at`

func scanFlight(row pgx.Row) (*models.Flight, error) {
	var (
		f                                 models.Flight
		economy, business, first, baggage string
		legroom                           *string
	)
	err := row.Scan(
		&f.ID, &f.AirlineID, &f.AircraftID, &f.DepartureTime,
		&economy, &business, &first, &baggage, &legroom,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	costs, err := parseCosts(economy, business, first, baggage, legroom)
	if err != nil {
		return nil, err
	}
	f.Costs = costs
	return &f, nil
}

// GetFlight returns a flight with its seat snapshot
func (r *Repository) GetFlight(ctx context.Context, id string) (*models.Flight, error) {
	f, err := scanFlight(r.pool.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get flight: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT seat_number, class, is_extra_legroom, is_available
		FROM flight_seats
		WHERE flight_id = $1
		ORDER BY seat_number
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query seats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s models.Seat
		if err := rows.Scan(&s.Number, &s.Class, &s.IsExtraLegroom, &s.IsAvailable); err != nil {
			return nil, fmt.Errorf("failed to scan seat: %w", err)
		}
		f.Seats = append(f.Seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read seats: %w", err)
	}

	return f, nil
}

// ListFlights returns all flights ordered by departure, each with its seats
func (r *Repository) ListFlights(ctx context.Context) ([]*models.Flight, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+flightColumns+` FROM flights ORDER BY departure_time ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query flights: %w", err)
	}
	defer rows.Close()

	var flights []*models.Flight
	byID := make(map[string]*models.Flight)
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flight: %w", err)
		}
		flights = append(flights, f)
		byID[f.ID] = f
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read flights: %w", err)
	}
	rows.Close()

	seatRows, err := r.pool.Query(ctx, `
		SELECT flight_id, seat_number, class, is_extra_legroom, is_available
		FROM flight_seats
		ORDER BY flight_id, seat_number
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query seats: %w", err)
	}
	defer seatRows.Close()

	for seatRows.Next() {
		var (
			flightID string
			s        models.Seat
		)
		if err := seatRows.Scan(&flightID, &s.Number, &s.Class, &s.IsExtraLegroom, &s.IsAvailable); err != nil {
			return nil, fmt.Errorf("failed to scan seat: %w", err)
		}
		if f, ok := byID[flightID]; ok {
			f.Seats = append(f.Seats, s)
		}
	}

	return flights, seatRows.Err()
}

// CreateFlight stores a flight together with its seat snapshot
func (r *Repository) CreateFlight(ctx context.Context, flight *models.Flight) error {
	if flight.ID == "" {
		flight.ID = uuid.NewString()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	c := flight.Costs
	err = tx.QueryRow(ctx, `
		INSERT INTO flights (id, airline_id, aircraft_id, departure_time,
		                     economy_cost, business_cost, first_class_cost,
		                     extra_baggage_cost, extra_legroom_cost)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9::numeric)
		RETURNING created_at, updated_at
	`, flight.ID, flight.AirlineID, flight.AircraftID, flight.DepartureTime,
		c.EconomyCost.String(), c.BusinessCost.String(), c.FirstClassCost.String(),
		c.ExtraBaggageCost.String(), nullableDecimal(c.ExtraLegroomCost),
	).Scan(&flight.CreatedAt, &flight.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create flight: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"flight_seats"},
		[]string{"flight_id", "seat_number", "class", "is_extra_legroom", "is_available"},
		pgx.CopyFromSlice(len(flight.Seats), func(i int) ([]any, error) {
			s := flight.Seats[i]
			return []any{flight.ID, s.Number, string(s.Class), s.IsExtraLegroom, s.IsAvailable}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to copy seat snapshot: %w", err)
	}

	return tx.Commit(ctx)
}

// UpdateFlightCosts replaces the cost table of a flight
func (r *Repository) UpdateFlightCosts(ctx context.Context, id string, costs models.CostTable) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE flights
		SET economy_cost = $1::numeric, business_cost = $2::numeric, first_class_cost = $3::numeric,
		    extra_baggage_cost = $4::numeric, extra_legroom_cost = $5::numeric, updated_at = NOW()
		WHERE id = $6
	`, costs.EconomyCost.String(), costs.BusinessCost.String(), costs.FirstClassCost.String(),
		costs.ExtraBaggageCost.String(), nullableDecimal(costs.ExtraLegroomCost), id)
	if err != nil {
		return fmt.Errorf("failed to update flight costs: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Aircraft Operations ---

// GetAircraft returns an aircraft with its seat template
func (r *Repository) GetAircraft(ctx context.Context, id string) (*models.Aircraft, error) {
	var a models.Aircraft
	err := r.pool.QueryRow(ctx, `
		SELECT id, owner_id, name, created_at FROM aircraft WHERE id = $1
	`, id).Scan(&a.ID, &a.OwnerID, &a.Name, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get aircraft: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT seat_number, class, is_extra_legroom
		FROM aircraft_seats
		WHERE aircraft_id = $1
		ORDER BY seat_number
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query aircraft seats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s := models.Seat{IsAvailable: true}
		if err := rows.Scan(&s.Number, &s.Class, &s.IsExtraLegroom); err != nil {
			return nil, fmt.Errorf("failed to scan aircraft seat: %w", err)
		}
		a.Seats = append(a.Seats, s)
	}

	return &a, rows.Err()
}

// CreateAircraft stores an aircraft and its seat template
func (r *Repository) CreateAircraft(ctx context.Context, aircraft *models.Aircraft) error {
	if aircraft.ID == "" {
		aircraft.ID = uuid.NewString()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO aircraft (id, owner_id, name) VALUES ($1, $2, $3)
		RETURNING created_at
	`, aircraft.ID, aircraft.OwnerID, aircraft.Name).Scan(&aircraft.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create aircraft: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"aircraft_seats"},
		[]string{"aircraft_id", "seat_number", "class", "is_extra_legroom"},
		pgx.CopyFromSlice(len(aircraft.Seats), func(i int) ([]any, error) {
			s := aircraft.Seats[i]
			return []any{aircraft.ID, s.Number, string(s.Class), s.IsExtraLegroom}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to copy seat template: %w", err)
	}

	return tx.Commit(ctx)
}

// ListAircraftByOwner returns an owner's aircraft with their seat templates,
// oldest first
func (r *Repository) ListAircraftByOwner(ctx context.Context, ownerID string) ([]*models.Aircraft, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_id, name, created_at
		FROM aircraft
		WHERE owner_id = $1
		ORDER BY created_at, id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list aircraft: %w", err)
	}
	defer rows.Close()

	fleet := []*models.Aircraft{}
	byID := make(map[string]*models.Aircraft)
	for rows.Next() {
		a := &models.Aircraft{}
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Name, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan aircraft: %w", err)
		}
		fleet = append(fleet, a)
		byID[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(fleet) == 0 {
		return fleet, nil
	}

	seatRows, err := r.pool.Query(ctx, `
		SELECT s.aircraft_id, s.seat_number, s.class, s.is_extra_legroom
		FROM aircraft_seats s
		JOIN aircraft a ON a.id = s.aircraft_id
		WHERE a.owner_id = $1
		ORDER BY s.aircraft_id, s.seat_number
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query aircraft seats: %w", err)
	}
	defer seatRows.Close()

	for seatRows.Next() {
		var aircraftID string
		seat := models.Seat{IsAvailable: true}
		if err := seatRows.Scan(&aircraftID, &seat.Number, &seat.Class, &seat.IsExtraLegroom); err != nil {
			return nil, fmt.Errorf("failed to scan aircraft seat: %w", err)
		}
		if a, ok := byID[aircraftID]; ok {
			a.Seats = append(a.Seats, seat)
		}
	}

	return fleet, seatRows.Err()
}

// --- Passenger Operations ---

// GetPassenger returns a passenger with the current wallet balance
func (r *Repository) GetPassenger(ctx context.Context, id string) (*models.Passenger, error) {
	var (
		p       models.Passenger
		balance string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, email, balance::text, created_at FROM passengers WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Email, &balance, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get passenger: %w", err)
	}

	if p.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("failed to parse balance: %w", err)
	}
	return &p, nil
}

// CreatePassenger inserts a passenger with its opening balance
func (r *Repository) CreatePassenger(ctx context.Context, passenger *models.Passenger) error {
	if passenger.ID == "" {
		passenger.ID = uuid.NewString()
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO passengers (id, name, email, balance) VALUES ($1, $2, $3, $4::numeric)
		RETURNING created_at
	`, passenger.ID, passenger.Name, passenger.Email, passenger.Balance.String()).Scan(&passenger.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create passenger: %w", err)
	}
	return nil
}

// Deposit adds amount to a wallet and returns the new balance
func (r *Repository) Deposit(ctx context.Context, passengerID string, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance string
	err := r.pool.QueryRow(ctx, `
		UPDATE passengers SET balance = balance + $1::numeric WHERE id = $2
		RETURNING balance::text
	`, amount.String(), passengerID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to deposit: %w", err)
	}
	return decimal.NewFromString(balance)
}

// --- Ticket Operations ---

const ticketColumns = `id, passenger_id, flight_id, seat_number, seat_class, price::text, extra_baggage, created_at`

// ListTicketsByPassenger returns a passenger's tickets, most recent first
func (r *Repository) ListTicketsByPassenger(ctx context.Context, passengerID string) ([]models.Ticket, error) {
	return r.queryTickets(ctx, `
		SELECT `+ticketColumns+` FROM tickets
		WHERE passenger_id = $1
		ORDER BY created_at DESC, seq DESC
	`, passengerID)
}

// ListTicketsByFlight returns every ticket sold on a flight
func (r *Repository) ListTicketsByFlight(ctx context.Context, flightID string) ([]models.Ticket, error) {
	return r.queryTickets(ctx, `
		SELECT `+ticketColumns+` FROM tickets
		WHERE flight_id = $1
		ORDER BY created_at ASC, seq ASC
	`, flightID)
}

func (r *Repository) queryTickets(ctx context.Context, query string, arg string) ([]models.Ticket, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer rows.Close()

	tickets := []models.Ticket{}
	for rows.Next() {
		var (
			t     models.Ticket
			price string
		)
		err := rows.Scan(&t.ID, &t.PassengerID, &t.FlightID, &t.SeatNumber, &t.SeatClass, &price, &t.ExtraBaggage, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("failed to parse ticket price: %w", err)
		}
		tickets = append(tickets, t)
	}

	return tickets, rows.Err()
}

// --- Purchase Transaction ---

// WithTx runs fn inside one database transaction, rolling back on error
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) ReserveSeat(ctx context.Context, flightID string, seatNumber int) error {
	result, err := t.tx.Exec(ctx, `
		UPDATE flight_seats
		SET is_available = FALSE
		WHERE flight_id = $1 AND seat_number = $2 AND is_available
	`, flightID, seatNumber)
	if err != nil {
		return fmt.Errorf("failed to reserve seat: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	err = t.tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM flight_seats WHERE flight_id = $1 AND seat_number = $2)
	`, flightID, seatNumber).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check seat: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrSeatNotAvailable
}

func (t *pgTx) Debit(ctx context.Context, passengerID string, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance string
	err := t.tx.QueryRow(ctx, `
		UPDATE passengers
		SET balance = balance - $1::numeric
		WHERE id = $2 AND balance >= $1::numeric
		RETURNING balance::text
	`, amount.String(), passengerID).Scan(&balance)
	if err == nil {
		return decimal.NewFromString(balance)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("failed to debit wallet: %w", err)
	}

	var exists bool
	err = t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM passengers WHERE id = $1)`, passengerID).Scan(&exists)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to check passenger: %w", err)
	}
	if !exists {
		return decimal.Zero, ErrNotFound
	}
	return decimal.Zero, ErrInsufficientFunds
}

func (t *pgTx) AppendTicket(ctx context.Context, ticket *models.Ticket) error {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now().UTC()
	}

	_, err := t.tx.Exec(ctx, `
		INSERT INTO tickets (id, passenger_id, flight_id, seat_number, seat_class, price, extra_baggage, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8)
	`, ticket.ID, ticket.PassengerID, ticket.FlightID, ticket.SeatNumber, string(ticket.SeatClass),
		ticket.Price.String(), ticket.ExtraBaggage, ticket.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append ticket: %w", err)
	}
	return nil
}

func parseCosts(economy, business, first, baggage string, legroom *string) (models.CostTable, error) {
	var (
		c   models.CostTable
		err error
	)
	if c.EconomyCost, err = decimal.NewFromString(economy); err != nil {
		return c, fmt.Errorf("failed to parse economy cost: %w", err)
	}
	if c.BusinessCost, err = decimal.NewFromString(business); err != nil {
		return c, fmt.Errorf("failed to parse business cost: %w", err)
	}
	if c.FirstClassCost, err = decimal.NewFromString(first); err != nil {
		return c, fmt.Errorf("failed to parse first class cost: %w", err)
	}
	if c.ExtraBaggageCost, err = decimal.NewFromString(baggage); err != nil {
		return c, fmt.Errorf("failed to parse extra baggage cost: %w", err)
	}
	if legroom != nil {
		d, err := decimal.NewFromString(*legroom)
		if err != nil {
			return c, fmt.Errorf("failed to parse extra legroom cost: %w", err)
		}
		c.ExtraLegroomCost = decimal.NewNullDecimal(d)
	}
	return c, nil
}

func nullableDecimal(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

var _ Store = (*Repository)(nil)
