// Package booking implements the purchase path: validation, pricing, funds
// check, seat reservation and settlement as one all-or-nothing unit.
package booking

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/cx-tal-miterani/flight-booking-system/internal/database"
	"github.com/cx-tal-miterani/flight-booking-system/internal/models"
	"github.com/cx-tal-miterani/flight-booking-system/internal/pricing"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// State is a step of a purchase attempt
type State string

const (
	StateValidating State = "validating"
	StatePricing    State = "pricing"
	StateFundsCheck State = "funds_check"
	StateReserving  State = "reserving"
	StateSettling   State = "settling"
	StateCommitted  State = "committed"
	StateRejected   State = "rejected"
	StateFailed     State = "failed"
)

// PlannedItem is a line item resolved against its flight and priced
type PlannedItem struct {
	Item  models.LineItem
	Seat  models.Seat
	Price decimal.Decimal
}

// Plan is the fully resolved purchase, built before anything is mutated
type Plan struct {
	PassengerID string
	Items       []PlannedItem
	Total       decimal.Decimal
}

type seatKey struct {
	flightID string
	number   int
}

// Orchestrator runs purchases against a Store
type Orchestrator struct {
	store   database.Store
	pricing *pricing.Engine
	logger  *zap.Logger
	now     func() time.Time
}

// NewOrchestrator creates an Orchestrator
func NewOrchestrator(store database.Store, engine *pricing.Engine, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:   store,
		pricing: engine,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Plan validates and prices a purchase without touching any state
func (o *Orchestrator) Plan(ctx context.Context, passengerID string, items []models.LineItem) (*Plan, error) {
	if passengerID == "" {
		return nil, NewError(KindBadRequest, "passenger id is required")
	}
	if len(items) == 0 {
		return nil, NewError(KindBadRequest, "at least one line item is required")
	}

	seen := make(map[seatKey]bool, len(items))
	for i, item := range items {
		if item.FlightID == "" {
			return nil, errorf(KindBadRequest, "line item %d: flight_id is required", i)
		}
		if item.SeatNumber <= 0 {
			return nil, errorf(KindBadRequest, "line item %d: seat_number must be a positive integer", i)
		}
		key := seatKey{item.FlightID, item.SeatNumber}
		if seen[key] {
			return nil, errorf(KindBadRequest, "seat %d on flight %s requested more than once", item.SeatNumber, item.FlightID)
		}
		seen[key] = true
	}

	flights := make(map[string]*models.Flight)
	plan := &Plan{PassengerID: passengerID, Items: make([]PlannedItem, 0, len(items))}

	for _, item := range items {
		flight, ok := flights[item.FlightID]
		if !ok {
			f, err := o.store.GetFlight(ctx, item.FlightID)
			if err != nil {
				if errors.Is(err, database.ErrNotFound) {
					return nil, errorf(KindNotFound, "flight %s not found", item.FlightID)
				}
				return nil, wrap(KindInternal, err, "failed to load flight")
			}
			flights[item.FlightID] = f
			flight = f
		}

		seat, ok := flight.Seat(item.SeatNumber)
		if !ok {
			return nil, errorf(KindNotFound, "seat %d not found on flight %s", item.SeatNumber, item.FlightID)
		}
		if !seat.IsAvailable {
			return nil, errorf(KindConflict, "seat %d on flight %s is no longer available", item.SeatNumber, item.FlightID)
		}

		price, err := o.pricing.Price(seat, flight.Costs, item.ExtraBaggage)
		if err != nil {
			o.logger.Error("Seat carries an unknown class",
				zap.String("fault", "data_integrity"),
				zap.String("flight_id", item.FlightID),
				zap.Int("seat_number", seat.Number),
				zap.String("class", string(seat.Class)),
				zap.Error(err),
			)
			return nil, wrap(KindInvalidSeatClass, err, "seat class is not recognized")
		}

		plan.Items = append(plan.Items, PlannedItem{Item: item, Seat: seat, Price: price})
		plan.Total = plan.Total.Add(price)
	}

	passenger, err := o.store.GetPassenger(ctx, passengerID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, errorf(KindNotFound, "passenger %s not found", passengerID)
		}
		return nil, wrap(KindInternal, err, "failed to load passenger")
	}
	if passenger.Balance.LessThan(plan.Total) {
		return nil, errorf(KindInsufficientFunds, "insufficient funds: total %s exceeds balance %s",
			plan.Total.StringFixed(2), passenger.Balance.StringFixed(2))
	}

	return plan, nil
}

// Purchase runs a full purchase and returns the committed tickets and the
// passenger's remaining balance
func (o *Orchestrator) Purchase(ctx context.Context, req models.PurchaseRequest) (*models.PurchaseResult, error) {
	logger := o.logger.With(
		zap.String("passenger_id", req.PassengerID),
		zap.Int("items", len(req.Items)),
	)
	if req.RequestID != "" {
		logger = logger.With(zap.String("request_id", req.RequestID))
	}

	plan, err := o.Plan(ctx, req.PassengerID, req.Items)
	if err != nil {
		logger.Info("Purchase rejected", zap.String("state", string(StateRejected)), zap.Error(err))
		return nil, err
	}

	result, err := o.commit(ctx, plan)
	if err != nil {
		state := StateRejected
		if KindOf(err) == KindInternal {
			state = StateFailed
			logger.Error("Purchase failed", zap.String("state", string(state)), zap.Error(err))
		} else {
			logger.Info("Purchase rejected", zap.String("state", string(state)), zap.Error(err))
		}
		return nil, err
	}

	logger.Info("Purchase committed",
		zap.String("state", string(StateCommitted)),
		zap.String("total", plan.Total.StringFixed(2)),
		zap.String("balance", result.Balance.StringFixed(2)),
	)
	return result, nil
}

// commit reserves every planned seat, debits the wallet and appends the
// tickets inside one store transaction
func (o *Orchestrator) commit(ctx context.Context, plan *Plan) (*models.PurchaseResult, error) {
	// Seats are reserved in (flight, seat) order so concurrent batches lock
	// the same rows in the same sequence.
	order := make([]PlannedItem, len(plan.Items))
	copy(order, plan.Items)
	sort.Slice(order, func(i, j int) bool {
		if order[i].Item.FlightID != order[j].Item.FlightID {
			return order[i].Item.FlightID < order[j].Item.FlightID
		}
		return order[i].Item.SeatNumber < order[j].Item.SeatNumber
	})

	result := &models.PurchaseResult{Tickets: make([]models.Ticket, 0, len(plan.Items))}
	purchasedAt := o.now()

	err := o.store.WithTx(ctx, func(ctx context.Context, tx database.Tx) error {
		for _, p := range order {
			if err := tx.ReserveSeat(ctx, p.Item.FlightID, p.Item.SeatNumber); err != nil {
				return stepError(StateReserving, err, p.Item)
			}
		}

		balance, err := tx.Debit(ctx, plan.PassengerID, plan.Total)
		if err != nil {
			return stepError(StateSettling, err, models.LineItem{})
		}
		result.Balance = balance

		for _, p := range plan.Items {
			ticket := models.Ticket{
				PassengerID:  plan.PassengerID,
				FlightID:     p.Item.FlightID,
				SeatNumber:   p.Item.SeatNumber,
				SeatClass:    p.Seat.Class,
				Price:        p.Price,
				ExtraBaggage: p.Item.ExtraBaggage,
				CreatedAt:    purchasedAt,
			}
			if err := tx.AppendTicket(ctx, &ticket); err != nil {
				return stepError(StateSettling, err, p.Item)
			}
			result.Tickets = append(result.Tickets, ticket)
		}
		return nil
	})
	if err != nil {
		var be *Error
		if errors.As(err, &be) {
			return nil, be
		}
		return nil, wrap(KindInternal, err, "failed to commit purchase")
	}

	return result, nil
}

func stepError(state State, err error, item models.LineItem) *Error {
	switch {
	case errors.Is(err, database.ErrSeatNotAvailable):
		return errorf(KindConflict, "seat %d on flight %s is no longer available", item.SeatNumber, item.FlightID)
	case errors.Is(err, database.ErrInsufficientFunds):
		return NewError(KindInsufficientFunds, "insufficient funds")
	case errors.Is(err, database.ErrNotFound):
		if state == StateReserving {
			return errorf(KindNotFound, "seat %d not found on flight %s", item.SeatNumber, item.FlightID)
		}
		return NewError(KindNotFound, "passenger not found")
	}
	return wrap(KindInternal, err, "failed while "+string(state))
}

// Deposit adds amount to a passenger's wallet
func (o *Orchestrator) Deposit(ctx context.Context, passengerID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, NewError(KindBadRequest, "amount must be greater than 0")
	}
	if !models.HasMoneyScale(amount) {
		return decimal.Zero, NewError(KindBadRequest, "amount must have at most 2 decimal places")
	}

	balance, err := o.store.Deposit(ctx, passengerID, amount)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return decimal.Zero, errorf(KindNotFound, "passenger %s not found", passengerID)
		}
		return decimal.Zero, wrap(KindInternal, err, "failed to deposit")
	}

	o.logger.Info("Wallet topped up",
		zap.String("passenger_id", passengerID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("balance", balance.StringFixed(2)),
	)
	return balance, nil
}
