// Package pricing turns a seat, a flight cost table and the requested extras
// into the amount charged for one ticket.
package pricing

import (
	"errors"
	"fmt"

	"github.com/cx-tal-miterani/flight-booking-system/internal/models"
	"github.com/shopspring/decimal"
)

// ErrInvalidSeatClass means a stored seat carries an unrecognized class tag
var ErrInvalidSeatClass = errors.New("invalid seat class")

// Engine prices seats. It holds no state beyond the configured legroom default.
type Engine struct {
	defaultLegroom decimal.Decimal
}

// NewEngine creates an Engine using defaultLegroom for flights without an
// extra-legroom surcharge
func NewEngine(defaultLegroom decimal.Decimal) *Engine {
	return &Engine{defaultLegroom: defaultLegroom}
}

// Price returns the amount for seat on a flight with costs
func (e *Engine) Price(seat models.Seat, costs models.CostTable, extraBaggage bool) (decimal.Decimal, error) {
	var amount decimal.Decimal
	switch seat.Class {
	case models.SeatClassEconomy:
		amount = costs.EconomyCost
	case models.SeatClassBusiness:
		amount = costs.BusinessCost
	case models.SeatClassFirstClass:
		amount = costs.FirstClassCost
	default:
		return decimal.Zero, fmt.Errorf("%w: %q on seat %d", ErrInvalidSeatClass, seat.Class, seat.Number)
	}

	if seat.IsExtraLegroom {
		amount = amount.Add(e.legroomCost(costs))
	}
	if extraBaggage {
		amount = amount.Add(costs.ExtraBaggageCost)
	}
	return amount, nil
}

func (e *Engine) legroomCost(costs models.CostTable) decimal.Decimal {
	if costs.ExtraLegroomCost.Valid {
		return costs.ExtraLegroomCost.Decimal
	}
	return e.defaultLegroom
}
