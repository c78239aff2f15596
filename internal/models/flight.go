package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SeatClass is the cabin class of a seat
type SeatClass string

const (
	SeatClassEconomy    SeatClass = "economy"
	SeatClassBusiness   SeatClass = "business"
	SeatClassFirstClass SeatClass = "first_class"
)

// Valid reports whether c is one of the recognized cabin classes
func (c SeatClass) Valid() bool {
	switch c {
	case SeatClassEconomy, SeatClassBusiness, SeatClassFirstClass:
		return true
	}
	return false
}

// CostTable holds the per-flight prices used by the pricing engine
type CostTable struct {
	EconomyCost      decimal.Decimal     `json:"economy_cost"`
	BusinessCost     decimal.Decimal     `json:"business_cost"`
	FirstClassCost   decimal.Decimal     `json:"first_class_cost"`
	ExtraBaggageCost decimal.Decimal     `json:"extra_baggage_cost"`
	ExtraLegroomCost decimal.NullDecimal `json:"extra_legroom_cost"`
}

// MoneyScale is the number of decimal places stored for money
const MoneyScale = 2

// HasMoneyScale reports whether d fits in MoneyScale decimal places
func HasMoneyScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyScale))
}

// Validate checks that no configured cost is negative or finer than a cent
func (c CostTable) Validate() error {
	costs := []struct {
		name string
		cost decimal.Decimal
	}{
		{"economy_cost", c.EconomyCost},
		{"business_cost", c.BusinessCost},
		{"first_class_cost", c.FirstClassCost},
		{"extra_baggage_cost", c.ExtraBaggageCost},
	}
	for _, entry := range costs {
		if entry.cost.IsNegative() {
			return &FieldError{Field: entry.name, Reason: "must not be negative"}
		}
		if !HasMoneyScale(entry.cost) {
			return &FieldError{Field: entry.name, Reason: "must have at most 2 decimal places"}
		}
	}
	if c.ExtraLegroomCost.Valid {
		if c.ExtraLegroomCost.Decimal.IsNegative() {
			return &FieldError{Field: "extra_legroom_cost", Reason: "must not be negative"}
		}
		if !HasMoneyScale(c.ExtraLegroomCost.Decimal) {
			return &FieldError{Field: "extra_legroom_cost", Reason: "must have at most 2 decimal places"}
		}
	}
	return nil
}

// Seat is one entry of a flight's seat snapshot (or an aircraft template)
type Seat struct {
	Number         int       `json:"number"`
	Class          SeatClass `json:"class"`
	IsExtraLegroom bool      `json:"is_extra_legroom"`
	IsAvailable    bool      `json:"is_available"`
}

// Flight owns its cost table and its seat snapshot
type Flight struct {
	ID            string    `json:"id"`
	AirlineID     string    `json:"airline_id"`
	AircraftID    string    `json:"aircraft_id"`
	DepartureTime time.Time `json:"departure_time"`
	Costs         CostTable `json:"costs"`
	Seats         []Seat    `json:"seats,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Seat returns the snapshot seat with the given number
func (f *Flight) Seat(number int) (Seat, bool) {
	for _, s := range f.Seats {
		if s.Number == number {
			return s, true
		}
	}
	return Seat{}, false
}

// Clone returns a deep copy so callers never share the seat slice
func (f *Flight) Clone() *Flight {
	c := *f
	c.Seats = append([]Seat(nil), f.Seats...)
	return &c
}

// AvailableSeats counts the seats still for sale
func (f *Flight) AvailableSeats() int {
	n := 0
	for _, s := range f.Seats {
		if s.IsAvailable {
			n++
		}
	}
	return n
}

// Aircraft carries the seat template copied into every new flight
type Aircraft struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Seats     []Seat    `json:"seats"`
	CreatedAt time.Time `json:"created_at"`
}

// SeatLayout is the per-class seat count used to build an aircraft template
type SeatLayout struct {
	EconomySeats                int `json:"economy_seats"`
	EconomySeatsExtraLegroom    int `json:"economy_seats_extra_legroom"`
	BusinessSeats               int `json:"business_seats"`
	BusinessSeatsExtraLegroom   int `json:"business_seats_extra_legroom"`
	FirstClassSeats             int `json:"first_class_seats"`
	FirstClassSeatsExtraLegroom int `json:"first_class_seats_extra_legroom"`
}

// BuildSeats numbers seats from 1 in economy, business, first_class order.
// Within each class the first extra-legroom-count seats get the extra legroom flag.
func (l SeatLayout) BuildSeats() ([]Seat, error) {
	classes := []struct {
		class   SeatClass
		total   int
		legroom int
		field   string
	}{
		{SeatClassEconomy, l.EconomySeats, l.EconomySeatsExtraLegroom, "economy_seats"},
		{SeatClassBusiness, l.BusinessSeats, l.BusinessSeatsExtraLegroom, "business_seats"},
		{SeatClassFirstClass, l.FirstClassSeats, l.FirstClassSeatsExtraLegroom, "first_class_seats"},
	}

	var seats []Seat
	number := 1
	for _, c := range classes {
		if c.total < 0 || c.legroom < 0 {
			return nil, &FieldError{Field: c.field, Reason: "must not be negative"}
		}
		if c.legroom > c.total {
			return nil, &FieldError{Field: c.field + "_extra_legroom", Reason: "exceeds seat count"}
		}
		for i := 0; i < c.total; i++ {
			seats = append(seats, Seat{
				Number:         number,
				Class:          c.class,
				IsExtraLegroom: i < c.legroom,
				IsAvailable:    true,
			})
			number++
		}
	}
	if len(seats) == 0 {
		return nil, &FieldError{Field: "seats", Reason: "aircraft needs at least one seat"}
	}
	return seats, nil
}

// SeatFilter narrows a seat listing
type SeatFilter struct {
	Available *bool
	Class     SeatClass
}

// Matches reports whether s passes the filter
func (f SeatFilter) Matches(s Seat) bool {
	if f.Available != nil && s.IsAvailable != *f.Available {
		return false
	}
	if f.Class != "" && s.Class != f.Class {
		return false
	}
	return true
}

// FieldError describes an invalid request field
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return e.Field + " " + e.Reason
}
