package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cx-tal-miterani/flight-booking-system/internal/database"
	"github.com/cx-tal-miterani/flight-booking-system/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Fixed identifiers of the sample data, so tokens can be minted for them
const (
	SampleAirlineID   = "spaceair"
	SamplePassengerID = "mario-rossi"
)

// SeedSampleData creates two aircraft, three flights and one passenger. The
// passenger is written last and marks a completed seed; a run interrupted
// before that is resumed on the next start, skipping records that exist.
func SeedSampleData(ctx context.Context, store database.Store, logger *zap.Logger) error {
	_, err := store.GetPassenger(ctx, SamplePassengerID)
	if err == nil {
		logger.Info("Sample data already present, skipping seed")
		return nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("failed to look up sample passenger: %w", err)
	}

	logger.Info("Seeding sample data")

	// Seats 1-4 first class, 5-10 business, the rest economy with the exit
	// rows 11 and 12 carrying extra legroom
	mixed := make([]models.Seat, 0, 30)
	for n := 1; n <= 30; n++ {
		class := models.SeatClassEconomy
		switch {
		case n <= 4:
			class = models.SeatClassFirstClass
		case n <= 10:
			class = models.SeatClassBusiness
		}
		mixed = append(mixed, models.Seat{Number: n, Class: class, IsExtraLegroom: n == 11 || n == 12, IsAvailable: true})
	}

	allEconomy, err := models.SeatLayout{EconomySeats: 30}.BuildSeats()
	if err != nil {
		return err
	}

	boeing := &models.Aircraft{ID: "boeing-737", OwnerID: SampleAirlineID, Name: "Boeing 737", Seats: mixed}
	airbus := &models.Aircraft{ID: "airbus-a320", OwnerID: SampleAirlineID, Name: "Airbus A320", Seats: allEconomy}
	for _, a := range []*models.Aircraft{boeing, airbus} {
		exists, err := seeded(store.GetAircraft(ctx, a.ID))
		if err != nil {
			return fmt.Errorf("failed to look up aircraft %s: %w", a.ID, err)
		}
		if exists {
			continue
		}
		if err := store.CreateAircraft(ctx, a); err != nil {
			return fmt.Errorf("failed to seed aircraft %s: %w", a.ID, err)
		}
	}

	now := time.Now().UTC().Truncate(time.Minute)
	samples := []struct {
		id       string
		aircraft *models.Aircraft
		departs  time.Duration
		costs    [4]int64
	}{
		{"MXP-JFK", boeing, 24 * time.Hour, [4]int64{500, 1200, 3000, 50}},
		{"FCO-CDG", airbus, 48 * time.Hour, [4]int64{100, 300, 0, 30}},
		{"LHR-HND", boeing, 72 * time.Hour, [4]int64{800, 2000, 5000, 100}},
	}
	for _, sample := range samples {
		exists, err := seeded(store.GetFlight(ctx, sample.id))
		if err != nil {
			return fmt.Errorf("failed to look up flight %s: %w", sample.id, err)
		}
		if exists {
			continue
		}

		flight := &models.Flight{
			ID:            sample.id,
			AirlineID:     SampleAirlineID,
			AircraftID:    sample.aircraft.ID,
			DepartureTime: now.Add(sample.departs),
			Costs: models.CostTable{
				EconomyCost:      decimal.NewFromInt(sample.costs[0]),
				BusinessCost:     decimal.NewFromInt(sample.costs[1]),
				FirstClassCost:   decimal.NewFromInt(sample.costs[2]),
				ExtraBaggageCost: decimal.NewFromInt(sample.costs[3]),
			},
			Seats: append([]models.Seat(nil), sample.aircraft.Seats...),
		}
		if err := store.CreateFlight(ctx, flight); err != nil {
			return fmt.Errorf("failed to seed flight %s: %w", sample.id, err)
		}
	}

	err = store.CreatePassenger(ctx, &models.Passenger{
		ID:      SamplePassengerID,
		Name:    "Mario Rossi",
		Email:   "mario@example.com",
		Balance: decimal.NewFromInt(5000),
	})
	if err != nil {
		return fmt.Errorf("failed to seed passenger: %w", err)
	}

	logger.Info("Sample data seeded", zap.Int("flights", len(samples)))
	return nil
}

func seeded[T any](_ T, err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, database.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
