package journey

import (
	"fmt"
	"math"
)

// FareStrategy defines the interface for calculating the fare captured when a
// journey completes.
type FareStrategy interface {
	// Calculate returns the fare in cents for the given parameters.
	Calculate(params FareParams) (int64, error)
}

// FareParams holds the inputs for fare calculation.
type FareParams struct {
	Kind        Kind
	DistanceKm  float64
	DurationSec int
}

// FareTable holds the per-kind tariff, in cents.
type FareTable struct {
	BaseCents      int64
	PerKmCents     int64
	PerMinuteCents int64
	MinimumCents   int64
}

// StandardFareStrategy prices rides and trips by distance and planned duration,
// and tele-drives as a flat delivery fee.
type StandardFareStrategy struct {
	tables map[Kind]FareTable
}

// DefaultFareTables returns the standard tariff.
//
//   - Autonomous ride: EUR 2.00 base, EUR 0.90/km, EUR 0.15/min, EUR 5.00 minimum
//   - Driver trip:     EUR 2.50 base, EUR 1.10/km, EUR 0.20/min, EUR 6.00 minimum
//   - Tele-drive:      EUR 4.00 flat delivery
func DefaultFareTables() map[Kind]FareTable {
	return map[Kind]FareTable{
		KindRide:      {BaseCents: 200, PerKmCents: 90, PerMinuteCents: 15, MinimumCents: 500},
		KindTrip:      {BaseCents: 250, PerKmCents: 110, PerMinuteCents: 20, MinimumCents: 600},
		KindTeleDrive: {BaseCents: 400},
	}
}

// NewStandardFareStrategy creates a StandardFareStrategy; nil tables means defaults.
func NewStandardFareStrategy(tables map[Kind]FareTable) *StandardFareStrategy {
	if tables == nil {
		tables = DefaultFareTables()
	}
	return &StandardFareStrategy{tables: tables}
}

// Calculate computes the fare in cents.
func (s *StandardFareStrategy) Calculate(params FareParams) (int64, error) {
	if params.DistanceKm < 0 {
		return 0, fmt.Errorf("distance cannot be negative")
	}
	if params.DurationSec < 0 {
		return 0, fmt.Errorf("duration cannot be negative")
	}
	table, ok := s.tables[params.Kind]
	if !ok {
		return 0, fmt.Errorf("unknown journey kind for pricing: %s", params.Kind)
	}

	total := table.BaseCents
	total += int64(math.Round(params.DistanceKm * float64(table.PerKmCents)))
	minutes := int64(math.Ceil(float64(params.DurationSec) / 60))
	total += minutes * table.PerMinuteCents

	if total < table.MinimumCents {
		total = table.MinimumCents
	}
	return total, nil
}

// FareParamsFor derives fare inputs from the completed journey's final leg.
// Distance is the route length, or the straight line when no route is stored.
func FareParamsFor(j *Journey) FareParams {
	leg := j.Leg()
	distance := leg.Route.LengthKm()
	if leg.Route.Len() < 2 {
		distance = straightLineKm(leg)
	}
	return FareParams{
		Kind:        j.Kind(),
		DistanceKm:  distance,
		DurationSec: leg.TotalDurationSec,
	}
}
