package rental

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// PricingMode selects how rental time is charged.
type PricingMode string

const (
	PricingPerMinute PricingMode = "per_minute"
	PricingPerHour   PricingMode = "per_hour"
	PricingPerDay    PricingMode = "per_day"
)

// IsValid returns true if the pricing mode is recognized.
func (m PricingMode) IsValid() bool {
	switch m {
	case PricingPerMinute, PricingPerHour, PricingPerDay:
		return true
	}
	return false
}

// BillingConfig holds the fee constants. Amounts are in cents.
type BillingConfig struct {
	OutOfZoneFeeCents        int64
	LowFuelFeeCents          int64
	InterCityFeeCents        int64
	GeofenceCrossingFeeCents int64
	LowFuelThresholdPct      float64
	FuelUsedThresholdPct     float64
}

// DefaultBillingConfig returns the standard fee schedule:
//
//   - Out of zone: EUR 25.00
//   - Low fuel:    EUR 15.00 (ending under 25% after using more than 10 points)
//   - Inter-city:  EUR 50.00
//   - Crossing:    EUR 10.00
func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		OutOfZoneFeeCents:        2500,
		LowFuelFeeCents:          1500,
		InterCityFeeCents:        5000,
		GeofenceCrossingFeeCents: 1000,
		LowFuelThresholdPct:      25,
		FuelUsedThresholdPct:     10,
	}
}

// BillingInput carries everything the formula needs. Zone, city and geofence ids
// are nil when the point was not inside any polygon of that kind.
type BillingInput struct {
	DurationMin     int64
	DistanceKm      float64
	Mode            PricingMode
	UnitPriceCents  int64
	PricePerKmCents int64

	ParkedInZone bool
	FuelStartPct float64
	FuelEndPct   float64

	StartGeofenceID *uuid.UUID
	EndGeofenceID   *uuid.UUID
	StartCityID     *uuid.UUID
	EndCityID       *uuid.UUID
	StartZoneID     *uuid.UUID
	EndZoneID       *uuid.UUID

	EndZoneBonusCents int64
}

// Breakdown is the itemized rental charge.
type Breakdown struct {
	Mode                PricingMode `json:"pricing_mode"`
	DurationMin         int64       `json:"duration_min"`
	DistanceKm          float64     `json:"distance_km"`
	TimeCost            int64       `json:"time_cost_cents"`
	DistanceCost        int64       `json:"distance_cost_cents"`
	InterCityFee        int64       `json:"inter_city_fee_cents"`
	OutOfZoneFee        int64       `json:"out_of_zone_fee_cents"`
	LowFuelFee          int64       `json:"low_fuel_fee_cents"`
	GeofenceCrossingFee int64       `json:"geofence_crossing_fee_cents"`
	BonusCredit         int64       `json:"bonus_credit_cents"`
	Total               int64       `json:"total_cents"`
	Currency            string      `json:"currency"`
}

// BillingEngine computes rental charges from a fee schedule.
type BillingEngine struct {
	cfg BillingConfig
}

// NewBillingEngine creates a BillingEngine.
func NewBillingEngine(cfg BillingConfig) *BillingEngine {
	return &BillingEngine{cfg: cfg}
}

// Calculate applies the rental formula. Components are computed independently and
// summed; the bonus is subtracted last and only the grand total is floored at 0.
func (e *BillingEngine) Calculate(in BillingInput) (Breakdown, error) {
	if in.DurationMin < 0 {
		return Breakdown{}, fmt.Errorf("duration cannot be negative")
	}
	if in.UnitPriceCents < 0 || in.PricePerKmCents < 0 {
		return Breakdown{}, fmt.Errorf("prices cannot be negative")
	}
	distance := math.Max(0, in.DistanceKm)

	b := Breakdown{
		Mode:        in.Mode,
		DurationMin: in.DurationMin,
		DistanceKm:  distance,
	}

	switch in.Mode {
	case PricingPerMinute:
		b.TimeCost = in.DurationMin * in.UnitPriceCents
	case PricingPerHour:
		b.TimeCost = ceilDiv(in.DurationMin, 60) * in.UnitPriceCents
	case PricingPerDay:
		b.TimeCost = ceilDiv(in.DurationMin, 1440) * in.UnitPriceCents
	default:
		return Breakdown{}, fmt.Errorf("unknown pricing mode: %s", in.Mode)
	}

	b.DistanceCost = int64(math.Round(distance * float64(in.PricePerKmCents)))

	if !in.ParkedInZone {
		b.OutOfZoneFee = e.cfg.OutOfZoneFeeCents
	}
	if in.FuelEndPct < e.cfg.LowFuelThresholdPct && in.FuelStartPct-in.FuelEndPct > e.cfg.FuelUsedThresholdPct {
		b.LowFuelFee = e.cfg.LowFuelFeeCents
	}
	if differentKnown(in.StartCityID, in.EndCityID) {
		b.InterCityFee = e.cfg.InterCityFeeCents
	}
	if differentKnown(in.StartGeofenceID, in.EndGeofenceID) {
		b.GeofenceCrossingFee = e.cfg.GeofenceCrossingFeeCents
	}
	if in.EndZoneID != nil && in.EndZoneBonusCents > 0 &&
		(in.StartZoneID == nil || *in.StartZoneID != *in.EndZoneID) {
		b.BonusCredit = in.EndZoneBonusCents
	}

	total := b.TimeCost + b.DistanceCost + b.InterCityFee + b.OutOfZoneFee +
		b.LowFuelFee + b.GeofenceCrossingFee - b.BonusCredit
	if total < 0 {
		total = 0
	}
	b.Total = total
	return b, nil
}

// DurationMinutes rounds the rental duration up to whole minutes.
func DurationMinutes(start, end time.Time) int64 {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return int64(math.Ceil(d.Minutes()))
}

// OdometerDistanceKm is the odometer delta, floored at 0.
func OdometerDistanceKm(startKm, endKm float64) float64 {
	return math.Max(0, endKm-startKm)
}

func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func differentKnown(a, b *uuid.UUID) bool {
	return a != nil && b != nil && *a != *b
}
