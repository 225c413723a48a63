package rental

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Mobility/service-journey/internal/common/domain"
	"github.com/Kilat-Mobility/service-journey/internal/domain/geo"
)

// RentalStatus represents the lifecycle state of a carshare rental.
type RentalStatus string

const (
	StatusActive RentalStatus = "active"
	StatusClosed RentalStatus = "closed"
)

// ParseRentalStatus converts a stored string into a RentalStatus.
func ParseRentalStatus(s string) (RentalStatus, error) {
	switch RentalStatus(s) {
	case StatusActive, StatusClosed:
		return RentalStatus(s), nil
	}
	return "", fmt.Errorf("invalid rental status: %s", s)
}

// Tariff is the vehicle's price list captured when the rental starts.
type Tariff struct {
	Mode            PricingMode `json:"pricing_mode"`
	UnitPriceCents  int64       `json:"unit_price_cents"`
	PricePerKmCents int64       `json:"price_per_km_cents"`
}

// Validate checks the tariff.
func (t Tariff) Validate() error {
	if !t.Mode.IsValid() {
		return domain.NewValidationError(fmt.Sprintf("invalid pricing mode: %s", t.Mode))
	}
	if t.UnitPriceCents < 0 || t.PricePerKmCents < 0 {
		return domain.NewValidationError("tariff prices cannot be negative")
	}
	return nil
}

// Reading is an odometer/fuel/location reading of the vehicle.
type Reading struct {
	OdometerKm float64   `json:"odometer_km"`
	FuelPct    float64   `json:"fuel_pct"`
	Point      geo.Point `json:"point"`
}

// Validate checks the reading ranges.
func (r Reading) Validate() error {
	if r.OdometerKm < 0 {
		return domain.NewValidationError("odometer cannot be negative")
	}
	if r.FuelPct < 0 || r.FuelPct > 100 {
		return domain.NewValidationError("fuel level must be between 0 and 100")
	}
	if !r.Point.IsValid() {
		return domain.NewValidationError("invalid coordinates")
	}
	return nil
}

// Rental is the aggregate root for a carshare rental. Once closed it is immutable.
type Rental struct {
	id        uuid.UUID
	userID    uuid.UUID
	vehicleID uuid.UUID
	status    RentalStatus
	tariff    Tariff
	start     Reading
	end       *Reading
	breakdown *Breakdown
	currency  string
	startedAt time.Time
	endedAt   *time.Time
	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewRental activates a rental at the given start reading.
func NewRental(userID, vehicleID uuid.UUID, tariff Tariff, start Reading, currency string, now time.Time) (*Rental, error) {
	if userID == uuid.Nil {
		return nil, domain.NewValidationError("user ID is required")
	}
	if vehicleID == uuid.Nil {
		return nil, domain.NewValidationError("vehicle ID is required")
	}
	if err := tariff.Validate(); err != nil {
		return nil, err
	}
	if err := start.Validate(); err != nil {
		return nil, err
	}
	now = now.UTC()
	return &Rental{
		id:        uuid.New(),
		userID:    userID,
		vehicleID: vehicleID,
		status:    StatusActive,
		tariff:    tariff,
		start:     start,
		currency:  currency,
		startedAt: now,
		version:   1,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructRental rebuilds a Rental from persistence data (no validation).
func ReconstructRental(
	id, userID, vehicleID uuid.UUID,
	status RentalStatus,
	tariff Tariff,
	start Reading,
	end *Reading,
	breakdown *Breakdown,
	currency string,
	startedAt time.Time,
	endedAt *time.Time,
	version int64,
	createdAt, updatedAt time.Time,
) *Rental {
	return &Rental{
		id:        id,
		userID:    userID,
		vehicleID: vehicleID,
		status:    status,
		tariff:    tariff,
		start:     start,
		end:       end,
		breakdown: breakdown,
		currency:  currency,
		startedAt: startedAt,
		endedAt:   endedAt,
		version:   version,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

// --- Getters ---

func (r *Rental) ID() uuid.UUID { return r.id }
func (r *Rental) UserID() uuid.UUID { return r.userID }
func (r *Rental) VehicleID() uuid.UUID { return r.vehicleID }
func (r *Rental) Status() RentalStatus { return r.status }
func (r *Rental) Tariff() Tariff { return r.tariff }
func (r *Rental) Start() Reading { return r.start }
func (r *Rental) End() *Reading { return r.end }
func (r *Rental) Breakdown() *Breakdown { return r.breakdown }
func (r *Rental) Currency() string { return r.currency }
func (r *Rental) StartedAt() time.Time { return r.startedAt }
func (r *Rental) EndedAt() *time.Time { return r.endedAt }
func (r *Rental) Version() int64 { return r.version }
func (r *Rental) CreatedAt() time.Time { return r.createdAt }
func (r *Rental) UpdatedAt() time.Time { return r.updatedAt }

// IsClosed returns true once the rental has been finalized.
func (r *Rental) IsClosed() bool { return r.status == StatusClosed }

// --- Behavior ---

// BillingInputAt assembles the time, distance and fuel part of the billing input
// for an end reading at now. Zone signals are filled in by the caller.
func (r *Rental) BillingInputAt(end Reading, now time.Time) BillingInput {
	return BillingInput{
		DurationMin:     DurationMinutes(r.startedAt, now),
		DistanceKm:      OdometerDistanceKm(r.start.OdometerKm, end.OdometerKm),
		Mode:            r.tariff.Mode,
		UnitPriceCents:  r.tariff.UnitPriceCents,
		PricePerKmCents: r.tariff.PricePerKmCents,
		FuelStartPct:    r.start.FuelPct,
		FuelEndPct:      end.FuelPct,
	}
}

// Close finalizes the rental with its end reading and computed breakdown.
func (r *Rental) Close(end Reading, breakdown Breakdown, now time.Time) error {
	if r.status != StatusActive {
		return domain.NewInvalidStateError(string(r.status), string(StatusClosed))
	}
	if err := end.Validate(); err != nil {
		return err
	}
	now = now.UTC()
	breakdown.Currency = r.currency
	r.status = StatusClosed
	r.end = &end
	r.breakdown = &breakdown
	r.endedAt = &now
	r.updatedAt = now
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (r *Rental) IncrementVersion() {
	r.version++
}
