package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Mobility/service-journey/internal/common/domain"
	"github.com/Kilat-Mobility/service-journey/internal/common/kafka"
	"github.com/Kilat-Mobility/service-journey/internal/domain/geo"
	geofenceDomain "github.com/Kilat-Mobility/service-journey/internal/domain/geofence"
	rentalDomain "github.com/Kilat-Mobility/service-journey/internal/domain/rental"
	vehicleDomain "github.com/Kilat-Mobility/service-journey/internal/domain/vehicle"
	"github.com/Kilat-Mobility/service-journey/internal/proto/events"
)

// ActivateRentalRequest holds the data needed to start a carshare rental.
type ActivateRentalRequest struct {
	VehicleID uuid.UUID `json:"vehicle_id" binding:"required"`
}

// FinalizeRentalRequest carries the vehicle reading at the end of a rental.
type FinalizeRentalRequest struct {
	OdometerKm float64   `json:"odometer_km" binding:"min=0"`
	FuelPct    float64   `json:"fuel_pct" binding:"min=0,max=100"`
	Location   geo.Point `json:"location"`
}

// RentalDTO is the response representation of a rental.
type RentalDTO struct {
	ID        uuid.UUID               `json:"id"`
	UserID    uuid.UUID               `json:"user_id"`
	VehicleID uuid.UUID               `json:"vehicle_id"`
	Status    string                  `json:"status"`
	Tariff    rentalDomain.Tariff     `json:"tariff"`
	Start     rentalDomain.Reading    `json:"start"`
	End       *rentalDomain.Reading   `json:"end,omitempty"`
	Breakdown *rentalDomain.Breakdown `json:"breakdown,omitempty"`
	Currency  string                  `json:"currency"`
	StartedAt time.Time               `json:"started_at"`
	EndedAt   *time.Time              `json:"ended_at,omitempty"`
	Version   int64                   `json:"version"`
}

// ZoneClassifier supplies the geofence facts billing needs.
type ZoneClassifier interface {
	RentalSignals(ctx context.Context, start, end geo.Point) (geofenceDomain.RentalSignals, error)
}

// RentalService orchestrates carshare rentals and their billing.
type RentalService struct {
	repo     rentalDomain.RentalRepository
	vehicles vehicleDomain.VehicleRepository
	zones    ZoneClassifier
	billing  *rentalDomain.BillingEngine
	producer kafka.Publisher
	now      func() time.Time
	logger   *zap.Logger
}

// NewRentalService creates a new RentalService.
func NewRentalService(
	repo rentalDomain.RentalRepository,
	vehicles vehicleDomain.VehicleRepository,
	zones ZoneClassifier,
	billing *rentalDomain.BillingEngine,
	producer kafka.Publisher,
	logger *zap.Logger,
) *RentalService {
	return &RentalService{
		repo:     repo,
		vehicles: vehicles,
		zones:    zones,
		billing:  billing,
		producer: producer,
		now:      time.Now,
		logger:   logger,
	}
}

// ActivateRental rents an available vehicle to the user at its current reading.
func (s *RentalService) ActivateRental(ctx context.Context, userID uuid.UUID, req ActivateRentalRequest) (*RentalDTO, error) {
	v, err := s.vehicles.FindByID(ctx, req.VehicleID)
	if err != nil {
		return nil, err
	}
	if err := v.Rent(); err != nil {
		return nil, err
	}

	now := s.now()
	rt, err := rentalDomain.NewRental(userID, v.ID(), v.Tariff(), v.Reading(), domain.CurrencyEUR, now)
	if err != nil {
		return nil, err
	}

	if err := s.vehicles.Update(ctx, v); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, rt); err != nil {
		if rbErr := s.releaseVehicle(ctx, v, rt.Start()); rbErr != nil {
			s.logger.Error("failed to release vehicle after rental save failure",
				zap.String("vehicle_id", v.ID().String()),
				zap.Error(rbErr),
			)
		}
		return nil, fmt.Errorf("failed to save rental: %w", err)
	}

	publishEvent(ctx, s.producer, s.logger, events.TopicRentalEvents, events.RentalActivated, events.RentalActivatedEvent{
		RentalID:   rt.ID(),
		UserID:     userID,
		VehicleID:  v.ID(),
		OccurredAt: now.UTC(),
	})
	s.logger.Info("rental activated",
		zap.String("rental_id", rt.ID().String()),
		zap.String("vehicle_id", v.ID().String()),
	)

	return toRentalDTO(rt), nil
}

func (s *RentalService) releaseVehicle(ctx context.Context, v *vehicleDomain.Vehicle, reading rentalDomain.Reading) error {
	if err := v.Return(reading); err != nil {
		return err
	}
	return s.vehicles.Update(ctx, v)
}

// QuoteRental computes what the rental would cost if it ended now at the given
// reading, without closing it.
func (s *RentalService) QuoteRental(ctx context.Context, rentalID uuid.UUID, req FinalizeRentalRequest) (*rentalDomain.Breakdown, error) {
	rt, err := s.repo.FindByID(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	if rt.IsClosed() {
		return rt.Breakdown(), nil
	}
	end := toReading(req)
	if err := end.Validate(); err != nil {
		return nil, err
	}
	b, err := s.charge(ctx, rt, end, s.now())
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// FinalizeRental closes the rental, computes its breakdown and returns the vehicle
// to the fleet. Finalizing a closed rental returns the stored result unchanged.
// userID restricts the call to the rental's owner; uuid.Nil skips the check.
func (s *RentalService) FinalizeRental(ctx context.Context, rentalID, userID uuid.UUID, req FinalizeRentalRequest) (*RentalDTO, error) {
	rt, err := s.repo.FindByID(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	if userID != uuid.Nil && rt.UserID() != userID {
		return nil, domain.NewForbiddenError("rental does not belong to this user")
	}
	if rt.IsClosed() {
		return toRentalDTO(rt), nil
	}

	end := toReading(req)
	if err := end.Validate(); err != nil {
		return nil, err
	}
	now := s.now()
	breakdown, err := s.charge(ctx, rt, end, now)
	if err != nil {
		return nil, err
	}
	if err := rt.Close(end, breakdown, now); err != nil {
		return nil, err
	}

	rt.IncrementVersion()
	if err := s.repo.Update(ctx, rt); err != nil {
		if domain.IsConflict(err) {
			// Someone else closed it first; theirs is the result.
			latest, findErr := s.repo.FindByID(ctx, rentalID)
			if findErr == nil && latest.IsClosed() {
				return toRentalDTO(latest), nil
			}
		}
		return nil, err
	}

	s.returnVehicle(ctx, rt.VehicleID(), end)

	publishEvent(ctx, s.producer, s.logger, events.TopicRentalEvents, events.RentalClosed, events.RentalClosedEvent{
		RentalID:   rt.ID(),
		UserID:     rt.UserID(),
		VehicleID:  rt.VehicleID(),
		TotalCents: breakdown.Total,
		Currency:   rt.Currency(),
		OccurredAt: now.UTC(),
	})
	s.logger.Info("rental closed",
		zap.String("rental_id", rt.ID().String()),
		zap.Int64("duration_min", breakdown.DurationMin),
		zap.Int64("total_cents", breakdown.Total),
	)

	return toRentalDTO(rt), nil
}

// GetRental retrieves a single rental.
func (s *RentalService) GetRental(ctx context.Context, rentalID uuid.UUID) (*RentalDTO, error) {
	rt, err := s.repo.FindByID(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	return toRentalDTO(rt), nil
}

// GetUserRentals retrieves paginated rentals for a user.
func (s *RentalService) GetUserRentals(ctx context.Context, userID uuid.UUID, page, limit int) (*domain.PaginatedResult[RentalDTO], error) {
	rentals, total, err := s.repo.FindByUserID(ctx, userID, page, limit)
	if err != nil {
		return nil, err
	}
	dtos := make([]RentalDTO, len(rentals))
	for i, rt := range rentals {
		dtos[i] = *toRentalDTO(rt)
	}
	result := domain.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

func (s *RentalService) charge(ctx context.Context, rt *rentalDomain.Rental, end rentalDomain.Reading, now time.Time) (rentalDomain.Breakdown, error) {
	sig, err := s.zones.RentalSignals(ctx, rt.Start().Point, end.Point)
	if err != nil {
		return rentalDomain.Breakdown{}, err
	}

	in := rt.BillingInputAt(end, now)
	in.ParkedInZone = sig.ParkedInZone
	in.StartGeofenceID = sig.StartGeofenceID
	in.EndGeofenceID = sig.EndGeofenceID
	in.StartCityID = sig.StartCityID
	in.EndCityID = sig.EndCityID
	in.StartZoneID = sig.StartZoneID
	in.EndZoneID = sig.EndZoneID
	in.EndZoneBonusCents = sig.EndZoneBonusCents

	b, err := s.billing.Calculate(in)
	if err != nil {
		return rentalDomain.Breakdown{}, domain.NewValidationError(fmt.Sprintf("billing error: %v", err))
	}
	b.Currency = rt.Currency()
	return b, nil
}

// returnVehicle makes the vehicle available again. The rental is already closed,
// so failures are logged and not surfaced.
func (s *RentalService) returnVehicle(ctx context.Context, vehicleID uuid.UUID, end rentalDomain.Reading) {
	v, err := s.vehicles.FindByID(ctx, vehicleID)
	if err == nil {
		if err = v.Return(end); err == nil {
			err = s.vehicles.Update(ctx, v)
		}
	}
	if err != nil {
		s.logger.Error("failed to return vehicle after rental",
			zap.String("vehicle_id", vehicleID.String()),
			zap.Error(err),
		)
	}
}

func toReading(req FinalizeRentalRequest) rentalDomain.Reading {
	return rentalDomain.Reading{OdometerKm: req.OdometerKm, FuelPct: req.FuelPct, Point: req.Location}
}

func toRentalDTO(rt *rentalDomain.Rental) *RentalDTO {
	return &RentalDTO{
		ID:        rt.ID(),
		UserID:    rt.UserID(),
		VehicleID: rt.VehicleID(),
		Status:    string(rt.Status()),
		Tariff:    rt.Tariff(),
		Start:     rt.Start(),
		End:       rt.End(),
		Breakdown: rt.Breakdown(),
		Currency:  rt.Currency(),
		StartedAt: rt.StartedAt(),
		EndedAt:   rt.EndedAt(),
		Version:   rt.Version(),
	}
}
