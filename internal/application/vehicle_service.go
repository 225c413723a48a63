package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Mobility/service-journey/internal/domain/geo"
	"github.com/Kilat-Mobility/service-journey/internal/domain/rental"
	vehicleDomain "github.com/Kilat-Mobility/service-journey/internal/domain/vehicle"
)

// CreateVehicleRequest is the request DTO for registering a fleet vehicle.
type CreateVehicleRequest struct {
	Plate           string    `json:"plate" binding:"required"`
	Model           string    `json:"model"`
	TeleDrivable    bool      `json:"tele_drivable"`
	PricingMode     string    `json:"pricing_mode" binding:"required"`
	UnitPriceCents  int64     `json:"unit_price_cents" binding:"min=0"`
	PricePerKmCents int64     `json:"price_per_km_cents" binding:"min=0"`
	OdometerKm      float64   `json:"odometer_km" binding:"min=0"`
	FuelPct         float64   `json:"fuel_pct" binding:"min=0,max=100"`
	Location        geo.Point `json:"location"`
}

// VehicleDTO is the API response representation of a fleet vehicle.
type VehicleDTO struct {
	ID              uuid.UUID `json:"id"`
	Plate           string    `json:"plate"`
	Model           string    `json:"model,omitempty"`
	TeleDrivable    bool      `json:"tele_drivable"`
	Status          string    `json:"status"`
	PricingMode     string    `json:"pricing_mode"`
	UnitPriceCents  int64     `json:"unit_price_cents"`
	PricePerKmCents int64     `json:"price_per_km_cents"`
	OdometerKm      float64   `json:"odometer_km"`
	FuelPct         float64   `json:"fuel_pct"`
	Location        geo.Point `json:"location"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// VehicleService implements use cases for the carshare fleet.
type VehicleService struct {
	repo   vehicleDomain.VehicleRepository
	logger *zap.Logger
}

// NewVehicleService creates a new VehicleService.
func NewVehicleService(repo vehicleDomain.VehicleRepository, logger *zap.Logger) *VehicleService {
	return &VehicleService{repo: repo, logger: logger}
}

// CreateVehicle registers a new available vehicle.
func (s *VehicleService) CreateVehicle(ctx context.Context, req CreateVehicleRequest) (*VehicleDTO, error) {
	v, err := vehicleDomain.NewVehicle(
		req.Plate, req.Model, req.TeleDrivable,
		rental.Tariff{
			Mode:            rental.PricingMode(req.PricingMode),
			UnitPriceCents:  req.UnitPriceCents,
			PricePerKmCents: req.PricePerKmCents,
		},
		rental.Reading{OdometerKm: req.OdometerKm, FuelPct: req.FuelPct, Point: req.Location},
	)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, v); err != nil {
		return nil, fmt.Errorf("failed to save vehicle: %w", err)
	}

	s.logger.Info("vehicle registered",
		zap.String("vehicle_id", v.ID().String()),
		zap.String("plate", v.Plate()),
	)
	return toVehicleDTO(v), nil
}

// GetVehicle returns a vehicle by ID.
func (s *VehicleService) GetVehicle(ctx context.Context, id uuid.UUID) (*VehicleDTO, error) {
	v, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toVehicleDTO(v), nil
}

// ListAvailable returns the vehicles that can be rented right now.
func (s *VehicleService) ListAvailable(ctx context.Context) ([]*VehicleDTO, error) {
	vehicles, err := s.repo.ListByStatus(ctx, vehicleDomain.StatusAvailable)
	if err != nil {
		return nil, err
	}
	dtos := make([]*VehicleDTO, len(vehicles))
	for i, v := range vehicles {
		dtos[i] = toVehicleDTO(v)
	}
	return dtos, nil
}

// SetMaintenance takes a vehicle out of service or puts it back.
func (s *VehicleService) SetMaintenance(ctx context.Context, id uuid.UUID, on bool) (*VehicleDTO, error) {
	v, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := v.SetMaintenance(on); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, v); err != nil {
		return nil, err
	}
	return toVehicleDTO(v), nil
}

// TeleDriveStarted marks the vehicle as being driven remotely to a customer.
func (s *VehicleService) TeleDriveStarted(ctx context.Context, vehicleID uuid.UUID) error {
	v, err := s.repo.FindByID(ctx, vehicleID)
	if err != nil {
		return err
	}
	if err := v.StartTeleDrive(); err != nil {
		return err
	}
	return s.repo.Update(ctx, v)
}

// TeleDriveAborted releases a vehicle whose tele-drive never got a journey.
func (s *VehicleService) TeleDriveAborted(ctx context.Context, vehicleID uuid.UUID) error {
	v, err := s.repo.FindByID(ctx, vehicleID)
	if err != nil {
		return err
	}
	if err := v.AbortTeleDrive(); err != nil {
		return err
	}
	return s.repo.Update(ctx, v)
}

// TeleDriveEnded parks a tele-driven vehicle at the given point and makes it available.
func (s *VehicleService) TeleDriveEnded(ctx context.Context, vehicleID uuid.UUID, at geo.Point) error {
	v, err := s.repo.FindByID(ctx, vehicleID)
	if err != nil {
		return err
	}
	if err := v.Deliver(at); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, v); err != nil {
		return err
	}
	s.logger.Info("tele-driven vehicle delivered",
		zap.String("vehicle_id", vehicleID.String()),
		zap.Float64("lat", at.Lat),
		zap.Float64("lng", at.Lng),
	)
	return nil
}

func toVehicleDTO(v *vehicleDomain.Vehicle) *VehicleDTO {
	t := v.Tariff()
	rd := v.Reading()
	return &VehicleDTO{
		ID:              v.ID(),
		Plate:           v.Plate(),
		Model:           v.Model(),
		TeleDrivable:    v.TeleDrivable(),
		Status:          string(v.Status()),
		PricingMode:     string(t.Mode),
		UnitPriceCents:  t.UnitPriceCents,
		PricePerKmCents: t.PricePerKmCents,
		OdometerKm:      rd.OdometerKm,
		FuelPct:         rd.FuelPct,
		Location:        rd.Point,
		CreatedAt:       v.CreatedAt(),
		UpdatedAt:       v.UpdatedAt(),
	}
}
