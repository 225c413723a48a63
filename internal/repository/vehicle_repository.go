package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Kilat-Mobility/service-journey/internal/common/domain"
	"github.com/Kilat-Mobility/service-journey/internal/domain/geo"
	"github.com/Kilat-Mobility/service-journey/internal/domain/rental"
	vehicleDomain "github.com/Kilat-Mobility/service-journey/internal/domain/vehicle"
)

// VehicleModel is the GORM model for the vehicles table.
type VehicleModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	Plate           string    `gorm:"type:varchar(20);uniqueIndex;not null"`
	Model           string    `gorm:"type:varchar(100)"`
	TeleDrivable    bool      `gorm:"not null;default:false"`
	Status          string    `gorm:"type:varchar(20);not null;default:'available';index"`
	PricingMode     string    `gorm:"type:varchar(20);not null"`
	UnitPriceCents  int64     `gorm:"not null"`
	PricePerKmCents int64     `gorm:"not null"`
	OdometerKm      float64   `gorm:"type:decimal(10,2);not null"`
	FuelPct         float64   `gorm:"type:decimal(5,2);not null"`
	Lat             float64   `gorm:"not null"`
	Lng             float64   `gorm:"not null"`
	Version         int64     `gorm:"not null;default:1"`
	CreatedAt       time.Time `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt       time.Time `gorm:"type:timestamptz;not null;default:now()"`
}

func (VehicleModel) TableName() string { return "vehicles" }

// GormVehicleRepository implements VehicleRepository using GORM.
type GormVehicleRepository struct {
	db *gorm.DB
}

func NewGormVehicleRepository(db *gorm.DB) *GormVehicleRepository {
	return &GormVehicleRepository{db: db}
}

func (r *GormVehicleRepository) FindByID(ctx context.Context, id uuid.UUID) (*vehicleDomain.Vehicle, error) {
	var model VehicleModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Vehicle", id.String())
		}
		return nil, err
	}
	return toVehicleDomain(&model), nil
}

func (r *GormVehicleRepository) ListByStatus(ctx context.Context, status vehicleDomain.VehicleStatus) ([]*vehicleDomain.Vehicle, error) {
	var models []VehicleModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", string(status)).
		Order("plate ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	vehicles := make([]*vehicleDomain.Vehicle, len(models))
	for i := range models {
		vehicles[i] = toVehicleDomain(&models[i])
	}
	return vehicles, nil
}

func (r *GormVehicleRepository) Save(ctx context.Context, v *vehicleDomain.Vehicle) error {
	model := toVehicleModel(v)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *GormVehicleRepository) Update(ctx context.Context, v *vehicleDomain.Vehicle) error {
	model := toVehicleModel(v)
	result := r.db.WithContext(ctx).
		Model(&VehicleModel{}).
		Where("id = ? AND version = ?", model.ID, model.Version-1).
		Updates(map[string]interface{}{
			"status":      model.Status,
			"odometer_km": model.OdometerKm,
			"fuel_pct":    model.FuelPct,
			"lat":         model.Lat,
			"lng":         model.Lng,
			"version":     model.Version,
			"updated_at":  model.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update vehicle: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("vehicle was modified by another transaction")
	}
	return nil
}

func toVehicleModel(v *vehicleDomain.Vehicle) VehicleModel {
	t := v.Tariff()
	rd := v.Reading()
	return VehicleModel{
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
		Lat:             rd.Point.Lat,
		Lng:             rd.Point.Lng,
		Version:         v.Version(),
		CreatedAt:       v.CreatedAt(),
		UpdatedAt:       v.UpdatedAt(),
	}
}

func toVehicleDomain(m *VehicleModel) *vehicleDomain.Vehicle {
	return vehicleDomain.Reconstruct(
		m.ID,
		m.Plate,
		m.Model,
		m.TeleDrivable,
		vehicleDomain.VehicleStatus(m.Status),
		rental.Tariff{
			Mode:            rental.PricingMode(m.PricingMode),
			UnitPriceCents:  m.UnitPriceCents,
			PricePerKmCents: m.PricePerKmCents,
		},
		rental.Reading{
			OdometerKm: m.OdometerKm,
			FuelPct:    m.FuelPct,
			Point:      geo.NewPoint(m.Lat, m.Lng),
		},
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	)
}
