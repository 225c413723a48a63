package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Kilat-Mobility/service-journey/internal/common/domain"
	"github.com/Kilat-Mobility/service-journey/internal/domain/geo"
	rentalDomain "github.com/Kilat-Mobility/service-journey/internal/domain/rental"
)

// RentalModel is the GORM model for the rentals table.
type RentalModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserID          uuid.UUID       `gorm:"type:uuid;index;not null"`
	VehicleID       uuid.UUID       `gorm:"type:uuid;index;not null"`
	Status          string          `gorm:"not null;size:20;index"`
	PricingMode     string          `gorm:"not null;size:20"`
	UnitPriceCents  int64           `gorm:"not null"`
	PricePerKmCents int64           `gorm:"not null"`
	StartOdometerKm float64         `gorm:"not null"`
	StartFuelPct    float64         `gorm:"not null"`
	StartLat        float64         `gorm:"not null"`
	StartLng        float64         `gorm:"not null"`
	EndOdometerKm   *float64        `gorm:""`
	EndFuelPct      *float64        `gorm:""`
	EndLat          *float64        `gorm:""`
	EndLng          *float64        `gorm:""`
	Breakdown       json.RawMessage `gorm:"type:jsonb"`
	TotalCents      *int64          `gorm:""`
	Currency        string          `gorm:"not null;size:3;default:'EUR'"`
	StartedAt       time.Time       `gorm:"not null"`
	EndedAt         *time.Time      `gorm:""`
	Version         int64           `gorm:"not null;default:1"`
	CreatedAt       time.Time       `gorm:"not null"`
	UpdatedAt       time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (RentalModel) TableName() string {
	return "rentals"
}

// GormRentalRepository is the GORM-based implementation of RentalRepository.
type GormRentalRepository struct {
	db *gorm.DB
}

// NewGormRentalRepository creates a new GormRentalRepository.
func NewGormRentalRepository(db *gorm.DB) *GormRentalRepository {
	return &GormRentalRepository{db: db}
}

// FindByID retrieves a rental by its unique identifier.
func (r *GormRentalRepository) FindByID(ctx context.Context, id uuid.UUID) (*rentalDomain.Rental, error) {
	var model RentalModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Rental", id.String())
		}
		return nil, fmt.Errorf("failed to find rental by ID: %w", err)
	}
	return toDomainRental(&model)
}

// FindActiveByVehicleID returns the open rental of a vehicle.
func (r *GormRentalRepository) FindActiveByVehicleID(ctx context.Context, vehicleID uuid.UUID) (*rentalDomain.Rental, error) {
	var model RentalModel
	if err := r.db.WithContext(ctx).
		Where("vehicle_id = ? AND status = ?", vehicleID, string(rentalDomain.StatusActive)).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Rental", "vehicle "+vehicleID.String())
		}
		return nil, fmt.Errorf("failed to find active rental: %w", err)
	}
	return toDomainRental(&model)
}

// FindByUserID retrieves rentals for a user with pagination.
func (r *GormRentalRepository) FindByUserID(ctx context.Context, userID uuid.UUID, page, limit int) ([]*rentalDomain.Rental, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&RentalModel{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count user rentals: %w", err)
	}

	var models []RentalModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find user rentals: %w", err)
	}

	rentals := make([]*rentalDomain.Rental, len(models))
	for i := range models {
		rt, err := toDomainRental(&models[i])
		if err != nil {
			return nil, 0, err
		}
		rentals[i] = rt
	}
	return rentals, total, nil
}

// Save persists a new rental.
func (r *GormRentalRepository) Save(ctx context.Context, rt *rentalDomain.Rental) error {
	model, err := toRentalModel(rt)
	if err != nil {
		return fmt.Errorf("failed to convert rental to model: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save rental: %w", err)
	}
	return nil
}

// Update persists a closed rental with optimistic locking.
func (r *GormRentalRepository) Update(ctx context.Context, rt *rentalDomain.Rental) error {
	model, err := toRentalModel(rt)
	if err != nil {
		return fmt.Errorf("failed to convert rental to model: %w", err)
	}

	expectedVersion := rt.Version() - 1
	result := r.db.WithContext(ctx).
		Model(&RentalModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Updates(map[string]interface{}{
			"status":          model.Status,
			"end_odometer_km": model.EndOdometerKm,
			"end_fuel_pct":    model.EndFuelPct,
			"end_lat":         model.EndLat,
			"end_lng":         model.EndLng,
			"breakdown":       model.Breakdown,
			"total_cents":     model.TotalCents,
			"ended_at":        model.EndedAt,
			"version":         model.Version,
			"updated_at":      model.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update rental: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("rental was modified by another transaction")
	}
	return nil
}

// --- Conversion Helpers ---

func toRentalModel(rt *rentalDomain.Rental) (*RentalModel, error) {
	t := rt.Tariff()
	start := rt.Start()
	m := &RentalModel{
		ID:              rt.ID(),
		UserID:          rt.UserID(),
		VehicleID:       rt.VehicleID(),
		Status:          string(rt.Status()),
		PricingMode:     string(t.Mode),
		UnitPriceCents:  t.UnitPriceCents,
		PricePerKmCents: t.PricePerKmCents,
		StartOdometerKm: start.OdometerKm,
		StartFuelPct:    start.FuelPct,
		StartLat:        start.Point.Lat,
		StartLng:        start.Point.Lng,
		Currency:        rt.Currency(),
		StartedAt:       rt.StartedAt(),
		EndedAt:         rt.EndedAt(),
		Version:         rt.Version(),
		CreatedAt:       rt.CreatedAt(),
		UpdatedAt:       rt.UpdatedAt(),
	}
	if end := rt.End(); end != nil {
		m.EndOdometerKm = &end.OdometerKm
		m.EndFuelPct = &end.FuelPct
		m.EndLat = &end.Point.Lat
		m.EndLng = &end.Point.Lng
	}
	if b := rt.Breakdown(); b != nil {
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal breakdown: %w", err)
		}
		m.Breakdown = data
		m.TotalCents = &b.Total
	}
	return m, nil
}

func toDomainRental(m *RentalModel) (*rentalDomain.Rental, error) {
	status, err := rentalDomain.ParseRentalStatus(m.Status)
	if err != nil {
		return nil, err
	}

	var end *rentalDomain.Reading
	if m.EndOdometerKm != nil && m.EndFuelPct != nil && m.EndLat != nil && m.EndLng != nil {
		end = &rentalDomain.Reading{
			OdometerKm: *m.EndOdometerKm,
			FuelPct:    *m.EndFuelPct,
			Point:      geo.NewPoint(*m.EndLat, *m.EndLng),
		}
	}

	var breakdown *rentalDomain.Breakdown
	if len(m.Breakdown) > 0 {
		var b rentalDomain.Breakdown
		if err := json.Unmarshal(m.Breakdown, &b); err != nil {
			return nil, fmt.Errorf("failed to unmarshal breakdown: %w", err)
		}
		breakdown = &b
	}

	return rentalDomain.ReconstructRental(
		m.ID,
		m.UserID,
		m.VehicleID,
		status,
		rentalDomain.Tariff{
			Mode:            rentalDomain.PricingMode(m.PricingMode),
			UnitPriceCents:  m.UnitPriceCents,
			PricePerKmCents: m.PricePerKmCents,
		},
		rentalDomain.Reading{
			OdometerKm: m.StartOdometerKm,
			FuelPct:    m.StartFuelPct,
			Point:      geo.NewPoint(m.StartLat, m.StartLng),
		},
		end,
		breakdown,
		m.Currency,
		m.StartedAt,
		m.EndedAt,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}
