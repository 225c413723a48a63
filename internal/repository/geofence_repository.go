package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Kilat-Mobility/service-journey/internal/common/domain"
	"github.com/Kilat-Mobility/service-journey/internal/domain/geo"
	geofenceDomain "github.com/Kilat-Mobility/service-journey/internal/domain/geofence"
)

// GeofenceModel is the GORM model for the geofences table. Vertices are stored
// as a JSON array of {lat, lng} objects.
type GeofenceModel struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Name       string          `gorm:"type:varchar(100);not null"`
	Kind       string          `gorm:"type:varchar(20);not null;index"`
	Vertices   json.RawMessage `gorm:"type:jsonb;not null"`
	BonusCents int64           `gorm:"not null;default:0"`
	Active     bool            `gorm:"not null;default:true;index"`
	CreatedAt  time.Time       `gorm:"not null"`
	UpdatedAt  time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (GeofenceModel) TableName() string { return "geofences" }

// OperatingAreaModel is the GORM model for the operating_areas table.
type OperatingAreaModel struct {
	ID                    uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Name                  string          `gorm:"type:varchar(100);not null"`
	Type                  string          `gorm:"type:varchar(20);not null"`
	Vertices              json.RawMessage `gorm:"type:jsonb"`
	CenterLat             *float64        `gorm:""`
	CenterLng             *float64        `gorm:""`
	RadiusMeters          float64         `gorm:"not null;default:0"`
	PenaltyPerMinuteCents int64           `gorm:"not null;default:0"`
	Active                bool            `gorm:"not null;default:true;index"`
	CreatedAt             time.Time       `gorm:"not null"`
	UpdatedAt             time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (OperatingAreaModel) TableName() string { return "operating_areas" }

// GormGeofenceRepository implements GeofenceRepository using GORM.
type GormGeofenceRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormGeofenceRepository creates a new GormGeofenceRepository.
func NewGormGeofenceRepository(db *gorm.DB, logger *zap.Logger) *GormGeofenceRepository {
	return &GormGeofenceRepository{db: db, logger: logger}
}

// ListActivePolygons returns active polygons; kind "" means all kinds. Rows whose
// vertices cannot be decoded are skipped with a warning.
func (r *GormGeofenceRepository) ListActivePolygons(ctx context.Context, kind geofenceDomain.Kind) ([]*geofenceDomain.Polygon, error) {
	q := r.db.WithContext(ctx).Where("active = ?", true)
	if kind != "" {
		q = q.Where("kind = ?", string(kind))
	}
	var models []GeofenceModel
	if err := q.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list geofences: %w", err)
	}

	polygons := make([]*geofenceDomain.Polygon, 0, len(models))
	for i := range models {
		m := &models[i]
		var vertices []geo.Point
		if err := json.Unmarshal(m.Vertices, &vertices); err != nil {
			r.logger.Warn("skipping geofence with malformed vertices",
				zap.String("geofence_id", m.ID.String()),
				zap.Error(err),
			)
			continue
		}
		polygons = append(polygons, &geofenceDomain.Polygon{
			ID:         m.ID,
			Name:       m.Name,
			Kind:       geofenceDomain.Kind(m.Kind),
			Vertices:   vertices,
			BonusCents: m.BonusCents,
			Active:     m.Active,
			CreatedAt:  m.CreatedAt,
			UpdatedAt:  m.UpdatedAt,
		})
	}
	return polygons, nil
}

// SavePolygon persists a new polygon.
func (r *GormGeofenceRepository) SavePolygon(ctx context.Context, p *geofenceDomain.Polygon) error {
	vertices, err := json.Marshal(p.Vertices)
	if err != nil {
		return fmt.Errorf("failed to marshal vertices: %w", err)
	}
	model := GeofenceModel{
		ID:         p.ID,
		Name:       p.Name,
		Kind:       string(p.Kind),
		Vertices:   vertices,
		BonusCents: p.BonusCents,
		Active:     p.Active,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to save geofence: %w", err)
	}
	return nil
}

// DeactivatePolygon hides a polygon from evaluation.
func (r *GormGeofenceRepository) DeactivatePolygon(ctx context.Context, id uuid.UUID) error {
	return r.deactivate(ctx, &GeofenceModel{}, "Geofence", id)
}

// ListActiveAreas returns active operating areas.
func (r *GormGeofenceRepository) ListActiveAreas(ctx context.Context) ([]*geofenceDomain.OperatingArea, error) {
	var models []OperatingAreaModel
	if err := r.db.WithContext(ctx).Where("active = ?", true).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list operating areas: %w", err)
	}

	areas := make([]*geofenceDomain.OperatingArea, 0, len(models))
	for i := range models {
		m := &models[i]
		var vertices []geo.Point
		if len(m.Vertices) > 0 && string(m.Vertices) != "null" {
			if err := json.Unmarshal(m.Vertices, &vertices); err != nil {
				r.logger.Warn("skipping operating area with malformed vertices",
					zap.String("area_id", m.ID.String()),
					zap.Error(err),
				)
				continue
			}
		}
		var center *geo.Point
		if m.CenterLat != nil && m.CenterLng != nil {
			c := geo.NewPoint(*m.CenterLat, *m.CenterLng)
			center = &c
		}
		areas = append(areas, &geofenceDomain.OperatingArea{
			ID:                    m.ID,
			Name:                  m.Name,
			Type:                  geofenceDomain.AreaType(m.Type),
			Vertices:              vertices,
			Center:                center,
			RadiusMeters:          m.RadiusMeters,
			PenaltyPerMinuteCents: m.PenaltyPerMinuteCents,
			Active:                m.Active,
			CreatedAt:             m.CreatedAt,
			UpdatedAt:             m.UpdatedAt,
		})
	}
	return areas, nil
}

// SaveArea persists a new operating area.
func (r *GormGeofenceRepository) SaveArea(ctx context.Context, a *geofenceDomain.OperatingArea) error {
	var vertices json.RawMessage
	if len(a.Vertices) > 0 {
		data, err := json.Marshal(a.Vertices)
		if err != nil {
			return fmt.Errorf("failed to marshal vertices: %w", err)
		}
		vertices = data
	}
	model := OperatingAreaModel{
		ID:                    a.ID,
		Name:                  a.Name,
		Type:                  string(a.Type),
		Vertices:              vertices,
		RadiusMeters:          a.RadiusMeters,
		PenaltyPerMinuteCents: a.PenaltyPerMinuteCents,
		Active:                a.Active,
		CreatedAt:             a.CreatedAt,
		UpdatedAt:             a.UpdatedAt,
	}
	if a.Center != nil {
		model.CenterLat = &a.Center.Lat
		model.CenterLng = &a.Center.Lng
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to save operating area: %w", err)
	}
	return nil
}

// DeactivateArea stops enforcing an operating area.
func (r *GormGeofenceRepository) DeactivateArea(ctx context.Context, id uuid.UUID) error {
	return r.deactivate(ctx, &OperatingAreaModel{}, "OperatingArea", id)
}

func (r *GormGeofenceRepository) deactivate(ctx context.Context, model interface{}, entity string, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(model).
		Where("id = ? AND active = ?", id, true).
		Updates(map[string]interface{}{
			"active":     false,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate %s: %w", entity, result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewNotFoundError(entity, id.String())
	}
	return nil
}
