package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Kilat-Mobility/service-journey/internal/common/domain"
	"github.com/Kilat-Mobility/service-journey/internal/domain/geo"
	journeyDomain "github.com/Kilat-Mobility/service-journey/internal/domain/journey"
)

// JourneyModel is the GORM model for the journeys table. The active leg and its
// simulation checkpoint are flattened into the row so that one conditional UPDATE
// moves phase, status and clock together.
type JourneyModel struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Kind      string     `gorm:"not null;size:20"`
	RiderID   uuid.UUID  `gorm:"type:uuid;index;not null"`
	VehicleID *uuid.UUID `gorm:"type:uuid;index"`
	Status    string     `gorm:"not null;size:30;index"`
	Phase     string     `gorm:"not null;size:30"`

	LegKind            string          `gorm:"not null;size:30"`
	LegStartLat        float64         `gorm:"not null"`
	LegStartLng        float64         `gorm:"not null"`
	LegEndLat          float64         `gorm:"not null"`
	LegEndLng          float64         `gorm:"not null"`
	RouteGeometry      json.RawMessage `gorm:"type:jsonb"`
	TotalDurationSec   int             `gorm:"not null"`
	AccumulatedSeconds float64         `gorm:"not null;default:0"`
	ReferenceTime      time.Time       `gorm:"not null"`
	SpeedMultiplier    float64         `gorm:"not null;default:1"`
	LegStartedAt       time.Time       `gorm:"not null"`
	TripPlan           json.RawMessage `gorm:"type:jsonb"`

	FareCents     *int64     `gorm:""`
	Currency      string     `gorm:"not null;size:3;default:'EUR'"`
	CancelReason  string     `gorm:"size:500"`
	ArrivedAt     *time.Time `gorm:""`
	TripStartedAt *time.Time `gorm:""`
	CompletedAt   *time.Time `gorm:""`
	CancelledAt   *time.Time `gorm:""`
	Version       int64      `gorm:"not null;default:1"`
	CreatedAt     time.Time  `gorm:"not null"`
	UpdatedAt     time.Time  `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (JourneyModel) TableName() string {
	return "journeys"
}

// JourneyLegModel is an archived leg.
type JourneyLegModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	JourneyID        uuid.UUID       `gorm:"type:uuid;index;not null"`
	Kind             string          `gorm:"not null;size:30"`
	StartLat         float64         `gorm:"not null"`
	StartLng         float64         `gorm:"not null"`
	EndLat           float64         `gorm:"not null"`
	EndLng           float64         `gorm:"not null"`
	RouteGeometry    json.RawMessage `gorm:"type:jsonb"`
	TotalDurationSec int             `gorm:"not null"`
	SimulatedSeconds float64         `gorm:"not null"`
	SpeedMultiplier  float64         `gorm:"not null"`
	StartedAt        time.Time       `gorm:"not null"`
	EndedAt          time.Time       `gorm:"not null"`
	CreatedAt        time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (JourneyLegModel) TableName() string {
	return "journey_legs"
}

type tripPlanJSON struct {
	Start            geo.Point       `json:"start"`
	End              geo.Point       `json:"end"`
	TotalDurationSec int             `json:"total_duration_sec"`
	Route            json.RawMessage `json:"route,omitempty"`
}

// GormJourneyRepository is the GORM-based implementation of JourneyRepository.
type GormJourneyRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormJourneyRepository creates a new GormJourneyRepository.
func NewGormJourneyRepository(db *gorm.DB, logger *zap.Logger) *GormJourneyRepository {
	return &GormJourneyRepository{db: db, logger: logger}
}

// FindByID retrieves a journey by its unique identifier.
func (r *GormJourneyRepository) FindByID(ctx context.Context, id uuid.UUID) (*journeyDomain.Journey, error) {
	var model JourneyModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Journey", id.String())
		}
		return nil, fmt.Errorf("failed to find journey by ID: %w", err)
	}
	return r.toDomainJourney(&model)
}

// FindByRiderID retrieves journeys for a rider with pagination.
func (r *GormJourneyRepository) FindByRiderID(ctx context.Context, riderID uuid.UUID, page, limit int) ([]*journeyDomain.Journey, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("rider_id = ?", riderID), page, limit)
}

// ListAll retrieves all journeys with pagination (admin).
func (r *GormJourneyRepository) ListAll(ctx context.Context, page, limit int) ([]*journeyDomain.Journey, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx), page, limit)
}

func (r *GormJourneyRepository) list(ctx context.Context, scope *gorm.DB, page, limit int) ([]*journeyDomain.Journey, int64, error) {
	var total int64
	if err := scope.Session(&gorm.Session{}).Model(&JourneyModel{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count journeys: %w", err)
	}

	var models []JourneyModel
	offset := (page - 1) * limit
	if err := scope.Session(&gorm.Session{}).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list journeys: %w", err)
	}

	journeys := make([]*journeyDomain.Journey, len(models))
	for i := range models {
		j, err := r.toDomainJourney(&models[i])
		if err != nil {
			return nil, 0, err
		}
		journeys[i] = j
	}
	return journeys, total, nil
}

// CountByStatus returns journey counts grouped by status (admin).
func (r *GormJourneyRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&JourneyModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// Save persists a new journey.
func (r *GormJourneyRepository) Save(ctx context.Context, j *journeyDomain.Journey) error {
	model, err := toJourneyModel(j)
	if err != nil {
		return fmt.Errorf("failed to convert journey to model: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save journey: %w", err)
	}
	return nil
}

// Update writes the journey row conditioned on the previous version and inserts
// the archived legs in the same transaction.
func (r *GormJourneyRepository) Update(ctx context.Context, j *journeyDomain.Journey, archived []journeyDomain.Leg) error {
	model, err := toJourneyModel(j)
	if err != nil {
		return fmt.Errorf("failed to convert journey to model: %w", err)
	}
	legs := make([]JourneyLegModel, 0, len(archived))
	for _, l := range archived {
		lm, err := toJourneyLegModel(j.ID(), l)
		if err != nil {
			return fmt.Errorf("failed to convert leg to model: %w", err)
		}
		legs = append(legs, *lm)
	}

	// IncrementVersion was called by the service, so the stored row is one behind.
	expectedVersion := j.Version() - 1
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&JourneyModel{}).
			Where("id = ? AND version = ?", model.ID, expectedVersion).
			Updates(map[string]interface{}{
				"status":              model.Status,
				"phase":               model.Phase,
				"leg_kind":            model.LegKind,
				"leg_start_lat":       model.LegStartLat,
				"leg_start_lng":       model.LegStartLng,
				"leg_end_lat":         model.LegEndLat,
				"leg_end_lng":         model.LegEndLng,
				"route_geometry":      model.RouteGeometry,
				"total_duration_sec":  model.TotalDurationSec,
				"accumulated_seconds": model.AccumulatedSeconds,
				"reference_time":      model.ReferenceTime,
				"speed_multiplier":    model.SpeedMultiplier,
				"leg_started_at":      model.LegStartedAt,
				"trip_plan":           model.TripPlan,
				"fare_cents":          model.FareCents,
				"cancel_reason":       model.CancelReason,
				"arrived_at":          model.ArrivedAt,
				"trip_started_at":     model.TripStartedAt,
				"completed_at":        model.CompletedAt,
				"cancelled_at":        model.CancelledAt,
				"version":             model.Version,
				"updated_at":          model.UpdatedAt,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update journey: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return domain.NewConflictError("journey was modified by another transaction")
		}
		if len(legs) > 0 {
			if err := tx.Create(&legs).Error; err != nil {
				return fmt.Errorf("failed to archive journey legs: %w", err)
			}
		}
		return nil
	})
}

// --- Conversion Helpers ---

func toJourneyModel(j *journeyDomain.Journey) (*JourneyModel, error) {
	leg := j.Leg()
	routeJSON, err := leg.Route.MarshalGeometry()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal route geometry: %w", err)
	}

	var tripJSON json.RawMessage
	if plan := j.TripPlan(); plan != nil {
		planRoute, err := plan.Route.MarshalGeometry()
		if err != nil {
			return nil, fmt.Errorf("failed to marshal trip route: %w", err)
		}
		tripJSON, err = json.Marshal(tripPlanJSON{
			Start:            plan.Start,
			End:              plan.End,
			TotalDurationSec: plan.TotalDurationSec,
			Route:            planRoute,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal trip plan: %w", err)
		}
	}

	return &JourneyModel{
		ID:                 j.ID(),
		Kind:               string(j.Kind()),
		RiderID:            j.RiderID(),
		VehicleID:          j.VehicleID(),
		Status:             string(j.Status()),
		Phase:              string(j.Phase()),
		LegKind:            string(leg.Kind),
		LegStartLat:        leg.Start.Lat,
		LegStartLng:        leg.Start.Lng,
		LegEndLat:          leg.End.Lat,
		LegEndLng:          leg.End.Lng,
		RouteGeometry:      routeJSON,
		TotalDurationSec:   leg.TotalDurationSec,
		AccumulatedSeconds: leg.Checkpoint.AccumulatedSeconds,
		ReferenceTime:      leg.Checkpoint.ReferenceTime,
		SpeedMultiplier:    leg.Checkpoint.SpeedMultiplier,
		LegStartedAt:       leg.StartedAt,
		TripPlan:           tripJSON,
		FareCents:          j.FareCents(),
		Currency:           j.Currency(),
		CancelReason:       j.CancelReason(),
		ArrivedAt:          j.ArrivedAt(),
		TripStartedAt:      j.TripStartedAt(),
		CompletedAt:        j.CompletedAt(),
		CancelledAt:        j.CancelledAt(),
		Version:            j.Version(),
		CreatedAt:          j.CreatedAt(),
		UpdatedAt:          j.UpdatedAt(),
	}, nil
}

func toJourneyLegModel(journeyID uuid.UUID, l journeyDomain.Leg) (*JourneyLegModel, error) {
	routeJSON, err := l.Route.MarshalGeometry()
	if err != nil {
		return nil, err
	}
	return &JourneyLegModel{
		ID:               uuid.New(),
		JourneyID:        journeyID,
		Kind:             string(l.Kind),
		StartLat:         l.Start.Lat,
		StartLng:         l.Start.Lng,
		EndLat:           l.End.Lat,
		EndLng:           l.End.Lng,
		RouteGeometry:    routeJSON,
		TotalDurationSec: l.TotalDurationSec,
		SimulatedSeconds: l.Checkpoint.AccumulatedSeconds,
		SpeedMultiplier:  l.Checkpoint.SpeedMultiplier,
		StartedAt:        l.StartedAt,
		EndedAt:          l.Checkpoint.ReferenceTime,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// toDomainJourney validates the row at the persistence boundary. Broken route
// geometry is not fatal: the leg falls back to a straight line and a warning is logged.
func (r *GormJourneyRepository) toDomainJourney(m *JourneyModel) (*journeyDomain.Journey, error) {
	kind := journeyDomain.Kind(m.Kind)
	if !kind.IsValid() {
		return nil, fmt.Errorf("invalid journey kind: %s", m.Kind)
	}
	status, err := journeyDomain.ParseStatus(m.Status)
	if err != nil {
		return nil, err
	}
	phase, err := journeyDomain.ParsePhase(m.Phase)
	if err != nil {
		return nil, err
	}

	leg := journeyDomain.Leg{
		Kind:             journeyDomain.LegKind(m.LegKind),
		Start:            geo.NewPoint(m.LegStartLat, m.LegStartLng),
		End:              geo.NewPoint(m.LegEndLat, m.LegEndLng),
		Route:            r.parseRoute(m.ID, m.RouteGeometry),
		TotalDurationSec: m.TotalDurationSec,
		Checkpoint: journeyDomain.Checkpoint{
			AccumulatedSeconds: m.AccumulatedSeconds,
			ReferenceTime:      m.ReferenceTime.UTC(),
			SpeedMultiplier:    journeyDomain.ClampSpeed(m.SpeedMultiplier),
		},
		StartedAt: m.LegStartedAt.UTC(),
	}

	var tripPlan *journeyDomain.LegPlan
	if len(m.TripPlan) > 0 && string(m.TripPlan) != "null" {
		var tp tripPlanJSON
		if err := json.Unmarshal(m.TripPlan, &tp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trip plan: %w", err)
		}
		tripPlan = &journeyDomain.LegPlan{
			Start:            tp.Start,
			End:              tp.End,
			Route:            r.parseRoute(m.ID, tp.Route),
			TotalDurationSec: tp.TotalDurationSec,
		}
	}

	return journeyDomain.ReconstructJourney(
		m.ID,
		kind,
		m.RiderID,
		m.VehicleID,
		status,
		phase,
		leg,
		tripPlan,
		m.FareCents,
		m.Currency,
		m.CancelReason,
		m.ArrivedAt,
		m.TripStartedAt,
		m.CompletedAt,
		m.CancelledAt,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}

func (r *GormJourneyRepository) parseRoute(journeyID uuid.UUID, raw json.RawMessage) journeyDomain.Route {
	route, err := journeyDomain.ParseRouteGeometry(raw)
	if err != nil {
		r.logger.Warn("malformed route geometry, falling back to straight line",
			zap.String("journey_id", journeyID.String()),
			zap.Error(err),
		)
		return journeyDomain.Route{}
	}
	return route
}
