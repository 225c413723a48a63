package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Mobility/service-journey/internal/common/domain"
	"github.com/Kilat-Mobility/service-journey/internal/domain/geo"
	geofenceDomain "github.com/Kilat-Mobility/service-journey/internal/domain/geofence"
)

// CreatePolygonRequest holds the data to register a geofence polygon.
type CreatePolygonRequest struct {
	Name       string      `json:"name" binding:"required"`
	Kind       string      `json:"kind" binding:"required"`
	Vertices   []geo.Point `json:"vertices" binding:"required,min=3"`
	BonusCents int64       `json:"bonus_cents" binding:"min=0"`
}

// CreateAreaRequest holds the data to register an operating or restricted area.
// Either Vertices or Center with RadiusMeters must be set.
type CreateAreaRequest struct {
	Name                  string      `json:"name" binding:"required"`
	Type                  string      `json:"type" binding:"required"`
	Vertices              []geo.Point `json:"vertices"`
	Center                *geo.Point  `json:"center"`
	RadiusMeters          float64     `json:"radius_meters"`
	PenaltyPerMinuteCents int64       `json:"penalty_per_minute_cents" binding:"min=0"`
}

// GeofenceService manages geofences and evaluates points against them.
type GeofenceService struct {
	repo            geofenceDomain.GeofenceRepository
	warningDistance float64
	logger          *zap.Logger
}

// NewGeofenceService creates a new GeofenceService. warningDistanceMeters is the
// rim distance under which circular areas raise a warning.
func NewGeofenceService(repo geofenceDomain.GeofenceRepository, warningDistanceMeters float64, logger *zap.Logger) *GeofenceService {
	return &GeofenceService{repo: repo, warningDistance: warningDistanceMeters, logger: logger}
}

// EvaluateGeofence tests a point against the active polygons of the given kind
// ("" for all kinds) and every active operating area.
func (s *GeofenceService) EvaluateGeofence(ctx context.Context, point geo.Point, kind geofenceDomain.Kind) (*geofenceDomain.Evaluation, error) {
	if !point.IsValid() {
		return nil, domain.NewValidationError("invalid coordinates")
	}
	polygons, err := s.repo.ListActivePolygons(ctx, kind)
	if err != nil {
		return nil, err
	}
	areas, err := s.repo.ListActiveAreas(ctx)
	if err != nil {
		return nil, err
	}
	ev := geofenceDomain.Evaluate(point, polygons, areas, s.warningDistance)
	return &ev, nil
}

// RentalSignals classifies a rental's start and end points for billing.
func (s *GeofenceService) RentalSignals(ctx context.Context, start, end geo.Point) (geofenceDomain.RentalSignals, error) {
	polygons, err := s.repo.ListActivePolygons(ctx, "")
	if err != nil {
		return geofenceDomain.RentalSignals{}, fmt.Errorf("failed to load geofences: %w", err)
	}
	return geofenceDomain.Signals(start, end, polygons), nil
}

// ListPolygons returns the active polygons of a kind ("" for all).
func (s *GeofenceService) ListPolygons(ctx context.Context, kind geofenceDomain.Kind) ([]*geofenceDomain.Polygon, error) {
	return s.repo.ListActivePolygons(ctx, kind)
}

// CreatePolygon registers a new polygon.
func (s *GeofenceService) CreatePolygon(ctx context.Context, req CreatePolygonRequest) (*geofenceDomain.Polygon, error) {
	p, err := geofenceDomain.NewPolygon(req.Name, geofenceDomain.Kind(req.Kind), req.Vertices, req.BonusCents)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SavePolygon(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("geofence created",
		zap.String("geofence_id", p.ID.String()),
		zap.String("kind", string(p.Kind)),
		zap.Int("vertices", len(p.Vertices)),
	)
	return p, nil
}

// DeactivatePolygon removes a polygon from evaluation.
func (s *GeofenceService) DeactivatePolygon(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeactivatePolygon(ctx, id); err != nil {
		return err
	}
	s.logger.Info("geofence deactivated", zap.String("geofence_id", id.String()))
	return nil
}

// ListAreas returns the active operating areas.
func (s *GeofenceService) ListAreas(ctx context.Context) ([]*geofenceDomain.OperatingArea, error) {
	return s.repo.ListActiveAreas(ctx)
}

// CreateArea registers a new operating or restricted area.
func (s *GeofenceService) CreateArea(ctx context.Context, req CreateAreaRequest) (*geofenceDomain.OperatingArea, error) {
	a, err := geofenceDomain.NewOperatingArea(
		req.Name,
		geofenceDomain.AreaType(req.Type),
		req.Vertices,
		req.Center,
		req.RadiusMeters,
		req.PenaltyPerMinuteCents,
	)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveArea(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("operating area created",
		zap.String("area_id", a.ID.String()),
		zap.String("type", string(a.Type)),
		zap.Bool("circle", a.IsCircle()),
	)
	return a, nil
}

// DeactivateArea stops enforcing an operating area.
func (s *GeofenceService) DeactivateArea(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeactivateArea(ctx, id); err != nil {
		return err
	}
	s.logger.Info("operating area deactivated", zap.String("area_id", id.String()))
	return nil
}
