package geofence

import (
	"context"

	"github.com/google/uuid"
)

// GeofenceRepository defines persistence operations for geofences and operating areas.
type GeofenceRepository interface {
	// ListActivePolygons returns every active polygon, optionally filtered by kind ("" = all).
	ListActivePolygons(ctx context.Context, kind Kind) ([]*Polygon, error)
	SavePolygon(ctx context.Context, p *Polygon) error
	DeactivatePolygon(ctx context.Context, id uuid.UUID) error

	ListActiveAreas(ctx context.Context) ([]*OperatingArea, error)
	SaveArea(ctx context.Context, a *OperatingArea) error
	DeactivateArea(ctx context.Context, id uuid.UUID) error
}
