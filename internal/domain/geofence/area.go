package geofence

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Mobility/service-journey/internal/common/domain"
	"github.com/Kilat-Mobility/service-journey/internal/domain/geo"
)

// AreaType says whether a rental must stay inside or outside the area.
type AreaType string

const (
	AreaOperating  AreaType = "operating"
	AreaRestricted AreaType = "restricted"
)

// IsValid returns true if the area type is recognized.
func (t AreaType) IsValid() bool {
	return t == AreaOperating || t == AreaRestricted
}

// OperatingArea is a polygon or circle enforced during active rentals.
// Exactly one of Vertices (≥3) or a positive RadiusMeters is set.
type OperatingArea struct {
	ID                    uuid.UUID   `json:"id"`
	Name                  string      `json:"name"`
	Type                  AreaType    `json:"type"`
	Vertices              []geo.Point `json:"vertices,omitempty"`
	Center                *geo.Point  `json:"center,omitempty"`
	RadiusMeters          float64     `json:"radius_meters,omitempty"`
	PenaltyPerMinuteCents int64       `json:"penalty_per_minute_cents"`
	Active                bool        `json:"active"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

// NewOperatingArea validates and creates an OperatingArea.
func NewOperatingArea(
	name string,
	areaType AreaType,
	vertices []geo.Point,
	center *geo.Point,
	radiusMeters float64,
	penaltyPerMinuteCents int64,
) (*OperatingArea, error) {
	if name == "" {
		return nil, domain.NewValidationError("area name is required")
	}
	if !areaType.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid area type: %s", areaType))
	}
	isCircle := center != nil
	if isCircle == (len(vertices) > 0) {
		return nil, domain.NewValidationError("an area is either a polygon or a circle")
	}
	if isCircle && (radiusMeters <= 0 || !center.IsValid()) {
		return nil, domain.NewValidationError("a circular area needs a valid center and positive radius")
	}
	if !isCircle && len(vertices) < 3 {
		return nil, domain.NewValidationError("a polygonal area needs at least 3 vertices")
	}
	if penaltyPerMinuteCents < 0 {
		return nil, domain.NewValidationError("penalty cannot be negative")
	}

	var vs []geo.Point
	if len(vertices) > 0 {
		vs = make([]geo.Point, len(vertices))
		copy(vs, vertices)
	}
	now := time.Now().UTC()
	return &OperatingArea{
		ID:                    uuid.New(),
		Name:                  name,
		Type:                  areaType,
		Vertices:              vs,
		Center:                center,
		RadiusMeters:          radiusMeters,
		PenaltyPerMinuteCents: penaltyPerMinuteCents,
		Active:                true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}, nil
}

// IsCircle reports whether the area is defined by center and radius.
func (a *OperatingArea) IsCircle() bool {
	return a.Center != nil && a.RadiusMeters > 0
}

// Evaluable reports whether the area's shape can be tested.
func (a *OperatingArea) Evaluable() bool {
	return a.IsCircle() || len(a.Vertices) >= 3
}

// Contains tests membership: haversine distance for circles, ray casting for polygons.
func (a *OperatingArea) Contains(pt geo.Point) bool {
	if a.IsCircle() {
		return geo.HaversineMeters(pt, *a.Center) <= a.RadiusMeters
	}
	return len(a.Vertices) >= 3 && pointInRing(pt, a.Vertices)
}

// Violation is a breach of an area's rule at a point.
type Violation struct {
	AreaID                uuid.UUID `json:"area_id"`
	AreaName              string    `json:"area_name"`
	AreaType              AreaType  `json:"area_type"`
	PenaltyPerMinuteCents int64     `json:"penalty_per_minute_cents"`
}

// Warning signals that a point is close to breaching an area's rule.
type Warning struct {
	AreaID               uuid.UUID `json:"area_id"`
	AreaName             string    `json:"area_name"`
	AreaType             AreaType  `json:"area_type"`
	DistanceToEdgeMeters float64   `json:"distance_to_edge_meters"`
}

// Evaluation is the outcome of testing a point against polygons and areas.
type Evaluation struct {
	Point      geo.Point   `json:"point"`
	Containing *Polygon    `json:"containing,omitempty"`
	Violations []Violation `json:"violations"`
	Warnings   []Warning   `json:"warnings"`
}

// Evaluate finds the polygon containing pt and checks every operating area.
//
// Violations: outside an operating area, inside a restricted area. Warnings apply
// to circular areas only: inside an operating circle with less than
// warningDistance to the rim, or outside a restricted circle with less than
// warningDistance to the rim.
func Evaluate(pt geo.Point, polygons []*Polygon, areas []*OperatingArea, warningDistance float64) Evaluation {
	ev := Evaluation{
		Point:      pt,
		Containing: Containing(pt, polygons),
		Violations: []Violation{},
		Warnings:   []Warning{},
	}

	for _, a := range areas {
		if a == nil || !a.Evaluable() {
			continue
		}
		inside := a.Contains(pt)
		violated := (a.Type == AreaOperating && !inside) || (a.Type == AreaRestricted && inside)
		if violated {
			ev.Violations = append(ev.Violations, Violation{
				AreaID:                a.ID,
				AreaName:              a.Name,
				AreaType:              a.Type,
				PenaltyPerMinuteCents: a.PenaltyPerMinuteCents,
			})
			continue
		}
		if !a.IsCircle() {
			continue
		}

		distance := geo.HaversineMeters(pt, *a.Center)
		margin := a.RadiusMeters - distance
		if a.Type == AreaRestricted {
			margin = distance - a.RadiusMeters
		}
		if margin < warningDistance {
			ev.Warnings = append(ev.Warnings, Warning{
				AreaID:               a.ID,
				AreaName:             a.Name,
				AreaType:             a.Type,
				DistanceToEdgeMeters: margin,
			})
		}
	}
	return ev
}
