package geofence

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Mobility/service-journey/internal/common/domain"
	"github.com/Kilat-Mobility/service-journey/internal/domain/geo"
)

// denominatorEpsilon replaces near-zero edge heights in the ray-casting test.
const denominatorEpsilon = 1e-10

// Kind says what a geofence is used for in billing.
type Kind string

const (
	KindBoundary Kind = "boundary" // crossing between two boundaries costs a crossing fee
	KindZone     Kind = "zone"     // parking zone; may carry an end-of-rental bonus
	KindCity     Kind = "city"     // ending in another city costs the inter-city fee
	KindDisplay  Kind = "display"  // map only
)

// IsValid returns true if the kind is recognized.
func (k Kind) IsValid() bool {
	switch k {
	case KindBoundary, KindZone, KindCity, KindDisplay:
		return true
	}
	return false
}

// Polygon is a named closed polygon. The closing edge is implicit.
type Polygon struct {
	ID         uuid.UUID   `json:"id"`
	Name       string      `json:"name"`
	Kind       Kind        `json:"kind"`
	Vertices   []geo.Point `json:"vertices"`
	BonusCents int64       `json:"bonus_cents,omitempty"`
	Active     bool        `json:"active"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// NewPolygon validates and creates a Polygon.
func NewPolygon(name string, kind Kind, vertices []geo.Point, bonusCents int64) (*Polygon, error) {
	if name == "" {
		return nil, domain.NewValidationError("geofence name is required")
	}
	if !kind.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid geofence kind: %s", kind))
	}
	if len(vertices) < 3 {
		return nil, domain.NewValidationError("a geofence needs at least 3 vertices")
	}
	for _, v := range vertices {
		if !v.IsValid() {
			return nil, domain.NewValidationError("geofence vertex out of range")
		}
	}
	if bonusCents < 0 {
		return nil, domain.NewValidationError("bonus cannot be negative")
	}
	now := time.Now().UTC()
	vs := make([]geo.Point, len(vertices))
	copy(vs, vertices)
	return &Polygon{
		ID:         uuid.New(),
		Name:       name,
		Kind:       kind,
		Vertices:   vs,
		BonusCents: bonusCents,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Evaluable reports whether the polygon has enough vertices to be tested.
func (p *Polygon) Evaluable() bool {
	return p != nil && len(p.Vertices) >= 3
}

// Contains runs the ray-casting test with x = longitude and y = latitude.
//
// Boundary behaviour follows the half-open convention of the crossing test: for
// an axis-aligned square, points on the minimum-longitude and minimum-latitude
// edges are inside, points on the maximum-longitude and maximum-latitude edges
// are outside.
func (p *Polygon) Contains(pt geo.Point) bool {
	if !p.Evaluable() {
		return false
	}
	return pointInRing(pt, p.Vertices)
}

func pointInRing(pt geo.Point, ring []geo.Point) bool {
	x, y := pt.Lng, pt.Lat
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i].Lng, ring[i].Lat
		xj, yj := ring[j].Lng, ring[j].Lat

		if (yi > y) == (yj > y) {
			continue
		}
		denom := yj - yi
		if math.Abs(denom) < denominatorEpsilon {
			if denom < 0 {
				denom = -denominatorEpsilon
			} else {
				denom = denominatorEpsilon
			}
		}
		if x < (xj-xi)*(y-yi)/denom+xi {
			inside = !inside
		}
	}
	return inside
}

// Containing returns the first polygon in set that contains pt, or nil.
// Polygons with fewer than 3 vertices are skipped.
func Containing(pt geo.Point, set []*Polygon) *Polygon {
	for _, p := range set {
		if p.Evaluable() && p.Contains(pt) {
			return p
		}
	}
	return nil
}

// FilterKind returns the polygons of the given kind.
func FilterKind(set []*Polygon, kind Kind) []*Polygon {
	var out []*Polygon
	for _, p := range set {
		if p != nil && p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// Crossed reports whether start and end lie in different known polygons.
// An unknown side (nil) never counts as a crossing.
func Crossed(start, end *Polygon) bool {
	return start != nil && end != nil && start.ID != end.ID
}
