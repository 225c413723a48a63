package journey

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/Kilat-Mobility/service-journey/internal/domain/geo"
)

// ErrMalformedGeometry is returned when stored route geometry cannot be decoded.
var ErrMalformedGeometry = errors.New("malformed route geometry")

// Route is an ordered, immutable list of waypoints.
type Route struct {
	points []geo.Point
}

// NewRoute copies points into a Route.
func NewRoute(points []geo.Point) Route {
	cp := make([]geo.Point, len(points))
	copy(cp, points)
	return Route{points: cp}
}

// Len returns the number of waypoints.
func (r Route) Len() int { return len(r.points) }

// IsEmpty reports whether the route has no waypoints.
func (r Route) IsEmpty() bool { return len(r.points) == 0 }

// Points returns a copy of the waypoints.
func (r Route) Points() []geo.Point {
	cp := make([]geo.Point, len(r.points))
	copy(cp, r.points)
	return cp
}

// LengthKm is the haversine length of the polyline.
func (r Route) LengthKm() float64 {
	var total float64
	for i := 1; i < len(r.points); i++ {
		total += geo.HaversineKm(r.points[i-1], r.points[i])
	}
	return total
}

// Interpolate maps progress p onto the leg. p ≤ 0 yields start and p ≥ 1 yields end
// exactly, so rounding inside the polyline never leaves a finished leg short of its
// destination. An empty route degrades to the straight line from start to end.
func Interpolate(r Route, p float64, start, end geo.Point) geo.Point {
	if math.IsNaN(p) || p <= 0 {
		return start
	}
	if p >= 1 {
		return end
	}
	if len(r.points) == 0 {
		return geo.Lerp(start, end, p)
	}
	return r.At(p)
}

// At returns the point at progress p along the waypoints, piecewise-linear by
// waypoint index rather than arc length: unevenly spaced waypoints make apparent
// speed uneven. At(0) and At(1) are the first and last waypoints exactly.
// The route must not be empty.
func (r Route) At(p float64) geo.Point {
	n := len(r.points)
	if n == 1 || math.IsNaN(p) || p <= 0 {
		return r.points[0]
	}
	if p >= 1 {
		return r.points[n-1]
	}

	target := p * float64(n-1)
	i := int(math.Floor(target))
	if i < 0 {
		i = 0
	}
	if i > n-2 {
		i = n - 2
	}
	local := target - float64(i)
	return geo.Lerp(r.points[i], r.points[i+1], local)
}

type lineString struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
	Geometry    *lineString     `json:"geometry"`
}

// ParseRouteGeometry decodes stored geometry. It accepts a GeoJSON LineString, a
// Feature wrapping one, or a bare [[lng, lat], ...] array. Empty input means "no route"
// and returns an empty Route with no error.
func ParseRouteGeometry(raw []byte) (Route, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Route{}, nil
	}

	coords := trimmed
	if trimmed[0] == '{' {
		var ls lineString
		if err := json.Unmarshal(trimmed, &ls); err != nil {
			return Route{}, fmt.Errorf("%w: %v", ErrMalformedGeometry, err)
		}
		if ls.Type == "Feature" {
			if ls.Geometry == nil {
				return Route{}, fmt.Errorf("%w: feature without geometry", ErrMalformedGeometry)
			}
			ls = *ls.Geometry
		}
		if ls.Type != "LineString" {
			return Route{}, fmt.Errorf("%w: unsupported geometry type %q", ErrMalformedGeometry, ls.Type)
		}
		coords = ls.Coordinates
	}

	var positions [][]float64
	if err := json.Unmarshal(coords, &positions); err != nil {
		return Route{}, fmt.Errorf("%w: %v", ErrMalformedGeometry, err)
	}
	if len(positions) == 0 {
		return Route{}, fmt.Errorf("%w: no coordinates", ErrMalformedGeometry)
	}

	points := make([]geo.Point, 0, len(positions))
	for i, pos := range positions {
		if len(pos) < 2 {
			return Route{}, fmt.Errorf("%w: position %d has %d values", ErrMalformedGeometry, i, len(pos))
		}
		pt := geo.FromLngLat([2]float64{pos[0], pos[1]})
		if !pt.IsValid() {
			return Route{}, fmt.Errorf("%w: position %d out of range", ErrMalformedGeometry, i)
		}
		points = append(points, pt)
	}
	return Route{points: points}, nil
}

// MarshalGeometry encodes the route as a GeoJSON LineString, or nil when empty.
func (r Route) MarshalGeometry() ([]byte, error) {
	if len(r.points) == 0 {
		return nil, nil
	}
	coords := make([][2]float64, len(r.points))
	for i, p := range r.points {
		coords[i] = [2]float64{p.Lng, p.Lat}
	}
	return json.Marshal(struct {
		Type        string       `json:"type"`
		Coordinates [][2]float64 `json:"coordinates"`
	}{Type: "LineString", Coordinates: coords})
}
