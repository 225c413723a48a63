// Package geo holds the coordinate type and great-circle helpers shared by the
// journey, geofence and rental domains.
package geo

import "math"

const earthRadiusMeters = 6371000.0

// Point is a WGS84 coordinate. Internally everything is (lat, lng); GeoJSON's
// [lng, lat] order is converted at the parsing boundary.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NewPoint builds a Point from latitude and longitude.
func NewPoint(lat, lng float64) Point {
	return Point{Lat: lat, Lng: lng}
}

// FromLngLat converts a GeoJSON position.
func FromLngLat(pos [2]float64) Point {
	return Point{Lat: pos[1], Lng: pos[0]}
}

// IsValid reports whether the point lies within WGS84 bounds.
func (p Point) IsValid() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lng) &&
		p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Lerp linearly interpolates from a to b by fraction t.
func Lerp(a, b Point, t float64) Point {
	return Point{
		Lat: a.Lat + (b.Lat-a.Lat)*t,
		Lng: a.Lng + (b.Lng-a.Lng)*t,
	}
}

// HaversineMeters returns the great-circle distance between a and b in meters.
func HaversineMeters(a, b Point) float64 {
	phi1 := degreesToRadians(a.Lat)
	phi2 := degreesToRadians(b.Lat)
	dPhi := degreesToRadians(b.Lat - a.Lat)
	dLambda := degreesToRadians(b.Lng - a.Lng)

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// HaversineKm returns the great-circle distance in kilometers.
func HaversineKm(a, b Point) float64 {
	return HaversineMeters(a, b) / 1000
}

// Bearing returns the initial bearing from a to b in degrees [0, 360).
func Bearing(a, b Point) float64 {
	phi1 := degreesToRadians(a.Lat)
	phi2 := degreesToRadians(b.Lat)
	dLambda := degreesToRadians(b.Lng - a.Lng)

	x := math.Sin(dLambda) * math.Cos(phi2)
	y := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)

	return math.Mod(math.Atan2(x, y)*180/math.Pi+360, 360)
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
