package geofence

import (
	"github.com/google/uuid"

	"github.com/Kilat-Mobility/service-journey/internal/domain/geo"
)

// RentalSignals are the geofence facts billing needs about a rental's start and
// end points. An id is nil when the point is in no polygon of that kind.
type RentalSignals struct {
	ParkedInZone      bool       `json:"parked_in_zone"`
	StartGeofenceID   *uuid.UUID `json:"start_geofence_id,omitempty"`
	EndGeofenceID     *uuid.UUID `json:"end_geofence_id,omitempty"`
	StartCityID       *uuid.UUID `json:"start_city_id,omitempty"`
	EndCityID         *uuid.UUID `json:"end_city_id,omitempty"`
	StartZoneID       *uuid.UUID `json:"start_zone_id,omitempty"`
	EndZoneID         *uuid.UUID `json:"end_zone_id,omitempty"`
	EndZoneBonusCents int64      `json:"end_zone_bonus_cents"`
}

// Signals classifies start and end against the polygon set by kind.
func Signals(start, end geo.Point, polygons []*Polygon) RentalSignals {
	boundaries := FilterKind(polygons, KindBoundary)
	cities := FilterKind(polygons, KindCity)
	zones := FilterKind(polygons, KindZone)

	endZone := Containing(end, zones)
	sig := RentalSignals{
		ParkedInZone:    endZone != nil,
		StartGeofenceID: idOf(Containing(start, boundaries)),
		EndGeofenceID:   idOf(Containing(end, boundaries)),
		StartCityID:     idOf(Containing(start, cities)),
		EndCityID:       idOf(Containing(end, cities)),
		StartZoneID:     idOf(Containing(start, zones)),
		EndZoneID:       idOf(endZone),
	}
	if endZone != nil {
		sig.EndZoneBonusCents = endZone.BonusCents
	}
	return sig
}

func idOf(p *Polygon) *uuid.UUID {
	if p == nil {
		return nil
	}
	id := p.ID
	return &id
}
