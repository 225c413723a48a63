package journey

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kilat-Mobility/service-journey/internal/domain/geo"
)

func TestStandardFareStrategy_Calculate(t *testing.T) {
	s := NewStandardFareStrategy(nil)

	tests := []struct {
		name   string
		params FareParams
		want   int64
	}{
		{"ride", FareParams{Kind: KindRide, DistanceKm: 10, DurationSec: 600}, 200 + 900 + 10*15},
		{"ride minimum", FareParams{Kind: KindRide}, 500},
		{"trip partial minute rounds up", FareParams{Kind: KindTrip, DistanceKm: 5, DurationSec: 61}, 250 + 550 + 2*20},
		{"tele-drive flat", FareParams{Kind: KindTeleDrive, DistanceKm: 3, DurationSec: 900}, 400},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.Calculate(tc.params)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestStandardFareStrategy_Errors(t *testing.T) {
	s := NewStandardFareStrategy(map[Kind]FareTable{KindRide: {BaseCents: 100}})

	_, err := s.Calculate(FareParams{Kind: KindTrip})
	assert.Error(t, err)
	_, err = s.Calculate(FareParams{Kind: KindRide, DistanceKm: -1})
	assert.Error(t, err)
	_, err = s.Calculate(FareParams{Kind: KindRide, DurationSec: -1})
	assert.Error(t, err)
}

func TestFareParamsFor_UsesRouteLengthOrStraightLine(t *testing.T) {
	straight := newRide(t, 1)
	params := FareParamsFor(straight)
	assert.Equal(t, KindRide, params.Kind)
	assert.Equal(t, 60, params.DurationSec)
	assert.InDelta(t, geo.HaversineKm(depot, pickup), params.DistanceKm, 1e-9)

	route := NewRoute([]geo.Point{depot, geo.NewPoint(41.395, 2.165), pickup})
	plan := LegPlan{Start: depot, End: pickup, Route: route, TotalDurationSec: 90}
	routed, err := NewJourney(uuid.Nil, KindTrip, uuid.New(), nil, plan, tripPlan(), 1, "EUR", t0)
	require.NoError(t, err)

	params = FareParamsFor(routed)
	assert.InDelta(t, route.LengthKm(), params.DistanceKm, 1e-9)
	assert.Equal(t, 90, params.DurationSec)
}
