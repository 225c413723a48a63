package journey

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kilat-Mobility/service-journey/internal/common/domain"
	"github.com/Kilat-Mobility/service-journey/internal/domain/geo"
)

var (
	pickup  = geo.NewPoint(41.3851, 2.1734)
	depot   = geo.NewPoint(41.3900, 2.1600)
	dropoff = geo.NewPoint(41.4036, 2.1744)
)

func approachPlan() LegPlan {
	return LegPlan{Start: depot, End: pickup, TotalDurationSec: 60}
}

func tripPlan() *LegPlan {
	return &LegPlan{Start: pickup, End: dropoff, TotalDurationSec: 120}
}

func newRide(t *testing.T, speed float64) *Journey {
	t.Helper()
	vehicleID := uuid.New()
	j, err := NewJourney(uuid.Nil, KindRide, uuid.New(), &vehicleID, approachPlan(), tripPlan(), speed, "EUR", t0)
	require.NoError(t, err)
	return j
}

func phases(ts []Transition) []Phase {
	out := make([]Phase, len(ts))
	for i, tr := range ts {
		out[i] = tr.ToPhase
	}
	return out
}

func TestNewJourney_Validation(t *testing.T) {
	rider := uuid.New()
	tests := []struct {
		name     string
		kind     Kind
		rider    uuid.UUID
		approach LegPlan
		trip     *LegPlan
	}{
		{"invalid kind", Kind("bus"), rider, approachPlan(), tripPlan()},
		{"missing rider", KindRide, uuid.Nil, approachPlan(), tripPlan()},
		{"ride without trip", KindRide, rider, approachPlan(), nil},
		{"tele-drive with trip", KindTeleDrive, rider, approachPlan(), tripPlan()},
		{"invalid coordinates", KindTrip, rider, LegPlan{Start: geo.NewPoint(95, 0), End: pickup}, tripPlan()},
		{"negative duration", KindTrip, rider, LegPlan{Start: depot, End: pickup, TotalDurationSec: -1}, tripPlan()},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewJourney(uuid.Nil, tc.kind, tc.rider, nil, tc.approach, tc.trip, 1, "EUR", t0)
			require.Error(t, err)
			var vErr *domain.ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}
}

func TestNewJourney_Defaults(t *testing.T) {
	id := uuid.New()
	j, err := NewJourney(id, KindTrip, uuid.New(), nil, approachPlan(), tripPlan(), 500, "EUR", t0)
	require.NoError(t, err)

	assert.Equal(t, id, j.ID())
	assert.Equal(t, StatusDispatched, j.Status())
	assert.Equal(t, PhasePickupApproach, j.Phase())
	assert.Equal(t, LegPickupApproach, j.Leg().Kind)
	assert.Equal(t, MaxSpeedMultiplier, j.Leg().Checkpoint.SpeedMultiplier)
	assert.Equal(t, int64(1), j.Version())
	assert.Nil(t, j.FareCents())

	generated := newRide(t, 1)
	assert.NotEqual(t, uuid.Nil, generated.ID())
}

func TestAdvance_RideLifecycle(t *testing.T) {
	j := newRide(t, 1)
	rules := DefaultRules()

	assert.Empty(t, j.Advance(t0.Add(30*time.Second), rules))
	assert.Equal(t, StatusDispatched, j.Status())

	ts := j.Advance(t0.Add(60*time.Second), rules)
	assert.Equal(t, []Phase{PhaseArrivedAtPickup}, phases(ts))
	assert.Equal(t, StatusVehicleArrived, j.Status())
	require.NotNil(t, j.ArrivedAt())

	ts = j.Advance(t0.Add(61*time.Second), rules)
	assert.Equal(t, []Phase{PhaseBoarding}, phases(ts))
	assert.Equal(t, StatusVehicleArrived, j.Status())

	// Boarding lasts three simulated seconds past the end of the approach.
	assert.Empty(t, j.Advance(t0.Add(62*time.Second), rules))

	ts = j.Advance(t0.Add(63*time.Second), rules)
	assert.Equal(t, []Phase{PhaseInTrip}, phases(ts))
	assert.Equal(t, StatusInProgress, j.Status())
	assert.Equal(t, LegInTrip, j.Leg().Kind)
	assert.Equal(t, pickup, j.Leg().Start)
	require.NotNil(t, j.TripStartedAt())

	legs := j.TakeArchivedLegs()
	require.Len(t, legs, 1)
	assert.Equal(t, LegPickupApproach, legs[0].Kind)
	assert.InDelta(t, 63, legs[0].Checkpoint.AccumulatedSeconds, 1e-9)

	ts = j.Advance(t0.Add(183*time.Second), rules)
	assert.Equal(t, []Phase{PhaseCompleted}, phases(ts))
	assert.Equal(t, StatusCompleted, j.Status())
	assert.True(t, j.NeedsFinalization())
	require.NotNil(t, j.CompletedAt())

	assert.Len(t, j.TakeTransitions(), 4)
	assert.Empty(t, j.TakeTransitions())
}

func TestAdvance_CascadesInOneObservation(t *testing.T) {
	j := newRide(t, 1)

	ts := j.Advance(t0.Add(1000*time.Second), DefaultRules())

	// The trip leg starts when the boarding phase is observed to be over.
	assert.Equal(t, []Phase{PhaseArrivedAtPickup, PhaseBoarding, PhaseInTrip}, phases(ts))
	assert.Equal(t, StatusInProgress, j.Status())
	assert.Equal(t, t0.Add(1000*time.Second), j.Leg().StartedAt)
}

func TestAdvance_IsIdempotent(t *testing.T) {
	j := newRide(t, 1)
	now := t0.Add(61 * time.Second)

	first := j.Advance(now, DefaultRules())
	require.NotEmpty(t, first)
	assert.Empty(t, j.Advance(now, DefaultRules()))
}

func TestAdvance_TeleDriveCompletesOnArrival(t *testing.T) {
	vehicleID := uuid.New()
	j, err := NewJourney(uuid.Nil, KindTeleDrive, uuid.New(), &vehicleID, approachPlan(), nil, 1, "EUR", t0)
	require.NoError(t, err)
	assert.Equal(t, LegTeleDriveApproach, j.Leg().Kind)

	ts := j.Advance(t0.Add(60*time.Second), DefaultRules())
	require.Len(t, ts, 1)
	assert.Equal(t, StatusDispatched, ts[0].FromStatus)
	assert.Equal(t, StatusCompleted, ts[0].ToStatus)
	assert.True(t, j.NeedsFinalization())

	snap := j.Snapshot(t0.Add(time.Hour))
	assert.Equal(t, pickup.Lat, snap.Lat)
	assert.Equal(t, pickup.Lng, snap.Lng)
	assert.Equal(t, 100.0, snap.ProgressPercent)
}

func TestSetSpeed_RebasesClock(t *testing.T) {
	j := newRide(t, 1)

	got, err := j.SetSpeed(t0.Add(30*time.Second), 10)
	require.NoError(t, err)
	assert.Equal(t, 10.0, got)

	// 30s at 1x plus 3s at 10x reaches the 60s approach.
	ts := j.Advance(t0.Add(33*time.Second), DefaultRules())
	assert.Equal(t, []Phase{PhaseArrivedAtPickup}, phases(ts))
}

func TestSetSpeed_ClampsAndRejectsTerminal(t *testing.T) {
	j := newRide(t, 1)

	got, err := j.SetSpeed(t0, 0)
	require.NoError(t, err)
	assert.Equal(t, MinSpeedMultiplier, got)

	require.NoError(t, j.Cancel("rider changed plans", t0.Add(time.Second)))
	_, err = j.SetSpeed(t0.Add(2*time.Second), 5)
	var stateErr *domain.InvalidStateError
	assert.ErrorAs(t, err, &stateErr)
}

func TestCancel_FreezesSnapshot(t *testing.T) {
	j := newRide(t, 1)
	cancelAt := t0.Add(30 * time.Second)

	require.NoError(t, j.Cancel("no show", cancelAt))
	assert.Equal(t, StatusCancelled, j.Status())
	assert.Equal(t, PhaseCancelled, j.Phase())
	assert.Equal(t, "no show", j.CancelReason())
	assert.Len(t, j.TakeArchivedLegs(), 1)

	frozen := j.Snapshot(cancelAt)
	later := j.Snapshot(cancelAt.Add(10 * time.Minute))
	assert.Equal(t, frozen.Lat, later.Lat)
	assert.Equal(t, frozen.Lng, later.Lng)
	assert.Equal(t, frozen.ProgressPercent, later.ProgressPercent)
	assert.InDelta(t, 50, later.ProgressPercent, 1e-9)

	assert.Empty(t, j.Advance(cancelAt.Add(time.Hour), DefaultRules()))

	err := j.Cancel("again", cancelAt.Add(time.Minute))
	var stateErr *domain.InvalidStateError
	assert.ErrorAs(t, err, &stateErr)
}

func TestCaptureFare_Once(t *testing.T) {
	j := newRide(t, 1)
	assert.Error(t, j.CaptureFare(100))

	j.Advance(t0.Add(63*time.Second), DefaultRules())
	j.Advance(t0.Add(183*time.Second), DefaultRules())
	require.True(t, j.NeedsFinalization())

	require.NoError(t, j.CaptureFare(1234))
	assert.False(t, j.NeedsFinalization())
	require.NotNil(t, j.FareCents())
	assert.Equal(t, int64(1234), *j.FareCents())

	err := j.CaptureFare(999)
	var conflict *domain.ConflictError
	assert.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(1234), *j.FareCents())
}

func TestSnapshot_InFlight(t *testing.T) {
	j := newRide(t, 2)
	snap := j.Snapshot(t0.Add(15 * time.Second))

	assert.Equal(t, j.ID(), snap.JourneyID)
	assert.Equal(t, LegPickupApproach, snap.LegKind)
	assert.InDelta(t, 50, snap.ProgressPercent, 1e-9)
	assert.InDelta(t, 15, snap.ETASeconds, 1e-9)
	assert.InDelta(t, 30, snap.SimulatedSeconds, 1e-9)
	assert.InDelta(t, (depot.Lat+pickup.Lat)/2, snap.Lat, 1e-9)
}

func TestStatus_Transitions(t *testing.T) {
	assert.True(t, StatusDispatched.CanTransitionTo(StatusCompleted))
	assert.False(t, StatusVehicleArrived.CanTransitionTo(StatusCompleted))
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, Status("bogus").IsTerminal())
	assert.False(t, StatusCompleted.CanBeCancelled())
	assert.True(t, StatusInProgress.CanBeCancelled())

	assert.True(t, PhaseBoarding.CanTransitionTo(PhaseInTrip))
	assert.False(t, PhaseInTrip.CanTransitionTo(PhaseBoarding))
	_, err := ParsePhase("teleporting")
	assert.Error(t, err)
}
