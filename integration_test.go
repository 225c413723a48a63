//go:build integration

package main_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kilat-Mobility/service-journey/internal/application"
	"github.com/Kilat-Mobility/service-journey/internal/domain/geo"
	"github.com/Kilat-Mobility/service-journey/internal/domain/journey"
	"github.com/Kilat-Mobility/service-journey/internal/proto/events"
	"github.com/Kilat-Mobility/service-journey/internal/repository"
)

// TestVehicleAssigned_RideRunsToCompletion verifies that a dispatcher assignment
// published to dispatch.events starts a journey that, observed through the
// position service, runs to completion with its fare captured once.
func TestVehicleAssigned_RideRunsToCompletion(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupJourneyStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()
	defer func() { _ = stack.Consumer.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = stack.Consumer.Start(ctx) }()
	time.Sleep(3 * time.Second) // Wait for consumer group join.

	rideID := uuid.New()
	riderID := uuid.New()
	evt := events.VehicleAssignedEvent{
		RideID:  rideID,
		Kind:    string(journey.KindRide),
		RiderID: riderID,
		Approach: events.LegPayload{
			StartLat: 41.3900, StartLng: 2.1600, EndLat: 41.3851, EndLng: 2.1734, TotalDurationSec: 1,
		},
		Trip: &events.LegPayload{
			StartLat: 41.3851, StartLng: 2.1734, EndLat: 41.4036, EndLng: 2.1744, TotalDurationSec: 10,
			Route: []byte(`{"type":"LineString","coordinates":[[2.1734,41.3851],[2.1800,41.3950],[2.1744,41.4036]]}`),
		},
		SpeedMultiplier: 50,
		OccurredAt:      time.Now().UTC(),
	}
	publishTestEvent(t, infra.KafkaBrokers, events.TopicDispatchEvents,
		"service-dispatch", events.DispatchVehicleAssigned, evt)

	model := waitForJourneyRow(t, infra.DB, rideID, 15*time.Second)
	assert.Equal(t, riderID, model.RiderID)
	assert.Equal(t, string(journey.StatusDispatched), model.Status)

	// Boarding takes 3 simulated seconds per unit of speed, so about 3 s of wall time.
	var snap *journey.Snapshot
	require.Eventually(t, func() bool {
		var err error
		snap, err = stack.Positions.GetPosition(ctx, rideID)
		return err == nil && snap.Status == journey.StatusCompleted
	}, 20*time.Second, 200*time.Millisecond, "journey did not complete")
	assert.Equal(t, 41.4036, snap.Lat)
	assert.Equal(t, 100.0, snap.ProgressPercent)

	var stored repository.JourneyModel
	require.NoError(t, infra.DB.Where("id = ?", rideID).First(&stored).Error)
	assert.Equal(t, string(journey.PhaseCompleted), stored.Phase)
	require.NotNil(t, stored.FareCents)

	var legs int64
	require.NoError(t, infra.DB.Model(&repository.JourneyLegModel{}).Where("journey_id = ?", rideID).Count(&legs).Error)
	assert.Equal(t, int64(2), legs)

	// Further observations leave the fare untouched.
	_, err := stack.Positions.GetPosition(ctx, rideID)
	require.NoError(t, err)
	var again repository.JourneyModel
	require.NoError(t, infra.DB.Where("id = ?", rideID).First(&again).Error)
	assert.Equal(t, *stored.FareCents, *again.FareCents)
	assert.Equal(t, stored.Version, again.Version)

	ce := consumeOneEvent(t, infra.KafkaBrokers, events.TopicJourneyEvents,
		events.JourneyCompleted, 15*time.Second)

	var completed events.JourneyCompletedEvent
	require.NoError(t, ce.ParseData(&completed))
	assert.Equal(t, rideID, completed.JourneyID)
	assert.Equal(t, riderID, completed.RiderID)
	assert.Equal(t, *stored.FareCents, completed.FareCents)
	assert.Equal(t, "EUR", completed.Currency)
}

// TestRental_ActivateAndFinalize runs a carshare rental against Postgres and
// checks the out-of-zone breakdown and the rental.closed event.
func TestRental_ActivateAndFinalize(t *testing.T) {
	infra := setupContainers(t)
	defer infra.Cleanup()

	stack := setupJourneyStack(t, infra.DB, infra.KafkaBrokers)
	defer stack.CleanupProducer()
	ctx := context.Background()

	vehicle, err := stack.Vehicles.CreateVehicle(ctx, application.CreateVehicleRequest{
		Plate:           "1234-KLM",
		Model:           "Cupra Born",
		PricingMode:     "per_minute",
		UnitPriceCents:  20,
		PricePerKmCents: 30,
		OdometerKm:      1000,
		FuelPct:         80,
		Location:        geo.NewPoint(41.3900, 2.1600),
	})
	require.NoError(t, err)

	userID := uuid.New()
	rt, err := stack.Rentals.ActivateRental(ctx, userID, application.ActivateRentalRequest{VehicleID: vehicle.ID})
	require.NoError(t, err)

	_, err = stack.Rentals.ActivateRental(ctx, uuid.New(), application.ActivateRentalRequest{VehicleID: vehicle.ID})
	assert.Error(t, err, "a rented vehicle cannot be rented twice")

	closed, err := stack.Rentals.FinalizeRental(ctx, rt.ID, userID, application.FinalizeRentalRequest{
		OdometerKm: 1012,
		FuelPct:    75,
		Location:   geo.NewPoint(41.4036, 2.1744),
	})
	require.NoError(t, err)
	require.NotNil(t, closed.Breakdown)
	assert.Equal(t, int64(360), closed.Breakdown.DistanceCost)
	assert.Equal(t, int64(2500), closed.Breakdown.OutOfZoneFee)

	again, err := stack.Rentals.FinalizeRental(ctx, rt.ID, userID, application.FinalizeRentalRequest{
		OdometerKm: 2000, FuelPct: 10, Location: geo.NewPoint(41.4036, 2.1744),
	})
	require.NoError(t, err)
	assert.Equal(t, closed.Breakdown.Total, again.Breakdown.Total)

	v, err := stack.Vehicles.GetVehicle(ctx, vehicle.ID)
	require.NoError(t, err)
	assert.Equal(t, "available", v.Status)
	assert.Equal(t, 1012.0, v.OdometerKm)

	ce := consumeOneEvent(t, infra.KafkaBrokers, events.TopicRentalEvents, events.RentalClosed, 15*time.Second)
	var evt events.RentalClosedEvent
	require.NoError(t, ce.ParseData(&evt))
	assert.Equal(t, rt.ID, evt.RentalID)
	assert.Equal(t, closed.Breakdown.Total, evt.TotalCents)
}
