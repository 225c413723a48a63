// Package events defines the topics, event types and payloads exchanged on the bus.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Topics.
const (
	TopicJourneyEvents  = "journey.events"
	TopicRentalEvents   = "rental.events"
	TopicDispatchEvents = "dispatch.events"
)

// Event types published by this service.
const (
	JourneyDispatched   = "journey.dispatched"
	JourneyPhaseChanged = "journey.phase_changed"
	JourneyCompleted    = "journey.completed"
	JourneyCancelled    = "journey.cancelled"

	RentalActivated = "rental.activated"
	RentalClosed    = "rental.closed"
)

// Event types consumed by this service.
const (
	DispatchVehicleAssigned = "dispatch.vehicle_assigned"
	DispatchRideCancelled   = "dispatch.ride_cancelled"
)

// JourneyDispatchedEvent is published when a journey starts its first leg.
type JourneyDispatchedEvent struct {
	JourneyID  uuid.UUID  `json:"journey_id"`
	Kind       string     `json:"kind"`
	RiderID    uuid.UUID  `json:"rider_id"`
	VehicleID  *uuid.UUID `json:"vehicle_id,omitempty"`
	PickupLat  float64    `json:"pickup_lat"`
	PickupLng  float64    `json:"pickup_lng"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// JourneyPhaseChangedEvent is published for every applied phase transition.
type JourneyPhaseChangedEvent struct {
	JourneyID  uuid.UUID `json:"journey_id"`
	FromPhase  string    `json:"from_phase"`
	ToPhase    string    `json:"to_phase"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// JourneyCompletedEvent carries the captured fare.
type JourneyCompletedEvent struct {
	JourneyID  uuid.UUID  `json:"journey_id"`
	Kind       string     `json:"kind"`
	RiderID    uuid.UUID  `json:"rider_id"`
	VehicleID  *uuid.UUID `json:"vehicle_id,omitempty"`
	FareCents  int64      `json:"fare_cents"`
	Currency   string     `json:"currency"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// JourneyCancelledEvent is published when a journey is cancelled.
type JourneyCancelledEvent struct {
	JourneyID  uuid.UUID `json:"journey_id"`
	RiderID    uuid.UUID `json:"rider_id"`
	Reason     string    `json:"reason"`
	Phase      string    `json:"phase"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RentalActivatedEvent is published when a carshare rental starts.
type RentalActivatedEvent struct {
	RentalID   uuid.UUID `json:"rental_id"`
	UserID     uuid.UUID `json:"user_id"`
	VehicleID  uuid.UUID `json:"vehicle_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RentalClosedEvent carries the final charge of a rental.
type RentalClosedEvent struct {
	RentalID   uuid.UUID `json:"rental_id"`
	UserID     uuid.UUID `json:"user_id"`
	VehicleID  uuid.UUID `json:"vehicle_id"`
	TotalCents int64     `json:"total_cents"`
	Currency   string    `json:"currency"`
	OccurredAt time.Time `json:"occurred_at"`
}

// LegPayload is a routed leg as sent by the dispatcher. Route is a GeoJSON
// LineString in [lng, lat] order and may be omitted.
type LegPayload struct {
	StartLat         float64         `json:"start_lat"`
	StartLng         float64         `json:"start_lng"`
	EndLat           float64         `json:"end_lat"`
	EndLng           float64         `json:"end_lng"`
	TotalDurationSec int             `json:"total_duration_sec"`
	Route            json.RawMessage `json:"route,omitempty"`
}

// VehicleAssignedEvent is the dispatcher's instruction to start a journey.
type VehicleAssignedEvent struct {
	RideID          uuid.UUID   `json:"ride_id"`
	Kind            string      `json:"kind"`
	RiderID         uuid.UUID   `json:"rider_id"`
	VehicleID       *uuid.UUID  `json:"vehicle_id,omitempty"`
	Approach        LegPayload  `json:"approach"`
	Trip            *LegPayload `json:"trip,omitempty"`
	SpeedMultiplier float64     `json:"speed_multiplier"`
	OccurredAt      time.Time   `json:"occurred_at"`
}

// RideCancelledEvent is the dispatcher's instruction to cancel a journey.
type RideCancelledEvent struct {
	JourneyID  uuid.UUID `json:"journey_id"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}
