package journey

import "fmt"

// Kind distinguishes the three journey flavours that share the simulation machinery.
type Kind string

const (
	KindRide      Kind = "ride"       // autonomous vehicle ride
	KindTrip      Kind = "trip"       // human driver trip
	KindTeleDrive Kind = "tele_drive" // remote relocation of a carshare vehicle to the customer
)

// IsValid returns true if the kind is recognized.
func (k Kind) IsValid() bool {
	switch k {
	case KindRide, KindTrip, KindTeleDrive:
		return true
	}
	return false
}

// HasTripLeg reports whether passengers board and a second leg follows the approach.
func (k Kind) HasTripLeg() bool {
	return k == KindRide || k == KindTrip
}

// LegKind names one continuous simulated movement.
type LegKind string

const (
	LegPickupApproach    LegKind = "pickup_approach"
	LegInTrip            LegKind = "in_trip"
	LegTeleDriveApproach LegKind = "tele_drive_approach"
)

// Phase is the internal sub-state of an active journey.
type Phase string

const (
	PhasePickupApproach  Phase = "pickup_approach"
	PhaseArrivedAtPickup Phase = "arrived_at_pickup"
	PhaseBoarding        Phase = "boarding"
	PhaseInTrip          Phase = "in_trip"
	PhaseCompleted       Phase = "completed"
	PhaseCancelled       Phase = "cancelled"
)

var validPhaseTransitions = map[Phase][]Phase{
	PhasePickupApproach:  {PhaseArrivedAtPickup, PhaseCompleted, PhaseCancelled},
	PhaseArrivedAtPickup: {PhaseBoarding, PhaseCancelled},
	PhaseBoarding:        {PhaseInTrip, PhaseCancelled},
	PhaseInTrip:          {PhaseCompleted, PhaseCancelled},
	PhaseCompleted:       {},
	PhaseCancelled:       {},
}

// IsValid returns true if the phase is recognized.
func (p Phase) IsValid() bool {
	_, ok := validPhaseTransitions[p]
	return ok
}

// CanTransitionTo returns true if the phase may move to target.
func (p Phase) CanTransitionTo(target Phase) bool {
	for _, t := range validPhaseTransitions[p] {
		if t == target {
			return true
		}
	}
	return false
}

// ParsePhase converts a stored string into a Phase.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid journey phase: %s", s)
	}
	return p, nil
}

// Status is the externally visible state of a journey.
type Status string

const (
	StatusRequested      Status = "requested"
	StatusDispatched     Status = "dispatched"
	StatusVehicleArrived Status = "vehicle_arrived"
	StatusInProgress     Status = "in_progress"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
)

// validTransitions defines the status state machine. Tele-drives complete straight
// from dispatched because the vehicle's arrival is the delivery.
var validTransitions = map[Status][]Status{
	StatusRequested:      {StatusDispatched, StatusVehicleArrived, StatusCompleted, StatusCancelled},
	StatusDispatched:     {StatusVehicleArrived, StatusCompleted, StatusCancelled},
	StatusVehicleArrived: {StatusInProgress, StatusCancelled},
	StatusInProgress:     {StatusCompleted, StatusCancelled},
	StatusCompleted:      {},
	StatusCancelled:      {},
}

// IsValid returns true if the status is recognized.
func (s Status) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s Status) IsTerminal() bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return true
	}
	return len(allowed) == 0
}

// CanBeCancelled returns true if the journey can be cancelled from this status.
func (s Status) CanBeCancelled() bool {
	return s.CanTransitionTo(StatusCancelled)
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// ParseStatus converts a string to a Status, returning an error if invalid.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid journey status: %s", s)
	}
	return status, nil
}
