package journey

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Mobility/service-journey/internal/common/domain"
	"github.com/Kilat-Mobility/service-journey/internal/domain/geo"
)

// DefaultBoardingDelaySec is the boarding time, in simulated seconds per unit of
// effective speed, between arrival at the pickup point and the start of the trip leg.
const DefaultBoardingDelaySec = 3.0

// maxTransitionsPerObservation bounds the cascade evaluated in one Advance call.
const maxTransitionsPerObservation = 8

// Rules parameterizes the phase state machine.
type Rules struct {
	BoardingDelaySec float64
}

// DefaultRules returns the production rule set.
func DefaultRules() Rules {
	return Rules{BoardingDelaySec: DefaultBoardingDelaySec}
}

// Transition records one applied phase/status change.
type Transition struct {
	FromPhase  Phase     `json:"from_phase"`
	ToPhase    Phase     `json:"to_phase"`
	FromStatus Status    `json:"from_status"`
	ToStatus   Status    `json:"to_status"`
	At         time.Time `json:"at"`
}

// Journey is the aggregate root for a ride, driver trip or tele-drive. It owns the
// active leg and its checkpoint.
type Journey struct {
	id        uuid.UUID
	kind      Kind
	riderID   uuid.UUID
	vehicleID *uuid.UUID
	status    Status
	phase     Phase
	leg       Leg
	tripPlan  *LegPlan

	fareCents *int64
	currency  string

	cancelReason string
	arrivedAt    *time.Time
	tripStartAt  *time.Time
	completedAt  *time.Time
	cancelledAt  *time.Time

	version   int64
	createdAt time.Time
	updatedAt time.Time

	archived           []Leg
	pendingFinalize    bool
	pendingTransitions []Transition
}

// NewJourney creates a dispatched journey whose first leg starts now. A nil id is
// replaced by a fresh one. Rides and driver trips need a trip plan; tele-drives
// must not have one.
func NewJourney(
	id uuid.UUID,
	kind Kind,
	riderID uuid.UUID,
	vehicleID *uuid.UUID,
	approach LegPlan,
	tripPlan *LegPlan,
	speedMultiplier float64,
	currency string,
	now time.Time,
) (*Journey, error) {
	if !kind.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid journey kind: %s", kind))
	}
	if riderID == uuid.Nil {
		return nil, domain.NewValidationError("rider ID is required")
	}
	if err := validatePlan("approach", approach); err != nil {
		return nil, err
	}
	legKind := LegPickupApproach
	if kind.HasTripLeg() {
		if tripPlan == nil {
			return nil, domain.NewValidationError("trip leg is required for " + string(kind))
		}
		if err := validatePlan("trip", *tripPlan); err != nil {
			return nil, err
		}
	} else {
		if tripPlan != nil {
			return nil, domain.NewValidationError("tele-drive journeys have no trip leg")
		}
		legKind = LegTeleDriveApproach
	}

	if id == uuid.Nil {
		id = uuid.New()
	}
	now = now.UTC()
	return &Journey{
		id:        id,
		kind:      kind,
		riderID:   riderID,
		vehicleID: vehicleID,
		status:    StatusDispatched,
		phase:     PhasePickupApproach,
		leg:       StartLeg(legKind, approach, now, speedMultiplier),
		tripPlan:  tripPlan,
		currency:  currency,
		version:   1,
		createdAt: now,
		updatedAt: now,
	}, nil
}

func validatePlan(name string, p LegPlan) error {
	if !p.Start.IsValid() || !p.End.IsValid() {
		return domain.NewValidationError(name + " leg has invalid coordinates")
	}
	if p.TotalDurationSec < 0 {
		return domain.NewValidationError(name + " leg duration cannot be negative")
	}
	return nil
}

// ReconstructJourney rebuilds a Journey from persistence data (no validation).
func ReconstructJourney(
	id uuid.UUID,
	kind Kind,
	riderID uuid.UUID,
	vehicleID *uuid.UUID,
	status Status,
	phase Phase,
	leg Leg,
	tripPlan *LegPlan,
	fareCents *int64,
	currency string,
	cancelReason string,
	arrivedAt, tripStartAt, completedAt, cancelledAt *time.Time,
	version int64,
	createdAt, updatedAt time.Time,
) *Journey {
	return &Journey{
		id:           id,
		kind:         kind,
		riderID:      riderID,
		vehicleID:    vehicleID,
		status:       status,
		phase:        phase,
		leg:          leg,
		tripPlan:     tripPlan,
		fareCents:    fareCents,
		currency:     currency,
		cancelReason: cancelReason,
		arrivedAt:    arrivedAt,
		tripStartAt:  tripStartAt,
		completedAt:  completedAt,
		cancelledAt:  cancelledAt,
		version:      version,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

// --- Getters ---

func (j *Journey) ID() uuid.UUID { return j.id }
func (j *Journey) Kind() Kind { return j.kind }
func (j *Journey) RiderID() uuid.UUID { return j.riderID }
func (j *Journey) VehicleID() *uuid.UUID { return j.vehicleID }
func (j *Journey) Status() Status { return j.status }
func (j *Journey) Phase() Phase { return j.phase }
func (j *Journey) Leg() Leg { return j.leg }
func (j *Journey) TripPlan() *LegPlan { return j.tripPlan }
func (j *Journey) FareCents() *int64 { return j.fareCents }
func (j *Journey) Currency() string { return j.currency }
func (j *Journey) CancelReason() string { return j.cancelReason }
func (j *Journey) ArrivedAt() *time.Time { return j.arrivedAt }
func (j *Journey) TripStartedAt() *time.Time { return j.tripStartAt }
func (j *Journey) CompletedAt() *time.Time { return j.completedAt }
func (j *Journey) CancelledAt() *time.Time { return j.cancelledAt }
func (j *Journey) Version() int64 { return j.version }
func (j *Journey) CreatedAt() time.Time { return j.createdAt }
func (j *Journey) UpdatedAt() time.Time { return j.updatedAt }

// --- Behavior ---

// Advance runs the phase state machine at now, applying every transition whose
// condition holds until the journey is stable. Each transition is guarded by the
// current status, so re-running Advance on an already advanced journey is a no-op.
func (j *Journey) Advance(now time.Time, rules Rules) []Transition {
	now = now.UTC()
	var applied []Transition
	for i := 0; i < maxTransitionsPerObservation; i++ {
		t, ok := j.step(now, rules)
		if !ok {
			break
		}
		applied = append(applied, t)
	}
	if len(applied) > 0 {
		j.updatedAt = now
		j.pendingTransitions = append(j.pendingTransitions, applied...)
	}
	return applied
}

func (j *Journey) step(now time.Time, rules Rules) (Transition, bool) {
	// A cancel applied by another actor wins over anything progress would imply.
	if j.status.IsTerminal() {
		return Transition{}, false
	}

	switch j.phase {
	case PhasePickupApproach:
		if j.leg.Progress(now) < 1 {
			return Transition{}, false
		}
		if j.status != StatusRequested && j.status != StatusDispatched {
			return Transition{}, false
		}
		if j.kind == KindTeleDrive {
			t := j.apply(now, PhaseCompleted, StatusCompleted)
			j.completedAt = &now
			j.archived = append(j.archived, j.leg)
			j.pendingFinalize = true
			return t, true
		}
		t := j.apply(now, PhaseArrivedAtPickup, StatusVehicleArrived)
		j.arrivedAt = &now
		return t, true

	case PhaseArrivedAtPickup:
		if j.status != StatusVehicleArrived || j.leg.OvertimeSeconds(now) <= 0 {
			return Transition{}, false
		}
		return j.apply(now, PhaseBoarding, StatusVehicleArrived), true

	case PhaseBoarding:
		if j.status != StatusVehicleArrived || j.tripPlan == nil {
			return Transition{}, false
		}
		threshold := rules.BoardingDelaySec * j.leg.Checkpoint.EffectiveSpeed()
		if j.leg.OvertimeSeconds(now) < threshold {
			return Transition{}, false
		}
		t := Transition{FromPhase: j.phase, ToPhase: PhaseInTrip, FromStatus: j.status, ToStatus: StatusInProgress, At: now}
		multiplier := j.leg.Checkpoint.SpeedMultiplier
		j.leg.Checkpoint = j.leg.Checkpoint.Rebase(now, multiplier)
		j.archived = append(j.archived, j.leg)
		j.leg = StartLeg(LegInTrip, *j.tripPlan, now, multiplier)
		j.phase = PhaseInTrip
		j.status = StatusInProgress
		j.tripStartAt = &now
		return t, true

	case PhaseInTrip:
		if j.status != StatusInProgress || j.leg.Progress(now) < 1 {
			return Transition{}, false
		}
		t := j.apply(now, PhaseCompleted, StatusCompleted)
		j.completedAt = &now
		j.archived = append(j.archived, j.leg)
		j.pendingFinalize = true
		return t, true
	}
	return Transition{}, false
}

// apply moves phase and status and writes a checkpoint at now, keeping the multiplier.
func (j *Journey) apply(now time.Time, phase Phase, status Status) Transition {
	t := Transition{FromPhase: j.phase, ToPhase: phase, FromStatus: j.status, ToStatus: status, At: now}
	j.leg.Checkpoint = j.leg.Checkpoint.Rebase(now, j.leg.Checkpoint.SpeedMultiplier)
	j.phase = phase
	j.status = status
	return t
}

// SetSpeed checkpoints the clock at now and installs the clamped multiplier.
// It returns the multiplier actually stored.
func (j *Journey) SetSpeed(now time.Time, multiplier float64) (float64, error) {
	if j.status.IsTerminal() {
		return 0, domain.NewInvalidStateError(string(j.status), "speed change")
	}
	now = now.UTC()
	j.leg.Checkpoint = j.leg.Checkpoint.Rebase(now, multiplier)
	j.updatedAt = now
	return j.leg.Checkpoint.SpeedMultiplier, nil
}

// Cancel transitions the journey to cancelled if it is not in a terminal state.
// The clock is frozen at now.
func (j *Journey) Cancel(reason string, now time.Time) error {
	if !j.status.CanBeCancelled() {
		return domain.NewInvalidStateError(string(j.status), string(StatusCancelled))
	}
	now = now.UTC()
	t := j.apply(now, PhaseCancelled, StatusCancelled)
	j.cancelReason = reason
	j.cancelledAt = &now
	j.updatedAt = now
	j.archived = append(j.archived, j.leg)
	j.pendingTransitions = append(j.pendingTransitions, t)
	return nil
}

// NeedsFinalization reports whether the journey completed during this unit of work
// and its fare has not been captured yet.
func (j *Journey) NeedsFinalization() bool {
	return j.pendingFinalize && j.fareCents == nil
}

// CaptureFare records the final fare. It can only happen once.
func (j *Journey) CaptureFare(cents int64) error {
	if j.status != StatusCompleted {
		return domain.NewInvalidStateError(string(j.status), "fare capture")
	}
	if j.fareCents != nil {
		return domain.NewConflictError("fare already captured")
	}
	j.fareCents = &cents
	j.pendingFinalize = false
	return nil
}

// TakeArchivedLegs returns legs finished during this unit of work and clears the list.
func (j *Journey) TakeArchivedLegs() []Leg {
	legs := j.archived
	j.archived = nil
	return legs
}

// TakeTransitions returns transitions applied during this unit of work and clears the list.
func (j *Journey) TakeTransitions() []Transition {
	ts := j.pendingTransitions
	j.pendingTransitions = nil
	return ts
}

// IncrementVersion bumps the version for optimistic locking.
func (j *Journey) IncrementVersion() {
	j.version++
}

// endedAt is when the clock stopped for a terminal journey.
func (j *Journey) endedAt() *time.Time {
	switch j.status {
	case StatusCompleted:
		return j.completedAt
	case StatusCancelled:
		return j.cancelledAt
	}
	return nil
}

// Snapshot is the observable state of a journey at one instant.
type Snapshot struct {
	JourneyID        uuid.UUID `json:"journey_id"`
	Kind             Kind      `json:"kind"`
	LegKind          LegKind   `json:"leg_kind"`
	Lat              float64   `json:"lat"`
	Lng              float64   `json:"lng"`
	Phase            Phase     `json:"phase"`
	Status           Status    `json:"status"`
	ProgressPercent  float64   `json:"progress_percent"`
	ETASeconds       float64   `json:"eta_seconds"`
	SpeedMultiplier  float64   `json:"speed_multiplier"`
	SimulatedSeconds float64   `json:"simulated_seconds"`
	ObservedAt       time.Time `json:"observed_at"`
}

// Snapshot reports position, progress and ETA at now. Terminal journeys are
// reported as of the moment they ended.
func (j *Journey) Snapshot(now time.Time) Snapshot {
	at := now.UTC()
	if ended := j.endedAt(); ended != nil && ended.Before(at) {
		at = *ended
	}
	pos := j.leg.Position(at)
	if j.status == StatusCompleted {
		pos = j.leg.End
	}
	return Snapshot{
		JourneyID:        j.id,
		Kind:             j.kind,
		LegKind:          j.leg.Kind,
		Lat:              pos.Lat,
		Lng:              pos.Lng,
		Phase:            j.phase,
		Status:           j.status,
		ProgressPercent:  j.leg.ProgressPercent(at),
		ETASeconds:       j.leg.ETASeconds(at),
		SpeedMultiplier:  j.leg.Checkpoint.SpeedMultiplier,
		SimulatedSeconds: j.leg.SimulatedSeconds(at),
		ObservedAt:       now.UTC(),
	}
}

// Position is a convenience returning the interpolated point at now.
func (j *Journey) Position(now time.Time) geo.Point {
	s := j.Snapshot(now)
	return geo.NewPoint(s.Lat, s.Lng)
}
