package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Mobility/service-journey/internal/common/domain"
	"github.com/Kilat-Mobility/service-journey/internal/common/kafka"
	"github.com/Kilat-Mobility/service-journey/internal/domain/geo"
	journeyDomain "github.com/Kilat-Mobility/service-journey/internal/domain/journey"
	"github.com/Kilat-Mobility/service-journey/internal/proto/events"
)

const (
	serviceName = "service-journey"

	// maxConflictRetries bounds how often an observation is recomputed after
	// losing the version compare-and-set to a concurrent writer.
	maxConflictRetries = 3
)

// LegRequest describes a routed leg. Route is optional GeoJSON in [lng, lat] order.
type LegRequest struct {
	Start            geo.Point       `json:"start"`
	End              geo.Point       `json:"end"`
	TotalDurationSec int             `json:"total_duration_sec" binding:"min=0"`
	Route            json.RawMessage `json:"route,omitempty"`
}

// StartJourneyRequest holds the data needed to dispatch a journey.
type StartJourneyRequest struct {
	ID              *uuid.UUID  `json:"id,omitempty"`
	Kind            string      `json:"kind" binding:"required"`
	RiderID         uuid.UUID   `json:"rider_id"`
	VehicleID       *uuid.UUID  `json:"vehicle_id,omitempty"`
	Approach        LegRequest  `json:"approach"`
	Trip            *LegRequest `json:"trip,omitempty"`
	SpeedMultiplier float64     `json:"speed_multiplier"`
}

// JourneyDTO is the response representation of a journey.
type JourneyDTO struct {
	ID            uuid.UUID              `json:"id"`
	Kind          string                 `json:"kind"`
	RiderID       uuid.UUID              `json:"rider_id"`
	VehicleID     *uuid.UUID             `json:"vehicle_id,omitempty"`
	Status        string                 `json:"status"`
	Phase         string                 `json:"phase"`
	LegKind       string                 `json:"leg_kind"`
	Position      journeyDomain.Snapshot `json:"position"`
	FareCents     *int64                 `json:"fare_cents,omitempty"`
	Currency      string                 `json:"currency"`
	CancelReason  string                 `json:"cancel_reason,omitempty"`
	ArrivedAt     *time.Time             `json:"arrived_at,omitempty"`
	TripStartedAt *time.Time             `json:"trip_started_at,omitempty"`
	CompletedAt   *time.Time             `json:"completed_at,omitempty"`
	CancelledAt   *time.Time             `json:"cancelled_at,omitempty"`
	Version       int64                  `json:"version"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// JourneyStatsDTO holds journey statistics for the admin dashboard.
type JourneyStatsDTO struct {
	TotalJourneys int64            `json:"total_journeys"`
	ByStatus      map[string]int64 `json:"by_status"`
}

// FleetNotifier is told when a tele-driven vehicle starts and stops moving.
type FleetNotifier interface {
	TeleDriveStarted(ctx context.Context, vehicleID uuid.UUID) error
	TeleDriveAborted(ctx context.Context, vehicleID uuid.UUID) error
	TeleDriveEnded(ctx context.Context, vehicleID uuid.UUID, at geo.Point) error
}

// PositionService answers position queries for journeys. Every query advances the
// phase state machine lazily and persists the result with a version compare-and-set.
type PositionService struct {
	repo     journeyDomain.JourneyRepository
	fares    journeyDomain.FareStrategy
	producer kafka.Publisher
	fleet    FleetNotifier
	rules    journeyDomain.Rules
	locks    *keyedMutex
	now      func() time.Time
	logger   *zap.Logger
}

// NewPositionService creates a new PositionService. fleet may be nil.
func NewPositionService(
	repo journeyDomain.JourneyRepository,
	fares journeyDomain.FareStrategy,
	producer kafka.Publisher,
	fleet FleetNotifier,
	rules journeyDomain.Rules,
	logger *zap.Logger,
) *PositionService {
	return &PositionService{
		repo:     repo,
		fares:    fares,
		producer: producer,
		fleet:    fleet,
		rules:    rules,
		locks:    newKeyedMutex(),
		now:      time.Now,
		logger:   logger,
	}
}

// StartJourney dispatches a new journey. When an id is supplied and a journey with
// that id already exists, the existing journey is returned unchanged.
func (s *PositionService) StartJourney(ctx context.Context, req StartJourneyRequest) (*JourneyDTO, error) {
	var id uuid.UUID
	if req.ID != nil {
		id = *req.ID
		existing, err := s.repo.FindByID(ctx, id)
		if err == nil {
			result := toJourneyDTO(existing, s.now())
			return &result, nil
		}
		if !domain.IsNotFound(err) {
			return nil, err
		}
	}

	kind := journeyDomain.Kind(req.Kind)
	approach := s.buildPlan(req.Approach)
	var trip *journeyDomain.LegPlan
	if req.Trip != nil {
		p := s.buildPlan(*req.Trip)
		trip = &p
	}

	now := s.now()
	j, err := journeyDomain.NewJourney(id, kind, req.RiderID, req.VehicleID, approach, trip, req.SpeedMultiplier, domain.CurrencyEUR, now)
	if err != nil {
		return nil, err
	}

	teleDriven := kind == journeyDomain.KindTeleDrive && req.VehicleID != nil && s.fleet != nil
	if teleDriven {
		if err := s.fleet.TeleDriveStarted(ctx, *req.VehicleID); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Save(ctx, j); err != nil {
		if teleDriven {
			if rbErr := s.fleet.TeleDriveAborted(ctx, *req.VehicleID); rbErr != nil {
				s.logger.Error("failed to release tele-drive vehicle",
					zap.String("vehicle_id", req.VehicleID.String()),
					zap.Error(rbErr),
				)
			}
		}
		return nil, fmt.Errorf("failed to save journey: %w", err)
	}

	evt := events.JourneyDispatchedEvent{
		JourneyID:  j.ID(),
		Kind:       string(j.Kind()),
		RiderID:    j.RiderID(),
		VehicleID:  j.VehicleID(),
		PickupLat:  approach.End.Lat,
		PickupLng:  approach.End.Lng,
		OccurredAt: now.UTC(),
	}
	s.publishEvent(ctx, events.TopicJourneyEvents, events.JourneyDispatched, evt)

	s.logger.Info("journey dispatched",
		zap.String("journey_id", j.ID().String()),
		zap.String("kind", string(j.Kind())),
	)

	result := toJourneyDTO(j, now)
	return &result, nil
}

// GetPosition observes the journey at the current instant: it advances the clock and
// phase machine, persists any transition atomically and returns the snapshot.
func (s *PositionService) GetPosition(ctx context.Context, journeyID uuid.UUID) (*journeyDomain.Snapshot, error) {
	j, now, err := s.mutate(ctx, journeyID, func(j *journeyDomain.Journey, now time.Time) (bool, error) {
		return len(j.Advance(now, s.rules)) > 0, nil
	})
	if err != nil {
		return nil, err
	}
	snap := j.Snapshot(now)
	return &snap, nil
}

// SetSpeed checkpoints the journey's clock and installs a new multiplier, clamped
// to the allowed range. Terminal journeys reject the change.
func (s *PositionService) SetSpeed(ctx context.Context, journeyID uuid.UUID, multiplier float64) (*journeyDomain.Snapshot, error) {
	j, now, err := s.mutate(ctx, journeyID, func(j *journeyDomain.Journey, now time.Time) (bool, error) {
		if j.Status().IsTerminal() {
			return false, domain.NewInvalidStateError(string(j.Status()), "speed change")
		}
		advanced := len(j.Advance(now, s.rules)) > 0
		if _, err := j.SetSpeed(now, multiplier); err != nil {
			return advanced, err
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("journey speed changed",
		zap.String("journey_id", journeyID.String()),
		zap.Float64("requested", multiplier),
		zap.Float64("applied", j.Leg().Checkpoint.SpeedMultiplier),
	)
	snap := j.Snapshot(now)
	return &snap, nil
}

// CancelJourney cancels a journey that has not reached a terminal state at the
// current instant.
func (s *PositionService) CancelJourney(ctx context.Context, journeyID uuid.UUID, reason string) (*JourneyDTO, error) {
	j, now, err := s.mutate(ctx, journeyID, func(j *journeyDomain.Journey, now time.Time) (bool, error) {
		advanced := len(j.Advance(now, s.rules)) > 0
		if err := j.Cancel(reason, now); err != nil {
			return advanced, err
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	result := toJourneyDTO(j, now)
	return &result, nil
}

// GetJourney retrieves a single journey with its position as of now. It does not
// persist transitions.
func (s *PositionService) GetJourney(ctx context.Context, journeyID uuid.UUID) (*JourneyDTO, error) {
	j, err := s.repo.FindByID(ctx, journeyID)
	if err != nil {
		return nil, err
	}
	result := toJourneyDTO(j, s.now())
	return &result, nil
}

// GetRiderJourneys retrieves paginated journeys for a rider.
func (s *PositionService) GetRiderJourneys(ctx context.Context, riderID uuid.UUID, page, limit int) (*domain.PaginatedResult[JourneyDTO], error) {
	journeys, total, err := s.repo.FindByRiderID(ctx, riderID, page, limit)
	if err != nil {
		return nil, err
	}
	now := s.now()
	dtos := make([]JourneyDTO, len(journeys))
	for i, j := range journeys {
		dtos[i] = toJourneyDTO(j, now)
	}
	result := domain.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

// --- Admin methods ---

// ListAllJourneys returns a paginated list of all journeys (admin).
func (s *PositionService) ListAllJourneys(ctx context.Context, page, limit int) ([]JourneyDTO, int64, error) {
	journeys, total, err := s.repo.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list journeys: %w", err)
	}
	now := s.now()
	dtos := make([]JourneyDTO, len(journeys))
	for i, j := range journeys {
		dtos[i] = toJourneyDTO(j, now)
	}
	return dtos, total, nil
}

// GetJourneyStats returns aggregate journey statistics (admin).
func (s *PositionService) GetJourneyStats(ctx context.Context) (*JourneyStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get journey stats: %w", err)
	}
	var total int64
	for _, c := range counts {
		total += c
	}
	return &JourneyStatsDTO{TotalJourneys: total, ByStatus: counts}, nil
}

// --- Unit of work ---

// mutate loads the journey, applies fn at a single instant and, when fn reports a
// change, captures the fare of a journey completed in this unit of work and writes
// everything with one compare-and-set. A lost compare-and-set reloads and reruns fn;
// the reloaded journey already carries the winner's transitions, so they are not
// applied twice. fn's own error is returned after its changes are committed.
func (s *PositionService) mutate(
	ctx context.Context,
	journeyID uuid.UUID,
	fn func(j *journeyDomain.Journey, now time.Time) (bool, error),
) (*journeyDomain.Journey, time.Time, error) {
	for attempt := 0; ; attempt++ {
		unlock := s.locks.Lock(journeyID)
		out, err := s.attempt(ctx, journeyID, fn)
		unlock()

		if err == nil {
			s.afterCommit(ctx, out.journey, out.transitions)
			if out.fnErr != nil {
				return nil, out.now, out.fnErr
			}
			return out.journey, out.now, nil
		}
		if !domain.IsConflict(err) || attempt >= maxConflictRetries {
			return nil, out.now, err
		}
		s.logger.Debug("journey update lost compare-and-set, retrying",
			zap.String("journey_id", journeyID.String()),
			zap.Int("attempt", attempt+1),
		)
	}
}

// unitOfWork is the result of one committed (or read-only) attempt.
type unitOfWork struct {
	journey     *journeyDomain.Journey
	now         time.Time
	transitions []journeyDomain.Transition
	fnErr       error
}

func (s *PositionService) attempt(
	ctx context.Context,
	journeyID uuid.UUID,
	fn func(j *journeyDomain.Journey, now time.Time) (bool, error),
) (unitOfWork, error) {
	j, err := s.repo.FindByID(ctx, journeyID)
	if err != nil {
		return unitOfWork{}, err
	}

	now := s.now().UTC()
	out := unitOfWork{journey: j, now: now}
	dirty, fnErr := fn(j, now)
	out.fnErr = fnErr
	if !dirty {
		return out, nil
	}

	if j.NeedsFinalization() {
		fare, err := s.fares.Calculate(journeyDomain.FareParamsFor(j))
		if err != nil {
			return out, fmt.Errorf("failed to calculate fare: %w", err)
		}
		if err := j.CaptureFare(fare); err != nil {
			return out, err
		}
	}

	archived := j.TakeArchivedLegs()
	out.transitions = j.TakeTransitions()
	j.IncrementVersion()
	if err := s.repo.Update(ctx, j, archived); err != nil {
		return out, err
	}
	return out, nil
}

// afterCommit publishes the committed transitions and releases tele-driven vehicles.
func (s *PositionService) afterCommit(ctx context.Context, j *journeyDomain.Journey, transitions []journeyDomain.Transition) {
	for _, t := range transitions {
		s.logger.Info("journey phase changed",
			zap.String("journey_id", j.ID().String()),
			zap.String("from_phase", string(t.FromPhase)),
			zap.String("to_phase", string(t.ToPhase)),
			zap.String("status", string(t.ToStatus)),
		)
		s.publishEvent(ctx, events.TopicJourneyEvents, events.JourneyPhaseChanged, events.JourneyPhaseChangedEvent{
			JourneyID:  j.ID(),
			FromPhase:  string(t.FromPhase),
			ToPhase:    string(t.ToPhase),
			FromStatus: string(t.FromStatus),
			ToStatus:   string(t.ToStatus),
			OccurredAt: t.At,
		})

		switch t.ToStatus {
		case journeyDomain.StatusCompleted:
			var fare int64
			if j.FareCents() != nil {
				fare = *j.FareCents()
			}
			s.publishEvent(ctx, events.TopicJourneyEvents, events.JourneyCompleted, events.JourneyCompletedEvent{
				JourneyID:  j.ID(),
				Kind:       string(j.Kind()),
				RiderID:    j.RiderID(),
				VehicleID:  j.VehicleID(),
				FareCents:  fare,
				Currency:   j.Currency(),
				OccurredAt: t.At,
			})
			s.releaseVehicle(ctx, j, j.Leg().End)
		case journeyDomain.StatusCancelled:
			s.publishEvent(ctx, events.TopicJourneyEvents, events.JourneyCancelled, events.JourneyCancelledEvent{
				JourneyID:  j.ID(),
				RiderID:    j.RiderID(),
				Reason:     j.CancelReason(),
				Phase:      string(t.FromPhase),
				OccurredAt: t.At,
			})
			s.releaseVehicle(ctx, j, j.Position(t.At))
		}
	}
}

func (s *PositionService) releaseVehicle(ctx context.Context, j *journeyDomain.Journey, at geo.Point) {
	if s.fleet == nil || j.Kind() != journeyDomain.KindTeleDrive || j.VehicleID() == nil {
		return
	}
	if err := s.fleet.TeleDriveEnded(ctx, *j.VehicleID(), at); err != nil {
		s.logger.Error("failed to release tele-driven vehicle",
			zap.String("journey_id", j.ID().String()),
			zap.String("vehicle_id", j.VehicleID().String()),
			zap.Error(err),
		)
	}
}

// --- Helpers ---

func (s *PositionService) buildPlan(req LegRequest) journeyDomain.LegPlan {
	route, err := journeyDomain.ParseRouteGeometry(req.Route)
	if err != nil {
		s.logger.Warn("malformed route geometry, using straight line", zap.Error(err))
		route = journeyDomain.Route{}
	}
	return journeyDomain.LegPlan{
		Start:            req.Start,
		End:              req.End,
		Route:            route,
		TotalDurationSec: req.TotalDurationSec,
	}
}

func toJourneyDTO(j *journeyDomain.Journey, now time.Time) JourneyDTO {
	return JourneyDTO{
		ID:            j.ID(),
		Kind:          string(j.Kind()),
		RiderID:       j.RiderID(),
		VehicleID:     j.VehicleID(),
		Status:        string(j.Status()),
		Phase:         string(j.Phase()),
		LegKind:       string(j.Leg().Kind),
		Position:      j.Snapshot(now),
		FareCents:     j.FareCents(),
		Currency:      j.Currency(),
		CancelReason:  j.CancelReason(),
		ArrivedAt:     j.ArrivedAt(),
		TripStartedAt: j.TripStartedAt(),
		CompletedAt:   j.CompletedAt(),
		CancelledAt:   j.CancelledAt(),
		Version:       j.Version(),
		CreatedAt:     j.CreatedAt(),
		UpdatedAt:     j.UpdatedAt(),
	}
}

func (s *PositionService) publishEvent(ctx context.Context, topic, eventType string, data interface{}) {
	publishEvent(ctx, s.producer, s.logger, topic, eventType, data)
}

func publishEvent(ctx context.Context, producer kafka.Publisher, logger *zap.Logger, topic, eventType string, data interface{}) {
	if producer == nil {
		return
	}
	cloudEvent, err := kafka.NewCloudEvent(serviceName, eventType, data)
	if err != nil {
		logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}

	if err := producer.PublishEvent(ctx, topic, cloudEvent); err != nil {
		logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
