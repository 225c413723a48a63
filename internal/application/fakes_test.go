package application

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Mobility/service-journey/internal/common/domain"
	"github.com/Kilat-Mobility/service-journey/internal/common/kafka"
	geofenceDomain "github.com/Kilat-Mobility/service-journey/internal/domain/geofence"
	inspectionDomain "github.com/Kilat-Mobility/service-journey/internal/domain/inspection"
	journeyDomain "github.com/Kilat-Mobility/service-journey/internal/domain/journey"
	rentalDomain "github.com/Kilat-Mobility/service-journey/internal/domain/rental"
	vehicleDomain "github.com/Kilat-Mobility/service-journey/internal/domain/vehicle"
)

// --- Clock ---

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// --- Publisher ---

type publishedEvent struct {
	topic string
	event kafka.CloudEvent
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) PublishEvent(_ context.Context, topic string, event kafka.CloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{topic: topic, event: event})
	return nil
}

func (p *fakePublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.event.Type == eventType {
			n++
		}
	}
	return n
}

func (p *fakePublisher) last(eventType string) (kafka.CloudEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].event.Type == eventType {
			return p.events[i].event, true
		}
	}
	return kafka.CloudEvent{}, false
}

// --- Fare strategy ---

type countingFares struct {
	mu    sync.Mutex
	inner journeyDomain.FareStrategy
	calls int
}

func (f *countingFares) Calculate(params journeyDomain.FareParams) (int64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.inner.Calculate(params)
}

func (f *countingFares) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// --- Journey repository ---

// fakeJourneyRepo stores copies so the service never shares an aggregate with
// the store, and enforces the version compare-and-set of the real repository.
type fakeJourneyRepo struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]*journeyDomain.Journey
	legs      map[uuid.UUID][]journeyDomain.Leg
	saves     int
	updates   int
	conflicts int
	saveErr   error
}

func newFakeJourneyRepo() *fakeJourneyRepo {
	return &fakeJourneyRepo{
		rows: make(map[uuid.UUID]*journeyDomain.Journey),
		legs: make(map[uuid.UUID][]journeyDomain.Leg),
	}
}

func cloneJourney(j *journeyDomain.Journey) *journeyDomain.Journey {
	return journeyDomain.ReconstructJourney(
		j.ID(), j.Kind(), j.RiderID(), j.VehicleID(), j.Status(), j.Phase(), j.Leg(), j.TripPlan(),
		j.FareCents(), j.Currency(), j.CancelReason(),
		j.ArrivedAt(), j.TripStartedAt(), j.CompletedAt(), j.CancelledAt(),
		j.Version(), j.CreatedAt(), j.UpdatedAt(),
	)
}

func (r *fakeJourneyRepo) FindByID(_ context.Context, id uuid.UUID) (*journeyDomain.Journey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.rows[id]
	if !ok {
		return nil, domain.NewNotFoundError("journey", id.String())
	}
	return cloneJourney(j), nil
}

func (r *fakeJourneyRepo) FindByRiderID(_ context.Context, riderID uuid.UUID, page, limit int) ([]*journeyDomain.Journey, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*journeyDomain.Journey
	for _, j := range r.rows {
		if j.RiderID() == riderID {
			out = append(out, cloneJourney(j))
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeJourneyRepo) ListAll(_ context.Context, page, limit int) ([]*journeyDomain.Journey, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*journeyDomain.Journey
	for _, j := range r.rows {
		out = append(out, cloneJourney(j))
	}
	return out, int64(len(out)), nil
}

func (r *fakeJourneyRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int64)
	for _, j := range r.rows {
		counts[string(j.Status())]++
	}
	return counts, nil
}

func (r *fakeJourneyRepo) Save(_ context.Context, j *journeyDomain.Journey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.rows[j.ID()] = cloneJourney(j)
	r.saves++
	return nil
}

func (r *fakeJourneyRepo) Update(_ context.Context, j *journeyDomain.Journey, archived []journeyDomain.Leg) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[j.ID()]
	if !ok {
		return domain.NewNotFoundError("journey", j.ID().String())
	}
	if r.conflicts > 0 {
		r.conflicts--
		return domain.NewConflictError("journey was modified concurrently")
	}
	if stored.Version() != j.Version()-1 {
		return domain.NewConflictError("journey was modified concurrently")
	}
	r.rows[j.ID()] = cloneJourney(j)
	r.legs[j.ID()] = append(r.legs[j.ID()], archived...)
	r.updates++
	return nil
}

func (r *fakeJourneyRepo) stored(id uuid.UUID) *journeyDomain.Journey {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneJourney(r.rows[id])
}

// --- Vehicle repository ---

type fakeVehicleRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*vehicleDomain.Vehicle
}

func newFakeVehicleRepo() *fakeVehicleRepo {
	return &fakeVehicleRepo{rows: make(map[uuid.UUID]*vehicleDomain.Vehicle)}
}

func cloneVehicle(v *vehicleDomain.Vehicle) *vehicleDomain.Vehicle {
	return vehicleDomain.Reconstruct(v.ID(), v.Plate(), v.Model(), v.TeleDrivable(), v.Status(),
		v.Tariff(), v.Reading(), v.Version(), v.CreatedAt(), v.UpdatedAt())
}

func (r *fakeVehicleRepo) FindByID(_ context.Context, id uuid.UUID) (*vehicleDomain.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.rows[id]
	if !ok {
		return nil, domain.NewNotFoundError("vehicle", id.String())
	}
	return cloneVehicle(v), nil
}

func (r *fakeVehicleRepo) ListByStatus(_ context.Context, status vehicleDomain.VehicleStatus) ([]*vehicleDomain.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*vehicleDomain.Vehicle
	for _, v := range r.rows {
		if v.Status() == status {
			out = append(out, cloneVehicle(v))
		}
	}
	return out, nil
}

func (r *fakeVehicleRepo) Save(_ context.Context, v *vehicleDomain.Vehicle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[v.ID()] = cloneVehicle(v)
	return nil
}

func (r *fakeVehicleRepo) Update(_ context.Context, v *vehicleDomain.Vehicle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[v.ID()]
	if !ok {
		return domain.NewNotFoundError("vehicle", v.ID().String())
	}
	if stored.Version() != v.Version()-1 {
		return domain.NewConflictError("vehicle was modified concurrently")
	}
	r.rows[v.ID()] = cloneVehicle(v)
	return nil
}

func (r *fakeVehicleRepo) stored(id uuid.UUID) *vehicleDomain.Vehicle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneVehicle(r.rows[id])
}

// --- Rental repository ---

type fakeRentalRepo struct {
	mu           sync.Mutex
	rows         map[uuid.UUID]*rentalDomain.Rental
	beforeUpdate func()
	saveErr      error
}

func newFakeRentalRepo() *fakeRentalRepo {
	return &fakeRentalRepo{rows: make(map[uuid.UUID]*rentalDomain.Rental)}
}

func cloneRental(rt *rentalDomain.Rental) *rentalDomain.Rental {
	return rentalDomain.ReconstructRental(rt.ID(), rt.UserID(), rt.VehicleID(), rt.Status(), rt.Tariff(),
		rt.Start(), rt.End(), rt.Breakdown(), rt.Currency(), rt.StartedAt(), rt.EndedAt(),
		rt.Version(), rt.CreatedAt(), rt.UpdatedAt())
}

func (r *fakeRentalRepo) FindByID(_ context.Context, id uuid.UUID) (*rentalDomain.Rental, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.rows[id]
	if !ok {
		return nil, domain.NewNotFoundError("rental", id.String())
	}
	return cloneRental(rt), nil
}

func (r *fakeRentalRepo) FindByUserID(_ context.Context, userID uuid.UUID, page, limit int) ([]*rentalDomain.Rental, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*rentalDomain.Rental
	for _, rt := range r.rows {
		if rt.UserID() == userID {
			out = append(out, cloneRental(rt))
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeRentalRepo) FindActiveByVehicleID(_ context.Context, vehicleID uuid.UUID) (*rentalDomain.Rental, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rt := range r.rows {
		if rt.VehicleID() == vehicleID && !rt.IsClosed() {
			return cloneRental(rt), nil
		}
	}
	return nil, domain.NewNotFoundError("rental", vehicleID.String())
}

func (r *fakeRentalRepo) Save(_ context.Context, rt *rentalDomain.Rental) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.rows[rt.ID()] = cloneRental(rt)
	return nil
}

func (r *fakeRentalRepo) Update(_ context.Context, rt *rentalDomain.Rental) error {
	if hook := r.takeHook(); hook != nil {
		hook()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rows[rt.ID()]
	if !ok {
		return domain.NewNotFoundError("rental", rt.ID().String())
	}
	if stored.Version() != rt.Version()-1 {
		return domain.NewConflictError("rental was modified concurrently")
	}
	r.rows[rt.ID()] = cloneRental(rt)
	return nil
}

func (r *fakeRentalRepo) takeHook() func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	hook := r.beforeUpdate
	r.beforeUpdate = nil
	return hook
}

func (r *fakeRentalRepo) put(rt *rentalDomain.Rental) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[rt.ID()] = cloneRental(rt)
}

// --- Geofence repository ---

type fakeGeofenceRepo struct {
	mu       sync.Mutex
	polygons []*geofenceDomain.Polygon
	areas    []*geofenceDomain.OperatingArea
}

func (r *fakeGeofenceRepo) ListActivePolygons(_ context.Context, kind geofenceDomain.Kind) ([]*geofenceDomain.Polygon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if kind == "" {
		return append([]*geofenceDomain.Polygon(nil), r.polygons...), nil
	}
	return geofenceDomain.FilterKind(r.polygons, kind), nil
}

func (r *fakeGeofenceRepo) SavePolygon(_ context.Context, p *geofenceDomain.Polygon) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polygons = append(r.polygons, p)
	return nil
}

func (r *fakeGeofenceRepo) DeactivatePolygon(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.polygons {
		if p.ID == id {
			r.polygons = append(r.polygons[:i], r.polygons[i+1:]...)
			return nil
		}
	}
	return domain.NewNotFoundError("geofence", id.String())
}

func (r *fakeGeofenceRepo) ListActiveAreas(_ context.Context) ([]*geofenceDomain.OperatingArea, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*geofenceDomain.OperatingArea(nil), r.areas...), nil
}

func (r *fakeGeofenceRepo) SaveArea(_ context.Context, a *geofenceDomain.OperatingArea) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.areas = append(r.areas, a)
	return nil
}

func (r *fakeGeofenceRepo) DeactivateArea(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, a := range r.areas {
		if a.ID == id {
			r.areas = append(r.areas[:i], r.areas[i+1:]...)
			return nil
		}
	}
	return domain.NewNotFoundError("operating area", id.String())
}

// --- Inspection repository ---

type fakePhotoRepo struct {
	mu     sync.Mutex
	photos []*inspectionDomain.Photo
}

func (r *fakePhotoRepo) Save(_ context.Context, p *inspectionDomain.Photo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.photos = append(r.photos, p)
	return nil
}

func (r *fakePhotoRepo) FindByRentalID(_ context.Context, rentalID uuid.UUID) ([]*inspectionDomain.Photo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*inspectionDomain.Photo
	for _, p := range r.photos {
		if p.RentalID() == rentalID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePhotoRepo) FindByID(_ context.Context, id uuid.UUID) (*inspectionDomain.Photo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.photos {
		if p.ID() == id {
			return p, nil
		}
	}
	return nil, domain.NewNotFoundError("inspection photo", id.String())
}
