package vehicle

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Mobility/service-journey/internal/common/domain"
	"github.com/Kilat-Mobility/service-journey/internal/domain/geo"
	"github.com/Kilat-Mobility/service-journey/internal/domain/rental"
)

// VehicleStatus represents the availability of a carshare vehicle.
type VehicleStatus string

const (
	StatusAvailable   VehicleStatus = "available"
	StatusTeleDriving VehicleStatus = "tele_driving"
	StatusRented      VehicleStatus = "rented"
	StatusMaintenance VehicleStatus = "maintenance"
)

var validTransitions = map[VehicleStatus][]VehicleStatus{
	StatusAvailable:   {StatusTeleDriving, StatusRented, StatusMaintenance},
	StatusTeleDriving: {StatusAvailable, StatusRented},
	StatusRented:      {StatusAvailable},
	StatusMaintenance: {StatusAvailable},
}

// IsValid returns true if the status is recognized.
func (s VehicleStatus) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s VehicleStatus) CanTransitionTo(target VehicleStatus) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// Vehicle is the aggregate root for a carshare fleet vehicle.
type Vehicle struct {
	id           uuid.UUID
	plate        string
	model        string
	teleDrivable bool
	status       VehicleStatus
	tariff       rental.Tariff
	reading      rental.Reading
	version      int64
	createdAt    time.Time
	updatedAt    time.Time
}

// NewVehicle registers an available vehicle.
func NewVehicle(plate, model string, teleDrivable bool, tariff rental.Tariff, reading rental.Reading) (*Vehicle, error) {
	if plate == "" {
		return nil, domain.NewValidationError("plate is required")
	}
	if err := tariff.Validate(); err != nil {
		return nil, err
	}
	if err := reading.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Vehicle{
		id:           uuid.New(),
		plate:        plate,
		model:        model,
		teleDrivable: teleDrivable,
		status:       StatusAvailable,
		tariff:       tariff,
		reading:      reading,
		version:      1,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// Reconstruct rebuilds a Vehicle from persistence data (no validation).
func Reconstruct(
	id uuid.UUID,
	plate, model string,
	teleDrivable bool,
	status VehicleStatus,
	tariff rental.Tariff,
	reading rental.Reading,
	version int64,
	createdAt, updatedAt time.Time,
) *Vehicle {
	return &Vehicle{
		id:           id,
		plate:        plate,
		model:        model,
		teleDrivable: teleDrivable,
		status:       status,
		tariff:       tariff,
		reading:      reading,
		version:      version,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

// --- Getters ---

func (v *Vehicle) ID() uuid.UUID { return v.id }
func (v *Vehicle) Plate() string { return v.plate }
func (v *Vehicle) Model() string { return v.model }
func (v *Vehicle) TeleDrivable() bool { return v.teleDrivable }
func (v *Vehicle) Status() VehicleStatus { return v.status }
func (v *Vehicle) Tariff() rental.Tariff { return v.tariff }
func (v *Vehicle) Reading() rental.Reading { return v.reading }
func (v *Vehicle) Location() geo.Point { return v.reading.Point }
func (v *Vehicle) Version() int64 { return v.version }
func (v *Vehicle) CreatedAt() time.Time { return v.createdAt }
func (v *Vehicle) UpdatedAt() time.Time { return v.updatedAt }

// --- Behavior ---

func (v *Vehicle) transition(target VehicleStatus) error {
	if !v.status.CanTransitionTo(target) {
		return domain.NewInvalidStateError(string(v.status), string(target))
	}
	v.status = target
	v.version++
	v.updatedAt = time.Now().UTC()
	return nil
}

// StartTeleDrive marks the vehicle as being remotely driven to a customer.
func (v *Vehicle) StartTeleDrive() error {
	if !v.teleDrivable {
		return domain.NewValidationError(fmt.Sprintf("vehicle %s cannot be tele-driven", v.plate))
	}
	return v.transition(StatusTeleDriving)
}

// AbortTeleDrive makes a tele-driving vehicle available again where it stands.
func (v *Vehicle) AbortTeleDrive() error {
	if v.status != StatusTeleDriving {
		return domain.NewInvalidStateError(string(v.status), string(StatusAvailable))
	}
	return v.transition(StatusAvailable)
}

// Rent marks the vehicle as rented.
func (v *Vehicle) Rent() error {
	return v.transition(StatusRented)
}

// Return makes the vehicle available again at the given reading.
func (v *Vehicle) Return(reading rental.Reading) error {
	if err := reading.Validate(); err != nil {
		return err
	}
	if err := v.transition(StatusAvailable); err != nil {
		return err
	}
	v.reading = reading
	return nil
}

// Deliver ends a tele-drive at the customer's location and makes the vehicle
// available for rent there.
func (v *Vehicle) Deliver(point geo.Point) error {
	if v.status != StatusTeleDriving {
		return domain.NewInvalidStateError(string(v.status), string(StatusAvailable))
	}
	if !point.IsValid() {
		return domain.NewValidationError("invalid coordinates")
	}
	if err := v.transition(StatusAvailable); err != nil {
		return err
	}
	v.reading.Point = point
	return nil
}

// SetMaintenance takes an available vehicle out of service, or puts a vehicle in
// maintenance back into service.
func (v *Vehicle) SetMaintenance(on bool) error {
	if on {
		return v.transition(StatusMaintenance)
	}
	if v.status != StatusMaintenance {
		return domain.NewInvalidStateError(string(v.status), string(StatusAvailable))
	}
	return v.transition(StatusAvailable)
}
