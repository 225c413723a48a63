package inspection

import (
	"time"

	"github.com/google/uuid"

	"github.com/Kilat-Mobility/service-journey/internal/common/domain"
)

// Stage says when during a rental the vehicle condition was recorded.
type Stage string

const (
	StageStart Stage = "start"
	StageEnd   Stage = "end"
)

// IsValid returns true if the stage is recognized.
func (s Stage) IsValid() bool {
	return s == StageStart || s == StageEnd
}

// Photo is a vehicle condition photo attached to a rental.
type Photo struct {
	id        uuid.UUID
	rentalID  uuid.UUID
	vehicleID uuid.UUID
	userID    uuid.UUID
	stage     Stage
	photoURL  string
	damage    bool
	note      string
	takenAt   time.Time
	createdAt time.Time
}

// NewPhoto creates a condition photo for a rental.
func NewPhoto(rentalID, vehicleID, userID uuid.UUID, stage Stage, photoURL string, damage bool, note string) (*Photo, error) {
	if !stage.IsValid() {
		return nil, domain.NewValidationError("invalid inspection stage: " + string(stage))
	}
	if photoURL == "" {
		return nil, domain.NewValidationError("photo URL is required")
	}
	if damage && note == "" {
		return nil, domain.NewValidationError("a damage report needs a note")
	}

	now := time.Now().UTC()
	return &Photo{
		id:        uuid.New(),
		rentalID:  rentalID,
		vehicleID: vehicleID,
		userID:    userID,
		stage:     stage,
		photoURL:  photoURL,
		damage:    damage,
		note:      note,
		takenAt:   now,
		createdAt: now,
	}, nil
}

// Reconstruct rebuilds a Photo from persistence.
func Reconstruct(id, rentalID, vehicleID, userID uuid.UUID, stage Stage, photoURL string, damage bool, note string, takenAt, createdAt time.Time) *Photo {
	return &Photo{
		id:        id,
		rentalID:  rentalID,
		vehicleID: vehicleID,
		userID:    userID,
		stage:     stage,
		photoURL:  photoURL,
		damage:    damage,
		note:      note,
		takenAt:   takenAt,
		createdAt: createdAt,
	}
}

// Getters.
func (p *Photo) ID() uuid.UUID { return p.id }
func (p *Photo) RentalID() uuid.UUID { return p.rentalID }
func (p *Photo) VehicleID() uuid.UUID { return p.vehicleID }
func (p *Photo) UserID() uuid.UUID { return p.userID }
func (p *Photo) Stage() Stage { return p.stage }
func (p *Photo) PhotoURL() string { return p.photoURL }
func (p *Photo) Damage() bool { return p.damage }
func (p *Photo) Note() string { return p.note }
func (p *Photo) TakenAt() time.Time { return p.takenAt }
func (p *Photo) CreatedAt() time.Time { return p.createdAt }
