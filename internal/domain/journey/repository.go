package journey

import (
	"context"

	"github.com/google/uuid"
)

// JourneyRepository defines the persistence contract for journey aggregates.
type JourneyRepository interface {
	// FindByID retrieves a journey by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Journey, error)

	// FindByRiderID retrieves journeys for a rider with pagination.
	FindByRiderID(ctx context.Context, riderID uuid.UUID, page, limit int) ([]*Journey, int64, error)

	// ListAll retrieves all journeys with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Journey, int64, error)

	// CountByStatus returns journey counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// Save persists a new journey.
	Save(ctx context.Context, j *Journey) error

	// Update atomically persists the journey's checkpoint, phase, status and fare,
	// together with any legs archived during the unit of work. It is a
	// compare-and-set on the version the journey was loaded with: when another
	// writer got there first it returns a ConflictError and writes nothing.
	Update(ctx context.Context, j *Journey, archived []Leg) error
}
