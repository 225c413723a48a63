package rental

import (
	"context"

	"github.com/google/uuid"
)

// RentalRepository defines the persistence contract for rentals.
type RentalRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Rental, error)
	FindByUserID(ctx context.Context, userID uuid.UUID, page, limit int) ([]*Rental, int64, error)
	FindActiveByVehicleID(ctx context.Context, vehicleID uuid.UUID) (*Rental, error)
	Save(ctx context.Context, r *Rental) error

	// Update persists changes with optimistic locking on the loaded version.
	Update(ctx context.Context, r *Rental) error
}
