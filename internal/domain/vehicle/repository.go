package vehicle

import (
	"context"

	"github.com/google/uuid"
)

// VehicleRepository defines persistence operations for fleet vehicles.
type VehicleRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Vehicle, error)
	ListByStatus(ctx context.Context, status VehicleStatus) ([]*Vehicle, error)
	Save(ctx context.Context, v *Vehicle) error
	// Update persists changes; the vehicle's version must be exactly one ahead of the stored row.
	Update(ctx context.Context, v *Vehicle) error
}
