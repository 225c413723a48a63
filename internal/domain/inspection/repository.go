package inspection

import (
	"context"

	"github.com/google/uuid"
)

// PhotoRepository defines persistence operations for inspection photos.
type PhotoRepository interface {
	Save(ctx context.Context, photo *Photo) error
	FindByRentalID(ctx context.Context, rentalID uuid.UUID) ([]*Photo, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Photo, error)
}
