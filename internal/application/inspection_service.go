package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kilat-Mobility/service-journey/internal/common/domain"
	inspectionDomain "github.com/Kilat-Mobility/service-journey/internal/domain/inspection"
	rentalDomain "github.com/Kilat-Mobility/service-journey/internal/domain/rental"
)

// UploadInspectionRequest holds the data to attach a condition photo to a rental.
type UploadInspectionRequest struct {
	Stage    string `json:"stage" binding:"required"`
	PhotoURL string `json:"photo_url" binding:"required"`
	Damage   bool   `json:"damage"`
	Note     string `json:"note"`
}

// InspectionPhotoDTO is the API response representation of an inspection photo.
type InspectionPhotoDTO struct {
	ID        uuid.UUID `json:"id"`
	RentalID  uuid.UUID `json:"rental_id"`
	VehicleID uuid.UUID `json:"vehicle_id"`
	UserID    uuid.UUID `json:"user_id"`
	Stage     string    `json:"stage"`
	PhotoURL  string    `json:"photo_url"`
	Damage    bool      `json:"damage"`
	Note      string    `json:"note,omitempty"`
	TakenAt   time.Time `json:"taken_at"`
	CreatedAt time.Time `json:"created_at"`
}

// InspectionService handles vehicle condition photos of rentals.
type InspectionService struct {
	repo    inspectionDomain.PhotoRepository
	rentals rentalDomain.RentalRepository
	logger  *zap.Logger
}

// NewInspectionService creates a new InspectionService.
func NewInspectionService(repo inspectionDomain.PhotoRepository, rentals rentalDomain.RentalRepository, logger *zap.Logger) *InspectionService {
	return &InspectionService{repo: repo, rentals: rentals, logger: logger}
}

// UploadPhoto attaches a condition photo to the user's rental. Start-of-rental
// photos are only accepted while the rental is active.
func (s *InspectionService) UploadPhoto(ctx context.Context, rentalID, userID uuid.UUID, req UploadInspectionRequest) (*InspectionPhotoDTO, error) {
	rt, err := s.rentals.FindByID(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	if rt.UserID() != userID {
		return nil, domain.NewForbiddenError("rental does not belong to this user")
	}
	stage := inspectionDomain.Stage(req.Stage)
	if stage == inspectionDomain.StageStart && rt.IsClosed() {
		return nil, domain.NewInvalidStateError(string(rt.Status()), "start inspection")
	}

	photo, err := inspectionDomain.NewPhoto(rentalID, rt.VehicleID(), userID, stage, req.PhotoURL, req.Damage, req.Note)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, photo); err != nil {
		return nil, err
	}

	s.logger.Info("inspection photo uploaded",
		zap.String("rental_id", rentalID.String()),
		zap.String("stage", req.Stage),
		zap.Bool("damage", req.Damage),
	)
	return toInspectionPhotoDTO(photo), nil
}

// GetRentalPhotos returns all photos for a rental.
func (s *InspectionService) GetRentalPhotos(ctx context.Context, rentalID uuid.UUID) ([]*InspectionPhotoDTO, error) {
	photos, err := s.repo.FindByRentalID(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	dtos := make([]*InspectionPhotoDTO, len(photos))
	for i, p := range photos {
		dtos[i] = toInspectionPhotoDTO(p)
	}
	return dtos, nil
}

func toInspectionPhotoDTO(p *inspectionDomain.Photo) *InspectionPhotoDTO {
	return &InspectionPhotoDTO{
		ID:        p.ID(),
		RentalID:  p.RentalID(),
		VehicleID: p.VehicleID(),
		UserID:    p.UserID(),
		Stage:     string(p.Stage()),
		PhotoURL:  p.PhotoURL(),
		Damage:    p.Damage(),
		Note:      p.Note(),
		TakenAt:   p.TakenAt(),
		CreatedAt: p.CreatedAt(),
	}
}
