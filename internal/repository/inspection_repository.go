package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Kilat-Mobility/service-journey/internal/common/domain"
	inspectionDomain "github.com/Kilat-Mobility/service-journey/internal/domain/inspection"
)

// InspectionPhotoModel is the GORM model for the inspection_photos table.
type InspectionPhotoModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	RentalID  uuid.UUID `gorm:"type:uuid;not null;index"`
	VehicleID uuid.UUID `gorm:"type:uuid;not null;index"`
	UserID    uuid.UUID `gorm:"type:uuid;not null"`
	Stage     string    `gorm:"type:varchar(10);not null"`
	PhotoURL  string    `gorm:"type:text;not null"`
	Damage    bool      `gorm:"not null;default:false"`
	Note      string    `gorm:"type:text"`
	TakenAt   time.Time `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName sets the table name.
func (InspectionPhotoModel) TableName() string { return "inspection_photos" }

// GormInspectionRepository implements inspection.PhotoRepository using GORM.
type GormInspectionRepository struct {
	db *gorm.DB
}

// NewGormInspectionRepository creates a new GormInspectionRepository.
func NewGormInspectionRepository(db *gorm.DB) *GormInspectionRepository {
	return &GormInspectionRepository{db: db}
}

// Save persists a new inspection photo.
func (r *GormInspectionRepository) Save(ctx context.Context, photo *inspectionDomain.Photo) error {
	model := toInspectionModel(photo)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to save inspection photo: %w", err)
	}
	return nil
}

// FindByRentalID returns all photos of a rental, oldest first.
func (r *GormInspectionRepository) FindByRentalID(ctx context.Context, rentalID uuid.UUID) ([]*inspectionDomain.Photo, error) {
	var models []InspectionPhotoModel
	if err := r.db.WithContext(ctx).Where("rental_id = ?", rentalID).Order("taken_at ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find inspection photos: %w", err)
	}

	photos := make([]*inspectionDomain.Photo, len(models))
	for i := range models {
		photos[i] = toInspectionDomain(&models[i])
	}
	return photos, nil
}

// FindByID returns a single photo by ID.
func (r *GormInspectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*inspectionDomain.Photo, error) {
	var model InspectionPhotoModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("InspectionPhoto", id.String())
		}
		return nil, fmt.Errorf("failed to find inspection photo: %w", err)
	}
	return toInspectionDomain(&model), nil
}

func toInspectionModel(p *inspectionDomain.Photo) InspectionPhotoModel {
	return InspectionPhotoModel{
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

func toInspectionDomain(m *InspectionPhotoModel) *inspectionDomain.Photo {
	return inspectionDomain.Reconstruct(
		m.ID,
		m.RentalID,
		m.VehicleID,
		m.UserID,
		inspectionDomain.Stage(m.Stage),
		m.PhotoURL,
		m.Damage,
		m.Note,
		m.TakenAt,
		m.CreatedAt,
	)
}
