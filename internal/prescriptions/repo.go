package prescriptions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rxera/rxledger-backend/pkg/db/models"
	"github.com/rxera/rxledger-backend/pkg/enums"
	"github.com/rxera/rxledger-backend/pkg/pagination"
)

// ListFilter narrows the prescription listing.
type ListFilter struct {
	PatientID *uuid.UUID
	Status    enums.PrescriptionStatus
	Limit     int
	Cursor    *pagination.Cursor
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts the prescription and its medication lines.
func (r *Repository) Create(ctx context.Context, rx *models.Prescription) error {
	return r.db.WithContext(ctx).Create(rx).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Prescription, error) {
	var rx models.Prescription
	err := r.db.WithContext(ctx).
		Preload("Medications").
		First(&rx, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &rx, nil
}

func (r *Repository) List(ctx context.Context, filter ListFilter) ([]models.Prescription, error) {
	q := r.db.WithContext(ctx).Model(&models.Prescription{}).Preload("Medications")

	if filter.PatientID != nil {
		q = q.Where("patient_id = ?", *filter.PatientID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Cursor != nil {
		q = q.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt, filter.Cursor.CreatedAt, filter.Cursor.ID,
		)
	}

	var rxs []models.Prescription
	if err := q.Order("created_at DESC, id DESC").Limit(filter.Limit).Find(&rxs).Error; err != nil {
		return nil, err
	}
	return rxs, nil
}

// MarkCompleted transitions Active to Completed. The guard in the WHERE
// clause makes the transition idempotence-safe; zero rows means the row was
// missing or already terminal.
func (r *Repository) MarkCompleted(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Prescription{}).
		Where("id = ? AND status = ?", id, enums.PrescriptionStatusActive).
		Update("status", enums.PrescriptionStatusCompleted)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
