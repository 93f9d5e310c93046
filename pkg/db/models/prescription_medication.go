package models

import (
	"time"

	"github.com/google/uuid"
)

// PrescriptionMedication captures one ordered line of a prescription.
type PrescriptionMedication struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PrescriptionID uuid.UUID `gorm:"column:prescription_id;type:uuid;not null;index"`
	ItemID         uuid.UUID `gorm:"column:item_id;type:uuid;not null"`
	ItemCode       string    `gorm:"column:item_code;not null"`
	ItemName       string    `gorm:"column:item_name;not null"`
	Dosage         string    `gorm:"column:dosage;not null"`
	Frequency      string    `gorm:"column:frequency;not null"`
	Duration       string    `gorm:"column:duration;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	Notes          *string   `gorm:"column:notes"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
