package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/rxera/rxledger-backend/pkg/enums"
)

// Prescription is created atomically with its stock deductions; a rejected
// fulfillment leaves no row behind.
type Prescription struct {
	ID           uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code         string                   `gorm:"column:code;not null;uniqueIndex"`
	PatientID    uuid.UUID                `gorm:"column:patient_id;type:uuid;not null;index"`
	DoctorID     uuid.UUID                `gorm:"column:doctor_id;type:uuid;not null"`
	Diagnosis    string                   `gorm:"column:diagnosis;not null"`
	Instructions *string                  `gorm:"column:instructions"`
	Status       enums.PrescriptionStatus `gorm:"column:status;type:text;not null;default:'Active'"`
	Date         time.Time                `gorm:"column:date;not null"`
	Medications  []PrescriptionMedication `gorm:"foreignKey:PrescriptionID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
