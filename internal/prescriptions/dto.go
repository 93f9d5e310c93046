package prescriptions

import (
	"time"

	"github.com/google/uuid"

	"github.com/rxera/rxledger-backend/pkg/db/models"
	"github.com/rxera/rxledger-backend/pkg/enums"
)

// PrescriptionDTO is the read view of a fulfilled prescription.
type PrescriptionDTO struct {
	ID           uuid.UUID       `json:"id"`
	Code         string          `json:"code"`
	PatientID    uuid.UUID       `json:"patient_id"`
	DoctorID     uuid.UUID       `json:"doctor_id"`
	Diagnosis    string          `json:"diagnosis"`
	Instructions *string         `json:"instructions,omitempty"`
	Status       string          `json:"status"`
	Date         time.Time       `json:"date"`
	Medications  []MedicationDTO `json:"medications,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// MedicationDTO is one dispensed line with its catalog snapshot.
type MedicationDTO struct {
	ID        uuid.UUID `json:"id"`
	ItemID    uuid.UUID `json:"item_id"`
	ItemCode  string    `json:"item_code"`
	ItemName  string    `json:"item_name"`
	Dosage    string    `json:"dosage"`
	Frequency string    `json:"frequency"`
	Duration  string    `json:"duration"`
	Quantity  int       `json:"quantity"`
	Notes     *string   `json:"notes,omitempty"`
}

// ListResult is one page of prescriptions plus the next cursor.
type ListResult struct {
	Prescriptions []PrescriptionDTO `json:"prescriptions"`
	NextCursor    string            `json:"next_cursor,omitempty"`
}

func toPrescriptionDTO(rx models.Prescription) PrescriptionDTO {
	dto := PrescriptionDTO{
		ID:           rx.ID,
		Code:         rx.Code,
		PatientID:    rx.PatientID,
		DoctorID:     rx.DoctorID,
		Diagnosis:    rx.Diagnosis,
		Instructions: rx.Instructions,
		Status:       string(rx.Status),
		Date:         rx.Date,
		CreatedAt:    rx.CreatedAt,
		UpdatedAt:    rx.UpdatedAt,
	}
	for _, med := range rx.Medications {
		dto.Medications = append(dto.Medications, MedicationDTO{
			ID:        med.ID,
			ItemID:    med.ItemID,
			ItemCode:  med.ItemCode,
			ItemName:  med.ItemName,
			Dosage:    med.Dosage,
			Frequency: med.Frequency,
			Duration:  med.Duration,
			Quantity:  med.Quantity,
			Notes:     med.Notes,
		})
	}
	return dto
}

func toPrescriptionDTOs(rxs []models.Prescription) []PrescriptionDTO {
	dtos := make([]PrescriptionDTO, len(rxs))
	for i, rx := range rxs {
		dtos[i] = toPrescriptionDTO(rx)
	}
	return dtos
}

func statusFilter(value string) (enums.PrescriptionStatus, bool) {
	if value == "" {
		return "", true
	}
	status, err := enums.ParsePrescriptionStatus(value)
	if err != nil {
		return "", false
	}
	return status, true
}
