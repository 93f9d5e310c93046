package patients

import (
	"time"

	"github.com/google/uuid"

	"github.com/rxera/rxledger-backend/pkg/db/models"
)

// PatientDTO is the registry view of a patient.
type PatientDTO struct {
	ID             uuid.UUID `json:"id"`
	Code           string    `json:"code"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	FullName       string    `json:"full_name"`
	Age            int       `json:"age"`
	Gender         string    `json:"gender"`
	Phone          string    `json:"phone"`
	Email          *string   `json:"email,omitempty"`
	Address        *string   `json:"address,omitempty"`
	MedicalHistory *string   `json:"medical_history,omitempty"`
	Allergies      []string  `json:"allergies,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ListResult is one page of patients plus the next cursor.
type ListResult struct {
	Patients   []PatientDTO `json:"patients"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func toPatientDTO(p models.Patient) PatientDTO {
	return PatientDTO{
		ID:             p.ID,
		Code:           p.Code,
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		FullName:       p.FullName(),
		Age:            p.Age,
		Gender:         p.Gender,
		Phone:          p.Phone,
		Email:          p.Email,
		Address:        p.Address,
		MedicalHistory: p.MedicalHistory,
		Allergies:      p.Allergies,
		Status:         string(p.Status),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func toPatientDTOs(rows []models.Patient) []PatientDTO {
	dtos := make([]PatientDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toPatientDTO(row)
	}
	return dtos
}
