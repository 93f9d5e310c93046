package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/rxera/rxledger-backend/pkg/enums"
)

// Patient is the registry record referenced by prescriptions.
type Patient struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code           string              `gorm:"column:code;not null;uniqueIndex"`
	FirstName      string              `gorm:"column:first_name;not null"`
	LastName       string              `gorm:"column:last_name;not null"`
	Age            int                 `gorm:"column:age;not null"`
	Gender         string              `gorm:"column:gender;not null"`
	Phone          string              `gorm:"column:phone;not null"`
	Email          *string             `gorm:"column:email"`
	Address        *string             `gorm:"column:address"`
	MedicalHistory *string             `gorm:"column:medical_history"`
	Allergies      pq.StringArray      `gorm:"column:allergies;type:text[]"`
	Status         enums.PatientStatus `gorm:"column:status;type:text;not null;default:'Active'"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// FullName joins the name parts the way the intake forms display them.
func (p Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}
