package patients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/rxera/rxledger-backend/internal/sequencer"
	"github.com/rxera/rxledger-backend/pkg/db/models"
	"github.com/rxera/rxledger-backend/pkg/enums"
	pkgerrors "github.com/rxera/rxledger-backend/pkg/errors"
	"github.com/rxera/rxledger-backend/pkg/pagination"
)

// Service exposes the patient registry.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*PatientDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*PatientDTO, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*PatientDTO, error)
}

// RegisterInput holds the validated intake payload.
type RegisterInput struct {
	FirstName      string
	LastName       string
	Age            int
	Gender         string
	Phone          string
	Email          *string
	Address        *string
	MedicalHistory *string
	Allergies      []string
}

// UpdateInput carries optional registry edits.
type UpdateInput struct {
	FirstName      *string
	LastName       *string
	Age            *int
	Gender         *string
	Phone          *string
	Email          *string
	Address        *string
	MedicalHistory *string
	Allergies      *[]string
	Status         *string
}

// ListInput mirrors the registry query surface.
type ListInput struct {
	Search string
	Status string
	Limit  int
	Cursor string
}

type codeIssuer interface {
	Next(ctx context.Context, series string) (string, error)
}

type registryEvents interface {
	PatientRegistered(ctx context.Context, patient models.Patient)
}

type service struct {
	repo   *Repository
	codes  codeIssuer
	events registryEvents
}

// NewService constructs the patient registry service. events may be nil.
func NewService(repo *Repository, codes codeIssuer, events registryEvents) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("patient repository required")
	}
	if codes == nil {
		return nil, fmt.Errorf("code issuer required")
	}
	return &service{repo: repo, codes: codes, events: events}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*PatientDTO, error) {
	if err := validateRegister(input); err != nil {
		return nil, err
	}

	code, err := s.codes.Next(ctx, sequencer.SeriesPatient)
	if err != nil {
		return nil, err
	}

	patient := &models.Patient{
		ID:             uuid.New(),
		Code:           code,
		FirstName:      strings.TrimSpace(input.FirstName),
		LastName:       strings.TrimSpace(input.LastName),
		Age:            input.Age,
		Gender:         input.Gender,
		Phone:          strings.TrimSpace(input.Phone),
		Email:          input.Email,
		Address:        input.Address,
		MedicalHistory: input.MedicalHistory,
		Allergies:      pq.StringArray(input.Allergies),
		Status:         enums.PatientStatusActive,
	}
	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "db: insert patient")
	}

	if s.events != nil {
		s.events.PatientRegistered(ctx, *patient)
	}
	dto := toPatientDTO(*patient)
	return &dto, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*PatientDTO, error) {
	patient, err := s.findPatient(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toPatientDTO(*patient)
	return &dto, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	var status enums.PatientStatus
	if input.Status != "" {
		parsed, err := enums.ParsePatientStatus(input.Status)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown patient status").
				WithDetails(map[string]any{"status": input.Status})
		}
		status = parsed
	}

	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(input.Limit)
	rows, err := s.repo.List(ctx, ListFilter{
		Search: strings.TrimSpace(input.Search),
		Status: status,
		Limit:  limit + 1,
		Cursor: cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "db: list patients")
	}

	result := &ListResult{}
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[limit-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	result.Patients = toPatientDTOs(rows)
	return result, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*PatientDTO, error) {
	if _, err := s.findPatient(ctx, id); err != nil {
		return nil, err
	}

	fields, err := updateFields(input)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "db: update patient")
		}
	}

	patient, err := s.findPatient(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toPatientDTO(*patient)
	return &dto, nil
}

func (s *service) findPatient(ctx context.Context, id uuid.UUID) (*models.Patient, error) {
	patient, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "patient not found").
				WithDetails(map[string]any{"patient_id": id})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "db: load patient")
	}
	return patient, nil
}

func validateRegister(input RegisterInput) error {
	if strings.TrimSpace(input.FirstName) == "" || strings.TrimSpace(input.LastName) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "first and last name required")
	}
	if input.Age < 0 || input.Age > 150 {
		return pkgerrors.New(pkgerrors.CodeValidation, "age out of range")
	}
	if strings.TrimSpace(input.Phone) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "phone required")
	}
	return nil
}

func updateFields(input UpdateInput) (map[string]any, error) {
	fields := map[string]any{}
	if input.FirstName != nil {
		if strings.TrimSpace(*input.FirstName) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "first name cannot be empty")
		}
		fields["first_name"] = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		if strings.TrimSpace(*input.LastName) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "last name cannot be empty")
		}
		fields["last_name"] = strings.TrimSpace(*input.LastName)
	}
	if input.Age != nil {
		if *input.Age < 0 || *input.Age > 150 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "age out of range")
		}
		fields["age"] = *input.Age
	}
	if input.Gender != nil {
		fields["gender"] = *input.Gender
	}
	if input.Phone != nil {
		fields["phone"] = *input.Phone
	}
	if input.Email != nil {
		fields["email"] = *input.Email
	}
	if input.Address != nil {
		fields["address"] = *input.Address
	}
	if input.MedicalHistory != nil {
		fields["medical_history"] = *input.MedicalHistory
	}
	if input.Allergies != nil {
		fields["allergies"] = pq.StringArray(*input.Allergies)
	}
	if input.Status != nil {
		status, err := enums.ParsePatientStatus(*input.Status)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown patient status").
				WithDetails(map[string]any{"status": *input.Status})
		}
		fields["status"] = status
	}
	return fields, nil
}
