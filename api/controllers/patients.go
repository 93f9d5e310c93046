package controllers

import (
	"net/http"
	"strings"

	"github.com/rxera/rxledger-backend/api/responses"
	"github.com/rxera/rxledger-backend/api/validators"
	patsvc "github.com/rxera/rxledger-backend/internal/patients"
	pkgerrors "github.com/rxera/rxledger-backend/pkg/errors"
	"github.com/rxera/rxledger-backend/pkg/logger"
	"github.com/rxera/rxledger-backend/pkg/pagination"
)

func RegisterPatient(svc patsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "patient service unavailable"))
			return
		}

		var payload registerPatientRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		patient, err := svc.Register(r.Context(), payload.toRegisterInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, patient)
	}
}

func GetPatient(svc patsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "patientID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		patient, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, patient)
	}
}

func ListPatients(svc patsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), patsvc.ListInput{
			Search: strings.TrimSpace(r.URL.Query().Get("search")),
			Status: strings.TrimSpace(r.URL.Query().Get("status")),
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

func UpdatePatient(svc patsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "patientID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updatePatientRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		patient, err := svc.Update(r.Context(), id, payload.toUpdateInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, patient)
	}
}

type registerPatientRequest struct {
	FirstName      string   `json:"first_name" validate:"required"`
	LastName       string   `json:"last_name" validate:"required"`
	Age            int      `json:"age" validate:"required,min=0"`
	Gender         string   `json:"gender" validate:"required"`
	Phone          string   `json:"phone" validate:"required"`
	Email          *string  `json:"email,omitempty" validate:"omitempty,email"`
	Address        *string  `json:"address,omitempty"`
	MedicalHistory *string  `json:"medical_history,omitempty"`
	Allergies      []string `json:"allergies,omitempty"`
}

func (r registerPatientRequest) toRegisterInput() patsvc.RegisterInput {
	return patsvc.RegisterInput{
		FirstName:      strings.TrimSpace(r.FirstName),
		LastName:       strings.TrimSpace(r.LastName),
		Age:            r.Age,
		Gender:         strings.TrimSpace(r.Gender),
		Phone:          strings.TrimSpace(r.Phone),
		Email:          r.Email,
		Address:        r.Address,
		MedicalHistory: r.MedicalHistory,
		Allergies:      r.Allergies,
	}
}

type updatePatientRequest struct {
	FirstName      *string   `json:"first_name,omitempty"`
	LastName       *string   `json:"last_name,omitempty"`
	Age            *int      `json:"age,omitempty" validate:"omitempty,min=0"`
	Gender         *string   `json:"gender,omitempty"`
	Phone          *string   `json:"phone,omitempty"`
	Email          *string   `json:"email,omitempty" validate:"omitempty,email"`
	Address        *string   `json:"address,omitempty"`
	MedicalHistory *string   `json:"medical_history,omitempty"`
	Allergies      *[]string `json:"allergies,omitempty"`
	Status         *string   `json:"status,omitempty"`
}

func (r updatePatientRequest) toUpdateInput() patsvc.UpdateInput {
	return patsvc.UpdateInput{
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Age:            r.Age,
		Gender:         r.Gender,
		Phone:          r.Phone,
		Email:          r.Email,
		Address:        r.Address,
		MedicalHistory: r.MedicalHistory,
		Allergies:      r.Allergies,
		Status:         r.Status,
	}
}
