package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rxera/rxledger-backend/api/responses"
	"github.com/rxera/rxledger-backend/api/validators"
	rxsvc "github.com/rxera/rxledger-backend/internal/prescriptions"
	"github.com/rxera/rxledger-backend/internal/translog"
	pkgerrors "github.com/rxera/rxledger-backend/pkg/errors"
	"github.com/rxera/rxledger-backend/pkg/logger"
	"github.com/rxera/rxledger-backend/pkg/pagination"
)

// CreatePrescription fulfills a prescription: one atomic commit covers the
// prescription row, its medication lines and every stock deduction.
func CreatePrescription(svc rxsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "prescription service unavailable"))
			return
		}

		actorID, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createPrescriptionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toCreateInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rx, err := svc.Create(r.Context(), actorID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, rx)
	}
}

func GetPrescription(svc rxsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "prescriptionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rx, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, rx)
	}
}

func ListPrescriptions(svc rxsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := rxsvc.ListInput{
			Status: strings.TrimSpace(r.URL.Query().Get("status")),
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("patient_id")); raw != "" {
			patientID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid patient id"))
				return
			}
			input.PatientID = &patientID
		}

		result, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// CompletePrescription marks an active prescription completed. The transition
// is one way and happens at most once.
func CompletePrescription(svc rxsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "prescriptionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rx, err := svc.Complete(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, rx)
	}
}

// PrescriptionTransactions returns every stock deduction a fulfillment
// produced, oldest first.
func PrescriptionTransactions(svc *translog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "prescriptionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txns, err := svc.ListByPrescription(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"transactions": translog.ToTransactionDTOs(txns),
		})
	}
}

type createPrescriptionRequest struct {
	PatientID    string                    `json:"patient_id" validate:"required,uuid"`
	DoctorID     string                    `json:"doctor_id" validate:"required,uuid"`
	Diagnosis    string                    `json:"diagnosis" validate:"required"`
	Instructions *string                   `json:"instructions,omitempty"`
	Date         *time.Time                `json:"date,omitempty"`
	Medications  []createMedicationRequest `json:"medications" validate:"required,min=1,dive"`
}

type createMedicationRequest struct {
	ItemID    string  `json:"item_id" validate:"required,uuid"`
	Dosage    string  `json:"dosage" validate:"required"`
	Frequency string  `json:"frequency" validate:"required"`
	Duration  string  `json:"duration" validate:"required"`
	Quantity  int     `json:"quantity" validate:"required,gt=0"`
	Notes     *string `json:"notes,omitempty"`
}

func (r createPrescriptionRequest) toCreateInput() (rxsvc.CreateInput, error) {
	patientID, err := uuid.Parse(strings.TrimSpace(r.PatientID))
	if err != nil {
		return rxsvc.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid patient id")
	}
	doctorID, err := uuid.Parse(strings.TrimSpace(r.DoctorID))
	if err != nil {
		return rxsvc.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid doctor id")
	}

	meds := make([]rxsvc.MedicationInput, 0, len(r.Medications))
	for _, med := range r.Medications {
		itemID, err := uuid.Parse(strings.TrimSpace(med.ItemID))
		if err != nil {
			return rxsvc.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id")
		}
		meds = append(meds, rxsvc.MedicationInput{
			ItemID:    itemID,
			Dosage:    strings.TrimSpace(med.Dosage),
			Frequency: strings.TrimSpace(med.Frequency),
			Duration:  strings.TrimSpace(med.Duration),
			Quantity:  med.Quantity,
			Notes:     med.Notes,
		})
	}

	input := rxsvc.CreateInput{
		PatientID:    patientID,
		DoctorID:     doctorID,
		Diagnosis:    strings.TrimSpace(r.Diagnosis),
		Instructions: r.Instructions,
		Medications:  meds,
	}
	if r.Date != nil {
		input.Date = *r.Date
	}
	return input, nil
}
