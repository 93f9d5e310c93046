package prescriptions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rxera/rxledger-backend/internal/ledger"
	"github.com/rxera/rxledger-backend/internal/sequencer"
	"github.com/rxera/rxledger-backend/pkg/db"
	"github.com/rxera/rxledger-backend/pkg/db/models"
	"github.com/rxera/rxledger-backend/pkg/enums"
	pkgerrors "github.com/rxera/rxledger-backend/pkg/errors"
	"github.com/rxera/rxledger-backend/pkg/logger"
	"github.com/rxera/rxledger-backend/pkg/pagination"
)

const opFulfillment = "fulfillment"

// Service coordinates prescription fulfillment: the prescription row, its
// medication lines and every stock deduction commit together or not at all.
type Service interface {
	Create(ctx context.Context, actorID uuid.UUID, input CreateInput) (*PrescriptionDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*PrescriptionDTO, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
	Complete(ctx context.Context, id uuid.UUID) (*PrescriptionDTO, error)
}

// MedicationInput is one requested line of a new prescription.
type MedicationInput struct {
	ItemID    uuid.UUID
	Dosage    string
	Frequency string
	Duration  string
	Quantity  int
	Notes     *string
}

// CreateInput holds the validated payload for a fulfillment.
type CreateInput struct {
	PatientID    uuid.UUID
	DoctorID     uuid.UUID
	Diagnosis    string
	Instructions *string
	Date         time.Time
	Medications  []MedicationInput
}

// ListInput mirrors the prescription query surface.
type ListInput struct {
	PatientID *uuid.UUID
	Status    string
	Limit     int
	Cursor    string
}

type stockLedger interface {
	ConsumeInTx(ctx context.Context, tx ledger.StoreTx, lines []ledger.Line, actorID uuid.UUID, prescriptionID *uuid.UUID) ([]models.StockTransaction, []models.StockItem, error)
	CommitAttempts() int
	RecordConflict(op string)
	PublishChanges(ctx context.Context, items []models.StockItem, txns []models.StockTransaction)
}

type codeIssuer interface {
	NextInTx(ctx context.Context, tx *gorm.DB, series string) (string, error)
}

type patientChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type fulfillmentEvents interface {
	PrescriptionCreated(ctx context.Context, rx models.Prescription)
	PrescriptionCompleted(ctx context.Context, rx models.Prescription)
}

type service struct {
	repo     *Repository
	dbClient *db.Client
	ledger   stockLedger
	codes    codeIssuer
	patients patientChecker
	events   fulfillmentEvents
	logg     *logger.Logger
}

// ServiceParams wires the coordinator dependencies. Events and Logger may be nil.
type ServiceParams struct {
	Repo     *Repository
	DBClient *db.Client
	Ledger   stockLedger
	Codes    codeIssuer
	Patients patientChecker
	Events   fulfillmentEvents
	Logger   *logger.Logger
}

func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("prescription repository required")
	}
	if p.DBClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if p.Ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if p.Codes == nil {
		return nil, fmt.Errorf("code issuer required")
	}
	if p.Patients == nil {
		return nil, fmt.Errorf("patient checker required")
	}
	return &service{
		repo:     p.Repo,
		dbClient: p.DBClient,
		ledger:   p.Ledger,
		codes:    p.Codes,
		patients: p.Patients,
		events:   p.Events,
		logg:     p.Logger,
	}, nil
}

// Create fulfills the prescription. Each attempt opens one transaction that
// draws the RX code, deducts every medication through the ledger and inserts
// the prescription with its lines; a lost version race rolls the whole
// attempt back and tries again up to the ledger's bound.
func (s *service) Create(ctx context.Context, actorID uuid.UUID, input CreateInput) (*PrescriptionDTO, error) {
	if err := validateCreate(actorID, input); err != nil {
		return nil, err
	}

	exists, err := s.patients.Exists(ctx, input.PatientID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "check patient")
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "patient not found").
			WithDetails(map[string]any{"patient_id": input.PatientID})
	}

	date := input.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	lines := make([]ledger.Line, len(input.Medications))
	for i, med := range input.Medications {
		lines[i] = ledger.Line{ItemID: med.ItemID, Quantity: med.Quantity}
	}

	attempts := s.ledger.CommitAttempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		rxID := uuid.New()
		var (
			created *models.Prescription
			txns    []models.StockTransaction
			items   []models.StockItem
		)

		err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
			code, err := s.codes.NextInTx(ctx, tx, sequencer.SeriesPrescription)
			if err != nil {
				return err
			}

			txns, items, err = s.ledger.ConsumeInTx(ctx, ledger.NewGormStoreTx(tx), lines, actorID, &rxID)
			if err != nil {
				return err
			}

			itemByID := make(map[uuid.UUID]models.StockItem, len(items))
			for _, item := range items {
				itemByID[item.ID] = item
			}

			rx := &models.Prescription{
				ID:           rxID,
				Code:         code,
				PatientID:    input.PatientID,
				DoctorID:     input.DoctorID,
				Diagnosis:    strings.TrimSpace(input.Diagnosis),
				Instructions: input.Instructions,
				Status:       enums.PrescriptionStatusActive,
				Date:         date,
			}
			for _, med := range input.Medications {
				item := itemByID[med.ItemID]
				rx.Medications = append(rx.Medications, models.PrescriptionMedication{
					ID:             uuid.New(),
					PrescriptionID: rxID,
					ItemID:         med.ItemID,
					ItemCode:       item.Code,
					ItemName:       item.Name,
					Dosage:         med.Dosage,
					Frequency:      med.Frequency,
					Duration:       med.Duration,
					Quantity:       med.Quantity,
					Notes:          med.Notes,
				})
			}

			if err := s.repo.WithTx(tx).Create(ctx, rx); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "db: insert prescription")
			}
			created = rx
			return nil
		})
		if err == nil {
			s.ledger.PublishChanges(ctx, items, txns)
			if s.events != nil {
				s.events.PrescriptionCreated(ctx, *created)
			}
			dto := toPrescriptionDTO(*created)
			return &dto, nil
		}
		if !errors.Is(err, ledger.ErrConflict) {
			return nil, err
		}
		s.ledger.RecordConflict(opFulfillment)
		lastErr = err
		if s.logg != nil {
			s.logg.Debug(ctx, "fulfillment lost version race, retrying")
		}
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeConcurrencyConflict, lastErr, "fulfillment kept losing to concurrent writers")
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*PrescriptionDTO, error) {
	rx, err := s.findPrescription(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toPrescriptionDTO(*rx)
	return &dto, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	status, ok := statusFilter(input.Status)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown prescription status").
			WithDetails(map[string]any{"status": input.Status})
	}
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(input.Limit)
	rxs, err := s.repo.List(ctx, ListFilter{
		PatientID: input.PatientID,
		Status:    status,
		Limit:     limit + 1,
		Cursor:    cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "db: list prescriptions")
	}

	result := &ListResult{}
	if len(rxs) > limit {
		rxs = rxs[:limit]
		last := rxs[limit-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	result.Prescriptions = toPrescriptionDTOs(rxs)
	return result, nil
}

// Complete transitions an Active prescription to Completed.
func (s *service) Complete(ctx context.Context, id uuid.UUID) (*PrescriptionDTO, error) {
	rx, err := s.findPrescription(ctx, id)
	if err != nil {
		return nil, err
	}
	if rx.Status != enums.PrescriptionStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "prescription is not active").
			WithDetails(map[string]any{"prescription_id": rx.ID, "status": rx.Status})
	}

	touched, err := s.repo.MarkCompleted(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "db: complete prescription")
	}
	if touched == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "prescription is not active").
			WithDetails(map[string]any{"prescription_id": rx.ID})
	}

	rx.Status = enums.PrescriptionStatusCompleted
	if s.events != nil {
		s.events.PrescriptionCompleted(ctx, *rx)
	}
	dto := toPrescriptionDTO(*rx)
	return &dto, nil
}

func (s *service) findPrescription(ctx context.Context, id uuid.UUID) (*models.Prescription, error) {
	rx, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "prescription not found").
				WithDetails(map[string]any{"prescription_id": id})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "db: load prescription")
	}
	return rx, nil
}

func validateCreate(actorID uuid.UUID, input CreateInput) error {
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}
	if input.PatientID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "patient id required")
	}
	if input.DoctorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "doctor id required")
	}
	if strings.TrimSpace(input.Diagnosis) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "diagnosis required")
	}
	if len(input.Medications) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one medication required")
	}
	for _, med := range input.Medications {
		if med.ItemID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "medication item id required")
		}
		if med.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeInvalidQuantity, "medication quantity must be positive").
				WithDetails(map[string]any{"item_id": med.ItemID, "quantity": med.Quantity})
		}
		if strings.TrimSpace(med.Dosage) == "" || strings.TrimSpace(med.Frequency) == "" || strings.TrimSpace(med.Duration) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "medication dosage, frequency and duration required").
				WithDetails(map[string]any{"item_id": med.ItemID})
		}
	}
	return nil
}
