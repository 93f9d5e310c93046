package sequencer

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	pkgerrors "github.com/rxera/rxledger-backend/pkg/errors"
)

// Series names the independent counters. The prefix doubles as the counter's
// primary key in sequence_counters.
const (
	SeriesMedicine     = "MED"
	SeriesPrescription = "RX"
	SeriesPatient      = "PAT"
)

// Service hands out gapless-enough display codes (MED001, RX042, ...) backed
// by a single-statement atomic counter bump. Codes widen past three digits
// naturally once a series crosses 999.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "sequencer db required")
	}
	return &Service{db: db}, nil
}

// WithTx scopes the sequencer to an open transaction so a drawn code rolls
// back together with the rows that would have used it.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{db: tx}
}

// Next bumps the series counter and returns the formatted code. The upsert is
// one statement, so two concurrent calls can never observe the same value.
func (s *Service) Next(ctx context.Context, series string) (string, error) {
	if !validSeries(series) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unknown code series").
			WithDetails(map[string]any{"series": series})
	}

	var value int64
	err := s.db.WithContext(ctx).Raw(`
INSERT INTO sequence_counters (name, value, updated_at)
VALUES (?, 1, CURRENT_TIMESTAMP)
ON CONFLICT (name) DO UPDATE
SET value = sequence_counters.value + 1, updated_at = CURRENT_TIMESTAMP
RETURNING value`, series).Scan(&value).Error
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, err, "bump sequence counter")
	}
	return Format(series, value), nil
}

// NextInTx draws the next code inside an open transaction.
func (s *Service) NextInTx(ctx context.Context, tx *gorm.DB, series string) (string, error) {
	return s.WithTx(tx).Next(ctx, series)
}

// Format renders a counter value as a display code, zero padded to three digits.
func Format(series string, value int64) string {
	return fmt.Sprintf("%s%03d", series, value)
}

func validSeries(series string) bool {
	switch series {
	case SeriesMedicine, SeriesPrescription, SeriesPatient:
		return true
	}
	return false
}
