package dashboard

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/rxera/rxledger-backend/pkg/db/models"
	"github.com/rxera/rxledger-backend/pkg/enums"
	pkgerrors "github.com/rxera/rxledger-backend/pkg/errors"
)

// Stats is the operational overview shown on the landing screen.
type Stats struct {
	TotalItems             int64           `json:"total_items"`
	LowStockItems          int64           `json:"low_stock_items"`
	InventoryValue         decimal.Decimal `json:"inventory_value"`
	ActivePatients         int64           `json:"active_patients"`
	ActivePrescriptions    int64           `json:"active_prescriptions"`
	CompletedPrescriptions int64           `json:"completed_prescriptions"`
	TransactionsToday      int64           `json:"transactions_today"`
	GeneratedAt            time.Time       `json:"generated_at"`
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "dashboard db required")
	}
	return &Service{db: db}, nil
}

// Overview runs every stat query and reports them together; individual
// failures are collected so one broken query surfaces alongside the rest.
func (s *Service) Overview(ctx context.Context) (*Stats, error) {
	stats := &Stats{GeneratedAt: time.Now().UTC()}
	var errs error

	errs = multierr.Append(errs, s.db.WithContext(ctx).
		Model(&models.StockItem{}).
		Where("retired_at IS NULL").
		Count(&stats.TotalItems).Error)

	errs = multierr.Append(errs, s.db.WithContext(ctx).
		Model(&models.StockItem{}).
		Where("retired_at IS NULL AND stock < threshold").
		Count(&stats.LowStockItems).Error)

	value, err := s.inventoryValue(ctx)
	errs = multierr.Append(errs, err)
	stats.InventoryValue = value

	errs = multierr.Append(errs, s.db.WithContext(ctx).
		Model(&models.Patient{}).
		Where("status = ?", enums.PatientStatusActive).
		Count(&stats.ActivePatients).Error)

	errs = multierr.Append(errs, s.db.WithContext(ctx).
		Model(&models.Prescription{}).
		Where("status = ?", enums.PrescriptionStatusActive).
		Count(&stats.ActivePrescriptions).Error)

	errs = multierr.Append(errs, s.db.WithContext(ctx).
		Model(&models.Prescription{}).
		Where("status = ?", enums.PrescriptionStatusCompleted).
		Count(&stats.CompletedPrescriptions).Error)

	dayStart := stats.GeneratedAt.Truncate(24 * time.Hour)
	errs = multierr.Append(errs, s.db.WithContext(ctx).
		Model(&models.StockTransaction{}).
		Where("created_at >= ?", dayStart).
		Count(&stats.TransactionsToday).Error)

	if errs != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStoreUnavailable, errs, "collect dashboard stats")
	}
	return stats, nil
}

// inventoryValue sums stock * unit_price across active items in Go so the
// numeric column keeps decimal precision end to end.
func (s *Service) inventoryValue(ctx context.Context) (decimal.Decimal, error) {
	var rows []struct {
		Stock     int
		UnitPrice decimal.Decimal
	}
	err := s.db.WithContext(ctx).
		Model(&models.StockItem{}).
		Select("stock", "unit_price").
		Where("retired_at IS NULL").
		Find(&rows).Error
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.UnitPrice.Mul(decimal.NewFromInt(int64(row.Stock))))
	}
	return total, nil
}
