package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/rxera/rxledger-backend/pkg/db/models"
)

func setupDashboardTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:dashboard_test?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS stock_items (
  id TEXT PRIMARY KEY, code TEXT NOT NULL UNIQUE, name TEXT NOT NULL,
  category TEXT NOT NULL DEFAULT '', manufacturer TEXT, batch_no TEXT NOT NULL DEFAULT '',
  stock INTEGER NOT NULL DEFAULT 0, threshold INTEGER NOT NULL DEFAULT 0,
  unit TEXT NOT NULL DEFAULT '', unit_price NUMERIC NOT NULL DEFAULT 0,
  expiry_date DATETIME, version INTEGER NOT NULL DEFAULT 0, retired_at DATETIME,
  created_at DATETIME, updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS stock_transactions (
  id TEXT PRIMARY KEY, item_id TEXT NOT NULL, kind TEXT NOT NULL,
  quantity INTEGER NOT NULL, stock_before INTEGER NOT NULL, stock_after INTEGER NOT NULL,
  prescription_id TEXT, actor_id TEXT NOT NULL, created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS prescriptions (
  id TEXT PRIMARY KEY, code TEXT NOT NULL UNIQUE, patient_id TEXT NOT NULL,
  doctor_id TEXT NOT NULL, diagnosis TEXT NOT NULL, instructions TEXT,
  status TEXT NOT NULL DEFAULT 'Active', date DATETIME NOT NULL,
  created_at DATETIME, updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS patients (
  id TEXT PRIMARY KEY, code TEXT NOT NULL UNIQUE, first_name TEXT NOT NULL,
  last_name TEXT NOT NULL, age INTEGER NOT NULL, gender TEXT NOT NULL,
  phone TEXT NOT NULL, email TEXT, address TEXT, medical_history TEXT,
  allergies TEXT, status TEXT NOT NULL DEFAULT 'Active',
  created_at DATETIME, updated_at DATETIME
);`,
	} {
		require.NoError(t, conn.Exec(ddl).Error)
	}
	for _, table := range []string{"stock_items", "stock_transactions", "prescriptions", "patients"} {
		require.NoError(t, conn.Exec("DELETE FROM "+table).Error)
	}
	return conn
}

func seedStockItem(t *testing.T, conn *gorm.DB, stock, threshold int, price string, retired bool) {
	t.Helper()
	item := models.StockItem{
		ID:        uuid.New(),
		Code:      "MED" + uuid.NewString()[:8],
		Name:      "item",
		Stock:     stock,
		Threshold: threshold,
		UnitPrice: decimal.RequireFromString(price),
	}
	if retired {
		now := time.Now().UTC()
		item.RetiredAt = &now
	}
	require.NoError(t, conn.Create(&item).Error)
}

func TestOverviewCountsAndValues(t *testing.T) {
	conn := setupDashboardTestDB(t)
	svc, err := NewService(conn)
	require.NoError(t, err)

	seedStockItem(t, conn, 10, 5, "2.50", false)
	seedStockItem(t, conn, 1, 5, "10.00", false)
	seedStockItem(t, conn, 100, 5, "99.99", true)

	require.NoError(t, conn.Create(&models.Patient{
		ID: uuid.New(), Code: "PAT001", FirstName: "Ana", LastName: "Reyes",
		Age: 40, Gender: "female", Phone: "555", Status: "Active",
	}).Error)
	require.NoError(t, conn.Create(&models.Patient{
		ID: uuid.New(), Code: "PAT002", FirstName: "Leo", LastName: "Cruz",
		Age: 51, Gender: "male", Phone: "556", Status: "Inactive",
	}).Error)

	require.NoError(t, conn.Create(&models.Prescription{
		ID: uuid.New(), Code: "RX001", PatientID: uuid.New(), DoctorID: uuid.New(),
		Diagnosis: "flu", Status: "Active", Date: time.Now().UTC(),
	}).Error)
	require.NoError(t, conn.Create(&models.Prescription{
		ID: uuid.New(), Code: "RX002", PatientID: uuid.New(), DoctorID: uuid.New(),
		Diagnosis: "cough", Status: "Completed", Date: time.Now().UTC(),
	}).Error)

	require.NoError(t, conn.Create(&models.StockTransaction{
		ID: uuid.New(), ItemID: uuid.New(), Kind: "RESTOCK", Quantity: 5,
		StockBefore: 0, StockAfter: 5, ActorID: uuid.New(),
		CreatedAt: time.Now().UTC(),
	}).Error)
	require.NoError(t, conn.Create(&models.StockTransaction{
		ID: uuid.New(), ItemID: uuid.New(), Kind: "CONSUME", Quantity: 1,
		StockBefore: 5, StockAfter: 4, ActorID: uuid.New(),
		CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
	}).Error)

	stats, err := svc.Overview(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 2, stats.TotalItems)
	assert.EqualValues(t, 1, stats.LowStockItems)
	assert.True(t, stats.InventoryValue.Equal(decimal.RequireFromString("35.00")),
		"got %s", stats.InventoryValue)
	assert.EqualValues(t, 1, stats.ActivePatients)
	assert.EqualValues(t, 1, stats.ActivePrescriptions)
	assert.EqualValues(t, 1, stats.CompletedPrescriptions)
	assert.EqualValues(t, 1, stats.TransactionsToday)
	assert.False(t, stats.GeneratedAt.IsZero())
}

func TestOverviewOnEmptyDatabase(t *testing.T) {
	conn := setupDashboardTestDB(t)
	svc, err := NewService(conn)
	require.NoError(t, err)

	stats, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalItems)
	assert.True(t, stats.InventoryValue.IsZero())
}
