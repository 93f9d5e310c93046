package sequencer

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgerrors "github.com/rxera/rxledger-backend/pkg/errors"
)

func setupSequencerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:sequencer_test?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS sequence_counters (
  name TEXT PRIMARY KEY,
  value INTEGER NOT NULL DEFAULT 0,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	require.NoError(t, db.Exec("DELETE FROM sequence_counters").Error)
	return db
}

func TestNextStartsAtOneAndPads(t *testing.T) {
	svc, err := NewService(setupSequencerTestDB(t))
	require.NoError(t, err)

	code, err := svc.Next(context.Background(), SeriesMedicine)
	require.NoError(t, err)
	assert.Equal(t, "MED001", code)

	code, err = svc.Next(context.Background(), SeriesMedicine)
	require.NoError(t, err)
	assert.Equal(t, "MED002", code)
}

func TestSeriesCountIndependently(t *testing.T) {
	svc, err := NewService(setupSequencerTestDB(t))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = svc.Next(context.Background(), SeriesPrescription)
		require.NoError(t, err)
	}

	code, err := svc.Next(context.Background(), SeriesPatient)
	require.NoError(t, err)
	assert.Equal(t, "PAT001", code)

	code, err = svc.Next(context.Background(), SeriesPrescription)
	require.NoError(t, err)
	assert.Equal(t, "RX004", code)
}

func TestNextNeverRepeats(t *testing.T) {
	svc, err := NewService(setupSequencerTestDB(t))
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i := 0; i < 120; i++ {
		code, err := svc.Next(context.Background(), SeriesMedicine)
		require.NoError(t, err)
		require.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}

func TestNextConcurrentDrawsStayDistinctAndGapless(t *testing.T) {
	db := setupSequencerTestDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Serialize statements at the pool so sqlite never reports a busy
	// database; the goroutines still race at the call site.
	sqlDB.SetMaxOpenConns(1)

	svc, err := NewService(db)
	require.NoError(t, err)

	const workers = 24
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes []string
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			code, err := svc.Next(context.Background(), SeriesPrescription)
			if err != nil {
				t.Errorf("concurrent draw: %v", err)
				return
			}
			mu.Lock()
			codes = append(codes, code)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, codes, workers)
	seen := make(map[string]bool, workers)
	for _, code := range codes {
		require.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
	// Every value 1..workers drawn exactly once means the counter advanced
	// by one per call: distinct and strictly increasing in commit order.
	for i := 1; i <= workers; i++ {
		want := Format(SeriesPrescription, int64(i))
		assert.True(t, seen[want], "missing %s", want)
	}
}

func TestFormatWidensPastThreeDigits(t *testing.T) {
	assert.Equal(t, "MED007", Format(SeriesMedicine, 7))
	assert.Equal(t, "RX1000", Format(SeriesPrescription, 1000))
}

func TestUnknownSeriesRejected(t *testing.T) {
	svc, err := NewService(setupSequencerTestDB(t))
	require.NoError(t, err)

	_, err = svc.Next(context.Background(), "ORD")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
