package notify

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Jconte1/auth-api/internal/orders"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "notify_test.db")
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// Single connection keeps sqlite happy under concurrent claims.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, gdb.AutoMigrate(
		&orders.OrderSummary{},
		&orders.OrderContact{},
		&Job{},
	))
	return gdb
}

func TestEnsureJob_Idempotent(t *testing.T) {
	store := &Store{DB: newTestDB(t)}
	ctx := context.Background()
	now := time.Now()
	snap := now.AddDate(0, 0, 42)

	j1, err := store.EnsureJob(ctx, 7, "T42", &snap, now)
	require.NoError(t, err)
	require.NotZero(t, j1.ID)
	assert.Equal(t, StatusOpen, j1.Status)
	assert.Equal(t, 0, j1.AttemptCount)

	j2, err := store.EnsureJob(ctx, 7, "T42", &snap, now)
	require.NoError(t, err)
	assert.Equal(t, j1.ID, j2.ID)

	var count int64
	require.NoError(t, store.DB.Model(&Job{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestEnsureJob_SeparateRowPerPhase(t *testing.T) {
	store := &Store{DB: newTestDB(t)}
	ctx := context.Background()
	now := time.Now()

	a, err := store.EnsureJob(ctx, 7, "T42", nil, now)
	require.NoError(t, err)
	b, err := store.EnsureJob(ctx, 7, "T14", nil, now)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestEnsureJob_DoesNotReviveTerminalStatus(t *testing.T) {
	store := &Store{DB: newTestDB(t)}
	ctx := context.Background()
	now := time.Now()

	j, err := store.EnsureJob(ctx, 7, "T42", nil, now)
	require.NoError(t, err)
	require.NoError(t, store.CloseJob(ctx, j.ID, now))

	again, err := store.EnsureJob(ctx, 7, "T42", nil, now)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, again.Status)
}

func TestClaimDailyAttempt_OncePerDay(t *testing.T) {
	store := &Store{DB: newTestDB(t)}
	ctx := context.Background()
	day1 := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	now1 := day1.Add(9 * time.Hour)

	j, err := store.EnsureJob(ctx, 1, "T42", nil, now1)
	require.NoError(t, err)

	ok, err := store.ClaimDailyAttempt(ctx, j.ID, 3, day1, now1)
	require.NoError(t, err)
	assert.True(t, ok)

	// Second run the same day loses the slot.
	ok, err = store.ClaimDailyAttempt(ctx, j.ID, 3, day1, now1.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	// Next day the slot re-arms.
	day2 := day1.AddDate(0, 0, 1)
	ok, err = store.ClaimDailyAttempt(ctx, j.ID, 3, day2, day2.Add(9*time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.FindJob(ctx, 1, "T42")
	require.NoError(t, err)
	assert.Equal(t, 2, got.AttemptCount)
}

func TestClaimDailyAttempt_CeilingHolds(t *testing.T) {
	store := &Store{DB: newTestDB(t)}
	ctx := context.Background()

	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	j, err := store.EnsureJob(ctx, 1, "T42", nil, base)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		day := base.AddDate(0, 0, i)
		ok, err := store.ClaimDailyAttempt(ctx, j.ID, 3, day, day.Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, ok)
	}

	day4 := base.AddDate(0, 0, 3)
	ok, err := store.ClaimDailyAttempt(ctx, j.ID, 3, day4, day4.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "fourth attempt must never count")

	got, err := store.FindJob(ctx, 1, "T42")
	require.NoError(t, err)
	assert.Equal(t, 3, got.AttemptCount)
}

func TestResetJob(t *testing.T) {
	store := &Store{DB: newTestDB(t)}
	ctx := context.Background()
	day := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	j, err := store.EnsureJob(ctx, 1, "T42", nil, day)
	require.NoError(t, err)
	_, err = store.ClaimDailyAttempt(ctx, j.ID, 3, day, day.Add(time.Hour))
	require.NoError(t, err)

	snap := day.AddDate(0, 0, 50)
	require.NoError(t, store.ResetJob(ctx, j.ID, &snap, day.Add(2*time.Hour)))

	got, err := store.FindJob(ctx, 1, "T42")
	require.NoError(t, err)
	assert.Equal(t, 0, got.AttemptCount)
	assert.Nil(t, got.EscalationPostedAt)
	assert.Equal(t, StatusOpen, got.Status)
	require.NotNil(t, got.LastDeliveryDateSnapshot)
}

func TestResetJob_LeavesClosedAlone(t *testing.T) {
	store := &Store{DB: newTestDB(t)}
	ctx := context.Background()
	now := time.Now()

	j, err := store.EnsureJob(ctx, 1, "T42", nil, now)
	require.NoError(t, err)
	require.NoError(t, store.CloseJob(ctx, j.ID, now))
	require.NoError(t, store.ResetJob(ctx, j.ID, nil, now))

	got, err := store.FindJob(ctx, 1, "T42")
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, got.Status)
}

func TestClaimEscalation_OnlyOnce(t *testing.T) {
	store := &Store{DB: newTestDB(t)}
	ctx := context.Background()
	now := time.Now()

	j, err := store.EnsureJob(ctx, 1, "T42", nil, now)
	require.NoError(t, err)

	ok, err := store.ClaimEscalation(ctx, j.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.ClaimEscalation(ctx, j.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.FindJob(ctx, 1, "T42")
	require.NoError(t, err)
	assert.Equal(t, StatusEscalated, got.Status)
	assert.Equal(t, 0, got.AttemptCount)
	require.NotNil(t, got.EscalationPostedAt)
}

func TestClaimEscalation_ConcurrentSingleWinner(t *testing.T) {
	store := &Store{DB: newTestDB(t)}
	ctx := context.Background()
	now := time.Now()

	j, err := store.EnsureJob(ctx, 1, "T42", nil, now)
	require.NoError(t, err)

	const n = 16
	var wg sync.WaitGroup
	wins := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.ClaimEscalation(ctx, j.ID, time.Now())
			assert.NoError(t, err)
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	assert.Equal(t, 1, won)
}

func TestClaimEscalation_ReArmedByReset(t *testing.T) {
	store := &Store{DB: newTestDB(t)}
	ctx := context.Background()
	now := time.Now()

	j, err := store.EnsureJob(ctx, 1, "T42", nil, now)
	require.NoError(t, err)

	ok, err := store.ClaimEscalation(ctx, j.ID, now)
	require.NoError(t, err)
	require.True(t, ok)

	// Delivery pushed back out: reset clears the stamp, claim works again.
	require.NoError(t, store.ResetJob(ctx, j.ID, nil, now))
	ok, err = store.ClaimEscalation(ctx, j.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCloseJob_Idempotent(t *testing.T) {
	store := &Store{DB: newTestDB(t)}
	ctx := context.Background()
	now := time.Now()

	j, err := store.EnsureJob(ctx, 1, "T42", nil, now)
	require.NoError(t, err)
	require.NoError(t, store.CloseJob(ctx, j.ID, now))
	require.NoError(t, store.CloseJob(ctx, j.ID, now.Add(time.Hour)))

	got, err := store.FindJob(ctx, 1, "T42")
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, got.Status)
}

func TestCloseOpenJobsForOrder(t *testing.T) {
	store := &Store{DB: newTestDB(t)}
	ctx := context.Background()
	now := time.Now()

	_, err := store.EnsureJob(ctx, 1, "T42", nil, now)
	require.NoError(t, err)
	_, err = store.EnsureJob(ctx, 1, "T14", nil, now)
	require.NoError(t, err)
	_, err = store.EnsureJob(ctx, 2, "T42", nil, now)
	require.NoError(t, err)

	closed, err := store.CloseOpenJobsForOrder(ctx, 1, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), closed)

	other, err := store.FindJob(ctx, 2, "T42")
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, other.Status)
}
