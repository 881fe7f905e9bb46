package worker

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"velora/internal/database"
	"velora/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRental(id string) *models.RentalView {
	refund := int64(270000)
	return &models.RentalView{
		Rental: models.Rental{
			ID:            id,
			DressID:       "d1",
			ClientID:      "client-1",
			StartDate:     time.Date(2030, 1, 10, 0, 0, 0, 0, time.UTC),
			EndDate:       time.Date(2030, 1, 12, 0, 0, 0, 0, time.UTC),
			TotalPrice:    2400000,
			DepositAmount: 720000,
			RefundAmount:  &refund,
			Status:        models.RentalPending,
		},
		Dress: models.RentalDress{ID: "d1", Name: "Malika"},
	}
}

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSyncWorker(db, sheets, nil, nil, RetryPolicy{}, Options{}, nil)

	ctx := context.Background()
	require.NoError(t, worker.EnqueueTask(ctx, TaskUpsert, "", testRental("r1"), ""))

	task, ok := worker.tryLocalQueue()
	require.True(t, ok, "expected task in local queue")
	assert.Equal(t, "r1", task.RentalID)
	worker.processTask(ctx, &task)

	status, retryCount, _ := loadTaskStatus(t, db, task.ID)
	assert.Equal(t, database.SyncStatusCompleted, status)
	assert.Equal(t, 0, retryCount)
	assert.Equal(t, 1, sheets.upsertCalls)
	assert.Equal(t, "Malika", sheets.lastUpsert.Dress.Name)
}

func TestEnqueuedTaskHiddenFromPoller(t *testing.T) {
	db := newTestDB(t)
	worker := NewSyncWorker(db, &fakeSheets{}, nil, nil, RetryPolicy{}, Options{PollGrace: time.Hour}, nil)

	ctx := context.Background()
	require.NoError(t, worker.EnqueueTask(ctx, TaskUpsert, "r1", testRental("r1"), ""))

	tasks, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("boom")}
	worker := NewSyncWorker(db, sheets, nil, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Second}, Options{}, nil)

	ctx := context.Background()
	require.NoError(t, worker.EnqueueTask(ctx, TaskUpsert, "r2", testRental("r2"), ""))

	task, ok := worker.tryLocalQueue()
	require.True(t, ok)
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	assert.Equal(t, database.SyncStatusRetry, status)
	assert.Equal(t, 1, retryCount)
	assert.True(t, nextRetry.Valid && nextRetry.Time.After(time.Now()), "expected next_retry_at in future, got %v", nextRetry)
}

func TestProcessTaskFailGoesToDeadLetter(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("fatal")}
	worker := NewSyncWorker(db, sheets, nil, client, RetryPolicy{MaxRetries: 1}, Options{RedisQueueKey: "test:queue"}, nil)

	ctx := context.Background()
	require.NoError(t, worker.EnqueueTask(ctx, TaskUpsert, "r3", testRental("r3"), ""))

	task, ok := worker.tryRedis(ctx)
	require.True(t, ok, "expected task in redis queue")
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	assert.Equal(t, database.SyncStatusFailed, status)

	dead, err := s.List("test:queue:deadletter")
	require.NoError(t, err)
	assert.Len(t, dead, 1)
}

func TestProcessTaskBadPayload(t *testing.T) {
	db := newTestDB(t)
	worker := NewSyncWorker(db, &fakeSheets{}, nil, nil, RetryPolicy{}, Options{}, nil)
	ctx := context.Background()

	task := models.SyncTask{TaskType: TaskUpsert, RentalID: "r4", Payload: "not json"}
	require.NoError(t, db.CreateSyncTask(ctx, &task))

	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	assert.Equal(t, database.SyncStatusFailed, status)
}

func TestHandleTask(t *testing.T) {
	sheets := &fakeSheets{}
	notifier := &fakeNotifier{}
	worker := NewSyncWorker(nil, sheets, notifier, nil, RetryPolicy{MaxRetries: 3}, Options{}, nil)
	ctx := context.Background()

	t.Run("UpdateStatus", func(t *testing.T) {
		err := worker.handleTask(ctx, TaskUpdateStatus, syncTaskPayload{RentalID: "r1", Status: models.RentalCancelled, Rental: testRental("r1")})
		require.NoError(t, err)
		assert.Equal(t, 1, sheets.statusCalls)
		require.NotNil(t, sheets.lastRefund)
		assert.Equal(t, int64(270000), *sheets.lastRefund)
	})

	t.Run("UpdateStatusMissingFields", func(t *testing.T) {
		err := worker.handleTask(ctx, TaskUpdateStatus, syncTaskPayload{RentalID: "r1"})
		assert.Error(t, err)
	})

	t.Run("UpsertWithoutRental", func(t *testing.T) {
		err := worker.handleTask(ctx, TaskUpsert, syncTaskPayload{RentalID: "r1"})
		assert.Error(t, err)
	})

	t.Run("Notify", func(t *testing.T) {
		err := worker.handleTask(ctx, TaskNotify, syncTaskPayload{RentalID: "r1", Status: models.RentalPending, Rental: testRental("r1")})
		require.NoError(t, err)
		require.Len(t, notifier.messages, 1)
		assert.Contains(t, notifier.messages[0], "New dress rental")
		assert.Contains(t, notifier.messages[0], "Dates: 2030-01-10 to 2030-01-12")
		assert.Contains(t, notifier.messages[0], "Deposit: 720000 so'm")
	})

	t.Run("Unknown", func(t *testing.T) {
		err := worker.handleTask(ctx, "resync_everything", syncTaskPayload{RentalID: "r1"})
		assert.Error(t, err)
	})

	t.Run("NoSinksConfigured", func(t *testing.T) {
		bare := NewSyncWorker(nil, nil, nil, nil, RetryPolicy{}, Options{}, nil)
		assert.NoError(t, bare.handleTask(ctx, TaskUpsert, syncTaskPayload{Rental: testRental("r1")}))
		assert.NoError(t, bare.handleTask(ctx, TaskNotify, syncTaskPayload{RentalID: "r1"}))
	})
}

func TestNotificationText(t *testing.T) {
	cancelled := syncTaskPayload{RentalID: "r1", Status: models.RentalCancelled, Rental: testRental("r1")}
	assert.Contains(t, notificationText(cancelled), "Refund: 270000 so'm")

	bare := syncTaskPayload{RentalID: "r9", Status: models.RentalReturned}
	assert.Equal(t, "Rental r9 is now RETURNED", notificationText(bare))

	confirmed := syncTaskPayload{RentalID: "r1", Status: models.RentalConfirmed, Rental: testRental("r1")}
	assert.Equal(t, "Rental r1 (Malika) is now CONFIRMED", notificationText(confirmed))
}

func TestSyncWorker_EnqueueTask(t *testing.T) {
	db := newTestDB(t)
	worker := NewSyncWorker(db, &fakeSheets{}, nil, nil, RetryPolicy{}, Options{}, nil)
	ctx := context.Background()

	t.Run("ValidTask", func(t *testing.T) {
		assert.NoError(t, worker.EnqueueTask(ctx, TaskNotify, "r1", nil, models.RentalConfirmed))
	})

	t.Run("InvalidTaskType", func(t *testing.T) {
		assert.Error(t, worker.EnqueueTask(ctx, "", "r1", nil, ""))
	})

	t.Run("MissingRentalID", func(t *testing.T) {
		assert.Error(t, worker.EnqueueTask(ctx, TaskUpsert, "", nil, ""))
	})
}

func TestSyncWorker_StartDrainsQueue(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	worker := NewSyncWorker(db, sheets, nil, nil, RetryPolicy{}, Options{PollInterval: 20 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, worker.EnqueueTask(ctx, TaskUpsert, "r1", testRental("r1"), ""))

	done := make(chan struct{})
	go func() {
		worker.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return sheets.upserts() == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}

	assert.Equal(t, time.Second, policy.NextDelay(1))
	assert.Equal(t, 2*time.Second, policy.NextDelay(2))
	assert.Equal(t, 5*time.Second, policy.NextDelay(5), "capped")
	assert.Equal(t, time.Second, RetryPolicy{}.NextDelay(0))
}

func TestRetryPolicyExhausted(t *testing.T) {
	policy := RetryPolicy{}.withDefaults()
	assert.Equal(t, DefaultRetryPolicy, policy)
	assert.False(t, policy.Exhausted(4))
	assert.True(t, policy.Exhausted(5))
	assert.False(t, RetryPolicy{}.Exhausted(100), "zero policy never gives up")

	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(4*time.Second), policy.RetryAt(now, 2))
}

func TestDecodePayload(t *testing.T) {
	decoded, err := decodePayload(`{"rental_id":"r1","status":"CONFIRMED"}`)
	require.NoError(t, err)
	assert.Equal(t, "r1", decoded.RentalID)
	assert.Equal(t, "CONFIRMED", decoded.Status)

	_, err = decodePayload(`invalid json`)
	assert.Error(t, err)
}

// Helpers

type fakeSheets struct {
	mu          sync.Mutex
	err         error
	upsertCalls int
	statusCalls int
	lastUpsert  *models.RentalView
	lastRefund  *int64
}

func (f *fakeSheets) UpsertRental(_ context.Context, r *models.RentalView) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	f.lastUpsert = r
	return f.err
}

func (f *fakeSheets) UpdateRentalStatus(_ context.Context, _ string, _ string, refund *int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	f.lastRefund = refund
	return f.err
}

func (f *fakeSheets) upserts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upsertCalls
}

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) NotifyManagers(_ context.Context, text string) error {
	f.messages = append(f.messages, text)
	return nil
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.db")
	logger := zerolog.Nop()
	db, err := database.NewDB(path, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func loadTaskStatus(t *testing.T, db *database.DB, id int64) (status string, retryCount int, nextRetry sql.NullTime) {
	t.Helper()
	row := db.QueryRowContext(context.Background(), `SELECT status, retry_count, next_retry_at FROM sync_queue WHERE id = ?`, id)
	require.NoError(t, row.Scan(&status, &retryCount, &nextRetry))
	return status, retryCount, nextRetry
}
