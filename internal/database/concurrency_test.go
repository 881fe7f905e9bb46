package database

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"velora/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentRentals(t *testing.T) {
	logger := zerolog.Nop()
	dbPath := filepath.Join(t.TempDir(), "concurrency.db")
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	dress := createTestDress(t, db, "Limited Dress", 500000)

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			// every request shares 2030-06-10 with every other one
			rental := &models.Rental{
				DressID:   dress.ID,
				ClientID:  fmt.Sprintf("client-%d", id),
				StartDate: day("2030-06-10").AddDate(0, 0, -id%3),
				EndDate:   day("2030-06-10").AddDate(0, 0, id%4),
			}
			results <- db.CreateRentalWithLock(ctx, rental, nil)
		}(i)
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
			continue
		}
		assert.ErrorIs(t, err, ErrDatesUnavailable)
	}

	assert.Equal(t, 1, successCount, "only one overlapping rental may be stored")

	active, err := db.GetActiveRentalsForDress(ctx, dress.ID, day("2030-06-01"), day("2030-06-30"))
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestConcurrentCancellation(t *testing.T) {
	logger := zerolog.Nop()
	dbPath := filepath.Join(t.TempDir(), "cancel.db")
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	dress := createTestDress(t, db, "Malika", 800000)
	rental := createTestRental(t, db, dress.ID, "2030-06-10", "2030-06-12")

	const numGoroutines = 8
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(refund int64) {
			defer wg.Done()
			entry := &models.ActivityLog{Type: models.ActivityCancellation, Message: "cancel"}
			results <- db.CancelRentalWithVersion(ctx, rental.ID, rental.Version, refund, entry)
		}(int64(270000 + i))
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
			continue
		}
		assert.True(t, errors.Is(err, ErrConcurrentModification), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, successCount)

	logs, err := db.ListActivityLogs(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, logs, 1, "exactly one cancellation is audited")
}
