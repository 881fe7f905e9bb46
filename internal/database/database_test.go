package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"velora/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	logger := zerolog.Nop()
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	return db
}

func day(s string) time.Time {
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func createTestDress(t *testing.T, db *DB, name string, rentPrice int64) *models.WeddingDress {
	t.Helper()
	dress := &models.WeddingDress{
		Name:        name,
		RentPrice:   rentPrice,
		Price:       rentPrice * 6,
		Size:        models.DefaultDressSize,
		Color:       models.DefaultDressColor,
		Style:       models.DefaultDressStyle,
		Image:       models.DefaultDressImage,
		IsAvailable: true,
	}
	require.NoError(t, db.CreateDress(context.Background(), dress))
	return dress
}

func createTestRental(t *testing.T, db *DB, dressID, start, end string) *models.Rental {
	t.Helper()
	rental := &models.Rental{
		DressID:       dressID,
		ClientID:      "client-1",
		StartDate:     day(start),
		EndDate:       day(end),
		TotalPrice:    1000000,
		DepositAmount: 300000,
		Status:        models.RentalPending,
	}
	require.NoError(t, db.CreateRentalWithLock(context.Background(), rental, nil))
	return rental
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "db_test_dir")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	dbPath := filepath.Join(tempDir, "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
}

func TestNewDB_SchemaIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "schema.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	createTestDress(t, db, "Malika", 800000)
	require.NoError(t, db.Close())

	db, err = NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	dresses, err := db.ListDresses(context.Background(), models.DressFilter{All: true})
	require.NoError(t, err)
	assert.Len(t, dresses, 1)
}

func TestDB_Ping(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	err := db.PingContext(context.Background())
	assert.NoError(t, err)
}

func TestBuildDSN(t *testing.T) {
	assert.Equal(t, ":memory:?_txlock=immediate&_foreign_keys=1&_busy_timeout=5000", buildDSN(":memory:", true))
	assert.Equal(t,
		"data/app.db?_txlock=immediate&_foreign_keys=1&_busy_timeout=5000&_journal_mode=WAL",
		buildDSN("data/app.db", false))
	assert.Equal(t,
		"data/app.db?cache=shared&_txlock=immediate&_foreign_keys=1&_busy_timeout=5000&_journal_mode=WAL",
		buildDSN("data/app.db?cache=shared", false))
}

func TestActivityLogs(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	user := "client-7"
	require.NoError(t, db.CreateActivityLog(ctx, &models.ActivityLog{Type: models.ActivityDressBooking, Message: "first", UserID: &user}))
	require.NoError(t, db.CreateActivityLog(ctx, &models.ActivityLog{Type: models.ActivityCancellation, Message: "second"}))

	logs, err := db.ListActivityLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "second", logs[0].Message)
	assert.Nil(t, logs[0].UserID)
	assert.Equal(t, "{}", logs[0].Metadata)
	require.NotNil(t, logs[1].UserID)
	assert.Equal(t, user, *logs[1].UserID)

	logs, err = db.ListActivityLogs(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}
