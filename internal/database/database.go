package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

// NewDB opens (or creates) the SQLite database at path and applies the schema.
// Transactions take the write lock on BEGIN so check-then-insert sequences are serialized.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	inMemory := isMemoryPath(path)
	if !inMemory {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", buildDSN(path, inMemory))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to :memory: is a separate database.
	if inMemory {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{DB: sqlDB, logger: logger}, nil
}

// newWithConn wraps an already opened handle without touching the schema.
func newWithConn(sqlDB *sql.DB, logger *zerolog.Logger) *DB {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &DB{DB: sqlDB, logger: logger}
}

func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:")
}

func buildDSN(path string, inMemory bool) string {
	params := "_txlock=immediate&_foreign_keys=1&_busy_timeout=5000"
	if !inMemory {
		params += "&_journal_mode=WAL"
	}
	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	return path + "?" + params
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS wedding_dresses (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            price INTEGER NOT NULL DEFAULT 0,
            rent_price INTEGER NOT NULL,
            image TEXT NOT NULL DEFAULT '',
            size TEXT NOT NULL DEFAULT 'M',
            color TEXT NOT NULL DEFAULT 'Oq',
            style TEXT NOT NULL DEFAULT 'CLASSIC',
            is_available BOOLEAN NOT NULL DEFAULT 1,
            times_rented INTEGER NOT NULL DEFAULT 0,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		// Dates are stored as YYYY-MM-DD so range checks compare as text.
		`CREATE TABLE IF NOT EXISTS wedding_dress_rentals (
            id TEXT PRIMARY KEY,
            dress_id TEXT NOT NULL REFERENCES wedding_dresses(id),
            client_id TEXT NOT NULL,
            start_date TEXT NOT NULL,
            end_date TEXT NOT NULL,
            total_price INTEGER NOT NULL,
            deposit_amount INTEGER NOT NULL,
            deposit_paid BOOLEAN NOT NULL DEFAULT 0,
            refund_amount INTEGER,
            status TEXT NOT NULL DEFAULT 'PENDING',
            notes TEXT NOT NULL DEFAULT '',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            version INTEGER NOT NULL DEFAULT 1,
            CHECK (end_date >= start_date)
        )`,
		`CREATE TABLE IF NOT EXISTS activity_logs (
            id TEXT PRIMARY KEY,
            type TEXT NOT NULL,
            message TEXT NOT NULL,
            user_id TEXT,
            metadata TEXT NOT NULL DEFAULT '{}',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS sync_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            rental_id TEXT NOT NULL,
            payload TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_dresses_available ON wedding_dresses(is_available)`,
		`CREATE INDEX IF NOT EXISTS idx_dresses_times_rented ON wedding_dresses(times_rented)`,

		`CREATE INDEX IF NOT EXISTS idx_rentals_dress_dates ON wedding_dress_rentals(dress_id, start_date, end_date)`,
		`CREATE INDEX IF NOT EXISTS idx_rentals_status ON wedding_dress_rentals(status)`,
		`CREATE INDEX IF NOT EXISTS idx_rentals_client ON wedding_dress_rentals(client_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rentals_created ON wedding_dress_rentals(created_at)`,

		`CREATE INDEX IF NOT EXISTS idx_activity_created ON activity_logs(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status, next_retry_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}
