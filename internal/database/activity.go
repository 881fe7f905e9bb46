package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"velora/internal/models"

	"github.com/google/uuid"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertActivity(ctx context.Context, ex execer, entry *models.ActivityLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.Metadata == "" {
		entry.Metadata = "{}"
	}

	query := `INSERT INTO activity_logs (id, type, message, user_id, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := ex.ExecContext(ctx, query,
		entry.ID,
		entry.Type,
		entry.Message,
		entry.UserID,
		entry.Metadata,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity log: %w", err)
	}
	return nil
}

func (db *DB) CreateActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	return insertActivity(ctx, db, entry)
}

// ListActivityLogs returns the newest entries first.
func (db *DB) ListActivityLogs(ctx context.Context, limit int) ([]*models.ActivityLog, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, type, message, user_id, metadata, created_at
              FROM activity_logs ORDER BY created_at DESC, rowid DESC LIMIT ?`
	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*models.ActivityLog, 0)
	for rows.Next() {
		var entry models.ActivityLog
		var userID sql.NullString
		if err := rows.Scan(&entry.ID, &entry.Type, &entry.Message, &userID, &entry.Metadata, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity log: %w", err)
		}
		if userID.Valid {
			entry.UserID = &userID.String
		}
		logs = append(logs, &entry)
	}
	return logs, rows.Err()
}
