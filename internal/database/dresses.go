package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"velora/internal/models"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var dressColumnList = []string{
	"id", "name", "description", "price", "rent_price", "image", "size", "color", "style",
	"is_available", "times_rented", "created_at", "updated_at",
}

var dressColumns = strings.Join(dressColumnList, ", ")

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDress(row rowScanner) (*models.WeddingDress, error) {
	var d models.WeddingDress
	err := row.Scan(
		&d.ID, &d.Name, &d.Description, &d.Price, &d.RentPrice, &d.Image, &d.Size, &d.Color,
		&d.Style, &d.IsAvailable, &d.TimesRented, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (db *DB) CreateDress(ctx context.Context, dress *models.WeddingDress) error {
	if dress.ID == "" {
		dress.ID = uuid.NewString()
	}
	now := time.Now()

	query := `INSERT INTO wedding_dresses (` + dressColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		dress.ID,
		dress.Name,
		dress.Description,
		dress.Price,
		dress.RentPrice,
		dress.Image,
		dress.Size,
		dress.Color,
		dress.Style,
		dress.IsAvailable,
		dress.TimesRented,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create dress: %w", err)
	}

	dress.CreatedAt = now
	dress.UpdatedAt = now
	return nil
}

func (db *DB) GetDress(ctx context.Context, id string) (*models.WeddingDress, error) {
	row := db.QueryRowContext(ctx, `SELECT `+dressColumns+` FROM wedding_dresses WHERE id = ?`, id)
	dress, err := scanDress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dress: %w", err)
	}
	return dress, nil
}

// ListDresses returns the catalog, most rented first.
func (db *DB) ListDresses(ctx context.Context, filter models.DressFilter) ([]*models.WeddingDress, error) {
	builder := sq.Select(dressColumnList...).
		From("wedding_dresses").
		OrderBy("times_rented DESC", "name ASC")

	if !filter.All {
		builder = builder.Where(sq.Eq{"is_available": true})
	}
	if filter.Style != "" {
		builder = builder.Where(sq.Eq{"style": filter.Style})
	}
	if filter.Size != "" {
		builder = builder.Where(sq.Eq{"size": filter.Size})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build dresses query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list dresses: %w", err)
	}
	defer rows.Close()

	dresses := make([]*models.WeddingDress, 0)
	for rows.Next() {
		dress, err := scanDress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dress: %w", err)
		}
		dresses = append(dresses, dress)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dresses: %w", err)
	}
	return dresses, nil
}

func (db *DB) UpdateDress(ctx context.Context, id string, upd models.DressUpdate) (*models.WeddingDress, error) {
	set := map[string]any{}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Price != nil {
		set["price"] = *upd.Price
	}
	if upd.RentPrice != nil {
		set["rent_price"] = *upd.RentPrice
	}
	if upd.Image != nil {
		set["image"] = *upd.Image
	}
	if upd.Size != nil {
		set["size"] = *upd.Size
	}
	if upd.Color != nil {
		set["color"] = *upd.Color
	}
	if upd.Style != nil {
		set["style"] = *upd.Style
	}
	if upd.IsAvailable != nil {
		set["is_available"] = *upd.IsAvailable
	}
	set["updated_at"] = time.Now()

	query, args, err := sq.Update("wedding_dresses").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build dress update: %w", err)
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update dress: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, ErrDressNotFound
	}

	return db.GetDress(ctx, id)
}

// DeleteDress removes a dress that has never been rented.
func (db *DB) DeleteDress(ctx context.Context, id string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var rentals int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM wedding_dress_rentals WHERE dress_id = ?`, id).Scan(&rentals)
	if err != nil {
		return fmt.Errorf("failed to count dress rentals: %w", err)
	}
	if rentals > 0 {
		return ErrDressInUse
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM wedding_dresses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete dress: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrDressNotFound
	}

	return tx.Commit()
}

// SyncDresses upserts a seed catalog. Rental counters already in the database are kept.
func (db *DB) SyncDresses(ctx context.Context, dresses []models.WeddingDress) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `INSERT INTO wedding_dresses (` + dressColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				description = excluded.description,
				price = excluded.price,
				rent_price = excluded.rent_price,
				image = excluded.image,
				size = excluded.size,
				color = excluded.color,
				style = excluded.style,
				is_available = excluded.is_available,
				updated_at = excluded.updated_at`

	now := time.Now()
	for i := range dresses {
		d := &dresses[i]
		if d.ID == "" {
			return fmt.Errorf("dress %q has empty id", d.Name)
		}
		if _, err := tx.ExecContext(ctx, query,
			d.ID, d.Name, d.Description, d.Price, d.RentPrice, d.Image, d.Size, d.Color, d.Style,
			d.IsAvailable, d.TimesRented, now, now,
		); err != nil {
			return fmt.Errorf("failed to sync dress %s: %w", d.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dress sync: %w", err)
	}
	db.logger.Info().Int("count", len(dresses)).Msg("dress catalog synced")
	return nil
}
