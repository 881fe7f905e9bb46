package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"velora/internal/models"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var rentalColumnList = []string{
	"r.id", "r.dress_id", "r.client_id", "r.start_date", "r.end_date", "r.total_price",
	"r.deposit_amount", "r.deposit_paid", "r.refund_amount", "r.status", "r.notes",
	"r.created_at", "r.updated_at", "r.version",
}

func scanRental(row rowScanner, extra ...any) (*models.Rental, error) {
	var r models.Rental
	var startStr, endStr string
	var refund sql.NullInt64

	dest := []any{
		&r.ID, &r.DressID, &r.ClientID, &startStr, &endStr, &r.TotalPrice,
		&r.DepositAmount, &r.DepositPaid, &refund, &r.Status, &r.Notes,
		&r.CreatedAt, &r.UpdatedAt, &r.Version,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	var err error
	if r.StartDate, err = time.Parse(models.DateLayout, startStr); err != nil {
		return nil, fmt.Errorf("failed to parse rental start date %s: %w", startStr, err)
	}
	if r.EndDate, err = time.Parse(models.DateLayout, endStr); err != nil {
		return nil, fmt.Errorf("failed to parse rental end date %s: %w", endStr, err)
	}
	if refund.Valid {
		r.RefundAmount = &refund.Int64
	}
	return &r, nil
}

func activeStatusArgs() []any {
	args := make([]any, len(models.ActiveRentalStatuses))
	for i, s := range models.ActiveRentalStatuses {
		args[i] = s
	}
	return args
}

// CreateRentalWithLock checks the dress and the calendar and inserts the rental in one
// write transaction. The activity entry, when given, is written in the same transaction.
func (db *DB) CreateRentalWithLock(ctx context.Context, rental *models.Rental, entry *models.ActivityLog) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 1. Dress must exist and be rentable
	var available bool
	err = tx.QueryRowContext(ctx, `SELECT is_available FROM wedding_dresses WHERE id = ?`, rental.DressID).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDressNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check dress in tx: %w", err)
	}
	if !available {
		return ErrDressUnavailable
	}

	// 2. No active rental may overlap [start, end]
	start := rental.StartDate.Format(models.DateLayout)
	end := rental.EndDate.Format(models.DateLayout)
	if end < start {
		return ErrInvalidDateRange
	}

	var overlapping int
	queryCount := `SELECT COUNT(*) FROM wedding_dress_rentals
	               WHERE dress_id = ? AND status IN (?, ?, ?) AND start_date <= ? AND end_date >= ?`
	args := append([]any{rental.DressID}, activeStatusArgs()...)
	args = append(args, end, start)
	if err := tx.QueryRowContext(ctx, queryCount, args...).Scan(&overlapping); err != nil {
		return fmt.Errorf("failed to check availability in tx: %w", err)
	}
	if overlapping > 0 {
		return ErrDatesUnavailable
	}

	// 3. Insert
	if rental.ID == "" {
		rental.ID = uuid.NewString()
	}
	if rental.Status == "" {
		rental.Status = models.RentalPending
	}
	now := time.Now()
	queryInsert := `INSERT INTO wedding_dress_rentals (
				id, dress_id, client_id, start_date, end_date, total_price, deposit_amount,
				deposit_paid, refund_amount, status, notes, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, queryInsert,
		rental.ID,
		rental.DressID,
		rental.ClientID,
		start,
		end,
		rental.TotalPrice,
		rental.DepositAmount,
		rental.DepositPaid,
		rental.RefundAmount,
		rental.Status,
		rental.Notes,
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to insert rental in tx: %w", err)
	}

	if entry != nil {
		if err := insertActivity(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rental: %w", err)
	}

	rental.CreatedAt = now
	rental.UpdatedAt = now
	rental.Version = 1
	return nil
}

func (db *DB) GetRental(ctx context.Context, id string) (*models.Rental, error) {
	query, args, err := sq.Select(rentalColumnList...).
		From("wedding_dress_rentals r").
		Where(sq.Eq{"r.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build rental query: %w", err)
	}

	rental, err := scanRental(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRentalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rental: %w", err)
	}
	return rental, nil
}

// ListRentals returns rentals with their dress, newest first. Empty status lists all.
func (db *DB) ListRentals(ctx context.Context, status string) ([]*models.RentalView, error) {
	columns := append(append([]string(nil), rentalColumnList...),
		"d.name", "d.image", "d.size", "d.color", "d.rent_price")
	builder := sq.Select(columns...).
		From("wedding_dress_rentals r").
		Join("wedding_dresses d ON d.id = r.dress_id").
		OrderBy("r.created_at DESC", "r.rowid DESC")
	if status != "" {
		builder = builder.Where(sq.Eq{"r.status": status})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build rentals query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rentals: %w", err)
	}
	defer rows.Close()

	views := make([]*models.RentalView, 0)
	for rows.Next() {
		var d models.RentalDress
		rental, err := scanRental(rows, &d.Name, &d.Image, &d.Size, &d.Color, &d.RentPrice)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rental: %w", err)
		}
		d.ID = rental.DressID
		views = append(views, &models.RentalView{Rental: *rental, Dress: d})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rentals: %w", err)
	}
	return views, nil
}

// GetActiveRentalsForDress returns active rentals of a dress touching [from, to].
func (db *DB) GetActiveRentalsForDress(ctx context.Context, dressID string, from, to time.Time) ([]*models.Rental, error) {
	query, args, err := sq.Select(rentalColumnList...).
		From("wedding_dress_rentals r").
		Where(sq.Eq{"r.dress_id": dressID, "r.status": models.ActiveRentalStatuses}).
		Where(sq.LtOrEq{"r.start_date": to.Format(models.DateLayout)}).
		Where(sq.GtOrEq{"r.end_date": from.Format(models.DateLayout)}).
		OrderBy("r.start_date ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build active rentals query: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get active rentals: %w", err)
	}
	defer rows.Close()

	var rentals []*models.Rental
	for rows.Next() {
		r, err := scanRental(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rental: %w", err)
		}
		rentals = append(rentals, r)
	}
	return rentals, rows.Err()
}

// UpdateRentalStatusWithVersion moves a rental to status if nobody changed it since fromVersion.
// A non-nil depositPaid is stored by the same statement. A RETURNED rental bumps its dress's rental counter.
func (db *DB) UpdateRentalStatusWithVersion(ctx context.Context, id string, fromVersion int64, status string, depositPaid *bool, entry *models.ActivityLog) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `UPDATE wedding_dress_rentals
	          SET status = ?, deposit_paid = COALESCE(?, deposit_paid), version = version + 1, updated_at = ?
	          WHERE id = ? AND version = ?`
	var paid any
	if depositPaid != nil {
		paid = *depositPaid
	}
	result, err := tx.ExecContext(ctx, query, status, paid, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update rental status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}

	if status == models.RentalReturned {
		_, err = tx.ExecContext(ctx, `UPDATE wedding_dresses SET times_rented = times_rented + 1, updated_at = ?
			WHERE id = (SELECT dress_id FROM wedding_dress_rentals WHERE id = ?)`, time.Now(), id)
		if err != nil {
			return fmt.Errorf("failed to update dress counter: %w", err)
		}
	}

	if entry != nil {
		if err := insertActivity(ctx, tx, entry); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (db *DB) SetDepositPaidWithVersion(ctx context.Context, id string, fromVersion int64, paid bool) error {
	query := `UPDATE wedding_dress_rentals SET deposit_paid = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, paid, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update deposit flag: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// CancelRentalWithVersion stores the refund and cancels the rental in one transaction.
// Rentals already cancelled or returned are never touched.
func (db *DB) CancelRentalWithVersion(ctx context.Context, id string, fromVersion int64, refund int64, entry *models.ActivityLog) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `UPDATE wedding_dress_rentals
	          SET status = ?, refund_amount = ?, version = version + 1, updated_at = ?
	          WHERE id = ? AND version = ? AND status NOT IN (?, ?)`
	result, err := tx.ExecContext(ctx, query,
		models.RentalCancelled, refund, time.Now(), id, fromVersion,
		models.RentalCancelled, models.RentalReturned,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel rental: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}

	if entry != nil {
		if err := insertActivity(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cancellation: %w", err)
	}
	return nil
}
