package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"velora/internal/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const timestampLayout = "2006-01-02 15:04:05"

var rentalHeaders = []interface{}{
	"ID", "Dress", "Client", "Start Date", "End Date", "Total", "Deposit",
	"Deposit Paid", "Status", "Refund", "Created At", "Updated At",
}

var ErrRowNotFound = errors.New("rental row not found")

// RentalsSheet mirrors rentals into one sheet of a spreadsheet, one row per rental keyed by column A.
type RentalsSheet struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	rowCache      map[string]int
	cacheMu       sync.RWMutex
	now           func() time.Time
}

func NewRentalsSheet(ctx context.Context, credentialsFile, spreadsheetID, sheetName string) (*RentalsSheet, error) {
	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return newRentalsSheet(srv, spreadsheetID, sheetName), nil
}

func newRentalsSheet(srv *sheets.Service, spreadsheetID, sheetName string) *RentalsSheet {
	return &RentalsSheet{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		rowCache:      make(map[string]int),
		now:           time.Now,
	}
}

func (s *RentalsSheet) cellRange(r string) string {
	return s.sheetName + "!" + r
}

// TestConnection проверяет подключение к таблице
func (s *RentalsSheet) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.cellRange("A1")).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// WarmUpCache reads the ID column and rebuilds the row index.
func (s *RentalsSheet) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.cellRange("A:A")).Context(ctx).Do()
	if err != nil {
		return err
	}

	cache := make(map[string]int, len(resp.Values))
	for i, row := range resp.Values {
		if id := cellString(row); id != "" && i > 0 {
			cache[id] = i + 1
		}
	}

	s.cacheMu.Lock()
	s.rowCache = cache
	s.cacheMu.Unlock()
	return nil
}

// EnsureHeader writes the header row when A1 is empty.
func (s *RentalsSheet) EnsureHeader(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.cellRange("A1")).Context(ctx).Do()
	if err != nil {
		return err
	}
	if len(resp.Values) > 0 && cellString(resp.Values[0]) != "" {
		return nil
	}

	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, s.cellRange("A1:L1"), &sheets.ValueRange{
		Values: [][]interface{}{rentalHeaders},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// UpsertRental rewrites the rental's row, appending it when the sheet has none.
func (s *RentalsSheet) UpsertRental(ctx context.Context, rental *models.RentalView) error {
	if rental == nil {
		return fmt.Errorf("rental is nil")
	}

	rowIdx, err := s.FindRentalRow(ctx, rental.ID)
	if errors.Is(err, ErrRowNotFound) {
		return s.AppendRental(ctx, rental)
	}
	if err != nil {
		return err
	}

	rangeData := s.cellRange(fmt.Sprintf("A%d:L%d", rowIdx, rowIdx))
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, &sheets.ValueRange{
		Values: [][]interface{}{rentalRowValues(rental)},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

func (s *RentalsSheet) AppendRental(ctx context.Context, rental *models.RentalView) error {
	resp, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, s.cellRange("A:A"), &sheets.ValueRange{
		Values: [][]interface{}{rentalRowValues(rental)},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return err
	}

	if resp.Updates != nil {
		if row, ok := firstRow(resp.Updates.UpdatedRange); ok {
			s.setCachedRow(rental.ID, row)
		}
	}
	return nil
}

// UpdateRentalStatus rewrites the status, refund and updated-at cells of a row.
func (s *RentalsSheet) UpdateRentalStatus(ctx context.Context, rentalID, status string, refund *int64) error {
	rowIdx, err := s.FindRentalRow(ctx, rentalID)
	if err != nil {
		return err
	}

	var refundCell interface{} = ""
	if refund != nil {
		refundCell = *refund
	}

	req := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data: []*sheets.ValueRange{
			{Range: s.cellRange(fmt.Sprintf("I%d:J%d", rowIdx, rowIdx)), Values: [][]interface{}{{status, refundCell}}},
			{Range: s.cellRange(fmt.Sprintf("L%d", rowIdx)), Values: [][]interface{}{{s.now().Format(timestampLayout)}}},
		},
	}
	_, err = s.service.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do()
	return err
}

// FindRentalRow returns the 1-based row of rentalID, reading column A on a cache miss.
func (s *RentalsSheet) FindRentalRow(ctx context.Context, rentalID string) (int, error) {
	if rentalID == "" {
		return 0, fmt.Errorf("rental id is required")
	}

	if row, ok := s.getCachedRow(rentalID); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, s.cellRange("A:A")).Context(ctx).Do()
	if err != nil {
		return 0, err
	}

	for i, row := range resp.Values {
		if cellString(row) == rentalID {
			rowIdx := i + 1
			s.setCachedRow(rentalID, rowIdx)
			return rowIdx, nil
		}
	}
	return 0, ErrRowNotFound
}

func (s *RentalsSheet) getCachedRow(id string) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *RentalsSheet) setCachedRow(id string, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

func cellString(row []interface{}) string {
	if len(row) == 0 {
		return ""
	}
	switch v := row[0].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// firstRow extracts 10 from "Rentals!A10:L10".
func firstRow(a1 string) (int, bool) {
	if i := strings.LastIndex(a1, "!"); i >= 0 {
		a1 = a1[i+1:]
	}
	a1, _, _ = strings.Cut(a1, ":")
	digits := strings.TrimLeft(a1, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	row, err := strconv.Atoi(digits)
	if err != nil || row <= 0 {
		return 0, false
	}
	return row, true
}

func rentalRowValues(r *models.RentalView) []interface{} {
	var refund interface{} = ""
	if r.RefundAmount != nil {
		refund = *r.RefundAmount
	}
	return []interface{}{
		r.ID,
		r.Dress.Name,
		r.ClientID,
		r.StartDate.Format(models.DateLayout),
		r.EndDate.Format(models.DateLayout),
		r.TotalPrice,
		r.DepositAmount,
		r.DepositPaid,
		r.Status,
		refund,
		r.CreatedAt.Format(timestampLayout),
		r.UpdatedAt.Format(timestampLayout),
	}
}
