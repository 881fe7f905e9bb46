package export

import (
	"fmt"
	"io"
	"time"

	"velora/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	rentalsSheet = "Rentals"
	statsSheet   = "Stats"
)

var rentalColumns = []string{
	"ID", "Dress", "Client", "Start Date", "End Date", "Days", "Total", "Deposit",
	"Deposit Paid", "Status", "Refund", "Created At",
}

var statusFill = map[string]string{
	models.RentalPending:   "#FFF2CC",
	models.RentalConfirmed: "#DDEBF7",
	models.RentalActive:    "#E2EFDA",
	models.RentalReturned:  "#EDEDED",
	models.RentalCancelled: "#F8CBAD",
}

// WriteRentals renders the admin rental list and its stats as an XLSX workbook.
func WriteRentals(w io.Writer, rentals []*models.RentalView, stats models.RentalStats, generatedAt time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", rentalsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	if err := writeRentalRows(f, rentals); err != nil {
		return err
	}
	if err := writeStats(f, stats, generatedAt); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRentalRows(f *excelize.File, rentals []*models.RentalView) error {
	header := make([]interface{}, len(rentalColumns))
	for i, c := range rentalColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(rentalsSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9D9D9"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err == nil {
		lastCell, _ := excelize.CoordinatesToCellName(len(rentalColumns), 1)
		_ = f.SetCellStyle(rentalsSheet, "A1", lastCell, headerStyle)
	}

	styles := make(map[string]int)
	for status, color := range statusFill {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err == nil {
			styles[status] = id
		}
	}

	for i, r := range rentals {
		row := i + 2
		var refund interface{}
		if r.RefundAmount != nil {
			refund = *r.RefundAmount
		}
		days := int(r.EndDate.Sub(r.StartDate).Hours()/24+0.5) + 1
		values := []interface{}{
			r.ID,
			r.Dress.Name,
			r.ClientID,
			r.StartDate.Format(models.DateLayout),
			r.EndDate.Format(models.DateLayout),
			days,
			r.TotalPrice,
			r.DepositAmount,
			yesNo(r.DepositPaid),
			r.Status,
			refund,
			r.CreatedAt.Format("2006-01-02 15:04"),
		}

		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(rentalsSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}

		if style, ok := styles[r.Status]; ok {
			statusCell, _ := excelize.CoordinatesToCellName(10, row)
			_ = f.SetCellStyle(rentalsSheet, statusCell, statusCell, style)
		}
	}

	_ = f.SetColWidth(rentalsSheet, "A", "A", 38)
	_ = f.SetColWidth(rentalsSheet, "B", "C", 22)
	_ = f.SetColWidth(rentalsSheet, "D", "L", 14)
	_ = f.SetPanes(rentalsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	return nil
}

func writeStats(f *excelize.File, stats models.RentalStats, generatedAt time.Time) error {
	if _, err := f.NewSheet(statsSheet); err != nil {
		return fmt.Errorf("create stats sheet: %w", err)
	}

	rows := [][]interface{}{
		{"Generated At", generatedAt.Format("2006-01-02 15:04")},
		{"Total", stats.Total},
		{"Pending", stats.Pending},
		{"Confirmed", stats.Confirmed},
		{"Active", stats.Active},
		{"Returned", stats.Returned},
		{"Cancelled", stats.Cancelled},
	}
	for i := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(statsSheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("write stats: %w", err)
		}
	}
	_ = f.SetColWidth(statsSheet, "A", "A", 16)
	return nil
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
