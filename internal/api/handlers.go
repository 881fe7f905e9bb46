package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"velora/internal/models"
	"velora/internal/pricing"
	"velora/internal/service"

	"github.com/go-chi/chi/v5"
)

type bookingRequest struct {
	DressID   string `json:"dressId"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	UserID    string `json:"userId"`
}

// rentalResponse renders dates as calendar days.
type rentalResponse struct {
	ID            string              `json:"id"`
	DressID       string              `json:"dressId"`
	ClientID      string              `json:"clientId"`
	StartDate     string              `json:"startDate"`
	EndDate       string              `json:"endDate"`
	RentalDays    int                 `json:"rentalDays"`
	TotalPrice    int64               `json:"totalPrice"`
	DepositAmount int64               `json:"depositAmount"`
	DepositPaid   bool                `json:"depositPaid"`
	RefundAmount  *int64              `json:"refundAmount"`
	Status        string              `json:"status"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
	Dress         *models.RentalDress `json:"dress,omitempty"`
}

func newRentalResponse(r *models.Rental) rentalResponse {
	days, _ := pricing.RentalDays(r.StartDate, r.EndDate)
	return rentalResponse{
		ID:            r.ID,
		DressID:       r.DressID,
		ClientID:      r.ClientID,
		StartDate:     r.StartDate.Format(models.DateLayout),
		EndDate:       r.EndDate.Format(models.DateLayout),
		RentalDays:    days,
		TotalPrice:    r.TotalPrice,
		DepositAmount: r.DepositAmount,
		DepositPaid:   r.DepositPaid,
		RefundAmount:  r.RefundAmount,
		Status:        r.Status,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid JSON body")
		return
	}

	if strings.TrimSpace(req.DressID) == "" || req.StartDate == "" || req.EndDate == "" {
		writeError(w, http.StatusBadRequest, codeValidation, "dressId, startDate and endDate are required")
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid startDate; expected YYYY-MM-DD")
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid endDate; expected YYYY-MM-DD")
		return
	}

	rental, err := s.rentals.CreateRental(r.Context(), service.BookingRequest{
		DressID:   strings.TrimSpace(req.DressID),
		ClientID:  strings.TrimSpace(req.UserID),
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"rental":  newRentalResponse(rental),
	})
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		id = strings.TrimSpace(r.URL.Query().Get("id"))
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, codeValidation, "rental id is required")
		return
	}

	res, err := s.rentals.CancelRental(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"refundAmount":    res.RefundAmount,
		"daysUntilRental": res.DaysUntilRental,
		"message":         res.Message,
	})
}

func (s *HTTPServer) handleListDresses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.DressFilter{
		Style: strings.TrimSpace(q.Get("style")),
		Size:  strings.TrimSpace(q.Get("size")),
		All:   q.Get("all") == "true",
	}

	dresses, err := s.dresses.ListDresses(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if dresses == nil {
		dresses = []*models.WeddingDress{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"dresses": dresses})
}

func (s *HTTPServer) handleGetDress(w http.ResponseWriter, r *http.Request) {
	detail, err := s.dresses.DressDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *HTTPServer) handleCreateDress(w http.ResponseWriter, r *http.Request) {
	var in models.DressUpdate
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid JSON body")
		return
	}

	dress, err := s.dresses.CreateDress(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "dress": dress})
}

func (s *HTTPServer) handleUpdateDress(w http.ResponseWriter, r *http.Request) {
	var upd models.DressUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid JSON body")
		return
	}

	dress, err := s.dresses.UpdateDress(r.Context(), chi.URLParam(r, "id"), upd)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "dress": dress})
}

func (s *HTTPServer) handleDeleteDress(w http.ResponseWriter, r *http.Request) {
	if err := s.dresses.DeleteDress(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *HTTPServer) handleQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := parseDate(q.Get("startDate"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid startDate; expected YYYY-MM-DD")
		return
	}
	end, err := parseDate(q.Get("endDate"))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid endDate; expected YYYY-MM-DD")
		return
	}

	quote, err := s.rentals.Quote(r.Context(), chi.URLParam(r, "id"), start, end)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"dressId":        quote.DressID,
		"startDate":      quote.StartDate.Format(models.DateLayout),
		"endDate":        quote.EndDate.Format(models.DateLayout),
		"rentalDays":     quote.RentalDays,
		"totalPrice":     quote.TotalPrice,
		"depositAmount":  quote.DepositAmount,
		"depositPercent": pricing.DepositPercent,
		"available":      quote.Available,
	})
}

func (s *HTTPServer) handleListRentals(w http.ResponseWriter, r *http.Request) {
	views, stats, err := s.rentals.ListRentals(r.Context(), strings.TrimSpace(r.URL.Query().Get("status")))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	rentals := make([]rentalResponse, 0, len(views))
	for _, v := range views {
		resp := newRentalResponse(&v.Rental)
		dress := v.Dress
		resp.Dress = &dress
		rentals = append(rentals, resp)
	}

	writeJSON(w, http.StatusOK, map[string]any{"rentals": rentals, "stats": stats})
}

func (s *HTTPServer) handleUpdateRental(w http.ResponseWriter, r *http.Request) {
	var upd models.RentalUpdate
	if err := decodeJSON(r, &upd); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid JSON body")
		return
	}

	rental, err := s.rentals.UpdateRental(r.Context(), upd)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "rental": newRentalResponse(rental)})
}

func (s *HTTPServer) handleExportRentals(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))

	// render into memory first so errors still produce a JSON response
	var buf bytes.Buffer
	if err := s.rentals.ExportRentals(r.Context(), &buf, status); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	filename := fmt.Sprintf("dress-rentals-%s.xlsx", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *HTTPServer) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, codeValidation, "limit must be a positive integer")
			return
		}
		limit = n
	}

	logs, err := s.rentals.ListActivity(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": logs})
}
