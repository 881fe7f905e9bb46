package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"velora/internal/database"
	"velora/internal/domain"
	"velora/internal/events"
	"velora/internal/export"
	"velora/internal/metrics"
	"velora/internal/models"
	"velora/internal/pricing"
	"velora/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// cancelAttempts bounds re-reads when a rental changes under a cancellation.
const cancelAttempts = 3

// BookingRequest is a client's request to rent a dress.
type BookingRequest struct {
	DressID   string
	ClientID  string
	StartDate time.Time
	EndDate   time.Time
}

// RentalOptions tune the rental calendar. Zero values take defaults.
type RentalOptions struct {
	Location          *time.Location
	MaxBookingDays    int
	RateLimitAttempts int
	RateLimitWindow   time.Duration
	Now               func() time.Time
}

type RentalService struct {
	repo           domain.Repository
	cache          domain.CacheRepository
	eventBus       domain.EventPublisher
	syncWorker     domain.SyncWorker
	loc            *time.Location
	maxBookingDays int
	rateAttempts   int
	rateWindow     time.Duration
	now            func() time.Time
	logger         *zerolog.Logger
}

func NewRentalService(
	repo domain.Repository,
	cache domain.CacheRepository,
	eventBus domain.EventPublisher,
	syncWorker domain.SyncWorker,
	opts RentalOptions,
	logger *zerolog.Logger,
) *RentalService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.MaxBookingDays <= 0 {
		opts.MaxBookingDays = models.DefaultMaxBookingDays
	}
	if opts.RateLimitWindow <= 0 {
		opts.RateLimitWindow = models.BookingRateLimitWindow * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &RentalService{
		repo:           repo,
		cache:          cache,
		eventBus:       eventBus,
		syncWorker:     syncWorker,
		loc:            opts.Location,
		maxBookingDays: opts.MaxBookingDays,
		rateAttempts:   opts.RateLimitAttempts,
		rateWindow:     opts.RateLimitWindow,
		now:            opts.Now,
		logger:         logger,
	}
}

// Today is the current calendar date in the shop's timezone.
func (s *RentalService) Today() time.Time {
	return pricing.DateOnly(s.now().In(s.loc))
}

// ValidateRentalDates checks the range against today and the booking horizon.
func (s *RentalService) ValidateRentalDates(start, end time.Time) error {
	start, end = pricing.DateOnly(start), pricing.DateOnly(end)
	if end.Before(start) {
		return database.ErrInvalidDateRange
	}

	today := s.Today()
	if start.Before(today) {
		return database.ErrPastDate
	}
	if start.After(today.AddDate(0, 0, s.maxBookingDays)) {
		return database.ErrDateTooFar
	}
	return nil
}

func (s *RentalService) CreateRental(ctx context.Context, req BookingRequest) (*models.Rental, error) {
	if req.DressID == "" {
		return nil, fmt.Errorf("%w: dressId is required", ErrInvalidRequest)
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return nil, fmt.Errorf("%w: startDate and endDate are required", ErrInvalidRequest)
	}
	if req.ClientID == "" {
		req.ClientID = models.GuestClientID
	}
	start, end := pricing.DateOnly(req.StartDate), pricing.DateOnly(req.EndDate)

	if err := s.ValidateRentalDates(start, end); err != nil {
		metrics.IncRentalRejected(rejectReason(err))
		return nil, err
	}

	if err := s.checkBookingLimit(ctx, req.ClientID); err != nil {
		metrics.IncRentalRejected(rejectReason(err))
		return nil, err
	}

	dress, err := s.repo.GetDress(ctx, req.DressID)
	if err != nil {
		return nil, err
	}
	if !dress.IsAvailable {
		metrics.IncRentalRejected(rejectReason(database.ErrDressUnavailable))
		return nil, database.ErrDressUnavailable
	}

	quote, err := pricing.Quote(dress.RentPrice, start, end)
	if err != nil {
		return nil, err
	}

	rental := &models.Rental{
		ID:            uuid.NewString(),
		DressID:       dress.ID,
		ClientID:      req.ClientID,
		StartDate:     start,
		EndDate:       end,
		TotalPrice:    quote.TotalPrice,
		DepositAmount: quote.DepositAmount,
		Status:        models.RentalPending,
	}

	entry := s.bookingEntry(rental, dress)
	if err := s.repo.CreateRentalWithLock(ctx, rental, entry); err != nil {
		metrics.IncRentalRejected(rejectReason(err))
		return nil, err
	}

	metrics.IncRentalCreated()
	s.logger.Info().
		Str("rental_id", rental.ID).
		Str("dress_id", dress.ID).
		Str("client_id", rental.ClientID).
		Int64("total", rental.TotalPrice).
		Msg("rental created")

	view := &models.RentalView{Rental: *rental, Dress: dressSummary(dress)}
	s.publishEvent(events.EventRentalCreated, view)
	s.enqueueSync(ctx, view, worker.TaskUpsert)

	return rental, nil
}

func (s *RentalService) checkBookingLimit(ctx context.Context, clientID string) error {
	if s.cache == nil || s.rateAttempts <= 0 {
		return nil
	}

	allowed, err := s.cache.CheckRateLimit(ctx, "booking:"+clientID, s.rateAttempts, s.rateWindow)
	if err != nil {
		s.logger.Warn().Err(err).Str("client_id", clientID).Msg("booking rate limit check failed")
		return nil
	}
	if !allowed {
		return ErrTooManyBookings
	}
	return nil
}

func (s *RentalService) bookingEntry(rental *models.Rental, dress *models.WeddingDress) *models.ActivityLog {
	meta, _ := json.Marshal(map[string]any{
		"bookingId":     rental.ID,
		"dressId":       dress.ID,
		"startDate":     rental.StartDate.Format(models.DateLayout),
		"endDate":       rental.EndDate.Format(models.DateLayout),
		"totalPrice":    rental.TotalPrice,
		"depositAmount": rental.DepositAmount,
	})

	entry := &models.ActivityLog{
		Type: models.ActivityDressBooking,
		Message: fmt.Sprintf("Dress %s booked from %s to %s",
			dress.Name,
			rental.StartDate.Format(models.DateLayout),
			rental.EndDate.Format(models.DateLayout),
		),
		Metadata: string(meta),
	}
	if rental.ClientID != models.GuestClientID {
		clientID := rental.ClientID
		entry.UserID = &clientID
	}
	return entry
}

// Quote prices a rental without booking it.
func (s *RentalService) Quote(ctx context.Context, dressID string, start, end time.Time) (*models.Quote, error) {
	dress, err := s.repo.GetDress(ctx, dressID)
	if err != nil {
		return nil, err
	}

	start, end = pricing.DateOnly(start), pricing.DateOnly(end)
	breakdown, err := pricing.Quote(dress.RentPrice, start, end)
	if err != nil {
		return nil, err
	}

	available := dress.IsAvailable && !start.Before(s.Today())
	if available {
		booked, err := s.repo.GetActiveRentalsForDress(ctx, dressID, start, end)
		if err != nil {
			return nil, err
		}
		available = len(booked) == 0
	}

	return &models.Quote{
		DressID:       dressID,
		StartDate:     start,
		EndDate:       end,
		RentalDays:    breakdown.RentalDays,
		TotalPrice:    breakdown.TotalPrice,
		DepositAmount: breakdown.DepositAmount,
		Available:     available,
	}, nil
}

// RefundPreview is the refund a cancellation would pay today.
func (s *RentalService) RefundPreview(deposit int64, start time.Time) (refund int64, daysUntil int) {
	daysUntil = pricing.DaysUntil(s.Today(), start)
	return pricing.Refund(deposit, daysUntil), daysUntil
}

func (s *RentalService) GetRental(ctx context.Context, id string) (*models.Rental, error) {
	return s.repo.GetRental(ctx, id)
}

// PreviewCancellation reports what cancelling the rental now would refund, without writing.
func (s *RentalService) PreviewCancellation(ctx context.Context, id string) (*models.Cancellation, error) {
	rental, err := s.repo.GetRental(ctx, id)
	if err != nil {
		return nil, err
	}
	switch rental.Status {
	case models.RentalCancelled:
		return nil, database.ErrAlreadyCancelled
	case models.RentalReturned:
		return nil, fmt.Errorf("%w: returned rental cannot be cancelled", database.ErrInvalidTransition)
	}

	refund, daysUntil := s.RefundPreview(rental.DepositAmount, rental.StartDate)
	return &models.Cancellation{
		RentalID:        rental.ID,
		RefundAmount:    refund,
		DaysUntilRental: daysUntil,
		Message:         CancellationMessage(refund),
	}, nil
}

// CancelRental cancels the rental and stores its refund exactly once.
func (s *RentalService) CancelRental(ctx context.Context, id string) (*models.Cancellation, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: rental id is required", ErrInvalidRequest)
	}

	for attempt := 0; attempt < cancelAttempts; attempt++ {
		rental, err := s.repo.GetRental(ctx, id)
		if err != nil {
			return nil, err
		}

		switch rental.Status {
		case models.RentalCancelled:
			return nil, database.ErrAlreadyCancelled
		case models.RentalReturned:
			return nil, fmt.Errorf("%w: returned rental cannot be cancelled", database.ErrInvalidTransition)
		}

		refund, daysUntil := s.RefundPreview(rental.DepositAmount, rental.StartDate)
		meta, _ := json.Marshal(map[string]any{
			"bookingId":       rental.ID,
			"refundAmount":    refund,
			"daysUntilRental": daysUntil,
		})
		entry := &models.ActivityLog{
			Type:     models.ActivityCancellation,
			Message:  fmt.Sprintf("Rental %s cancelled, refund %d", rental.ID, refund),
			Metadata: string(meta),
		}
		if rental.ClientID != models.GuestClientID {
			clientID := rental.ClientID
			entry.UserID = &clientID
		}

		err = s.repo.CancelRentalWithVersion(ctx, id, rental.Version, refund, entry)
		if errors.Is(err, database.ErrConcurrentModification) {
			s.logger.Debug().Str("rental_id", id).Int("attempt", attempt+1).Msg("rental changed during cancellation")
			continue
		}
		if err != nil {
			return nil, err
		}

		rental.Status = models.RentalCancelled
		rental.RefundAmount = &refund
		rental.Version++

		metrics.IncStatusTransition(models.RentalCancelled)
		metrics.ObserveRefund(refund)
		s.logger.Info().Str("rental_id", id).Int64("refund", refund).Int("days_until", daysUntil).Msg("rental cancelled")

		view := s.viewOf(ctx, rental)
		s.publishEvent(events.EventRentalCancelled, view)
		s.enqueueSync(ctx, view, worker.TaskUpdateStatus)

		return &models.Cancellation{
			RentalID:        id,
			RefundAmount:    refund,
			DaysUntilRental: daysUntil,
			Message:         CancellationMessage(refund),
		}, nil
	}

	return nil, database.ErrConcurrentModification
}

// CancellationMessage is the client-facing text of a cancellation outcome.
func CancellationMessage(refund int64) string {
	if refund > 0 {
		return fmt.Sprintf("Booking cancelled. Refund: %d so'm", refund)
	}
	return "Booking cancelled. Deposit is not refundable (less than 7 days left)."
}

// UpdateRental applies an admin patch. The whole patch is validated before anything is
// written, and a deposit flag sent with a status change is stored by the same update.
func (s *RentalService) UpdateRental(ctx context.Context, upd models.RentalUpdate) (*models.Rental, error) {
	if upd.ID == "" {
		return nil, fmt.Errorf("%w: rental id is required", ErrInvalidRequest)
	}
	if upd.Status == "" && upd.DepositPaid == nil {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidRequest)
	}

	rental, err := s.repo.GetRental(ctx, upd.ID)
	if err != nil {
		return nil, err
	}

	next := *rental
	var depositPaid *bool
	if upd.DepositPaid != nil && *upd.DepositPaid != rental.DepositPaid {
		if !rental.IsActive() {
			return nil, fmt.Errorf("%w: deposit of a %s rental cannot change", database.ErrInvalidTransition, rental.Status)
		}
		depositPaid = upd.DepositPaid
		next.DepositPaid = *upd.DepositPaid
	}

	statusChange := upd.Status != "" && upd.Status != rental.Status
	if statusChange && upd.Status != models.RentalCancelled {
		if err := CheckTransition(&next, upd.Status); err != nil {
			return nil, err
		}
	}

	switch {
	case statusChange && upd.Status == models.RentalCancelled:
		if depositPaid != nil {
			if err := s.repo.SetDepositPaidWithVersion(ctx, rental.ID, rental.Version, *depositPaid); err != nil {
				return nil, err
			}
		}
		if _, err := s.CancelRental(ctx, rental.ID); err != nil {
			return nil, err
		}
	case statusChange:
		if err := s.changeStatus(ctx, &next, upd.Status, depositPaid); err != nil {
			return nil, err
		}
	case depositPaid != nil:
		if err := s.repo.SetDepositPaidWithVersion(ctx, rental.ID, rental.Version, *depositPaid); err != nil {
			return nil, err
		}
	}

	return s.repo.GetRental(ctx, rental.ID)
}

func (s *RentalService) changeStatus(ctx context.Context, rental *models.Rental, to string, depositPaid *bool) error {
	meta, _ := json.Marshal(map[string]any{
		"bookingId": rental.ID,
		"from":      rental.Status,
		"to":        to,
	})
	entry := &models.ActivityLog{
		Type:     models.ActivityRentalStatus,
		Message:  fmt.Sprintf("Rental %s: %s -> %s", rental.ID, rental.Status, to),
		Metadata: string(meta),
	}
	if err := s.repo.UpdateRentalStatusWithVersion(ctx, rental.ID, rental.Version, to, depositPaid, entry); err != nil {
		return err
	}
	rental.Status = to
	rental.Version++

	metrics.IncStatusTransition(to)
	s.logger.Info().Str("rental_id", rental.ID).Str("status", to).Msg("rental status changed")

	view := s.viewOf(ctx, rental)
	s.publishEvent(statusEvent(to), view)
	s.enqueueSync(ctx, view, worker.TaskUpdateStatus)
	return nil
}

// CheckTransition validates an admin status change other than cancellation.
func CheckTransition(rental *models.Rental, to string) error {
	switch {
	case rental.Status == models.RentalPending && to == models.RentalConfirmed:
		return nil
	case rental.Status == models.RentalConfirmed && to == models.RentalActive:
		if !rental.DepositPaid {
			return database.ErrDepositNotPaid
		}
		return nil
	case rental.Status == models.RentalActive && to == models.RentalReturned:
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", database.ErrInvalidTransition, rental.Status, to)
}

func statusEvent(status string) string {
	switch status {
	case models.RentalConfirmed:
		return events.EventRentalConfirmed
	case models.RentalActive:
		return events.EventRentalActivated
	case models.RentalReturned:
		return events.EventRentalReturned
	case models.RentalCancelled:
		return events.EventRentalCancelled
	}
	return ""
}

// ListRentals returns the admin list and its counts. "all" or empty means no status filter.
func (s *RentalService) ListRentals(ctx context.Context, status string) ([]*models.RentalView, models.RentalStats, error) {
	var stats models.RentalStats
	if status == "all" {
		status = ""
	}
	if status != "" && !validStatus(status) {
		return nil, stats, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, status)
	}

	rentals, err := s.repo.ListRentals(ctx, status)
	if err != nil {
		return nil, stats, err
	}
	for _, r := range rentals {
		stats.Add(r.Status, 1)
	}
	return rentals, stats, nil
}

// ExportRentals writes the admin list as an XLSX workbook.
func (s *RentalService) ExportRentals(ctx context.Context, w io.Writer, status string) error {
	rentals, stats, err := s.ListRentals(ctx, status)
	if err != nil {
		return err
	}
	return export.WriteRentals(w, rentals, stats, s.now().In(s.loc))
}

func (s *RentalService) ListActivity(ctx context.Context, limit int) ([]*models.ActivityLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.repo.ListActivityLogs(ctx, limit)
}

func validStatus(status string) bool {
	for _, st := range models.AllRentalStatuses {
		if st == status {
			return true
		}
	}
	return false
}

// viewOf attaches the dress summary; a missing dress leaves it empty.
func (s *RentalService) viewOf(ctx context.Context, rental *models.Rental) *models.RentalView {
	view := &models.RentalView{Rental: *rental}
	dress, err := s.repo.GetDress(ctx, rental.DressID)
	if err != nil {
		s.logger.Warn().Err(err).Str("dress_id", rental.DressID).Msg("dress lookup for rental view failed")
		view.Dress.ID = rental.DressID
		return view
	}
	view.Dress = dressSummary(dress)
	return view
}

func dressSummary(d *models.WeddingDress) models.RentalDress {
	return models.RentalDress{
		ID:        d.ID,
		Name:      d.Name,
		Image:     d.Image,
		Size:      d.Size,
		Color:     d.Color,
		RentPrice: d.RentPrice,
	}
}

func (s *RentalService) publishEvent(eventType string, view *models.RentalView) {
	if s.eventBus == nil || eventType == "" {
		return
	}

	payload := events.RentalEventPayload{
		RentalID:      view.ID,
		DressID:       view.DressID,
		DressName:     view.Dress.Name,
		ClientID:      view.ClientID,
		Status:        view.Status,
		StartDate:     view.StartDate.Format(models.DateLayout),
		EndDate:       view.EndDate.Format(models.DateLayout),
		TotalPrice:    view.TotalPrice,
		DepositAmount: view.DepositAmount,
		RefundAmount:  view.RefundAmount,
		ChangedAt:     s.now(),
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("rental_id", view.ID).Msg("publish event error")
	}
}

// enqueueSync mirrors the rental to the sheet and tells the managers.
func (s *RentalService) enqueueSync(ctx context.Context, view *models.RentalView, taskType string) {
	if s.syncWorker == nil {
		return
	}

	for _, t := range []string{taskType, worker.TaskNotify} {
		if err := s.syncWorker.EnqueueTask(ctx, t, view.ID, view, view.Status); err != nil {
			s.logger.Error().Err(err).Str("rental_id", view.ID).Str("task", t).Msg("sync enqueue error")
		}
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, database.ErrPastDate):
		return "past_date"
	case errors.Is(err, database.ErrDressUnavailable):
		return "dress_unavailable"
	case errors.Is(err, database.ErrDatesUnavailable):
		return "dates_unavailable"
	case errors.Is(err, database.ErrDateTooFar):
		return "date_too_far"
	case errors.Is(err, database.ErrInvalidDateRange):
		return "invalid_range"
	case errors.Is(err, ErrTooManyBookings):
		return "rate_limited"
	case errors.Is(err, database.ErrDressNotFound):
		return "dress_not_found"
	default:
		return "error"
	}
}
