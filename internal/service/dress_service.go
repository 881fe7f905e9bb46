package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"velora/internal/domain"
	"velora/internal/events"
	"velora/internal/models"
	"velora/internal/pricing"

	"github.com/rs/zerolog"
)

// DressOptions tune the catalog. Zero values take defaults.
type DressOptions struct {
	Location         *time.Location
	AvailabilityDays int
	Now              func() time.Time
}

type DressService struct {
	repo             domain.Repository
	cache            domain.CacheRepository
	eventBus         domain.EventPublisher
	loc              *time.Location
	availabilityDays int
	now              func() time.Time
	logger           *zerolog.Logger
}

func NewDressService(repo domain.Repository, cache domain.CacheRepository, eventBus domain.EventPublisher, opts DressOptions, logger *zerolog.Logger) *DressService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.AvailabilityDays <= 0 {
		opts.AvailabilityDays = models.DefaultAvailabilityDays
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &DressService{
		repo:             repo,
		cache:            cache,
		eventBus:         eventBus,
		loc:              opts.Location,
		availabilityDays: opts.AvailabilityDays,
		now:              opts.Now,
		logger:           logger,
	}
}

// NormalizeFilter turns the "all" placeholder into an empty filter value.
func NormalizeFilter(f models.DressFilter) models.DressFilter {
	if strings.EqualFold(f.Style, "all") {
		f.Style = ""
	}
	if strings.EqualFold(f.Size, "all") {
		f.Size = ""
	}
	return f
}

func catalogKey(f models.DressFilter) string {
	return fmt.Sprintf("style=%s|size=%s|all=%t", f.Style, f.Size, f.All)
}

// ListDresses serves the catalog from cache when it can.
func (s *DressService) ListDresses(ctx context.Context, filter models.DressFilter) ([]*models.WeddingDress, error) {
	filter = NormalizeFilter(filter)
	key := catalogKey(filter)

	if s.cache != nil {
		dresses, ok, err := s.cache.GetDresses(ctx, key)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
		} else if ok {
			return dresses, nil
		}
	}

	dresses, err := s.repo.ListDresses(ctx, filter)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetDresses(ctx, key, dresses); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
		}
	}
	return dresses, nil
}

func (s *DressService) GetDress(ctx context.Context, id string) (*models.WeddingDress, error) {
	return s.repo.GetDress(ctx, id)
}

// DressDetail returns the dress with its calendar starting today.
func (s *DressService) DressDetail(ctx context.Context, id string) (*models.DressDetail, error) {
	dress, err := s.repo.GetDress(ctx, id)
	if err != nil {
		return nil, err
	}

	today := pricing.DateOnly(s.now().In(s.loc))
	last := today.AddDate(0, 0, s.availabilityDays-1)

	rentals, err := s.repo.GetActiveRentalsForDress(ctx, id, today, last)
	if err != nil {
		return nil, err
	}

	return &models.DressDetail{
		Dress:          dress,
		Availability:   Calendar(dress.IsAvailable, rentals, today, s.availabilityDays),
		DepositPercent: pricing.DepositPercent,
	}, nil
}

// Calendar marks each of the next days as free unless the dress is withdrawn or an active rental covers it.
func Calendar(dressAvailable bool, rentals []*models.Rental, from time.Time, days int) []models.DayAvailability {
	out := make([]models.DayAvailability, 0, days)
	for i := 0; i < days; i++ {
		day := from.AddDate(0, 0, i)
		free := dressAvailable
		for _, r := range rentals {
			if !free {
				break
			}
			if r.IsActive() && pricing.Overlaps(day, day, r.StartDate, r.EndDate) {
				free = false
			}
		}
		out = append(out, models.DayAvailability{Date: day.Format(models.DateLayout), IsAvailable: free})
	}
	return out
}

// CreateDress adds a dress, filling the catalog defaults for omitted fields.
func (s *DressService) CreateDress(ctx context.Context, in models.DressUpdate) (*models.WeddingDress, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if in.RentPrice == nil || *in.RentPrice <= 0 {
		return nil, fmt.Errorf("%w: rentPrice must be positive", ErrInvalidRequest)
	}
	if in.Price != nil && *in.Price < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidRequest)
	}

	dress := &models.WeddingDress{
		Name:        strings.TrimSpace(*in.Name),
		RentPrice:   *in.RentPrice,
		Size:        models.DefaultDressSize,
		Color:       models.DefaultDressColor,
		Style:       models.DefaultDressStyle,
		Image:       models.DefaultDressImage,
		IsAvailable: true,
	}
	if in.Description != nil {
		dress.Description = *in.Description
	}
	if in.Price != nil {
		dress.Price = *in.Price
	}
	if in.Image != nil && *in.Image != "" {
		dress.Image = *in.Image
	}
	if in.Size != nil && *in.Size != "" {
		dress.Size = *in.Size
	}
	if in.Color != nil && *in.Color != "" {
		dress.Color = *in.Color
	}
	if in.Style != nil && *in.Style != "" {
		dress.Style = *in.Style
	}
	if in.IsAvailable != nil {
		dress.IsAvailable = *in.IsAvailable
	}

	if err := s.repo.CreateDress(ctx, dress); err != nil {
		return nil, err
	}

	s.catalogChanged(ctx, dress.ID, "created")
	return dress, nil
}

func (s *DressService) UpdateDress(ctx context.Context, id string, upd models.DressUpdate) (*models.WeddingDress, error) {
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidRequest)
	}
	if upd.RentPrice != nil && *upd.RentPrice <= 0 {
		return nil, fmt.Errorf("%w: rentPrice must be positive", ErrInvalidRequest)
	}
	if upd.Price != nil && *upd.Price < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidRequest)
	}

	dress, err := s.repo.UpdateDress(ctx, id, upd)
	if err != nil {
		return nil, err
	}

	s.catalogChanged(ctx, id, "updated")
	return dress, nil
}

// DeleteDress refuses while any rental references the dress.
func (s *DressService) DeleteDress(ctx context.Context, id string) error {
	if err := s.repo.DeleteDress(ctx, id); err != nil {
		return err
	}
	s.catalogChanged(ctx, id, "deleted")
	return nil
}

func (s *DressService) catalogChanged(ctx context.Context, id, action string) {
	if s.cache != nil {
		if err := s.cache.InvalidateDresses(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("catalog cache invalidation failed")
		}
	}

	s.logger.Info().Str("dress_id", id).Str("action", action).Msg("catalog changed")

	if s.eventBus == nil {
		return
	}
	payload := events.DressEventPayload{DressID: id, Action: action, ChangedAt: s.now()}
	if err := s.eventBus.PublishJSON(events.EventDressChanged, payload); err != nil {
		s.logger.Error().Err(err).Str("dress_id", id).Msg("publish event error")
	}
}
