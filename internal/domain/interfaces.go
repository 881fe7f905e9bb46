package domain

import (
	"context"
	"time"

	"velora/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Repository is the relational store behind the rental and catalog services.
type Repository interface {
	CreateDress(ctx context.Context, dress *models.WeddingDress) error
	GetDress(ctx context.Context, id string) (*models.WeddingDress, error)
	ListDresses(ctx context.Context, filter models.DressFilter) ([]*models.WeddingDress, error)
	UpdateDress(ctx context.Context, id string, upd models.DressUpdate) (*models.WeddingDress, error)
	DeleteDress(ctx context.Context, id string) error

	CreateRentalWithLock(ctx context.Context, rental *models.Rental, entry *models.ActivityLog) error
	GetRental(ctx context.Context, id string) (*models.Rental, error)
	ListRentals(ctx context.Context, status string) ([]*models.RentalView, error)
	GetActiveRentalsForDress(ctx context.Context, dressID string, from, to time.Time) ([]*models.Rental, error)
	UpdateRentalStatusWithVersion(ctx context.Context, id string, fromVersion int64, status string, depositPaid *bool, entry *models.ActivityLog) error
	SetDepositPaidWithVersion(ctx context.Context, id string, fromVersion int64, paid bool) error
	CancelRentalWithVersion(ctx context.Context, id string, fromVersion int64, refund int64, entry *models.ActivityLog) error

	ListActivityLogs(ctx context.Context, limit int) ([]*models.ActivityLog, error)
}

// CacheRepository keeps catalog pages and booking-attempt counters.
type CacheRepository interface {
	GetDresses(ctx context.Context, key string) ([]*models.WeddingDress, bool, error)
	SetDresses(ctx context.Context, key string, dresses []*models.WeddingDress) error
	InvalidateDresses(ctx context.Context) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload any) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// SheetsWriter mirrors rentals into a spreadsheet.
type SheetsWriter interface {
	UpsertRental(ctx context.Context, rental *models.RentalView) error
	UpdateRentalStatus(ctx context.Context, rentalID, status string, refund *int64) error
}

// Notifier delivers a text message to the shop managers.
type Notifier interface {
	NotifyManagers(ctx context.Context, text string) error
}

// SyncWorker accepts background tasks produced by the rental service.
type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, rentalID string, rental *models.RentalView, status string) error
}
