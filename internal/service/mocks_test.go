package service

import (
	"context"
	"time"

	"velora/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) CreateDress(ctx context.Context, d *models.WeddingDress) error {
	return m.Called(ctx, d).Error(0)
}
func (m *mockRepo) GetDress(ctx context.Context, id string) (*models.WeddingDress, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WeddingDress), args.Error(1)
}
func (m *mockRepo) ListDresses(ctx context.Context, f models.DressFilter) ([]*models.WeddingDress, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.WeddingDress), args.Error(1)
}
func (m *mockRepo) UpdateDress(ctx context.Context, id string, upd models.DressUpdate) (*models.WeddingDress, error) {
	args := m.Called(ctx, id, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WeddingDress), args.Error(1)
}
func (m *mockRepo) DeleteDress(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockRepo) CreateRentalWithLock(ctx context.Context, r *models.Rental, e *models.ActivityLog) error {
	return m.Called(ctx, r, e).Error(0)
}
func (m *mockRepo) GetRental(ctx context.Context, id string) (*models.Rental, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Rental), args.Error(1)
}
func (m *mockRepo) ListRentals(ctx context.Context, status string) ([]*models.RentalView, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RentalView), args.Error(1)
}
func (m *mockRepo) GetActiveRentalsForDress(ctx context.Context, id string, from, to time.Time) ([]*models.Rental, error) {
	args := m.Called(ctx, id, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Rental), args.Error(1)
}
func (m *mockRepo) UpdateRentalStatusWithVersion(ctx context.Context, id string, v int64, status string, paid *bool, e *models.ActivityLog) error {
	return m.Called(ctx, id, v, status, paid, e).Error(0)
}
func (m *mockRepo) SetDepositPaidWithVersion(ctx context.Context, id string, v int64, paid bool) error {
	return m.Called(ctx, id, v, paid).Error(0)
}
func (m *mockRepo) CancelRentalWithVersion(ctx context.Context, id string, v int64, refund int64, e *models.ActivityLog) error {
	return m.Called(ctx, id, v, refund, e).Error(0)
}
func (m *mockRepo) ListActivityLogs(ctx context.Context, limit int) ([]*models.ActivityLog, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ActivityLog), args.Error(1)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetDresses(ctx context.Context, key string) ([]*models.WeddingDress, bool, error) {
	args := m.Called(ctx, key)
	var dresses []*models.WeddingDress
	if args.Get(0) != nil {
		dresses = args.Get(0).([]*models.WeddingDress)
	}
	return dresses, args.Bool(1), args.Error(2)
}
func (m *mockCache) SetDresses(ctx context.Context, key string, dresses []*models.WeddingDress) error {
	return m.Called(ctx, key, dresses).Error(0)
}
func (m *mockCache) InvalidateDresses(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
func (m *mockCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(eventType string, payload any) error {
	return m.Called(eventType, payload).Error(0)
}

type mockWorker struct {
	mock.Mock
}

func (m *mockWorker) EnqueueTask(ctx context.Context, taskType, rentalID string, rental *models.RentalView, status string) error {
	return m.Called(ctx, taskType, rentalID, rental, status).Error(0)
}
