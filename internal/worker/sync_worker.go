package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"velora/internal/database"
	"velora/internal/domain"
	"velora/internal/metrics"
	"velora/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	TaskUpsert       = "upsert"
	TaskUpdateStatus = "update_status"
	TaskNotify       = "notify"
)

// syncTaskPayload is persisted in SyncTask.Payload as JSON.
type syncTaskPayload struct {
	RentalID string             `json:"rental_id"`
	Rental   *models.RentalView `json:"rental,omitempty"`
	Status   string             `json:"status,omitempty"`
}

// Options tune queue names and polling. Zero values take defaults.
type Options struct {
	QueueSize     int
	RedisQueueKey string
	PollInterval  time.Duration
	// PollGrace hides freshly queued tasks from the database poller.
	PollGrace time.Duration
	BatchSize int
}

// SyncWorker drains sync_queue into the rentals sheet and the manager chat.
type SyncWorker struct {
	db            *database.DB
	sheets        domain.SheetsWriter
	notifier      domain.Notifier
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.SyncTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	pollGrace     time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

func NewSyncWorker(
	db *database.DB,
	sheets domain.SheetsWriter,
	notifier domain.Notifier,
	redisClient *redis.Client,
	retry RetryPolicy,
	opts Options,
	logger *zerolog.Logger,
) *SyncWorker {
	retry = retry.withDefaults()
	if opts.QueueSize <= 0 {
		opts.QueueSize = models.WorkerQueueSize
	}
	if opts.RedisQueueKey == "" {
		opts.RedisQueueKey = "velora:sync:queue"
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.PollGrace <= 0 {
		opts.PollGrace = 30 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &SyncWorker{
		db:            db,
		sheets:        sheets,
		notifier:      notifier,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan models.SyncTask, opts.QueueSize),
		redisQueueKey: opts.RedisQueueKey,
		deadLetterKey: opts.RedisQueueKey + ":deadletter",
		pollInterval:  opts.PollInterval,
		pollGrace:     opts.PollGrace,
		batchSize:     opts.BatchSize,
		logger:        logger,
	}
}

// EnqueueTask persists the task and hands it to Redis, or to the in-memory queue without Redis.
func (w *SyncWorker) EnqueueTask(ctx context.Context, taskType, rentalID string, rental *models.RentalView, status string) error {
	if taskType == "" {
		return errors.New("task type is required")
	}
	if rentalID == "" && rental != nil {
		rentalID = rental.ID
	}
	if rentalID == "" {
		return errors.New("rental id is required")
	}

	payloadBytes, err := json.Marshal(syncTaskPayload{RentalID: rentalID, Rental: rental, Status: status})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	visibleAt := time.Now().Add(w.pollGrace)
	syncTask := models.SyncTask{
		TaskType:    taskType,
		RentalID:    rentalID,
		Payload:     string(payloadBytes),
		Status:      database.SyncStatusPending,
		NextRetryAt: &visibleAt,
	}

	if err := w.db.CreateSyncTask(ctx, &syncTask); err != nil {
		return fmt.Errorf("persist sync task: %w", err)
	}

	if w.redis != nil {
		err := w.pushRedis(ctx, w.redisQueueKey, &syncTask)
		if err == nil {
			return nil
		}
		w.logger.Warn().Err(err).Int64("task_id", syncTask.ID).Msg("redis push failed, using memory queue")
	}

	select {
	case w.queue <- syncTask:
	default:
		w.logger.Warn().Int64("task_id", syncTask.ID).Msg("memory queue full, task left to the poller")
	}

	return nil
}

// Start runs until ctx is done.
func (w *SyncWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("sync worker started")
	defer w.logger.Info().Msg("sync worker stopped")

	for {
		if ctx.Err() != nil {
			return
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		tasks, err := w.db.GetPendingSyncTasks(ctx, w.batchSize)
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Error().Err(err).Msg("fetch pending sync tasks")
			}
			w.wait(ctx)
			continue
		}
		if len(tasks) == 0 {
			w.wait(ctx)
			continue
		}

		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

func (w *SyncWorker) wait(ctx context.Context) {
	timer := time.NewTimer(w.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	case t := <-w.queue:
		w.processTask(ctx, &t)
	}
}

func (w *SyncWorker) tryLocalQueue() (models.SyncTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.SyncTask{}, false
	}
}

func (w *SyncWorker) tryRedis(ctx context.Context) (models.SyncTask, bool) {
	if w.redis == nil {
		return models.SyncTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("redis BRPOP")
		}
		return models.SyncTask{}, false
	}
	if len(res) != 2 {
		return models.SyncTask{}, false
	}
	var task models.SyncTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis task")
		return models.SyncTask{}, false
	}
	return task, true
}

func (w *SyncWorker) processTask(ctx context.Context, task *models.SyncTask) {
	payload, err := decodePayload(task.Payload)
	if err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := w.handleTask(ctx, task.TaskType, payload); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	metrics.IncSyncTask(task.TaskType, database.SyncStatusCompleted)
	if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, database.SyncStatusCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark sync task completed")
	}
}

func (w *SyncWorker) handleTask(ctx context.Context, taskType string, payload syncTaskPayload) error {
	switch taskType {
	case TaskUpsert:
		if payload.Rental == nil {
			return errors.New("rental payload missing")
		}
		if w.sheets == nil {
			return nil
		}
		return w.sheets.UpsertRental(ctx, payload.Rental)
	case TaskUpdateStatus:
		if payload.RentalID == "" || payload.Status == "" {
			return errors.New("rental id or status missing")
		}
		if w.sheets == nil {
			return nil
		}
		var refund *int64
		if payload.Rental != nil {
			refund = payload.Rental.RefundAmount
		}
		return w.sheets.UpdateRentalStatus(ctx, payload.RentalID, payload.Status, refund)
	case TaskNotify:
		if w.notifier == nil {
			return nil
		}
		return w.notifier.NotifyManagers(ctx, notificationText(payload))
	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}
}

func notificationText(p syncTaskPayload) string {
	r := p.Rental
	if r == nil {
		return fmt.Sprintf("Rental %s is now %s", p.RentalID, p.Status)
	}

	switch p.Status {
	case models.RentalPending:
		return fmt.Sprintf("New dress rental\nDress: %s\nDates: %s to %s\nTotal: %d so'm\nDeposit: %d so'm\nClient: %s",
			r.Dress.Name,
			r.StartDate.Format(models.DateLayout),
			r.EndDate.Format(models.DateLayout),
			r.TotalPrice,
			r.DepositAmount,
			r.ClientID,
		)
	case models.RentalCancelled:
		var refund int64
		if r.RefundAmount != nil {
			refund = *r.RefundAmount
		}
		return fmt.Sprintf("Rental cancelled\nDress: %s\nDates: %s to %s\nRefund: %d so'm",
			r.Dress.Name,
			r.StartDate.Format(models.DateLayout),
			r.EndDate.Format(models.DateLayout),
			refund,
		)
	default:
		return fmt.Sprintf("Rental %s (%s) is now %s", r.ID, r.Dress.Name, p.Status)
	}
}

func (w *SyncWorker) retryOrFail(ctx context.Context, task *models.SyncTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		w.failTask(ctx, task, cause)
		return
	}

	metrics.IncSyncTask(task.TaskType, database.SyncStatusRetry)
	nextTime := w.retryPolicy.RetryAt(time.Now(), attempt)
	if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, database.SyncStatusRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark sync task retry")
	}
}

func (w *SyncWorker) failTask(ctx context.Context, task *models.SyncTask, cause error) {
	metrics.IncSyncTask(task.TaskType, database.SyncStatusFailed)
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Str("task_type", task.TaskType).Msg("sync task failed")
	if err := w.db.UpdateSyncTaskStatus(ctx, task.ID, database.SyncStatusFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark sync task failed")
	}
	if w.redis != nil {
		if err := w.pushRedis(ctx, w.deadLetterKey, task); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("dead letter push")
		}
	}
}

func decodePayload(raw string) (syncTaskPayload, error) {
	var payload syncTaskPayload
	err := json.Unmarshal([]byte(raw), &payload)
	return payload, err
}

func (w *SyncWorker) pushRedis(ctx context.Context, key string, task *models.SyncTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}
