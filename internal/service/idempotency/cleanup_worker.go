// Package idempotency защищает оформление заказа от повторной отправки:
// HTTP middleware сохраняет ответ по Idempotency-Key, а CleanupWorker
// удаляет просроченные ключи.
package idempotency

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	defaultCleanupInterval   = 10 * time.Minute
	defaultCleanupBatchSize  = 500
	defaultCleanupMaxBatches = 100
)

// CleanupRecorder получает метрики очистки.
type CleanupRecorder interface {
	RecordCleanup(deleted int, err error)
	RecordDeleted(deleted int)
}

// CleanupWorker периодически удаляет ключи оформления заказа с истёкшим TTL.
type CleanupWorker struct {
	repo       domain.IdempotencyRepository
	recorder   CleanupRecorder
	logger     *log.Entry
	now        func() time.Time
	interval   time.Duration
	batchSize  int
	maxBatches int
}

// CleanupOption настраивает CleanupWorker.
type CleanupOption func(*CleanupWorker)

// WithLogger задаёт logger воркера.
func WithLogger(logger *log.Entry) CleanupOption {
	return func(w *CleanupWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithCleanupRecorder задаёт получателя метрик очистки.
func WithCleanupRecorder(recorder CleanupRecorder) CleanupOption {
	return func(w *CleanupWorker) { w.recorder = recorder }
}

// WithInterval задаёт паузу между проходами.
func WithInterval(interval time.Duration) CleanupOption {
	return func(w *CleanupWorker) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

// WithBatchSize задаёт число ключей, удаляемых одним запросом.
func WithBatchSize(batchSize int) CleanupOption {
	return func(w *CleanupWorker) {
		if batchSize > 0 {
			w.batchSize = batchSize
		}
	}
}

// WithMaxBatches ограничивает число запросов за один проход; остаток
// удаляется на следующем тике.
func WithMaxBatches(n int) CleanupOption {
	return func(w *CleanupWorker) {
		if n > 0 {
			w.maxBatches = n
		}
	}
}

// withClock подменяет источник времени.
func withClock(now func() time.Time) CleanupOption {
	return func(w *CleanupWorker) {
		if now != nil {
			w.now = now
		}
	}
}

// NewCleanupWorker создаёт воркер очистки.
func NewCleanupWorker(repo domain.IdempotencyRepository, options ...CleanupOption) *CleanupWorker {
	w := &CleanupWorker{
		repo:       repo,
		logger:     log.WithField("component", "idempotency-cleanup-worker"),
		now:        func() time.Time { return time.Now().UTC() },
		interval:   defaultCleanupInterval,
		batchSize:  defaultCleanupBatchSize,
		maxBatches: defaultCleanupMaxBatches,
	}
	for _, option := range options {
		option(w)
	}
	return w
}

// Run выполняет проход сразу и затем каждые interval до отмены ctx.
func (w *CleanupWorker) Run(ctx context.Context) {
	if w.repo == nil {
		w.logger.Warn("idempotency cleanup worker is disabled: repo is nil")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.cleanup(ctx, w.now())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *CleanupWorker) cleanup(ctx context.Context, before time.Time) {
	deleted, err := w.DeleteExpired(ctx, before)
	if errors.Is(err, context.Canceled) {
		return
	}
	if w.recorder != nil {
		w.recorder.RecordCleanup(deleted, err)
	}

	logger := w.logger.WithField("deleted", deleted)
	switch {
	case err != nil:
		logger.WithError(err).Warn("idempotency cleanup run failed")
	case deleted > 0:
		logger.Info("idempotency cleanup completed")
	}
}

// DeleteExpired удаляет ключи с expires_at <= before порциями batchSize,
// не больше maxBatches запросов. Нулевой before означает текущее время.
func (w *CleanupWorker) DeleteExpired(ctx context.Context, before time.Time) (total int, err error) {
	if before.IsZero() {
		before = w.now()
	}

	for batch := 0; batch < w.maxBatches; batch++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		deleted, err := w.repo.DeleteExpired(before, w.batchSize)
		if err != nil {
			return total, err
		}
		total += deleted
		if deleted > 0 && w.recorder != nil {
			w.recorder.RecordDeleted(deleted)
		}
		if deleted < w.batchSize {
			return total, nil
		}
	}

	w.logger.WithFields(log.Fields{
		"deleted":     total,
		"max_batches": w.maxBatches,
	}).Warn("idempotency cleanup hit batch limit, rest deferred to next run")
	return total, nil
}
