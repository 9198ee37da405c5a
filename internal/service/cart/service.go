// Package cart — операции с корзиной покупателя поверх коммерческого бэкенда.
//
// Каждая операция берёт идентификатор корзины из CartIDStore запроса,
// вызывает бэкенд, сбрасывает теги кэша запроса при успехе и приводит ошибки
// бэкенда к единому виду через backend.TranslateError. Суммы корзины локально
// не пересчитываются.
package cart

import (
	"context"
	"encoding/json"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/backend"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Backend — методы бэкенда, которые нужны корзине.
type Backend interface {
	domain.CartBackend
	domain.PaymentBackend
}

// RegionResolver определяет регион по коду страны.
type RegionResolver interface {
	Resolve(ctx context.Context, countryCode string) (domain.Region, bool)
}

// ProductLookup загружает товары с ценами региона.
type ProductLookup interface {
	ProductsByID(ctx context.Context, ids []string, regionID string) ([]domain.Product, error)
}

// Recorder получает метрики операций корзины.
type Recorder interface {
	RecordCartOperation(operation string, err error)
	RecordOrderPlaced()
	RecordOrderInFlightStarted()
	RecordOrderInFlightFinished()
	RecordOutboxEvent(eventType string)
}

// Service выполняет операции с корзиной.
type Service struct {
	backend  Backend
	regions  RegionResolver
	products ProductLookup
	ids      domain.CartIDStore
	outbox   domain.OutboxRepository
	recorder Recorder
	logger   *log.Entry
}

// Option настраивает Service.
type Option func(*Service)

// WithOutbox включает запись событий корзины в outbox.
func WithOutbox(outbox domain.OutboxRepository) Option {
	return func(s *Service) {
		s.outbox = outbox
	}
}

// WithRecorder задаёт получателя метрик.
func WithRecorder(recorder Recorder) Option {
	return func(s *Service) {
		s.recorder = recorder
	}
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService создаёт сервис корзины.
func NewService(backend Backend, regions RegionResolver, products ProductLookup, ids domain.CartIDStore, options ...Option) *Service {
	s := &Service{
		backend:  backend,
		regions:  regions,
		products: products,
		ids:      ids,
		logger:   log.WithField("component", "cart"),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *Service) cartID(ctx context.Context) (string, error) {
	id, ok := s.ids.CartID(ctx)
	if !ok || id == "" {
		return "", domain.ErrNoActiveCart
	}
	return id, nil
}

// finish записывает метрику операции и приводит ошибку к единому виду.
func (s *Service) finish(operation string, err error) error {
	err = backend.TranslateError(err)
	if s.recorder != nil {
		s.recorder.RecordCartOperation(operation, err)
	}
	return err
}

// emit пишет событие в outbox. Ошибка записи логируется и не прерывает операцию:
// состояние корзины уже изменено бэкендом.
func (s *Service) emit(aggregateType, aggregateID, eventType string, payload any) {
	if s.outbox == nil {
		return
	}

	logger := s.logger.WithFields(log.Fields{
		"aggregate_id": aggregateID,
		"event":        eventType,
	})

	data, err := json.Marshal(payload)
	if err != nil {
		logger.WithError(err).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := s.outbox.Enqueue(msg); err != nil {
		logger.WithError(err).Error("enqueue event failed")
		return
	}
	if s.recorder != nil {
		s.recorder.RecordOutboxEvent(eventType)
	}
}
