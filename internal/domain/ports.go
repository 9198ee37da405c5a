package domain

import (
	"context"
	"time"
)

// RegionBackend — чтение регионов у коммерческого бэкенда.
type RegionBackend interface {
	ListRegions(ctx context.Context) ([]Region, error)
	RetrieveRegion(ctx context.Context, id string) (Region, error)
}

// CatalogBackend — чтение коллекций и товаров.
type CatalogBackend interface {
	// ListCollections возвращает коллекции и общее их количество.
	ListCollections(ctx context.Context, query CollectionQuery) ([]Collection, int, error)
	// ListProducts возвращает страницу товаров и общее количество по запросу.
	ListProducts(ctx context.Context, query ProductQuery) ([]Product, int, error)
}

// CartBackend — операции с корзиной. Все изменения корзины выполняет бэкенд.
type CartBackend interface {
	CreateCart(ctx context.Context, in CreateCartInput) (Cart, error)
	RetrieveCart(ctx context.Context, cartID string) (Cart, error)
	UpdateCart(ctx context.Context, cartID string, in UpdateCartInput) (Cart, error)
	CreateLineItem(ctx context.Context, cartID string, in LineItemInput) (Cart, error)
	UpdateLineItem(ctx context.Context, cartID, lineID string, quantity int) (Cart, error)
	DeleteLineItem(ctx context.Context, cartID, lineID string) error
	AddShippingMethod(ctx context.Context, cartID, optionID string) (Cart, error)
	CompleteCart(ctx context.Context, cartID string) (CompletionResult, error)
}

// PaymentBackend — инициализация платёжных сессий. Сама оплата выполняется бэкендом.
type PaymentBackend interface {
	InitiatePaymentSession(ctx context.Context, cart Cart, in PaymentSessionInput) (PaymentCollection, error)
}

// CommerceBackend объединяет все операции внешнего коммерческого API.
type CommerceBackend interface {
	RegionBackend
	CatalogBackend
	CartBackend
	PaymentBackend
}

// CartIDStore хранит идентификатор активной корзины покупателя (cookie).
// Отсутствие идентификатора означает «нет активной корзины».
type CartIDStore interface {
	CartID(ctx context.Context) (string, bool)
	SetCartID(ctx context.Context, cartID string)
	RemoveCartID(ctx context.Context)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
