package kafka

import "github.com/vladislavdragonenkov/storefront/internal/domain"

// Topics для событий витрины.
const (
	TopicCartEvents      = "storefront.cart.events"
	TopicOrderEvents     = "storefront.order.events"
	TopicDeadLetterQueue = "storefront.dlq"
)

// Kafka headers, которые получает каждое событие outbox.
const (
	HeaderEventType     = "x-event-type"
	HeaderOutboxID      = "x-outbox-id"
	HeaderAggregateType = "x-aggregate-type"
	HeaderOriginalTopic = "x-original-topic"
)

// Topics сопоставляет тип агрегата с topic'ом.
type Topics map[string]string

// DefaultTopics — маршрутизация событий корзины и заказа по умолчанию.
func DefaultTopics() Topics {
	return Topics{
		domain.AggregateTypeCart:  TopicCartEvents,
		domain.AggregateTypeOrder: TopicOrderEvents,
	}
}

// For возвращает topic для типа агрегата или fallback.
func (t Topics) For(aggregateType, fallback string) string {
	if topic, ok := t[aggregateType]; ok && topic != "" {
		return topic
	}
	return fallback
}
