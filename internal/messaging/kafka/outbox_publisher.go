package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения, выбирая topic по типу агрегата.
type OutboxTopicPublisher struct {
	producer *Producer
	topics   Topics
	fallback string
}

// NewOutboxPublisher создаёт Kafka-паблишер событий витрины. Агрегаты без
// явного маршрута уходят в fallback (по умолчанию — topic заказов).
func NewOutboxPublisher(producer *Producer, topics Topics, fallback string) *OutboxTopicPublisher {
	if topics == nil {
		topics = DefaultTopics()
	}
	if fallback == "" {
		fallback = TopicOrderEvents
	}
	return &OutboxTopicPublisher{
		producer: producer,
		topics:   topics,
		fallback: fallback,
	}
}

// NewDLQPublisher создаёт паблишер, отправляющий всё в один DLQ topic.
func NewDLQPublisher(producer *Producer, topic string) *OutboxTopicPublisher {
	if topic == "" {
		topic = TopicDeadLetterQueue
	}
	return &OutboxTopicPublisher{
		producer: producer,
		topics:   Topics{},
		fallback: topic,
	}
}

type outboxEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	payload := json.RawMessage(event.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	value, err := json.Marshal(outboxEnvelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       payload,
		PublishedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal outbox envelope: %w", err)
	}

	topic := p.topics.For(event.AggregateType, p.fallback)
	return p.producer.Publish(topic, key, value, map[string]string{
		HeaderEventType:     event.EventType,
		HeaderOutboxID:      event.ID,
		HeaderAggregateType: event.AggregateType,
		HeaderOriginalTopic: topic,
	})
}

// Topic возвращает topic, в который уйдёт событие агрегата.
func (p *OutboxTopicPublisher) Topic(aggregateType string) string {
	return p.topics.For(aggregateType, p.fallback)
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
