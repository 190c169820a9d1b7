package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"

	"storefront/internal/domain"
)

const orderEventsTopic = "order-events"

// OrderEvents publishes order lifecycle events to Kafka. The broker is not
// on the checkout critical path, so calls run through a circuit breaker and
// callers treat failures as advisory.
type OrderEvents struct {
	writer  *kafka.Writer
	breaker *gobreaker.CircuitBreaker[any]
}

func NewOrderEvents(brokers ...string) *OrderEvents {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  orderEventsTopic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "order-events",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).Msg("circuit breaker state changed")
		},
	})

	return &OrderEvents{writer: w, breaker: cb}
}

func (p *OrderEvents) OrderCreated(ctx context.Context, order *domain.Order) error {
	payload, err := json.Marshal(map[string]interface{}{
		"event_type":   "order_created",
		"order_id":     order.ID.Hex(),
		"order_number": order.OrderNumber,
		"user_id":      order.UserID.Hex(),
		"items":        order.Items,
		"total":        order.Total,
		"created_at":   order.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(order.UserID.Hex()), // per-user ordering
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("order_created")},
		},
	}

	_, err = p.breaker.Execute(func() (any, error) {
		return nil, p.writer.WriteMessages(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to publish order event: %w", err)
	}

	return nil
}

func (p *OrderEvents) Close() {
	if err := p.writer.Close(); err != nil {
		log.Warn().Err(err).Msg("error closing kafka writer")
	}
}
