package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/hellodits/dee-POS-sub002/internal/core/domain"
	apperrors "github.com/hellodits/dee-POS-sub002/internal/core/errors"
	"github.com/hellodits/dee-POS-sub002/internal/core/ports"
)

// Routing keys published by the order, kitchen, reservation and table services.
const (
	KeyOrderCreated       = "order.created"
	KeyOrderStatusChanged = "order.status_changed"
	KeyOrderReady         = "order.ready"
	KeyKitchenUpdated     = "kitchen.updated"
	KeyReservationCreated = "reservation.created"
	KeyTableStatusChanged = "table.status_changed"
)

// ErrUnknownRoutingKey is returned for deliveries no builder handles.
var ErrUnknownRoutingKey = errors.New("unknown routing key")

type builder func(body []byte) (domain.Event, error)

func decode[T any](build func(T) (domain.Event, error)) builder {
	return func(body []byte) (domain.Event, error) {
		var snapshot T
		if err := json.Unmarshal(body, &snapshot); err != nil {
			return domain.Event{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidPayload, err)
		}
		return build(snapshot)
	}
}

var builders = map[string]builder{
	KeyOrderCreated:       decode(domain.OrderCreated),
	KeyOrderStatusChanged: decode(domain.OrderStatusChanged),
	KeyOrderReady:         decode(domain.OrderReady),
	KeyKitchenUpdated:     decode(domain.KitchenUpdate),
	KeyReservationCreated: decode(domain.ReservationCreated),
	KeyTableStatusChanged: decode(domain.TableStatusChanged),
}

// RoutingKeys lists every key the consumer binds.
func RoutingKeys() []string {
	return []string{
		KeyOrderCreated,
		KeyOrderStatusChanged,
		KeyOrderReady,
		KeyKitchenUpdated,
		KeyReservationCreated,
		KeyTableStatusChanged,
	}
}

// Channel is the subset of *amqp.Channel the consumer needs.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// ConsumerConfig names the exchange and queue the consumer reads.
type ConsumerConfig struct {
	Exchange      string
	Queue         string
	PrefetchCount int
}

// Consumer translates collaborator facts into Publish calls.
type Consumer struct {
	ch        Channel
	publisher ports.EventPublisher
	cfg       ConsumerConfig
	logger    *slog.Logger
}

func NewConsumer(ch Channel, publisher ports.EventPublisher, cfg ConsumerConfig, logger *slog.Logger) *Consumer {
	return &Consumer{
		ch:        ch,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.With("component", "amqp_consumer"),
	}
}

// Setup declares the topic exchange and a durable queue bound to every routing key.
func (c *Consumer) Setup() error {
	if err := c.ch.ExchangeDeclare(c.cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declaring exchange %s: %w", c.cfg.Exchange, err)
	}

	q, err := c.ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declaring queue %s: %w", c.cfg.Queue, err)
	}

	for _, key := range RoutingKeys() {
		if err := c.ch.QueueBind(q.Name, key, c.cfg.Exchange, false, nil); err != nil {
			return fmt.Errorf("binding %s to %s: %w", key, q.Name, err)
		}
	}

	if c.cfg.PrefetchCount > 0 {
		if err := c.ch.Qos(c.cfg.PrefetchCount, 0, false); err != nil {
			return fmt.Errorf("setting prefetch: %w", err)
		}
	}
	return nil
}

// Run consumes until ctx is cancelled or the broker closes the delivery channel.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("starting consumer: %w", err)
	}

	c.logger.InfoContext(ctx, "amqp consumer started", "exchange", c.cfg.Exchange, "queue", c.cfg.Queue)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed by broker")
			}
			c.Handle(ctx, d)
		}
	}
}

// Handle publishes one delivery. Deliveries that can never succeed are
// rejected without requeue.
func (c *Consumer) Handle(ctx context.Context, d amqp.Delivery) {
	err := c.dispatch(ctx, d)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.WarnContext(ctx, "failed to ack delivery", "error", ackErr)
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		_ = d.Nack(false, true)
	default:
		c.logger.WarnContext(ctx, "rejecting delivery",
			"routing_key", d.RoutingKey,
			"message_id", d.MessageId,
			"error", err,
		)
		_ = d.Nack(false, false)
	}
}

func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery) error {
	build, ok := builders[d.RoutingKey]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRoutingKey, d.RoutingKey)
	}

	event, err := build(d.Body)
	if err != nil {
		return err
	}

	rooms, err := c.publisher.Publish(ctx, event)
	if err != nil {
		return err
	}

	c.logger.DebugContext(ctx, "delivery published", "routing_key", d.RoutingKey, "rooms", rooms)
	return nil
}
