package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"rideshare/internal/domain"
)

const (
	defaultPrefetch   = 50
	initialBackoff    = time.Second
	maxBackoff        = 30 * time.Second
	reconnectCooldown = 2 * time.Second
)

// Handler processes one decoded event.
type Handler func(ctx context.Context, event domain.Event) error

// Consumer reads events from a durable queue and hands them to a Handler.
type Consumer struct {
	url      string
	queue    string
	prefetch int
	handler  Handler
	log      *zap.Logger
}

// NewConsumer creates a new Consumer. An empty queue name selects EventsQueue.
func NewConsumer(url, queue string, prefetch int, handler Handler, log *zap.Logger) *Consumer {
	if queue == "" {
		queue = EventsQueue
	}
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}
	return &Consumer{
		url:      url,
		queue:    queue,
		prefetch: prefetch,
		handler:  handler,
		log:      log.With(zap.String("component", "mq.consumer"), zap.String("queue", queue)),
	}
}

// Run consumes until ctx is cancelled, reconnecting with exponential backoff
// whenever the broker goes away.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := initialBackoff
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = initialBackoff

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, reconnectCooldown) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		c.log.Warn("set QoS failed", zap.Error(err))
	}
	if _, err := declareQueue(ch, c.queue); err != nil {
		return err
	}

	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	c.log.Info("consuming")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.Handle(ctx, d)
		}
	}
}

// Handle decodes and processes one delivery. Undecodable messages and handler
// failures are rejected without requeue so a poison message cannot spin.
func (c *Consumer) Handle(ctx context.Context, d amqp.Delivery) {
	var event domain.Event
	if err := json.Unmarshal(d.Body, &event); err != nil {
		c.log.Error("undecodable message", zap.String("message_id", d.MessageId), zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	if err := c.handler(ctx, event); err != nil {
		c.log.Error("event handler failed",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

// LogHandler returns a Handler that writes each event to log.
func LogHandler(log *zap.Logger) Handler {
	return func(ctx context.Context, event domain.Event) error {
		log.Info(event.Title,
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Strings("recipients", event.Recipients),
			zap.String("message", event.Message),
			zap.Any("data", event.Data),
			zap.Time("occurred_at", event.OccurredAt),
		)
		return nil
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
