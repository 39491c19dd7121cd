package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/api-sage/txn-settlement-processor/internal/adapter/broker"
	"github.com/api-sage/txn-settlement-processor/internal/domain"
	"github.com/api-sage/txn-settlement-processor/internal/logger"
)

var (
	_ broker.Publisher = (*Channel)(nil)
	_ broker.Consumer  = (*Channel)(nil)
)

// Channel is a message channel backed by a RabbitMQ connection. Queues
// are declared durable on first use; published messages are persistent.
type Channel struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
}

func Connect(url string) (*Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	logger.Info("connected to rabbitmq", nil)

	return &Channel{
		conn:     conn,
		ch:       ch,
		declared: make(map[string]bool),
	}, nil
}

func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Channel) ensureQueue(queue string) error {
	if c.declared[queue] {
		return nil
	}

	_, err := c.ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %q: %w", queue, err)
	}

	c.declared[queue] = true
	return nil
}

func (c *Channel) Publish(ctx context.Context, queue string, msg broker.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureQueue(queue); err != nil {
		return errors.Join(domain.ErrChannelUnavailable, err)
	}

	err := c.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.MessageID,
		Headers:      amqp.Table{"accountKey": msg.Key},
		Body:         msg.Body,
	})
	if err != nil {
		logger.Error("rabbitmq publish failed", err, logger.Fields{
			"queue":     queue,
			"messageId": msg.MessageID,
		})
		return errors.Join(domain.ErrChannelUnavailable, err)
	}

	return nil
}

func (c *Channel) Consume(ctx context.Context, queue string, handler broker.Handler) error {
	c.mu.Lock()
	if err := c.ensureQueue(queue); err != nil {
		c.mu.Unlock()
		return err
	}

	deliveries, err := c.ch.Consume(queue, "", false, false, false, false, nil)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("consume queue %q: %w", queue, err)
	}

	logger.Info("consuming queue", logger.Fields{"queue": queue})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("consume queue %q: delivery channel closed", queue)
			}

			msg := broker.Message{
				MessageID: delivery.MessageId,
				Body:      delivery.Body,
			}
			if key, found := delivery.Headers["accountKey"].(string); found {
				msg.Key = key
			}

			if err := handler(ctx, msg); err != nil {
				logger.Error("message handler failed, requeueing", err, logger.Fields{
					"queue":     queue,
					"messageId": delivery.MessageId,
				})
				_ = delivery.Nack(false, true)
				continue
			}

			_ = delivery.Ack(false)
		}
	}
}
