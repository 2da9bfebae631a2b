// Package mirror is the transport leg of the best-effort replica: local
// writes are published as collection snapshots on a durable queue, and the
// mirror worker consumes them into the remote store. Publish failures are the
// caller's to swallow; consumption retries through broker requeues.
package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finledger/internal/core"

	"github.com/rabbitmq/amqp091-go"
)

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string

	// amqp channels are not safe for concurrent publishes; mirror
	// dispatches run on their own goroutines.
	publishMu sync.Mutex
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		c.queueName,    // queue name
		c.queueName,    // routing key (same as queue name for direct exchange)
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

func (c *Client) publish(ctx context.Context, msg *SyncMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	slog.DebugContext(ctx, "Published mirror message",
		"kind", msg.Kind,
		"owner", msg.OwnerID,
		"exchange", c.exchangeName,
		"queue", c.queueName)

	return nil
}

// MirrorAccounts implements storage.Mirror.
func (c *Client) MirrorAccounts(ctx context.Context, ownerID string, accounts []core.Account) error {
	return c.publish(ctx, &SyncMessage{
		Kind:      KindAccounts,
		OwnerID:   ownerID,
		Accounts:  accounts,
		Timestamp: time.Now(),
	})
}

// MirrorCategories implements storage.Mirror.
func (c *Client) MirrorCategories(ctx context.Context, categories []core.Category) error {
	return c.publish(ctx, &SyncMessage{
		Kind:       KindCategories,
		Categories: categories,
		Timestamp:  time.Now(),
	})
}

// MirrorTransactions implements storage.Mirror.
func (c *Client) MirrorTransactions(ctx context.Context, ownerID string, transactions []core.Transaction) error {
	return c.publish(ctx, &SyncMessage{
		Kind:         KindTransactions,
		OwnerID:      ownerID,
		Transactions: transactions,
		Timestamp:    time.Now(),
	})
}

// MirrorBudgets implements storage.Mirror.
func (c *Client) MirrorBudgets(ctx context.Context, ownerID string, budgets []core.Budget) error {
	return c.publish(ctx, &SyncMessage{
		Kind:      KindBudgets,
		OwnerID:   ownerID,
		Budgets:   budgets,
		Timestamp: time.Now(),
	})
}

// Consume delivers mirror messages to the handler until the context ends. A
// handler error nacks with requeue so the broker redelivers; a malformed
// message is rejected without requeue.
func (c *Client) Consume(ctx context.Context, handler func(context.Context, *SyncMessage) error) error {
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming mirror messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			msg, err := SyncMessageFromJSON(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to unmarshal message", "error", err)
				delivery.Nack(false, false)
				continue
			}

			if err := handler(ctx, msg); err != nil {
				slog.ErrorContext(ctx, "Failed to handle message",
					"error", err,
					"kind", msg.Kind,
					"owner", msg.OwnerID)
				delivery.Nack(false, true)
				continue
			}

			delivery.Ack(false)
			slog.InfoContext(ctx, "Processed mirror message",
				"kind", msg.Kind,
				"owner", msg.OwnerID)
		}
	}
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
