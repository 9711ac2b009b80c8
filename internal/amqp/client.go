package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Client wraps one connection and channel on a direct exchange with two
// durable queues: one for ingest requests, one for refresh notifications.
type Client struct {
	conn           *amqp091.Connection
	channel        *amqp091.Channel
	exchangeName   string
	ingestQueue    string
	refreshedQueue string
}

func NewClient(url, exchangeName, ingestQueue, refreshedQueue string) (*Client, error) {
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
		conn:           conn,
		channel:        channel,
		exchangeName:   exchangeName,
		ingestQueue:    ingestQueue,
		refreshedQueue: refreshedQueue,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queues: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	// Declare exchange
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

	for _, queue := range []string{c.ingestQueue, c.refreshedQueue} {
		_, err = c.channel.QueueDeclare(
			queue, // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}

		// Routing key matches the queue name on a direct exchange.
		err = c.channel.QueueBind(queue, queue, c.exchangeName, false, nil)
		if err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}

	return nil
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		routingKey,     // routing key
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
	return nil
}

// PublishDatasetIngest asks the worker to load the given file.
func (c *Client) PublishDatasetIngest(ctx context.Context, path, source string) error {
	msg := NewDatasetIngestMessage(path, source)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := c.publish(ctx, c.ingestQueue, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published dataset ingest message",
		"path", path,
		"source", source,
		"exchange", c.exchangeName,
		"queue", c.ingestQueue)

	return nil
}

// PublishDatasetRefreshed announces a completed dataset replacement.
func (c *Client) PublishDatasetRefreshed(ctx context.Context, files []string, records int) error {
	msg := NewDatasetRefreshedMessage(files, records)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := c.publish(ctx, c.refreshedQueue, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published dataset refreshed message",
		"files", len(files),
		"records", records,
		"exchange", c.exchangeName,
		"queue", c.refreshedQueue)

	return nil
}

// ConsumeDatasetIngest consumes ingest requests until ctx is cancelled.
// Handler errors requeue the delivery; unparseable payloads are dropped.
func (c *Client) ConsumeDatasetIngest(ctx context.Context, handler func(context.Context, *DatasetIngestMessage) error) error {
	return c.consume(ctx, c.ingestQueue, func(ctx context.Context, body []byte) error {
		msg, err := DatasetIngestMessageFromJSON(body)
		if err != nil {
			return &malformedError{err}
		}
		return handler(ctx, msg)
	})
}

// ConsumeDatasetRefreshed consumes refresh notifications until ctx is cancelled.
func (c *Client) ConsumeDatasetRefreshed(ctx context.Context, handler func(context.Context, *DatasetRefreshedMessage) error) error {
	return c.consume(ctx, c.refreshedQueue, func(ctx context.Context, body []byte) error {
		msg, err := DatasetRefreshedMessageFromJSON(body)
		if err != nil {
			return &malformedError{err}
		}
		return handler(ctx, msg)
	})
}

// malformedError marks payloads that can never succeed and must not requeue.
type malformedError struct{ err error }

func (e *malformedError) Error() string { return e.err.Error() }
func (e *malformedError) Unwrap() error { return e.err }

func (c *Client) consume(ctx context.Context, queue string, handle func(context.Context, []byte) error) error {
	msgs, err := c.channel.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack (we want manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming messages", "queue", queue)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "queue", queue, "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			if err := handle(ctx, delivery.Body); err != nil {
				if _, malformed := err.(*malformedError); malformed {
					slog.ErrorContext(ctx, "Dropping unparseable message", "queue", queue, "error", err)
					delivery.Nack(false, false)
					continue
				}
				slog.ErrorContext(ctx, "Failed to handle message", "queue", queue, "error", err)
				delivery.Nack(false, true)
				continue
			}

			delivery.Ack(false)
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

// exponentialBackoff returns the wait before retry attempt n, capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	d := time.Second << attempt
	if d <= 0 || d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}

// isConnectionError reports whether err looks like a broken AMQP connection
// worth re-dialing for, as opposed to an application failure.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{
		"connection refused",
		"connection closed",
		"EOF",
		"broken pipe",
		"use of closed network connection",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Redial replaces the client's connection and channel after a connection
// failure, retrying with exponential backoff until ctx is cancelled.
func (c *Client) Redial(ctx context.Context, url string) error {
	for attempt := 0; ; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(exponentialBackoff(attempt)):
		}

		conn, err := amqp091.Dial(url)
		if err != nil {
			slog.WarnContext(ctx, "AMQP redial failed", "attempt", attempt, "error", err)
			continue
		}
		channel, err := conn.Channel()
		if err != nil {
			conn.Close()
			slog.WarnContext(ctx, "AMQP channel reopen failed", "attempt", attempt, "error", err)
			continue
		}

		c.Close()
		c.conn = conn
		c.channel = channel
		if err := c.setup(); err != nil {
			slog.WarnContext(ctx, "AMQP setup after redial failed", "attempt", attempt, "error", err)
			continue
		}

		slog.InfoContext(ctx, "AMQP connection re-established", "attempts", attempt+1)
		return nil
	}
}
