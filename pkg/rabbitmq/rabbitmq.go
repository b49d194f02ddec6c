// Package rabbitmq is the broker abstraction the order service runs on. It
// offers two delivery styles over one connection: request/reply (a named
// message answered by exactly one correlated reply, or a timeout) and
// publish/subscribe (fire-and-forget events, delivered at least once).
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/streadway/amqp"
)

// ErrNoReply reports that a request/reply call produced no answer before the
// transport timeout. Callers must treat it the same as an unreachable
// collaborator.
var ErrNoReply = errors.New("rabbitmq: no reply before timeout")

// RemoteError is the failure a request/reply collaborator sent back instead
// of data.
type RemoteError struct {
	StatusCode int    `json:"status"`
	Message    string `json:"message"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error (status %d): %s", e.StatusCode, e.Message)
}

// reply envelope shared by both sides of a request/reply exchange.
type envelope struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error *RemoteError    `json:"error,omitempty"`
}

// Config holds broker connection details.
type Config struct {
	URL            string
	RequestTimeout time.Duration
}

// Client holds the broker connection. The base channel is used for plain
// publishes; request/reply calls and consumers run on their own channels so
// deliveries never interleave.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	timeout time.Duration

	mu sync.Mutex // guards publishes on the base channel
}

// NewClient connects to the broker and opens the base channel.
func NewClient(cfg Config) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Client{conn: conn, channel: ch, timeout: timeout}, nil
}

// Close closes the base channel and the connection.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors during RabbitMQ client close: %v", errs)
	}
	return nil
}

// Request sends payload to the pattern queue and waits for exactly one
// correlated reply, decoding its data into reply (which may be nil when the
// caller only cares about success). A missing reply within the transport
// timeout returns ErrNoReply; a collaborator-reported failure returns a
// *RemoteError.
func (c *Client) Request(ctx context.Context, pattern string, payload, reply any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request for %s: %w", pattern, err)
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open request channel: %w", err)
	}
	defer ch.Close()

	// Exclusive auto-delete queue scoped to this single call.
	replyQueue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare reply queue: %w", err)
	}

	deliveries, err := ch.Consume(replyQueue.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume reply queue: %w", err)
	}

	if err := declareQueue(ch, pattern); err != nil {
		return err
	}

	correlationID := uuid.New().String()
	err = ch.Publish("", pattern, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: correlationID,
		ReplyTo:       replyQueue.Name,
		Body:          body,
		Timestamp:     time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to publish request to %s: %w", pattern, err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("request to %s cancelled: %w", pattern, ctx.Err())
		case <-timer.C:
			return fmt.Errorf("request to %s: %w", pattern, ErrNoReply)
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("request to %s: %w", pattern, ErrNoReply)
			}
			if d.CorrelationId != correlationID {
				continue // stale reply from a previous consumer of this queue name
			}
			var env envelope
			if err := json.Unmarshal(d.Body, &env); err != nil {
				return fmt.Errorf("failed to decode reply from %s: %w", pattern, err)
			}
			if env.Error != nil {
				return env.Error
			}
			if reply == nil {
				return nil
			}
			if err := json.Unmarshal(env.Data, reply); err != nil {
				return fmt.Errorf("failed to decode reply data from %s: %w", pattern, err)
			}
			return nil
		}
	}
}

// Publish emits a fire-and-forget event on the pattern queue. The message is
// persistent; delivery to subscribers is at least once.
func (c *Client) Publish(pattern string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event for %s: %w", pattern, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := declareQueue(c.channel, pattern); err != nil {
		return err
	}
	err = c.channel.Publish("", pattern, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to publish event to %s: %w", pattern, err)
	}
	return nil
}

// Subscribe consumes events from the pattern queue on a dedicated channel.
// The handler's error decides the fate of each delivery: nil acks it, any
// error nacks it back onto the queue. Handlers must therefore tolerate
// seeing the same event more than once.
func (c *Client) Subscribe(pattern string, handler func(body []byte) error) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open subscribe channel: %w", err)
	}

	if err := declareQueue(ch, pattern); err != nil {
		ch.Close()
		return err
	}

	deliveries, err := ch.Consume(pattern, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("failed to register consumer on %s: %w", pattern, err)
	}

	go func() {
		for d := range deliveries {
			if err := handler(d.Body); err != nil {
				slog.Error("event handler failed, requeueing",
					"pattern", pattern, "error", err)
				if nackErr := d.Nack(false, true); nackErr != nil {
					slog.Error("failed to nack event", "pattern", pattern, "error", nackErr)
				}
				continue
			}
			if ackErr := d.Ack(false); ackErr != nil {
				slog.Error("failed to ack event", "pattern", pattern, "error", ackErr)
			}
		}
	}()

	return nil
}

// HandleRequest serves the request/reply side of a pattern: each inbound
// message is answered on its ReplyTo queue with the handler's data or, when
// the handler fails, with the error envelope. Failures returning a
// *RemoteError keep their status code; anything else reports status 500.
func (c *Client) HandleRequest(pattern string, handler func(body []byte) ([]byte, error)) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open handler channel: %w", err)
	}

	if err := declareQueue(ch, pattern); err != nil {
		ch.Close()
		return err
	}

	deliveries, err := ch.Consume(pattern, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("failed to register handler on %s: %w", pattern, err)
	}

	go func() {
		for d := range deliveries {
			var env envelope
			data, err := handler(d.Body)
			if err != nil {
				var remote *RemoteError
				if !errors.As(err, &remote) {
					remote = &RemoteError{StatusCode: 500, Message: err.Error()}
				}
				env.Error = remote
			} else {
				env.Data = data
			}

			body, err := json.Marshal(env)
			if err != nil {
				slog.Error("failed to marshal reply", "pattern", pattern, "error", err)
				body = []byte(`{"error":{"status":500,"message":"reply encoding failed"}}`)
			}

			if d.ReplyTo != "" {
				err = ch.Publish("", d.ReplyTo, false, false, amqp.Publishing{
					ContentType:   "application/json",
					CorrelationId: d.CorrelationId,
					Body:          body,
				})
				if err != nil {
					slog.Error("failed to publish reply", "pattern", pattern, "error", err)
				}
			}

			if ackErr := d.Ack(false); ackErr != nil {
				slog.Error("failed to ack request", "pattern", pattern, "error", ackErr)
			}
		}
	}()

	return nil
}

func declareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(name, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", name, err)
	}
	return nil
}
