package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Consumer listens on every lifecycle queue and appends one line per
// event to a log file (the notification channel of the service).
type Consumer struct {
	URL     string
	LogPath string
	Log     *zap.Logger
}

// Run connects to the broker and consumes until ctx is cancelled.
// Connection failures are retried with exponential backoff capped at
// 30s; a broken delivery channel triggers a reconnect.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn("event consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn("event consumer: consume loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.Warn("event consumer: set QoS failed", zap.Error(err))
	}

	merged := make(chan amqp.Delivery)
	for _, key := range Keys {
		if _, err := ch.QueueDeclare(key, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", key, err)
		}
		msgs, err := ch.Consume(key, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", key, err)
		}
		go func(msgs <-chan amqp.Delivery) {
			for d := range msgs {
				select {
				case merged <- d:
				case <-ctx.Done():
					return
				}
			}
		}(msgs)
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr != nil {
				return amqpErr
			}
			return errors.New("connection closed")
		case d := <-merged:
			if err := c.handle(d.RoutingKey, d.Body); err != nil {
				c.Log.Error("event consumer: handle message failed", zap.String("key", d.RoutingKey), zap.Error(err))
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handle(key string, body []byte) error {
	line, err := FormatLine(key, body)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.LogPath), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(c.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders an event body as a single human-readable log line.
func FormatLine(key string, body []byte) (string, error) {
	switch key {
	case KeyLoanCreated, KeyLoanReturned:
		var ev LoanEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		verb := "Loan created"
		if key == KeyLoanReturned {
			verb = "Loan returned"
		}
		return fmt.Sprintf("[%s] %s | loan_id=%d | user=%q | copy=%q | book=%q | due=%s\n",
			ev.OccurredAt.Format(time.RFC3339), verb, ev.LoanID, ev.UserEmail, ev.CopyCode, ev.BookTitle,
			ev.DueDate.Format(time.RFC3339)), nil
	case KeyReservationFulfilled:
		var ev ReservationFulfilledEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] Reservation fulfilled | reservation_id=%d | user_id=%d | book_id=%d | copy_id=%d | held=%t\n",
			ev.OccurredAt.Format(time.RFC3339), ev.ReservationID, ev.UserID, ev.BookID, ev.CopyID, ev.Held), nil
	}
	return "", fmt.Errorf("unknown routing key %q", key)
}
