package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	kafkago "github.com/segmentio/kafka-go"
)

// Handler processes a consumed Kafka message.
type Handler func(ctx context.Context, msg Message) error

// ErrPermanent marks a handler failure that retrying cannot fix. Such
// messages are logged and committed.
var ErrPermanent = errors.New("kafka: permanent handler failure")

// ConsumerOptions tunes redelivery of failed messages.
type ConsumerOptions struct {
	// MaxRetryElapsed bounds the time spent retrying one message.
	MaxRetryElapsed time.Duration
}

// Consumer reads one topic in a consumer group. A message is committed only
// after its handler succeeds or fails permanently, so handlers must be
// idempotent.
type Consumer struct {
	reader  *kafkago.Reader
	handler Handler
	logger  *slog.Logger
	opts    ConsumerOptions
}

// NewConsumer creates a new Consumer for the given topic with the provided handler.
func NewConsumer(cfg Config, topic string, handler Handler, opts ConsumerOptions, logger *slog.Logger) (*Consumer, error) {
	dialer, err := cfg.dialer()
	if err != nil {
		return nil, err
	}
	if opts.MaxRetryElapsed <= 0 {
		opts.MaxRetryElapsed = 30 * time.Second
	}
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    topic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10 * 1024 * 1024, // 10 MB
		Dialer:   dialer,
	})
	return &Consumer{reader: r, handler: handler, logger: logger, opts: opts}, nil
}

// Start begins consuming messages. Blocks until the context is canceled.
func (c *Consumer) Start(ctx context.Context) error {
	cfg := c.reader.Config()
	c.logger.Info("consumer starting", "topic", cfg.Topic, "group", cfg.GroupID)

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				c.logger.Info("consumer stopping")
				return nil
			}
			return fmt.Errorf("fetching message: %w", err)
		}

		if err := c.handle(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("dropping message",
				"topic", m.Topic,
				"partition", m.Partition,
				"offset", m.Offset,
				"error", err,
			)
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.logger.Error("commit error",
				"topic", m.Topic,
				"partition", m.Partition,
				"offset", m.Offset,
				"error", err,
			)
		}
	}
}

// handle runs the handler with exponential backoff until it succeeds, fails
// permanently or the retry budget runs out.
func (c *Consumer) handle(ctx context.Context, m kafkago.Message) error {
	msg := toMessage(m)
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = c.opts.MaxRetryElapsed

	return backoff.RetryNotify(func() error {
		err := c.handler(ctx, msg)
		if errors.Is(err, ErrPermanent) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(policy, ctx), func(err error, wait time.Duration) {
		c.logger.Warn("handler failed, retrying", "offset", m.Offset, "wait", wait, "error", err)
	})
}

func toMessage(m kafkago.Message) Message {
	msg := Message{
		Key:     m.Key,
		Value:   m.Value,
		Headers: make(map[string]string, len(m.Headers)),
	}
	for _, h := range m.Headers {
		msg.Headers[h.Key] = string(h.Value)
	}
	return msg
}

// Close closes the reader.
func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("closing kafka reader: %w", err)
	}
	return nil
}
