// Package kafka carries document events and cache invalidations between the
// services over segmentio/kafka-go, with JSON payloads.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/fuzzy-search-platform/pkg/config"
)

// MessageHandler processes one message. Returning an error leaves the
// message uncommitted; the loop moves on to the next one.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer handles one partition's messages strictly in order, so events
// keyed by document ID apply sequentially per document.
type Consumer struct {
	reader       messageReader
	handler      MessageHandler
	logger       *slog.Logger
	fetchBackoff time.Duration
}

// NewConsumer joins groupID, or cfg.ConsumerGroup when groupID is empty, and
// starts from the earliest offset when the group has none committed.
func NewConsumer(cfg config.KafkaConfig, topic, groupID string, handler MessageHandler) *Consumer {
	if groupID == "" {
		groupID = cfg.ConsumerGroup
	}
	return newConsumer(kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.FirstOffset,
	}), topic, handler)
}

func newConsumer(r messageReader, topic string, handler MessageHandler) *Consumer {
	return &Consumer{
		reader:       r,
		handler:      handler,
		logger:       slog.Default().With("component", "kafka-consumer", "topic", topic),
		fetchBackoff: time.Second,
	}
}

// Start consumes until ctx ends, then closes the reader.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	var handled, failed int
	defer func() {
		c.logger.Info("consumer stopped", "handled", handled, "failed", failed)
	}()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return c.reader.Close()
			}
			c.logger.Error("fetch failed", "error", err, "backoff", c.fetchBackoff)
			select {
			case <-ctx.Done():
				return c.reader.Close()
			case <-time.After(c.fetchBackoff):
			}
			continue
		}

		log := c.logger.With("partition", msg.Partition, "offset", msg.Offset)
		if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
			failed++
			log.Error("handler failed", "key", string(msg.Key), "error", err)
			continue
		}
		handled++
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit failed", "error", err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var out T
	if err := json.Unmarshal(value, &out); err != nil {
		return out, fmt.Errorf("decoding kafka message: %w", err)
	}
	return out, nil
}
