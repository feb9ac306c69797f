package kafka_infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type MessageHandler func(ctx context.Context, msg kafka.Message) error

// Consumer reads one topic as part of a consumer group and commits an offset only
// after the handler accepted the message.
type Consumer struct {
	reader         *kafka.Reader
	handler        MessageHandler
	handlerTimeout time.Duration
	logger         *zap.Logger
}

func NewConsumer(brokerURLs []string, topic, groupID string, handler MessageHandler, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:           brokerURLs,
		GroupID:           groupID,
		Topic:             topic,
		MinBytes:          1,
		MaxBytes:          10e6,
		MaxWait:           time.Second,
		HeartbeatInterval: 3 * time.Second,
		StartOffset:       kafka.FirstOffset,
		Logger:            kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Debug(fmt.Sprintf(msg, args...)) }),
		ErrorLogger:       kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Error(fmt.Sprintf(msg, args...)) }),
	})
	return &Consumer{
		reader:         reader,
		handler:        handler,
		handlerTimeout: 10 * time.Second,
		logger:         logger,
	}
}

// Consume blocks until ctx is cancelled or the reader is closed.
func (c *Consumer) Consume(ctx context.Context) error {
	cfg := c.reader.Config()
	c.logger.Info("Kafka consumer starting", zap.String("topic", cfg.Topic), zap.String("group_id", cfg.GroupID))

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, kafka.ErrGroupClosed) {
				c.logger.Info("Kafka consumer stopping", zap.String("topic", cfg.Topic))
				return nil
			}
			c.logger.Error("Failed to fetch message from Kafka", zap.String("topic", cfg.Topic), zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		handleCtx, cancel := context.WithTimeout(ctx, c.handlerTimeout)
		handlerErr := c.handler(handleCtx, msg)
		cancel()
		if handlerErr != nil {
			c.logger.Error("Error handling Kafka message, offset not committed",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(handlerErr),
			)
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("Failed to commit Kafka offset",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}
	}
}

func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka consumer: %w", err)
	}
	c.logger.Info("Kafka consumer closed.", zap.String("topic", c.reader.Config().Topic))
	return nil
}
