package kafka_infra

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Record is one event handed to the broker.
type Record struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

type Producer interface {
	Produce(ctx context.Context, record Record) error
	Close() error
}

type kafkaProducer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewProducer returns a synchronous producer. The outbox marks a row sent only after
// the broker acknowledged it, so writes must not be fire-and-forget.
func NewProducer(brokerURLs []string, writeTimeout time.Duration, logger *zap.Logger) Producer {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokerURLs...),
		Balancer:               &kafka.Hash{},
		WriteTimeout:           writeTimeout,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            3,
		AllowAutoTopicCreation: false,
		Logger:                 kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Debug(fmt.Sprintf(msg, args...)) }),
		ErrorLogger:            kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Error(fmt.Sprintf(msg, args...)) }),
	}
	return &kafkaProducer{writer: writer, logger: logger}
}

func (p *kafkaProducer) Produce(ctx context.Context, record Record) error {
	msg := kafka.Message{
		Topic: record.Topic,
		Key:   []byte(record.Key),
		Value: record.Value,
	}
	for k, v := range record.Headers {
		msg.Headers = append(msg.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	produceCtx, cancel := context.WithTimeout(ctx, p.writer.WriteTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(produceCtx, msg); err != nil {
		p.logger.Error("Failed to produce message to Kafka",
			zap.String("topic", record.Topic),
			zap.String("key", record.Key),
			zap.Error(err),
		)
		return fmt.Errorf("failed to produce message to Kafka: %w", err)
	}
	p.logger.Debug("Message produced to Kafka",
		zap.String("topic", record.Topic),
		zap.String("key", record.Key),
	)
	return nil
}

func (p *kafkaProducer) Close() error {
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Failed to close Kafka producer", zap.Error(err))
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	p.logger.Info("Kafka producer closed.")
	return nil
}
