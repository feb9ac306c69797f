package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"farepay/internal/domain"
	kafka_infra "farepay/internal/infrastructure/kafka"
)

type OutboxRepository interface {
	GetPendingMessages(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error)
	UpdateMessageStatusTx(ctx context.Context, querier domain.Querier, id string, status domain.OutboxMessageStatus) error
}

// Processor relays pending outbox rows to Kafka. Rows are locked for the duration of
// a batch, so several processors may run against the same table.
type Processor struct {
	db             *sql.DB
	outboxRepo     OutboxRepository
	producer       kafka_infra.Producer
	pollInterval   time.Duration
	pollTimeout    time.Duration
	batchSize      int
	logger         *zap.Logger
	shutdownSignal chan struct{}
	shutdownOnce   sync.Once
}

func NewProcessor(
	db *sql.DB,
	outboxRepo OutboxRepository,
	producer kafka_infra.Producer,
	pollInterval time.Duration,
	pollTimeout time.Duration,
	batchSize int,
	logger *zap.Logger,
) *Processor {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Processor{
		db:             db,
		outboxRepo:     outboxRepo,
		producer:       producer,
		pollInterval:   pollInterval,
		pollTimeout:    pollTimeout,
		batchSize:      batchSize,
		logger:         logger,
		shutdownSignal: make(chan struct{}),
	}
}

// Start polls until ctx is cancelled or Stop is called.
func (p *Processor) Start(ctx context.Context) {
	p.logger.Info("Starting outbox processor", zap.Duration("poll_interval", p.pollInterval))
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox processor stopped by context")
			return
		case <-p.shutdownSignal:
			p.logger.Info("Outbox processor stopped")
			return
		case <-ticker.C:
			sent, err := p.processBatch(ctx)
			if err != nil {
				p.logger.Error("Outbox batch failed", zap.Error(err))
				continue
			}
			if sent > 0 {
				p.logger.Info("Outbox batch relayed", zap.Int("sent", sent))
			}
		}
	}
}

func (p *Processor) Stop() {
	p.shutdownOnce.Do(func() {
		close(p.shutdownSignal)
	})
}

// processBatch relays up to batchSize rows in created order. It stops at the first
// publish failure so that later events for the same session are not sent ahead of it.
func (p *Processor) processBatch(ctx context.Context) (sent int, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin outbox transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if commitErr := tx.Commit(); commitErr != nil {
			sent = 0
			err = fmt.Errorf("failed to commit outbox transaction: %w", commitErr)
		}
	}()

	queryCtx, cancel := context.WithTimeout(ctx, p.pollTimeout)
	messages, err := p.outboxRepo.GetPendingMessages(queryCtx, tx, p.batchSize)
	cancel()
	if err != nil {
		return 0, err
	}

	for _, msg := range messages {
		record := kafka_infra.Record{
			Topic: msg.Topic,
			Key:   msg.Key,
			Value: msg.Payload,
			Headers: map[string]string{
				"message_id":   msg.ID,
				"message_type": msg.MessageType,
			},
		}
		if produceErr := p.producer.Produce(ctx, record); produceErr != nil {
			p.logger.Warn("Failed to publish outbox message, will retry",
				zap.String("message_id", msg.ID),
				zap.String("topic", msg.Topic),
				zap.Error(produceErr))
			break
		}
		if err = p.outboxRepo.UpdateMessageStatusTx(ctx, tx, msg.ID, domain.OutboxStatusSent); err != nil {
			return 0, err
		}
		p.logger.Debug("Outbox message published",
			zap.String("message_id", msg.ID),
			zap.String("topic", msg.Topic),
			zap.String("merchant_reference", msg.AggregateID))
		sent++
	}
	return sent, nil
}
