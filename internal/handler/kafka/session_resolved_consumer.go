package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"farepay/internal/domain"
	kafka_infra "farepay/internal/infrastructure/kafka"
	"farepay/internal/repository/status_repo"
)

// SessionResolvedMessageHandler primes the status cache from resolved-session
// events so that the first poll after a callback is served without a database read.
func SessionResolvedMessageHandler(cache status_repo.StatusCache, logger *zap.Logger) kafka_infra.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var event domain.SessionResolvedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			// A poison message is skipped; the store still answers for that session.
			logger.Error("Failed to unmarshal SessionResolvedEvent",
				zap.Error(err),
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
			return nil
		}
		if event.MerchantReference == "" || !event.Status.IsTerminal() {
			logger.Warn("Ignoring SessionResolvedEvent without a terminal status",
				zap.String("merchant_reference", event.MerchantReference),
				zap.String("status", string(event.Status)),
			)
			return nil
		}

		if err := cache.Put(ctx, event.StatusView()); err != nil {
			return fmt.Errorf("failed to cache status for %s: %w", event.MerchantReference, err)
		}

		logger.Debug("Status cache primed from event",
			zap.String("merchant_reference", event.MerchantReference),
			zap.String("status", string(event.Status)),
		)
		return nil
	}
}
