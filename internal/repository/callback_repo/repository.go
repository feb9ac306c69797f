package callback_repo

import (
	"context"
	"errors"
	"time"

	"farepay/internal/domain"
)

// CallbackRepository is the audit trail of provider callback deliveries.
// Entries are recorded before the session is touched so that every delivery is
// kept, including duplicates and ones for unknown references.
type CallbackRepository interface {
	Record(ctx context.Context, entry *domain.CallbackLogEntry) error
	UpdateOutcome(ctx context.Context, id string, outcome domain.CallbackOutcome, processedAt time.Time) error
	ListByMerchantReference(ctx context.Context, merchantReference string) ([]domain.CallbackLogEntry, error)
}

var ErrEntryNotFound = errors.New("callback log entry not found")
