package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"farepay/internal/domain"
	"farepay/internal/repository/callback_repo"
)

type CallbackRepository struct {
	mu      sync.Mutex
	entries []domain.CallbackLogEntry
}

func NewCallbackRepository() *CallbackRepository {
	return &CallbackRepository{}
}

func (r *CallbackRepository) Record(ctx context.Context, entry *domain.CallbackLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.ID == entry.ID {
			return fmt.Errorf("callback log entry %s already exists", entry.ID)
		}
	}
	stored := *entry
	stored.Payload = append([]byte(nil), entry.Payload...)
	r.entries = append(r.entries, stored)
	return nil
}

func (r *CallbackRepository) UpdateOutcome(ctx context.Context, id string, outcome domain.CallbackOutcome, processedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.entries {
		if r.entries[i].ID == id {
			r.entries[i].Outcome = outcome
			r.entries[i].ProcessedAt = &processedAt
			return nil
		}
	}
	return fmt.Errorf("%w: %s", callback_repo.ErrEntryNotFound, id)
}

func (r *CallbackRepository) ListByMerchantReference(ctx context.Context, merchantReference string) ([]domain.CallbackLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.CallbackLogEntry
	for _, e := range r.entries {
		if e.MerchantReference == merchantReference {
			out = append(out, e)
		}
	}
	return out, nil
}
