package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"farepay/internal/domain"
	"farepay/internal/repository/callback_repo"
)

func TestCallbackRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Given recorded deliveries When updated and listed Then returns them in arrival order", func(t *testing.T) {
		repo := NewCallbackRepository()
		now := time.Now()
		_ = repo.Record(ctx, &domain.CallbackLogEntry{ID: "c1", MerchantReference: "R1", Outcome: domain.CallbackOutcomeReceived, ReceivedAt: now})
		_ = repo.Record(ctx, &domain.CallbackLogEntry{ID: "c2", MerchantReference: "R2", Outcome: domain.CallbackOutcomeReceived, ReceivedAt: now})
		_ = repo.Record(ctx, &domain.CallbackLogEntry{ID: "c3", MerchantReference: "R1", Outcome: domain.CallbackOutcomeReceived, ReceivedAt: now})

		if err := repo.UpdateOutcome(ctx, "c3", domain.CallbackOutcomeDuplicate, now); err != nil {
			t.Fatalf("UpdateOutcome failed: %v", err)
		}
		got, err := repo.ListByMerchantReference(ctx, "R1")

		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(got) != 2 || got[0].ID != "c1" || got[1].Outcome != domain.CallbackOutcomeDuplicate || got[1].ProcessedAt == nil {
			t.Errorf("unexpected entries %+v", got)
		}
	})

	t.Run("Given an unknown id When updated Then returns ErrEntryNotFound", func(t *testing.T) {
		err := NewCallbackRepository().UpdateOutcome(ctx, "nope", domain.CallbackOutcomeApplied, time.Now())

		if !errors.Is(err, callback_repo.ErrEntryNotFound) {
			t.Errorf("expected ErrEntryNotFound, got %v", err)
		}
	})

	t.Run("Given a duplicate id When recorded Then rejects it", func(t *testing.T) {
		repo := NewCallbackRepository()
		_ = repo.Record(ctx, &domain.CallbackLogEntry{ID: "c1"})

		if err := repo.Record(ctx, &domain.CallbackLogEntry{ID: "c1"}); err == nil {
			t.Error("expected an error")
		}
	})
}
