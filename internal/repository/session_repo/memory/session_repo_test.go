package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"farepay/internal/domain"
)

func pendingSession(t *testing.T, ref string) *domain.PaymentSession {
	t.Helper()
	items := []domain.LineItem{{ItemID: "stage-1", Description: "CBD", UnitFare: decimal.NewFromInt(80), Quantity: 1}}
	s, err := domain.NewPaymentSession(ref, "", "psv-1", "254700000001", items, decimal.NewFromInt(80), time.Now())
	if err != nil {
		t.Fatalf("NewPaymentSession failed: %v", err)
	}
	return s
}

func success(receipt string) domain.Resolution {
	now := time.Now()
	return domain.Resolution{Status: domain.SessionStatusSuccess, Receipt: &domain.Receipt{ReceiptNumber: receipt, SettledAt: now}, ResolvedAt: now}
}

func failure() domain.Resolution {
	return domain.Resolution{Status: domain.SessionStatusFailed, FailureReason: domain.FailureReasonUserCancelled, ResolvedAt: time.Now()}
}

func TestSessionRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a created session When fetched Then returns a copy", func(t *testing.T) {
		repo := NewSessionRepository()
		if err := repo.Create(ctx, pendingSession(t, "R1")); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		got, err := repo.GetByMerchantReference(ctx, "R1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		got.Status = domain.SessionStatusSuccess

		again, _ := repo.GetByMerchantReference(ctx, "R1")
		if again.Status != domain.SessionStatusPending {
			t.Errorf("mutating a returned session must not change the store")
		}
	})

	t.Run("Given an existing reference When created again Then returns ErrSessionAlreadyExists", func(t *testing.T) {
		repo := NewSessionRepository()
		_ = repo.Create(ctx, pendingSession(t, "R1"))

		err := repo.Create(ctx, pendingSession(t, "R1"))

		if !errors.Is(err, domain.ErrSessionAlreadyExists) {
			t.Errorf("expected ErrSessionAlreadyExists, got %v", err)
		}
	})

	t.Run("Given unknown reference When fetched Then returns ErrSessionNotFound", func(t *testing.T) {
		_, err := NewSessionRepository().GetByMerchantReference(ctx, "missing")
		if !errors.Is(err, domain.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})
}

func TestSessionRepository_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("Given resolved session When resolved again Then second transition is rejected", func(t *testing.T) {
		repo := NewSessionRepository()
		_ = repo.Create(ctx, pendingSession(t, "R1"))

		if _, err := repo.Resolve(ctx, "R1", failure()); err != nil {
			t.Fatalf("first Resolve failed: %v", err)
		}
		_, err := repo.Resolve(ctx, "R1", success("ABC123"))

		if !errors.Is(err, domain.ErrSessionAlreadyResolved) {
			t.Errorf("expected ErrSessionAlreadyResolved, got %v", err)
		}
		got, _ := repo.GetByMerchantReference(ctx, "R1")
		if got.Status != domain.SessionStatusFailed || got.Receipt != nil {
			t.Errorf("expected first resolution to stick, got %+v", got)
		}
	})

	t.Run("Given concurrent resolutions When racing Then exactly one applies", func(t *testing.T) {
		repo := NewSessionRepository()
		_ = repo.Create(ctx, pendingSession(t, "R1"))

		var wg sync.WaitGroup
		var mu sync.Mutex
		applied := 0
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				res := failure()
				if i%2 == 0 {
					res = success("ABC123")
				}
				if _, err := repo.Resolve(ctx, "R1", res); err == nil {
					mu.Lock()
					applied++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		if applied != 1 {
			t.Errorf("expected exactly one applied transition, got %d", applied)
		}
	})

	t.Run("Given unknown reference When resolved Then returns ErrSessionNotFound and creates nothing", func(t *testing.T) {
		repo := NewSessionRepository()

		_, err := repo.Resolve(ctx, "ghost", success("X"))

		if !errors.Is(err, domain.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
		if _, err := repo.GetByMerchantReference(ctx, "ghost"); !errors.Is(err, domain.ErrSessionNotFound) {
			t.Errorf("resolve must not create a session")
		}
	})
}
