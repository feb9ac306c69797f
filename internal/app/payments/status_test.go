package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"farepay/internal/domain"
	callback_memory "farepay/internal/repository/callback_repo/memory"
)

func TestStatusService_GetStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("Given an unknown reference When queried Then returns not_found", func(t *testing.T) {
		svc := NewStatusService(seededStore(t), nil, zap.NewNop())

		view, err := svc.GetStatus(ctx, "missing")

		if err != nil || view.Status != domain.QueryStatusNotFound {
			t.Errorf("expected not_found, got %v, %v", view.Status, err)
		}
	})

	t.Run("Given a pending session When queried Then nothing is cached", func(t *testing.T) {
		cache := &mockStatusCache{}
		svc := NewStatusService(seededStore(t, "R1"), cache, zap.NewNop())

		view, _ := svc.GetStatus(ctx, "R1")

		if view.Status != domain.QueryStatusPending || view.Receipt != nil {
			t.Errorf("unexpected view %+v", view)
		}
		if len(cache.puts) != 0 {
			t.Errorf("pending views must not be cached")
		}
	})

	t.Run("Given a resolved session When queried Then the terminal view is written through", func(t *testing.T) {
		store := seededStore(t, "R1")
		NewCallbackReconciler(store, callback_memory.NewCallbackRepository(), zap.NewNop()).
			Reconcile(ctx, successResult("R1", "ABC123"), nil)
		cache := &mockStatusCache{}
		svc := NewStatusService(store, cache, zap.NewNop())

		view, _ := svc.GetStatus(ctx, "R1")

		if view.Status != domain.QueryStatusSuccess || view.Receipt == nil || view.Receipt.ReceiptNumber != "ABC123" {
			t.Errorf("unexpected view %+v", view)
		}
		if len(cache.puts) != 1 {
			t.Errorf("expected write-through, got %d puts", len(cache.puts))
		}
	})

	t.Run("Given a cache hit When queried Then the store is not read", func(t *testing.T) {
		resolvedAt := time.Now()
		cache := &mockStatusCache{GetFunc: func(ctx context.Context, ref string) (*domain.StatusView, error) {
			return &domain.StatusView{MerchantReference: ref, Status: domain.QueryStatusFailed, FailureReason: domain.FailureReasonUserCancelled, Amount: decimal.NewFromInt(100), ResolvedAt: &resolvedAt}, nil
		}}
		store := &mockSessionRepository{GetByMerchantReferenceFunc: func(ctx context.Context, ref string) (*domain.PaymentSession, error) {
			t.Errorf("store must not be read on a cache hit")
			return nil, domain.ErrSessionNotFound
		}}
		svc := NewStatusService(store, cache, zap.NewNop())

		view, _ := svc.GetStatus(ctx, "R1")

		if view.FailureReason != domain.FailureReasonUserCancelled {
			t.Errorf("unexpected view %+v", view)
		}
	})

	t.Run("Given the cache is down When queried Then the store answers", func(t *testing.T) {
		cache := &mockStatusCache{GetFunc: func(ctx context.Context, ref string) (*domain.StatusView, error) {
			return nil, errors.New("redis: connection refused")
		}}
		svc := NewStatusService(seededStore(t, "R1"), cache, zap.NewNop())

		view, err := svc.GetStatus(ctx, "R1")

		if err != nil || view.Status != domain.QueryStatusPending {
			t.Errorf("expected pending from store, got %v, %v", view.Status, err)
		}
	})

	t.Run("Given the store fails When queried Then returns an error", func(t *testing.T) {
		store := &mockSessionRepository{GetByMerchantReferenceFunc: func(ctx context.Context, ref string) (*domain.PaymentSession, error) {
			return nil, errors.New("connection reset")
		}}
		svc := NewStatusService(store, nil, zap.NewNop())

		if _, err := svc.GetStatus(ctx, "R1"); err == nil {
			t.Errorf("expected an error")
		}
	})

	t.Run("Given a blank reference When queried Then returns ErrInvalidRequest", func(t *testing.T) {
		svc := NewStatusService(seededStore(t), nil, zap.NewNop())

		if _, err := svc.GetStatus(ctx, " "); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("expected ErrInvalidRequest, got %v", err)
		}
	})
}
