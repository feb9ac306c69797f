package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"farepay/internal/domain"
)

func newCache(t *testing.T) (*StatusCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStatusCache(client, time.Hour), mr
}

func TestStatusCache(t *testing.T) {
	ctx := context.Background()
	resolvedAt := time.Date(2025, 3, 1, 8, 0, 30, 0, time.UTC)

	t.Run("Given a terminal view When cached Then Get returns it", func(t *testing.T) {
		cache, _ := newCache(t)
		view := domain.StatusView{
			MerchantReference: "ws_CO_1",
			Status:            domain.QueryStatusSuccess,
			Amount:            decimal.NewFromInt(100),
			Receipt:           &domain.Receipt{ReceiptNumber: "NLJ7RT61SV", SettledAt: resolvedAt},
			ResolvedAt:        &resolvedAt,
		}

		if err := cache.Put(ctx, view); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := cache.Get(ctx, "ws_CO_1")

		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got == nil || got.Receipt == nil || got.Receipt.ReceiptNumber != "NLJ7RT61SV" || !got.Amount.Equal(view.Amount) {
			t.Errorf("unexpected cached view %+v", got)
		}
	})

	t.Run("Given a pending view When cached Then nothing is stored", func(t *testing.T) {
		cache, mr := newCache(t)

		_ = cache.Put(ctx, domain.StatusView{MerchantReference: "ws_CO_2", Status: domain.QueryStatusPending})

		if mr.Exists(keyPrefix + "ws_CO_2") {
			t.Errorf("pending view must not be cached")
		}
	})

	t.Run("Given no entry When fetched Then returns a miss", func(t *testing.T) {
		cache, _ := newCache(t)

		got, err := cache.Get(ctx, "missing")

		if err != nil || got != nil {
			t.Errorf("expected miss, got %+v, %v", got, err)
		}
	})

	t.Run("Given the ttl elapsed When fetched Then returns a miss", func(t *testing.T) {
		cache, mr := newCache(t)
		_ = cache.Put(ctx, domain.StatusView{MerchantReference: "ws_CO_3", Status: domain.QueryStatusFailed, FailureReason: domain.FailureReasonTimeout})

		mr.FastForward(2 * time.Hour)
		got, _ := cache.Get(ctx, "ws_CO_3")

		if got != nil {
			t.Errorf("expected expired entry")
		}
	})

	t.Run("Given redis is down When fetched Then returns an error", func(t *testing.T) {
		cache, mr := newCache(t)
		mr.Close()

		if _, err := cache.Get(ctx, "ws_CO_1"); err == nil {
			t.Errorf("expected an error")
		}
	})
}
