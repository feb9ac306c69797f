package payments

import (
	"context"

	"github.com/shopspring/decimal"

	"farepay/internal/domain"
)

type mockGateway struct {
	InitiatePushFunc func(ctx context.Context, req domain.PushRequest) (*domain.PushResult, error)
	calls            []domain.PushRequest
}

func (m *mockGateway) InitiatePush(ctx context.Context, req domain.PushRequest) (*domain.PushResult, error) {
	m.calls = append(m.calls, req)
	return m.InitiatePushFunc(ctx, req)
}

type mockSessionRepository struct {
	CreateFunc                 func(ctx context.Context, session *domain.PaymentSession) error
	GetByMerchantReferenceFunc func(ctx context.Context, merchantReference string) (*domain.PaymentSession, error)
	ResolveFunc                func(ctx context.Context, merchantReference string, resolution domain.Resolution) (*domain.PaymentSession, error)
}

func (m *mockSessionRepository) Create(ctx context.Context, session *domain.PaymentSession) error {
	return m.CreateFunc(ctx, session)
}

func (m *mockSessionRepository) GetByMerchantReference(ctx context.Context, merchantReference string) (*domain.PaymentSession, error) {
	return m.GetByMerchantReferenceFunc(ctx, merchantReference)
}

func (m *mockSessionRepository) Resolve(ctx context.Context, merchantReference string, resolution domain.Resolution) (*domain.PaymentSession, error) {
	return m.ResolveFunc(ctx, merchantReference, resolution)
}

type mockStatusCache struct {
	GetFunc func(ctx context.Context, merchantReference string) (*domain.StatusView, error)
	PutFunc func(ctx context.Context, view domain.StatusView) error
	puts    []domain.StatusView
}

func (m *mockStatusCache) Get(ctx context.Context, merchantReference string) (*domain.StatusView, error) {
	if m.GetFunc == nil {
		return nil, nil
	}
	return m.GetFunc(ctx, merchantReference)
}

func (m *mockStatusCache) Put(ctx context.Context, view domain.StatusView) error {
	m.puts = append(m.puts, view)
	if m.PutFunc == nil {
		return nil
	}
	return m.PutFunc(ctx, view)
}

func fares(pairs ...int64) []domain.LineItem {
	items := make([]domain.LineItem, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		items = append(items, domain.LineItem{
			ItemID:      "stage",
			Description: "stage",
			UnitFare:    decimal.NewFromInt(pairs[i]),
			Quantity:    int(pairs[i+1]),
		})
	}
	return items
}

func acceptingGateway(ref string) *mockGateway {
	return &mockGateway{InitiatePushFunc: func(ctx context.Context, req domain.PushRequest) (*domain.PushResult, error) {
		return &domain.PushResult{MerchantReference: ref, ProviderRequestID: "mr-" + ref}, nil
	}}
}
