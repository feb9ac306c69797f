package memory

import (
	"context"
	"fmt"
	"sync"

	"farepay/internal/domain"
)

// SessionRepository keeps sessions in process memory. Used with STORE_DRIVER=memory and in tests.
type SessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*domain.PaymentSession
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string]*domain.PaymentSession)}
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.PaymentSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.MerchantReference]; exists {
		return domain.ErrSessionAlreadyExists
	}
	r.sessions[session.MerchantReference] = session.Clone()
	return nil
}

func (r *SessionRepository) GetByMerchantReference(ctx context.Context, merchantReference string) (*domain.PaymentSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[merchantReference]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (r *SessionRepository) Resolve(ctx context.Context, merchantReference string, resolution domain.Resolution) (*domain.PaymentSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[merchantReference]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if err := session.Resolve(resolution); err != nil {
		if err == domain.ErrSessionAlreadyResolved {
			return nil, err
		}
		return nil, fmt.Errorf("failed to resolve session %s: %w", merchantReference, err)
	}
	return session.Clone(), nil
}
