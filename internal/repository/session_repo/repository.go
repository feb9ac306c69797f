package session_repo

import (
	"context"

	"farepay/internal/domain"
)

// SessionRepository stores payment sessions keyed by merchant reference.
//
// Create fails with domain.ErrSessionAlreadyExists on a duplicate reference.
// GetByMerchantReference fails with domain.ErrSessionNotFound.
// Resolve applies the resolution only while the stored status is still pending
// (compare-and-set); otherwise it fails with domain.ErrSessionAlreadyResolved and
// leaves the session untouched. It returns the session as stored after the update.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.PaymentSession) error
	GetByMerchantReference(ctx context.Context, merchantReference string) (*domain.PaymentSession, error)
	Resolve(ctx context.Context, merchantReference string, resolution domain.Resolution) (*domain.PaymentSession, error)
}
