package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"farepay/internal/domain"
	"farepay/internal/repository/session_repo"
	"farepay/internal/repository/status_repo"
)

type StatusService interface {
	GetStatus(ctx context.Context, merchantReference string) (domain.StatusView, error)
}

type statusService struct {
	store  session_repo.SessionRepository
	cache  status_repo.StatusCache
	logger *zap.Logger
}

// NewStatusService reads through cache, which may be nil.
func NewStatusService(store session_repo.SessionRepository, cache status_repo.StatusCache, logger *zap.Logger) StatusService {
	return &statusService{store: store, cache: cache, logger: logger}
}

// GetStatus never writes the session. An unknown reference is a normal
// not_found view, not an error.
func (s *statusService) GetStatus(ctx context.Context, merchantReference string) (domain.StatusView, error) {
	merchantReference = strings.TrimSpace(merchantReference)
	if merchantReference == "" {
		return domain.StatusView{}, fmt.Errorf("%w: merchant reference is required", domain.ErrInvalidRequest)
	}

	if s.cache != nil {
		view, err := s.cache.Get(ctx, merchantReference)
		if err != nil {
			s.logger.Warn("Status cache read failed, falling back to store",
				zap.String("merchant_reference", merchantReference), zap.Error(err))
		} else if view != nil {
			return *view, nil
		}
	}

	session, err := s.store.GetByMerchantReference(ctx, merchantReference)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.NotFoundView(merchantReference), nil
		}
		return domain.StatusView{}, fmt.Errorf("failed to load status for %s: %w", merchantReference, err)
	}

	view := domain.NewStatusView(session)
	if view.IsTerminal() && s.cache != nil {
		if err := s.cache.Put(ctx, view); err != nil {
			s.logger.Warn("Status cache write failed",
				zap.String("merchant_reference", merchantReference), zap.Error(err))
		}
	}
	return view, nil
}
