package status_repo

import (
	"context"

	"farepay/internal/domain"
)

// StatusCache holds terminal status views. Terminal views never change, so entries
// need no invalidation; Put ignores anything that is not terminal.
type StatusCache interface {
	Get(ctx context.Context, merchantReference string) (*domain.StatusView, error)
	Put(ctx context.Context, view domain.StatusView) error
}
