package assets

import (
	"context"

	"github.com/steelcrest/assetgate/internal/domain"
)

// Lister fetches an order's persisted asset records from the backend.
type Lister interface {
	ListAssets(ctx context.Context, orderID string) ([]domain.WorkItemAssets, error)
}

// Deleter removes one persisted asset addressed by category and
// positional index.
type Deleter interface {
	DeleteAsset(ctx context.Context, orderID string, cat domain.Category, index int) error
}
