package staging

import (
	"context"

	"github.com/steelcrest/assetgate/internal/domain"
)

// Repository holds staged selections between select calls and a submit.
type Repository interface {
	Replace(ctx context.Context, session, orderID string, cat domain.Category, files []domain.StagedFile) error
	RemoveAt(ctx context.Context, session, orderID string, cat domain.Category, index int) error
	Set(ctx context.Context, session, orderID string) (domain.StagedSet, error)
	Clear(ctx context.Context, session, orderID string) error
}

// Uploader submits a complete staged set to the order backend.
type Uploader interface {
	CreateAssets(ctx context.Context, orderID string, set domain.StagedSet) error
}
