package search

import (
	"context"

	"github.com/steelcrest/assetgate/internal/domain"
	"github.com/steelcrest/assetgate/internal/usecase/download"
)

// SourceFetcher resolves a stored reference to its bytes. Satisfied by
// the download proxy, which also guards sentinel references.
type SourceFetcher interface {
	Open(ctx context.Context, rawURL, filename string) (*download.File, error)
}

// Provider submits a reference image to the external visual-similarity
// endpoint and returns its raw matches. Shape tolerance is the
// provider client's job: a malformed response degrades to an empty
// match list there, not an error here.
type Provider interface {
	FindSimilar(ctx context.Context, filename string, image []byte) ([]domain.ProviderMatch, error)
}
