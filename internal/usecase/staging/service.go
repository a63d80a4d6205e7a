// Package staging validates and submits per-order staged uploads.
package staging

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/steelcrest/assetgate/internal/domain"
)

// Service implements the staged-upload lifecycle: category-scoped
// selection, positional removal, presence validation and submission.
type Service struct {
	repo    Repository
	backend Uploader
	logger  *zap.Logger
}

// New creates a staging service.
func New(repo Repository, backend Uploader, logger *zap.Logger) *Service {
	return &Service{repo: repo, backend: backend, logger: logger}
}

// Select replaces the staged list for cat with exactly the given
// files. Files whose extension does not belong to the category's
// accepted set are rejected before anything is stored.
func (s *Service) Select(
	ctx context.Context, session, orderID string, cat domain.Category, files []domain.StagedFile,
) error {
	for _, f := range files {
		if !cat.Accepts(f.Name) {
			return fmt.Errorf("%w: %q is not an accepted %s file", domain.ErrValidation, f.Name, cat)
		}
	}
	if err := s.repo.Replace(ctx, session, orderID, cat, files); err != nil {
		return err
	}
	return nil
}

// Remove drops one staged entry by position. Out-of-range indexes are
// a silent no-op.
func (s *Service) Remove(
	ctx context.Context, session, orderID string, cat domain.Category, index int,
) error {
	return s.repo.RemoveAt(ctx, session, orderID, cat, index)
}

// Staged returns the current staged set for the session and order.
func (s *Service) Staged(ctx context.Context, session, orderID string) (domain.StagedSet, error) {
	return s.repo.Set(ctx, session, orderID)
}

// Submit validates presence rules and sends the staged set to the
// backend as one multipart request. A presence violation returns a
// ValidationError naming the missing category and makes no backend
// call. On transport failure the staged set is preserved so the user
// can retry without reselecting files; on success it is cleared.
func (s *Service) Submit(ctx context.Context, session, orderID string) error {
	set, err := s.repo.Set(ctx, session, orderID)
	if err != nil {
		return err
	}

	if cat, missing := set.MissingRequired(); missing {
		return domain.NewMissingCategory(cat)
	}

	if err := s.backend.CreateAssets(ctx, orderID, set); err != nil {
		return err
	}

	if err := s.repo.Clear(ctx, session, orderID); err != nil {
		// The upload went through; a dangling staged set only costs a
		// TTL's worth of storage.
		s.logger.Warn("failed to clear staged set after submit",
			zap.String("order_id", orderID), zap.Error(err))
	}
	return nil
}

// DisplayName shortens a filename for presentation: names of length
// <=20 are returned verbatim, longer names become the first 15
// characters, "...", and the extension after the last dot. Lengths and
// the prefix cut are measured in runes so multibyte names are never
// split mid-character.
func DisplayName(name string) string {
	runes := []rune(name)
	if len(runes) <= 20 {
		return name
	}
	ext := ""
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		ext = name[idx+1:]
	}
	return string(runes[:15]) + "..." + ext
}
