// Package staging persists not-yet-submitted file selections so that
// select, remove and submit calls can land on any gateway replica.
package staging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/steelcrest/assetgate/internal/domain"
)

// store is the consumer interface for staged selections (ISP).
type store interface {
	ListReplace(ctx context.Context, key string, elems []string, ttl time.Duration) error
	ListRange(ctx context.Context, key string) ([]string, error)
	ListRemoveAt(ctx context.Context, key string, index int) error
	Del(ctx context.Context, keys ...string) error
}

// Repo implements usecase/staging.Repository on ordered Redis lists,
// one list per (session, order, category). Entries expire with the
// session TTL so abandoned selections clean themselves up.
type Repo struct {
	store     store
	keyPrefix string
	ttl       time.Duration
}

// New creates a staging repository.
func New(s store, keyPrefix string, ttl time.Duration) *Repo {
	return &Repo{store: s, keyPrefix: keyPrefix, ttl: ttl}
}

// Replace replaces the staged list for one category.
func (r *Repo) Replace(
	ctx context.Context, session, orderID string, cat domain.Category, files []domain.StagedFile,
) error {
	elems := make([]string, len(files))
	for i, f := range files {
		data, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("marshal staged file %q: %w", f.Name, err)
		}
		elems[i] = string(data)
	}
	if err := r.store.ListReplace(ctx, r.key(session, orderID, cat), elems, r.ttl); err != nil {
		return fmt.Errorf("replace staged %s: %w", cat, err)
	}
	return nil
}

// RemoveAt removes one staged entry by position. Out-of-range indexes
// are a no-op, mirroring the store contract.
func (r *Repo) RemoveAt(
	ctx context.Context, session, orderID string, cat domain.Category, index int,
) error {
	if err := r.store.ListRemoveAt(ctx, r.key(session, orderID, cat), index); err != nil {
		return fmt.Errorf("remove staged %s[%d]: %w", cat, index, err)
	}
	return nil
}

// Set reads the full staged set across all categories.
func (r *Repo) Set(ctx context.Context, session, orderID string) (domain.StagedSet, error) {
	set := domain.StagedSet{}
	for _, cat := range domain.Categories() {
		elems, err := r.store.ListRange(ctx, r.key(session, orderID, cat))
		if err != nil {
			return nil, fmt.Errorf("read staged %s: %w", cat, err)
		}
		files := make([]domain.StagedFile, 0, len(elems))
		for _, raw := range elems {
			var f domain.StagedFile
			if err := json.Unmarshal([]byte(raw), &f); err != nil {
				return nil, fmt.Errorf("decode staged %s entry: %w", cat, err)
			}
			files = append(files, f)
		}
		set[cat] = files
	}
	return set, nil
}

// Clear drops every staged list for the session and order.
func (r *Repo) Clear(ctx context.Context, session, orderID string) error {
	keys := make([]string, 0, len(domain.Categories()))
	for _, cat := range domain.Categories() {
		keys = append(keys, r.key(session, orderID, cat))
	}
	if err := r.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("clear staged set: %w", err)
	}
	return nil
}

func (r *Repo) key(session, orderID string, cat domain.Category) string {
	return fmt.Sprintf("%sstaging:%s:%s:%s", r.keyPrefix, session, orderID, cat)
}
