// Package assets exposes an order's persisted asset set and its
// index-addressed, two-phase delete flow.
package assets

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/steelcrest/assetgate/internal/domain"
)

// ErrNoPendingDelete signals a Confirm or Cancel without an armed delete.
var ErrNoPendingDelete = errors.New("no delete awaiting confirmation")

type state int

const (
	stateIdle state = iota
	stateConfirmPending
	stateExecuting
)

// Service is the persisted-asset store for one order. The set is only
// ever replaced wholesale by a refetch, never patched locally: index
// addressing makes partial mutation unsafe if server-side ordering
// shifts across a delete.
type Service struct {
	lister  Lister
	deleter Deleter
	orderID string
	logger  *zap.Logger

	mu           sync.Mutex
	set          domain.AssetSet
	st           state
	pendingCat   domain.Category
	pendingIndex int
}

// New creates an asset store for one order.
func New(lister Lister, deleter Deleter, orderID string, logger *zap.Logger) *Service {
	return &Service{
		lister:  lister,
		deleter: deleter,
		orderID: orderID,
		logger:  logger,
		set:     domain.EmptyAssetSet(),
	}
}

// idle reports whether no delete is armed or executing. Idle stores
// are the ones the registry may evict.
func (s *Service) idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st == stateIdle
}

// Fetch refreshes the set from the backend and flattens every work
// item's per-category arrays into one list per category. A backend
// failure resets to an empty set instead of raising — the console
// shows "no files".
func (s *Service) Fetch(ctx context.Context) domain.AssetSet {
	items, err := s.lister.ListAssets(ctx, s.orderID)
	set := domain.FlattenAssets(items)
	if err != nil {
		s.logger.Warn("asset listing failed, exposing empty set",
			zap.String("order_id", s.orderID), zap.Error(err))
		set = domain.EmptyAssetSet()
	}

	s.mu.Lock()
	s.set = set
	s.mu.Unlock()
	return set
}

// Current returns the last fetched set.
func (s *Service) Current() domain.AssetSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set
}

// RequestDelete arms a delete for explicit confirmation. No network
// call happens until Confirm. A request while a delete is executing is
// rejected with ErrDeleteInFlight; re-arming over an unconfirmed
// request replaces the pending target.
func (s *Service) RequestDelete(cat domain.Category, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st == stateExecuting {
		return domain.ErrDeleteInFlight
	}
	if _, ok := s.set.At(cat, index); !ok {
		return fmt.Errorf("%w: no %s asset at index %d", domain.ErrValidation, cat, index)
	}

	s.st = stateConfirmPending
	s.pendingCat = cat
	s.pendingIndex = index
	return nil
}

// Cancel disarms a pending delete.
func (s *Service) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st == stateConfirmPending {
		s.st = stateIdle
	}
}

// Pending reports the armed delete target, if any.
func (s *Service) Pending() (domain.Category, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st != stateConfirmPending {
		return "", 0, false
	}
	return s.pendingCat, s.pendingIndex, true
}

// Confirm executes the armed delete. Success triggers an unconditional
// refetch and returns the fresh set; failure leaves the in-memory set
// untouched, surfaces the error and performs no refetch. Either way
// the store returns to idle.
func (s *Service) Confirm(ctx context.Context) (domain.AssetSet, error) {
	s.mu.Lock()
	if s.st != stateConfirmPending {
		s.mu.Unlock()
		return nil, ErrNoPendingDelete
	}
	cat, index := s.pendingCat, s.pendingIndex
	s.st = stateExecuting
	s.mu.Unlock()

	if err := s.deleter.DeleteAsset(ctx, s.orderID, cat, index); err != nil {
		s.mu.Lock()
		s.st = stateIdle
		s.mu.Unlock()
		return nil, err
	}

	set := s.Fetch(ctx)

	s.mu.Lock()
	s.st = stateIdle
	s.mu.Unlock()
	return set, nil
}
