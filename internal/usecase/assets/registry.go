package assets

import (
	"sync"

	"go.uber.org/zap"
)

// defaultMaxStores bounds the registry. Idle stores are evicted when
// the cap is reached; a store with a delete armed or executing is
// never evicted.
const defaultMaxStores = 1024

// Registry hands out one Service per order, the server-side analog of
// an open order surface in the console. The per-order instance is what
// serializes delete confirmations for that order.
type Registry struct {
	lister  Lister
	deleter Deleter
	logger  *zap.Logger

	mu        sync.Mutex
	stores    map[string]*Service
	maxStores int
}

// NewRegistry creates a registry over shared backend collaborators.
func NewRegistry(lister Lister, deleter Deleter, logger *zap.Logger) *Registry {
	return &Registry{
		lister:    lister,
		deleter:   deleter,
		logger:    logger,
		stores:    make(map[string]*Service),
		maxStores: defaultMaxStores,
	}
}

// ForOrder returns the store for an order, creating it on first use.
func (r *Registry) ForOrder(orderID string) *Service {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stores[orderID]; ok {
		return s
	}
	if len(r.stores) >= r.maxStores {
		r.evictIdleLocked()
	}
	s := New(r.lister, r.deleter, orderID, r.logger)
	r.stores[orderID] = s
	return s
}

func (r *Registry) evictIdleLocked() {
	for orderID, s := range r.stores {
		if len(r.stores) < r.maxStores {
			return
		}
		if s.idle() {
			delete(r.stores, orderID)
		}
	}
}
