package search

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// defaultMaxOrchestrators bounds the registry. Settled orchestrators
// (idle, or ready with only a cached result set) are evicted when the
// cap is reached; one with a search in flight is kept.
const defaultMaxOrchestrators = 1024

// Registry hands out one orchestrator per client session, so each
// admin's search state and result set are private to their console.
type Registry struct {
	source       SourceFetcher
	provider     Provider
	assetBase    string
	retiredHosts []string
	logger       *zap.Logger

	mu               sync.Mutex
	orchestrators    map[string]*Service
	maxOrchestrators int
}

// NewRegistry creates a registry over shared provider collaborators.
func NewRegistry(
	source SourceFetcher, provider Provider,
	assetBase string, retiredHosts []string, logger *zap.Logger,
) *Registry {
	return &Registry{
		source:           source,
		provider:         provider,
		assetBase:        strings.TrimRight(assetBase, "/"),
		retiredHosts:     retiredHosts,
		logger:           logger,
		orchestrators:    make(map[string]*Service),
		maxOrchestrators: defaultMaxOrchestrators,
	}
}

// ForSession returns the orchestrator for a session, creating it on
// first use.
func (r *Registry) ForSession(session string) *Service {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.orchestrators[session]; ok {
		return s
	}
	if len(r.orchestrators) >= r.maxOrchestrators {
		r.evictSettledLocked()
	}
	s := New(r.source, r.provider, r.assetBase, r.retiredHosts, r.logger)
	r.orchestrators[session] = s
	return s
}

func (r *Registry) evictSettledLocked() {
	for session, s := range r.orchestrators {
		if len(r.orchestrators) < r.maxOrchestrators {
			return
		}
		if st := s.State(); st == StateIdle || st == StateReady {
			delete(r.orchestrators, session)
		}
	}
}
