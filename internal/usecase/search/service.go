// Package search orchestrates visual-similarity lookups: resolve a
// stored reference image, submit it to the external provider, then
// filter and sentinel-clean the response into the canonical result set.
package search

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/steelcrest/assetgate/internal/domain"
)

// State is the orchestrator's lifecycle state.
type State string

// Orchestrator states.
const (
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateSubmitting  State = "submitting"
	StateNormalizing State = "normalizing"
	StateReady       State = "ready"
)

// Service runs one active similarity search at a time. A newer Search
// replaces an in-flight one from the caller's perspective; the
// superseded request is not cancelled on the network layer, its late
// completion is detected by sequence correlation and discarded before
// commit.
type Service struct {
	source       SourceFetcher
	provider     Provider
	assetBase    string
	retiredHosts []string
	logger       *zap.Logger

	mu      sync.Mutex
	seq     uint64
	st      State
	results []domain.SimilarityResult
}

// New creates a search orchestrator. assetBase is joined with inline
// (server-relative) references; retiredHosts extends the CAD sentinel
// set.
func New(
	source SourceFetcher, provider Provider,
	assetBase string, retiredHosts []string, logger *zap.Logger,
) *Service {
	return &Service{
		source:       source,
		provider:     provider,
		assetBase:    strings.TrimRight(assetBase, "/"),
		retiredHosts: retiredHosts,
		logger:       logger,
		st:           StateIdle,
	}
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

// Results returns the active result set.
func (s *Service) Results() []domain.SimilarityResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.SimilarityResult(nil), s.results...)
}

// Search resolves sourceRef, submits its bytes to the provider and
// commits the normalized result set, atomically replacing any previous
// one. Sentinel references are rejected synchronously with no network
// call. On failure the committed set becomes empty and the
// orchestrator returns to idle.
func (s *Service) Search(
	ctx context.Context, sourceRef, displayName string,
) ([]domain.SimilarityResult, error) {
	if domain.IsSentinelRef(sourceRef) {
		return nil, fmt.Errorf("%w: %q", domain.ErrBadReference, sourceRef)
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.st = StateFetching
	s.mu.Unlock()

	src, err := s.source.Open(ctx, s.resolve(sourceRef), displayName)
	if err != nil {
		return nil, s.fail(seq, fmt.Errorf("fetch source image: %w", err))
	}
	data, err := io.ReadAll(src.Body)
	closeErr := src.Body.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, s.fail(seq, fmt.Errorf("read source image: %w", err))
	}

	name := displayName
	if name == "" {
		name = src.Name
	}

	s.transition(seq, StateSubmitting)
	matches, err := s.provider.FindSimilar(ctx, name, data)
	if err != nil {
		return nil, s.fail(seq, err)
	}

	s.transition(seq, StateNormalizing)
	results := domain.NormalizeSimilar(matches, s.retiredHosts)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq != seq {
		// A newer search replaced this one while it was in flight.
		s.logger.Debug("discarding stale similarity response",
			zap.Uint64("seq", seq), zap.Uint64("latest", s.seq))
		return results, nil
	}
	s.st = StateReady
	s.results = results
	return results, nil
}

// resolve turns a stored reference into a fetchable URL: already
// absolute for persisted assets, joined with the asset base for inline
// references.
func (s *Service) resolve(ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return s.assetBase + "/" + strings.TrimLeft(ref, "/")
}

// fail empties the committed result set and returns to idle, unless a
// newer search already owns the state.
func (s *Service) fail(seq uint64, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq == seq {
		s.st = StateIdle
		s.results = nil
	}
	return err
}

func (s *Service) transition(seq uint64, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq == seq {
		s.st = st
	}
}
