package domain

import (
	"strings"
)

// MinSimilarity is the fixed relevance floor for including a provider
// match, inclusive. It is not configurable per call.
const MinSimilarity = 0.70

// noneSentinel is the literal placeholder the provider and backend use
// for "no file".
const noneSentinel = "None"

// DefaultRetiredCADHosts lists known dead placeholder hosts that old
// provider records still point CAD links at. URLs on these hosts mean
// "no CAD file", not a real reference.
var DefaultRetiredCADHosts = []string{"http://65.0.73.121:8000"}

// ProviderMatch is one raw record from the similarity provider, before
// filtering and sentinel cleaning.
type ProviderMatch struct {
	ImageURL   string
	CADURL     string
	Name       string
	Similarity float64
}

// SimilarityResult is a canonical, cleaned similarity hit. Similarity
// is a fraction in [0,1]; rendering it as a percentage is a
// presentation concern. CADURL is nil whenever the provider returned a
// recognized "no CAD" sentinel.
type SimilarityResult struct {
	Rank       int     `json:"rank"`
	ImageURL   string  `json:"img_url"`
	CADURL     *string `json:"cad_url"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
	Format     string  `json:"format"`
}

// IsSentinelRef reports whether a file reference is absent: empty,
// the literal "None", or a path containing a "/None" segment.
func IsSentinelRef(ref string) bool {
	if strings.TrimSpace(ref) == "" || ref == noneSentinel {
		return true
	}
	return strings.Contains(ref, "/"+noneSentinel)
}

// NormalizeSimilar maps raw provider matches into canonical results:
// entries below MinSimilarity are dropped, CAD sentinels become nil,
// and ranks follow the provider's own ordering (no re-sorting — the
// provider owns ranking).
func NormalizeSimilar(matches []ProviderMatch, retiredHosts []string) []SimilarityResult {
	results := make([]SimilarityResult, 0, len(matches))
	for _, m := range matches {
		if m.Similarity < MinSimilarity {
			continue
		}
		results = append(results, SimilarityResult{
			Rank:       len(results) + 1,
			ImageURL:   m.ImageURL,
			CADURL:     cleanCADURL(m.CADURL, retiredHosts),
			Name:       m.Name,
			Similarity: m.Similarity,
			Format:     FormatOf(m.ImageURL),
		})
	}
	return results
}

// cleanCADURL normalizes sentinel CAD references to nil so they are
// never surfaced as truthy-but-broken links.
func cleanCADURL(url string, retiredHosts []string) *string {
	if IsSentinelRef(url) {
		return nil
	}
	for _, host := range retiredHosts {
		if host != "" && strings.HasPrefix(url, host) {
			return nil
		}
	}
	return &url
}

// FormatOf infers a display file format from a URL or path: the
// extension after the last dot, uppercased. Empty when there is none.
func FormatOf(ref string) string {
	trimmed := ref
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	idx := strings.LastIndexByte(trimmed, '.')
	if idx < 0 || idx == len(trimmed)-1 {
		return ""
	}
	ext := trimmed[idx+1:]
	if strings.ContainsRune(ext, '/') {
		return ""
	}
	return strings.ToUpper(ext)
}
