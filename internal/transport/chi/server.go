// Package chi is the HTTP surface of the asset gateway: staging
// select/remove/submit, persisted asset list and two-phase delete,
// download proxying and similarity search.
package chi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/steelcrest/assetgate/internal/domain"
	assetsuc "github.com/steelcrest/assetgate/internal/usecase/assets"
	downloaduc "github.com/steelcrest/assetgate/internal/usecase/download"
	healthuc "github.com/steelcrest/assetgate/internal/usecase/health"
	searchuc "github.com/steelcrest/assetgate/internal/usecase/search"
	staginguc "github.com/steelcrest/assetgate/internal/usecase/staging"
)

// sessionHeader scopes staged uploads to one console surface. The
// console sends a random id per open upload dialog; absent header
// falls back to a shared scope.
const sessionHeader = "X-Client-Session"

const defaultSession = "default"

// maxUploadBytes bounds an in-memory multipart parse.
const maxUploadBytes = 64 << 20

// Server exposes the gateway's use cases over HTTP.
type Server struct {
	staging  *staginguc.Service
	assets   *assetsuc.Registry
	download *downloaduc.Service
	search   *searchuc.Registry
	health   *healthuc.Service
	logger   *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	staging *staginguc.Service,
	assets *assetsuc.Registry,
	download *downloaduc.Service,
	search *searchuc.Registry,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	return &Server{
		staging:  staging,
		assets:   assets,
		download: download,
		search:   search,
		health:   health,
		logger:   logger,
	}
}

// Routes mounts all endpoints on the router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.healthCheck)
	r.Get("/metrics", s.metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders/{orderID}", func(r chi.Router) {
			r.Get("/assets", s.listAssets)
			r.Post("/assets/{category}/{index}/delete", s.requestDelete)
			r.Post("/assets/delete/confirm", s.confirmDelete)
			r.Post("/assets/delete/cancel", s.cancelDelete)

			r.Get("/staging", s.listStaged)
			r.Put("/staging/{category}", s.stageFiles)
			r.Delete("/staging/{category}/{index}", s.removeStaged)
			r.Post("/staging/submit", s.submitStaged)
		})

		r.Post("/similar", s.searchSimilar)
		r.Get("/similar", s.currentSimilar)
		r.Get("/download", s.downloadFile)
	})
}

type stagedEntry struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Size        int    `json:"size"`
}

type assetsResponse struct {
	OrderID string              `json:"order_id"`
	Assets  map[string][]string `json:"assets"`
}

type searchRequest struct {
	SourceRef   string `json:"source_ref"`
	DisplayName string `json:"display_name"`
}

type searchResponse struct {
	State   searchuc.State            `json:"state"`
	Results []domain.SimilarityResult `json:"results"`
}

func session(r *http.Request) string {
	if s := r.Header.Get(sessionHeader); s != "" {
		return s
	}
	return defaultSession
}

func assetSetToJSON(set domain.AssetSet) map[string][]string {
	out := make(map[string][]string, len(domain.Categories()))
	for _, cat := range domain.Categories() {
		paths := set[cat]
		if paths == nil {
			paths = []string{}
		}
		out[cat.FieldName()] = paths
	}
	return out
}

func stagedSetToJSON(set domain.StagedSet) map[string][]stagedEntry {
	out := make(map[string][]stagedEntry, len(domain.Categories()))
	for _, cat := range domain.Categories() {
		entries := make([]stagedEntry, len(set[cat]))
		for i, f := range set[cat] {
			entries[i] = stagedEntry{
				Name:        f.Name,
				DisplayName: staginguc.DisplayName(f.Name),
				Size:        len(f.Data),
			}
		}
		out[cat.FieldName()] = entries
	}
	return out
}

// categoryParam parses the {category} URL parameter. Both canonical
// names and backend field names are accepted.
func categoryParam(r *http.Request) (domain.Category, error) {
	return domain.ParseCategory(chi.URLParam(r, "category"))
}

func indexParam(r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	return idx, err == nil && idx >= 0
}

// listAssets handles GET /api/v1/orders/{orderID}/assets.
func (s *Server) listAssets(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	set := s.assets.ForOrder(orderID).Fetch(r.Context())

	writeJSON(w, http.StatusOK, assetsResponse{
		OrderID: orderID,
		Assets:  assetSetToJSON(set),
	})
}

// requestDelete handles POST /api/v1/orders/{orderID}/assets/{category}/{index}/delete.
// Phase one of the delete: arms a pending confirmation, no backend call.
func (s *Server) requestDelete(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	cat, err := categoryParam(r)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	index, ok := indexParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, codeBadRequest, "index must be a non-negative integer")
		return
	}

	if err := s.assets.ForOrder(orderID).RequestDelete(cat, index); err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":   "confirm_pending",
		"category": string(cat),
		"index":    index,
	})
}

// confirmDelete handles POST /api/v1/orders/{orderID}/assets/delete/confirm.
// Phase two: executes the armed delete and returns the refetched set.
func (s *Server) confirmDelete(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	set, err := s.assets.ForOrder(orderID).Confirm(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, assetsResponse{
		OrderID: orderID,
		Assets:  assetSetToJSON(set),
	})
}

// cancelDelete handles POST /api/v1/orders/{orderID}/assets/delete/cancel.
func (s *Server) cancelDelete(w http.ResponseWriter, r *http.Request) {
	s.assets.ForOrder(chi.URLParam(r, "orderID")).Cancel()
	w.WriteHeader(http.StatusNoContent)
}

// listStaged handles GET /api/v1/orders/{orderID}/staging.
func (s *Server) listStaged(w http.ResponseWriter, r *http.Request) {
	set, err := s.staging.Staged(r.Context(), session(r), chi.URLParam(r, "orderID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"staged": stagedSetToJSON(set)})
}

// stageFiles handles PUT /api/v1/orders/{orderID}/staging/{category}.
// The multipart "files" field replaces the category's staged list.
func (s *Server) stageFiles(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	cat, err := categoryParam(r)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid multipart body: "+err.Error())
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, codeBadRequest, "multipart field \"files\" is required")
		return
	}

	files := make([]domain.StagedFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "read uploaded file: "+err.Error())
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, codeBadRequest, "read uploaded file: "+err.Error())
			return
		}
		files = append(files, domain.StagedFile{Name: fh.Filename, Data: data})
	}

	if err := s.staging.Select(r.Context(), session(r), orderID, cat, files); err != nil {
		s.handleDomainError(w, err)
		return
	}

	entries := make([]stagedEntry, len(files))
	for i, f := range files {
		entries[i] = stagedEntry{
			Name:        f.Name,
			DisplayName: staginguc.DisplayName(f.Name),
			Size:        len(f.Data),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"category": cat.FieldName(),
		"files":    entries,
	})
}

// removeStaged handles DELETE /api/v1/orders/{orderID}/staging/{category}/{index}.
// Out-of-range indexes are a no-op, matching the staging semantics.
func (s *Server) removeStaged(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	cat, err := categoryParam(r)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	index, ok := indexParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, codeBadRequest, "index must be a non-negative integer")
		return
	}

	if err := s.staging.Remove(r.Context(), session(r), orderID, cat, index); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// submitStaged handles POST /api/v1/orders/{orderID}/staging/submit.
func (s *Server) submitStaged(w http.ResponseWriter, r *http.Request) {
	if err := s.staging.Submit(r.Context(), session(r), chi.URLParam(r, "orderID")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// searchSimilar handles POST /api/v1/similar. The orchestrator is
// session-scoped so concurrent admins do not clobber each other's
// result sets.
func (s *Server) searchSimilar(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}

	orch := s.search.ForSession(session(r))
	results, err := orch.Search(r.Context(), req.SourceRef, req.DisplayName)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	if results == nil {
		results = []domain.SimilarityResult{}
	}
	writeJSON(w, http.StatusOK, searchResponse{
		State:   orch.State(),
		Results: results,
	})
}

// currentSimilar handles GET /api/v1/similar.
func (s *Server) currentSimilar(w http.ResponseWriter, r *http.Request) {
	orch := s.search.ForSession(session(r))
	results := orch.Results()
	if results == nil {
		results = []domain.SimilarityResult{}
	}
	writeJSON(w, http.StatusOK, searchResponse{
		State:   orch.State(),
		Results: results,
	})
}

// downloadFile handles GET /api/v1/download?src=...&name=...
// Storage objects often lack a content-disposition header, so the
// gateway fetches the binary and re-serves it as an attachment.
func (s *Server) downloadFile(w http.ResponseWriter, r *http.Request) {
	src := r.URL.Query().Get("src")
	name := r.URL.Query().Get("name")

	file, err := s.download.Open(r.Context(), src, name)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	defer func() { _ = file.Body.Close() }()

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(file.Name))
	if file.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	}

	if _, err := io.Copy(w, file.Body); err != nil {
		// Headers already sent; nothing to do but log.
		s.logger.Warn("download stream interrupted",
			zap.String("src", src), zap.Error(err))
	}
}

// healthCheck handles GET /health.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// metrics handles GET /metrics.
func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}
