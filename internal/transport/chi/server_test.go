package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/steelcrest/assetgate/internal/domain"
	assetsuc "github.com/steelcrest/assetgate/internal/usecase/assets"
	downloaduc "github.com/steelcrest/assetgate/internal/usecase/download"
	healthuc "github.com/steelcrest/assetgate/internal/usecase/health"
	searchuc "github.com/steelcrest/assetgate/internal/usecase/search"
	staginguc "github.com/steelcrest/assetgate/internal/usecase/staging"
)

// fakeBackend stands in for the order backend across the lister,
// deleter and uploader roles.
type fakeBackend struct {
	items     []domain.WorkItemAssets
	listErr   error
	deleteErr error
	deleted   []string
	uploads   int
	lastSet   domain.StagedSet
	uploadErr error
}

func (f *fakeBackend) ListAssets(_ context.Context, _ string) ([]domain.WorkItemAssets, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.items, nil
}

func (f *fakeBackend) DeleteAsset(_ context.Context, _ string, cat domain.Category, index int) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, fmt.Sprintf("%s/%d", cat, index))
	// Mirror the backend: drop the entry from the first record holding it.
	for i := range f.items {
		switch cat {
		case domain.CategoryImage:
			f.items[i].Images = removeIndex(f.items[i].Images, index)
		case domain.CategoryCadDrawing:
			f.items[i].CadDrawings = removeIndex(f.items[i].CadDrawings, index)
		case domain.CategoryTextDocument:
			f.items[i].TextDocuments = removeIndex(f.items[i].TextDocuments, index)
		}
	}
	return nil
}

func removeIndex(list []string, index int) []string {
	if index < 0 || index >= len(list) {
		return list
	}
	return append(list[:index:index], list[index+1:]...)
}

func (f *fakeBackend) CreateAssets(_ context.Context, _ string, set domain.StagedSet) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploads++
	f.lastSet = set
	return nil
}

// memStagingRepo is an in-memory staging repository.
type memStagingRepo struct {
	sets map[string]domain.StagedSet
}

func newMemStagingRepo() *memStagingRepo {
	return &memStagingRepo{sets: make(map[string]domain.StagedSet)}
}

func (m *memStagingRepo) scope(session, orderID string) domain.StagedSet {
	key := session + "/" + orderID
	if m.sets[key] == nil {
		m.sets[key] = make(domain.StagedSet)
	}
	return m.sets[key]
}

func (m *memStagingRepo) Replace(
	_ context.Context, session, orderID string, cat domain.Category, files []domain.StagedFile,
) error {
	m.scope(session, orderID).Select(cat, files)
	return nil
}

func (m *memStagingRepo) RemoveAt(
	_ context.Context, session, orderID string, cat domain.Category, index int,
) error {
	m.scope(session, orderID).RemoveAt(cat, index)
	return nil
}

func (m *memStagingRepo) Set(_ context.Context, session, orderID string) (domain.StagedSet, error) {
	return m.scope(session, orderID), nil
}

func (m *memStagingRepo) Clear(_ context.Context, session, orderID string) error {
	delete(m.sets, session+"/"+orderID)
	return nil
}

type fakeProvider struct {
	calls   int
	matches []domain.ProviderMatch
	err     error
}

func (f *fakeProvider) FindSimilar(_ context.Context, _ string, _ []byte) ([]domain.ProviderMatch, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

type okPinger struct{}

func (okPinger) Ping(_ context.Context) error { return nil }

type env struct {
	backend  *fakeBackend
	repo     *memStagingRepo
	provider *fakeProvider
	gateway  *httptest.Server
	storage  *httptest.Server
}

// newEnv wires the real use cases over fakes, with an httptest file
// server standing in for remote asset storage.
func newEnv(t *testing.T) *env {
	t.Helper()
	logger := zap.NewNop()

	storage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/media/orders/ref1.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("jpeg-bytes"))
		case "/media/orders/part.dwg":
			_, _ = w.Write([]byte("dwg-bytes"))
		default:
			http.Error(w, "file missing", http.StatusNotFound)
		}
	}))
	t.Cleanup(storage.Close)

	backend := &fakeBackend{}
	repo := newMemStagingRepo()
	provider := &fakeProvider{}

	stagingSvc := staginguc.New(repo, backend, logger)
	registry := assetsuc.NewRegistry(backend, backend, logger)
	downloadSvc := downloaduc.New(http.DefaultClient, domain.DefaultRetiredCADHosts, logger)
	searchRegistry := searchuc.NewRegistry(downloadSvc, provider, storage.URL, nil, logger)
	healthSvc := healthuc.New(okPinger{}, nil, nil)

	server := NewServer(stagingSvc, registry, downloadSvc, searchRegistry, healthSvc, logger)
	r := chi.NewRouter()
	server.Routes(r)

	gateway := httptest.NewServer(r)
	t.Cleanup(gateway.Close)

	return &env{
		backend:  backend,
		repo:     repo,
		provider: provider,
		gateway:  gateway,
		storage:  storage,
	}
}

func doRequest(t *testing.T, method, url string, body io.Reader, contentType string) (*http.Response, []byte) {
	t.Helper()
	return doSessionRequest(t, method, url, "", body, contentType)
}

func doSessionRequest(
	t *testing.T, method, url, session string, body io.Reader, contentType string,
) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if session != "" {
		req.Header.Set(sessionHeader, session)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	raw, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, raw
}

func multipartFiles(t *testing.T, names ...string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range names {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		_, _ = part.Write([]byte("content-of-" + name))
	}
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func decodeError(t *testing.T, raw []byte) errorResponse {
	t.Helper()
	var er errorResponse
	if err := json.Unmarshal(raw, &er); err != nil {
		t.Fatalf("decode error response %q: %v", raw, err)
	}
	return er
}

func TestListAssetsEndpoint(t *testing.T) {
	e := newEnv(t)
	e.backend.items = []domain.WorkItemAssets{
		{Images: []string{"/media/a.jpg"}, CadDrawings: []string{"/media/a.dwg"}},
		{Images: []string{"/media/b.jpg"}, TextDocuments: []string{"/media/b.txt"}},
	}

	resp, raw := doRequest(t, "GET", e.gateway.URL+"/api/v1/orders/ord-1/assets", http.NoBody, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, raw)
	}

	var got assetsResponse
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.OrderID != "ord-1" {
		t.Errorf("order_id = %q", got.OrderID)
	}
	if len(got.Assets["images"]) != 2 || got.Assets["images"][1] != "/media/b.jpg" {
		t.Errorf("images = %v, want flattened pair", got.Assets["images"])
	}
	if len(got.Assets["cad_files"]) != 1 || len(got.Assets["text_files"]) != 1 {
		t.Errorf("assets = %v", got.Assets)
	}
}

func TestListAssetsSoftFail(t *testing.T) {
	e := newEnv(t)
	e.backend.listErr = domain.NewTransport(http.StatusBadGateway, "backend down")

	resp, raw := doRequest(t, "GET", e.gateway.URL+"/api/v1/orders/ord-1/assets", http.NoBody, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("soft fail must still answer 200, got %d", resp.StatusCode)
	}

	var got assetsResponse
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for field, list := range got.Assets {
		if len(list) != 0 {
			t.Errorf("%s = %v, want empty", field, list)
		}
	}
}

func TestDeleteFlowEndpoint(t *testing.T) {
	e := newEnv(t)
	e.backend.items = []domain.WorkItemAssets{
		{CadDrawings: []string{"/media/a.dwg", "/media/b.dwg", "/media/c.dwg"}},
	}

	// Load the set first.
	doRequest(t, "GET", e.gateway.URL+"/api/v1/orders/ord-1/assets", http.NoBody, "")

	resp, raw := doRequest(t, "POST",
		e.gateway.URL+"/api/v1/orders/ord-1/assets/cad/1/delete", http.NoBody, "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("arm status = %d, body %s", resp.StatusCode, raw)
	}
	if len(e.backend.deleted) != 0 {
		t.Fatal("arming a delete must not call the backend")
	}

	resp, raw = doRequest(t, "POST",
		e.gateway.URL+"/api/v1/orders/ord-1/assets/delete/confirm", http.NoBody, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm status = %d, body %s", resp.StatusCode, raw)
	}
	if len(e.backend.deleted) != 1 || e.backend.deleted[0] != "cad/1" {
		t.Errorf("deleted = %v", e.backend.deleted)
	}

	var got assetsResponse
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []string{"/media/a.dwg", "/media/c.dwg"}
	if len(got.Assets["cad_files"]) != 2 ||
		got.Assets["cad_files"][0] != want[0] || got.Assets["cad_files"][1] != want[1] {
		t.Errorf("cad_files after delete = %v, want %v", got.Assets["cad_files"], want)
	}
}

func TestConfirmWithoutPending(t *testing.T) {
	e := newEnv(t)

	resp, raw := doRequest(t, "POST",
		e.gateway.URL+"/api/v1/orders/ord-1/assets/delete/confirm", http.NoBody, "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, body %s", resp.StatusCode, raw)
	}
	if er := decodeError(t, raw); er.Code != codeNoPendingDelete {
		t.Errorf("code = %s", er.Code)
	}
}

func TestDeleteUnknownCategory(t *testing.T) {
	e := newEnv(t)

	resp, raw := doRequest(t, "POST",
		e.gateway.URL+"/api/v1/orders/ord-1/assets/archives/0/delete", http.NoBody, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", resp.StatusCode, raw)
	}
	if er := decodeError(t, raw); er.Code != codeUnknownCategory {
		t.Errorf("code = %s", er.Code)
	}
}

func TestStagingFlow(t *testing.T) {
	e := newEnv(t)

	body, ct := multipartFiles(t, "front.jpg", "side.png")
	resp, raw := doRequest(t, "PUT",
		e.gateway.URL+"/api/v1/orders/ord-2/staging/image", body, ct)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stage images status = %d, body %s", resp.StatusCode, raw)
	}

	body, ct = multipartFiles(t, "very-long-customer-drawing-file.dwg")
	resp, raw = doRequest(t, "PUT",
		e.gateway.URL+"/api/v1/orders/ord-2/staging/cad", body, ct)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stage cad status = %d, body %s", resp.StatusCode, raw)
	}

	resp, raw = doRequest(t, "GET", e.gateway.URL+"/api/v1/orders/ord-2/staging", http.NoBody, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list staged status = %d", resp.StatusCode)
	}
	var staged struct {
		Staged map[string][]stagedEntry `json:"staged"`
	}
	if err := json.Unmarshal(raw, &staged); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(staged.Staged["images"]) != 2 || len(staged.Staged["cad_files"]) != 1 {
		t.Errorf("staged = %v", staged.Staged)
	}
	if dn := staged.Staged["cad_files"][0].DisplayName; dn != "very-long-custo...dwg" {
		t.Errorf("display name = %q", dn)
	}

	resp, raw = doRequest(t, "POST",
		e.gateway.URL+"/api/v1/orders/ord-2/staging/submit", http.NoBody, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("submit status = %d, body %s", resp.StatusCode, raw)
	}
	if e.backend.uploads != 1 {
		t.Errorf("uploads = %d, want 1", e.backend.uploads)
	}
	if e.backend.lastSet.Count(domain.CategoryImage) != 2 {
		t.Errorf("uploaded images = %d, want 2", e.backend.lastSet.Count(domain.CategoryImage))
	}

	// Staged lists are cleared after a successful submit.
	resp, raw = doRequest(t, "GET", e.gateway.URL+"/api/v1/orders/ord-2/staging", http.NoBody, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list staged status = %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, &staged); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(staged.Staged["images"]) != 0 || len(staged.Staged["cad_files"]) != 0 {
		t.Errorf("staged after submit = %v, want empty", staged.Staged)
	}
}

func TestSubmitMissingImage(t *testing.T) {
	e := newEnv(t)

	body, ct := multipartFiles(t, "part.dwg")
	doRequest(t, "PUT", e.gateway.URL+"/api/v1/orders/ord-3/staging/cad", body, ct)

	resp, raw := doRequest(t, "POST",
		e.gateway.URL+"/api/v1/orders/ord-3/staging/submit", http.NoBody, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", resp.StatusCode, raw)
	}
	er := decodeError(t, raw)
	if er.Code != codeValidationFailed {
		t.Errorf("code = %s", er.Code)
	}
	if !strings.Contains(er.Message, "image") {
		t.Errorf("message %q must name the missing image category", er.Message)
	}
	if e.backend.uploads != 0 {
		t.Errorf("uploads = %d, want 0", e.backend.uploads)
	}
}

func TestStageRejectsWrongExtension(t *testing.T) {
	e := newEnv(t)

	body, ct := multipartFiles(t, "notes.txt")
	resp, raw := doRequest(t, "PUT",
		e.gateway.URL+"/api/v1/orders/ord-4/staging/cad", body, ct)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", resp.StatusCode, raw)
	}
	if er := decodeError(t, raw); er.Code != codeValidationFailed {
		t.Errorf("code = %s", er.Code)
	}
}

func TestRemoveStagedOutOfRange(t *testing.T) {
	e := newEnv(t)

	resp, _ := doRequest(t, "DELETE",
		e.gateway.URL+"/api/v1/orders/ord-5/staging/image/7", http.NoBody, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("out-of-range remove must be a no-op, got %d", resp.StatusCode)
	}
}

func TestSearchEndpoint(t *testing.T) {
	e := newEnv(t)
	e.provider.matches = []domain.ProviderMatch{
		{ImageURL: "http://cdn.example.com/m1.jpg", CADURL: "http://cdn.example.com/m1.dwg", Name: "bracket", Similarity: 0.95},
		{ImageURL: "http://cdn.example.com/m2.jpg", CADURL: "None", Name: "flange", Similarity: 0.72},
		{ImageURL: "http://cdn.example.com/m3.jpg", CADURL: "http://cdn.example.com/m3.dwg", Name: "shim", Similarity: 0.5},
	}

	reqBody := `{"source_ref": "/media/orders/ref1.jpg", "display_name": "ref1.jpg"}`
	resp, raw := doRequest(t, "POST",
		e.gateway.URL+"/api/v1/similar", strings.NewReader(reqBody), "application/json")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, raw)
	}

	var got searchResponse
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.State != searchuc.StateReady {
		t.Errorf("state = %q", got.State)
	}
	if len(got.Results) != 2 {
		t.Fatalf("results = %d, want 2 (0.5 entry filtered)", len(got.Results))
	}
	if got.Results[0].CADURL == nil {
		t.Error("first result must keep its cad url")
	}
	if got.Results[1].CADURL != nil {
		t.Errorf("sentinel cad url must be null, got %v", *got.Results[1].CADURL)
	}
	if got.Results[0].Rank != 1 || got.Results[1].Rank != 2 {
		t.Errorf("ranks = %d, %d", got.Results[0].Rank, got.Results[1].Rank)
	}

	// The committed set is visible on GET.
	resp, raw = doRequest(t, "GET", e.gateway.URL+"/api/v1/similar", http.NoBody, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Results) != 2 {
		t.Errorf("committed results = %d, want 2", len(got.Results))
	}
}

func TestSearchSentinelRef(t *testing.T) {
	e := newEnv(t)

	reqBody := `{"source_ref": "None", "display_name": "x"}`
	resp, raw := doRequest(t, "POST",
		e.gateway.URL+"/api/v1/similar", strings.NewReader(reqBody), "application/json")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", resp.StatusCode, raw)
	}
	if er := decodeError(t, raw); er.Code != codeBadReference {
		t.Errorf("code = %s", er.Code)
	}
	if e.provider.calls != 0 {
		t.Errorf("provider calls = %d, want 0", e.provider.calls)
	}
}

func TestSearchSessionIsolation(t *testing.T) {
	e := newEnv(t)
	reqBody := `{"source_ref": "/media/orders/ref1.jpg", "display_name": "ref1.jpg"}`

	e.provider.matches = []domain.ProviderMatch{
		{ImageURL: "http://cdn.example.com/m1.jpg", Name: "bracket", Similarity: 0.95},
	}
	resp, raw := doSessionRequest(t, "POST",
		e.gateway.URL+"/api/v1/similar", "admin-a", strings.NewReader(reqBody), "application/json")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin-a search status = %d, body %s", resp.StatusCode, raw)
	}

	e.provider.matches = []domain.ProviderMatch{
		{ImageURL: "http://cdn.example.com/m2.jpg", Name: "flange", Similarity: 0.9},
		{ImageURL: "http://cdn.example.com/m3.jpg", Name: "shim", Similarity: 0.85},
	}
	resp, raw = doSessionRequest(t, "POST",
		e.gateway.URL+"/api/v1/similar", "admin-b", strings.NewReader(reqBody), "application/json")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin-b search status = %d, body %s", resp.StatusCode, raw)
	}

	var got searchResponse
	_, raw = doSessionRequest(t, "GET", e.gateway.URL+"/api/v1/similar", "admin-a", http.NoBody, "")
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Results) != 1 || got.Results[0].Name != "bracket" {
		t.Errorf("admin-a results = %+v, want its own single match", got.Results)
	}

	_, raw = doSessionRequest(t, "GET", e.gateway.URL+"/api/v1/similar", "admin-b", http.NoBody, "")
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Results) != 2 || got.Results[0].Name != "flange" {
		t.Errorf("admin-b results = %+v, want the second search's set", got.Results)
	}
}

func TestDownloadEndpoint(t *testing.T) {
	e := newEnv(t)

	url := e.gateway.URL + "/api/v1/download?src=" + e.storage.URL + "/media/orders/part.dwg&name=part.dwg"
	resp, raw := doRequest(t, "GET", url, http.NoBody, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, raw)
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != `attachment; filename="part.dwg"` {
		t.Errorf("content-disposition = %q", cd)
	}
	if string(raw) != "dwg-bytes" {
		t.Errorf("body = %q", raw)
	}
}

func TestDownloadSentinelRef(t *testing.T) {
	e := newEnv(t)

	resp, raw := doRequest(t, "GET", e.gateway.URL+"/api/v1/download?src=None&name=x", http.NoBody, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", resp.StatusCode, raw)
	}
	if er := decodeError(t, raw); er.Code != codeBadReference {
		t.Errorf("code = %s", er.Code)
	}
}

func TestDownloadRemoteMissing(t *testing.T) {
	e := newEnv(t)

	url := e.gateway.URL + "/api/v1/download?src=" + e.storage.URL + "/media/orders/gone.dwg&name=gone.dwg"
	resp, raw := doRequest(t, "GET", url, http.NoBody, "")
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, body %s", resp.StatusCode, raw)
	}
	if er := decodeError(t, raw); er.Code != codeTransportFailed {
		t.Errorf("code = %s", er.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	e := newEnv(t)

	resp, raw := doRequest(t, "GET", e.gateway.URL+"/health", http.NoBody, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, raw)
	}
	var got struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "ok" || got.Checks["staging_store"] != "ok" {
		t.Errorf("health = %+v", got)
	}
}
