// Package backendapi is the HTTP client for the order backend's asset
// endpoints: listing work-item asset records, multipart asset creation
// and index-addressed deletes.
package backendapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/steelcrest/assetgate/internal/domain"
)

// TokenSource supplies the bearer credential attached to every backend
// request. Token lifecycle is owned elsewhere.
type TokenSource interface {
	Token() string
}

// StaticTokenSource is a TokenSource returning a fixed credential.
type StaticTokenSource string

// Token implements TokenSource.
func (s StaticTokenSource) Token() string { return string(s) }

// Client talks to the order backend.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	logger  *zap.Logger
}

// Config holds the order backend client settings.
type Config struct {
	BaseURL string
	Tokens  TokenSource
	Timeout time.Duration
	Logger  *zap.Logger
}

// New creates an order backend client.
func New(cfg *Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		tokens:  cfg.Tokens,
		logger:  cfg.Logger,
	}
}

// workItemRecord is one backend storage record. An order's assets may
// be split across several records.
type workItemRecord struct {
	Images    []string `json:"images"`
	CadFiles  []string `json:"cad_files"`
	TextFiles []string `json:"text_files"`
}

type deleteRequest struct {
	OrderID  string `json:"order_id"`
	Category string `json:"category"`
	Index    int    `json:"index"`
}

type deleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ListAssets fetches the order's work-item asset records.
func (c *Client) ListAssets(ctx context.Context, orderID string) ([]domain.WorkItemAssets, error) {
	url := fmt.Sprintf("%s/orders/%s/assets", c.baseURL, orderID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list assets for order %s: %w", orderID, domain.NewTransport(0, err.Error()))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.responseError(resp)
	}

	var records []workItemRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode asset listing: %w", err)
	}

	items := make([]domain.WorkItemAssets, len(records))
	for i, rec := range records {
		items[i] = domain.WorkItemAssets{
			Images:        rec.Images,
			CadDrawings:   rec.CadFiles,
			TextDocuments: rec.TextFiles,
		}
	}
	return items, nil
}

// CreateAssets uploads a staged set as one multipart request. Each
// category contributes a repeated form field named after the backend's
// field name for that category.
func (c *Client) CreateAssets(ctx context.Context, orderID string, set domain.StagedSet) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField("order_id", orderID); err != nil {
		return fmt.Errorf("write order field: %w", err)
	}

	for _, cat := range domain.Categories() {
		for _, f := range set[cat] {
			part, err := mw.CreateFormFile(cat.FieldName(), f.Name)
			if err != nil {
				return fmt.Errorf("create %s part: %w", cat.FieldName(), err)
			}
			if _, err := part.Write(f.Data); err != nil {
				return fmt.Errorf("write %s part: %w", cat.FieldName(), err)
			}
		}
	}

	if err := mw.Close(); err != nil {
		return fmt.Errorf("finalize multipart body: %w", err)
	}

	url := c.baseURL + "/assets"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("create assets for order %s: %w", orderID, domain.NewTransport(0, err.Error()))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.responseError(resp)
	}
	return nil
}

// DeleteAsset removes one persisted asset addressed by category and
// positional index. The backend responds with a success flag even on
// HTTP 200, so both layers are checked.
func (c *Client) DeleteAsset(ctx context.Context, orderID string, cat domain.Category, index int) error {
	body, err := json.Marshal(deleteRequest{
		OrderID:  orderID,
		Category: cat.FieldName(),
		Index:    index,
	})
	if err != nil {
		return fmt.Errorf("marshal delete request: %w", err)
	}

	url := c.baseURL + "/assets/delete"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete asset for order %s: %w", orderID, domain.NewTransport(0, err.Error()))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.responseError(resp)
	}

	var dr deleteResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("decode delete response: %w", err)
	}
	if !dr.Success {
		msg := dr.Message
		if msg == "" {
			msg = "delete rejected by backend"
		}
		return domain.NewTransport(resp.StatusCode, msg)
	}
	return nil
}

// HealthCheck verifies backend reachability.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend health: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("backend health: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if tok := c.tokens.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
}

// responseError extracts a server-supplied message from a non-2xx
// response body, falling back to the raw body.
func (c *Client) responseError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var parsed struct {
		Message string `json:"message"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &parsed) == nil && parsed.Message != "" {
		msg = parsed.Message
	}

	c.logger.Warn("backend request failed",
		zap.Int("status", resp.StatusCode),
		zap.String("message", msg))

	return domain.NewTransport(resp.StatusCode, msg)
}
