// Package visionseek is the HTTP client for the external
// visual-similarity provider. The provider's response shape is loosely
// specified, so all tolerance for malformed payloads lives here: a
// shape problem degrades to an empty match list and a log line, never
// an error. Transport failures still propagate.
package visionseek

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/steelcrest/assetgate/internal/domain"
	"github.com/steelcrest/assetgate/internal/metrics"
)

// Client submits reference images to the similarity search endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *zap.Logger
}

// Config holds the similarity provider settings.
type Config struct {
	Endpoint string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// New creates a similarity provider client.
func New(cfg *Config) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   cfg.Logger,
	}
}

type matchRecord struct {
	ImgURL     string  `json:"img_url"`
	CadURL     string  `json:"cad_url"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
}

type searchResponse struct {
	SimilarImages []matchRecord `json:"similar_images"`
}

// FindSimilar posts the image as a single-file multipart request and
// returns the provider's raw matches in response order.
func (c *Client) FindSimilar(ctx context.Context, filename string, image []byte) ([]domain.ProviderMatch, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("write file part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)

	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues("error").Inc()
		metrics.ProviderErrorsTotal.WithLabelValues("network").Inc()
		return nil, fmt.Errorf("similarity search: %w", domain.NewTransport(0, err.Error()))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ProviderRequestsTotal.WithLabelValues("error").Inc()
		metrics.ProviderErrorsTotal.WithLabelValues("http_status").Inc()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, domain.NewTransport(resp.StatusCode, string(msg))
	}

	metrics.ProviderRequestsTotal.WithLabelValues("success").Inc()
	metrics.ProviderRequestDuration.Observe(duration.Seconds())

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read provider response: %w", err)
	}

	return c.parseMatches(raw), nil
}

// parseMatches maps the provider payload to domain matches. A body
// that does not decode, or one without a similar_images array, counts
// as malformed and yields an empty list.
func (c *Client) parseMatches(raw []byte) []domain.ProviderMatch {
	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		c.malformed("undecodable body", zap.Error(err))
		return []domain.ProviderMatch{}
	}
	if parsed.SimilarImages == nil {
		c.malformed("missing similar_images field")
		return []domain.ProviderMatch{}
	}

	matches := make([]domain.ProviderMatch, len(parsed.SimilarImages))
	for i, rec := range parsed.SimilarImages {
		matches[i] = domain.ProviderMatch{
			ImageURL:   rec.ImgURL,
			CADURL:     rec.CadURL,
			Name:       rec.Name,
			Similarity: rec.Similarity,
		}
	}

	metrics.ProviderMatchesTotal.WithLabelValues("returned").Add(float64(len(matches)))
	return matches
}

func (c *Client) malformed(reason string, fields ...zap.Field) {
	metrics.ProviderMatchesTotal.WithLabelValues("malformed").Inc()
	fields = append(fields, zap.String("reason", reason))
	c.logger.Warn(domain.ErrProviderShape.Error(), fields...)
}

// HealthCheck verifies provider reachability. Any HTTP response counts
// as reachable; the search endpoint rejects GETs but still answers.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("provider health: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}
