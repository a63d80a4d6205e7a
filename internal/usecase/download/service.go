// Package download proxies remote asset binaries. Storage objects
// frequently lack a content-disposition header, so direct navigation
// renders them inline; fetching and re-serving as an attachment keeps
// save-as behavior consistent across file types.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/steelcrest/assetgate/internal/domain"
)

// HTTPDoer issues HTTP requests. Satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// File is a fetched remote binary ready to stream to the console.
// The caller owns Body and must close it.
type File struct {
	Name        string
	ContentType string
	Size        int64 // -1 when unknown
	Body        io.ReadCloser
}

// Service fetches remote binaries with sentinel guarding.
type Service struct {
	client       HTTPDoer
	retiredHosts []string
	logger       *zap.Logger
}

// New creates a download service. retiredHosts extends the built-in
// "absent file" sentinel set with dead placeholder hosts.
func New(client HTTPDoer, retiredHosts []string, logger *zap.Logger) *Service {
	return &Service{client: client, retiredHosts: retiredHosts, logger: logger}
}

// Open fetches the binary at rawURL. Empty references, sentinel
// references and retired-host URLs are rejected before any network
// call. The response body is released on every failure path; on
// success ownership passes to the caller.
func (s *Service) Open(ctx context.Context, rawURL, filename string) (*File, error) {
	if domain.IsSentinelRef(rawURL) {
		return nil, fmt.Errorf("%w: %q", domain.ErrBadReference, rawURL)
	}
	for _, host := range s.retiredHosts {
		if host != "" && strings.HasPrefix(rawURL, host) {
			return nil, fmt.Errorf("%w: %q points at a retired host", domain.ErrBadReference, rawURL)
		}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q is not a fetchable url", domain.ErrBadReference, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, domain.NewTransport(0, err.Error()))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		return nil, domain.NewTransport(resp.StatusCode, string(msg))
	}

	name := filename
	if name == "" {
		name = path.Base(parsed.Path)
	}

	return &File{
		Name:        name,
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
		Body:        resp.Body,
	}, nil
}
