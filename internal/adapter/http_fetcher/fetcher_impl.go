package http_fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/user/colorvariant-harvester/internal/repository"
)

// Options configure the HTTP client used by HTTPFetcher.
type Options struct {
	// Timeout bounds a whole request. Zero keeps the net/http default of no timeout.
	Timeout   time.Duration
	UserAgent string
	// ProxyURL routes every request through an HTTP proxy when set.
	ProxyURL string
	// WrapTransport decorates the transport, e.g. with metrics instrumentation.
	WrapTransport func(http.RoundTripper) http.RoundTripper
}

// HTTPFetcher is a plain GET fetcher for pages and images.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

var _ repository.Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a fetcher from opts.
func NewHTTPFetcher(opts Options) (*HTTPFetcher, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.ProxyURL != "" {
		proxy, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", opts.ProxyURL, err)
		}
		transport.Proxy = http.ProxyURL(proxy)
	}

	var rt http.RoundTripper = transport
	if opts.WrapTransport != nil {
		rt = opts.WrapTransport(rt)
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: rt,
		},
		userAgent: opts.UserAgent,
	}, nil
}

// Fetch performs a GET and returns the body of a 200 response.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", repository.ErrPageUnreachable, rawURL, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", repository.ErrPageUnreachable, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &repository.StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from %s: %w", rawURL, err)
	}
	return body, nil
}

// Close releases idle connections.
func (f *HTTPFetcher) Close() {
	f.client.CloseIdleConnections()
}
