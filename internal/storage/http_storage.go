package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxAssetSize bounds a fetched asset body
const maxAssetSize = 16 << 20

// NewNetworkTransport returns the transport used for outbound calls: asset
// fetches, the offline cache's network path and the vision API.
func NewNetworkTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,

		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		MaxResponseHeaderBytes: 64 << 10,
		ForceAttemptHTTP2:      true,
	}
}

// AssetFetcher downloads app-shell assets into cache entries
type AssetFetcher interface {
	Fetch(ctx context.Context, assetURL string) (*Entry, error)
}

// HTTPAssetFetcher implements AssetFetcher over a RoundTripper
type HTTPAssetFetcher struct {
	client *http.Client
}

// NewHTTPAssetFetcher creates a fetcher. A nil transport uses NewNetworkTransport.
func NewHTTPAssetFetcher(transport http.RoundTripper) *HTTPAssetFetcher {
	if transport == nil {
		transport = NewNetworkTransport()
	}
	return &HTTPAssetFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,

			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		},
	}
}

// Fetch performs a single GET. Anything but 200 is an error; there are no retries.
func (h *HTTPAssetFetcher) Fetch(ctx context.Context, assetURL string) (*Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("User-Agent", "go-vision-lens/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", assetURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status code %d", assetURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", assetURL, err)
	}
	if len(body) > maxAssetSize {
		return nil, fmt.Errorf("fetch %s: body exceeds %d bytes", assetURL, maxAssetSize)
	}

	return &Entry{
		URL:      assetURL,
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     body,
		StoredAt: time.Now().UTC(),
	}, nil
}
