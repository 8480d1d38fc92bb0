// Package fetch retrieves key material over HTTP.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ZebulonRouseFrantzich/keywarden/internal/keyring"
)

const (
	// DefaultUserAgent is the User-Agent header sent with requests.
	DefaultUserAgent = "keywarden/1.0"
	// MaxMaterialSize caps how much key material a response may carry.
	// Exported keys are a few kilobytes; anything near this limit is
	// not a key.
	MaxMaterialSize = 1 << 20
)

// Client fetches key material with a single GET attempt. No retries:
// any failure is terminal for the reconciliation that requested it.
type Client struct {
	http      *http.Client
	userAgent string
}

// NewClient creates a fetcher. A zero timeout means no timeout, which
// is the core default; hosts that want to bound a hang set one.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		http: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Allow up to 10 redirects
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		userAgent: DefaultUserAgent,
	}
}

// Fetch performs one GET of the URL and returns the body as key
// material. Fails when the URL is unset, unreachable, or the response
// is not a plain success.
func (c *Client) Fetch(ctx context.Context, url string) (keyring.Material, error) {
	if url == "" {
		return nil, fmt.Errorf("no source url provided")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxMaterialSize+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if len(body) > MaxMaterialSize {
		return nil, fmt.Errorf("response exceeds %d bytes, not key material", MaxMaterialSize)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response body")
	}

	return keyring.Material(body), nil
}
