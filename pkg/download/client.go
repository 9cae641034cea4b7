// Package download provides the transport layer for fetching catalog
// documents and package files from HTTP sources or local directory trees.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parcel-pkgs/parcel/pkg/errors"
)

const defaultUserAgent = "parcel/1.0"

// Client is the default Fetcher. URLs with an http or https scheme go over
// the network under a fixed client-level timeout with no retries; anything
// else is treated as a local filesystem path, which lets a source URL be an
// absolute directory.
type Client struct {
	client    *http.Client
	userAgent string
}

// NewClient creates a Client with the given request timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		client:    &http.Client{Timeout: timeout},
		userAgent: defaultUserAgent,
	}
}

// FetchBytes downloads the resource at url and returns its content.
func (c *Client) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	if isLocal(url) {
		data, err := os.ReadFile(url)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.Wrapf(errors.ErrNotFound, "local source file %s", url)
			}
			return nil, errors.Wrapf(err, "failed to read local source file %s", url)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create request for %s", url)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrNetwork, "failed to fetch %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned HTTP %d", errors.ErrDownloadFailed, url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrNetwork, "failed to read response from %s: %v", url, err)
	}
	return data, nil
}

func isLocal(url string) bool {
	return !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://")
}

// CacheFileName derives a flat cache file name for a URL so cached downloads
// from different sources cannot collide.
func CacheFileName(url string) string {
	name := strings.TrimPrefix(strings.TrimPrefix(url, "https://"), "http://")
	name = strings.NewReplacer("/", "_", ":", "_", string(filepath.Separator), "_").Replace(name)
	return strings.Trim(name, "_")
}
