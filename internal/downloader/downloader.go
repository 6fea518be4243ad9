// Package downloader fetches a segment's bytes into a scratch file under a
// managed temporary directory.
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/hlscap/retranscoder/internal/platform/httpx"
)

// Downloader streams segment bodies into scratch files.
type Downloader struct {
	client     *http.Client
	userAgent  string
	scratchDir string
	limiter    *rate.Limiter // nil means unpaced
}

// New returns a Downloader that writes scratch files under scratchDir using
// the hardened client from internal/platform/httpx. timeout bounds each
// segment fetch; zero selects a 20s default.
func New(scratchDir, userAgent string, timeout time.Duration) *Downloader {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Downloader{
		client:     httpx.NewClient(timeout),
		userAgent:  userAgent,
		scratchDir: scratchDir,
	}
}

// WithRateLimit paces outbound segment fetches to at most rps requests per
// second with the given burst, so a large sliding window doesn't open
// dozens of simultaneous connections to the upstream origin on cold start.
func (d *Downloader) WithRateLimit(rps rate.Limit, burst int) *Downloader {
	d.limiter = rate.NewLimiter(rps, burst)
	return d
}

// Download fetches url's body into a new temp file inside the scratch
// directory, named "segment-*" plus the stable URI's extension. On
// any failure (transport, non-2xx, truncation) no partial file is left
// behind and a retryable error is returned.
func (d *Downloader) Download(ctx context.Context, url, stableURI string) (scratchPath string, err error) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("downloader: rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("downloader: build request: %w", err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloader: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("downloader: %s: unexpected status %d", url, resp.StatusCode)
	}

	pattern := "segment-*" + filepath.Ext(stableURI)
	f, err := os.CreateTemp(d.scratchDir, pattern)
	if err != nil {
		return "", fmt.Errorf("downloader: create scratch file: %w", err)
	}

	n, copyErr := io.Copy(f, resp.Body)
	closeErr := f.Close()

	if copyErr != nil || closeErr != nil || n == 0 {
		_ = os.Remove(f.Name())
		if copyErr != nil {
			return "", fmt.Errorf("downloader: copy body for %s: %w", url, copyErr)
		}
		if closeErr != nil {
			return "", fmt.Errorf("downloader: close scratch file: %w", closeErr)
		}
		return "", fmt.Errorf("downloader: %s: empty body", url)
	}

	if cl := resp.ContentLength; cl > 0 && n != cl {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("downloader: %s: truncated body, got %d want %d", url, n, cl)
	}

	return f.Name(), nil
}
