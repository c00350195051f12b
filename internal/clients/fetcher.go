/**
 * Source document fetcher.
 *
 * Downloads the raw bytes of a document from its source URL. Transient
 * failures are retried with backoff; the pipeline contains whatever
 * error survives the retries at the document boundary.
 */

package clients

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/docfold/blockparse-worker/internal/logging"
)

const (
	fetchMaxAttempts = 3
	fetchBaseBackoff = 2 * time.Second
	// fetchMaxBytes caps downloads at 512 MiB; anything larger is not a
	// document we can usefully parse
	fetchMaxBytes = 512 << 20
)

// HTTPFetcher downloads source documents over HTTP
type HTTPFetcher struct {
	httpClient *http.Client
	logger     *logging.Logger
}

// NewHTTPFetcher creates a fetcher with sane timeouts
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logging.NewLogger("HTTPFetcher"),
	}
}

// Fetch downloads the document at the given URL, retrying transient
// failures a few times before giving up
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("document URL is empty")
	}

	var lastErr error
	for attempt := 1; attempt <= fetchMaxAttempts; attempt++ {
		if attempt > 1 {
			backoff := fetchBaseBackoff * time.Duration(1<<(attempt-2))
			f.logger.Warn("Retrying download", "url", url, "attempt", attempt, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		data, retryable, err := f.fetchOnce(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}

	return nil, fmt.Errorf("failed to download %s: %w", url, lastErr)
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to read
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("server returned status %d", resp.StatusCode)
	default:
		io.Copy(io.Discard, resp.Body)
		return nil, false, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, fetchMaxBytes+1))
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(data) > fetchMaxBytes {
		return nil, false, fmt.Errorf("document exceeds %d byte limit", fetchMaxBytes)
	}

	return data, false, nil
}
