package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// httpStatusError is returned for non-2xx responses.
type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// jsonClient is a small GET-and-decode helper with a short retry on 429 and 5xx.
type jsonClient struct {
	c        *http.Client
	attempts int
	backoff  time.Duration
}

func newJSONClient(c *http.Client) *jsonClient {
	if c == nil {
		c = &http.Client{Timeout: 10 * time.Second}
	}
	return &jsonClient{c: c, attempts: 3, backoff: 300 * time.Millisecond}
}

func (h *jsonClient) getJSON(ctx context.Context, rawURL string, dst interface{}) error {
	var lastErr error
	for i := 0; i < h.attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(h.backoff * time.Duration(i)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := h.c.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}

		retry := false
		func() {
			defer resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				lastErr = json.NewDecoder(resp.Body).Decode(dst)
				return
			}
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			lastErr = &httpStatusError{StatusCode: resp.StatusCode, Body: string(body)}
			retry = resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		}()
		if lastErr == nil || !retry {
			return lastErr
		}
	}
	return lastErr
}
