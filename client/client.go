// Package client is the HTTP client for the walletwatch activity service.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brojonat/walletwatch/service/enrich"
	"github.com/brojonat/walletwatch/service/metadata"
)

// ErrNotFound is returned when the server has no such resource.
var ErrNotFound = errors.New("not found")

// Client is the HTTP client for the walletwatch service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// GetTransaction decodes and enriches signature from wallet's perspective.
func (c *Client) GetTransaction(ctx context.Context, signature, wallet string) (*enrich.EnrichedRecord, error) {
	u := fmt.Sprintf("%s/api/v1/transactions/%s?wallet=%s",
		c.baseURL, url.PathEscape(signature), url.QueryEscape(wallet))

	var rec enrich.EnrichedRecord
	if err := c.getJSON(ctx, u, &rec); err != nil {
		return nil, err
	}
	c.logger.Debug("transaction fetched", "signature", signature, "wallet", wallet)
	return &rec, nil
}

// GetToken resolves metadata for mint.
func (c *Client) GetToken(ctx context.Context, mint string) (*metadata.TokenMetadata, error) {
	u := fmt.Sprintf("%s/api/v1/tokens/%s", c.baseURL, url.PathEscape(mint))

	var meta metadata.TokenMetadata
	if err := c.getJSON(ctx, u, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Health returns nil when the server reports healthy.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// Version returns the server's reported version.
func (c *Client) Version(ctx context.Context) (string, error) {
	var v struct {
		Version string `json:"version"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/version", &v); err != nil {
		return "", err
	}
	return v.Version, nil
}

// StreamActivity calls fn for every activity event on the server's SSE
// stream until ctx is done, the stream ends, or fn returns an error. An
// empty wallet streams all wallets.
func (c *Client) StreamActivity(ctx context.Context, wallet string, fn func(*enrich.EnrichedRecord) error) error {
	u := c.baseURL + "/api/v1/stream/activity"
	if wallet != "" {
		u += "/" + url.PathEscape(wallet)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// the shared client's timeout would cut the stream
	streamClient := *c.httpClient
	streamClient.Timeout = 0

	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var event string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if event == "activity" && data.Len() > 0 {
				var rec enrich.EnrichedRecord
				if err := json.Unmarshal([]byte(data.String()), &rec); err != nil {
					c.logger.Warn("failed to decode activity event", "error", err)
				} else if err := fn(&rec); err != nil {
					return err
				}
			}
			event = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream read failed: %w", err)
	}
	return ctx.Err()
}

func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		errResp.Error = fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, errResp.Error)
	}
	return fmt.Errorf("request failed: %s", errResp.Error)
}
