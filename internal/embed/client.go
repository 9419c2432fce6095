// Package embed talks to the external image-embedding inference service.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Client produces a fixed-length vector for a decoded RGB raster. The
// service contract is deterministic: identical pixels yield identical
// vectors. A failure here is fatal for the record being processed, not for
// the crawl.
type Client interface {
	Embed(ctx context.Context, img image.Image) ([]float32, error)
}

// HTTPClient implements Client against a CLIP-style inference endpoint:
// POST {base}/embed with a PNG body, JSON {"embedding":[...]} back.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	attempts   int
}

// NewHTTPClient builds a client. rps bounds the request rate to the
// inference service; zero or negative disables the limiter.
func NewHTTPClient(baseURL string, timeout time.Duration, rps float64) *HTTPClient {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		limiter:    limiter,
		attempts:   3,
	}
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed encodes the raster as PNG and posts it to the service, retrying
// transient failures with a linear pause.
func (c *HTTPClient) Embed(ctx context.Context, img image.Image) ([]float32, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode raster: %w", err)
	}
	payload := buf.Bytes()

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		vec, err := c.post(ctx, payload)
		if err == nil {
			return vec, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt*500) * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("embedding service: %w", lastErr)
}

func (c *HTTPClient) post(ctx context.Context, payload []byte) ([]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, errors.New("empty embedding in response")
	}
	return parsed.Embedding, nil
}
