// Package engine talks to the remote deal scoring engine.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"deal-analyzer/models"
	"deal-analyzer/utils"
)

const (
	analyzePath = "/deal/analyze"
	healthPath  = "/health"

	maxBodyBytes = 8 << 20
)

// Client issues requests against a configured engine base URL.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *utils.Logger
}

// NewClient creates a Client. A zero timeout leaves requests bounded only by
// the caller's context.
func NewClient(baseURL string, timeout time.Duration, logger *utils.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// BaseURL returns the engine endpoint the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Analyze submits a deal and waits for the full analysis. It makes exactly
// one request; callers decide whether to try again.
func (c *Client) Analyze(ctx context.Context, req models.DealRequest) (*models.DealAnalysis, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("engine: encode request: %w", err)
	}

	c.logger.Debug("[engine] POST %s city=%s price=%.0f", analyzePath, req.City, req.PropertyPrice)
	start := time.Now()

	body, err := c.do(ctx, http.MethodPost, analyzePath, payload)
	if err != nil {
		c.logger.Warn("[engine] Analysis failed after %v: %v", time.Since(start).Round(time.Millisecond), err)
		return nil, err
	}

	var result models.DealAnalysis
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("engine: decode analysis: %w", err)
	}

	c.logger.Info("[engine] Analysis received in %v: score %d (%s)",
		time.Since(start).Round(time.Millisecond), result.InvestmentScore, result.Verdict)
	return &result, nil
}

// Health probes the engine's liveness endpoint.
func (c *Client) Health(ctx context.Context) (*models.HealthStatus, error) {
	body, err := c.do(ctx, http.MethodGet, healthPath, nil)
	if err != nil {
		return nil, err
	}
	var status models.HealthStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("engine: decode health: %w", err)
	}
	return &status, nil
}

// do performs one request and returns the complete body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	url := c.baseURL + path

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("engine: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method, URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil, fmt.Errorf("engine: read body: %w", err)
		}
		body = nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, body)
	}
	return body, nil
}
