package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Result represents the result of one webhook delivery attempt to one
// destination. HTTPStatus is nil when no response was received.
type Result struct {
	HTTPStatus   *int
	LatencyMs    int
	ResponseBody string
	Err          error
}

// Succeeded reports whether the attempt got a 2xx response
func (r *Result) Succeeded() bool {
	return r.Err == nil && r.HTTPStatus != nil && *r.HTTPStatus >= 200 && *r.HTTPStatus < 300
}

// StatusCode returns the HTTP status for logging, 0 if no response
func (r *Result) StatusCode() int {
	if r.HTTPStatus == nil {
		return 0
	}
	return *r.HTTPStatus
}

// Request describes one outbound webhook POST
type Request struct {
	URL       string
	Payload   []byte
	TaskID    string // stable across retries, receivers dedupe on it
	EventType string
	Secret    string // empty = unsigned
}

// Client performs outbound webhook POSTs with a bounded timeout and a cap
// on how much of the response body is retained
type Client struct {
	http    *http.Client
	maxBody int
	logger  *zap.Logger
}

// NewClient creates a delivery client
func NewClient(timeoutSeconds, maxResponseBodySize int, logger *zap.Logger) *Client {
	return &Client{
		http: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
		maxBody: maxResponseBodySize,
		logger:  logger,
	}
}

// Deliver performs the HTTP POST described by req and returns the outcome.
// A transport error or timeout is reported in Result.Err; a non-2xx response
// is reported through Result.HTTPStatus. Never returns nil.
func (c *Client) Deliver(ctx context.Context, req *Request) *Result {
	result := &Result{}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Payload))
	if err != nil {
		result.Err = fmt.Errorf("failed to create HTTP request: %w", err)
		return result
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Webhook-ID", req.TaskID)
	httpReq.Header.Set("X-Event-Type", req.EventType)

	if req.Secret != "" {
		signature, err := GenerateHMACSignature(req.Payload, req.Secret)
		if err != nil {
			result.Err = fmt.Errorf("failed to generate HMAC signature: %w", err)
			return result
		}
		httpReq.Header.Set("X-Webhook-Signature", signature)
	}

	startTime := time.Now()

	resp, err := c.http.Do(httpReq)
	if err != nil {
		result.LatencyMs = int(time.Since(startTime).Milliseconds())
		result.Err = fmt.Errorf("HTTP request failed: %w", err)
		return result
	}
	defer resp.Body.Close()

	result.LatencyMs = int(time.Since(startTime).Milliseconds())
	result.HTTPStatus = &resp.StatusCode

	// Read response body, truncated to maxBody
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, int64(c.maxBody)))
	if readErr != nil {
		c.logger.Warn("Failed to read response body",
			zap.Error(readErr),
			zap.String("url", req.URL),
		)
	}
	result.ResponseBody = string(body)

	return result
}
