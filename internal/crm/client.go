// Package crm is the client for the external CRM's contact-note API.
// Note writes are a side channel: callers log failures and never let them
// fail the primary operation.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/storehook/webhook-svc/internal/config"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a CRM API client with a bearer token
func NewClient(cfg *config.CRMConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type noteRequest struct {
	Body string `json:"body"`
}

// AppendContactNote appends a free-text note to a CRM contact record
func (c *Client) AppendContactNote(ctx context.Context, contactID, note string) error {
	if contactID == "" {
		return fmt.Errorf("contact id is required")
	}

	body, err := json.Marshal(noteRequest{Body: note})
	if err != nil {
		return fmt.Errorf("failed to marshal note: %w", err)
	}

	url := fmt.Sprintf("%s/contacts/%s/notes", c.baseURL, contactID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create CRM request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("CRM request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("CRM note request returned HTTP %d: %s", resp.StatusCode, string(snippet))
	}

	return nil
}
