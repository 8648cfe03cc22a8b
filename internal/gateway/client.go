// Package gateway is the HTTP client for the external WhatsApp bridge
// process. The bridge exposes /status, /qr and /schedule; every call is a
// single best-effort attempt with a short fixed timeout.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const requestTimeout = 8 * time.Second

type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
		logger:  logger,
	}
}

// Status proxies the bridge connection status. A failed or slow bridge is
// reported as disconnected rather than an error to the caller.
func (c *Client) Status(ctx context.Context) map[string]any {
	payload, err := c.get(ctx, "/status")
	if err != nil {
		c.logger.Warn("WhatsApp bridge status unavailable", zap.Error(err))
		return map[string]any{"connected": false, "error": "whatsapp service unavailable"}
	}
	return payload
}

// QR proxies the bridge pairing information.
func (c *Client) QR(ctx context.Context) map[string]any {
	payload, err := c.get(ctx, "/qr")
	if err != nil {
		c.logger.Warn("WhatsApp bridge QR unavailable", zap.Error(err))
		return map[string]any{"qr": nil, "error": "whatsapp service unavailable"}
	}
	return payload
}

// Send schedules an immediate outbound message through the bridge. One
// attempt, no retries.
func (c *Client) Send(ctx context.Context, phoneNumber, message string) error {
	body, err := json.Marshal(map[string]string{
		"phone_number": phoneNumber,
		"message":      message,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/schedule", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp bridge request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("whatsapp bridge returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whatsapp bridge request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("whatsapp bridge returned status %d", resp.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode bridge response: %w", err)
	}
	return payload, nil
}
