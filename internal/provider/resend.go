package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ResendClient sends email through a Resend-compatible HTTP API
type ResendClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewResendClient creates a client for the given API endpoint
func NewResendClient(apiKey, baseURL string) *ResendClient {
	return &ResendClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		// Per-send deadlines come from the caller's context; this is a
		// backstop against a hung connection.
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendError struct {
	Message string `json:"message"`
	Name    string `json:"name"`
}

// Send posts the email to the /emails endpoint
func (c *ResendClient) Send(ctx context.Context, email *Email) error {
	payload := resendRequest{
		From:    email.From,
		To:      []string{email.To},
		Subject: email.Subject,
		HTML:    email.HTMLBody,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Surface the provider's own message when it sends one
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr resendError
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
		return fmt.Errorf("provider rejected send (%d): %s", resp.StatusCode, apiErr.Message)
	}

	return fmt.Errorf("provider rejected send: status %d", resp.StatusCode)
}
