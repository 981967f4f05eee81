package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPSender posts each message to {baseURL}/api/notifications/{type}.
type HTTPSender struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSender posts to the notification service at baseURL.
func NewHTTPSender(baseURL string, client *http.Client) *HTTPSender {
	return &HTTPSender{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Send posts msg to the endpoint for its type.
func (s *HTTPSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	url := s.baseURL + "/api/notifications/" + string(msg.Type)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", msg.DedupeKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post notification: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Close drops idle keep-alive connections.
func (s *HTTPSender) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
