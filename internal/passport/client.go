package passport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Shivanand-hulikatti/event-admission/internal/model"
	"github.com/Shivanand-hulikatti/event-admission/internal/repository"
)

// Client calls a remote passport service's internal check-in hook.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the passport service at baseURL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// NotifyCheckIn asks the passport service to award the badge for eventID.
func (c *Client) NotifyCheckIn(ctx context.Context, participantID, eventID string) error {
	body, err := json.Marshal(model.BadgeRequest{ParticipantID: participantID, EventID: eventID})
	if err != nil {
		return fmt.Errorf("marshal badge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/passport/internal/check-in", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build badge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: post badge request: %w", repository.ErrTransient, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return repository.ErrEventNotFound
	case resp.StatusCode == http.StatusBadRequest:
		return repository.ErrInvalidInput
	default:
		return fmt.Errorf("%w: badge request: unexpected status %d", repository.ErrTransient, resp.StatusCode)
	}
}
