package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/me/cyclelaunch/pkg/model"
)

const defaultWebhookTimeout = 30 * time.Second

// WebhookNotifier POSTs events as JSON.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a WebhookNotifier. A non-positive timeout uses
// the default.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookNotifier{url: url, client: &http.Client{Timeout: timeout}}
}

// Name returns "webhook".
func (n *WebhookNotifier) Name() string { return "webhook" }

// Notify posts the event. Any non-2xx response is an error.
func (n *WebhookNotifier) Notify(ctx context.Context, event model.NotificationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Cyclelaunch-Experiment", event.Experiment)
	if event.RunID != "" {
		req.Header.Set("X-Cyclelaunch-Run", event.RunID)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", n.url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("post %s: status %d: %s", n.url, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
