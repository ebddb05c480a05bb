package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// webhookPayload is the JSON body posted for every alert.
type webhookPayload struct {
	Service string     `json:"service"`
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	Ticker  string     `json:"ticker,omitempty"`
	SentAt  time.Time  `json:"ts"`
}

// WebhookNotifier posts alerts as JSON to an HTTP endpoint.
// Any 2xx response is success; otherwise the status and the start of the
// response body are returned in the error.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier for url.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(webhookPayload{
		Service: "signalbench",
		Level:   alert.Level,
		Title:   alert.Title,
		Message: alert.Message,
		Ticker:  alert.Ticker,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("webhook: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	log.Printf("[webhook] sent %s alert for %s: %s", alert.Level, alert.Ticker, alert.Title)
	return nil
}
