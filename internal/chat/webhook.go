package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spec-kit/fulfillment-service/internal/config"
)

// WebhookMessenger delivers messages by posting them to the chat gateway
// webhook configured for the storefront.
type WebhookMessenger struct {
	url    string
	client *http.Client
}

// NewWebhookMessenger builds the messenger from notification config.
func NewWebhookMessenger(cfg config.NotificationConfig) *WebhookMessenger {
	return &WebhookMessenger{
		url:    cfg.WebhookURL,
		client: &http.Client{Timeout: cfg.Timeout()},
	}
}

type webhookPayload struct {
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	Body       string `json:"body"`
}

// SendDirect delivers a direct message to a member.
func (m *WebhookMessenger) SendDirect(ctx context.Context, memberID, body string) error {
	return m.post(ctx, webhookPayload{TargetType: "dm", TargetID: memberID, Body: body})
}

// SendChannel posts into a shared channel.
func (m *WebhookMessenger) SendChannel(ctx context.Context, channelID, body string) error {
	return m.post(ctx, webhookPayload{TargetType: "channel", TargetID: channelID, Body: body})
}

func (m *WebhookMessenger) post(ctx context.Context, payload webhookPayload) error {
	if m.url == "" {
		return fmt.Errorf("webhook url not configured")
	}
	if payload.TargetID == "" {
		return fmt.Errorf("missing delivery target")
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook delivery failed: status %d", resp.StatusCode)
	}
	return nil
}
