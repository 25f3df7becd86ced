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
)

const (
	defaultWebhookTimeout = 10 * time.Second
	maxErrorBodyBytes     = 512
)

// WebhookSink posts Discord-compatible embeds.
type WebhookSink struct {
	URL    string
	Client *http.Client
}

type webhookEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
}

type webhookBody struct {
	Embeds []webhookEmbed `json:"embeds"`
}

func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		URL:    strings.TrimSpace(url),
		Client: &http.Client{Timeout: defaultWebhookTimeout},
	}
}

func (sink *WebhookSink) Emit(ctx context.Context, event Event) error {
	if sink == nil || sink.URL == "" {
		return fmt.Errorf("webhook url not configured")
	}
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	body, err := json.Marshal(webhookBody{Embeds: []webhookEmbed{{
		Title:       event.Title,
		Description: event.Description,
		Color:       event.Color,
		Timestamp:   occurredAt.UTC().Format(time.RFC3339Nano),
	}}})
	if err != nil {
		return fmt.Errorf("encode webhook body: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, sink.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	client := sink.Client
	if client == nil {
		client = http.DefaultClient
	}
	response, err := client.Do(request)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBodyBytes))
		return fmt.Errorf("post webhook: status %d: %s", response.StatusCode, strings.TrimSpace(string(detail)))
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return nil
}
