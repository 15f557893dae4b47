// Package notifications posts operational session alerts to a Discord webhook.
package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/lukasbauer/scribe/internal/eventlog"
)

// Discord is a simple Discord webhook notifier. It implements
// session.EventRecorder and only reacts to session_ended and summary_failed.
// Messages never include transcript or summary text.
type Discord struct {
	webhookURL string
	logger     *log.Logger
	client     *http.Client
	wg         sync.WaitGroup
}

// NewDiscord creates a new Discord notifier. If webhookURL is empty,
// notifications are silently skipped.
func NewDiscord(webhookURL string, logger *log.Logger) *Discord {
	return &Discord{
		webhookURL: webhookURL,
		logger:     logger,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled returns true if the webhook is configured.
func (d *Discord) Enabled() bool {
	return d != nil && d.webhookURL != ""
}

// discordMessage is the payload for Discord webhook.
type discordMessage struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds,omitempty"`
}

type discordEmbed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// LogAsync turns selected session events into webhook messages.
func (d *Discord) LogAsync(sessionID string, eventType eventlog.EventType, data map[string]any) {
	if !d.Enabled() {
		return
	}

	switch eventType {
	case eventlog.EventSessionEnded:
		d.send(discordMessage{
			Embeds: []discordEmbed{{
				Title:       "Session ended",
				Description: fmt.Sprintf("Session `%s` was summarized and closed.", sessionID),
				Color:       0x00FF00, // Green
				Fields: []embedField{
					{Name: "Parts", Value: field(data, "part_count"), Inline: true},
					{Name: "Duration (ms)", Value: field(data, "duration_ms"), Inline: true},
					{Name: "Est. cost (cents)", Value: field(data, "est_cost_cents"), Inline: true},
				},
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			}},
		})
	case eventlog.EventSummaryFailed:
		d.send(discordMessage{
			Content: "@here",
			Embeds: []discordEmbed{{
				Title:       "Summary failed",
				Description: fmt.Sprintf("Summarization failed for session `%s`. The session is still active.", sessionID),
				Color:       0xFF0000, // Red
				Fields: []embedField{
					{Name: "Error", Value: field(data, "error")},
				},
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			}},
		})
	}
}

// Flush waits for pending webhook posts.
func (d *Discord) Flush() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

// send posts a message to Discord webhook asynchronously.
// Errors are logged but don't affect caller.
func (d *Discord) send(msg discordMessage) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		body, err := json.Marshal(msg)
		if err != nil {
			d.logger.Printf("discord: failed to marshal message: %v", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
		if err != nil {
			d.logger.Printf("discord: failed to create request: %v", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := d.client.Do(req)
		if err != nil {
			d.logger.Printf("discord: failed to send webhook: %v", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			d.logger.Printf("discord: webhook returned status %d", resp.StatusCode)
		}
	}()
}

func field(data map[string]any, key string) string {
	v, ok := data[key]
	if !ok {
		return "-"
	}
	return fmt.Sprint(v)
}
