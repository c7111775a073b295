package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/surajs41/RideEasy-Rental/internal/models"
)

type DiscordWebhookField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type DiscordEmbed struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Color       int                   `json:"color"`
	Fields      []DiscordWebhookField `json:"fields"`
	Footer      *DiscordFooter        `json:"footer,omitempty"`
	Timestamp   string                `json:"timestamp"`
}

type DiscordFooter struct {
	Text string `json:"text"`
}

type DiscordWebhookRequest struct {
	Username string         `json:"username"`
	Embeds   []DiscordEmbed `json:"embeds"`
}

type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type SlackAttachment struct {
	Color     string       `json:"color"`
	Title     string       `json:"title"`
	Text      string       `json:"text"`
	Fields    []SlackField `json:"fields"`
	Footer    string       `json:"footer"`
	Timestamp int64        `json:"ts"`
}

type SlackWebhookRequest struct {
	Username    string            `json:"username"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Text        string            `json:"text"`
	Attachments []SlackAttachment `json:"attachments"`
}

const (
	ColorBlue  = 3447003  // #3498DB - info
	ColorGreen = 65280    // #00FF00 - approved
	ColorRed   = 16711680 // #FF0000 - rejected

	Username = "RideEasy Admin"
)

// WebhookFanout mirrors admin-pool notifications into the ops chat so
// pending bookings are seen without the console open. Other audiences are
// ignored.
type WebhookFanout struct {
	DiscordURL string
	SlackURL   string
	Client     *http.Client
}

func NewWebhookFanout(discordURL, slackURL string) *WebhookFanout {
	return &WebhookFanout{
		DiscordURL: discordURL,
		SlackURL:   slackURL,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookFanout) Deliver(ctx context.Context, n models.Notification) error {
	if n.Audience != models.AdminAudience {
		return nil
	}

	if w.DiscordURL != "" {
		if err := w.post(ctx, w.DiscordURL, discordPayload(n)); err != nil {
			return fmt.Errorf("discord: %w", err)
		}
	}

	if w.SlackURL != "" {
		if err := w.post(ctx, w.SlackURL, slackPayload(n)); err != nil {
			return fmt.Errorf("slack: %w", err)
		}
	}

	return nil
}

func discordPayload(n models.Notification) DiscordWebhookRequest {
	color := ColorBlue
	switch n.Severity {
	case models.SeverityApproved:
		color = ColorGreen
	case models.SeverityRejected:
		color = ColorRed
	}

	fields := []DiscordWebhookField{
		{Name: "Kind", Value: string(n.Kind), Inline: true},
		{Name: "Severity", Value: string(n.Severity), Inline: true},
	}
	if n.CausalBookingID != nil {
		fields = append(fields, DiscordWebhookField{Name: "Booking", Value: *n.CausalBookingID, Inline: false})
	}

	return DiscordWebhookRequest{
		Username: Username,
		Embeds: []DiscordEmbed{
			{
				Title:       "🚲 **" + string(n.Kind) + " notification**",
				Description: n.Message,
				Color:       color,
				Fields:      fields,
				Footer:      &DiscordFooter{Text: "Notification " + n.ID},
				Timestamp:   n.CreatedAt.Format(time.RFC3339),
			},
		},
	}
}

func slackPayload(n models.Notification) SlackWebhookRequest {
	color := "#3498DB"
	switch n.Severity {
	case models.SeverityApproved:
		color = "good"
	case models.SeverityRejected:
		color = "danger"
	}

	fields := []SlackField{
		{Title: "Kind", Value: string(n.Kind), Short: true},
		{Title: "Severity", Value: string(n.Severity), Short: true},
	}
	if n.CausalBookingID != nil {
		fields = append(fields, SlackField{Title: "Booking", Value: *n.CausalBookingID, Short: false})
	}

	return SlackWebhookRequest{
		Username:  Username,
		IconEmoji: ":bike:",
		Text:      n.Message,
		Attachments: []SlackAttachment{
			{
				Color:     color,
				Title:     string(n.Kind) + " notification",
				Text:      n.Message,
				Fields:    fields,
				Footer:    "Notification " + n.ID,
				Timestamp: n.CreatedAt.Unix(),
			},
		},
	}
}

func (w *WebhookFanout) post(ctx context.Context, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
