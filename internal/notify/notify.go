// Package notify dispatches deduplicated Safe-transaction alerts to
// operator-configured channels. Formatting is ported per-channel from
// the reference implementation's worker/notifications/mod.rs; outbound
// delivery uses stdlib net/http, matching the teacher's own choice for
// its webhook sends in internal/heuristics/alert_system.go rather than
// a third-party HTTP client.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// AlertType classifies an alert for both formatting and notify gating.
type AlertType string

const (
	AlertSuspicious AlertType = "suspicious"
	AlertManagement AlertType = "management"
	AlertNormal     AlertType = "normal"
)

// WebhookType selects a webhook payload shape.
type WebhookType string

const (
	WebhookDiscord WebhookType = "discord"
	WebhookSlack   WebhookType = "slack"
	WebhookGeneric WebhookType = "generic"
)

// Channel is one operator-configured notification destination.
type Channel struct {
	Kind        string       `json:"kind"` // "telegram" or "webhook"
	ChatID      string       `json:"chatId,omitempty"`
	URL         string       `json:"url,omitempty"`
	WebhookType *WebhookType `json:"webhookType,omitempty"`
}

// Alert is one notifiable event for a monitored Safe.
type Alert struct {
	SafeAddress     string    `json:"safeAddress"`
	Network         string    `json:"network"`
	TransactionHash string    `json:"transactionHash"`
	AlertType       AlertType `json:"alertType"`
	Description     string    `json:"description"`
	Nonce           uint64    `json:"nonce"`
	IsExecuted      bool      `json:"isExecuted"`
}

// Service sends alerts to channels. It holds no per-monitor state —
// each Send call is independent and isolated from its siblings, so a
// failing Telegram delivery never blocks or fails a Discord delivery
// for the same alert (the worker fans these out concurrently; see
// internal/worker).
type Service struct {
	telegramBotToken string
	httpClient       *http.Client
	log              *logrus.Entry
}

// NewService builds a Service. telegramBotToken may be empty if no
// Telegram channel is ever configured; Send returns an error for a
// telegram channel only if one is actually used without a token.
func NewService(telegramBotToken string, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		telegramBotToken: telegramBotToken,
		httpClient:       &http.Client{Timeout: 10 * time.Second},
		log:              log.WithField("component", "notify"),
	}
}

// Send delivers alert to channel, dispatching on its kind.
func (s *Service) Send(ctx context.Context, alert Alert, channel Channel) error {
	switch channel.Kind {
	case "telegram":
		return s.sendTelegram(ctx, alert, channel.ChatID)
	case "webhook":
		webhookType := WebhookGeneric
		if channel.WebhookType != nil {
			webhookType = *channel.WebhookType
		}
		return s.sendWebhook(ctx, alert, channel.URL, webhookType)
	default:
		return fmt.Errorf("notify: unknown channel kind %q", channel.Kind)
	}
}

func safeAppLink(alert Alert) string {
	return fmt.Sprintf(
		"https://app.safe.global/transactions/tx?safe=%s:%s&id=multisig_%s_%s",
		alert.Network, alert.SafeAddress, alert.SafeAddress, alert.TransactionHash,
	)
}

func alertEmoji(t AlertType) string {
	switch t {
	case AlertSuspicious:
		return "⚠️"
	case AlertManagement:
		return "🔧"
	default:
		return "📝"
	}
}

func alertTitle(t AlertType) string {
	switch t {
	case AlertSuspicious:
		return "SUSPICIOUS TRANSACTION"
	case AlertManagement:
		return "Safe Configuration Change"
	default:
		return "New Transaction"
	}
}

func statusText(isExecuted bool, executedWord, pendingWord string) string {
	if isExecuted {
		return executedWord
	}
	return pendingWord
}

func (s *Service) sendTelegram(ctx context.Context, alert Alert, chatID string) error {
	if s.telegramBotToken == "" {
		return fmt.Errorf("notify: telegram bot token not configured")
	}

	message := fmt.Sprintf(
		"%s *%s*\n\n*Network:* %s\n*Safe:* `%s`\n*Description:* %s\n*Nonce:* %d\n*Status:* %s\n\n[View in Safe App](%s)",
		alertEmoji(alert.AlertType),
		alertTitle(alert.AlertType),
		alert.Network,
		alert.SafeAddress,
		alert.Description,
		alert.Nonce,
		statusText(alert.IsExecuted, "✅ Executed", "⏳ Awaiting execution"),
		safeAppLink(alert),
	)

	payload := map[string]any{
		"chat_id":                  chatID,
		"text":                     message,
		"parse_mode":               "Markdown",
		"disable_web_page_preview": true,
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.telegramBotToken)
	return s.post(ctx, url, payload, "telegram", alert)
}

func (s *Service) sendWebhook(ctx context.Context, alert Alert, url string, webhookType WebhookType) error {
	var payload any
	switch webhookType {
	case WebhookDiscord:
		payload = formatDiscordWebhook(alert)
	case WebhookSlack:
		payload = formatSlackWebhook(alert)
	default:
		payload = alert
	}
	return s.post(ctx, url, payload, "webhook", alert)
}

func (s *Service) post(ctx context.Context, url string, payload any, label string, alert Alert) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal %s payload: %w", label, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build %s request: %w", label, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: send %s: %w", label, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notify: %s returned status %d", label, resp.StatusCode)
	}

	s.log.WithFields(logrus.Fields{
		"channel":         label,
		"safeAddress":     alert.SafeAddress,
		"transactionHash": alert.TransactionHash,
	}).Info("notification sent")
	return nil
}

func formatDiscordWebhook(alert Alert) map[string]any {
	color := 0x00FF00
	switch alert.AlertType {
	case AlertSuspicious:
		color = 0xFF0000
	case AlertManagement:
		color = 0xFFA500
	}

	return map[string]any{
		"embeds": []map[string]any{
			{
				"title": fmt.Sprintf("%s %s", alertEmoji(alert.AlertType), alertTitle(alert.AlertType)),
				"color": color,
				"fields": []map[string]any{
					{"name": "Network", "value": alert.Network, "inline": true},
					{"name": "Safe Address", "value": alert.SafeAddress, "inline": true},
					{"name": "Description", "value": alert.Description, "inline": false},
					{"name": "Nonce", "value": fmt.Sprintf("%d", alert.Nonce), "inline": true},
					{"name": "Status", "value": statusText(alert.IsExecuted, "Executed", "Pending"), "inline": true},
				},
				"url": safeAppLink(alert),
			},
		},
	}
}

func formatSlackWebhook(alert Alert) map[string]any {
	emoji := ":memo:"
	switch alert.AlertType {
	case AlertSuspicious:
		emoji = ":warning:"
	case AlertManagement:
		emoji = ":wrench:"
	}

	text := fmt.Sprintf(
		"*%s*\n*Network:* %s\n*Safe:* `%s`\n*Description:* %s\n*Nonce:* %d\n*Status:* %s",
		alertTitle(alert.AlertType),
		alert.Network,
		alert.SafeAddress,
		alert.Description,
		alert.Nonce,
		statusText(alert.IsExecuted, "Executed", "Pending"),
	)

	return map[string]any{
		"text": fmt.Sprintf("%s %s Transaction Alert", emoji, alert.Network),
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]any{"type": "mrkdwn", "text": text},
			},
			{
				"type": "actions",
				"elements": []map[string]any{
					{
						"type": "button",
						"text": map[string]any{"type": "plain_text", "text": "View in Safe App"},
						"url":  safeAppLink(alert),
					},
				},
			},
		},
	}
}
