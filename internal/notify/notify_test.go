package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testAlert() Alert {
	return Alert{
		SafeAddress:     "0x1234567890123456789012345678901234567890",
		Network:         "ethereum",
		TransactionHash: "0xabc",
		AlertType:       AlertSuspicious,
		Description:     "removeOwner - no warnings",
		Nonce:           7,
		IsExecuted:      false,
	}
}

func TestSendWebhookGenericPostsAlertJSON(t *testing.T) {
	var received Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("failed to decode posted body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := NewService("", nil)
	channel := Channel{Kind: "webhook", URL: srv.URL, WebhookType: webhookTypePtr(WebhookGeneric)}

	if err := svc.Send(context.Background(), testAlert(), channel); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if received.TransactionHash != "0xabc" {
		t.Fatalf("expected posted alert transaction hash 0xabc, got %q", received.TransactionHash)
	}
}

func TestSendWebhookDiscordUsesSuspiciousColor(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("failed to decode posted body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := NewService("", nil)
	channel := Channel{Kind: "webhook", URL: srv.URL, WebhookType: webhookTypePtr(WebhookDiscord)}

	if err := svc.Send(context.Background(), testAlert(), channel); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	embeds, ok := received["embeds"].([]any)
	if !ok || len(embeds) != 1 {
		t.Fatalf("expected a single embed, got %v", received["embeds"])
	}
	embed := embeds[0].(map[string]any)
	if embed["color"].(float64) != 0xFF0000 {
		t.Fatalf("expected red color for suspicious alert, got %v", embed["color"])
	}
}

func TestSendTelegramWithoutTokenErrors(t *testing.T) {
	svc := NewService("", nil)
	channel := Channel{Kind: "telegram", ChatID: "123"}

	if err := svc.Send(context.Background(), testAlert(), channel); err == nil {
		t.Fatalf("expected an error when no telegram bot token is configured")
	}
}

func TestSendUnknownChannelKindErrors(t *testing.T) {
	svc := NewService("", nil)
	channel := Channel{Kind: "carrier-pigeon"}

	if err := svc.Send(context.Background(), testAlert(), channel); err == nil {
		t.Fatalf("expected an error for an unknown channel kind")
	}
}

func webhookTypePtr(t WebhookType) *WebhookType { return &t }
