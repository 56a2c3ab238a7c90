package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const kakaoMemoURL = "https://kapi.kakao.com/v2/api/talk/memo/default/send"

// WebhookOpts holds configuration for the webhook notifier.
type WebhookOpts struct {
	KakaoAPIKey       string
	WebhookURL        string
	DiscordWebhookURL string
	HTTPClient        *http.Client
}

// WebhookOption configures the webhook notifier.
type WebhookOption func(*WebhookOpts)

// WithKakaoAPIKey enables delivery through the KakaoTalk memo API.
func WithKakaoAPIKey(key string) WebhookOption {
	return func(o *WebhookOpts) { o.KakaoAPIKey = key }
}

// WithWebhookURL enables delivery to a generic JSON webhook.
func WithWebhookURL(u string) WebhookOption {
	return func(o *WebhookOpts) { o.WebhookURL = u }
}

// WithDiscordWebhookURL enables delivery to a Discord webhook, used as the
// development channel.
func WithDiscordWebhookURL(u string) WebhookOption {
	return func(o *WebhookOpts) { o.DiscordWebhookURL = u }
}

// WithWebhookHTTPClient substitutes the HTTP client, mainly for tests.
func WithWebhookHTTPClient(c *http.Client) WebhookOption {
	return func(o *WebhookOpts) { o.HTTPClient = c }
}

// WebhookNotifier delivers alerts over KakaoTalk or a webhook, preferring
// channels in that order. With no channel configured it is disabled and
// reports every send as failed.
type WebhookNotifier struct {
	kakaoAPIKey       string
	webhookURL        string
	discordWebhookURL string
	httpClient        *http.Client
	now               func() time.Time
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(opts ...WebhookOption) *WebhookNotifier {
	var cfg WebhookOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	n := &WebhookNotifier{
		kakaoAPIKey:       cfg.KakaoAPIKey,
		webhookURL:        cfg.WebhookURL,
		discordWebhookURL: cfg.DiscordWebhookURL,
		httpClient:        cfg.HTTPClient,
		now:               time.Now,
	}
	if !n.Enabled() {
		slog.Warn("notify.NewWebhookNotifier: no delivery channel configured, alerts disabled")
	}
	return n
}

// Enabled reports whether any delivery channel is configured.
func (n *WebhookNotifier) Enabled() bool {
	return n.kakaoAPIKey != "" || n.webhookURL != "" || n.discordWebhookURL != ""
}

// SendConsultationAlert delivers a chat-turn alert to the operator.
func (n *WebhookNotifier) SendConsultationAlert(ctx context.Context, sessionID, userMessage, botResponse string, alertCtx AlertContext) bool {
	if !n.Enabled() {
		return false
	}
	return n.deliver(ctx, formatConsultationAlert(sessionID, userMessage, botResponse, alertCtx, n.now()))
}

// SendQuoteRequestAlert delivers a quote-request alert to the operator.
func (n *WebhookNotifier) SendQuoteRequestAlert(ctx context.Context, user UserInfo, details QuoteDetails) bool {
	if !n.Enabled() {
		return false
	}
	return n.deliver(ctx, formatQuoteRequestAlert(user, details, n.now()))
}

// deliver tries the configured channels in preference order.
func (n *WebhookNotifier) deliver(ctx context.Context, message string) bool {
	switch {
	case n.kakaoAPIKey != "":
		return n.sendViaKakao(ctx, message)
	case n.webhookURL != "":
		return n.sendViaWebhook(ctx, message)
	case n.discordWebhookURL != "":
		return n.sendViaDiscord(ctx, message)
	}
	return false
}

// sendViaKakao posts a self-memo through the KakaoTalk API.
func (n *WebhookNotifier) sendViaKakao(ctx context.Context, message string) bool {
	templateObject, err := json.Marshal(map[string]interface{}{
		"object_type": "text",
		"text":        message,
		"link": map[string]string{
			"web_url":        "https://www.playcat.kr",
			"mobile_web_url": "https://www.playcat.kr",
		},
	})
	if err != nil {
		slog.Error("WebhookNotifier.sendViaKakao: failed to marshal template", "error", err)
		return false
	}

	form := url.Values{}
	form.Set("template_object", string(templateObject))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, kakaoMemoURL, bytes.NewBufferString(form.Encode()))
	if err != nil {
		slog.Error("WebhookNotifier.sendViaKakao: failed to create request", "error", err)
		return false
	}
	req.Header.Set("Authorization", "Bearer "+n.kakaoAPIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return n.post(req, http.StatusOK)
}

// sendViaWebhook posts a JSON payload to the generic operator webhook.
func (n *WebhookNotifier) sendViaWebhook(ctx context.Context, message string) bool {
	payload, err := json.Marshal(map[string]string{
		"text":      message,
		"timestamp": n.now().Format(time.RFC3339),
	})
	if err != nil {
		slog.Error("WebhookNotifier.sendViaWebhook: failed to marshal payload", "error", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		slog.Error("WebhookNotifier.sendViaWebhook: failed to create request", "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	return n.post(req, http.StatusOK, http.StatusCreated, http.StatusNoContent)
}

// sendViaDiscord posts a code-fenced message to the development webhook.
func (n *WebhookNotifier) sendViaDiscord(ctx context.Context, message string) bool {
	payload, err := json.Marshal(map[string]string{
		"content":  fmt.Sprintf("```\n%s\n```", message),
		"username": "플레이캣 챗봇",
	})
	if err != nil {
		slog.Error("WebhookNotifier.sendViaDiscord: failed to marshal payload", "error", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.discordWebhookURL, bytes.NewReader(payload))
	if err != nil {
		slog.Error("WebhookNotifier.sendViaDiscord: failed to create request", "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	return n.post(req, http.StatusOK, http.StatusNoContent)
}

func (n *WebhookNotifier) post(req *http.Request, okStatuses ...int) bool {
	resp, err := n.httpClient.Do(req)
	if err != nil {
		slog.Error("WebhookNotifier.post: delivery failed", "url", req.URL.Host, "error", err)
		return false
	}
	defer resp.Body.Close()

	for _, status := range okStatuses {
		if resp.StatusCode == status {
			slog.Debug("WebhookNotifier.post: alert delivered", "url", req.URL.Host)
			return true
		}
	}
	slog.Error("WebhookNotifier.post: unexpected status", "url", req.URL.Host, "status", resp.StatusCode)
	return false
}
