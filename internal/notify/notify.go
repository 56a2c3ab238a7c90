// Package notify delivers operator alerts for chat turns and quote
// requests. Delivery is strictly best-effort: every sender reports success
// as a boolean and never returns an error, because a failed alert must not
// affect the customer-facing response.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// AlertContext carries metadata attached to a consultation alert.
type AlertContext struct {
	Intent      string
	ProductName string
}

// UserInfo identifies the customer behind a quote request.
type UserInfo struct {
	Name  string
	Phone string
	Email string
}

// QuoteDetails summarizes what the customer asked for.
type QuoteDetails struct {
	ProductName string
	Quantity    string
	Message     string
}

// Notifier sends operator alerts. Implementations report whether delivery
// succeeded and swallow all transport errors.
type Notifier interface {
	SendConsultationAlert(ctx context.Context, sessionID, userMessage, botResponse string, alertCtx AlertContext) bool
	SendQuoteRequestAlert(ctx context.Context, user UserInfo, details QuoteDetails) bool
}

// NoopNotifier drops every alert. Used when no channel is configured and in
// tests.
type NoopNotifier struct{}

func (NoopNotifier) SendConsultationAlert(context.Context, string, string, string, AlertContext) bool {
	return false
}

func (NoopNotifier) SendQuoteRequestAlert(context.Context, UserInfo, QuoteDetails) bool {
	return false
}

// asyncSendTimeout bounds a fire-and-forget delivery so an unreachable
// channel cannot pile up goroutines.
const asyncSendTimeout = 15 * time.Second

// SendConsultationAlertAsync fires a consultation alert without blocking the
// caller. The alert runs under its own context so it survives the request's
// cancellation.
func SendConsultationAlertAsync(n Notifier, sessionID, userMessage, botResponse string, alertCtx AlertContext) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncSendTimeout)
		defer cancel()
		if !n.SendConsultationAlert(ctx, sessionID, userMessage, botResponse, alertCtx) {
			slog.Debug("notify.SendConsultationAlertAsync: alert not delivered", "sessionID", sessionID)
		}
	}()
}

// SendQuoteRequestAlertAsync fires a quote-request alert without blocking.
func SendQuoteRequestAlertAsync(n Notifier, user UserInfo, details QuoteDetails) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncSendTimeout)
		defer cancel()
		if !n.SendQuoteRequestAlert(ctx, user, details) {
			slog.Debug("notify.SendQuoteRequestAlertAsync: alert not delivered", "customer", user.Name)
		}
	}()
}

const alertTimestampLayout = "2006-01-02 15:04:05"

// formatConsultationAlert renders a chat turn for the operator channel.
func formatConsultationAlert(sessionID, userMessage, botResponse string, alertCtx AlertContext, now time.Time) string {
	intent := alertCtx.Intent
	if intent == "" {
		intent = "알 수 없음"
	}
	product := alertCtx.ProductName
	if product == "" {
		product = "-"
	}

	var b strings.Builder
	b.WriteString("[플레이캣 챗봇 상담]\n\n")
	fmt.Fprintf(&b, "⏰ 시간: %s\n", now.Format(alertTimestampLayout))
	fmt.Fprintf(&b, "📝 세션: %s...\n", truncateRunes(sessionID, 12))
	fmt.Fprintf(&b, "🎯 의도: %s\n", intent)
	fmt.Fprintf(&b, "📦 제품: %s\n\n", product)
	fmt.Fprintf(&b, "👤 고객 문의:\n%s\n\n", ellipsize(userMessage, 200))
	fmt.Fprintf(&b, "🤖 봇 응답:\n%s\n\n", ellipsize(botResponse, 200))
	b.WriteString("---\n💡 전체 대화 내용은 관리자 대시보드에서 확인하세요.")
	return b.String()
}

// formatQuoteRequestAlert renders a quote request for the operator channel.
func formatQuoteRequestAlert(user UserInfo, details QuoteDetails, now time.Time) string {
	var b strings.Builder
	b.WriteString("[플레이캣 견적 요청]\n\n")
	fmt.Fprintf(&b, "⏰ 시간: %s\n\n", now.Format(alertTimestampLayout))
	b.WriteString("👤 고객 정보:\n")
	fmt.Fprintf(&b, "- 이름: %s\n", orDash(user.Name))
	fmt.Fprintf(&b, "- 연락처: %s\n", orDash(user.Phone))
	fmt.Fprintf(&b, "- 이메일: %s\n\n", orDash(user.Email))
	b.WriteString("📦 요청 내용:\n")
	fmt.Fprintf(&b, "- 제품: %s\n", orDash(details.ProductName))
	fmt.Fprintf(&b, "- 수량: %s\n", orDash(details.Quantity))
	fmt.Fprintf(&b, "- 메시지: %s\n\n", truncateRunes(orDash(details.Message), 100))
	b.WriteString("🔗 빠른 응답: https://www.playcat.kr/admin/quotes")
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func ellipsize(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
