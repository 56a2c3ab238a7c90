package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioOpts holds configuration for the SMS notifier.
type TwilioOpts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	ToNumber   string
}

// TwilioOption configures the SMS notifier.
type TwilioOption func(*TwilioOpts)

// WithTwilioCredentials sets the Twilio account credentials.
func WithTwilioCredentials(accountSID, authToken string) TwilioOption {
	return func(o *TwilioOpts) {
		o.AccountSID = accountSID
		o.AuthToken = authToken
	}
}

// WithTwilioNumbers sets the sending number and the operator's number.
func WithTwilioNumbers(from, to string) TwilioOption {
	return func(o *TwilioOpts) {
		o.FromNumber = from
		o.ToNumber = to
	}
}

// TwilioNotifier delivers alerts as SMS to the operator's phone. It is the
// out-of-band channel for deployments without a KakaoTalk integration.
type TwilioNotifier struct {
	client *twilio.RestClient
	from   string
	to     string
	now    func() time.Time
}

// NewTwilioNotifier creates an SMS notifier. Returns a disabled notifier
// when credentials or numbers are missing.
func NewTwilioNotifier(opts ...TwilioOption) *TwilioNotifier {
	var cfg TwilioOpts
	for _, opt := range opts {
		opt(&cfg)
	}

	n := &TwilioNotifier{from: cfg.FromNumber, to: cfg.ToNumber, now: time.Now}
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.FromNumber == "" || cfg.ToNumber == "" {
		slog.Warn("notify.NewTwilioNotifier: incomplete configuration, SMS alerts disabled")
		return n
	}
	n.client = twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return n
}

// Enabled reports whether the notifier can deliver.
func (n *TwilioNotifier) Enabled() bool {
	return n.client != nil
}

// SendConsultationAlert delivers a chat-turn alert as SMS.
func (n *TwilioNotifier) SendConsultationAlert(ctx context.Context, sessionID, userMessage, botResponse string, alertCtx AlertContext) bool {
	if !n.Enabled() {
		return false
	}
	return n.sendSMS(formatConsultationAlert(sessionID, userMessage, botResponse, alertCtx, n.now()))
}

// SendQuoteRequestAlert delivers a quote-request alert as SMS.
func (n *TwilioNotifier) SendQuoteRequestAlert(ctx context.Context, user UserInfo, details QuoteDetails) bool {
	if !n.Enabled() {
		return false
	}
	return n.sendSMS(formatQuoteRequestAlert(user, details, n.now()))
}

func (n *TwilioNotifier) sendSMS(body string) bool {
	params := &twilioapi.CreateMessageParams{}
	params.SetFrom(n.from)
	params.SetTo(n.to)
	params.SetBody(body)

	if _, err := n.client.Api.CreateMessage(params); err != nil {
		slog.Error("TwilioNotifier.sendSMS: delivery failed", "error", err)
		return false
	}
	slog.Debug("TwilioNotifier.sendSMS: alert delivered", "to", n.to)
	return true
}
