package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var (
	ErrGatewayNotConfigured = errors.New("notify: sms gateway base url not configured")
	ErrRejected             = errors.New("notify: sms rejected by gateway")
	ErrEmptyRecipient       = errors.New("notify: empty recipient")
)

const DefaultSMSTimeout = 10 * time.Second

type SMSConfig struct {
	BaseURL string
	APIKey  string
	Sender  string
	Timeout time.Duration
}

// SMSGateway posts messages to an HTTP JSON SMS provider:
//
//	POST {base}/messages {"to", "from", "text"}  ->  {"id", "status"}
//
// A reply whose status is neither "queued" nor "sent" is a rejection.
type SMSGateway struct {
	client *resty.Client
	sender string
}

func NewSMSGateway(cfg SMSConfig) (*SMSGateway, error) {
	if cfg.BaseURL == "" {
		return nil, ErrGatewayNotConfigured
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSMSTimeout
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &SMSGateway{client: client, sender: cfg.Sender}, nil
}

func (g *SMSGateway) Send(ctx context.Context, to, text string) error {
	if to == "" {
		return ErrEmptyRecipient
	}
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"to": to, "from": g.sender, "text": text}).
		Post("/messages")
	if err != nil {
		return fmt.Errorf("notify: send sms: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("notify: send sms: gateway status %d: %s",
			resp.StatusCode(), gjson.Get(resp.String(), "error").String())
	}

	switch status := gjson.Get(resp.String(), "status").String(); status {
	case "queued", "sent":
		return nil
	default:
		return fmt.Errorf("%w: status %q", ErrRejected, status)
	}
}

// LogSender writes texts to the log instead of sending them. It stands in
// for the gateway when no base URL is configured.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger.Named("sms")}
}

func (s *LogSender) Send(_ context.Context, to, text string) error {
	if to == "" {
		return ErrEmptyRecipient
	}
	s.logger.Info("sms", zap.String("to", to), zap.String("text", text))
	return nil
}
