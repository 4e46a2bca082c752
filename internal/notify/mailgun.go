package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spec-kit/feedback-service/internal/config"
)

const userAgent = "feedback-service/1.0"

// MailgunTransport posts messages to the Mailgun HTTP API.
type MailgunTransport struct {
	endpoint string
	apiKey   string
	from     string
	client   *http.Client
}

// NewTransport returns a Mailgun transport when credentials are configured
// and a LogTransport otherwise.
func NewTransport(cfg config.NotificationConfig, fallback *LogTransport) Transport {
	if !cfg.MailgunEnabled() {
		return fallback
	}
	return NewMailgunTransport(cfg)
}

// NewMailgunTransport builds the transport from notification settings.
func NewMailgunTransport(cfg config.NotificationConfig) *MailgunTransport {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := strings.TrimRight(cfg.MailgunBaseURL, "/")
	return &MailgunTransport{
		endpoint: fmt.Sprintf("%s/%s/messages", base, cfg.MailgunDomain),
		apiKey:   cfg.MailgunAPIKey,
		from:     cfg.EmailFrom,
		client:   &http.Client{Timeout: timeout},
	}
}

// Deliver sends msg in a single attempt.
func (m *MailgunTransport) Deliver(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("mailgun: empty recipient")
	}
	form := url.Values{}
	form.Set("from", m.from)
	form.Set("to", msg.To)
	form.Set("subject", msg.Subject)
	form.Set("html", msg.HTML)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build mailgun request: %w", err)
	}
	req.SetBasicAuth("api", m.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send mailgun request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mailgun returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
