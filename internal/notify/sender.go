package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/graaaaa/anatomydps/internal/config"
)

// SendResult is how one webhook post ended.
type SendResult int

const (
	// SendOK means Discord created the message.
	SendOK SendResult = iota
	// SendRetryable means the post may succeed later: rate limits, 5xx,
	// network failures.
	SendRetryable
	// SendFatal means the webhook is unusable: deleted, malformed or
	// rejected. Notifications stop.
	SendFatal
)

// Sender posts a payload to the webhook.
type Sender interface {
	// Send returns the result and, for rate limits, how long Discord asked
	// the client to wait.
	Send(ctx context.Context, payload DiscordPayload) (SendResult, time.Duration)
}

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 4 << 10

var (
	errEmptyWebhook  = errors.New("webhook url not configured")
	errWebhookScheme = errors.New("webhook url must be http or https")
)

// DiscordSender posts summaries to a Discord webhook.
type DiscordSender struct {
	webhook config.Secret
	client  *http.Client
	logger  *slog.Logger
}

// SenderOption configures a DiscordSender.
type SenderOption func(*DiscordSender)

// WithHTTPClient sets the client used for posts.
func WithHTTPClient(client *http.Client) SenderOption {
	return func(s *DiscordSender) {
		if client != nil {
			s.client = client
		}
	}
}

// WithSenderLogger sets the logger.
func WithSenderLogger(logger *slog.Logger) SenderOption {
	return func(s *DiscordSender) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewDiscordSender returns a sender for webhook. The URL embeds the webhook
// token, so it is only ever logged as a Secret.
func NewDiscordSender(webhook config.Secret, opts ...SenderOption) *DiscordSender {
	s := &DiscordSender{
		webhook: webhook,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send implements Sender. The post asks Discord to wait for the message to
// be created, so SendOK means it exists in the channel.
func (s *DiscordSender) Send(ctx context.Context, payload DiscordPayload) (SendResult, time.Duration) {
	target, err := waitURL(s.webhook.Value())
	if err != nil {
		s.logger.Error("discord webhook url unusable", "webhook_url", s.webhook, "error", err)
		return SendFatal, 0
	}

	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("encode discord payload", "error", err)
		return SendFatal, 0
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		s.logger.Error("build discord request", "webhook_url", s.webhook, "error", err)
		return SendFatal, 0
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("discord post failed", "error", err)
		return SendRetryable, 0
	}
	defer resp.Body.Close()
	errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	_, _ = io.Copy(io.Discard, resp.Body)

	status := resp.StatusCode
	switch {
	case status >= 200 && status < 300:
		s.logger.Debug("discord summary posted", "status", status, "embeds", len(payload.Embeds))
		return SendOK, 0
	case status == http.StatusTooManyRequests:
		wait := rateLimitWait(resp.Header, errBody)
		s.logger.Warn("discord rate limited", "retry_after", wait)
		return SendRetryable, wait
	case status >= 500:
		s.logger.Warn("discord unavailable", "status", status)
		return SendRetryable, 0
	default:
		// 404 is a deleted webhook, 401 a revoked token, 400 a payload
		// Discord will never accept.
		s.logger.Error("discord rejected summary",
			"status", status,
			"webhook_url", s.webhook,
			"body", string(errBody),
		)
		return SendFatal, 0
	}
}

// waitURL adds wait=true to the webhook URL.
func waitURL(raw string) (string, error) {
	if raw == "" {
		return "", errEmptyWebhook
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", errWebhookScheme
	}
	q := u.Query()
	q.Set("wait", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// rateLimitWait reads how long Discord wants the client to back off. The
// Retry-After header and the retry_after body field both carry seconds,
// possibly fractional; the longer one wins.
func rateLimitWait(h http.Header, body []byte) time.Duration {
	wait := seconds(h.Get("Retry-After"))
	var limited struct {
		RetryAfter float64 `json:"retry_after"`
		Global     bool    `json:"global"`
	}
	if len(body) > 0 && json.Unmarshal(body, &limited) == nil {
		if d := time.Duration(limited.RetryAfter * float64(time.Second)); d > wait {
			wait = d
		}
	}
	return wait
}

func seconds(v string) time.Duration {
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}
