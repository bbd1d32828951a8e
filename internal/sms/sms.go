// Package sms delivers one-time codes and short notices to farmers' phones.
package sms

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"farmshield/internal/platform/config"
	id "farmshield/pkg/domain"
)

const otpTemplate = "Your Crop Insurance OTP is: %s. Valid for %d minutes. - Fasal Beema"

// LogSender writes messages to the log instead of a gateway. It is the
// default in development and when no API key is configured.
type LogSender struct {
	logger *slog.Logger
	ttl    time.Duration
}

func NewLogSender(logger *slog.Logger, ttl time.Duration) *LogSender {
	return &LogSender{logger: logger, ttl: ttl}
}

func (s *LogSender) Send(ctx context.Context, phone id.Phone, code string) (bool, error) {
	s.logger.InfoContext(ctx, "sms (log mode)",
		"phone", phone.Masked(),
		"message", fmt.Sprintf(otpTemplate, code, int(s.ttl.Minutes())),
	)
	return true, nil
}

func (s *LogSender) SendMessage(ctx context.Context, phone id.Phone, message string) error {
	s.logger.InfoContext(ctx, "sms (log mode)", "phone", phone.Masked(), "message", message)
	return nil
}

// Fast2SMS posts form-encoded messages to the Fast2SMS bulk endpoint.
type Fast2SMS struct {
	client  *http.Client
	baseURL string
	apiKey  string
	route   string
	ttl     time.Duration
	logger  *slog.Logger
}

func NewFast2SMS(cfg config.SMSConfig, ttl time.Duration, logger *slog.Logger) *Fast2SMS {
	return &Fast2SMS{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		route:   cfg.Route,
		ttl:     ttl,
		logger:  logger,
	}
}

// Send reports delivered=false on a non-2xx response so the caller can tell
// the farmer to retry without treating it as a server fault.
func (f *Fast2SMS) Send(ctx context.Context, phone id.Phone, code string) (bool, error) {
	err := f.post(ctx, phone, fmt.Sprintf(otpTemplate, code, int(f.ttl.Minutes())))
	if err != nil {
		f.logger.WarnContext(ctx, "otp sms failed", "phone", phone.Masked(), "error", err)
		return false, nil
	}
	return true, nil
}

func (f *Fast2SMS) SendMessage(ctx context.Context, phone id.Phone, message string) error {
	return f.post(ctx, phone, message)
}

func (f *Fast2SMS) post(ctx context.Context, phone id.Phone, message string) error {
	form := url.Values{
		"route":    {f.route},
		"message":  {message},
		"language": {"english"},
		"flash":    {"0"},
		"numbers":  {string(phone)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("authorization", f.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send sms: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
