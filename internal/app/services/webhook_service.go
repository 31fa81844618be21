package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/faeln1/go-telegram-tracker/internal/platform/telegram"
	"github.com/sirupsen/logrus"
)

// webhookPath is where the router mounts the Telegram update receiver.
const webhookPath = "/webhook/telegram"

var ErrBaseURLRequired = errors.New("webhook base url is required")

// WebhookManager registers this service as the bot's webhook target and
// inspects the registration Telegram currently holds.
type WebhookManager interface {
	Setup(ctx context.Context, baseURL string) (string, error)
	Info(ctx context.Context) (*telegram.WebhookStatus, error)
	Remove(ctx context.Context) error
}

type webhookManager struct {
	telegram *telegram.Client
	secret   string
	log      *logrus.Logger
}

// NewWebhookManager wires webhook registration against the Telegram client.
func NewWebhookManager(tg *telegram.Client, secret string, log *logrus.Logger) WebhookManager {
	return &webhookManager{telegram: tg, secret: secret, log: log}
}

func (m *webhookManager) Setup(ctx context.Context, baseURL string) (string, error) {
	if m.telegram == nil {
		return "", ErrTelegramDisabled
	}
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return "", ErrBaseURLRequired
	}
	url := base + webhookPath
	if err := m.telegram.SetWebhook(url, m.secret); err != nil {
		return "", fmt.Errorf("register webhook: %w", err)
	}
	m.log.WithField("url", url).Info("telegram webhook registered")
	return url, nil
}

func (m *webhookManager) Info(ctx context.Context) (*telegram.WebhookStatus, error) {
	if m.telegram == nil {
		return nil, ErrTelegramDisabled
	}
	return m.telegram.WebhookInfo()
}

func (m *webhookManager) Remove(ctx context.Context) error {
	if m.telegram == nil {
		return ErrTelegramDisabled
	}
	if err := m.telegram.DeleteWebhook(); err != nil {
		return fmt.Errorf("remove webhook: %w", err)
	}
	m.log.Info("telegram webhook removed")
	return nil
}
