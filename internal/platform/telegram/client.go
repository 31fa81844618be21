package telegram

import (
	"encoding/json"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// Client wraps the Bot API calls this service needs. Everything else the
// library offers (polling, message sending) stays unused: the service only
// mints invite links, reads channel facts, and manages its webhook.
type Client struct {
	api *tgbotapi.BotAPI
	log *logrus.Logger
}

// WebhookStatus is the subset of getWebhookInfo surfaced by the admin API.
type WebhookStatus struct {
	URL                string   `json:"url"`
	PendingUpdateCount int      `json:"pending_update_count"`
	LastErrorDate      int      `json:"last_error_date,omitempty"`
	LastErrorMessage   string   `json:"last_error_message,omitempty"`
	MaxConnections     int      `json:"max_connections,omitempty"`
	AllowedUpdates     []string `json:"allowed_updates,omitempty"`
}

// New authenticates the bot token against the Bot API.
func New(token string, log *logrus.Logger) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	log.WithField("bot", api.Self.UserName).Info("authorized on telegram")
	return &Client{api: api, log: log}, nil
}

// CreateInviteLink asks Telegram for a fresh named invite link on the given
// chat. memberLimit 0 means unlimited; 1 makes the link single use.
func (c *Client) CreateInviteLink(chatID int64, name string, memberLimit int) (string, error) {
	cfg := tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig:  tgbotapi.ChatConfig{ChatID: chatID},
		Name:        name,
		MemberLimit: memberLimit,
	}
	resp, err := c.api.Request(cfg)
	if err != nil {
		return "", fmt.Errorf("createChatInviteLink: %w", err)
	}

	var invite tgbotapi.ChatInviteLink
	if err := json.Unmarshal(resp.Result, &invite); err != nil {
		return "", fmt.Errorf("decode invite link response: %w", err)
	}
	if invite.InviteLink == "" {
		return "", fmt.Errorf("telegram returned an empty invite link")
	}
	return invite.InviteLink, nil
}

// MemberCount returns the live member count of a chat.
func (c *Client) MemberCount(chatID int64) (int, error) {
	count, err := c.api.GetChatMembersCount(tgbotapi.ChatMemberCountConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return 0, fmt.Errorf("getChatMemberCount: %w", err)
	}
	return count, nil
}

// ChatTitle returns the display title of a chat.
func (c *Client) ChatTitle(chatID int64) (string, error) {
	chat, err := c.api.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return "", fmt.Errorf("getChat: %w", err)
	}
	return chat.Title, nil
}

// SetWebhook registers url as the bot's webhook target, restricted to the
// chat member update types. The request is built by hand because the typed
// config in the library predates the secret_token parameter.
func (c *Client) SetWebhook(url, secret string) error {
	params := tgbotapi.Params{}
	params.AddNonEmpty("url", url)
	params.AddNonEmpty("secret_token", secret)
	params.AddBool("drop_pending_updates", true)
	if err := params.AddInterface("allowed_updates", []string{"chat_member", "my_chat_member"}); err != nil {
		return err
	}
	if _, err := c.api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("setWebhook: %w", err)
	}
	return nil
}

// DeleteWebhook removes the webhook registration.
func (c *Client) DeleteWebhook() error {
	if _, err := c.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("deleteWebhook: %w", err)
	}
	return nil
}

// WebhookInfo reports the registration Telegram currently holds.
func (c *Client) WebhookInfo() (*WebhookStatus, error) {
	info, err := c.api.GetWebhookInfo()
	if err != nil {
		return nil, fmt.Errorf("getWebhookInfo: %w", err)
	}
	return &WebhookStatus{
		URL:                info.URL,
		PendingUpdateCount: info.PendingUpdateCount,
		LastErrorDate:      info.LastErrorDate,
		LastErrorMessage:   info.LastErrorMessage,
		MaxConnections:     info.MaxConnections,
		AllowedUpdates:     info.AllowedUpdates,
	}, nil
}

// Ping verifies the token is still valid. Used by the health endpoint.
func (c *Client) Ping() error {
	if _, err := c.api.GetMe(); err != nil {
		return fmt.Errorf("getMe: %w", err)
	}
	return nil
}

// BotUsername returns the authorized bot account name.
func (c *Client) BotUsername() string {
	return c.api.Self.UserName
}
