package channel

import (
	"context"
	"time"
)

// Config holds the tracked channel pair. A zero channel id means "not
// configured"; the reconciler then treats the side as unknown.
type Config struct {
	PublicChannelID   int64     `json:"public_channel_id"`
	PrivateChannelID  int64     `json:"private_channel_id"`
	PublicInviteLink  string    `json:"public_invite_link,omitempty"`
	PrivateInviteLink string    `json:"private_invite_link,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// IsPublic reports whether chatID is the configured public channel.
func (c *Config) IsPublic(chatID int64) bool {
	return c != nil && c.PublicChannelID != 0 && c.PublicChannelID == chatID
}

// IsPrivate reports whether chatID is the configured private channel.
func (c *Config) IsPrivate(chatID int64) bool {
	return c != nil && c.PrivateChannelID != 0 && c.PrivateChannelID == chatID
}

// ConfigProvider hands the current channel configuration to consumers that
// must not care where it is stored or cached.
type ConfigProvider interface {
	Current(ctx context.Context) (*Config, error)
}
