package link

import "time"

// ChannelType classifies which configured channel an invite link targets.
type ChannelType string

const (
	ChannelPublic  ChannelType = "public"
	ChannelPrivate ChannelType = "private"
)

// Valid reports whether the value is one of the two known channel types.
func (t ChannelType) Valid() bool {
	return t == ChannelPublic || t == ChannelPrivate
}

// CreateInput carries the request body to generate a tracked invite link.
type CreateInput struct {
	Name        string `json:"name"`
	ChannelType string `json:"channel_type"`
	MemberLimit int    `json:"member_limit,omitempty"`
}

// InviteLink is one tracked invite link. URL is the exact t.me URL returned by
// Telegram and is matched verbatim against join events.
type InviteLink struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	URL         string      `json:"url"`
	ChannelType ChannelType `json:"channel_type"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Stats aggregates membership outcomes credited to one link.
type Stats struct {
	LinkID        string `json:"link_id"`
	ActiveMembers int    `json:"active_members"`
	Exits         int    `json:"exits"`
	TotalJoins    int    `json:"total_joins"`
}

// WithStats is the list representation returned by the links API.
type WithStats struct {
	InviteLink
	ActiveMembers int `json:"active_members"`
	Exits         int `json:"exits"`
}
