package member

import "time"

// Status mirrors the chat member statuses reported by the Telegram Bot API.
type Status string

const (
	StatusCreator       Status = "creator"
	StatusAdministrator Status = "administrator"
	StatusMember        Status = "member"
	StatusRestricted    Status = "restricted"
	StatusLeft          Status = "left"
	StatusKicked        Status = "kicked"
)

// MembershipEvent is one chat_member (or my_chat_member) update after boundary
// validation. It is the only input the reconciler sees.
type MembershipEvent struct {
	ChatID        int64     `json:"chat_id"`
	UserID        int64     `json:"user_id"`
	Username      string    `json:"username,omitempty"`
	FirstName     string    `json:"first_name,omitempty"`
	LastName      string    `json:"last_name,omitempty"`
	OldStatus     Status    `json:"old_status,omitempty"`
	NewStatus     Status    `json:"new_status"`
	InviteLinkURL string    `json:"invite_link_url,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// IsJoin reports whether the event represents an effective join.
func (e MembershipEvent) IsJoin() bool {
	return e.NewStatus == StatusMember || e.NewStatus == StatusAdministrator
}

// IsLeave reports whether the event represents an effective leave.
func (e MembershipEvent) IsLeave() bool {
	return e.NewStatus == StatusLeft || e.NewStatus == StatusKicked
}

// Member is the current membership of one user in one channel. There is at
// most one row per (user, chat); absence means the user is not tracked as a
// current member.
type Member struct {
	ChatID    int64     `json:"chat_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	JoinedAt  time.Time `json:"joined_at"`
	// LinkID and LinkURL credit the invite link that brought the member in.
	// Both stay nil for unattributed memberships.
	LinkID  *string `json:"link_id,omitempty"`
	LinkURL *string `json:"link_url,omitempty"`
}

// Exit is one closed membership span, written when a tracked member leaves.
// JoinedAt and the attribution fields are carried over from the Member row
// being closed so the span survives the delete.
type Exit struct {
	ID        string    `json:"id"`
	ChatID    int64     `json:"chat_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	JoinedAt  time.Time `json:"joined_at"`
	LeftAt    time.Time `json:"left_at"`
	LinkID    *string   `json:"link_id,omitempty"`
	LinkURL   *string   `json:"link_url,omitempty"`
}

// FullName returns the best human-readable name for display and exports.
func (m *Member) FullName() string {
	if m.LastName != "" {
		return m.FirstName + " " + m.LastName
	}
	return m.FirstName
}
