package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/faeln1/go-telegram-tracker/internal/app/services"
	"github.com/faeln1/go-telegram-tracker/internal/domain/member"
	"github.com/faeln1/go-telegram-tracker/pkg/eventlog"
)

// WebhookController receives Telegram update deliveries. It acknowledges
// every delivery with 200 regardless of processing outcome: a non-2xx answer
// makes Telegram retry the same update and the reconciler has already seen it.
type WebhookController struct {
	reconciler services.Reconciler
	webhooks   services.WebhookManager
	events     *eventlog.Writer
	log        *logrus.Logger
}

func NewWebhookController(rec services.Reconciler, wm services.WebhookManager, events *eventlog.Writer, log *logrus.Logger) *WebhookController {
	return &WebhookController{reconciler: rec, webhooks: wm, events: events, log: log}
}

type webhookAck struct {
	OK bool `json:"ok"`
}

// Receive handles POST deliveries from Telegram.
func (c *WebhookController) Receive(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		c.log.WithError(err).Warn("discarding malformed webhook payload")
		writeJSON(w, http.StatusOK, webhookAck{OK: true})
		return
	}

	upd, updateType := chatMemberUpdate(&update)
	if upd == nil {
		// Other update kinds are not subscribed; ack and move on.
		writeJSON(w, http.StatusOK, webhookAck{OK: true})
		return
	}

	if c.events.Enabled() {
		if err := c.events.Write(updateType, upd.Chat.ID, upd); err != nil {
			c.log.WithError(err).Warn("raw update not recorded")
		}
	}

	evt, err := mapChatMemberUpdate(upd)
	if err != nil {
		c.log.WithError(err).WithField("update_type", updateType).Warn("discarding unusable chat member update")
		writeJSON(w, http.StatusOK, webhookAck{OK: true})
		return
	}

	if err := c.reconciler.HandleEvent(r.Context(), evt); err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{
			"chat_id": evt.ChatID,
			"user_id": evt.UserID,
		}).Error("membership event not reconciled")
	}

	writeJSON(w, http.StatusOK, webhookAck{OK: true})
}

// Setup registers this service's webhook URL with Telegram.
func (c *WebhookController) Setup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		BaseURL string `json:"base_url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	url, err := c.webhooks.Setup(r.Context(), in.BaseURL)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrBaseURLRequired):
			writeError(w, http.StatusBadRequest, err)
		case errors.Is(err, services.ErrTelegramDisabled):
			writeError(w, http.StatusServiceUnavailable, err)
		default:
			writeError(w, http.StatusBadGateway, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Info reports the registration Telegram currently holds for this bot.
func (c *WebhookController) Info(w http.ResponseWriter, r *http.Request) {
	status, err := c.webhooks.Info(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Remove deletes the webhook registration.
func (c *WebhookController) Remove(w http.ResponseWriter, r *http.Request) {
	if err := c.webhooks.Remove(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, webhookAck{OK: true})
}

// chatMemberUpdate extracts the chat member payload from an update, if any.
// chat_member covers other users; my_chat_member covers the bot itself being
// added or removed, which matters when the bot administers the channels.
func chatMemberUpdate(update *tgbotapi.Update) (*tgbotapi.ChatMemberUpdated, string) {
	switch {
	case update.ChatMember != nil:
		return update.ChatMember, "chat_member"
	case update.MyChatMember != nil:
		return update.MyChatMember, "my_chat_member"
	default:
		return nil, ""
	}
}

var errNoSubject = errors.New("chat member update has no subject user")

// mapChatMemberUpdate converts a Telegram payload into the reconciler's event.
func mapChatMemberUpdate(upd *tgbotapi.ChatMemberUpdated) (member.MembershipEvent, error) {
	user := upd.NewChatMember.User
	if user == nil {
		return member.MembershipEvent{}, errNoSubject
	}

	evt := member.MembershipEvent{
		ChatID:     upd.Chat.ID,
		UserID:     user.ID,
		Username:   user.UserName,
		FirstName:  user.FirstName,
		LastName:   user.LastName,
		NewStatus:  member.Status(upd.NewChatMember.Status),
		OccurredAt: time.Unix(int64(upd.Date), 0).UTC(),
	}
	if upd.OldChatMember.Status != "" {
		evt.OldStatus = member.Status(upd.OldChatMember.Status)
	}
	if upd.InviteLink != nil {
		evt.InviteLinkURL = upd.InviteLink.InviteLink
	}
	if evt.OccurredAt.IsZero() || upd.Date == 0 {
		evt.OccurredAt = time.Now().UTC()
	}
	return evt, nil
}
