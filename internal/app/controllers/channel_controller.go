package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/faeln1/go-telegram-tracker/internal/app/services"
	"github.com/faeln1/go-telegram-tracker/internal/domain/channel"
)

// ChannelInspector is the slice of the Telegram client the info endpoint
// uses to enrich the configured pair with live facts.
type ChannelInspector interface {
	ChatTitle(chatID int64) (string, error)
	MemberCount(chatID int64) (int, error)
}

var errTelegramUnavailable = errors.New("telegram client is not configured")

type ChannelController struct {
	service  services.ChannelService
	telegram ChannelInspector
	log      *logrus.Logger
}

func NewChannelController(s services.ChannelService, tg ChannelInspector, log *logrus.Logger) *ChannelController {
	return &ChannelController{service: s, telegram: tg, log: log}
}

func (c *ChannelController) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := c.service.Current(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (c *ChannelController) PutConfig(w http.ResponseWriter, r *http.Request) {
	var in channel.Config
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	saved, err := c.service.Save(r.Context(), &in)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

type channelInfo struct {
	ChatID      int64  `json:"chat_id"`
	Title       string `json:"title,omitempty"`
	MemberCount int    `json:"member_count,omitempty"`
	Error       string `json:"error,omitempty"`
}

type channelInfoResponse struct {
	Public  *channelInfo `json:"public,omitempty"`
	Private *channelInfo `json:"private,omitempty"`
}

// Info returns live titles and member counts for the configured pair.
func (c *ChannelController) Info(w http.ResponseWriter, r *http.Request) {
	if c.telegram == nil {
		writeError(w, http.StatusServiceUnavailable, errTelegramUnavailable)
		return
	}
	cfg, err := c.service.Current(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := channelInfoResponse{}
	if cfg.PublicChannelID != 0 {
		resp.Public = c.inspect(cfg.PublicChannelID)
	}
	if cfg.PrivateChannelID != 0 {
		resp.Private = c.inspect(cfg.PrivateChannelID)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (c *ChannelController) inspect(chatID int64) *channelInfo {
	info := &channelInfo{ChatID: chatID}

	title, err := c.telegram.ChatTitle(chatID)
	if err != nil {
		c.log.WithError(err).WithField("chat_id", chatID).Warn("chat title lookup failed")
		info.Error = err.Error()
		return info
	}
	info.Title = title

	count, err := c.telegram.MemberCount(chatID)
	if err != nil {
		c.log.WithError(err).WithField("chat_id", chatID).Warn("member count lookup failed")
		info.Error = err.Error()
		return info
	}
	info.MemberCount = count
	return info
}
