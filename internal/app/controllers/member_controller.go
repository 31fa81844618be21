package controllers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/faeln1/go-telegram-tracker/internal/app/repositories"
	"github.com/faeln1/go-telegram-tracker/internal/app/services"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

var errUnknownChannel = errors.New("channel must be public or private")

// MemberController serves read-only views over the tracked members table and
// the exit log.
type MemberController struct {
	memberships repositories.MembershipRepository
	channels    services.ChannelService
}

func NewMemberController(memberships repositories.MembershipRepository, channels services.ChannelService) *MemberController {
	return &MemberController{memberships: memberships, channels: channels}
}

type pagedResponse struct {
	Items  any `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func (c *MemberController) ListMembers(w http.ResponseWriter, r *http.Request) {
	chatID, limit, offset, err := c.listParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	items, err := c.memberships.ListMembers(r.Context(), chatID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	total, err := c.memberships.CountMembers(r.Context(), chatID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, pagedResponse{Items: items, Total: total, Limit: limit, Offset: offset})
}

func (c *MemberController) ListExits(w http.ResponseWriter, r *http.Request) {
	chatID, limit, offset, err := c.listParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	items, err := c.memberships.ListExits(r.Context(), chatID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	total, err := c.memberships.CountExits(r.Context(), chatID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, pagedResponse{Items: items, Total: total, Limit: limit, Offset: offset})
}

// listParams resolves the target chat and pagination. The chat can be named
// by channel=public|private against the configured pair or given directly as
// chat_id; absent both, all tracked chats are included.
func (c *MemberController) listParams(r *http.Request) (chatID int64, limit, offset int, err error) {
	q := r.URL.Query()

	chatID, err = resolveChatParam(r, q, c.channels)
	if err != nil {
		return 0, 0, 0, err
	}

	limit = defaultPageSize
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return 0, 0, 0, ErrInvalidParam
		}
		if limit > maxPageSize {
			limit = maxPageSize
		}
	}

	if raw := q.Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, 0, ErrInvalidParam
		}
	}

	return chatID, limit, offset, nil
}

func resolveChatParam(r *http.Request, q url.Values, channels services.ChannelService) (int64, error) {
	if raw := q.Get("chat_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, ErrInvalidParam
		}
		return id, nil
	}

	name := q.Get("channel")
	if name == "" {
		return 0, nil
	}

	cfg, err := channels.Current(r.Context())
	if err != nil {
		return 0, err
	}
	switch name {
	case "public":
		if cfg.PublicChannelID == 0 {
			return 0, services.ErrChannelNotConfigured
		}
		return cfg.PublicChannelID, nil
	case "private":
		if cfg.PrivateChannelID == 0 {
			return 0, services.ErrChannelNotConfigured
		}
		return cfg.PrivateChannelID, nil
	default:
		return 0, errUnknownChannel
	}
}
