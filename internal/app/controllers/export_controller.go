package controllers

import (
	"context"
	"net/http"

	"github.com/faeln1/go-telegram-tracker/internal/app/services"
)

type ExportController struct {
	service  services.ExportService
	channels services.ChannelService
}

func NewExportController(s services.ExportService, channels services.ChannelService) *ExportController {
	return &ExportController{service: s, channels: channels}
}

// MembersCSV streams the current members table as a CSV download.
func (c *ExportController) MembersCSV(w http.ResponseWriter, r *http.Request) {
	chatID, err := resolveChatParam(r, r.URL.Query(), c.channels)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="members.csv"`)
	if _, err := c.service.WriteMembersCSV(r.Context(), w, chatID); err != nil {
		// Headers are out; nothing sensible left to send.
		return
	}
}

// ExitsCSV streams the exit log as a CSV download.
func (c *ExportController) ExitsCSV(w http.ResponseWriter, r *http.Request) {
	chatID, err := resolveChatParam(r, r.URL.Query(), c.channels)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="exits.csv"`)
	if _, err := c.service.WriteExitsCSV(r.Context(), w, chatID); err != nil {
		return
	}
}

// ArchiveMembers uploads a members snapshot to object storage.
func (c *ExportController) ArchiveMembers(w http.ResponseWriter, r *http.Request) {
	c.archive(w, r, c.service.ArchiveMembers)
}

// ArchiveExits uploads an exit log snapshot to object storage.
func (c *ExportController) ArchiveExits(w http.ResponseWriter, r *http.Request) {
	c.archive(w, r, c.service.ArchiveExits)
}

func (c *ExportController) archive(w http.ResponseWriter, r *http.Request, run func(ctx context.Context, chatID int64) (string, error)) {
	chatID, err := resolveChatParam(r, r.URL.Query(), c.channels)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	url, err := run(r.Context(), chatID)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}
