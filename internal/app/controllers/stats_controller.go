package controllers

import (
	"net/http"

	"github.com/faeln1/go-telegram-tracker/internal/app/services"
)

type StatsController struct {
	service services.StatsService
}

func NewStatsController(s services.StatsService) *StatsController {
	return &StatsController{service: s}
}

func (c *StatsController) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := c.service.Overview(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}
