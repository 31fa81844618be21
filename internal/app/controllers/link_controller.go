package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/faeln1/go-telegram-tracker/internal/app/repositories"
	"github.com/faeln1/go-telegram-tracker/internal/app/services"
	"github.com/faeln1/go-telegram-tracker/internal/domain/link"
)

type LinkController struct {
	service services.LinkService
}

func NewLinkController(s services.LinkService) *LinkController {
	return &LinkController{service: s}
}

func (c *LinkController) Create(w http.ResponseWriter, r *http.Request) {
	var in link.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	created, err := c.service.Create(r.Context(), in)
	if err != nil {
		writeError(w, mapLinkStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (c *LinkController) List(w http.ResponseWriter, r *http.Request) {
	items, err := c.service.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (c *LinkController) Get(w http.ResponseWriter, r *http.Request, id string) {
	item, err := c.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, mapLinkStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (c *LinkController) Stats(w http.ResponseWriter, r *http.Request, id string) {
	stats, err := c.service.Stats(r.Context(), id)
	if err != nil {
		writeError(w, mapLinkStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (c *LinkController) Delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := c.service.Delete(r.Context(), id); err != nil {
		writeError(w, mapLinkStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func mapLinkStatus(err error) int {
	switch {
	case errors.Is(err, repositories.ErrLinkNotFound):
		return http.StatusNotFound
	case errors.Is(err, repositories.ErrLinkAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, services.ErrChannelNotConfigured),
		errors.Is(err, services.ErrInvalidChannelType),
		errors.Is(err, services.ErrLinkNameRequired):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrTelegramDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
