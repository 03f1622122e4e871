package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aiwendy/roundtable/internal/modules/serializer"
	"github.com/aiwendy/roundtable/internal/modules/service"
)

// PresetHandler serves the read-only coach and preset catalog.
type PresetHandler struct {
	svc service.SessionService
}

func NewPresetHandler(svc service.SessionService) *PresetHandler {
	return &PresetHandler{svc: svc}
}

func (h *PresetHandler) ListCoaches(c *gin.Context) {
	coaches, err := h.svc.ListCoaches(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: serializer.BuildCoaches(coaches), Msg: "ok"})
}

func (h *PresetHandler) ListPresets(c *gin.Context) {
	presets, err := h.svc.ListPresets(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: serializer.BuildPresets(presets), Msg: "ok"})
}

func (h *PresetHandler) GetPreset(c *gin.Context) {
	view, err := h.svc.GetPreset(c.Request.Context(), c.Param("preset_id"))
	if err != nil {
		if errors.Is(err, service.ErrPresetNotFound) {
			c.JSON(http.StatusNotFound, serializer.NotFoundErr("preset not found", err))
			return
		}
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: serializer.BuildPreset(*view), Msg: "ok"})
}
