package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aiwendy/roundtable/internal/middleware"
	"github.com/aiwendy/roundtable/internal/modules/serializer"
	"github.com/aiwendy/roundtable/internal/modules/service"
)

type SessionHandler struct {
	svc service.SessionService
}

func NewSessionHandler(svc service.SessionService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

type CreateSessionReq struct {
	ProjectID *uuid.UUID `json:"project_id"`
	PresetID  string     `json:"preset_id"`
	CoachIDs  []string   `json:"coach_ids" binding:"omitempty,max=5"`
	Title     string     `json:"title"`

	DiscussionMode string `json:"discussion_mode" binding:"discussionmode"`
	ModeratorID    string `json:"moderator_id"`

	ConfigID    string   `json:"config_id"`
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature" binding:"omitempty,gte=0,lte=2"`
	MaxTokens   *int     `json:"max_tokens" binding:"omitempty,gt=0"`

	KBTiming        string `json:"kb_timing" binding:"kbtiming"`
	KBTopK          *int   `json:"kb_top_k" binding:"omitempty,gte=0,lte=50"`
	KBMaxCandidates *int   `json:"kb_max_candidates" binding:"omitempty,gte=0,lte=5000"`
}

func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req CreateSessionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, serializer.AuthErr(""))
		return
	}

	view, err := h.svc.Create(c.Request.Context(), user.ID, service.CreateSessionInput{
		ProjectID:       req.ProjectID,
		PresetID:        req.PresetID,
		CoachIDs:        req.CoachIDs,
		Title:           req.Title,
		DiscussionMode:  req.DiscussionMode,
		ModeratorID:     req.ModeratorID,
		ConfigID:        req.ConfigID,
		Provider:        req.Provider,
		Model:           req.Model,
		Temperature:     req.Temperature,
		MaxTokens:       req.MaxTokens,
		KBTiming:        req.KBTiming,
		KBTopK:          req.KBTopK,
		KBMaxCandidates: req.KBMaxCandidates,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPresetNotFound):
			c.JSON(http.StatusNotFound, serializer.NotFoundErr("preset not found", err))
		case errors.Is(err, service.ErrCoachCountBounds),
			errors.Is(err, service.ErrModeratorMissing):
			c.JSON(http.StatusBadRequest, serializer.ParamErr(err.Error(), err))
		default:
			c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		}
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: serializer.BuildSession(view), Msg: "ok"})
}

type ListSessionsReq struct {
	ProjectID string `form:"project_id" binding:"omitempty,uuid"`
	Limit     int    `form:"limit,default=20" binding:"omitempty,min=1,max=100"`
	Offset    int    `form:"offset,default=0" binding:"omitempty,min=0"`
}

func (h *SessionHandler) ListSessions(c *gin.Context) {
	var req ListSessionsReq
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, serializer.AuthErr(""))
		return
	}

	var projectID *uuid.UUID
	if req.ProjectID != "" {
		id, err := uuid.Parse(req.ProjectID)
		if err != nil {
			c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid project id", err))
			return
		}
		projectID = &id
	}

	views, total, err := h.svc.List(c.Request.Context(), user.ID, projectID, req.Limit, req.Offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: serializer.BuildSessionList(views, total), Msg: "ok"})
}

func (h *SessionHandler) GetSessionDetail(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid session id", err))
		return
	}
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, serializer.AuthErr(""))
		return
	}

	detail, err := h.svc.GetDetail(c.Request.Context(), user.ID, sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, serializer.NotFoundErr("session not found", err))
			return
		}
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: serializer.BuildSessionDetail(detail), Msg: "ok"})
}

type UpdateSettingsReq struct {
	ConfigID    *string  `json:"config_id"`
	Provider    *string  `json:"provider"`
	Model       *string  `json:"model"`
	Temperature *float64 `json:"temperature" binding:"omitempty,gte=0,lte=2"`
	MaxTokens   *int     `json:"max_tokens" binding:"omitempty,gt=0"`

	KBTiming        *string `json:"kb_timing"`
	KBTopK          *int    `json:"kb_top_k" binding:"omitempty,gte=0,lte=50"`
	KBMaxCandidates *int    `json:"kb_max_candidates" binding:"omitempty,gte=0,lte=5000"`
}

func (h *SessionHandler) UpdateSettings(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid session id", err))
		return
	}
	var req UpdateSettingsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, serializer.AuthErr(""))
		return
	}

	view, err := h.svc.UpdateSettings(c.Request.Context(), user.ID, sessionID, service.UpdateSettingsInput{
		ConfigID:        req.ConfigID,
		Provider:        req.Provider,
		Model:           req.Model,
		Temperature:     req.Temperature,
		MaxTokens:       req.MaxTokens,
		KBTiming:        req.KBTiming,
		KBTopK:          req.KBTopK,
		KBMaxCandidates: req.KBMaxCandidates,
	})
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, serializer.NotFoundErr("session not found", err))
			return
		}
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Data: serializer.BuildSession(view), Msg: "ok"})
}

func (h *SessionHandler) EndSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("invalid session id", err))
		return
	}
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, serializer.AuthErr(""))
		return
	}

	if err := h.svc.End(c.Request.Context(), user.ID, sessionID); err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, serializer.NotFoundErr("session not found", err))
			return
		}
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
		return
	}
	c.JSON(http.StatusOK, serializer.Response{Msg: "session ended"})
}
