package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aiwendy/roundtable/internal/config"
	"github.com/aiwendy/roundtable/internal/middleware"
	"github.com/aiwendy/roundtable/internal/modules/model"
	"github.com/aiwendy/roundtable/internal/modules/serializer"
	"github.com/aiwendy/roundtable/internal/modules/service"
	"github.com/aiwendy/roundtable/internal/pkg/llm"
)

// RoundtableHandler serves the streaming chat endpoint.
type RoundtableHandler struct {
	svc service.RoundtableService
	cfg *config.Config
}

func NewRoundtableHandler(svc service.RoundtableService, cfg *config.Config) *RoundtableHandler {
	return &RoundtableHandler{svc: svc, cfg: cfg}
}

type ChatReq struct {
	SessionID   uuid.UUID          `json:"session_id" binding:"required"`
	Content     string             `json:"content" binding:"required"`
	Attachments []model.Attachment `json:"attachments" binding:"omitempty,max=10"`

	MaxRounds   int    `json:"max_rounds" binding:"omitempty,min=1,max=3"`
	ShouldEnd   bool   `json:"should_end"`
	DebateStyle string `json:"debate_style" binding:"debatestyle"`

	ConfigID    string   `json:"config_id"`
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature" binding:"omitempty,gte=0,lte=2"`
	MaxTokens   *int     `json:"max_tokens" binding:"omitempty,gt=0"`

	KBTiming        string `json:"kb_timing" binding:"kbtiming"`
	KBTopK          *int   `json:"kb_top_k" binding:"omitempty,gte=0,lte=50"`
	KBMaxCandidates *int   `json:"kb_max_candidates" binding:"omitempty,gte=0,lte=5000"`
}

// Chat runs one user turn and streams the discussion back as server-sent
// events. Configuration errors are returned as plain JSON before the stream
// starts; once streaming begins, failures are expressed in-protocol.
func (h *RoundtableHandler) Chat(c *gin.Context) {
	var req ChatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, serializer.AuthErr(""))
		return
	}

	ctx := c.Request.Context()
	run, err := h.svc.PrepareChat(ctx, user.ID, service.ChatInput{
		SessionID:       req.SessionID,
		Content:         req.Content,
		Attachments:     req.Attachments,
		MaxRounds:       req.MaxRounds,
		ShouldEnd:       req.ShouldEnd,
		DebateStyle:     req.DebateStyle,
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
		h.writePrepareError(c, err)
		return
	}

	pace := time.Duration(h.cfg.LLM.StreamPaceMs) * time.Millisecond
	emitter, err := service.NewSSEEmitter(c.Writer, pace)
	if err != nil {
		h.svc.Release(ctx, run)
		c.JSON(http.StatusInternalServerError, serializer.Err(http.StatusInternalServerError, "streaming unsupported", err))
		return
	}

	h.svc.ExecuteChat(ctx, run, emitter)
}

func (h *RoundtableHandler) writePrepareError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, serializer.NotFoundErr("session not found", err))
	case errors.Is(err, llm.ErrConfigNotFound):
		c.JSON(http.StatusNotFound, serializer.NotFoundErr("llm config not found", err))
	case errors.Is(err, service.ErrSessionBusy):
		c.JSON(http.StatusConflict, serializer.ConflictErr(err.Error(), err))
	case errors.Is(err, service.ErrSessionInactive),
		errors.Is(err, service.ErrNoCoaches),
		errors.Is(err, service.ErrModeratorMissing),
		errors.Is(err, service.ErrEmptyContent),
		errors.Is(err, service.ErrInvalidRoundCount),
		errors.Is(err, llm.ErrConfigInactive),
		errors.Is(err, llm.ErrNoProvider):
		c.JSON(http.StatusBadRequest, serializer.ParamErr(err.Error(), err))
	default:
		c.JSON(http.StatusInternalServerError, serializer.DBErr("", err))
	}
}
