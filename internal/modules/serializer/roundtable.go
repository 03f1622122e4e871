package serializer

import (
	"time"

	"github.com/google/uuid"

	"github.com/aiwendy/roundtable/internal/modules/model"
	"github.com/aiwendy/roundtable/internal/modules/service"
)

// SessionResponse is the API projection of a session with resolved personas.
type SessionResponse struct {
	ID             uuid.UUID          `json:"id"`
	UserID         uuid.UUID          `json:"user_id"`
	ProjectID      *uuid.UUID         `json:"project_id,omitempty"`
	PresetID       *string            `json:"preset_id,omitempty"`
	Title          string             `json:"title"`
	CoachIDs       []string           `json:"coach_ids"`
	Coaches        []model.CoachBrief `json:"coaches"`
	DiscussionMode string             `json:"discussion_mode"`
	ModeratorID    *string            `json:"moderator_id,omitempty"`
	Moderator      *model.CoachBrief  `json:"moderator,omitempty"`

	LLMConfigID    *string  `json:"llm_config_id,omitempty"`
	LLMProvider    *string  `json:"llm_provider,omitempty"`
	LLMModel       *string  `json:"llm_model,omitempty"`
	LLMTemperature *float64 `json:"llm_temperature,omitempty"`
	LLMMaxTokens   *int     `json:"llm_max_tokens,omitempty"`

	KBTiming        string `json:"kb_timing"`
	KBTopK          int    `json:"kb_top_k"`
	KBMaxCandidates int    `json:"kb_max_candidates"`

	MessageCount int  `json:"message_count"`
	RoundCount   int  `json:"round_count"`
	IsActive     bool `json:"is_active"`

	EndedAt   *time.Time `json:"ended_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type SessionDetailResponse struct {
	SessionResponse
	Messages []model.RoundtableMessage `json:"messages"`
}

type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
	Total    int64             `json:"total"`
}

type PresetResponse struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Icon        string             `json:"icon"`
	CoachIDs    []string           `json:"coach_ids"`
	Coaches     []model.CoachBrief `json:"coaches"`
}

func BuildSession(view *service.SessionView) SessionResponse {
	s := view.Session
	resp := SessionResponse{
		ID:              s.ID,
		UserID:          s.UserID,
		ProjectID:       s.ProjectID,
		PresetID:        s.PresetID,
		Title:           s.Title,
		CoachIDs:        s.CoachIDs,
		Coaches:         buildCoachBriefs(view.Coaches),
		DiscussionMode:  s.DiscussionMode,
		ModeratorID:     s.ModeratorID,
		LLMConfigID:     s.LLMConfigID,
		LLMProvider:     s.LLMProvider,
		LLMModel:        s.LLMModel,
		LLMTemperature:  s.LLMTemperature,
		LLMMaxTokens:    s.LLMMaxTokens,
		KBTiming:        s.KBTiming,
		KBTopK:          s.KBTopK,
		KBMaxCandidates: s.KBMaxCandidates,
		MessageCount:    s.MessageCount,
		RoundCount:      s.RoundCount,
		IsActive:        s.IsActive,
		EndedAt:         s.EndedAt,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
	if view.Moderator != nil {
		brief := view.Moderator.Brief()
		resp.Moderator = &brief
	}
	return resp
}

func BuildSessionDetail(detail *service.SessionDetail) SessionDetailResponse {
	return SessionDetailResponse{
		SessionResponse: BuildSession(&detail.SessionView),
		Messages:        detail.Messages,
	}
}

func BuildSessionList(views []service.SessionView, total int64) SessionListResponse {
	out := make([]SessionResponse, 0, len(views))
	for i := range views {
		out = append(out, BuildSession(&views[i]))
	}
	return SessionListResponse{Sessions: out, Total: total}
}

func BuildPreset(view service.PresetView) PresetResponse {
	return PresetResponse{
		ID:          view.Preset.ID,
		Name:        view.Preset.Name,
		Description: view.Preset.Description,
		Icon:        view.Preset.Icon,
		CoachIDs:    view.Preset.CoachIDs,
		Coaches:     buildCoachBriefs(view.Coaches),
	}
}

func BuildPresets(views []service.PresetView) []PresetResponse {
	out := make([]PresetResponse, 0, len(views))
	for _, v := range views {
		out = append(out, BuildPreset(v))
	}
	return out
}

func BuildCoaches(coaches []model.Coach) []model.CoachBrief {
	return buildCoachBriefs(coaches)
}

func buildCoachBriefs(coaches []model.Coach) []model.CoachBrief {
	out := make([]model.CoachBrief, 0, len(coaches))
	for _, c := range coaches {
		out = append(out, c.Brief())
	}
	return out
}
