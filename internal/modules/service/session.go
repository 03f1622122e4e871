package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aiwendy/roundtable/internal/modules/model"
	"github.com/aiwendy/roundtable/internal/modules/repo"
)

// DefaultModeratorID is assigned when a moderated session is created
// without naming a moderator.
const DefaultModeratorID = "host"

type CreateSessionInput struct {
	ProjectID *uuid.UUID
	PresetID  string
	CoachIDs  []string
	Title     string

	DiscussionMode string
	ModeratorID    string

	ConfigID    string
	Provider    string
	Model       string
	Temperature *float64
	MaxTokens   *int

	KBTiming        string
	KBTopK          *int
	KBMaxCandidates *int
}

// UpdateSettingsInput is a partial patch; nil fields are left untouched and
// empty strings clear the corresponding override.
type UpdateSettingsInput struct {
	ConfigID    *string
	Provider    *string
	Model       *string
	Temperature *float64
	MaxTokens   *int

	KBTiming        *string
	KBTopK          *int
	KBMaxCandidates *int
}

// SessionView is a session joined with its resolved personas.
type SessionView struct {
	Session   *model.RoundtableSession
	Coaches   []model.Coach
	Moderator *model.Coach
}

// SessionDetail additionally carries the full ordered transcript.
type SessionDetail struct {
	SessionView
	Messages []model.RoundtableMessage
}

// PresetView is a preset joined with its resolved coaches.
type PresetView struct {
	Preset  model.CoachPreset
	Coaches []model.Coach
}

type SessionService interface {
	ListCoaches(ctx context.Context) ([]model.Coach, error)
	ListPresets(ctx context.Context) ([]PresetView, error)
	GetPreset(ctx context.Context, id string) (*PresetView, error)

	Create(ctx context.Context, userID uuid.UUID, in CreateSessionInput) (*SessionView, error)
	List(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID, limit, offset int) ([]SessionView, int64, error)
	GetDetail(ctx context.Context, userID uuid.UUID, sessionID uuid.UUID) (*SessionDetail, error)
	UpdateSettings(ctx context.Context, userID uuid.UUID, sessionID uuid.UUID, in UpdateSettingsInput) (*SessionView, error)
	End(ctx context.Context, userID uuid.UUID, sessionID uuid.UUID) error
}

type sessionService struct {
	sessions repo.SessionRepo
	coaches  repo.CoachRepo
	log      *zap.Logger
}

func NewSessionService(sessions repo.SessionRepo, coaches repo.CoachRepo, log *zap.Logger) SessionService {
	return &sessionService{sessions: sessions, coaches: coaches, log: log}
}

func (s *sessionService) ListCoaches(ctx context.Context) ([]model.Coach, error) {
	return s.coaches.ListActive(ctx)
}

func (s *sessionService) ListPresets(ctx context.Context) ([]PresetView, error) {
	presets, err := s.coaches.ListPresets(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]PresetView, 0, len(presets))
	for _, p := range presets {
		coaches, err := s.coaches.ListActiveByIDs(ctx, p.CoachIDs)
		if err != nil {
			return nil, err
		}
		views = append(views, PresetView{Preset: p, Coaches: coaches})
	}
	return views, nil
}

func (s *sessionService) GetPreset(ctx context.Context, id string) (*PresetView, error) {
	p, err := s.coaches.GetPreset(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrPresetNotFound) {
			return nil, ErrPresetNotFound
		}
		return nil, err
	}
	coaches, err := s.coaches.ListActiveByIDs(ctx, p.CoachIDs)
	if err != nil {
		return nil, err
	}
	return &PresetView{Preset: *p, Coaches: coaches}, nil
}

func (s *sessionService) Create(ctx context.Context, userID uuid.UUID, in CreateSessionInput) (*SessionView, error) {
	coachIDs := in.CoachIDs
	if in.PresetID != "" {
		p, err := s.coaches.GetPreset(ctx, in.PresetID)
		if err != nil {
			if errors.Is(err, repo.ErrPresetNotFound) {
				return nil, ErrPresetNotFound
			}
			return nil, err
		}
		coachIDs = p.CoachIDs
	}
	if len(coachIDs) == 0 {
		return nil, errors.New("either preset_id or coach_ids is required")
	}
	if len(coachIDs) < model.MinCoaches || len(coachIDs) > model.MaxCoaches {
		return nil, ErrCoachCountBounds
	}

	coaches, err := s.coaches.ListActiveByIDs(ctx, coachIDs)
	if err != nil {
		return nil, err
	}
	if len(coaches) != len(coachIDs) {
		return nil, errors.New("some coaches not found")
	}

	mode := in.DiscussionMode
	if mode == "" {
		mode = model.ModeFree
	}

	var moderator *model.Coach
	var moderatorID *string
	if mode == model.ModeModerated {
		id := in.ModeratorID
		if id == "" {
			id = DefaultModeratorID
		}
		m, err := s.coaches.Get(ctx, id)
		if err != nil || !m.IsActive {
			return nil, fmt.Errorf("%w: %q", ErrModeratorMissing, id)
		}
		moderator = m
		moderatorID = &id
	}

	title := in.Title
	if title == "" {
		title = "圆桌讨论 - " + time.Now().Format("2006-01-02 15:04")
	}

	sess := &model.RoundtableSession{
		UserID:          userID,
		ProjectID:       in.ProjectID,
		PresetID:        optStr(in.PresetID),
		Title:           title,
		CoachIDs:        coachIDs,
		DiscussionMode:  mode,
		ModeratorID:     moderatorID,
		LLMConfigID:     optStr(in.ConfigID),
		LLMProvider:     optStr(in.Provider),
		LLMModel:        optStr(in.Model),
		LLMTemperature:  in.Temperature,
		LLMMaxTokens:    in.MaxTokens,
		KBTiming:        defaultStr(in.KBTiming, model.KBTimingOff),
		KBTopK:          defaultInt(in.KBTopK, 5),
		KBMaxCandidates: defaultInt(in.KBMaxCandidates, 400),
		IsActive:        true,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	return &SessionView{Session: sess, Coaches: coaches, Moderator: moderator}, nil
}

func (s *sessionService) List(ctx context.Context, userID uuid.UUID, projectID *uuid.UUID, limit, offset int) ([]SessionView, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	sessions, total, err := s.sessions.List(ctx, userID, projectID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	views := make([]SessionView, 0, len(sessions))
	for i := range sessions {
		view, err := s.resolveView(ctx, &sessions[i])
		if err != nil {
			return nil, 0, err
		}
		views = append(views, *view)
	}
	return views, total, nil
}

func (s *sessionService) GetDetail(ctx context.Context, userID uuid.UUID, sessionID uuid.UUID) (*SessionDetail, error) {
	sess, err := s.getOwned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	view, err := s.resolveView(ctx, sess)
	if err != nil {
		return nil, err
	}
	msgs, err := s.sessions.ListMessages(ctx, sessionID, 0, 0)
	if err != nil {
		return nil, err
	}
	return &SessionDetail{SessionView: *view, Messages: msgs}, nil
}

func (s *sessionService) UpdateSettings(ctx context.Context, userID uuid.UUID, sessionID uuid.UUID, in UpdateSettingsInput) (*SessionView, error) {
	sess, err := s.getOwned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	if in.ConfigID != nil {
		sess.LLMConfigID = optStr(*in.ConfigID)
	}
	if in.Provider != nil {
		sess.LLMProvider = optStr(*in.Provider)
	}
	if in.Model != nil {
		sess.LLMModel = optStr(*in.Model)
	}
	if in.Temperature != nil {
		sess.LLMTemperature = in.Temperature
	}
	if in.MaxTokens != nil {
		sess.LLMMaxTokens = in.MaxTokens
	}
	if in.KBTiming != nil {
		sess.KBTiming = defaultStr(strings.TrimSpace(*in.KBTiming), model.KBTimingOff)
	}
	if in.KBTopK != nil {
		sess.KBTopK = *in.KBTopK
	}
	if in.KBMaxCandidates != nil {
		sess.KBMaxCandidates = *in.KBMaxCandidates
	}

	if err := s.sessions.Update(ctx, sess); err != nil {
		return nil, err
	}
	return s.resolveView(ctx, sess)
}

func (s *sessionService) End(ctx context.Context, userID uuid.UUID, sessionID uuid.UUID) error {
	sess, err := s.getOwned(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	now := time.Now()
	sess.IsActive = false
	sess.EndedAt = &now
	return s.sessions.Update(ctx, sess)
}

func (s *sessionService) getOwned(ctx context.Context, userID uuid.UUID, sessionID uuid.UUID) (*model.RoundtableSession, error) {
	sess, err := s.sessions.Get(ctx, userID, sessionID)
	if err != nil {
		if errors.Is(err, repo.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return sess, nil
}

func (s *sessionService) resolveView(ctx context.Context, sess *model.RoundtableSession) (*SessionView, error) {
	coaches, err := s.coaches.ListActiveByIDs(ctx, sess.CoachIDs)
	if err != nil {
		return nil, err
	}
	view := &SessionView{Session: sess, Coaches: coaches}
	if sess.ModeratorID != nil {
		m, err := s.coaches.Get(ctx, *sess.ModeratorID)
		if err == nil {
			view.Moderator = m
		}
	}
	return view, nil
}

func optStr(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func defaultStr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func defaultInt(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}
