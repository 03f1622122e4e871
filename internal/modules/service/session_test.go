package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aiwendy/roundtable/internal/modules/model"
	"github.com/aiwendy/roundtable/internal/modules/repo"
)

func newSessionFixture() (*MockSessionRepo, *MockCoachRepo, SessionService) {
	sessions := &MockSessionRepo{}
	coaches := &MockCoachRepo{}
	return sessions, coaches, NewSessionService(sessions, coaches, zap.NewNop())
}

func TestSessionCreate_FreeMode(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	sessions, coaches, svc := newSessionFixture()

	coaches.On("ListActiveByIDs", mock.Anything, []string{"rational", "warm"}).
		Return(fixtureCoaches(), nil)
	sessions.On("Create", mock.Anything, mock.AnythingOfType("*model.RoundtableSession")).Return(nil)

	view, err := svc.Create(ctx, userID, CreateSessionInput{
		CoachIDs: []string{"rational", "warm"},
	})
	require.NoError(t, err)

	sess := view.Session
	assert.Equal(t, model.ModeFree, sess.DiscussionMode)
	assert.Nil(t, sess.ModeratorID)
	assert.Nil(t, view.Moderator)
	assert.True(t, sess.IsActive)
	assert.Equal(t, model.KBTimingOff, sess.KBTiming)
	assert.Equal(t, 5, sess.KBTopK)
	assert.Contains(t, sess.Title, "圆桌讨论")
	assert.Len(t, view.Coaches, 2)
}

func TestSessionCreate_ModeratedDefaultsHost(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	sessions, coaches, svc := newSessionFixture()

	coaches.On("ListActiveByIDs", mock.Anything, mock.Anything).Return(fixtureCoaches(), nil)
	coaches.On("Get", mock.Anything, "host").
		Return(&model.Coach{ID: "host", Name: "圆桌主持人", IsActive: true}, nil)
	sessions.On("Create", mock.Anything, mock.AnythingOfType("*model.RoundtableSession")).Return(nil)

	view, err := svc.Create(ctx, userID, CreateSessionInput{
		CoachIDs:       []string{"rational", "warm"},
		DiscussionMode: model.ModeModerated,
	})
	require.NoError(t, err)
	require.NotNil(t, view.Session.ModeratorID)
	assert.Equal(t, "host", *view.Session.ModeratorID)
	require.NotNil(t, view.Moderator)
}

func TestSessionCreate_ModeratorInactive(t *testing.T) {
	ctx := context.Background()
	_, coaches, svc := newSessionFixture()

	coaches.On("ListActiveByIDs", mock.Anything, mock.Anything).Return(fixtureCoaches(), nil)
	coaches.On("Get", mock.Anything, "host").
		Return(&model.Coach{ID: "host", IsActive: false}, nil)

	_, err := svc.Create(ctx, uuid.New(), CreateSessionInput{
		CoachIDs:       []string{"rational", "warm"},
		DiscussionMode: model.ModeModerated,
	})
	assert.ErrorIs(t, err, ErrModeratorMissing)
}

func TestSessionCreate_CoachCountBounds(t *testing.T) {
	ctx := context.Background()
	_, _, svc := newSessionFixture()

	_, err := svc.Create(ctx, uuid.New(), CreateSessionInput{CoachIDs: []string{"rational"}})
	assert.ErrorIs(t, err, ErrCoachCountBounds)

	_, err = svc.Create(ctx, uuid.New(), CreateSessionInput{
		CoachIDs: []string{"a", "b", "c", "d", "e", "f"},
	})
	assert.ErrorIs(t, err, ErrCoachCountBounds)

	_, err = svc.Create(ctx, uuid.New(), CreateSessionInput{})
	assert.Error(t, err)
}

func TestSessionCreate_UnknownCoach(t *testing.T) {
	ctx := context.Background()
	_, coaches, svc := newSessionFixture()

	// Only one of the two requested ids resolves.
	coaches.On("ListActiveByIDs", mock.Anything, []string{"rational", "nope"}).
		Return(fixtureCoaches()[:1], nil)

	_, err := svc.Create(ctx, uuid.New(), CreateSessionInput{CoachIDs: []string{"rational", "nope"}})
	assert.Error(t, err)
}

func TestSessionCreate_FromPreset(t *testing.T) {
	ctx := context.Background()
	sessions, coaches, svc := newSessionFixture()

	coaches.On("GetPreset", mock.Anything, "balanced").
		Return(&model.CoachPreset{ID: "balanced", CoachIDs: []string{"rational", "warm"}}, nil)
	coaches.On("ListActiveByIDs", mock.Anything, mock.Anything).Return(fixtureCoaches(), nil)
	sessions.On("Create", mock.Anything, mock.AnythingOfType("*model.RoundtableSession")).Return(nil)

	view, err := svc.Create(ctx, uuid.New(), CreateSessionInput{PresetID: "balanced"})
	require.NoError(t, err)
	require.NotNil(t, view.Session.PresetID)
	assert.Equal(t, "balanced", *view.Session.PresetID)
	assert.Equal(t, []string{"rational", "warm"}, []string(view.Session.CoachIDs))
}

func TestSessionCreate_PresetNotFound(t *testing.T) {
	ctx := context.Background()
	_, coaches, svc := newSessionFixture()
	coaches.On("GetPreset", mock.Anything, "ghost").Return(nil, repo.ErrPresetNotFound)

	_, err := svc.Create(ctx, uuid.New(), CreateSessionInput{PresetID: "ghost"})
	assert.ErrorIs(t, err, ErrPresetNotFound)
}

func TestSessionUpdateSettings_PartialPatch(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	sessions, coaches, svc := newSessionFixture()

	modelName := "gpt-4o"
	sess := freeSession()
	sess.UserID = userID
	sess.LLMModel = &modelName
	sess.KBTopK = 5

	sessions.On("Get", mock.Anything, userID, sess.ID).Return(sess, nil)
	sessions.On("Update", mock.Anything, sess).Return(nil)
	coaches.On("ListActiveByIDs", mock.Anything, mock.Anything).Return(fixtureCoaches(), nil)

	timing := model.KBTimingRound
	topK := 8
	view, err := svc.UpdateSettings(ctx, userID, sess.ID, UpdateSettingsInput{
		KBTiming: &timing,
		KBTopK:   &topK,
	})
	require.NoError(t, err)

	// Patched fields change, untouched fields survive.
	assert.Equal(t, model.KBTimingRound, view.Session.KBTiming)
	assert.Equal(t, 8, view.Session.KBTopK)
	require.NotNil(t, view.Session.LLMModel)
	assert.Equal(t, "gpt-4o", *view.Session.LLMModel)

	// An explicit empty string clears an override.
	empty := ""
	view, err = svc.UpdateSettings(ctx, userID, sess.ID, UpdateSettingsInput{Model: &empty})
	require.NoError(t, err)
	assert.Nil(t, view.Session.LLMModel)
}

func TestSessionEnd(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	sessions, _, svc := newSessionFixture()

	sess := freeSession()
	sess.UserID = userID
	sessions.On("Get", mock.Anything, userID, sess.ID).Return(sess, nil)
	sessions.On("Update", mock.Anything, sess).Return(nil)

	require.NoError(t, svc.End(ctx, userID, sess.ID))
	assert.False(t, sess.IsActive)
	require.NotNil(t, sess.EndedAt)
}

func TestSessionEnd_NotFound(t *testing.T) {
	ctx := context.Background()
	sessions, _, svc := newSessionFixture()
	id := uuid.New()
	userID := uuid.New()
	sessions.On("Get", mock.Anything, userID, id).Return(nil, repo.ErrSessionNotFound)

	err := svc.End(ctx, userID, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestGetPreset(t *testing.T) {
	ctx := context.Background()
	_, coaches, svc := newSessionFixture()

	coaches.On("GetPreset", mock.Anything, "balanced").
		Return(&model.CoachPreset{ID: "balanced", Name: "均衡视角", CoachIDs: []string{"rational", "warm"}}, nil)
	coaches.On("ListActiveByIDs", mock.Anything, mock.Anything).Return(fixtureCoaches(), nil)

	view, err := svc.GetPreset(ctx, "balanced")
	require.NoError(t, err)
	assert.Equal(t, "均衡视角", view.Preset.Name)
	assert.Len(t, view.Coaches, 2)

	coaches.On("GetPreset", mock.Anything, "nope").Return(nil, repo.ErrPresetNotFound)
	_, err = svc.GetPreset(ctx, "nope")
	assert.ErrorIs(t, err, ErrPresetNotFound)
}
