package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aiwendy/roundtable/internal/config"
	"github.com/aiwendy/roundtable/internal/modules/service"
	"github.com/aiwendy/roundtable/internal/pkg/llm"
)

// MockRoundtableService is a mock implementation of service.RoundtableService
type MockRoundtableService struct {
	mock.Mock
}

func (m *MockRoundtableService) PrepareChat(ctx context.Context, userID uuid.UUID, in service.ChatInput) (*service.ChatRun, error) {
	args := m.Called(ctx, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ChatRun), args.Error(1)
}

func (m *MockRoundtableService) ExecuteChat(ctx context.Context, run *service.ChatRun, emitter service.Emitter) {
	m.Called(ctx, run, emitter)
}

func (m *MockRoundtableService) Release(ctx context.Context, run *service.ChatRun) {
	m.Called(ctx, run)
}

func chatRouter(svc service.RoundtableService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	RegisterValidators()

	cfg := &config.Config{}
	h := NewRoundtableHandler(svc, cfg)
	r := gin.New()
	r.Use(fakeAuth())
	r.POST("/chat", h.Chat)
	return r
}

func chatBody(t *testing.T, overrides gin.H) *bytes.Reader {
	t.Helper()
	body := gin.H{
		"session_id": uuid.New().String(),
		"content":    "我该怎么控制回撤",
	}
	for k, v := range overrides {
		body[k] = v
	}
	b, err := json.Marshal(body)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func TestChat_StreamsEvents(t *testing.T) {
	svc := &MockRoundtableService{}
	run := &service.ChatRun{}
	svc.On("PrepareChat", mock.Anything, testUserID, mock.AnythingOfType("service.ChatInput")).
		Return(run, nil)
	svc.On("ExecuteChat", mock.Anything, run, mock.Anything).
		Run(func(args mock.Arguments) {
			em := args.Get(2).(service.Emitter)
			_ = em.Emit(service.Event{Type: service.EventRoundStart, Round: 1})
			_ = em.Emit(service.Event{Type: service.EventDone})
		})

	req := httptest.NewRequest(http.MethodPost, "/chat", chatBody(t, nil))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	chatRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	frames := strings.Split(strings.TrimSpace(w.Body.String()), "\n\n")
	require.Len(t, frames, 2)
	assert.Contains(t, frames[0], `"type":"round_start"`)
	assert.Contains(t, frames[1], `"type":"done"`)
	svc.AssertExpectations(t)
}

func TestChat_PrepareErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"session not found", service.ErrSessionNotFound, http.StatusNotFound},
		{"config not found", llm.ErrConfigNotFound, http.StatusNotFound},
		{"session busy", service.ErrSessionBusy, http.StatusConflict},
		{"session inactive", service.ErrSessionInactive, http.StatusBadRequest},
		{"no provider", llm.ErrNoProvider, http.StatusBadRequest},
		{"unexpected", context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockRoundtableService{}
			svc.On("PrepareChat", mock.Anything, testUserID, mock.Anything).Return(nil, tt.err)

			req := httptest.NewRequest(http.MethodPost, "/chat", chatBody(t, nil))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			chatRouter(svc).ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
		})
	}
}

func TestChat_RequestValidation(t *testing.T) {
	svc := &MockRoundtableService{}
	r := chatRouter(svc)

	tests := []struct {
		name string
		body gin.H
	}{
		{"missing content", gin.H{"content": ""}},
		{"rounds above limit", gin.H{"max_rounds": 4}},
		{"bad debate style", gin.H{"debate_style": "shouting"}},
		{"bad kb timing", gin.H{"kb_timing": "hourly"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/chat", chatBody(t, tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	svc.AssertNotCalled(t, "PrepareChat", mock.Anything, mock.Anything, mock.Anything)
}
