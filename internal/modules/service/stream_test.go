package service

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEEmitter_Frames(t *testing.T) {
	rec := httptest.NewRecorder()
	em, err := NewSSEEmitter(rec, 0)
	require.NoError(t, err)

	require.NoError(t, em.Emit(Event{Type: EventRoundStart, Round: 1}))
	require.NoError(t, em.Emit(Event{Type: EventContent, CoachID: "rational", Content: "先看数据"}))
	require.NoError(t, em.Emit(Event{Type: EventDone}))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))

	body := rec.Body.String()
	frames := strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n")
	require.Len(t, frames, 3)
	for _, f := range frames {
		assert.True(t, strings.HasPrefix(f, "data: "), "frame %q", f)
	}
	assert.Contains(t, frames[0], `"type":"round_start"`)
	assert.Contains(t, frames[0], `"round":1`)
	assert.Contains(t, frames[1], `"coach_id":"rational"`)
	assert.Contains(t, frames[1], "先看数据")

	// Zero-valued optional fields stay off the wire.
	assert.NotContains(t, frames[2], "coach_id")
	assert.NotContains(t, frames[2], "round")
}
