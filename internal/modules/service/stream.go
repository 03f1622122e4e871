package service

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
)

// Event types emitted during a chat run, in protocol order.
const (
	EventRoundStart     = "round_start"
	EventCoachStart     = "coach_start"
	EventContent        = "content"
	EventCoachEnd       = "coach_end"
	EventRoundEnd       = "round_end"
	EventModeratorStart = "moderator_start"
	EventModeratorEnd   = "moderator_end"
	EventDone           = "done"
	EventError          = "error"
)

// Event is one typed protocol event. The stream is strictly sequential:
// events for one speaker are never interleaved with another's.
type Event struct {
	Type        string `json:"type"`
	Round       int    `json:"round,omitempty"`
	MessageType string `json:"message_type,omitempty"`
	CoachID     string `json:"coach_id,omitempty"`
	CoachName   string `json:"coach_name,omitempty"`
	CoachAvatar string `json:"coach_avatar,omitempty"`
	Content     string `json:"content,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Emitter delivers protocol events to the client. Emit returning an error
// means the transport is gone; the orchestrator treats that as pure
// cancellation, not a discussion failure.
type Emitter interface {
	Emit(ev Event) error
}

// SSEEmitter writes events as server-sent `data:` frames, flushing after
// every event. A small pacing delay after content fragments keeps the
// client-side rendering smooth.
type SSEEmitter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	pace    time.Duration
}

func NewSSEEmitter(w http.ResponseWriter, pace time.Duration) (*SSEEmitter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	return &SSEEmitter{w: w, flusher: flusher, pace: pace}, nil
}

func (e *SSEEmitter) Emit(ev Event) error {
	b, err := sonic.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", b); err != nil {
		return err
	}
	e.flusher.Flush()
	if ev.Type == EventContent && e.pace > 0 {
		time.Sleep(e.pace)
	}
	return nil
}
