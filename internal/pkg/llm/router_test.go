package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// stubProvider scripts one provider's behavior for router tests.
type stubProvider struct {
	name string

	chunks   []string
	err      error
	errAfter int // emit this many chunks before failing; -1 means fail immediately

	calls     int
	embedVec  []float32
	embedErr  error
	lastModel string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) ChatStream(ctx context.Context, msgs []Message, cfg GenerateConfig, fn ChunkFunc) error {
	s.calls++
	s.lastModel = cfg.Model
	if s.err != nil && s.errAfter <= 0 {
		return s.err
	}
	for i, chunk := range s.chunks {
		if s.err != nil && i == s.errAfter {
			return s.err
		}
		if err := fn(chunk); err != nil {
			return err
		}
	}
	if s.err != nil && s.errAfter >= len(s.chunks) {
		return s.err
	}
	return nil
}

func (s *stubProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.embedErr != nil {
		return nil, s.embedErr
	}
	if s.embedVec != nil {
		return s.embedVec, nil
	}
	return nil, ErrEmbeddingUnsupported
}

func collectChunks(out *[]string) ChunkFunc {
	return func(chunk string) error {
		*out = append(*out, chunk)
		return nil
	}
}

func TestRouterChatStream_FailoverBeforeFirstChunk(t *testing.T) {
	ctx := context.Background()
	broken := &stubProvider{name: "openai", err: errors.New("upstream 500")}
	healthy := &stubProvider{name: "anthropic", chunks: []string{"你好，", "我们开始吧。"}}

	var got []string
	err := NewRouter(zap.NewNop()).ChatStream(ctx,
		[]Attempt{{Provider: broken}, {Provider: healthy}},
		[]Message{UserMessage("hi")},
		GenerateConfig{Model: "gpt-4o-mini"},
		collectChunks(&got))

	assert.NoError(t, err)
	assert.Equal(t, []string{"你好，", "我们开始吧。"}, got)
	assert.Equal(t, 1, broken.calls)
	assert.Equal(t, 1, healthy.calls)
}

func TestRouterChatStream_NoFailoverAfterFirstChunk(t *testing.T) {
	ctx := context.Background()
	// Fails after one chunk has already reached the caller.
	partial := &stubProvider{name: "openai", chunks: []string{"第一段"}, err: errors.New("connection reset"), errAfter: 1}
	fallback := &stubProvider{name: "anthropic", chunks: []string{"should never run"}}

	var got []string
	err := NewRouter(zap.NewNop()).ChatStream(ctx,
		[]Attempt{{Provider: partial}, {Provider: fallback}},
		[]Message{UserMessage("hi")},
		GenerateConfig{},
		collectChunks(&got))

	assert.Error(t, err)
	assert.Equal(t, []string{"第一段"}, got)
	assert.Equal(t, 0, fallback.calls)
}

func TestRouterChatStream_AllAttemptsFail(t *testing.T) {
	ctx := context.Background()
	errA := errors.New("a down")
	errB := errors.New("b down")

	err := NewRouter(zap.NewNop()).ChatStream(ctx,
		[]Attempt{
			{Provider: &stubProvider{name: "a", err: errA}},
			{Provider: &stubProvider{name: "b", err: errB}},
		},
		nil, GenerateConfig{},
		func(string) error { return nil })

	assert.ErrorIs(t, err, errB)
}

func TestRouterChatStream_EmptyAttempts(t *testing.T) {
	err := NewRouter(zap.NewNop()).ChatStream(context.Background(), nil, nil, GenerateConfig{},
		func(string) error { return nil })
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestRouterChatStream_AttemptModelOverride(t *testing.T) {
	p := &stubProvider{name: "openai", chunks: []string{"ok"}}
	err := NewRouter(zap.NewNop()).ChatStream(context.Background(),
		[]Attempt{{Provider: p, Model: "gpt-4o"}},
		nil, GenerateConfig{Model: "gpt-4o-mini"},
		func(string) error { return nil })

	assert.NoError(t, err)
	assert.Equal(t, "gpt-4o", p.lastModel)
}

func TestRouterChatStream_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &stubProvider{name: "openai", chunks: []string{"ok"}}
	err := NewRouter(zap.NewNop()).ChatStream(ctx, []Attempt{{Provider: p}}, nil, GenerateConfig{},
		func(string) error { return nil })

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, p.calls)
}

func TestRouterEmbed_SkipsUnsupportedProviders(t *testing.T) {
	ctx := context.Background()
	noEmbed := &stubProvider{name: "anthropic", embedErr: ErrEmbeddingUnsupported}
	withEmbed := &stubProvider{name: "openai", embedVec: []float32{0.1, 0.2}}

	vec, err := NewRouter(zap.NewNop()).Embed(ctx,
		[]Attempt{{Provider: noEmbed}, {Provider: withEmbed}}, "question")

	assert.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)
}

func TestRouterEmbed_NoUsableProvider(t *testing.T) {
	_, err := NewRouter(zap.NewNop()).Embed(context.Background(),
		[]Attempt{{Provider: &stubProvider{name: "anthropic", embedErr: ErrEmbeddingUnsupported}}}, "q")
	assert.ErrorIs(t, err, ErrEmbeddingUnsupported)
}
