// Package llm wraps the upstream chat-completion providers behind one
// streaming interface so the orchestrator never touches vendor SDK types.
package llm

import (
	"context"
	"errors"
)

// Message roles on the provider boundary.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ImageRef is an image forwarded alongside a user message. Exactly one of
// URL or Base64 is set; Base64 payloads are request-scoped and never stored.
type ImageRef struct {
	URL      string
	Base64   string
	MimeType string
}

// Message is one flattened prompt message. Structured transcript state is
// flattened into this shape only at the provider boundary.
type Message struct {
	Role    string
	Content string
	Images  []ImageRef
}

// GenerateConfig is the per-call generation knobs.
type GenerateConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// ChunkFunc receives streamed text increments. Returning an error aborts
// the stream and propagates out of ChatStream.
type ChunkFunc func(chunk string) error

// Provider is one upstream LLM backend.
type Provider interface {
	Name() string
	ChatStream(ctx context.Context, msgs []Message, cfg GenerateConfig, fn ChunkFunc) error
	Embed(ctx context.Context, text string) ([]float32, error)
}

var (
	// ErrConfigNotFound is returned when a request names an unknown
	// provider configuration id.
	ErrConfigNotFound = errors.New("llm config not found")

	// ErrConfigInactive is returned when the named configuration exists but
	// is disabled.
	ErrConfigInactive = errors.New("llm config is inactive")

	// ErrNoProvider is returned when no usable provider can be assembled
	// from configuration.
	ErrNoProvider = errors.New("no llm provider available")

	// ErrEmbeddingUnsupported is returned by providers without an
	// embedding endpoint.
	ErrEmbeddingUnsupported = errors.New("provider does not support embeddings")
)

func SystemMessage(text string) Message    { return Message{Role: RoleSystem, Content: text} }
func UserMessage(text string) Message      { return Message{Role: RoleUser, Content: text} }
func AssistantMessage(text string) Message { return Message{Role: RoleAssistant, Content: text} }
