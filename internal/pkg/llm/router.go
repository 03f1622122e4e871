package llm

import (
	"context"

	"go.uber.org/zap"
)

// Attempt is one (provider, model) pair in an ordered fallback chain.
type Attempt struct {
	Provider Provider
	Model    string
}

// Router executes an ordered attempt chain against the providers.
type Router struct {
	log *zap.Logger
}

func NewRouter(log *zap.Logger) *Router {
	return &Router{log: log}
}

// ChatStream tries each attempt in order. Failover happens only before the
// first chunk is delivered: once any text has reached the caller the stream
// is committed and errors propagate instead of retrying, which would emit
// duplicated prose.
func (r *Router) ChatStream(ctx context.Context, attempts []Attempt, msgs []Message, cfg GenerateConfig, fn ChunkFunc) error {
	if len(attempts) == 0 {
		return ErrNoProvider
	}

	var lastErr error
	for _, attempt := range attempts {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		callCfg := cfg
		if attempt.Model != "" {
			callCfg.Model = attempt.Model
		}

		delivered := false
		err := attempt.Provider.ChatStream(ctx, msgs, callCfg, func(chunk string) error {
			delivered = true
			return fn(chunk)
		})
		if err == nil {
			return nil
		}
		if delivered || ctx.Err() != nil {
			return err
		}

		r.log.Warn("provider failed before first chunk, trying next",
			zap.String("provider", attempt.Provider.Name()),
			zap.String("model", callCfg.Model),
			zap.Error(err))
		lastErr = err
	}
	return lastErr
}

// Embed returns the first successful embedding from the attempt chain,
// skipping providers without an embedding endpoint.
func (r *Router) Embed(ctx context.Context, attempts []Attempt, text string) ([]float32, error) {
	var lastErr error = ErrEmbeddingUnsupported
	for _, attempt := range attempts {
		vec, err := attempt.Provider.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		if err != ErrEmbeddingUnsupported {
			r.log.Warn("embedding failed",
				zap.String("provider", attempt.Provider.Name()),
				zap.Error(err))
		}
		lastErr = err
	}
	return nil, lastErr
}
