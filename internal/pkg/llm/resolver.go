package llm

import (
	"fmt"

	"github.com/aiwendy/roundtable/internal/config"
	"github.com/aiwendy/roundtable/internal/modules/model"
)

// Overrides carries the per-request LLM knobs from a chat call. Zero values
// mean "fall through to the session, then configuration defaults".
type Overrides struct {
	ConfigID    string
	Provider    string
	Model       string
	Temperature *float64
	MaxTokens   *int
}

// Plan is a fully resolved generation plan: an ordered attempt chain plus
// the request/session level overrides. Per-coach temperature and per-phase
// token limits are applied by the caller on top of these.
type Plan struct {
	Attempts    []Attempt
	Model       string
	Temperature *float64
	MaxTokens   *int
}

// ProviderFactory builds a provider from a named configuration entry.
type ProviderFactory func(pc config.ProviderConfig) (Provider, error)

// Resolver turns session state, request overrides and static configuration
// into a Plan. Resolution is strict about explicitly named configurations:
// an unknown or inactive config id is an error, never a silent fallback.
type Resolver struct {
	cfg       *config.Config
	providers map[string]Provider
	factory   ProviderFactory
}

func NewResolver(cfg *config.Config, providers map[string]Provider) *Resolver {
	r := &Resolver{cfg: cfg, providers: providers}
	r.factory = r.buildFromConfig
	return r
}

// WithFactory overrides provider construction for named configs. Used by
// tests to avoid real SDK clients.
func (r *Resolver) WithFactory(f ProviderFactory) *Resolver {
	r.factory = f
	return r
}

func (r *Resolver) Resolve(sess *model.RoundtableSession, ov Overrides) (*Plan, error) {
	plan := &Plan{
		Temperature: ov.Temperature,
		MaxTokens:   ov.MaxTokens,
	}
	if plan.Temperature == nil {
		plan.Temperature = sess.LLMTemperature
	}
	if plan.MaxTokens == nil {
		plan.MaxTokens = sess.LLMMaxTokens
	}

	configDefaultModel := ""

	configID := ov.ConfigID
	if configID == "" && sess.LLMConfigID != nil {
		configID = *sess.LLMConfigID
	}

	switch {
	case configID != "":
		pc, ok := r.lookupConfig(configID)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrConfigNotFound, configID)
		}
		if !pc.Active {
			return nil, fmt.Errorf("%w: %q", ErrConfigInactive, configID)
		}
		p, err := r.factory(pc)
		if err != nil {
			return nil, err
		}
		configDefaultModel = pc.DefaultModel
		plan.Attempts = []Attempt{{Provider: p}}

	case r.explicitProvider(sess, ov) != "":
		name := r.explicitProvider(sess, ov)
		p, ok := r.providers[name]
		if !ok {
			return nil, fmt.Errorf("%w: provider %q is not configured", ErrNoProvider, name)
		}
		plan.Attempts = []Attempt{{Provider: p}}

	default:
		for _, name := range r.cfg.LLM.PreferredOrder {
			if p, ok := r.providers[name]; ok {
				plan.Attempts = append(plan.Attempts, Attempt{Provider: p})
			}
		}
		if len(plan.Attempts) == 0 {
			return nil, ErrNoProvider
		}
	}

	plan.Model = firstNonEmpty(
		ov.Model,
		strOrEmpty(sess.LLMModel),
		configDefaultModel,
		r.cfg.LLM.DefaultModel,
		"gpt-4o-mini",
	)
	return plan, nil
}

func (r *Resolver) explicitProvider(sess *model.RoundtableSession, ov Overrides) string {
	if ov.Provider != "" {
		return ov.Provider
	}
	if sess.LLMProvider != nil {
		return *sess.LLMProvider
	}
	return ""
}

func (r *Resolver) lookupConfig(id string) (config.ProviderConfig, bool) {
	for _, pc := range r.cfg.LLM.Configs {
		if pc.ID == id {
			return pc, true
		}
	}
	return config.ProviderConfig{}, false
}

func (r *Resolver) buildFromConfig(pc config.ProviderConfig) (Provider, error) {
	switch pc.Provider {
	case "openai":
		return NewOpenAIProvider(pc.APIKey, pc.BaseURL, r.cfg.LLM.OpenAI.EmbeddingModel), nil
	case "anthropic":
		return NewAnthropicProvider(pc.APIKey), nil
	case "gemini":
		return NewGeminiProvider(pc.APIKey)
	default:
		// Unknown providers with a base URL are treated as OpenAI-compatible
		// gateways; without one there is nothing to dial.
		if pc.BaseURL != "" {
			return NewOpenAIProvider(pc.APIKey, pc.BaseURL, r.cfg.LLM.OpenAI.EmbeddingModel), nil
		}
		return nil, fmt.Errorf("%w: unknown provider %q", ErrNoProvider, pc.Provider)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
