package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiwendy/roundtable/internal/config"
	"github.com/aiwendy/roundtable/internal/modules/model"
)

func resolverFixture() (*Resolver, *stubProvider, *stubProvider) {
	openai := &stubProvider{name: "openai"}
	anthropic := &stubProvider{name: "anthropic"}

	cfg := &config.Config{}
	cfg.LLM.PreferredOrder = []string{"openai", "anthropic"}
	cfg.LLM.DefaultModel = "gpt-4o-mini"
	cfg.LLM.Configs = []config.ProviderConfig{
		{ID: "team-gateway", Provider: "openai", DefaultModel: "gpt-4.1", Active: true},
		{ID: "retired", Provider: "openai", Active: false},
	}

	r := NewResolver(cfg, map[string]Provider{"openai": openai, "anthropic": anthropic})
	r.WithFactory(func(pc config.ProviderConfig) (Provider, error) {
		return &stubProvider{name: pc.Provider}, nil
	})
	return r, openai, anthropic
}

func strPtr(s string) *string { return &s }

func TestResolver_PreferredOrderDefault(t *testing.T) {
	r, openai, anthropic := resolverFixture()

	plan, err := r.Resolve(&model.RoundtableSession{}, Overrides{})
	require.NoError(t, err)

	require.Len(t, plan.Attempts, 2)
	assert.Same(t, Provider(openai), plan.Attempts[0].Provider)
	assert.Same(t, Provider(anthropic), plan.Attempts[1].Provider)
	assert.Equal(t, "gpt-4o-mini", plan.Model)
}

func TestResolver_ModelPrecedence(t *testing.T) {
	r, _, _ := resolverFixture()

	tests := []struct {
		name string
		sess *model.RoundtableSession
		ov   Overrides
		want string
	}{
		{
			name: "request override wins",
			sess: &model.RoundtableSession{LLMModel: strPtr("claude-sonnet-4-5")},
			ov:   Overrides{Model: "gpt-4o"},
			want: "gpt-4o",
		},
		{
			name: "session model beats config defaults",
			sess: &model.RoundtableSession{LLMModel: strPtr("claude-sonnet-4-5")},
			want: "claude-sonnet-4-5",
		},
		{
			name: "named config default model",
			sess: &model.RoundtableSession{LLMConfigID: strPtr("team-gateway")},
			want: "gpt-4.1",
		},
		{
			name: "global default as last resort",
			sess: &model.RoundtableSession{},
			want: "gpt-4o-mini",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := r.Resolve(tt.sess, tt.ov)
			require.NoError(t, err)
			assert.Equal(t, tt.want, plan.Model)
		})
	}
}

func TestResolver_NamedConfig(t *testing.T) {
	r, _, _ := resolverFixture()

	plan, err := r.Resolve(&model.RoundtableSession{}, Overrides{ConfigID: "team-gateway"})
	require.NoError(t, err)
	require.Len(t, plan.Attempts, 1)
	assert.Equal(t, "openai", plan.Attempts[0].Provider.Name())
}

func TestResolver_NamedConfigErrors(t *testing.T) {
	r, _, _ := resolverFixture()

	_, err := r.Resolve(&model.RoundtableSession{}, Overrides{ConfigID: "missing"})
	assert.ErrorIs(t, err, ErrConfigNotFound)

	_, err = r.Resolve(&model.RoundtableSession{}, Overrides{ConfigID: "retired"})
	assert.ErrorIs(t, err, ErrConfigInactive)

	// An inactive session-level config is just as strict as a request-level
	// one: no silent fallback to the preferred order.
	_, err = r.Resolve(&model.RoundtableSession{LLMConfigID: strPtr("retired")}, Overrides{})
	assert.ErrorIs(t, err, ErrConfigInactive)
}

func TestResolver_ExplicitProvider(t *testing.T) {
	r, _, anthropic := resolverFixture()

	plan, err := r.Resolve(&model.RoundtableSession{}, Overrides{Provider: "anthropic"})
	require.NoError(t, err)
	require.Len(t, plan.Attempts, 1)
	assert.Same(t, Provider(anthropic), plan.Attempts[0].Provider)

	_, err = r.Resolve(&model.RoundtableSession{}, Overrides{Provider: "mistral"})
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestResolver_NoProvidersConfigured(t *testing.T) {
	cfg := &config.Config{}
	cfg.LLM.PreferredOrder = []string{"openai"}
	r := NewResolver(cfg, nil)

	_, err := r.Resolve(&model.RoundtableSession{}, Overrides{})
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestResolver_OverridesCarriedIntoPlan(t *testing.T) {
	r, _, _ := resolverFixture()
	temp := 0.2
	maxTokens := 800

	plan, err := r.Resolve(&model.RoundtableSession{}, Overrides{Temperature: &temp, MaxTokens: &maxTokens})
	require.NoError(t, err)
	require.NotNil(t, plan.Temperature)
	assert.Equal(t, 0.2, *plan.Temperature)
	require.NotNil(t, plan.MaxTokens)
	assert.Equal(t, 800, *plan.MaxTokens)

	// Session-level values fill in when the request leaves them empty.
	sessTemp := 1.1
	plan, err = r.Resolve(&model.RoundtableSession{LLMTemperature: &sessTemp}, Overrides{})
	require.NoError(t, err)
	require.NotNil(t, plan.Temperature)
	assert.Equal(t, 1.1, *plan.Temperature)
}
