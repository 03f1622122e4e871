package config

import (
	"strings"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DatabaseConfig struct {
	DSN         string `mapstructure:"dsn"`
	MaxOpen     int    `mapstructure:"max_open"`
	MaxIdle     int    `mapstructure:"max_idle"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
	EnableTLS   bool   `mapstructure:"enable_tls"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	PoolSize  int    `mapstructure:"pool_size"`
	EnableTLS bool   `mapstructure:"enable_tls"`
}

type RabbitMQConfig struct {
	URL       string `mapstructure:"url"`
	EnableTLS bool   `mapstructure:"enable_tls"`

	ExchangeName struct {
		RoundtableEvents string `mapstructure:"roundtable_events"`
	} `mapstructure:"exchange_name"`
	RoutingKey struct {
		TurnCompleted string `mapstructure:"turn_completed"`
	} `mapstructure:"routing_key"`
}

type AuthConfig struct {
	BearerTokenPrefix string `mapstructure:"bearer_token_prefix"`
	SecretPepper      string `mapstructure:"secret_pepper"`

	// DefaultUserToken provisions a dev/bootstrap user at startup when set.
	DefaultUserToken      string `mapstructure:"default_user_token"`
	DefaultUserIdentifier string `mapstructure:"default_user_identifier"`
}

// ProviderConfig is one named upstream LLM configuration. Sessions and chat
// requests may reference it by ID; inactive configs resolve to an error.
type ProviderConfig struct {
	ID           string `mapstructure:"id"`
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	BaseURL      string `mapstructure:"base_url"`
	DefaultModel string `mapstructure:"default_model"`
	Active       bool   `mapstructure:"active"`
}

type LLMConfig struct {
	// PreferredOrder is the router failover order when no explicit config
	// is selected, e.g. ["openai", "anthropic", "gemini"].
	PreferredOrder []string `mapstructure:"preferred_order"`

	OpenAI struct {
		APIKey         string `mapstructure:"api_key"`
		BaseURL        string `mapstructure:"base_url"`
		EmbeddingModel string `mapstructure:"embedding_model"`
	} `mapstructure:"openai"`
	Anthropic struct {
		APIKey string `mapstructure:"api_key"`
	} `mapstructure:"anthropic"`
	Gemini struct {
		APIKey string `mapstructure:"api_key"`
	} `mapstructure:"gemini"`

	DefaultModel       string           `mapstructure:"default_model"`
	HistoryTokenBudget int              `mapstructure:"history_token_budget"`
	StreamPaceMs       int              `mapstructure:"stream_pace_ms"`
	Configs            []ProviderConfig `mapstructure:"configs"`
}

type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	OtlpEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RabbitMQ  RabbitMQConfig  `mapstructure:"rabbitmq"`
	Auth      AuthConfig      `mapstructure:"auth"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// Load reads configuration from an optional roundtable.yaml plus environment
// variables (ROUNDTABLE_DATABASE_DSN, ROUNDTABLE_LLM_OPENAI_API_KEY, ...).
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("roundtable")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/roundtable")

	v.SetEnvPrefix("ROUNDTABLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is fine, env + defaults still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "roundtable-api")
	v.SetDefault("app.env", "development")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("log.level", "info")

	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=roundtable port=5432 sslmode=disable")
	v.SetDefault("database.max_open", 20)
	v.SetDefault("database.max_idle", 10)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange_name.roundtable_events", "roundtable.events")
	v.SetDefault("rabbitmq.routing_key.turn_completed", "roundtable.turn.completed")

	v.SetDefault("auth.bearer_token_prefix", "sk_user_")
	v.SetDefault("auth.secret_pepper", "")
	v.SetDefault("auth.default_user_identifier", "dev@roundtable.local")

	v.SetDefault("llm.preferred_order", []string{"openai", "anthropic", "gemini"})
	v.SetDefault("llm.openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("llm.default_model", "gpt-4o-mini")
	v.SetDefault("llm.history_token_budget", 12000)
	v.SetDefault("llm.stream_pace_ms", 10)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.sample_ratio", 1.0)
}
