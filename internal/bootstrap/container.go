package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aiwendy/roundtable/internal/config"
	"github.com/aiwendy/roundtable/internal/infra/cache"
	"github.com/aiwendy/roundtable/internal/infra/db"
	"github.com/aiwendy/roundtable/internal/infra/logger"
	mq "github.com/aiwendy/roundtable/internal/infra/queue"
	"github.com/aiwendy/roundtable/internal/modules/handler"
	"github.com/aiwendy/roundtable/internal/modules/model"
	"github.com/aiwendy/roundtable/internal/modules/repo"
	"github.com/aiwendy/roundtable/internal/modules/service"
	"github.com/aiwendy/roundtable/internal/pkg/llm"
	"github.com/aiwendy/roundtable/internal/pkg/prompt"
)

func BuildContainer() *do.Injector {
	inj := do.New()

	// config
	do.Provide(inj, func(i *do.Injector) (*config.Config, error) {
		return config.Load()
	})

	// logger
	do.Provide(inj, func(i *do.Injector) (*zap.Logger, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return logger.New(cfg.Log.Level)
	})

	// DB
	do.Provide(inj, func(i *do.Injector) (*gorm.DB, error) {
		cfg := do.MustInvoke[*config.Config](i)
		log := do.MustInvoke[*zap.Logger](i)
		d, err := db.New(cfg)
		if err != nil {
			return nil, err
		}

		if cfg.Database.AutoMigrate {
			// Ensure pgvector extension exists
			_ = d.Exec("CREATE EXTENSION IF NOT EXISTS vector")

			_ = d.AutoMigrate(
				&model.User{},
				&model.Coach{},
				&model.CoachPreset{},
				&model.RoundtableSession{},
				&model.RoundtableMessage{},
				&model.KnowledgeDocument{},
				&model.KnowledgeChunk{},
			)
		}

		if err := EnsureDefaultUserExists(context.Background(), d, cfg, log); err != nil {
			return nil, err
		}
		if err := EnsureCoachCatalog(context.Background(), d, log); err != nil {
			return nil, err
		}

		return d, nil
	})

	// Redis
	do.Provide(inj, func(i *do.Injector) (*redis.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return cache.New(cfg)
	})

	// RabbitMQ DialFunc for connection and reconnection
	do.Provide(inj, func(i *do.Injector) (mq.DialFunc, error) {
		cfg := do.MustInvoke[*config.Config](i)

		dialFn := func() (*amqp.Connection, error) {
			// Check if TLS is enabled via config or URL protocol
			useTLS := cfg.RabbitMQ.EnableTLS || strings.HasPrefix(cfg.RabbitMQ.URL, "amqps://")

			if useTLS {
				tlsConfig := &tls.Config{
					MinVersion: tls.VersionTLS12,
				}
				url := cfg.RabbitMQ.URL
				if strings.HasPrefix(url, "amqp://") {
					url = strings.Replace(url, "amqp://", "amqps://", 1)
				}
				return amqp.DialTLS(url, tlsConfig)
			}

			return amqp.Dial(cfg.RabbitMQ.URL)
		}

		return dialFn, nil
	})

	// RabbitMQ Publisher. The queue is optional: with no URL configured the
	// publisher is nil and event publishing is skipped.
	do.Provide(inj, func(i *do.Injector) (*mq.Publisher, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.RabbitMQ.URL == "" {
			return nil, nil
		}
		log := do.MustInvoke[*zap.Logger](i)
		dialFn := do.MustInvoke[mq.DialFunc](i)
		conn, err := dialFn()
		if err != nil {
			return nil, err
		}
		return mq.NewPublisher(conn, log, cfg)
	})

	// LLM providers keyed by name. Only configured providers are registered;
	// the resolver decides which of them a given chat call may use.
	do.Provide(inj, func(i *do.Injector) (map[string]llm.Provider, error) {
		cfg := do.MustInvoke[*config.Config](i)
		log := do.MustInvoke[*zap.Logger](i)

		providers := make(map[string]llm.Provider)
		if cfg.LLM.OpenAI.APIKey != "" {
			providers["openai"] = llm.NewOpenAIProvider(
				cfg.LLM.OpenAI.APIKey, cfg.LLM.OpenAI.BaseURL, cfg.LLM.OpenAI.EmbeddingModel)
		}
		if cfg.LLM.Anthropic.APIKey != "" {
			providers["anthropic"] = llm.NewAnthropicProvider(cfg.LLM.Anthropic.APIKey)
		}
		if cfg.LLM.Gemini.APIKey != "" {
			p, err := llm.NewGeminiProvider(cfg.LLM.Gemini.APIKey)
			if err != nil {
				log.Warn("gemini provider unavailable", zap.Error(err))
			} else {
				providers["gemini"] = p
			}
		}
		return providers, nil
	})

	do.Provide(inj, func(i *do.Injector) (*llm.Resolver, error) {
		cfg := do.MustInvoke[*config.Config](i)
		providers := do.MustInvoke[map[string]llm.Provider](i)
		return llm.NewResolver(cfg, providers), nil
	})
	do.Provide(inj, func(i *do.Injector) (*llm.Router, error) {
		return llm.NewRouter(do.MustInvoke[*zap.Logger](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*prompt.Assembler, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return prompt.NewAssembler(cfg.LLM.HistoryTokenBudget), nil
	})

	// Repo
	do.Provide(inj, func(i *do.Injector) (repo.UserRepo, error) {
		return repo.NewUserRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.CoachRepo, error) {
		return repo.NewCoachRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.SessionRepo, error) {
		return repo.NewSessionRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.KnowledgeRepo, error) {
		return repo.NewKnowledgeRepo(do.MustInvoke[*gorm.DB](i)), nil
	})

	// Service
	do.Provide(inj, func(i *do.Injector) (service.KnowledgeRetriever, error) {
		providers := do.MustInvoke[map[string]llm.Provider](i)

		// Only OpenAI exposes an embedding endpoint today; without it the
		// retriever degrades to "no knowledge context".
		var embed []llm.Attempt
		if p, ok := providers["openai"]; ok {
			embed = []llm.Attempt{{Provider: p}}
		}
		return service.NewKnowledgeRetriever(
			do.MustInvoke[repo.KnowledgeRepo](i),
			do.MustInvoke[*llm.Router](i),
			embed,
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.SessionService, error) {
		return service.NewSessionService(
			do.MustInvoke[repo.SessionRepo](i),
			do.MustInvoke[repo.CoachRepo](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.RoundtableService, error) {
		return service.NewRoundtableService(
			do.MustInvoke[repo.SessionRepo](i),
			do.MustInvoke[repo.CoachRepo](i),
			do.MustInvoke[service.KnowledgeRetriever](i),
			do.MustInvoke[*llm.Resolver](i),
			do.MustInvoke[*llm.Router](i),
			do.MustInvoke[*prompt.Assembler](i),
			do.MustInvoke[*redis.Client](i),
			do.MustInvoke[*mq.Publisher](i),
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	// Handler
	do.Provide(inj, func(i *do.Injector) (*handler.PresetHandler, error) {
		return handler.NewPresetHandler(do.MustInvoke[service.SessionService](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.SessionHandler, error) {
		return handler.NewSessionHandler(do.MustInvoke[service.SessionService](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.RoundtableHandler, error) {
		return handler.NewRoundtableHandler(
			do.MustInvoke[service.RoundtableService](i),
			do.MustInvoke[*config.Config](i),
		), nil
	})
	return inj
}
