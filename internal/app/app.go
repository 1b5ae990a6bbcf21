// Package app wires configuration into the running assistant: dataset,
// draft cache, language models, tools and the orchestrator.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"marketing-analyst/internal/agent"
	"marketing-analyst/internal/analytics/executor"
	"marketing-analyst/internal/analytics/synthesizer"
	"marketing-analyst/internal/api"
	"marketing-analyst/internal/common/config"
	"marketing-analyst/internal/common/database"
	apperrors "marketing-analyst/internal/common/errors"
	"marketing-analyst/internal/common/logger"
	"marketing-analyst/internal/common/observability"
	"marketing-analyst/internal/llm"
)

const connectInterval = time.Second

type App struct {
	Config       *config.Config
	Dataset      *database.Dataset
	Redis        *database.RedisClient
	Executor     *executor.Executor
	Schema       *synthesizer.SchemaSource
	Synthesizer  *synthesizer.Synthesizer
	Tools        []agent.Tool
	Orchestrator *agent.Orchestrator

	obs *observability.Observability
	log logger.Logger
}

type options struct {
	chatModel llm.ChatModel
	sqlModel  llm.ChatModel
	obs       *observability.Observability
}

// Option customizes Build.
type Option func(*options)

// WithChatModel uses m for both the tool loop and SQL drafting instead of
// the configured provider.
func WithChatModel(m llm.ChatModel) Option {
	return func(o *options) {
		o.chatModel = m
		o.sqlModel = m
	}
}

func WithObservability(obs *observability.Observability) Option {
	return func(o *options) { o.obs = obs }
}

// Build connects the dataset (with retries) and assembles every component.
// Missing model credentials do not fail the build: chat then answers with a
// configuration error while the template endpoints keep working.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	log = logger.ForComponent(log, "app")

	dataset, err := connectDataset(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Dataset: dataset, obs: o.obs, log: log}
	a.Redis = connectRedis(ctx, cfg.Redis, log)

	a.Executor = executor.New(dataset, cfg.Database, log)
	a.Schema = synthesizer.NewSchemaSource(cfg.Agent.SchemaPath, config.GetDuration(cfg.Agent.SchemaCacheTTL), log)

	chatModel, sqlModel, modelErr := buildModels(cfg, o, log)

	var cache synthesizer.DraftCache
	if a.Redis != nil {
		cache = synthesizer.NewRedisDraftCache(a.Redis.Client, config.GetDuration(cfg.Redis.DraftTTL))
	}
	a.Synthesizer = synthesizer.New(sqlModel, a.Executor, a.Schema, cache, log)
	a.Tools = agent.DefaultTools(a.Executor, a.Synthesizer)

	if modelErr != nil {
		apperrors.LogError(log, "Language model unavailable; chat disabled", modelErr, nil)
		a.Orchestrator = agent.NewUnconfiguredOrchestrator(modelErr, cfg.Agent, o.obs, log)
		return a, nil
	}

	loop := agent.NewToolLoop(chatModel, cfg.Agent, o.obs, log)
	loop.RegisterTools(a.Tools...)
	a.Orchestrator = agent.NewOrchestrator(loop, cfg.Agent, o.obs, log)
	return a, nil
}

func buildModels(cfg *config.Config, o options, log logger.Logger) (llm.ChatModel, llm.ChatModel, error) {
	if o.chatModel != nil {
		return o.chatModel, o.sqlModel, nil
	}
	chatModel, err := llm.New(&cfg.LLM, cfg.LLM.Temperature, log)
	if err != nil {
		return nil, nil, err
	}
	sqlModel, err := llm.New(&cfg.LLM, cfg.LLM.SQLTemperature, log)
	if err != nil {
		return nil, nil, err
	}
	return chatModel, sqlModel, nil
}

func connectDataset(ctx context.Context, cfg config.DatabaseConfig, log logger.Logger) (*database.Dataset, error) {
	tries := cfg.ConnectRetries
	if tries < 1 {
		tries = 1
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = connectInterval

	attempt := 0
	dataset, err := backoff.Retry(ctx, func() (*database.Dataset, error) {
		attempt++
		ds, err := database.OpenDataset(cfg)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if err := ds.Ping(ctx); err != nil {
			_ = ds.Close()
			log.Warn("Dataset connection failed, retrying", map[string]interface{}{
				"attempt":     attempt,
				"maxAttempts": tries,
				"error":       err.Error(),
			})
			return nil, err
		}
		return ds, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(tries)))
	if err != nil {
		return nil, apperrors.NewDatabaseConnectionFailedError(err)
	}

	log.Info("Dataset connected", map[string]interface{}{"dialect": string(dataset.Dialect)})
	return dataset, nil
}

// connectRedis returns nil when the cache is disabled or unreachable; the
// synthesizer then drafts every question afresh.
func connectRedis(ctx context.Context, cfg config.RedisConfig, log logger.Logger) *database.RedisClient {
	if !cfg.Enabled {
		return nil
	}
	client := database.NewRedis(cfg)
	if err := client.Ping(ctx); err != nil {
		log.Warn("Redis unavailable, SQL draft cache disabled", map[string]interface{}{
			"address": cfg.Address,
			"error":   err.Error(),
		})
		_ = client.Close()
		return nil
	}
	log.Info("Redis connected", map[string]interface{}{"address": cfg.Address})
	return client
}

// Checks returns the readiness checks of the connected dependencies.
func (a *App) Checks() map[string]api.Pinger {
	checks := map[string]api.Pinger{"dataset": a.Dataset}
	if a.Redis != nil {
		checks["redis"] = a.Redis
	}
	return checks
}

// Handler returns the HTTP router.
func (a *App) Handler() http.Handler {
	return api.NewServer(a.Orchestrator, a.Executor, a.Checks(), a.Config, a.log).Router()
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.log.Warn("Failed to close redis", map[string]interface{}{"error": err.Error()})
		}
	}
	if a.Dataset != nil {
		if err := a.Dataset.Close(); err != nil {
			a.log.Warn("Failed to close dataset", map[string]interface{}{"error": err.Error()})
		}
	}
}
