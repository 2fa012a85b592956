package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nidhogg/statcrew/internal/agent"
	"github.com/nidhogg/statcrew/internal/bus"
	"github.com/nidhogg/statcrew/internal/config"
	"github.com/nidhogg/statcrew/internal/crew"
	"github.com/nidhogg/statcrew/internal/embedding"
	"github.com/nidhogg/statcrew/internal/provider"
	"github.com/nidhogg/statcrew/internal/rag"
	"github.com/nidhogg/statcrew/internal/skill"
	"github.com/nidhogg/statcrew/internal/stats"
	"github.com/nidhogg/statcrew/internal/store"
	"github.com/nidhogg/statcrew/internal/vectorstore"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app holds the collaborators shared by every subcommand. Nothing here
// dials a server; Postgres and Redis are opened on demand.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	llm     *provider.Router
	nba     *stats.NBAClient
	mlb     *stats.MLBClient
	skills  *skill.Manager
	tools   *agent.ToolRegistry
	builder *crew.Builder
	vectors *vectorstore.Client
	index   *rag.Index
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.Server.LogLevel)
	if err != nil {
		return nil, err
	}
	logger.Debug("config loaded", zap.String("path", configPath))

	a := &app{cfg: cfg, logger: logger}
	a.llm = newProviderRouter(cfg.Providers, logger)

	statsTimeout := time.Duration(cfg.Stats.TimeoutSec) * time.Second
	a.nba = stats.NewNBAClient(cfg.Stats.NBAEndpoint, statsTimeout, logger)
	a.mlb = stats.NewMLBClient(cfg.Stats.MLBEndpoint, statsTimeout, logger)

	a.skills, err = loadSkills(cfg.Crew.SkillsDir, logger)
	if err != nil {
		return nil, err
	}

	a.vectors, a.index, err = newIndex(cfg, a.llm, logger)
	if err != nil {
		return nil, err
	}

	a.tools = agent.NewToolRegistry()
	agent.RegisterBuiltinTools(a.tools, nil)
	stats.RegisterTools(a.tools, a.nba, a.mlb)
	agent.RegisterRAGTools(a.tools, rag.NewProviderAdapter(a.index), cfg.RAG.TopK)

	defs, err := crew.LoadDefinitions(cfg.Crew.DefinitionsFile)
	if err != nil {
		return nil, err
	}
	a.builder = crew.NewBuilder(crew.Config{
		Models:              cfg.Crew.Models,
		DefaultLookbackDays: cfg.Crew.DefaultLookbackDays,
	}, defs, a.skills, logger)
	return a, nil
}

func newLogger(level string) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// newProviderRouter registers every configured provider. Unknown types are
// skipped with a warning.
func newProviderRouter(providers []config.ProviderConfig, logger *zap.Logger) *provider.Router {
	router := provider.NewRouter(logger)
	for _, pc := range providers {
		provCfg := provider.ProviderConfig{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey,
			Models: pc.Models, Extra: pc.Extra,
			Timeout: time.Duration(pc.TimeoutSec) * time.Second,
		}
		switch pc.Type {
		case "openai", "groq", "ollama":
			router.Register(provider.NewOpenAIProvider(provCfg, logger), pc.Models...)
		case "anthropic":
			router.Register(provider.NewAnthropicProvider(provCfg, logger), pc.Models...)
		default:
			logger.Warn("unknown provider type", zap.String("id", pc.ID), zap.String("type", pc.Type))
			continue
		}
		if pc.Default {
			router.SetDefault(pc.ID)
		}
		if len(pc.Fallbacks) > 0 {
			router.SetFallbacks(pc.ID, pc.Fallbacks)
		}
	}
	return router
}

func loadSkills(dir string, logger *zap.Logger) (*skill.Manager, error) {
	mgr := skill.NewManager()
	skill.RegisterBuiltins(mgr)
	if dir == "" {
		return mgr, nil
	}
	plugins, err := skill.LoadFromDir(dir)
	if err != nil {
		return nil, err
	}
	for _, s := range plugins {
		mgr.Add(s)
	}
	if len(plugins) > 0 {
		logger.Info("loaded skill plugins", zap.String("dir", dir), zap.Int("count", len(plugins)))
	}
	return mgr, nil
}

func newIndex(cfg *config.Config, chat agent.Chatter, logger *zap.Logger) (*vectorstore.Client, *rag.Index, error) {
	embedder, err := embedding.New(embedding.Config{
		Provider:  cfg.Embedding.Provider,
		Endpoint:  cfg.Embedding.Endpoint,
		Model:     cfg.Embedding.Model,
		APIKey:    cfg.Embedding.APIKey,
		Dimension: cfg.Embedding.Dimension,
	})
	if err != nil {
		return nil, nil, err
	}
	cached, err := embedding.NewCachedProvider(embedder, cfg.Embedding.CacheSize)
	if err != nil {
		return nil, nil, err
	}
	vectors, err := vectorstore.NewClient(vectorstore.QdrantConfig{
		Host: cfg.Database.Qdrant.Host,
		Port: cfg.Database.Qdrant.Port,
	})
	if err != nil {
		return nil, nil, err
	}
	ix := rag.NewIndex(rag.Config{
		Collection:   cfg.RAG.Collection,
		ChunkSize:    cfg.RAG.ChunkSize,
		ChunkOverlap: cfg.RAG.ChunkOverlap,
		TopK:         cfg.RAG.TopK,
		Model:        cfg.RAG.Model,
	}, cached, vectors, chat, logger)
	return vectors, ix, nil
}

// runner builds a crew runner that reports task events to sink, which may
// be nil.
func (a *app) runner(sink crew.EventSink) *crew.Runner {
	exec := agent.NewExecutor(a.llm, a.tools, a.cfg.Crew.MaxToolRounds, a.logger)
	return crew.NewRunner(exec, crew.RunnerConfig{
		Parallelism: a.cfg.Crew.Parallelism,
		TaskTimeout: a.cfg.Crew.TaskTimeout(),
	}, sink, a.logger)
}

// openStore connects to Postgres and applies migrations. It returns nil
// without error when no DSN is configured.
func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	if a.cfg.Database.Postgres.DSN == "" {
		return nil, nil
	}
	s, err := store.New(ctx, a.cfg.Database.Postgres.DSN, a.logger)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx, a.cfg.Server.MigrationsDir); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// openBus connects to the Redis event stream. It returns nil without error
// when no URL is configured.
func (a *app) openBus(ctx context.Context) (*bus.EventBus, error) {
	if a.cfg.Database.Redis.URL == "" {
		return nil, nil
	}
	return bus.New(ctx, a.cfg.Database.Redis.URL, a.cfg.Database.Redis.Stream, a.logger)
}

func (a *app) Close() {
	if a.vectors != nil {
		a.vectors.Close()
	}
	_ = a.logger.Sync()
}
