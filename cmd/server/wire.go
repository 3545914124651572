package main

import (
	"fmt"

	"houser/internal/cache"
	"houser/internal/config"
	"houser/internal/handler"
	"houser/internal/logger"
	"houser/internal/metrics"
	"houser/internal/repository"
	"houser/internal/service"
)

// services holds the long-lived components shared by all commands
type services struct {
	cfg      *config.Config
	repo     *repository.PostgresRepository
	cache    cache.Store
	metrics  *metrics.Metrics
	search   *service.SearchService
	stats    *service.StatsService
	narrator *service.LLMNarrator
	pipeline *service.Pipeline
}

func newServices(cfg *config.Config) (*services, error) {
	s := &services{cfg: cfg, metrics: metrics.New()}

	repo, err := repository.NewPostgresRepository(
		cfg.PostgreSQL.Driver,
		cfg.GetPostgreSQLDSN(),
		cfg.PostgreSQL.MaxConnections,
		cfg.PostgreSQL.MaxIdleConnections,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s.repo = repo
	logger.Info("connected to postgres", "driver", cfg.PostgreSQL.Driver)

	switch cfg.Cache.Backend {
	case "redis":
		store, err := cache.NewRedisStoreFromURL(cfg.Cache.RedisURL)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.cache = store
	default:
		s.cache = cache.NewMemoryStore()
	}
	logger.Info("cache initialized", "backend", cfg.Cache.Backend, "ttl", cfg.Cache.TTL)

	llm, err := service.NewLLMClient(cfg.OpenAI, s.metrics)
	if err != nil {
		s.Close()
		return nil, err
	}
	if llm.Enabled() {
		logger.Info("language model initialized", "api_base", cfg.OpenAI.APIBase, "model", cfg.OpenAI.ChatModel)
	} else {
		logger.Warn("OPENAI_API_KEY not set, chat planning is disabled")
	}

	s.stats = service.NewStatsService(repo, s.cache, cfg.Cache.TTL, s.metrics)
	s.search = service.NewSearchService(repo, s.stats,
		service.WithSearchCache(s.cache, cfg.Cache.TTL),
		service.WithSearchMetrics(s.metrics),
	)
	s.narrator = service.NewLLMNarrator(llm)

	s.pipeline, err = service.NewPipeline(
		service.NewLLMPlanner(llm, cfg.Pipeline.HistoryTurns),
		s.search,
		s.stats,
		s.narrator,
		service.WithWorkers(cfg.Pipeline.Workers),
		service.WithFetchTimeout(cfg.Pipeline.FetchTimeout),
		service.WithChatPageSize(cfg.Search.ChatPageSize),
		service.WithPipelineMetrics(s.metrics),
	)
	if err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

func (s *services) routes() handler.Routes {
	return handler.Routes{
		Chat:      handler.NewChatHandler(s.pipeline),
		Search:    handler.NewSearchHandler(s.search, s.cfg.Search.DefaultPageSize, s.cfg.Search.MaxPageSize),
		Stats:     handler.NewStatsHandler(s.stats),
		Assistant: handler.NewAssistantHandler(s.narrator, s.cache),
		Metrics:   s.metrics.Handler(),
		Database:  s.repo,
		Build:     handler.BuildInfo{Version: Version, BuildTime: BuildTime, GitCommit: GitCommit},
	}
}

// Close releases the pool, cache and database in reverse order of creation
func (s *services) Close() {
	if s.pipeline != nil {
		s.pipeline.Release()
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			logger.ErrorErr(err, "failed to close cache")
		}
	}
	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			logger.ErrorErr(err, "failed to close database")
		}
	}
}
