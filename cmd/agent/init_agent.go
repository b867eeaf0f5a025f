package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"cricsight/internal/adapter/tool"
	"cricsight/internal/domain"
	"cricsight/internal/infra/config"
	"cricsight/internal/news"
	"cricsight/internal/search"
	"cricsight/internal/stats"
	"cricsight/internal/usecase"
	"cricsight/internal/usecase/refresh"
)

// Components holds everything the chat loop needs, plus the resources
// that must be released on shutdown.
type Components struct {
	Agent     *usecase.Agent
	Registry  *tool.Registry
	Sessions  *usecase.SessionManager
	Refresher *refresh.Refresher // nil unless refresh is enabled

	statsStore *stats.Store
	searchIdx  *search.Index
	mcpSession *tool.MCPSession
	logger     *slog.Logger
}

// Close releases held connections. Safe to call once at shutdown.
func (c *Components) Close() {
	if c.Refresher != nil {
		c.Refresher.Stop()
	}
	if c.mcpSession != nil {
		c.mcpSession.Close()
	}
	if c.searchIdx != nil {
		if err := c.searchIdx.Close(); err != nil {
			c.logger.Warn("search index close failed", "error", err)
		}
	}
	if c.statsStore != nil {
		if err := c.statsStore.Close(); err != nil {
			c.logger.Warn("stats store close failed", "error", err)
		}
	}
}

// initComponents wires the full agent: providers, tool backends, tool
// registry, session manager, and the optional background refresher.
func initComponents(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Components, error) {
	llmProvider, err := initLLM(cfg, log)
	if err != nil {
		return nil, err
	}
	embedder, err := initEmbedder(cfg, log)
	if err != nil {
		return nil, err
	}

	c := &Components{logger: log}

	// The statistics database is optional at startup. The SQL tools stay
	// registered and report the missing file per call.
	store, err := stats.Open(cfg.Stats.DBPath, log)
	if err != nil {
		log.Warn("statistics database unavailable", "path", cfg.Stats.DBPath, "error", err)
	} else {
		c.statsStore = store
	}

	index, err := search.New(search.Config{
		URL:        cfg.Search.URL,
		APIKey:     cfg.Search.APIKey,
		Collection: cfg.Search.Collection,
		Dims:       uint64(cfg.Search.Dims),
	}, log)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("search index: %w", err)
	}
	c.searchIdx = index

	// The news client is nil without an API key; the fetch tool reports
	// the missing key per call.
	var newsClient *news.Client
	if cfg.News.APIKey != "" {
		var opts []news.ClientOption
		if cfg.News.Endpoint != "" {
			opts = append(opts, news.WithEndpoint(cfg.News.Endpoint))
		}
		if cfg.News.RatePerSecond > 0 {
			opts = append(opts, news.WithRateLimit(cfg.News.RatePerSecond, cfg.News.Burst))
		}
		newsClient = news.NewClient(cfg.News.APIKey, log, opts...)
	} else {
		log.Warn("no news API key configured, fresh article fetching disabled")
	}

	registry := tool.NewRegistry(log)
	if err := registerTools(registry, c.statsStore, cfg.Stats.DBPath, index, newsClient, embedder, log); err != nil {
		c.Close()
		return nil, err
	}
	c.Registry = registry

	// External MCP servers contribute extra tools.
	if len(cfg.MCP.Servers) > 0 {
		mcpSession := tool.NewMCPSession(cfg.MCP.Servers, log)
		if err := mcpSession.Initialize(ctx); err != nil {
			log.Warn("mcp session init failed, external tools disabled", "error", err)
		} else {
			c.mcpSession = mcpSession
			mcpTools, err := mcpSession.Tools()
			if err != nil {
				c.Close()
				return nil, fmt.Errorf("mcp tools: %w", err)
			}
			for _, t := range mcpTools {
				if err := registry.Register(t); err != nil {
					log.Warn("mcp tool registration failed", "tool", t.Name(), "error", err)
				}
			}
			log.Info("external mcp tools registered", "count", len(mcpTools))
		}
	}

	systemPrompt := cfg.Agent.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = usecase.DefaultSystemPrompt()
	}
	contextBuilder := usecase.NewContextBuilder(
		systemPrompt, cfg.Provider.Model, cfg.Agent.ContextBudgetTokens,
	).WithSampling(cfg.Agent.MaxTokens, cfg.Agent.Temperature)

	c.Agent = usecase.NewAgent(usecase.AgentDeps{
		LLM:             llmProvider,
		Tools:           registry,
		ContextBuilder:  contextBuilder,
		Synthesizer:     usecase.NewSynthesizer(llmProvider, cfg.Provider.Model, log),
		Logger:          log,
		MaxToolRounds:   cfg.Agent.MaxToolRounds,
		TurnTimeout:     cfg.Agent.TurnTimeout,
		ErrorClassifier: usecase.NewErrorClassifier(),
	})

	c.Sessions = usecase.NewSessionManager(sessionDataDir())

	if cfg.News.Refresh.Enabled {
		if newsClient == nil {
			log.Warn("news refresh enabled but no API key configured, skipping")
		} else {
			refresher := refresh.NewRefresher(refresh.Config{
				Schedule:    cfg.News.Refresh.Schedule,
				Topics:      cfg.News.Refresh.Topics,
				MaxArticles: cfg.News.Refresh.MaxArticles,
			}, newsClient, index, embedder, log)
			if err := refresher.Start(); err != nil {
				c.Close()
				return nil, err
			}
			c.Refresher = refresher
		}
	}

	return c, nil
}

// registerTools registers the five cricket tools. Backends may be nil;
// the tools degrade to per-call error payloads.
func registerTools(
	registry *tool.Registry,
	store *stats.Store,
	dbPath string,
	index *search.Index,
	newsClient *news.Client,
	embedder domain.EmbeddingProvider,
	log *slog.Logger,
) error {
	// A nil *news.Client must stay a nil interface inside the tool.
	var fetcher tool.NewsFetcher
	if newsClient != nil {
		fetcher = newsClient
	}

	for _, t := range []domain.Tool{
		tool.NewSchemaTool(store, dbPath, log),
		tool.NewExecuteSQLTool(store, dbPath, log),
		tool.NewSampleQueriesTool(dbPath, log),
		tool.NewSearchIndexTool(index, embedder, log),
		tool.NewFetchArticlesTool(fetcher, index, embedder, log),
	} {
		if err := registry.Register(t); err != nil {
			return fmt.Errorf("register %s: %w", t.Name(), err)
		}
	}
	return nil
}

// initRefresher builds a standalone refresher for the one-shot refresh
// command.
func initRefresher(cfg *config.Config, log *slog.Logger) (*refresh.Refresher, error) {
	if cfg.News.APIKey == "" {
		return nil, fmt.Errorf("CRICSIGHT_NEWS_API_KEY environment variable not set")
	}
	embedder, err := initEmbedder(cfg, log)
	if err != nil {
		return nil, err
	}
	index, err := search.New(search.Config{
		URL:        cfg.Search.URL,
		APIKey:     cfg.Search.APIKey,
		Collection: cfg.Search.Collection,
		Dims:       uint64(cfg.Search.Dims),
	}, log)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	var opts []news.ClientOption
	if cfg.News.Endpoint != "" {
		opts = append(opts, news.WithEndpoint(cfg.News.Endpoint))
	}
	if cfg.News.RatePerSecond > 0 {
		opts = append(opts, news.WithRateLimit(cfg.News.RatePerSecond, cfg.News.Burst))
	}
	client := news.NewClient(cfg.News.APIKey, log, opts...)

	topics := cfg.News.Refresh.Topics
	if len(topics) == 0 {
		topics = []string{"cricket"}
	}
	return refresh.NewRefresher(refresh.Config{
		Schedule:    cfg.News.Refresh.Schedule,
		Topics:      topics,
		MaxArticles: cfg.News.Refresh.MaxArticles,
	}, client, index, embedder, log), nil
}

func sessionDataDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(dir, ".cricsight", "sessions")
	}
	return ".cricsight/sessions"
}
