// Command cricsight-mcp serves the cricket tool catalog over the Model
// Context Protocol on stdio, for use from MCP-compatible clients.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cricsight/internal/adapter/embedding"
	"cricsight/internal/adapter/tool"
	"cricsight/internal/domain"
	"cricsight/internal/infra/config"
	"cricsight/internal/infra/logger"
	"cricsight/internal/mcpserver"
	"cricsight/internal/news"
	"cricsight/internal/search"
	"cricsight/internal/stats"
)

func main() {
	configPath := "config.yaml"
	for i := 1; i < len(os.Args); i++ {
		switch os.Args[i] {
		case "--help", "-h":
			fmt.Println(`cricsight-mcp - cricket tools over the Model Context Protocol (stdio)

USAGE:
    cricsight-mcp [--config PATH]`)
			return
		case "--config":
			if i+1 < len(os.Args) {
				configPath = os.Args[i+1]
				i++
			}
		default:
			if !strings.HasPrefix(os.Args[i], "-") {
				continue
			}
			fmt.Fprintf(os.Stderr, "unknown flag: %s\n", os.Args[i])
			os.Exit(1)
		}
	}

	if err := run(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// MCP uses stdout for the protocol; force logs onto stderr.
	if cfg.Logger.Output == "" || cfg.Logger.Output == "stdout" {
		cfg.Logger.Output = "stderr"
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger setup: %w", err)
	}
	defer closeLog()

	registry, cleanup, err := buildRegistry(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	return mcpserver.New(registry, log).ServeStdio()
}

// buildRegistry wires the tool backends without the chat loop: the MCP
// server only needs the tools themselves.
func buildRegistry(cfg *config.Config, log *slog.Logger) (*tool.Registry, func(), error) {
	var embedder domain.EmbeddingProvider
	switch cfg.Embedding.Provider {
	case "ollama":
		opts := []embedding.OllamaOption{
			embedding.WithOllamaModel(cfg.Embedding.Model),
			embedding.WithOllamaDimensions(cfg.Embedding.Dimensions),
		}
		if cfg.Embedding.BaseURL != "" {
			opts = append(opts, embedding.WithOllamaBaseURL(cfg.Embedding.BaseURL))
		}
		embedder = embedding.NewOllamaProvider(opts...)
	case "openai":
		opts := []embedding.OpenAIOption{
			embedding.WithOpenAIModel(cfg.Embedding.Model),
			embedding.WithOpenAIDimensions(cfg.Embedding.Dimensions),
		}
		if cfg.Embedding.BaseURL != "" {
			opts = append(opts, embedding.WithOpenAIBaseURL(cfg.Embedding.BaseURL))
		}
		embedder = embedding.NewOpenAIProvider(cfg.Embedding.APIKey, opts...)
	default:
		return nil, nil, fmt.Errorf("unsupported embedding provider: %q", cfg.Embedding.Provider)
	}
	embedder = embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)

	var store *stats.Store
	if s, err := stats.Open(cfg.Stats.DBPath, log); err != nil {
		log.Warn("statistics database unavailable", "path", cfg.Stats.DBPath, "error", err)
	} else {
		store = s
	}

	index, err := search.New(search.Config{
		URL:        cfg.Search.URL,
		APIKey:     cfg.Search.APIKey,
		Collection: cfg.Search.Collection,
		Dims:       uint64(cfg.Search.Dims),
	}, log)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, nil, fmt.Errorf("search index: %w", err)
	}

	var fetcher tool.NewsFetcher
	if cfg.News.APIKey != "" {
		var opts []news.ClientOption
		if cfg.News.Endpoint != "" {
			opts = append(opts, news.WithEndpoint(cfg.News.Endpoint))
		}
		if cfg.News.RatePerSecond > 0 {
			opts = append(opts, news.WithRateLimit(cfg.News.RatePerSecond, cfg.News.Burst))
		}
		fetcher = news.NewClient(cfg.News.APIKey, log, opts...)
	}

	registry := tool.NewRegistry(log)
	for _, t := range []domain.Tool{
		tool.NewSchemaTool(store, cfg.Stats.DBPath, log),
		tool.NewExecuteSQLTool(store, cfg.Stats.DBPath, log),
		tool.NewSampleQueriesTool(cfg.Stats.DBPath, log),
		tool.NewSearchIndexTool(index, embedder, log),
		tool.NewFetchArticlesTool(fetcher, index, embedder, log),
	} {
		if err := registry.Register(t); err != nil {
			if store != nil {
				store.Close()
			}
			index.Close()
			return nil, nil, fmt.Errorf("register %s: %w", t.Name(), err)
		}
	}

	cleanup := func() {
		if err := index.Close(); err != nil {
			log.Warn("search index close failed", "error", err)
		}
		if store != nil {
			if err := store.Close(); err != nil {
				log.Warn("stats store close failed", "error", err)
			}
		}
	}
	return registry, cleanup, nil
}
