package main

import (
	"fmt"
	"log/slog"

	"cricsight/internal/adapter/embedding"
	"cricsight/internal/adapter/llm"
	"cricsight/internal/domain"
	"cricsight/internal/infra/config"
)

// initLLM builds the chat provider wrapped in a circuit breaker.
func initLLM(cfg *config.Config, log *slog.Logger) (domain.LLMProvider, error) {
	var provider domain.LLMProvider
	switch cfg.Provider.Type {
	case "openai":
		provider = llm.NewOpenAIProvider(cfg.Provider, log)
	case "anthropic":
		provider = llm.NewAnthropicProvider(cfg.Provider, log)
	default:
		return nil, fmt.Errorf("unsupported provider type: %q", cfg.Provider.Type)
	}

	log.Info("llm provider initialized",
		"provider", provider.Name(),
		"model", cfg.Provider.Model,
	)
	return llm.NewCircuitBreakerProvider(provider, llm.CircuitBreakerConfig{}, log), nil
}

// initEmbedder builds the embedding provider with an LRU cache in front.
func initEmbedder(cfg *config.Config, log *slog.Logger) (domain.EmbeddingProvider, error) {
	var provider domain.EmbeddingProvider
	switch cfg.Embedding.Provider {
	case "ollama":
		opts := []embedding.OllamaOption{
			embedding.WithOllamaModel(cfg.Embedding.Model),
			embedding.WithOllamaDimensions(cfg.Embedding.Dimensions),
		}
		if cfg.Embedding.BaseURL != "" {
			opts = append(opts, embedding.WithOllamaBaseURL(cfg.Embedding.BaseURL))
		}
		provider = embedding.NewOllamaProvider(opts...)
	case "openai":
		opts := []embedding.OpenAIOption{
			embedding.WithOpenAIModel(cfg.Embedding.Model),
			embedding.WithOpenAIDimensions(cfg.Embedding.Dimensions),
		}
		if cfg.Embedding.BaseURL != "" {
			opts = append(opts, embedding.WithOpenAIBaseURL(cfg.Embedding.BaseURL))
		}
		provider = embedding.NewOpenAIProvider(cfg.Embedding.APIKey, opts...)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", cfg.Embedding.Provider)
	}

	log.Info("embedding provider initialized",
		"provider", provider.Name(),
		"model", cfg.Embedding.Model,
		"dimensions", provider.Dimensions(),
	)
	return embedding.NewCachedEmbedder(provider, cfg.Embedding.CacheSize), nil
}
