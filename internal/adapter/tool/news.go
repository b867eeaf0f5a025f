package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"cricsight/internal/domain"
	"cricsight/internal/infra/tracer"
	"cricsight/internal/news"
	"cricsight/internal/search"
)

const (
	defaultTopK        = 5
	defaultMaxArticles = 5
)

// ArticleIndex is the slice of the vector index the news tools need.
// Satisfied by *search.Index.
type ArticleIndex interface {
	EnsureCollection(ctx context.Context) error
	UpsertArticles(ctx context.Context, articles []search.IndexedArticle) (int, error)
	Search(ctx context.Context, embedding []float32, topK int) ([]search.Match, error)
}

// NewsFetcher fetches articles from the external news API.
// Satisfied by *news.Client.
type NewsFetcher interface {
	Fetch(ctx context.Context, query string, maxResults int, from time.Time) ([]news.Article, error)
}

// SearchIndexTool performs semantic search over the article vector index.
type SearchIndexTool struct {
	index    ArticleIndex
	embedder domain.EmbeddingProvider
	logger   *slog.Logger
}

// NewSearchIndexTool creates the search_chromadb tool.
func NewSearchIndexTool(index ArticleIndex, embedder domain.EmbeddingProvider, logger *slog.Logger) *SearchIndexTool {
	return &SearchIndexTool{index: index, embedder: embedder, logger: logger}
}

func (t *SearchIndexTool) Name() string { return "search_chromadb" }

func (t *SearchIndexTool) Description() string {
	return "Search cricket news in ChromaDB using semantic similarity. " +
		"Returns relevant articles based on meaning, not just keywords. " +
		"If no results found, use query_cricket_articles to get fresh news."
}

func (t *SearchIndexTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {
					"type": "string",
					"description": "Search query (e.g., 'Kohli century', 'India Australia Test match')"
				},
				"top_k": {
					"type": "integer",
					"description": "Number of results to return (default: 5)",
					"default": 5,
					"minimum": 1,
					"maximum": 20
				}
			},
			"required": ["query"]
		}`),
	}
}

type searchParams struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

func (t *SearchIndexTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.search_chromadb", t.logger, params,
		func(ctx context.Context, span trace.Span, p searchParams) (any, error) {
			if p.TopK == 0 {
				p.TopK = defaultTopK
			}
			if err := ValidateAll(
				RequireField("query", p.Query),
				ValidateRange("top_k", p.TopK, 1, 20),
			); err != nil {
				return map[string]any{"error": err.Error()}, nil
			}

			vectors, err := t.embedder.Embed(ctx, []string{p.Query})
			if err != nil {
				return map[string]any{"error": fmt.Sprintf("embedding failed: %v", err)}, nil
			}

			matches, err := t.index.Search(ctx, vectors[0], p.TopK)
			if err != nil {
				return map[string]any{"error": fmt.Sprintf("vector search failed: %v", err)}, nil
			}
			span.SetAttributes(tracer.IntAttr("search.results", len(matches)))

			return map[string]any{
				"query":         p.Query,
				"results_count": len(matches),
				"results":       matches,
			}, nil
		})
}

// FetchArticlesTool fetches fresh news from the GNews API and ingests
// the articles into the vector index, so a subsequent search finds them.
// It is the only tool with a durable side effect.
type FetchArticlesTool struct {
	client   NewsFetcher
	index    ArticleIndex
	embedder domain.EmbeddingProvider
	logger   *slog.Logger
}

// NewFetchArticlesTool creates the query_cricket_articles tool. client
// may be nil when no API key is configured; calls then report the error
// inline.
func NewFetchArticlesTool(client NewsFetcher, index ArticleIndex, embedder domain.EmbeddingProvider, logger *slog.Logger) *FetchArticlesTool {
	return &FetchArticlesTool{client: client, index: index, embedder: embedder, logger: logger}
}

func (t *FetchArticlesTool) Name() string { return "query_cricket_articles" }

func (t *FetchArticlesTool) Description() string {
	return "Fetch fresh cricket news from GNews API and automatically ingest to ChromaDB. " +
		"Use when search_chromadb returns no results. " +
		"After calling this, call search_chromadb again to get the new articles."
}

func (t *FetchArticlesTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {
					"type": "string",
					"description": "Search query for GNews API"
				},
				"max_articles": {
					"type": "integer",
					"description": "Max articles to fetch (default: 5)",
					"default": 5,
					"minimum": 1,
					"maximum": 10
				}
			},
			"required": ["query"]
		}`),
	}
}

type fetchParams struct {
	Query       string `json:"query"`
	MaxArticles int    `json:"max_articles"`
}

func (t *FetchArticlesTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.query_cricket_articles", t.logger, params,
		func(ctx context.Context, span trace.Span, p fetchParams) (any, error) {
			if p.MaxArticles == 0 {
				p.MaxArticles = defaultMaxArticles
			}
			if err := ValidateAll(
				RequireField("query", p.Query),
				ValidateRange("max_articles", p.MaxArticles, 1, 10),
			); err != nil {
				return map[string]any{"error": err.Error()}, nil
			}
			if t.client == nil {
				return map[string]any{"error": "CRICSIGHT_NEWS_API_KEY environment variable not set"}, nil
			}

			articles, err := t.client.Fetch(ctx, p.Query, p.MaxArticles, time.Time{})
			if err != nil {
				return map[string]any{"error": err.Error()}, nil
			}

			added := 0
			if len(articles) > 0 {
				added, err = t.ingest(ctx, articles)
				if err != nil {
					return map[string]any{"error": fmt.Sprintf("ingestion failed: %v", err)}, nil
				}
			}
			span.SetAttributes(
				tracer.IntAttr("news.fetched", len(articles)),
				tracer.IntAttr("news.added", added),
			)

			return map[string]any{
				"query":          p.Query,
				"articles_count": len(articles),
				"articles_added": added,
				"articles":       articles,
			}, nil
		})
}

func (t *FetchArticlesTool) ingest(ctx context.Context, articles []news.Article) (int, error) {
	texts := make([]string, len(articles))
	for i, a := range articles {
		texts[i] = a.Title + " " + a.Description
	}
	vectors, err := t.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}
	if len(vectors) != len(articles) {
		return 0, fmt.Errorf("embedding count mismatch: got %d vectors for %d articles", len(vectors), len(articles))
	}

	indexed := make([]search.IndexedArticle, len(articles))
	for i, a := range articles {
		indexed[i] = search.IndexedArticle{Article: a, Embedding: vectors[i]}
	}

	if err := t.index.EnsureCollection(ctx); err != nil {
		return 0, err
	}
	return t.index.UpsertArticles(ctx, indexed)
}
