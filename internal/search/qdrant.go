// Package search provides the semantic news index backed by Qdrant.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"golang.org/x/sync/singleflight"

	"cricsight/internal/domain"
	"cricsight/internal/news"
)

// Config holds configuration for connecting to Qdrant.
type Config struct {
	URL        string // e.g. "http://localhost:6333"
	APIKey     string
	Collection string
	Dims       uint64
}

// IndexedArticle is an article together with its embedding, ready for upsert.
type IndexedArticle struct {
	Article   news.Article
	Embedding []float32
}

// Match is one nearest-neighbor search hit. Distance is ascending:
// the most similar article comes first.
type Match struct {
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Source      string  `json:"source"`
	PublishedAt string  `json:"published_at"`
	Description string  `json:"description"`
	Distance    float64 `json:"distance"`
}

// Index is the article vector index. Article identity is the normalized
// URL, so re-inserting the same article is a no-op at the index layer.
type Index struct {
	client     *qdrant.Client
	collection string
	dims       uint64
	logger     *slog.Logger

	ensureGroup singleflight.Group
}

// parseURL extracts host, port, and TLS flag from a Qdrant URL.
// The REST port (6333) is mapped to the gRPC port (6334).
func parseURL(rawURL string) (host string, port int, useTLS bool, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		return "", 0, false, fmt.Errorf("search: invalid qdrant URL: %q", rawURL)
	}

	useTLS = u.Scheme == "https"
	host = u.Hostname()

	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, fmt.Errorf("search: invalid port in qdrant URL: %q", portStr)
		}
		if p == 6333 {
			port = 6334
		} else {
			port = p
		}
	} else {
		port = 6334
	}

	return host, port, useTLS, nil
}

// New creates an Index and connects to the Qdrant server via gRPC.
func New(cfg Config, logger *slog.Logger) (*Index, error) {
	host, port, useTLS, err := parseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("search: connect to qdrant at %s:%d: %w", host, port, err)
	}

	return &Index{
		client:     client,
		collection: cfg.Collection,
		dims:       cfg.Dims,
		logger:     logger,
	}, nil
}

// Close releases the gRPC connection.
func (x *Index) Close() error {
	if x.client == nil {
		return nil
	}
	err := x.client.Close()
	x.client = nil
	return err
}

// ArticleID normalizes a URL into the stable article identifier:
// slashes and colons become underscores. Two fetches of the same URL
// always produce the same ID.
func ArticleID(rawURL string) string {
	return strings.NewReplacer("/", "_", ":", "_").Replace(rawURL)
}

// pointID derives the deterministic Qdrant point UUID for an article ID.
func pointID(articleID string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(articleID))
}

// EnsureCollection creates the collection if it doesn't already exist.
// Concurrent callers are collapsed into a single creation attempt.
func (x *Index) EnsureCollection(ctx context.Context) error {
	_, err, _ := x.ensureGroup.Do("ensure", func() (any, error) {
		exists, err := x.client.CollectionExists(ctx, x.collection)
		if err != nil {
			return nil, fmt.Errorf("search: check collection exists: %w", err)
		}
		if exists {
			x.logger.Debug("qdrant: collection already exists", "collection", x.collection)
			return nil, nil
		}

		if err := x.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: x.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     x.dims,
				Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			return nil, fmt.Errorf("search: create collection %q: %w", x.collection, err)
		}
		x.logger.Info("qdrant: created collection", "collection", x.collection, "dims", x.dims)
		return nil, nil
	})
	return err
}

// UpsertArticles inserts articles into the index and reports how many were
// new. IDs are derived from normalized URLs, so duplicates overwrite
// rather than accumulate.
func (x *Index) UpsertArticles(ctx context.Context, articles []IndexedArticle) (added int, err error) {
	if len(articles) == 0 {
		return 0, nil
	}

	ids := make([]*qdrant.PointId, len(articles))
	for i, a := range articles {
		ids[i] = qdrant.NewID(pointID(ArticleID(a.Article.URL)).String())
	}

	existing, err := x.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: x.collection,
		Ids:            ids,
		WithPayload:    qdrant.NewWithPayload(false),
	})
	if err != nil {
		return 0, domain.NewDomainError("search.UpsertArticles", domain.ErrVectorStore, err.Error())
	}
	known := make(map[string]struct{}, len(existing))
	for _, pt := range existing {
		known[pt.Id.GetUuid()] = struct{}{}
	}

	points := make([]*qdrant.PointStruct, len(articles))
	for i, a := range articles {
		id := ids[i].GetUuid()
		if _, ok := known[id]; !ok {
			added++
		}
		payload := map[string]any{
			"article_id":  ArticleID(a.Article.URL),
			"title":       a.Article.Title,
			"url":         a.Article.URL,
			"source":      a.Article.Source,
			"description": a.Article.Description,
		}
		if !a.Article.PublishedAt.IsZero() {
			payload["published_at"] = a.Article.PublishedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		}
		points[i] = &qdrant.PointStruct{
			Id:      ids[i],
			Vectors: qdrant.NewVectorsDense(a.Embedding),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	if _, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: x.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	}); err != nil {
		return 0, domain.NewDomainError("search.UpsertArticles", domain.ErrVectorStore,
			fmt.Sprintf("upsert %d points: %v", len(points), err))
	}
	return added, nil
}

// Search returns the topK articles nearest to embedding, most similar
// first. Cosine similarity scores are reported as distances (1 - score)
// so downstream consumers see ascending-is-better ordering.
func (x *Index) Search(ctx context.Context, embedding []float32, topK int) ([]Match, error) {
	limit := uint64(topK)
	scored, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: x.collection,
		Query:          qdrant.NewQueryDense(embedding),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, domain.NewDomainError("search.Search", domain.ErrVectorSearch, err.Error())
	}

	matches := make([]Match, 0, len(scored))
	for _, sp := range scored {
		m := Match{Distance: 1 - float64(sp.Score)}
		for key, val := range sp.Payload {
			switch key {
			case "title":
				m.Title = val.GetStringValue()
			case "url":
				m.URL = val.GetStringValue()
			case "source":
				m.Source = val.GetStringValue()
			case "published_at":
				m.PublishedAt = val.GetStringValue()
			case "description":
				m.Description = val.GetStringValue()
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// Count returns the number of articles in the index.
func (x *Index) Count(ctx context.Context) (uint64, error) {
	n, err := x.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: x.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, domain.NewDomainError("search.Count", domain.ErrVectorSearch, err.Error())
	}
	return n, nil
}
