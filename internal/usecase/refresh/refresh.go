// Package refresh keeps the news index warm by fetching configured
// topics on a cron schedule and ingesting the articles.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"cricsight/internal/domain"
	"cricsight/internal/news"
	"cricsight/internal/search"
)

// taskTimeout bounds one full refresh pass.
const taskTimeout = 5 * time.Minute

// Fetcher fetches articles for a topic.
type Fetcher interface {
	Fetch(ctx context.Context, query string, maxResults int, from time.Time) ([]news.Article, error)
}

// Index receives fetched articles.
type Index interface {
	EnsureCollection(ctx context.Context) error
	UpsertArticles(ctx context.Context, articles []search.IndexedArticle) (int, error)
}

// Config controls the refresh loop.
type Config struct {
	Schedule    string   // cron expression
	Topics      []string // queries fetched each pass
	MaxArticles int      // per topic
}

// Refresher periodically pulls fresh articles for a fixed topic list
// and upserts them into the vector index.
type Refresher struct {
	cfg      Config
	fetcher  Fetcher
	index    Index
	embedder domain.EmbeddingProvider
	logger   *slog.Logger

	cron    *cron.Cron
	mu      sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewRefresher creates a refresher. It does not start the schedule.
func NewRefresher(cfg Config, fetcher Fetcher, index Index, embedder domain.EmbeddingProvider, logger *slog.Logger) *Refresher {
	if cfg.MaxArticles <= 0 {
		cfg.MaxArticles = 5
	}
	return &Refresher{
		cfg:      cfg,
		fetcher:  fetcher,
		index:    index,
		embedder: embedder,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start schedules the refresh loop. Idempotent.
func (r *Refresher) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())

	_, err := r.cron.AddFunc(r.cfg.Schedule, func() {
		r.mu.Lock()
		ctx := r.ctx
		r.mu.Unlock()
		if ctx == nil {
			return
		}

		taskCtx, cancel := context.WithTimeout(ctx, taskTimeout)
		defer cancel()

		start := time.Now()
		added, err := r.RefreshOnce(taskCtx)
		if err != nil {
			r.logger.Warn("news refresh failed",
				"error", err,
				"duration", time.Since(start))
			return
		}
		r.logger.Info("news refresh completed",
			"articles_added", added,
			"duration", time.Since(start))
	})
	if err != nil {
		r.cancel()
		r.ctx, r.cancel = nil, nil
		return fmt.Errorf("refresh: invalid schedule %q: %w", r.cfg.Schedule, err)
	}

	r.cron.Start()
	r.started = true
	r.logger.Info("news refresher started",
		"schedule", r.cfg.Schedule,
		"topics", len(r.cfg.Topics))
	return nil
}

// Stop halts the schedule and waits for a running pass to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.started = false
	cancel := r.cancel
	r.ctx, r.cancel = nil, nil
	r.mu.Unlock()

	cancel()
	<-r.cron.Stop().Done()
	r.logger.Info("news refresher stopped")
}

// RefreshOnce runs one pass over every topic. A failing topic is logged
// and skipped; the pass only fails when no topic could be refreshed.
func (r *Refresher) RefreshOnce(ctx context.Context) (int, error) {
	if err := r.index.EnsureCollection(ctx); err != nil {
		return 0, fmt.Errorf("refresh: ensure collection: %w", err)
	}

	// Only look back far enough to cover the gap since the last pass.
	from := time.Now().Add(-24 * time.Hour)

	totalAdded := 0
	failures := 0
	for _, topic := range r.cfg.Topics {
		added, err := r.refreshTopic(ctx, topic, from)
		if err != nil {
			failures++
			r.logger.Warn("topic refresh failed", "topic", topic, "error", err)
			continue
		}
		totalAdded += added
	}

	if failures > 0 && failures == len(r.cfg.Topics) {
		return 0, fmt.Errorf("refresh: all %d topics failed", failures)
	}
	return totalAdded, nil
}

func (r *Refresher) refreshTopic(ctx context.Context, topic string, from time.Time) (int, error) {
	articles, err := r.fetcher.Fetch(ctx, topic, r.cfg.MaxArticles, from)
	if err != nil {
		return 0, err
	}
	if len(articles) == 0 {
		return 0, nil
	}

	texts := make([]string, len(articles))
	for i, a := range articles {
		texts[i] = a.Title + " " + a.Description
	}
	embeddings, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed articles: %w", err)
	}
	if len(embeddings) != len(articles) {
		return 0, fmt.Errorf("embedding count mismatch: %d articles, %d vectors", len(articles), len(embeddings))
	}

	indexed := make([]search.IndexedArticle, len(articles))
	for i, a := range articles {
		indexed[i] = search.IndexedArticle{Article: a, Embedding: embeddings[i]}
	}
	return r.index.UpsertArticles(ctx, indexed)
}
