package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"cricsight/internal/news"
	"cricsight/internal/search"
)

// fakeIndex implements ArticleIndex in memory.
type fakeIndex struct {
	matches   []search.Match
	stored    []search.IndexedArticle
	searchErr error
	upsertErr error
}

func (f *fakeIndex) EnsureCollection(_ context.Context) error { return nil }

func (f *fakeIndex) UpsertArticles(_ context.Context, articles []search.IndexedArticle) (int, error) {
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	added := 0
	for _, a := range articles {
		dup := false
		for _, s := range f.stored {
			if search.ArticleID(s.Article.URL) == search.ArticleID(a.Article.URL) {
				dup = true
				break
			}
		}
		if !dup {
			f.stored = append(f.stored, a)
			added++
		}
	}
	return added, nil
}

func (f *fakeIndex) Search(_ context.Context, _ []float32, topK int) ([]search.Match, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if len(f.matches) > topK {
		return f.matches[:topK], nil
	}
	return f.matches, nil
}

// fakeEmbedder returns zero vectors of a fixed dimension.
type fakeEmbedder struct {
	dims int
	err  error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dims)
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return f.dims }
func (f *fakeEmbedder) Name() string    { return "fake" }

// fakeFetcher implements NewsFetcher.
type fakeFetcher struct {
	articles  []news.Article
	err       error
	lastQuery string
	lastMax   int
}

func (f *fakeFetcher) Fetch(_ context.Context, query string, maxResults int, _ time.Time) ([]news.Article, error) {
	f.lastQuery = query
	f.lastMax = maxResults
	if f.err != nil {
		return nil, f.err
	}
	return f.articles, nil
}

func TestSearchIndexToolReturnsMatches(t *testing.T) {
	index := &fakeIndex{
		matches: []search.Match{
			{Title: "Kohli century seals series", URL: "https://example.com/a", Distance: 0.12},
			{Title: "Ashes preview", URL: "https://example.com/b", Distance: 0.45},
		},
	}
	tool := NewSearchIndexTool(index, &fakeEmbedder{dims: 384}, testLogger())

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"query": "Kohli century"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	payload := decodeContent(t, result.Content)
	if payload["query"] != "Kohli century" {
		t.Errorf("query = %v", payload["query"])
	}
	if payload["results_count"] != float64(2) {
		t.Errorf("results_count = %v, want 2", payload["results_count"])
	}
}

func TestSearchIndexToolDefaultTopK(t *testing.T) {
	matches := make([]search.Match, 10)
	for i := range matches {
		matches[i] = search.Match{Title: fmt.Sprintf("article %d", i)}
	}
	tool := NewSearchIndexTool(&fakeIndex{matches: matches}, &fakeEmbedder{dims: 384}, testLogger())

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"query": "cricket"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	payload := decodeContent(t, result.Content)
	if payload["results_count"] != float64(5) {
		t.Errorf("results_count = %v, want default top_k of 5", payload["results_count"])
	}
}

func TestSearchIndexToolTopKRange(t *testing.T) {
	tool := NewSearchIndexTool(&fakeIndex{}, &fakeEmbedder{dims: 384}, testLogger())

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"query": "cricket", "top_k": 50}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	payload := decodeContent(t, result.Content)
	if payload["error"] == nil {
		t.Error("expected range error for top_k=50")
	}
}

func TestSearchIndexToolRequiresQuery(t *testing.T) {
	tool := NewSearchIndexTool(&fakeIndex{}, &fakeEmbedder{dims: 384}, testLogger())

	result, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	payload := decodeContent(t, result.Content)
	if payload["error"] == nil {
		t.Error("expected error for missing query")
	}
}

func TestFetchArticlesToolIngests(t *testing.T) {
	fetcher := &fakeFetcher{
		articles: []news.Article{
			{Title: "India win", Description: "Great chase", URL: "https://example.com/1"},
			{Title: "Smith ton", Description: "Counterattack", URL: "https://example.com/2"},
		},
	}
	index := &fakeIndex{}
	tool := NewFetchArticlesTool(fetcher, index, &fakeEmbedder{dims: 384}, testLogger())

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"query": "India"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	payload := decodeContent(t, result.Content)
	if payload["articles_count"] != float64(2) {
		t.Errorf("articles_count = %v, want 2", payload["articles_count"])
	}
	if payload["articles_added"] != float64(2) {
		t.Errorf("articles_added = %v, want 2", payload["articles_added"])
	}
	if len(index.stored) != 2 {
		t.Errorf("stored = %d, want 2", len(index.stored))
	}
	if fetcher.lastMax != 5 {
		t.Errorf("max articles passed = %d, want default 5", fetcher.lastMax)
	}
}

func TestFetchArticlesToolDuplicatesNotReAdded(t *testing.T) {
	article := news.Article{Title: "India win", Description: "Great chase", URL: "https://example.com/1"}
	fetcher := &fakeFetcher{articles: []news.Article{article}}
	index := &fakeIndex{}
	tool := NewFetchArticlesTool(fetcher, index, &fakeEmbedder{dims: 384}, testLogger())

	for i := 0; i < 2; i++ {
		if _, err := tool.Execute(context.Background(), json.RawMessage(`{"query": "India"}`)); err != nil {
			t.Fatalf("Execute #%d: %v", i, err)
		}
	}

	if len(index.stored) != 1 {
		t.Errorf("stored = %d after duplicate ingest, want 1", len(index.stored))
	}
}

func TestFetchArticlesToolNoAPIKey(t *testing.T) {
	tool := NewFetchArticlesTool(nil, &fakeIndex{}, &fakeEmbedder{dims: 384}, testLogger())

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"query": "India"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	payload := decodeContent(t, result.Content)
	if payload["error"] == nil {
		t.Error("expected error when no news client is configured")
	}
}

func TestFetchArticlesToolMaxRange(t *testing.T) {
	tool := NewFetchArticlesTool(&fakeFetcher{}, &fakeIndex{}, &fakeEmbedder{dims: 384}, testLogger())

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"query": "India", "max_articles": 11}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	payload := decodeContent(t, result.Content)
	if payload["error"] == nil {
		t.Error("expected range error for max_articles=11")
	}
}

func TestFetchArticlesToolFetchError(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("API error 429: rate limit exceeded")}
	tool := NewFetchArticlesTool(fetcher, &fakeIndex{}, &fakeEmbedder{dims: 384}, testLogger())

	result, err := tool.Execute(context.Background(), json.RawMessage(`{"query": "India"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	payload := decodeContent(t, result.Content)
	if payload["error"] == nil {
		t.Error("expected fetch error surfaced inline")
	}
}
