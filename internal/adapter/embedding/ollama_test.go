package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"cricsight/internal/domain"
)

// embedServer records the last request body and serves a caller-provided
// JSON response.
func embedServer(t *testing.T, wantPath string, respond func(w http.ResponseWriter)) (*httptest.Server, *map[string]any) {
	t.Helper()
	var last map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != wantPath {
			t.Errorf("path = %q, want %q", r.URL.Path, wantPath)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&last); err != nil {
			t.Errorf("decode request: %v", err)
		}
		respond(w)
	}))
	t.Cleanup(srv.Close)
	return srv, &last
}

func TestOllamaEmbedSingle(t *testing.T) {
	srv, lastReq := embedServer(t, "/api/embed", func(w http.ResponseWriter) {
		json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{0.1, 0.2, 0.3}},
		})
	})

	p := NewOllamaProvider(WithOllamaBaseURL(srv.URL))
	vecs, err := p.Embed(context.Background(), []string{"hello world"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 1 || len(vecs[0]) != 3 || vecs[0][1] != 0.2 {
		t.Fatalf("vecs = %v", vecs)
	}

	req := *lastReq
	if req["model"] != "all-minilm" {
		t.Errorf("model = %v, want all-minilm", req["model"])
	}
	inputs, _ := req["input"].([]any)
	if len(inputs) != 1 || inputs[0] != "hello world" {
		t.Errorf("input = %v", req["input"])
	}
}

func TestOllamaEmbedBatch(t *testing.T) {
	srv, _ := embedServer(t, "/api/embed", func(w http.ResponseWriter) {
		json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{1, 2}, {3, 4}, {5, 6}},
		})
	})

	p := NewOllamaProvider(WithOllamaBaseURL(srv.URL))
	vecs, err := p.Embed(context.Background(), []string{"alpha", "beta", "gamma"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 3 || vecs[2][1] != 6 {
		t.Fatalf("vecs = %v", vecs)
	}
}

func TestOllamaEmbedEmptyInputSkipsRequest(t *testing.T) {
	p := NewOllamaProvider(WithOllamaBaseURL("http://127.0.0.1:0"))
	for _, texts := range [][]string{nil, {}} {
		vecs, err := p.Embed(context.Background(), texts)
		if err != nil {
			t.Fatalf("Embed(%v): %v", texts, err)
		}
		if vecs != nil {
			t.Errorf("Embed(%v) = %v, want nil", texts, vecs)
		}
	}
}

func TestOllamaEmbedServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not loaded"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewOllamaProvider(WithOllamaBaseURL(srv.URL))
	_, err := p.Embed(context.Background(), []string{"hello"})
	if !errors.Is(err, domain.ErrEmbeddingFailed) {
		t.Fatalf("err = %v, want ErrEmbeddingFailed", err)
	}
}

func TestOllamaEmbedMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(WithOllamaBaseURL(srv.URL))
	_, err := p.Embed(context.Background(), []string{"hello"})
	if !errors.Is(err, domain.ErrEmbeddingFailed) {
		t.Fatalf("err = %v, want ErrEmbeddingFailed", err)
	}
}

func TestOllamaEmbedHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewOllamaProvider(WithOllamaBaseURL(srv.URL))
	if _, err := p.Embed(ctx, []string{"hello"}); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestOllamaOptionsAndDefaults(t *testing.T) {
	def := NewOllamaProvider()
	if def.Dimensions() != 384 || def.Name() != "ollama" {
		t.Errorf("defaults: dims=%d name=%q", def.Dimensions(), def.Name())
	}

	client := &http.Client{}
	p := NewOllamaProvider(
		WithOllamaModel("mxbai-embed-large"),
		WithOllamaDimensions(1024),
		WithOllamaBaseURL("http://embed.internal:11434"),
		WithOllamaClient(client),
	)
	if p.model != "mxbai-embed-large" || p.dims != 1024 {
		t.Errorf("model=%q dims=%d", p.model, p.dims)
	}
	if p.baseURL != "http://embed.internal:11434" || p.client != client {
		t.Errorf("baseURL=%q client set=%v", p.baseURL, p.client == client)
	}
}
