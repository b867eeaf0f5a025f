package embedding

import (
	"context"
	"net/http"

	"cricsight/internal/domain"
)

// OllamaProvider embeds text through a local Ollama server's /api/embed
// endpoint. The defaults match the model the news index was built with:
// all-minilm at 384 dimensions.
type OllamaProvider struct {
	model   string
	dims    int
	baseURL string
	client  *http.Client
}

// OllamaOption configures an OllamaProvider.
type OllamaOption func(*OllamaProvider)

func WithOllamaModel(model string) OllamaOption {
	return func(p *OllamaProvider) { p.model = model }
}

func WithOllamaDimensions(dims int) OllamaOption {
	return func(p *OllamaProvider) { p.dims = dims }
}

func WithOllamaBaseURL(url string) OllamaOption {
	return func(p *OllamaProvider) { p.baseURL = url }
}

func WithOllamaClient(client *http.Client) OllamaOption {
	return func(p *OllamaProvider) { p.client = client }
}

func NewOllamaProvider(opts ...OllamaOption) *OllamaProvider {
	p := &OllamaProvider{
		model:   "all-minilm",
		dims:    384,
		baseURL: "http://localhost:11434",
		client:  defaultHTTPClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OllamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload := struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}{Model: p.model, Input: texts}

	var resp struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := postJSON(ctx, p.client, p.baseURL+"/api/embed", "", payload, &resp); err != nil {
		return nil, err
	}
	return resp.Embeddings, nil
}

func (p *OllamaProvider) Dimensions() int { return p.dims }
func (p *OllamaProvider) Name() string    { return "ollama" }

var _ domain.EmbeddingProvider = (*OllamaProvider)(nil)
