package embedding

import (
	"context"
	"net/http"
	"sort"

	"cricsight/internal/domain"
)

// OpenAIProvider embeds text through the OpenAI embeddings API.
type OpenAIProvider struct {
	apiKey  string
	model   string
	dims    int
	baseURL string
	client  *http.Client
}

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

func WithOpenAIModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) { p.model = model }
}

func WithOpenAIDimensions(dims int) OpenAIOption {
	return func(p *OpenAIProvider) { p.dims = dims }
}

func WithOpenAIBaseURL(url string) OpenAIOption {
	return func(p *OpenAIProvider) { p.baseURL = url }
}

func WithOpenAIClient(client *http.Client) OpenAIOption {
	return func(p *OpenAIProvider) { p.client = client }
}

func NewOpenAIProvider(apiKey string, opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		apiKey:  apiKey,
		model:   "text-embedding-3-small",
		dims:    1536,
		baseURL: "https://api.openai.com/v1",
		client:  defaultHTTPClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type openaiEmbedding struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload := struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}{Input: texts, Model: p.model}

	var resp struct {
		Data []openaiEmbedding `json:"data"`
	}
	if err := postJSON(ctx, p.client, p.baseURL+"/embeddings", p.apiKey, payload, &resp); err != nil {
		return nil, err
	}

	// The API does not guarantee input order.
	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })

	vecs := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

func (p *OpenAIProvider) Dimensions() int { return p.dims }
func (p *OpenAIProvider) Name() string    { return "openai" }

var _ domain.EmbeddingProvider = (*OpenAIProvider)(nil)
