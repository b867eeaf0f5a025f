// Package llm adapts chat completion APIs to domain.LLMProvider.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"cricsight/internal/domain"
	"cricsight/internal/infra/config"
	"cricsight/internal/infra/tracer"
)

// maxResponseBody caps how much of an API response we will read.
const maxResponseBody = 10 << 20

// postChat marshals payload, POSTs it as JSON and returns the raw response
// body. Non-200 statuses come back already mapped to domain sentinels.
func postChat(ctx context.Context, client *http.Client, url string, payload any, header http.Header) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, mapHTTPError(resp.StatusCode, raw)
	}
	return raw, nil
}

// mapHTTPError turns an HTTP failure into the sentinel the retry loop and
// circuit breaker key on. The "API error <code>" prefix is part of the
// contract with the error classifier.
func mapHTTPError(status int, body []byte) error {
	detail := fmt.Sprintf("API error %d: %s", status, body)

	var sentinel error
	switch {
	case status == http.StatusTooManyRequests:
		sentinel = domain.ErrRateLimit
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		sentinel = domain.ErrAuthInvalid
	case status == http.StatusRequestEntityTooLarge:
		sentinel = domain.ErrContextOverflow
	case status >= 500:
		sentinel = domain.ErrToolFailure
	default:
		return fmt.Errorf("%s", detail)
	}
	return fmt.Errorf("%w: %s", sentinel, detail)
}

// startChatSpan opens the llm.chat span shared by all providers.
func startChatSpan(ctx context.Context, provider, model string) (context.Context, trace.Span) {
	return tracer.StartSpan(ctx, "llm.chat",
		trace.WithAttributes(
			tracer.StringAttr("llm.provider", provider),
			tracer.StringAttr("llm.model", model),
		),
	)
}

// finishChat records token usage on the span and emits the completion log.
func finishChat(span trace.Span, logger *slog.Logger, provider string, resp *domain.ChatResponse) {
	span.SetAttributes(
		tracer.IntAttr("llm.prompt_tokens", resp.Usage.PromptTokens),
		tracer.IntAttr("llm.completion_tokens", resp.Usage.CompletionTokens),
	)
	tracer.SetOK(span)
	logger.Debug("llm chat completed",
		"provider", provider,
		"model", resp.Model,
		"tokens", resp.Usage.TotalTokens,
	)
}

// Transport defaults sized for chat APIs: one or two hosts, moderate
// concurrency, long request bodies.
const (
	defaultConnTimeout = 30 * time.Second
	defaultRespTimeout = 120 * time.Second

	defaultMaxIdleConns        = 20
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 20
	defaultIdleConnTimeout     = 120 * time.Second
)

// PooledTransportConfig tunes HTTP connection pooling for providers.
type PooledTransportConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

func orDefault[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

// NewPooledTransport builds an http.Transport with pooling suitable for
// repeated calls to the same chat API host.
func NewPooledTransport(connTimeout, respTimeout time.Duration, pool PooledTransportConfig) *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   orDefault(connTimeout, defaultConnTimeout),
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: orDefault(respTimeout, defaultRespTimeout),
		MaxIdleConns:          orDefault(pool.MaxIdleConns, defaultMaxIdleConns),
		MaxIdleConnsPerHost:   orDefault(pool.MaxIdleConnsPerHost, defaultMaxIdleConnsPerHost),
		MaxConnsPerHost:       orDefault(pool.MaxConnsPerHost, defaultMaxConnsPerHost),
		IdleConnTimeout:       orDefault(pool.IdleConnTimeout, defaultIdleConnTimeout),
		ForceAttemptHTTP2:     true,
	}
}

// NewHTTPClient builds the pooled client a provider config asks for. The
// overall timeout covers connect plus response so a hung API call cannot
// outlive the agent turn budget by much.
func NewHTTPClient(cfg config.ProviderConfig) *http.Client {
	connTimeout := orDefault(cfg.ConnTimeout, defaultConnTimeout)
	respTimeout := orDefault(cfg.RespTimeout, defaultRespTimeout)

	return &http.Client{
		Transport: NewPooledTransport(connTimeout, respTimeout, PooledTransportConfig{
			MaxIdleConns:        cfg.Pool.MaxIdleConns,
			MaxIdleConnsPerHost: cfg.Pool.MaxIdleConnsPerHost,
			MaxConnsPerHost:     cfg.Pool.MaxConnsPerHost,
			IdleConnTimeout:     cfg.Pool.IdleConnTimeout,
		}),
		Timeout: connTimeout + respTimeout,
	}
}
