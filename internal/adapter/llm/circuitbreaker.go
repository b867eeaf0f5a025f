package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"cricsight/internal/domain"
)

// CircuitBreakerConfig tunes when the breaker opens and how long it stays
// open. Zero values fall back to the defaults below.
type CircuitBreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

const (
	breakerMaxFailures uint32 = 5
	breakerOpenFor            = 30 * time.Second
	breakerResetEvery         = 60 * time.Second
)

// CircuitBreakerProvider fails fast once the wrapped provider has failed
// enough times in a row, so a dead API does not eat the whole retry budget
// of every subsequent turn.
type CircuitBreakerProvider struct {
	inner   domain.LLMProvider
	breaker *gobreaker.CircuitBreaker[*domain.ChatResponse]
}

func NewCircuitBreakerProvider(inner domain.LLMProvider, cfg CircuitBreakerConfig, logger *slog.Logger) *CircuitBreakerProvider {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = breakerMaxFailures
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = breakerOpenFor
	}
	if cfg.Interval == 0 {
		cfg.Interval = breakerResetEvery
	}

	settings := gobreaker.Settings{
		Name:        "llm:" + inner.Name(),
		MaxRequests: 1, // one probe while half-open
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &CircuitBreakerProvider{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[*domain.ChatResponse](settings),
	}
}

func (p *CircuitBreakerProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	resp, err := p.breaker.Execute(func() (*domain.ChatResponse, error) {
		return p.inner.Chat(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("provider %q circuit open: %w", p.inner.Name(), err)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (p *CircuitBreakerProvider) Name() string { return p.inner.Name() }

// State exposes the breaker state for health reporting.
func (p *CircuitBreakerProvider) State() gobreaker.State { return p.breaker.State() }

// Counts exposes the rolling success/failure counts.
func (p *CircuitBreakerProvider) Counts() gobreaker.Counts { return p.breaker.Counts() }

var _ domain.LLMProvider = (*CircuitBreakerProvider)(nil)
