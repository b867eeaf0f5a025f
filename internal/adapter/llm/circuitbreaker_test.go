package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"cricsight/internal/domain"
)

type flakyProvider struct {
	err   error
	calls int
}

func (f *flakyProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ChatResponse{Message: domain.Message{Role: domain.RoleAssistant, Content: "ok"}}, nil
}

func (f *flakyProvider) Name() string { return "flaky" }

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	inner := &flakyProvider{err: errors.New("boom")}
	p := NewCircuitBreakerProvider(inner, CircuitBreakerConfig{MaxFailures: 3}, testLogger())

	for i := 0; i < 3; i++ {
		if _, err := p.Chat(context.Background(), domain.ChatRequest{}); err == nil {
			t.Fatal("expected failure")
		}
	}
	if p.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", p.State())
	}

	// Open circuit fails fast without touching the provider.
	callsBefore := inner.calls
	if _, err := p.Chat(context.Background(), domain.ChatRequest{}); err == nil {
		t.Fatal("expected fail-fast error while open")
	}
	if inner.calls != callsBefore {
		t.Error("open circuit should not reach the provider")
	}
}

func TestCircuitBreakerPassesSuccess(t *testing.T) {
	inner := &flakyProvider{}
	p := NewCircuitBreakerProvider(inner, CircuitBreakerConfig{}, testLogger())
	resp, err := p.Chat(context.Background(), domain.ChatRequest{})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Message.Content != "ok" {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if p.Name() != "flaky" {
		t.Errorf("Name() = %q", p.Name())
	}
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	inner := &flakyProvider{err: errors.New("boom")}
	p := NewCircuitBreakerProvider(inner, CircuitBreakerConfig{
		MaxFailures: 1,
		Timeout:     10 * time.Millisecond,
	}, testLogger())

	p.Chat(context.Background(), domain.ChatRequest{})
	if p.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", p.State())
	}

	inner.err = nil
	time.Sleep(20 * time.Millisecond)
	if _, err := p.Chat(context.Background(), domain.ChatRequest{}); err != nil {
		t.Fatalf("half-open probe should succeed: %v", err)
	}
	if p.State() != gobreaker.StateClosed {
		t.Errorf("state = %v, want closed after successful probe", p.State())
	}
}
