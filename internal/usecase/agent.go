// Package usecase contains the turn orchestration loop and the pure
// logic around it: query classification, insight synthesis, context
// assembly, and session management.
package usecase

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"cricsight/internal/domain"
	"cricsight/internal/infra/tracer"
)

// Recovery loop constants.
const (
	maxLLMRetries  = 3
	baseRetryDelay = 500 * time.Millisecond
	maxRetryDelay  = 10 * time.Second
)

// defaultSystemPrompt is the reasoning persona used when no prompt is
// configured. It describes the tool catalog and the query strategy.
const defaultSystemPrompt = `You are a cricket intelligence assistant with access to both cricket statistics and news.

**Available Tools:**
1. **get_database_schema** - Get database structure (use FIRST before SQL queries)
2. **execute_sql** - Run SQL queries on cricket stats (Test cricket 1877-2024)
3. **get_sample_queries** - Get example SQL queries for reference
4. **search_chromadb** - Search cached cricket news articles (semantic search)
5. **query_cricket_articles** - Fetch fresh news from GNews API

**Query Strategy:**
- For statistics/records → Use SQL tools (get_database_schema → execute_sql)
- For news/articles → Use search_chromadb first, if empty use query_cricket_articles
- For player queries → Combine both: stats from SQL + recent news

**SQL Best Practices:**
- Always call get_database_schema first to understand tables
- JOIN with players table to get player names (don't use player_id directly)
- Use get_sample_queries if you need examples

**Important:**
- Explain your reasoning briefly before calling tools
- If a query fails, try a different approach
- Be concise but informative in responses`

// turnState is one state of the per-turn machine.
type turnState int

const (
	stateReason turnState = iota
	stateDispatchTools
	stateSynthesize
	stateDone
)

// ToolDispatcher is the surface the loop needs from the tool registry.
type ToolDispatcher interface {
	Invoke(ctx context.Context, call domain.ToolCall) *domain.ToolResult
	Schemas() []domain.ToolSchema
}

// AgentDeps holds injected dependencies for the agent.
type AgentDeps struct {
	LLM             domain.LLMProvider
	Tools           ToolDispatcher
	ContextBuilder  *ContextBuilder
	Synthesizer     *Synthesizer
	Logger          *slog.Logger
	MaxToolRounds   int
	TurnTimeout     time.Duration
	ErrorClassifier *ErrorClassifier // optional, nil = no error recovery
}

// Agent drives one user turn through the reason/dispatch/synthesize loop.
type Agent struct {
	deps AgentDeps
}

// NewAgent creates an agent with the given dependencies.
func NewAgent(deps AgentDeps) *Agent {
	if deps.MaxToolRounds <= 0 {
		deps.MaxToolRounds = 10
	}
	if deps.TurnTimeout <= 0 {
		deps.TurnTimeout = 5 * time.Minute
	}
	return &Agent{deps: deps}
}

// DefaultSystemPrompt returns the built-in reasoning persona.
func DefaultSystemPrompt() string { return defaultSystemPrompt }

// HandleMessage processes a single user message. The returned TurnResult
// always carries a response string; the insight is nil when the turn
// never used a tool.
func (a *Agent) HandleMessage(ctx context.Context, session *Session, userMsg string) (*domain.TurnResult, error) {
	ctx, cancel := context.WithTimeout(ctx, a.deps.TurnTimeout)
	defer cancel()

	ctx, span := tracer.StartSpan(ctx, "agent.handle_message")
	defer span.End()

	session.AddMessage(domain.Message{
		Role:      domain.RoleUser,
		Content:   userMsg,
		Timestamp: time.Now(),
	})

	var (
		outputs   []domain.ToolOutput // accumulated across dispatch rounds
		insight   *domain.Insight
		lastMsg   domain.Message
		rounds    = 0
		state     = stateReason
		totalUsed domain.Usage
	)

	for state != stateDone {
		if err := ctx.Err(); err != nil {
			tracer.RecordError(span, err)
			return nil, err
		}

		switch state {
		case stateReason:
			span.AddEvent("agent.reason", trace.WithAttributes(tracer.IntAttr("round", rounds)))

			chatReq := a.deps.ContextBuilder.Build(session.Messages(), a.deps.Tools.Schemas())
			msg, usage, err := a.callLLMWithRetry(ctx, chatReq)
			if err != nil {
				tracer.RecordError(span, err)
				return nil, err
			}
			totalUsed.PromptTokens += usage.PromptTokens
			totalUsed.CompletionTokens += usage.CompletionTokens
			totalUsed.TotalTokens += usage.TotalTokens

			session.AddMessage(msg)
			lastMsg = msg

			a.deps.Logger.Debug("llm response",
				"round", rounds,
				"tool_calls", len(msg.ToolCalls),
				"tokens", usage.TotalTokens,
			)

			switch {
			case len(msg.ToolCalls) > 0:
				if rounds >= a.deps.MaxToolRounds {
					tracer.RecordError(span, domain.ErrMaxIterations)
					return nil, domain.ErrMaxIterations
				}
				state = stateDispatchTools
			case len(outputs) > 0:
				state = stateSynthesize
			default:
				// Pure conversational answer, no insight generated.
				state = stateDone
			}

		case stateDispatchTools:
			rounds++
			results := a.dispatchRound(ctx, lastMsg.ToolCalls)
			for i, result := range results {
				call := lastMsg.ToolCalls[i]
				session.AddMessage(domain.Message{
					Role:    domain.RoleTool,
					Name:    call.Name,
					Content: result.Content,
					ToolCalls: []domain.ToolCall{{
						ID:   call.ID,
						Name: call.Name,
					}},
					Timestamp: time.Now(),
				})
				outputs = append(outputs, domain.ToolOutput{
					Name:    call.Name,
					Content: result.Content,
				})
			}
			state = stateReason

		case stateSynthesize:
			queryType := classifyOutputs(outputs)
			insight = a.deps.Synthesizer.Synthesize(ctx, userMsg, outputs, queryType)
			session.AddMessage(domain.Message{
				Role:      domain.RoleAssistant,
				Content:   insight.Summary,
				Timestamp: time.Now(),
			})
			lastMsg = domain.Message{Role: domain.RoleAssistant, Content: insight.Summary}
			state = stateDone
		}
	}

	span.SetAttributes(tracer.IntAttr("agent.total_tokens", totalUsed.TotalTokens))
	tracer.SetOK(span)
	return &domain.TurnResult{
		Response: lastMsg.Content,
		Insight:  insight,
		Messages: session.Messages(),
	}, nil
}

// dispatchRound executes every tool call of one round. Calls run
// concurrently, but results land in an indexed slice so the collected
// order always matches the request order.
func (a *Agent) dispatchRound(ctx context.Context, calls []domain.ToolCall) []*domain.ToolResult {
	results := make([]*domain.ToolResult, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, c domain.ToolCall) {
			defer wg.Done()
			ctx, span := tracer.StartSpan(ctx, "agent.dispatch_tool",
				trace.WithAttributes(tracer.StringAttr("tool.name", c.Name)),
			)
			defer span.End()

			result := a.deps.Tools.Invoke(ctx, c)
			if result.IsError {
				tracer.RecordError(span, errors.New(result.Content))
			} else {
				tracer.SetOK(span)
			}
			results[idx] = result
		}(i, call)
	}
	wg.Wait()
	return results
}

// classifyOutputs runs the query classifier over the accumulated output names.
func classifyOutputs(outputs []domain.ToolOutput) domain.QueryType {
	names := make([]string, len(outputs))
	for i, out := range outputs {
		names[i] = out.Name
	}
	return ClassifyTools(names)
}

// callLLMWithRetry performs the LLM call, retrying transient failures
// with exponential backoff when a classifier is configured.
func (a *Agent) callLLMWithRetry(ctx context.Context, chatReq domain.ChatRequest) (domain.Message, domain.Usage, error) {
	maxAttempts := 1
	if a.deps.ErrorClassifier != nil {
		maxAttempts = maxLLMRetries
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		llmCtx, llmSpan := tracer.StartSpan(ctx, "agent.llm_call")
		resp, err := a.deps.LLM.Chat(llmCtx, chatReq)
		llmSpan.End()

		if err == nil {
			return resp.Message, resp.Usage, nil
		}
		lastErr = err

		if a.deps.ErrorClassifier == nil {
			return domain.Message{}, domain.Usage{}, lastErr
		}

		classified := a.deps.ErrorClassifier.Classify(err)
		if classified.Category != ErrorCategoryRetryable {
			return domain.Message{}, domain.Usage{}, lastErr
		}

		if attempt < maxAttempts-1 {
			delay := retryBackoff(attempt)
			a.deps.Logger.Info("retrying LLM call after error",
				"attempt", attempt+1, "delay", delay, "error", err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return domain.Message{}, domain.Usage{}, ctx.Err()
			}
		}
	}

	return domain.Message{}, domain.Usage{}, lastErr
}

// retryBackoff computes exponential backoff with jitter.
func retryBackoff(attempt int) time.Duration {
	delay := baseRetryDelay * time.Duration(1<<uint(attempt))
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	// Add 0-25% jitter.
	jitter := time.Duration(rand.Int63n(int64(delay/4) + 1))
	return delay + jitter
}
