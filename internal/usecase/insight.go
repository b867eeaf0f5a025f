package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cricsight/internal/domain"
	"cricsight/internal/infra/tracer"
)

// synthesizerPrompt is the fixed analyst persona used for the single
// insight-generation call at the end of a tool-using turn.
const synthesizerPrompt = `You are a cricket intelligence analyst. Your job is to:

1. Extract key findings from data
2. Create clear, concise summaries
3. Add cricket context where relevant

Guidelines:
- Focus on the most important insights (top 3-5 findings)
- Use specific numbers and facts
- Explain what the numbers mean in cricket context
- Be concise but informative
- Avoid speculation - stick to the data

Output format:
{
  "insights": ["insight 1", "insight 2", ...],
  "summary": "A clear 2-3 sentence summary",
  "confidence": "high" | "medium" | "low"
}
`

// Synthesizer turns accumulated tool outputs into a structured insight
// with a single LLM call.
type Synthesizer struct {
	llm    domain.LLMProvider
	model  string
	logger *slog.Logger
}

// NewSynthesizer creates a synthesizer backed by the given provider.
func NewSynthesizer(llm domain.LLMProvider, model string, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{llm: llm, model: model, logger: logger}
}

// insightPayload is the JSON shape the LLM is asked to produce.
type insightPayload struct {
	Insights   []string `json:"insights"`
	Summary    string   `json:"summary"`
	Confidence string   `json:"confidence"`
}

// Synthesize generates an insight from the turn's tool outputs. It never
// fails: an LLM error or an unparseable response degrades to a raw-text
// insight with low confidence.
func (s *Synthesizer) Synthesize(
	ctx context.Context,
	query string,
	outputs []domain.ToolOutput,
	queryType domain.QueryType,
) *domain.Insight {
	ctx, span := tracer.StartSpan(ctx, "synthesizer.synthesize")
	defer span.End()
	span.SetAttributes(
		tracer.StringAttr("insight.query_type", string(queryType)),
		tracer.IntAttr("insight.tool_outputs", len(outputs)),
	)

	userPrompt := fmt.Sprintf(
		"User Query: %s\n\nQuery Type: %s\n\nTool Results:\n%s\n\nPlease analyze the data and provide key insights and a summary.",
		query, queryType, buildContext(outputs),
	)

	req := domain.ChatRequest{
		Model: s.model,
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: synthesizerPrompt, Timestamp: time.Now()},
			{Role: domain.RoleUser, Content: userPrompt, Timestamp: time.Now()},
		},
	}

	resp, err := s.llm.Chat(ctx, req)
	if err != nil {
		tracer.RecordError(span, err)
		s.logger.Warn("insight generation failed, degrading", "error", err)
		text := fmt.Sprintf("Could not generate insights: %v", err)
		return s.fallback(query, queryType, outputs, text)
	}

	payload, ok := parseInsightJSON(resp.Message.Content)
	if !ok {
		s.logger.Debug("insight response not valid JSON, using raw text")
		return s.fallback(query, queryType, outputs, resp.Message.Content)
	}

	if payload.Confidence == "" {
		payload.Confidence = domain.ConfidenceMedium
	}
	tracer.SetOK(span)
	return &domain.Insight{
		UserQuery:  query,
		QueryType:  queryType,
		Insights:   payload.Insights,
		Summary:    payload.Summary,
		Confidence: payload.Confidence,
		RawData:    outputs,
	}
}

// fallback is the only error path: the raw text becomes both the sole
// insight and the summary, with confidence forced low.
func (s *Synthesizer) fallback(query string, queryType domain.QueryType, outputs []domain.ToolOutput, text string) *domain.Insight {
	return &domain.Insight{
		UserQuery:  query,
		QueryType:  queryType,
		Insights:   []string{text},
		Summary:    text,
		Confidence: domain.ConfidenceLow,
		RawData:    outputs,
	}
}

// parseInsightJSON extracts the expected JSON object from the response
// text, tolerating markdown code fences around it.
func parseInsightJSON(content string) (insightPayload, bool) {
	text := strings.TrimSpace(content)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
	}

	var payload insightPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return insightPayload{}, false
	}
	if payload.Summary == "" && len(payload.Insights) == 0 {
		return insightPayload{}, false
	}
	return payload, true
}

// buildContext concatenates every tool output into the single textual
// context the synthesizer prompt consumes. Structured content is
// pretty-printed; everything else passes through as-is.
func buildContext(outputs []domain.ToolOutput) string {
	var sb strings.Builder
	for i, out := range outputs {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		name := out.Name
		if name == "" {
			name = "Unknown"
		}
		fmt.Fprintf(&sb, "Tool %d: %s\n%s", i+1, name, prettyJSON(out.Content))
	}
	return sb.String()
}

func prettyJSON(content string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(content), "", "  "); err != nil {
		return content
	}
	return buf.String()
}
