package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"cricsight/internal/domain"
	"cricsight/internal/infra/tracer"
)

// Execute runs a tool handler under a trace span with params decoded into P.
// The handler's return value determines the ToolResult:
//
//	*domain.ToolResult  returned unchanged
//	string              plain-text success
//	anything else       marshaled to indented JSON
//
// Handler errors become error results with a retryability hint appended, so
// the model knows whether calling again is worth a round.
func Execute[P any](
	ctx context.Context,
	spanName string,
	logger *slog.Logger,
	rawParams json.RawMessage,
	handler func(ctx context.Context, span trace.Span, params P) (any, error),
) (*domain.ToolResult, error) {
	ctx, span := tracer.StartSpan(ctx, spanName,
		trace.WithAttributes(tracer.StringAttr("tool.name", spanName)),
	)
	defer span.End()

	p, decodeErr := decodeParams[P](rawParams)
	if decodeErr != nil {
		tracer.RecordError(span, decodeErr)
		return &domain.ToolResult{IsError: true, Content: fmt.Sprintf("invalid params: %v", decodeErr)}, nil
	}

	out, err := handler(ctx, span, p)
	if err != nil {
		tracer.RecordError(span, err)
		logger.Warn(spanName+" failed", "error", err)
		return failureResult(err), nil
	}
	return renderResult(span, out)
}

// decodeParams unmarshals raw into P. Empty and null inputs decode to the
// zero value so tools with all-optional params accept a bare call.
func decodeParams[P any](raw json.RawMessage) (P, error) {
	var p P
	if len(raw) == 0 || string(raw) == "null" {
		return p, nil
	}
	err := json.Unmarshal(raw, &p)
	return p, err
}

func failureResult(err error) *domain.ToolResult {
	retryable := classifyToolError(err)
	content := err.Error()
	if retryable {
		content += " (transient error, may succeed on retry)"
	}
	return &domain.ToolResult{IsError: true, IsRetryable: retryable, Content: content}
}

// renderResult converts a handler return value into a ToolResult and marks
// the span accordingly.
func renderResult(span trace.Span, out any) (*domain.ToolResult, error) {
	switch v := out.(type) {
	case *domain.ToolResult:
		if v.IsError {
			tracer.RecordError(span, fmt.Errorf("%s", v.Content))
		} else {
			tracer.SetOK(span)
		}
		return v, nil
	case string:
		tracer.SetOK(span)
		return &domain.ToolResult{Content: v}, nil
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		tracer.RecordError(span, err)
		return &domain.ToolResult{
			IsError: true,
			Content: fmt.Sprintf("failed to format response: %v", err),
		}, nil
	}
	tracer.SetOK(span)
	return &domain.ToolResult{Content: string(data)}, nil
}

// ErrResult builds an error ToolResult for validation failures that should
// go back to the model without a warning log.
func ErrResult(format string, args ...any) (*domain.ToolResult, error) {
	return &domain.ToolResult{IsError: true, Content: fmt.Sprintf(format, args...)}, nil
}

// JSONResult marshals v as indented JSON into a success ToolResult.
func JSONResult(v any) (*domain.ToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return &domain.ToolResult{Content: string(data)}, nil
}
