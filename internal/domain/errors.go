package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer.
var (
	ErrToolNotFound    = fmt.Errorf("tool not found")
	ErrMaxIterations   = fmt.Errorf("agent reached max tool rounds")
	ErrSessionNotFound = fmt.Errorf("session not found")
	ErrConfigLoad      = fmt.Errorf("failed to load configuration")

	// Resilience errors.
	ErrContextOverflow = fmt.Errorf("context window exceeded")
	ErrRateLimit       = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid     = fmt.Errorf("authentication failed")
	ErrToolFailure     = fmt.Errorf("tool execution failed")

	// Analytical store errors.
	ErrUnsafeSQL        = fmt.Errorf("sql rejected by safety gate")
	ErrStatsUnavailable = fmt.Errorf("analytical store unavailable")

	// Embedding / vector errors.
	ErrEmbeddingFailed = fmt.Errorf("embedding generation failed")
	ErrVectorStore     = fmt.Errorf("vector store operation failed")
	ErrVectorSearch    = fmt.Errorf("vector search failed")

	// News errors.
	ErrNewsFetch = fmt.Errorf("news fetch failed")

	// Session lifecycle errors.
	ErrNotInitialized = fmt.Errorf("tool backend not initialized")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Tool.Execute")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryableError reports whether err is a transient error that may succeed on retry.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrContextOverflow)
}

// ErrorCode is a machine-parseable error category for monitoring and alerting.
type ErrorCode string

// Error codes. Every sentinel error maps to exactly one code.
const (
	CodeUnknown          ErrorCode = "UNKNOWN"
	CodeToolNotFound     ErrorCode = "TOOL_NOT_FOUND"
	CodeToolFailure      ErrorCode = "TOOL_FAILURE"
	CodeMaxIterations    ErrorCode = "MAX_ITERATIONS"
	CodeSessionNotFound  ErrorCode = "SESSION_NOT_FOUND"
	CodeConfigLoad       ErrorCode = "CONFIG_LOAD"
	CodeContextOverflow  ErrorCode = "CONTEXT_OVERFLOW"
	CodeRateLimit        ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid      ErrorCode = "AUTH_INVALID"
	CodeUnsafeSQL        ErrorCode = "UNSAFE_SQL"
	CodeStatsUnavailable ErrorCode = "STATS_UNAVAILABLE"
	CodeEmbeddingFailed  ErrorCode = "EMBEDDING_FAILED"
	CodeVectorStore      ErrorCode = "VECTOR_STORE"
	CodeVectorSearch     ErrorCode = "VECTOR_SEARCH"
	CodeNewsFetch        ErrorCode = "NEWS_FETCH"
	CodeNotInitialized   ErrorCode = "NOT_INITIALIZED"
)

var sentinelCodes = []struct {
	err  error
	code ErrorCode
}{
	{ErrToolNotFound, CodeToolNotFound},
	{ErrToolFailure, CodeToolFailure},
	{ErrMaxIterations, CodeMaxIterations},
	{ErrSessionNotFound, CodeSessionNotFound},
	{ErrConfigLoad, CodeConfigLoad},
	{ErrContextOverflow, CodeContextOverflow},
	{ErrRateLimit, CodeRateLimit},
	{ErrAuthInvalid, CodeAuthInvalid},
	{ErrUnsafeSQL, CodeUnsafeSQL},
	{ErrStatsUnavailable, CodeStatsUnavailable},
	{ErrEmbeddingFailed, CodeEmbeddingFailed},
	{ErrVectorStore, CodeVectorStore},
	{ErrVectorSearch, CodeVectorSearch},
	{ErrNewsFetch, CodeNewsFetch},
	{ErrNotInitialized, CodeNotInitialized},
}

// ErrorCodeOf maps an error to its ErrorCode, unwrapping as needed.
// Unknown errors map to CodeUnknown.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	for _, sc := range sentinelCodes {
		if errors.Is(err, sc.err) {
			return sc.code
		}
	}
	return CodeUnknown
}
