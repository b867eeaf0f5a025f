package tool

import (
	"errors"
	"strings"

	"cricsight/internal/domain"
)

// transientMarkers are message substrings that mark an error as transient
// when it carries no domain sentinel. Matched case-insensitively.
var transientMarkers = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"timeout",
	"deadline exceeded",
	"temporarily unavailable",
	"service unavailable",
	"try again",
	"unavailable", // gRPC UNAVAILABLE
}

// classifyToolError reports whether a tool failure is worth retrying.
// Permanent, unknown, and nil errors all classify as non-retryable.
func classifyToolError(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, domain.ErrRateLimit),
		errors.Is(err, domain.ErrToolFailure),
		errors.Is(err, domain.ErrVectorStore),
		errors.Is(err, domain.ErrVectorSearch),
		errors.Is(err, domain.ErrNewsFetch):
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
