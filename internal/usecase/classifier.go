package usecase

import (
	"strings"

	"cricsight/internal/domain"
)

// ClassifyTools derives the query type from the tool names used during a
// turn. It is a pure function of the accumulated tool output names: the
// LLM never sets the type directly.
//
// Matching is a case-insensitive substring check. Names mentioning sql,
// schema or sample mark a stats query; names mentioning chroma or
// article mark a news query; both together make the turn mixed. A turn
// that used no tools at all is conversational.
func ClassifyTools(toolNames []string) domain.QueryType {
	if len(toolNames) == 0 {
		return domain.QueryTypeConversational
	}

	var stats, news bool
	for _, name := range toolNames {
		lower := strings.ToLower(name)
		if strings.Contains(lower, "sql") || strings.Contains(lower, "schema") || strings.Contains(lower, "sample") {
			stats = true
		}
		if strings.Contains(lower, "chroma") || strings.Contains(lower, "article") {
			news = true
		}
	}

	switch {
	case stats && news:
		return domain.QueryTypeMixed
	case stats:
		return domain.QueryTypeStats
	default:
		return domain.QueryTypeNews
	}
}
