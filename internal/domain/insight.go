package domain

// QueryType labels what kind of data a completed turn drew on.
// It is derived from the names of the tools that actually ran,
// never from the LLM's own output.
type QueryType string

const (
	QueryTypeStats          QueryType = "stats"
	QueryTypeNews           QueryType = "news"
	QueryTypeMixed          QueryType = "mixed"
	QueryTypeConversational QueryType = "conversational"
)

// Confidence labels how much the synthesizer trusts its findings.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Insight is the structured summary produced at the end of a turn
// that gathered tool data. Immutable after creation.
type Insight struct {
	UserQuery  string       `json:"user_query"`
	QueryType  QueryType    `json:"query_type"`
	Reasoning  string       `json:"reasoning,omitempty"`
	Insights   []string     `json:"insights"`
	Summary    string       `json:"summary"`
	Confidence string       `json:"confidence"`
	RawData    []ToolOutput `json:"raw_data,omitempty"`
}

// TurnResult is what one user turn returns to the caller: the final
// assistant text, the insight (nil when no tools ran), and the full
// message transcript of the turn.
type TurnResult struct {
	Response string    `json:"response"`
	Insight  *Insight  `json:"insight,omitempty"`
	Messages []Message `json:"messages"`
}
