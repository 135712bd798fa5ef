package mcp

// AnswerInput defines the input schema for the answer tool.
type AnswerInput struct {
	Query string `json:"query" jsonschema:"a legal question in Chinese, e.g. 离婚需要什么条件"`
}

// AnswerOutput defines the output schema for the answer tool.
type AnswerOutput struct {
	RunID        string           `json:"run_id"`
	Answer       string           `json:"answer" jsonschema:"the drafted answer"`
	Path         string           `json:"path" jsonschema:"direct or fallback (web results were consulted)"`
	Outcome      string           `json:"outcome" jsonschema:"answered, insufficient or apology"`
	Quality      QualityOutput    `json:"quality"`
	Evidence     []EvidenceOutput `json:"evidence" jsonschema:"the evidence the answer was drafted from"`
	Degradations []string         `json:"degradations,omitempty" jsonschema:"collaborators that were unavailable during this run"`
}

// QualityOutput summarizes the quality gate judgments.
type QualityOutput struct {
	Kind           string   `json:"kind" jsonschema:"parsed or malformed"`
	Total          float64  `json:"total" jsonschema:"sum of four sub-scores out of 40"`
	Passed         bool     `json:"passed"`
	SecondaryTotal *float64 `json:"secondary_total,omitempty" jsonschema:"advisory re-evaluation of the merged evidence"`
}

// EvidenceOutput is one piece of evidence.
type EvidenceOutput struct {
	Source  string  `json:"source" jsonschema:"local or web"`
	Law     string  `json:"law,omitempty"`
	Article string  `json:"article,omitempty"`
	Title   string  `json:"title,omitempty"`
	URL     string  `json:"url,omitempty"`
	Text    string  `json:"text"`
	Score   float64 `json:"score,omitempty"`
}

// SearchLawInput defines the input schema for the search_law tool.
type SearchLawInput struct {
	Query string `json:"query" jsonschema:"the statute search query"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 5"`
}

// SearchLawOutput defines the output schema for the search_law tool.
type SearchLawOutput struct {
	QueryType    string            `json:"query_type" jsonschema:"exact, semantic or hybrid"`
	Results      []LawResultOutput `json:"results"`
	Degradations []string          `json:"degradations,omitempty"`
}

// LawResultOutput is a single statute hit.
type LawResultOutput struct {
	DocID      uint64  `json:"doc_id" jsonschema:"line number of the provision in the corpus"`
	Law        string  `json:"law,omitempty"`
	Article    string  `json:"article,omitempty"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	FusedScore float64 `json:"fused_score"`
	Reranked   bool    `json:"reranked"`
	InBoth     bool    `json:"in_both_lists,omitempty" jsonschema:"true if the provision matched both keyword and semantic search"`
}
