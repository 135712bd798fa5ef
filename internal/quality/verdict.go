package quality

// VerdictKind tags a Verdict.
type VerdictKind string

const (
	// KindParsed carries a Score.
	KindParsed VerdictKind = "parsed"
	// KindMalformed carries a reason; it always counts as FAIL.
	KindMalformed VerdictKind = "malformed"
)

// Verdict is the tagged outcome of one evaluation: either a parsed Score or
// a malformed judgment.
type Verdict struct {
	Kind  VerdictKind `json:"kind"`
	Score Score       `json:"score"`

	// Reason and Code are set for malformed verdicts. Code is
	// ERR_408_MALFORMED_EVALUATION, or ERR_304_JUDGE_UNAVAILABLE when the
	// judge could not be reached.
	Reason string `json:"reason,omitempty"`
	Code   string `json:"code,omitempty"`
}

// Parsed wraps a score.
func Parsed(s Score) Verdict {
	return Verdict{Kind: KindParsed, Score: s}
}

// Malformed builds a failing verdict.
func Malformed(code, reason string) Verdict {
	return Verdict{Kind: KindMalformed, Reason: reason, Code: code}
}

// Passed is true only for a parsed score at or above the threshold.
func (v Verdict) Passed() bool {
	return v.Kind == KindParsed && v.Score.Passed
}

// IsMalformed reports whether the judgment could not be used.
func (v Verdict) IsMalformed() bool { return v.Kind == KindMalformed }

// Total returns the parsed total, or 0 for a malformed verdict.
func (v Verdict) Total() float64 {
	if v.Kind != KindParsed {
		return 0
	}
	return v.Score.Total
}
