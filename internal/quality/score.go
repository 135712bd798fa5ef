// Package quality scores a retrieved evidence set with a judgment model and
// decides PASS or FAIL against a configured threshold. Parsing is strict:
// anything that is not four in-range numbers is a FAIL.
package quality

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	lrerrors "github.com/Aman-CERP/lawrag/internal/errors"
)

// Score bounds.
const (
	MaxSubScore      = 10.0
	MaxTotal         = 40.0
	DefaultThreshold = 0.8
)

// Score is a parsed four-dimension judgment.
type Score struct {
	Relevance    float64 `json:"relevance"`
	Completeness float64 `json:"completeness"`
	Accuracy     float64 `json:"accuracy"`
	Coverage     float64 `json:"coverage"`
	// Total is the sum of the four sub-scores, rounded to 6 decimals.
	Total  float64 `json:"total"`
	Passed bool    `json:"passed"`
}

// Ratio returns Total/40.
func (s Score) Ratio() float64 { return round6(s.Total / MaxTotal) }

// NewScore sums the sub-scores and applies threshold.
func NewScore(relevance, completeness, accuracy, coverage, threshold float64) Score {
	s := Score{
		Relevance:    relevance,
		Completeness: completeness,
		Accuracy:     accuracy,
		Coverage:     coverage,
		Total:        round6(relevance + completeness + accuracy + coverage),
	}
	s.Passed = s.Ratio() >= threshold
	return s
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

type dimension struct {
	name  string
	label *regexp.Regexp
}

// Labels are matched at the start of a line, optionally after a list
// marker, and may be followed by "score"/"得分" and bold markup on either
// side of the colon.
var dimensions = []dimension{
	{"relevance", labelPattern(`相关性|relevance`)},
	{"completeness", labelPattern(`完整性|completeness`)},
	{"accuracy", labelPattern(`准确性|accuracy`)},
	{"coverage", labelPattern(`覆盖面|覆盖度|覆盖性|覆盖率|coverage`)},
}

func labelPattern(alternatives string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)^[\s\-*•#\d.、]*\**(?:` + alternatives + `)(?:[ \t]*(?:score|得分|评分))?[ \t]*\**[ \t]*[:：][ \t]*\**[ \t]*(.*)$`)
}

// numberPattern finds a value that starts with a number. Values without one
// are not scores.
var numberPattern = regexp.MustCompile(`^[\[【(]?\s*[-+]?\d`)

// valuePattern accepts "[8]/10分", "8.5/10", "【7】", "9" and "9/10 - 理由";
// a dash separator must be followed by a space or end the value.
// Anything else after the number makes the value malformed.
var valuePattern = regexp.MustCompile(`^[\[【(]?\s*([-+]?\d+(?:\.\d+)?)\s*[\]】)]?\s*(?:/\s*10)?\s*分?\s*[\]】)]?\s*\**\s*(?:[-–—](?:\s.*)?)?$`)

// Parse extracts the four sub-scores from a judge response. A missing,
// non-numeric or out-of-range sub-score returns ERR_408_MALFORMED_EVALUATION.
// Any stated total is ignored. The text is NFKC-folded first, so full-width
// digits and punctuation read like their ASCII forms.
func Parse(text string, threshold float64) (Score, error) {
	text = norm.NFKC.String(text)
	values := make([]float64, len(dimensions))
	for i, d := range dimensions {
		v, err := readDimension(text, d)
		if err != nil {
			return Score{}, err
		}
		values[i] = v
	}
	return NewScore(values[0], values[1], values[2], values[3], threshold), nil
}

// readDimension returns the first numeric value given for d. Lines that
// carry the label without a number (an echoed rubric, say) are skipped; a
// number followed by anything but a score suffix is malformed.
func readDimension(text string, d dimension) (float64, error) {
	matches := d.label.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return 0, malformed(d.name, "missing")
	}
	for _, m := range matches {
		value := strings.TrimSpace(m[1])
		if !numberPattern.MatchString(value) {
			continue
		}
		vm := valuePattern.FindStringSubmatch(value)
		if vm == nil {
			return 0, malformed(d.name, fmt.Sprintf("non-numeric value %q", truncate(value, 20)))
		}
		v, err := strconv.ParseFloat(vm[1], 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, malformed(d.name, fmt.Sprintf("non-numeric value %q", vm[1]))
		}
		if v < 0 || v > MaxSubScore {
			return 0, malformed(d.name, fmt.Sprintf("value %s outside [0,10]", vm[1]))
		}
		return v, nil
	}
	return 0, malformed(d.name, fmt.Sprintf("non-numeric value %q", truncate(strings.TrimSpace(matches[0][1]), 20)))
}

func malformed(dim, reason string) error {
	return lrerrors.New(lrerrors.ErrCodeMalformedEvaluation,
		fmt.Sprintf("%s sub-score %s", dim, reason), nil).
		WithDetail("dimension", dim)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
