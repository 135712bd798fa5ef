package store

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Token is one term with byte offsets into the NFKC-normalized input.
type Token struct {
	Term  string
	Start int
	End   int
}

// TokenizeLegal splits statute text into retrieval terms.
// Runs of Han characters become overlapping bigrams (a lone character stays a
// unigram); runs of letters or digits become one lowercased word. Input is
// NFKC-normalized first so full-width digits and letters match their ASCII
// forms.
func TokenizeLegal(text string) []Token {
	text = norm.NFKC.String(text)

	var tokens []Token
	runStart := -1
	runHan := false

	flush := func(end int) {
		if runStart < 0 {
			return
		}
		if runHan {
			tokens = appendHanBigrams(tokens, text, runStart, end)
		} else {
			tokens = append(tokens, Token{
				Term:  strings.ToLower(text[runStart:end]),
				Start: runStart,
				End:   end,
			})
		}
		runStart = -1
	}

	for i, r := range text {
		isHan := unicode.Is(unicode.Han, r)
		isWord := !isHan && (unicode.IsLetter(r) || unicode.IsDigit(r))

		switch {
		case isHan:
			if runStart >= 0 && !runHan {
				flush(i)
			}
			if runStart < 0 {
				runStart, runHan = i, true
			}
		case isWord:
			if runStart >= 0 && runHan {
				flush(i)
			}
			if runStart < 0 {
				runStart, runHan = i, false
			}
		default:
			flush(i)
		}
	}
	flush(len(text))

	return tokens
}

func appendHanBigrams(tokens []Token, text string, start, end int) []Token {
	var offsets []int
	for i := range text[start:end] {
		offsets = append(offsets, start+i)
	}
	offsets = append(offsets, end)

	chars := len(offsets) - 1
	if chars == 1 {
		return append(tokens, Token{Term: text[start:end], Start: start, End: end})
	}
	for i := 0; i+1 < chars; i++ {
		tokens = append(tokens, Token{
			Term:  text[offsets[i]:offsets[i+2]],
			Start: offsets[i],
			End:   offsets[i+2],
		})
	}
	return tokens
}

// Terms returns the token terms with stop words removed.
func Terms(text string, stopWords map[string]struct{}) []string {
	tokens := TokenizeLegal(text)
	terms := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, isStop := stopWords[t.Term]; isStop {
			continue
		}
		terms = append(terms, t.Term)
	}
	return terms
}

// BuildStopWordMap converts a slice of stop words to a map for efficient lookup.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}
