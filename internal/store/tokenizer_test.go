package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func terms(tokens []Token) []string {
	if len(tokens) == 0 {
		return nil
	}
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Term
	}
	return out
}

func TestTokenizeLegal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"han run becomes bigrams", "离婚诉讼", []string{"离婚", "婚诉", "诉讼"}},
		{"single han char stays unigram", "法", []string{"法"}},
		{"punctuation splits runs", "夫妻，离婚", []string{"夫妻", "离婚"}},
		{"ascii words lowercased", "Article 1079", []string{"article", "1079"}},
		{"full-width digits normalized", "第１０７９条", []string{"第", "1079", "条"}},
		{"mixed han and latin", "民法典GDPR", []string{"民法", "法典", "gdpr"}},
		{"empty", "", nil},
		{"only punctuation", "《》，。", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, terms(TokenizeLegal(tt.input)))
		})
	}
}

func TestTokenizeLegal_OffsetsPointIntoNormalizedText(t *testing.T) {
	// Given: text with multi-byte characters
	text := "婚姻法"

	// When: tokenized
	tokens := TokenizeLegal(text)

	// Then: each token's offsets slice back to its term
	for _, tok := range tokens {
		assert.Equal(t, tok.Term, text[tok.Start:tok.End])
	}
}

func TestTerms_RemovesStopWords(t *testing.T) {
	// Given: a stop word set containing a lone particle
	stop := BuildStopWordMap([]string{"的", "The"})

	// When: extracting terms from text with isolated stop words
	got := Terms("的 the 合同", stop)

	// Then: only content terms remain
	assert.Equal(t, []string{"合同"}, got)
}
