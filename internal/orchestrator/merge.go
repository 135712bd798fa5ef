package orchestrator

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Merge concatenates local then web evidence and drops passages whose
// normalized text was already seen. Local passages come first, so a local
// passage always wins over an identical web one. Passages that normalize to
// nothing are dropped.
func Merge(local, web []Evidence) []Evidence {
	out := make([]Evidence, 0, len(local)+len(web))
	seen := make(map[string]struct{}, len(local)+len(web))

	for _, group := range [][]Evidence{local, web} {
		for _, e := range group {
			key := normalizeText(e.Text)
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}

// normalizeText folds full-width forms (NFKC), lowercases and removes
// whitespace.
func normalizeText(s string) string {
	s = norm.NFKC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
