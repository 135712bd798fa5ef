package orchestrator

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/lawrag/internal/search"
	"github.com/Aman-CERP/lawrag/internal/websearch"
)

// Evidence sources.
const (
	SourceLocal = "local"
	SourceWeb   = "web"
)

// Evidence is one supporting passage handed to the judge and the generator.
type Evidence struct {
	Source string `json:"source"`
	// Text is the passage used for deduplication: the statute text for
	// local hits, the snippet for web results.
	Text string `json:"text"`

	DocID   uint64  `json:"doc_id,omitempty"`
	Law     string  `json:"law,omitempty"`
	Article string  `json:"article,omitempty"`
	Score   float64 `json:"score,omitempty"`

	Title string `json:"title,omitempty"`
	URL   string `json:"url,omitempty"`
}

// LocalEvidence converts retrieved hits.
func LocalEvidence(hits []search.Hit) []Evidence {
	out := make([]Evidence, 0, len(hits))
	for _, h := range hits {
		if h.Document == nil {
			continue
		}
		out = append(out, Evidence{
			Source:  SourceLocal,
			Text:    h.Document.Text,
			DocID:   h.DocID,
			Law:     h.Document.Law(),
			Article: h.Document.Article(),
			Score:   h.Score,
		})
	}
	return out
}

// WebEvidence converts web results.
func WebEvidence(results []websearch.Result) []Evidence {
	out := make([]Evidence, 0, len(results))
	for _, r := range results {
		text := r.Snippet
		if strings.TrimSpace(text) == "" {
			text = r.Title
		}
		out = append(out, Evidence{
			Source: SourceWeb,
			Text:   text,
			Title:  r.Title,
			URL:    r.URL,
		})
	}
	return out
}

// FormatEvidence renders evidence for prompts. Local and web passages are
// numbered separately.
func FormatEvidence(evidence []Evidence) []string {
	out := make([]string, 0, len(evidence))
	local, web := 0, 0
	for _, e := range evidence {
		var b strings.Builder
		switch e.Source {
		case SourceWeb:
			web++
			fmt.Fprintf(&b, "【网络结果 %d】%s\n%s", web, e.Title, e.Text)
			if e.URL != "" {
				fmt.Fprintf(&b, "\n来源: %s", e.URL)
			}
		default:
			local++
			fmt.Fprintf(&b, "【检索结果 %d】(相关性: %.3f)\n", local, e.Score)
			if ref := strings.TrimSpace(e.Law + " " + e.Article); ref != "" {
				b.WriteString(ref)
				b.WriteString("\n")
			}
			b.WriteString(e.Text)
		}
		out = append(out, b.String())
	}
	return out
}
