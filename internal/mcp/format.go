package mcp

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/lawrag/internal/orchestrator"
	"github.com/Aman-CERP/lawrag/internal/search"
	"github.com/Aman-CERP/lawrag/internal/store"
)

// FormatAnswer renders an answer run as markdown.
func FormatAnswer(r *orchestrator.Result) string {
	var sb strings.Builder
	sb.WriteString(r.FinalAnswer)
	sb.WriteString("\n\n---\n")
	fmt.Fprintf(&sb, "**Path:** %s | **Quality:** %.0f/40 (%s)", r.Path(), r.PrimaryQuality.Total(), r.PrimaryQuality.Kind)
	if len(r.Degradations) > 0 {
		fmt.Fprintf(&sb, " | **Degraded:** %s", strings.Join(r.Degradations, ", "))
	}
	sb.WriteString("\n")

	if len(r.Evidence) > 0 {
		sb.WriteString("\n### Evidence\n\n")
		for i, e := range r.Evidence {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, evidenceLine(e))
		}
	}
	return sb.String()
}

func evidenceLine(e orchestrator.Evidence) string {
	if e.Source == orchestrator.SourceWeb {
		return fmt.Sprintf("[web] %s (%s)", e.Title, e.URL)
	}
	ref := strings.TrimSpace(e.Law + " " + e.Article)
	if ref == "" {
		ref = fmt.Sprintf("#%d", e.DocID)
	}
	return fmt.Sprintf("%s: %s", ref, truncate(e.Text, 120))
}

// FormatSearchResults renders statute hits as markdown.
func FormatSearchResults(query string, r *search.Retrieval, limit int) string {
	hits := validHits(r.Hits, limit)
	if len(hits) == 0 {
		return fmt.Sprintf("No provisions found for: %s", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results for \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Query type: %s | Found %d provisions\n", r.Profile.Type, len(hits))
	if len(r.Degradations) > 0 {
		fmt.Fprintf(&sb, "Degraded: %s\n", strings.Join(r.Degradations, ", "))
	}
	for i, h := range hits {
		md := h.Document.Metadata
		fmt.Fprintf(&sb, "\n### %d. %s %s (score: %.3f)\n\n", i+1, md[store.MetaLaw], md[store.MetaArticle], h.Score)
		sb.WriteString(h.Document.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}

// ToLawResultOutput converts a hit; it must carry its document.
func ToLawResultOutput(h search.Hit) LawResultOutput {
	return LawResultOutput{
		DocID:      h.DocID,
		Law:        h.Document.Metadata[store.MetaLaw],
		Article:    h.Document.Metadata[store.MetaArticle],
		Text:       h.Document.Text,
		Score:      h.Score,
		FusedScore: h.FusedScore,
		Reranked:   h.Reranked,
		InBoth:     h.Ranks.Vector > 0 && h.Ranks.Keyword > 0,
	}
}

// ToAnswerOutput converts a run.
func ToAnswerOutput(r *orchestrator.Result) AnswerOutput {
	out := AnswerOutput{
		RunID:   r.RunID,
		Answer:  r.FinalAnswer,
		Path:    r.Path(),
		Outcome: r.Outcome(),
		Quality: QualityOutput{
			Kind:   string(r.PrimaryQuality.Kind),
			Total:  r.PrimaryQuality.Total(),
			Passed: r.PrimaryQuality.Passed(),
		},
		Evidence:     make([]EvidenceOutput, 0, len(r.Evidence)),
		Degradations: r.Degradations,
	}
	if r.SecondaryQuality != nil {
		total := r.SecondaryQuality.Total()
		out.Quality.SecondaryTotal = &total
	}
	for _, e := range r.Evidence {
		out.Evidence = append(out.Evidence, EvidenceOutput{
			Source:  e.Source,
			Law:     e.Law,
			Article: e.Article,
			Title:   e.Title,
			URL:     e.URL,
			Text:    e.Text,
			Score:   e.Score,
		})
	}
	return out
}

func validHits(hits []search.Hit, limit int) []search.Hit {
	out := make([]search.Hit, 0, len(hits))
	for _, h := range hits {
		if h.Document == nil {
			continue
		}
		out = append(out, h)
		if len(out) == limit {
			break
		}
	}
	return out
}

func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
