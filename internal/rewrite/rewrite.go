// Package rewrite expands a user question into a primary retrieval query
// plus ordered alternative phrasings.
package rewrite

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lrerrors "github.com/Aman-CERP/lawrag/internal/errors"
	"github.com/Aman-CERP/lawrag/internal/llm"
	"github.com/Aman-CERP/lawrag/internal/resilience"
)

// DefaultMaxRewrites caps the number of queries returned.
const DefaultMaxRewrites = 3

const systemPrompt = `你是法律检索查询重写专家。把用户的法律问题改写为更利于检索法律条文的查询。

重写策略：
1. 提取核心法律概念和关键词
2. 规范法律术语表述
3. 必要时补充相关法律名称
4. 生成多个查询变体以提高召回率

只输出JSON对象，格式为：{"rewritten_queries": ["主查询", "变体1", "变体2"]}
第一个元素是主查询。`

// Config configures a Rewriter.
type Config struct {
	MaxRewrites int
	Temperature float32
	Timeout     time.Duration
}

// Rewriter asks a chat model for query rewrites.
type Rewriter struct {
	client llm.Client
	guard  *resilience.Guard
	config Config
}

// New creates a rewriter. guard may be nil.
func New(client llm.Client, guard *resilience.Guard, cfg Config) *Rewriter {
	if cfg.MaxRewrites <= 0 {
		cfg.MaxRewrites = DefaultMaxRewrites
	}
	return &Rewriter{client: client, guard: guard, config: cfg}
}

type response struct {
	RewrittenQueries []string `json:"rewritten_queries"`
}

// Rewrite returns the primary query and its alternatives. The error is
// informational: on any failure the returned queries are the original
// query alone, so callers may proceed regardless.
func (r *Rewriter) Rewrite(ctx context.Context, query string) (primary string, alternatives []string, err error) {
	original := strings.TrimSpace(query)

	text, err := resilience.Call(ctx, r.guard, resilience.Rewrite, r.config.Timeout,
		func(ctx context.Context) (string, error) {
			return r.client.Complete(ctx, llm.Request{
				System:      systemPrompt,
				Prompt:      "用户问题：" + original,
				Temperature: r.config.Temperature,
				JSON:        true,
			})
		})
	if err != nil {
		return original, nil, lrerrors.New(lrerrors.ErrCodeRewriteUnavailable, "query rewrite failed", err).
			WithDetail("reason", resilience.Reason(err))
	}

	queries, perr := ParseResponse(text)
	if perr != nil {
		return original, nil, lrerrors.New(lrerrors.ErrCodeRewriteUnavailable, "query rewrite response unusable", perr)
	}

	queries = dedupe(queries, r.config.MaxRewrites)
	if len(queries) == 0 {
		return original, nil, lrerrors.New(lrerrors.ErrCodeRewriteUnavailable, "query rewrite returned no queries", nil)
	}

	slog.Debug("query_rewritten",
		slog.String("primary", queries[0]),
		slog.Int("alternatives", len(queries)-1))

	return queries[0], queries[1:], nil
}

// ParseResponse reads {"rewritten_queries": [...]} from a model reply,
// tolerating a fenced code block or prose around the object.
func ParseResponse(text string) ([]string, error) {
	body := strings.TrimSpace(text)
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var resp response
	if err := json.Unmarshal([]byte(body[start:end+1]), &resp); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return resp.RewrittenQueries, nil
}

// dedupe trims, drops blanks and repeats, and keeps at most limit queries.
func dedupe(queries []string, limit int) []string {
	seen := make(map[string]struct{}, len(queries))
	out := make([]string, 0, len(queries))
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
		if len(out) == limit {
			break
		}
	}
	return out
}

// All joins primary and alternatives.
func All(primary string, alternatives []string) []string {
	return append([]string{primary}, alternatives...)
}
