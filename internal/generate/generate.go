// Package generate drafts the final legal answer from supporting evidence.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lrerrors "github.com/Aman-CERP/lawrag/internal/errors"
	"github.com/Aman-CERP/lawrag/internal/llm"
	"github.com/Aman-CERP/lawrag/internal/resilience"
)

// Fixed user-facing messages.
const (
	// InsufficientMessage is returned when there is no usable evidence.
	InsufficientMessage = "很抱歉，未能在法律条文库中找到与您问题相关的内容。建议您咨询专业律师获得准确的法律建议。"
	// ApologyMessage replaces the answer when generation fails.
	ApologyMessage = "抱歉，系统暂时无法生成回答，请稍后重试。如需准确的法律意见，请咨询专业律师。"
)

// InsufficientSentinel is what the model is told to reply when the evidence
// does not support an answer.
const InsufficientSentinel = "INSUFFICIENT_INFORMATION"

const systemPrompt = `你是专业法律咨询顾问。只依据给出的参考资料回答用户问题，不得编造法条或事实。
如果参考资料不足以回答问题，只输出 ` + InsufficientSentinel + `，不要输出其他内容。

回答格式：
## 问题分析
## 相关法条
## 法律解释
## 建议措施

最后附上免责声明：本咨询基于现有法律条文，具体适用需结合实际情况，建议咨询专业律师。`

// Answer is a generated answer. Insufficient answers carry
// InsufficientMessage and no model text.
type Answer struct {
	Text         string `json:"text"`
	Insufficient bool   `json:"insufficient"`
}

// Config configures a Generator.
type Config struct {
	Temperature float32
	Timeout     time.Duration
}

// Generator drafts answers with a chat model.
type Generator struct {
	client llm.Client
	guard  *resilience.Guard
	config Config
}

// New creates a generator. guard may be nil.
func New(client llm.Client, guard *resilience.Guard, cfg Config) *Generator {
	return &Generator{client: client, guard: guard, config: cfg}
}

// Insufficient returns the explicit insufficient-information answer.
func Insufficient() Answer {
	return Answer{Text: InsufficientMessage, Insufficient: true}
}

// Generate answers query from documents. With no documents it returns the
// insufficient-information answer without calling the model. Model failures
// and timeouts return ERR_306_GENERATION_FAILED.
func (g *Generator) Generate(ctx context.Context, query string, documents []string) (Answer, error) {
	if len(documents) == 0 {
		return Insufficient(), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "用户问题：%s\n\n参考资料：\n", query)
	for _, d := range documents {
		b.WriteString(d)
		b.WriteString("\n\n")
	}

	start := time.Now()
	text, err := resilience.Call(ctx, g.guard, resilience.Generation, g.config.Timeout,
		func(ctx context.Context) (string, error) {
			return g.client.Complete(ctx, llm.Request{
				System:      systemPrompt,
				Prompt:      b.String(),
				Temperature: g.config.Temperature,
			})
		})
	if err != nil {
		return Answer{}, lrerrors.New(lrerrors.ErrCodeGenerationFailed, "answer generation failed", err).
			WithDetail("reason", resilience.Reason(err))
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Answer{}, lrerrors.New(lrerrors.ErrCodeGenerationFailed, "answer generation returned empty text", nil)
	}
	if strings.Contains(text, InsufficientSentinel) {
		slog.Info("generation_insufficient", slog.Int("documents", len(documents)))
		return Insufficient(), nil
	}

	slog.Debug("answer_generated",
		slog.Int("documents", len(documents)),
		slog.Int("answer_runes", len([]rune(text))),
		slog.Duration("duration", time.Since(start)))

	return Answer{Text: text}, nil
}
