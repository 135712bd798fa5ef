package quality

import (
	"context"
	"fmt"
	"strings"

	"github.com/Aman-CERP/lawrag/internal/llm"
)

const judgeSystemPrompt = `你是检索质量评估专家。根据用户问题评估检索结果的质量。

评估维度（每项0-10分）：
1. 相关性：检索结果与用户问题的匹配程度
2. 完整性：是否包含足够信息回答用户问题
3. 准确性：法律条文的准确性和权威性
4. 覆盖面：结果的多样性和全面性

评分标准：9-10分优秀，7-8分良好，5-6分一般，3-4分较差，1-2分很差，0分完全不相关或无结果。

严格按以下格式输出，每项一行：
相关性：[X]/10分 - [理由]
完整性：[X]/10分 - [理由]
准确性：[X]/10分 - [理由]
覆盖面：[X]/10分 - [理由]`

// LLMJudge asks a chat model to grade evidence with a fixed rubric.
type LLMJudge struct {
	client      llm.Client
	temperature float32
}

var _ Judge = (*LLMJudge)(nil)

// NewLLMJudge creates a judge backed by client.
func NewLLMJudge(client llm.Client, temperature float32) *LLMJudge {
	return &LLMJudge{client: client, temperature: temperature}
}

// Judge returns the model's graded response.
func (j *LLMJudge) Judge(ctx context.Context, query string, documents []string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "用户问题：%s\n\n检索结果：\n", query)
	if len(documents) == 0 {
		b.WriteString("（无检索结果）\n")
	}
	for _, d := range documents {
		b.WriteString(d)
		b.WriteString("\n\n")
	}

	return j.client.Complete(ctx, llm.Request{
		System:      judgeSystemPrompt,
		Prompt:      b.String(),
		Temperature: j.temperature,
	})
}
