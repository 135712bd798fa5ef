package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/lawrag/internal/config"
	"github.com/Aman-CERP/lawrag/internal/llm"
)

const testCorpus = `《中华人民共和国民法典》第一千零七十九条 夫妻一方要求离婚的，可以由有关组织进行调解或者直接向人民法院提起离婚诉讼。
《中华人民共和国民法典》第一千零七十六条 夫妻双方自愿离婚的，应当签订书面离婚协议，并亲自到婚姻登记机关申请离婚登记。
《中华人民共和国劳动合同法》第三十九条 劳动者严重违反用人单位的规章制度的，用人单位可以解除劳动合同。
《中华人民共和国刑法》第二百六十四条 盗窃公私财物，数额较大的，处三年以下有期徒刑、拘役或者管制，并处或者单处罚金。
`

const testConfig = `corpus:
  path: law.txt
  data_dir: .lawrag
embeddings:
  provider: static
  dimensions: 64
reranker:
  provider: none
websearch:
  provider: static
  static:
    - title: 离婚登记指南
      snippet: 协议离婚需要双方到婚姻登记机关办理离婚登记。
      url: https://example.com/divorce
telemetry:
  enabled: true
`

const (
	passingJudgment = "相关性：9/10分 - 直接相关\n完整性：9/10分\n准确性：10/10分\n覆盖面：8/10分"
	failingJudgment = "相关性：5/10分\n完整性：4/10分\n准确性：6/10分\n覆盖面：3/10分"
	testAnswer      = "## 问题分析\n离婚可以协议或诉讼。"
)

// setupProject writes a corpus and config into a temp dir, isolates HOME
// and returns the directory.
func setupProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("LAWRAG_LOG_LEVEL", "")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "law.txt"), []byte(testCorpus), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ProjectFileName), []byte(testConfig), 0o644))
	return dir
}

// stubLLM answers rewrite, judge and generation requests without a network.
func stubLLM(t *testing.T, judgment string) {
	t.Helper()
	orig := newLLMClient
	t.Cleanup(func() { newLLMClient = orig })

	newLLMClient = func(config.LLMConfig) (llm.Client, error) {
		return llm.ClientFunc(func(_ context.Context, req llm.Request) (string, error) {
			switch {
			case req.JSON:
				return `{"rewritten_queries": ["离婚的条件", "如何办理离婚"]}`, nil
			case strings.Contains(req.System, "评估"):
				return judgment, nil
			default:
				return testAnswer, nil
			}
		}), nil
	}
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	stdout := new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

// buildIndex indexes the project in dir.
func buildIndex(t *testing.T, dir string) {
	t.Helper()
	out, err := execute(t, "--dir", dir, "index")
	require.NoError(t, err, out)
}
