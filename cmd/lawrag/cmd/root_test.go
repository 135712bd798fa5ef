package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lrerrors "github.com/Aman-CERP/lawrag/internal/errors"
)

func TestRootCmd_HasSubcommands(t *testing.T) {
	// Given: the root command
	cmd := NewRootCmd()

	// Then: every subcommand is registered
	names := make(map[string]bool)
	for _, sc := range cmd.Commands() {
		names[sc.Name()] = true
	}
	for _, want := range []string{"init", "index", "search", "ask", "serve", "stats", "version"} {
		assert.True(t, names[want], "missing %s command", want)
	}
}

func TestRootCmd_ShowsHelp(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	out, err := execute(t, "--help")

	require.NoError(t, err)
	assert.Contains(t, out, "lawrag")
	assert.Contains(t, out, "ask")
}

func TestAsk_NoIndex(t *testing.T) {
	// Given: a project that was never indexed
	dir := setupProject(t)
	stubLLM(t, passingJudgment)

	// When: asking a question
	_, err := execute(t, "--dir", dir, "ask", "离婚条件")

	// Then: the index-missing error carries its code and suggestion
	require.Error(t, err)
	assert.Equal(t, lrerrors.ErrCodeIndexMissing, lrerrors.GetCode(err))
	assert.Contains(t, lrerrors.FormatForCLI(err), "lawrag index")
}

func TestIndex_MissingCorpus(t *testing.T) {
	dir := setupProject(t)

	_, err := execute(t, "--dir", dir, "index", "--corpus", "does-not-exist.txt")

	require.Error(t, err)
	assert.Equal(t, lrerrors.ErrCodeFileNotFound, lrerrors.GetCode(err))
}

func TestInvalidConfig(t *testing.T) {
	// Given: a config with an unknown embeddings provider
	dir := setupProject(t)
	t.Setenv("LAWRAG_EMBEDDINGS_PROVIDER", "word2vec")

	_, err := execute(t, "--dir", dir, "index")

	var rerr *lrerrors.RAGError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, lrerrors.CategoryConfig, rerr.Category)
}
