package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteDocumentStore_PutGet(t *testing.T) {
	s, err := NewSQLiteDocumentStore("")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	ctx := context.Background()
	docs := []*Document{
		{ID: 1, Text: "第一条 文本", Metadata: map[string]string{MetaLaw: "民法典", MetaArticle: "第一条"}},
		{ID: 2, Text: "第二条 文本", Metadata: map[string]string{}},
	}
	require.NoError(t, s.Put(ctx, docs))

	// When: fetching a known and an unknown id
	got, err := s.Get(ctx, []uint64{1, 99})
	require.NoError(t, err)

	// Then: only the known id resolves, with metadata intact
	require.Len(t, got, 1)
	assert.Equal(t, "第一条 文本", got[1].Text)
	assert.Equal(t, "民法典", got[1].Law())
	assert.Equal(t, "第一条", got[1].Article())

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLiteDocumentStore_GetEmpty(t *testing.T) {
	s, err := NewSQLiteDocumentStore("")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	got, err := s.Get(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteDocumentStore_State(t *testing.T) {
	path := filepath.Join(t.TempDir(), "documents.db")
	ctx := context.Background()

	s, err := NewSQLiteDocumentStore(path)
	require.NoError(t, err)

	v, err := s.GetState(ctx, StateKeyEmbeddingModel)
	require.NoError(t, err)
	assert.Empty(t, v, "unset key")

	require.NoError(t, s.SetState(ctx, StateKeyEmbeddingModel, "bge-m3"))
	require.NoError(t, s.SetState(ctx, StateKeyEmbeddingModel, "bge-m3-v2"))
	require.NoError(t, s.Close())

	// Then: state survives reopen and the latest write wins
	reopened, err := NewSQLiteDocumentStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	v, err = reopened.GetState(ctx, StateKeyEmbeddingModel)
	require.NoError(t, err)
	assert.Equal(t, "bge-m3-v2", v)
}
