package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func legalDocs() []*Document {
	return []*Document{
		{ID: 1, Text: "《民法典》第一千零七十九条 夫妻一方要求离婚的，可以由有关组织进行调解，也可以直接向人民法院提起离婚诉讼。"},
		{ID: 2, Text: "《劳动合同法》第三十九条 劳动者严重违反用人单位的规章制度的，用人单位可以解除劳动合同。"},
		{ID: 3, Text: "《刑法》第二百六十四条 盗窃公私财物，数额较大的，处三年以下有期徒刑。"},
	}
}

// newKeywordIndexes returns one in-memory index per backend.
func newKeywordIndexes(t *testing.T) map[string]KeywordIndex {
	t.Helper()
	out := map[string]KeywordIndex{}
	for _, backend := range []string{KeywordBackendBleve, KeywordBackendSQLite} {
		idx, err := NewKeywordIndex("", backend, DefaultKeywordConfig())
		require.NoError(t, err)
		t.Cleanup(func() { _ = idx.Close() })
		out[backend] = idx
	}
	return out
}

// =============================================================================
// Behaviour shared by both backends
// =============================================================================

func TestKeywordIndex_FindsChineseTerms(t *testing.T) {
	for backend, idx := range newKeywordIndexes(t) {
		t.Run(backend, func(t *testing.T) {
			// Given: an index over three statutes
			require.NoError(t, idx.Index(context.Background(), legalDocs()))
			assert.Equal(t, 3, idx.Count())

			// When: searching for a divorce question
			results, err := idx.Search(context.Background(), "离婚诉讼怎么提起", 10)
			require.NoError(t, err)

			// Then: the marriage article ranks first
			require.NotEmpty(t, results)
			assert.Equal(t, uint64(1), results[0].DocID)
			assert.Greater(t, results[0].Score, 0.0)
		})
	}
}

func TestKeywordIndex_AnyTermMatches(t *testing.T) {
	for backend, idx := range newKeywordIndexes(t) {
		t.Run(backend, func(t *testing.T) {
			require.NoError(t, idx.Index(context.Background(), legalDocs()))

			// When: the query mixes terms from two different documents
			results, err := idx.Search(context.Background(), "盗窃 劳动合同", 10)
			require.NoError(t, err)

			// Then: both documents are returned
			ids := make([]uint64, 0, len(results))
			for _, r := range results {
				ids = append(ids, r.DocID)
			}
			assert.ElementsMatch(t, []uint64{2, 3}, ids)
		})
	}
}

func TestKeywordIndex_EdgeCases(t *testing.T) {
	for backend, idx := range newKeywordIndexes(t) {
		t.Run(backend, func(t *testing.T) {
			require.NoError(t, idx.Index(context.Background(), legalDocs()))

			results, err := idx.Search(context.Background(), "离婚", 0)
			require.NoError(t, err)
			assert.Empty(t, results, "zero limit")

			results, err = idx.Search(context.Background(), "   ", 10)
			require.NoError(t, err)
			assert.Empty(t, results, "blank query")

			results, err = idx.Search(context.Background(), "区块链", 10)
			require.NoError(t, err)
			assert.Empty(t, results, "no match")

			results, err = idx.Search(context.Background(), "的", 10)
			require.NoError(t, err)
			assert.Empty(t, results, "stop word only")
		})
	}
}

func TestKeywordIndex_ReindexReplaces(t *testing.T) {
	for backend, idx := range newKeywordIndexes(t) {
		t.Run(backend, func(t *testing.T) {
			require.NoError(t, idx.Index(context.Background(), legalDocs()))

			// When: document 3 is re-indexed with new text
			require.NoError(t, idx.Index(context.Background(), []*Document{{ID: 3, Text: "诈骗公私财物"}}))

			// Then: the count is unchanged and old text no longer matches
			assert.Equal(t, 3, idx.Count())
			results, err := idx.Search(context.Background(), "有期徒刑", 10)
			require.NoError(t, err)
			assert.Empty(t, results)
		})
	}
}

// =============================================================================
// Persistence
// =============================================================================

func TestKeywordIndex_PersistsAcrossReopen(t *testing.T) {
	for _, backend := range []string{KeywordBackendBleve, KeywordBackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			base := filepath.Join(t.TempDir(), "keyword")

			idx, err := NewKeywordIndex(base, backend, DefaultKeywordConfig())
			require.NoError(t, err)
			require.NoError(t, idx.Index(context.Background(), legalDocs()))
			require.NoError(t, idx.Close())

			reopened, err := NewKeywordIndex(base, backend, DefaultKeywordConfig())
			require.NoError(t, err)
			defer func() { _ = reopened.Close() }()

			assert.Equal(t, 3, reopened.Count())
			results, err := reopened.Search(context.Background(), "盗窃", 5)
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, uint64(3), results[0].DocID)
		})
	}
}

func TestNewKeywordIndex_UnknownBackend(t *testing.T) {
	_, err := NewKeywordIndex("", "lucene", DefaultKeywordConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown keyword backend")
}

func TestKeywordIndexPath(t *testing.T) {
	assert.Equal(t, "/d/keyword.bleve", KeywordIndexPath("/d/keyword", KeywordBackendBleve))
	assert.Equal(t, "/d/keyword.db", KeywordIndexPath("/d/keyword", KeywordBackendSQLite))
	assert.Equal(t, "", KeywordIndexPath("", KeywordBackendSQLite))
}

func TestBleveKeywordIndex_MatchedTerms(t *testing.T) {
	idx, err := NewBleveKeywordIndex("")
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()
	require.NoError(t, idx.Index(context.Background(), legalDocs()))

	results, err := idx.Search(context.Background(), "盗窃", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"盗窃"}, results[0].MatchedTerms)
}

func TestKeywordIndex_ClosedIndexErrors(t *testing.T) {
	for backend, idx := range newKeywordIndexes(t) {
		t.Run(backend, func(t *testing.T) {
			require.NoError(t, idx.Close())
			_, err := idx.Search(context.Background(), "离婚", 5)
			assert.Error(t, err)
			assert.Equal(t, 0, idx.Count())
			assert.NoError(t, idx.Close(), "double close is a no-op")
		})
	}
}
