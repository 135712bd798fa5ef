package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/lawrag/internal/search"
	"github.com/Aman-CERP/lawrag/internal/store"
	"github.com/Aman-CERP/lawrag/internal/websearch"
)

func TestMerge(t *testing.T) {
	local := []Evidence{
		{Source: SourceLocal, Text: "第一千零七十九条 夫妻一方要求离婚的，可以由有关组织进行调解。", DocID: 1},
		{Source: SourceLocal, Text: "盗窃公私财物，数额较大的，处三年以下有期徒刑。", DocID: 2},
	}
	web := []Evidence{
		// Same as local 2 with full-width punctuation and extra spaces
		{Source: SourceWeb, Text: " 盗窃公私财物， 数额较大的，处三年以下有期徒刑。 ", URL: "https://w/1"},
		{Source: SourceWeb, Text: "感情确已破裂，调解无效的，应当准予离婚。", URL: "https://w/2"},
		{Source: SourceWeb, Text: "感情确已破裂，调解无效的，应当准予离婚。", URL: "https://w/3"},
		{Source: SourceWeb, Text: "   ", URL: "https://w/4"},
	}

	merged := Merge(local, web)

	require.Len(t, merged, 3)
	assert.Equal(t, uint64(1), merged[0].DocID)
	assert.Equal(t, uint64(2), merged[1].DocID, "local wins on collision")
	assert.Equal(t, "https://w/2", merged[2].URL)
}

func TestMerge_FullWidthFolding(t *testing.T) {
	local := []Evidence{{Source: SourceLocal, Text: "ABC 123"}}
	web := []Evidence{{Source: SourceWeb, Text: "ａｂｃ１２３"}}

	assert.Len(t, Merge(local, web), 1)
}

func TestMerge_Empty(t *testing.T) {
	assert.Empty(t, Merge(nil, nil))
	assert.Len(t, Merge(nil, []Evidence{{Source: SourceWeb, Text: "x"}}), 1)
}

func TestFormatEvidence(t *testing.T) {
	evidence := []Evidence{
		{Source: SourceLocal, Text: "夫妻一方要求离婚的……", Law: "《民法典》", Article: "第一千零七十九条", Score: 0.91234},
		{Source: SourceLocal, Text: "无元数据的条文", Score: 0.5},
		{Source: SourceWeb, Title: "离婚诉讼指南", Text: "感情确已破裂的应准予离婚", URL: "https://a.example/1"},
	}

	got := FormatEvidence(evidence)

	require.Len(t, got, 3)
	assert.Equal(t, "【检索结果 1】(相关性: 0.912)\n《民法典》 第一千零七十九条\n夫妻一方要求离婚的……", got[0])
	assert.Equal(t, "【检索结果 2】(相关性: 0.500)\n无元数据的条文", got[1])
	assert.Equal(t, "【网络结果 1】离婚诉讼指南\n感情确已破裂的应准予离婚\n来源: https://a.example/1", got[2])
}

func TestLocalAndWebEvidence(t *testing.T) {
	hits := []search.Hit{
		{
			FusedHit: search.FusedHit{DocID: 7, Score: 0.8},
			Document: &store.Document{ID: 7, Text: "条文", Metadata: map[string]string{store.MetaLaw: "《刑法》", store.MetaArticle: "第二百六十四条"}},
		},
		{FusedHit: search.FusedHit{DocID: 8}},
	}
	local := LocalEvidence(hits)
	require.Len(t, local, 1)
	assert.Equal(t, Evidence{Source: SourceLocal, Text: "条文", DocID: 7, Law: "《刑法》", Article: "第二百六十四条", Score: 0.8}, local[0])

	web := WebEvidence([]websearch.Result{{Title: "标题", URL: "u"}})
	require.Len(t, web, 1)
	assert.Equal(t, "标题", web[0].Text, "title stands in for an empty snippet")
}
