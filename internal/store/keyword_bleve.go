package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search"
)

const (
	// LegalTokenizerName is the registered Bleve tokenizer for statute text.
	LegalTokenizerName = "legal_tokenizer"

	// LegalStopFilterName is the registered stop word filter.
	LegalStopFilterName = "legal_stop"

	// LegalAnalyzerName is the analyzer applied to the content field.
	LegalAnalyzerName = "legal_analyzer"

	contentField = "content"
)

func init() {
	_ = registry.RegisterTokenizer(LegalTokenizerName, legalTokenizerConstructor)
	_ = registry.RegisterTokenFilter(LegalStopFilterName, legalStopFilterConstructor)
}

// BleveKeywordIndex wraps Bleve v2 for BM25 keyword search.
type BleveKeywordIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

var _ KeywordIndex = (*BleveKeywordIndex)(nil)

// bleveDocument is the document structure for Bleve indexing.
type bleveDocument struct {
	Content string `json:"content"`
}

// validateIndexIntegrity checks that index_meta.json exists and parses.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(filepath.Join(path, "index_meta.json"))
	if err != nil {
		return fmt.Errorf("index_meta.json unreadable: %w", err)
	}
	if len(data) == 0 {
		return fmt.Errorf("index_meta.json is empty")
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

// NewBleveKeywordIndex opens or creates a keyword index.
// If path is empty, creates an in-memory index. A corrupt on-disk index is
// removed and recreated empty; the caller must rebuild it.
func NewBleveKeywordIndex(path string) (*BleveKeywordIndex, error) {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}

		if validErr := validateIndexIntegrity(path); validErr != nil {
			slog.Warn("keyword_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, fmt.Errorf("keyword index corrupted at %s and cannot remove: %w", path, removeErr)
			}
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &BleveKeywordIndex{index: idx, path: path}, nil
}

// createIndexMapping maps the content field through the legal analyzer.
func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(LegalAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": LegalTokenizerName,
		"token_filters": []string{
			lowercase.Name,
			LegalStopFilterName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	indexMapping.DefaultAnalyzer = LegalAnalyzerName
	return indexMapping, nil
}

// Index adds documents to the index in one batch.
func (b *BleveKeywordIndex) Index(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("index is closed")
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		id := strconv.FormatUint(doc.ID, 10)
		if err := batch.Index(id, bleveDocument{Content: doc.Text}); err != nil {
			return fmt.Errorf("failed to index document %s: %w", id, err)
		}
	}

	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch: %w", err)
	}
	return nil
}

// Search returns documents matching any query term, scored by BM25.
func (b *BleveKeywordIndex) Search(ctx context.Context, queryStr string, limit int) ([]*KeywordResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if limit <= 0 || strings.TrimSpace(queryStr) == "" {
		return []*KeywordResult{}, nil
	}

	matchQuery := bleve.NewMatchQuery(queryStr)
	matchQuery.SetField(contentField)

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = limit
	req.IncludeLocations = true
	// Equal scores fall back to id order so results are reproducible.
	req.SortBy([]string{"-_score", "_id"})

	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]*KeywordResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		id, err := strconv.ParseUint(hit.ID, 10, 64)
		if err != nil {
			slog.Warn("keyword_index_bad_id", slog.String("id", hit.ID))
			continue
		}
		results = append(results, &KeywordResult{
			DocID:        id,
			Score:        hit.Score,
			MatchedTerms: extractMatchedTerms(hit),
		})
	}
	return results, nil
}

// Count returns the number of indexed documents.
func (b *BleveKeywordIndex) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0
	}
	n, _ := b.index.DocCount()
	return int(n)
}

// Close closes the index.
func (b *BleveKeywordIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

func extractMatchedTerms(hit *search.DocumentMatch) []string {
	locations := hit.Locations[contentField]
	terms := make([]string, 0, len(locations))
	for term := range locations {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

func legalTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &bleveLegalTokenizer{}, nil
}

// bleveLegalTokenizer adapts TokenizeLegal to analysis.Tokenizer.
type bleveLegalTokenizer struct{}

// Tokenize implements analysis.Tokenizer.
func (t *bleveLegalTokenizer) Tokenize(input []byte) analysis.TokenStream {
	tokens := TokenizeLegal(string(input))

	stream := make(analysis.TokenStream, 0, len(tokens))
	for i, tok := range tokens {
		typ := analysis.AlphaNumeric
		if tok.End-tok.Start > 1 && !isASCII(tok.Term) {
			typ = analysis.Ideographic
		}
		stream = append(stream, &analysis.Token{
			Term:     []byte(tok.Term),
			Start:    tok.Start,
			End:      tok.End,
			Position: i + 1,
			Type:     typ,
		})
	}
	return stream
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func legalStopFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return &bleveLegalStopFilter{stopWords: BuildStopWordMap(DefaultLegalStopWords)}, nil
}

type bleveLegalStopFilter struct {
	stopWords map[string]struct{}
}

// Filter implements analysis.TokenFilter.
func (f *bleveLegalStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		if _, isStop := f.stopWords[string(token.Term)]; !isStop {
			result = append(result, token)
		}
	}
	return result
}
