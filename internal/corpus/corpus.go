// Package corpus loads the line-delimited statute file. Each non-empty line
// is one article and becomes one document whose id is its 1-based line
// number.
package corpus

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	lrerrors "github.com/Aman-CERP/lawrag/internal/errors"
	"github.com/Aman-CERP/lawrag/internal/store"
)

// maxLineBytes bounds a single article line.
const maxLineBytes = 1 << 20

var (
	lawPattern     = regexp.MustCompile(`《[^《》]+》`)
	articlePattern = regexp.MustCompile(`第[一二三四五六七八九十百千万零〇两0-9０-９]+条(?:之[一二三四五六七八九十]+)?`)
)

// Load reads the corpus file at path.
func Load(ctx context.Context, path string) ([]*store.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, lrerrors.New(lrerrors.ErrCodeFileNotFound, "corpus file not found", err).
				WithDetail("path", path).
				WithSuggestion("Set corpus.path in .lawrag.yaml or LAWRAG_CORPUS_PATH")
		}
		return nil, lrerrors.IOError("failed to open corpus", err).WithDetail("path", path)
	}
	defer func() { _ = f.Close() }()

	docs, err := Parse(ctx, f)
	if err != nil {
		var rerr *lrerrors.RAGError
		if errors.As(err, &rerr) {
			return nil, rerr.WithDetail("path", path)
		}
		return nil, err
	}
	return docs, nil
}

// Parse reads documents from r. Blank lines are skipped but still count
// toward line numbering, so ids stay stable for a given file.
func Parse(ctx context.Context, r io.Reader) ([]*store.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var docs []*store.Document
	var lineNum uint64
	for scanner.Scan() {
		lineNum++
		if lineNum%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if line == "" {
			continue
		}
		docs = append(docs, &store.Document{
			ID:       lineNum,
			Text:     line,
			Metadata: ExtractMetadata(line, lineNum),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, lrerrors.IOError(fmt.Sprintf("failed to read corpus at line %d", lineNum+1), err)
	}
	if len(docs) == 0 {
		return nil, lrerrors.New(lrerrors.ErrCodeCorpusEmpty, "corpus contains no articles", nil)
	}
	return docs, nil
}

// ExtractMetadata pulls the statute title and article label out of a line.
// Missing parts are left out of the map.
func ExtractMetadata(line string, lineNum uint64) map[string]string {
	meta := map[string]string{
		store.MetaLine: strconv.FormatUint(lineNum, 10),
	}
	if law := lawPattern.FindString(line); law != "" {
		meta[store.MetaLaw] = law
	}
	if article := articlePattern.FindString(line); article != "" {
		meta[store.MetaArticle] = article
	}
	return meta
}
