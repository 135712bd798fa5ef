package store

import "fmt"

// Keyword index backends.
const (
	KeywordBackendBleve  = "bleve"
	KeywordBackendSQLite = "sqlite"
)

// NewKeywordIndex creates a KeywordIndex for the backend. basePath has no
// extension; ".bleve" or ".db" is appended. An empty basePath gives an
// in-memory index.
func NewKeywordIndex(basePath, backend string, config KeywordConfig) (KeywordIndex, error) {
	switch backend {
	case KeywordBackendBleve, "":
		return NewBleveKeywordIndex(KeywordIndexPath(basePath, KeywordBackendBleve))
	case KeywordBackendSQLite:
		return NewSQLiteKeywordIndex(KeywordIndexPath(basePath, KeywordBackendSQLite), config)
	default:
		return nil, fmt.Errorf("unknown keyword backend: %s (valid options: bleve, sqlite)", backend)
	}
}

// KeywordIndexPath returns the on-disk location for a backend.
func KeywordIndexPath(basePath, backend string) string {
	if basePath == "" {
		return ""
	}
	if backend == KeywordBackendSQLite {
		return basePath + ".db"
	}
	return basePath + ".bleve"
}
