// Package errors provides structured error handling for lawrag.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (corpus, index files)
//   - 3XX: Collaborator errors (embedding, rerank, judge, rewrite, generation, web search)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	CategoryConfig       Category = "CONFIG"
	CategoryIO           Category = "IO"
	CategoryCollaborator Category = "COLLABORATOR"
	CategoryValidation   Category = "VALIDATION"
	CategoryInternal     Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeFileNotFound  = "ERR_201_FILE_NOT_FOUND"
	ErrCodeCorpusEmpty   = "ERR_202_CORPUS_EMPTY"
	ErrCodeIndexLocked   = "ERR_203_INDEX_LOCKED"
	ErrCodeIndexMissing  = "ERR_204_INDEX_MISSING"
	ErrCodeCorruptIndex  = "ERR_205_CORRUPT_INDEX"

	// Collaborator errors (300-399)
	ErrCodeCollaboratorTimeout  = "ERR_301_COLLABORATOR_TIMEOUT"
	ErrCodeEmbeddingUnavailable = "ERR_302_EMBEDDING_UNAVAILABLE"
	ErrCodeRerankUnavailable    = "ERR_303_RERANK_UNAVAILABLE"
	ErrCodeJudgeUnavailable     = "ERR_304_JUDGE_UNAVAILABLE"
	ErrCodeRewriteUnavailable   = "ERR_305_REWRITE_UNAVAILABLE"
	ErrCodeGenerationFailed     = "ERR_306_GENERATION_FAILED"
	ErrCodeWebSearchUnavailable = "ERR_307_WEB_SEARCH_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodeInvalidInput        = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch   = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeInvalidQuery        = "ERR_403_INVALID_QUERY"
	ErrCodeMalformedEvaluation = "ERR_408_MALFORMED_EVALUATION"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_503_SEARCH_FAILED"
	ErrCodeIndexFailed  = "ERR_505_INDEX_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryCollaborator
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex:
		return SeverityFatal
	}

	// Collaborator failures degrade the pipeline, they never abort it.
	if categoryFromCode(code) == CategoryCollaborator || code == ErrCodeMalformedEvaluation {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeCollaboratorTimeout, ErrCodeEmbeddingUnavailable, ErrCodeIndexLocked:
		return true
	default:
		return false
	}
}
