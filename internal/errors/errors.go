package errors

import (
	stderrors "errors"
	"fmt"
)

// RAGError is the structured error type for lawrag.
// Pipeline stages inspect the code to pick their degraded behavior.
type RAGError struct {
	// Code is the unique error code (e.g., "ERR_403_INVALID_QUERY").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *RAGError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *RAGError) Unwrap() error {
	return e.Cause
}

// Is matches by code so that errors.Is(err, ErrRerankUnavailable) works
// regardless of message or cause.
func (e *RAGError) Is(target error) bool {
	if t, ok := target.(*RAGError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *RAGError) WithDetail(key, value string) *RAGError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *RAGError) WithSuggestion(suggestion string) *RAGError {
	e.Suggestion = suggestion
	return e
}

// Sentinels for errors.Is checks. Only the code is compared.
var (
	ErrInvalidQuery         = &RAGError{Code: ErrCodeInvalidQuery}
	ErrEmbeddingUnavailable = &RAGError{Code: ErrCodeEmbeddingUnavailable}
	ErrRerankUnavailable    = &RAGError{Code: ErrCodeRerankUnavailable}
	ErrJudgeUnavailable     = &RAGError{Code: ErrCodeJudgeUnavailable}
	ErrRewriteUnavailable   = &RAGError{Code: ErrCodeRewriteUnavailable}
	ErrGenerationFailure    = &RAGError{Code: ErrCodeGenerationFailed}
	ErrWebSearchUnavailable = &RAGError{Code: ErrCodeWebSearchUnavailable}
	ErrMalformedEvaluation  = &RAGError{Code: ErrCodeMalformedEvaluation}
	ErrCollaboratorTimeout  = &RAGError{Code: ErrCodeCollaboratorTimeout}
)

// New creates a new RAGError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *RAGError {
	return &RAGError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a RAGError from an existing error.
// The error's message becomes the RAGError message.
func Wrap(code string, err error) *RAGError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *RAGError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *RAGError {
	return New(ErrCodeFileNotFound, message, cause)
}

// InvalidQuery creates a caller error for a query that cannot enter the pipeline.
func InvalidQuery(message string) *RAGError {
	return New(ErrCodeInvalidQuery, message, nil).
		WithSuggestion("Provide a non-empty question about the statutes")
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *RAGError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var re *RAGError
	if stderrors.As(err, &re) {
		return re.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	var re *RAGError
	if stderrors.As(err, &re) {
		return re.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from the first RAGError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var re *RAGError
	if stderrors.As(err, &re) {
		return re.Code
	}
	return ""
}
