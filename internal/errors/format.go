package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
)

// asRAGError returns the first RAGError in the chain, wrapping plain errors
// as internal errors.
func asRAGError(err error) *RAGError {
	var re *RAGError
	if stderrors.As(err, &re) {
		return re
	}
	return Wrap(ErrCodeInternal, err)
}

// FormatForCLI formats an error for CLI output.
// Uses a concise format suitable for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	re := asRAGError(err)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", re.Message))
	if re.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", re.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", re.Code))

	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON returns a JSON representation of the error.
// The MCP server returns this to tool callers.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	re := asRAGError(err)
	je := jsonError{
		Code:       re.Code,
		Message:    re.Message,
		Category:   string(re.Category),
		Severity:   string(re.Severity),
		Details:    re.Details,
		Suggestion: re.Suggestion,
		Retryable:  re.Retryable,
	}
	if re.Cause != nil {
		je.Cause = re.Cause.Error()
	}

	return json.Marshal(je)
}

// LogAttrs flattens an error into key-value pairs for slog.
func LogAttrs(err error) []any {
	if err == nil {
		return nil
	}

	var re *RAGError
	if !stderrors.As(err, &re) {
		return []any{"error", err.Error()}
	}

	attrs := []any{
		"error_code", re.Code,
		"error", re.Message,
		"severity", string(re.Severity),
	}
	for k, v := range re.Details {
		attrs = append(attrs, "detail_"+k, v)
	}
	return attrs
}
