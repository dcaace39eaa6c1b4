package errors

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FormatForUser returns a user-facing message. With debug set the
// underlying cause and details are appended.
func FormatForUser(err error, debug bool) string {
	if err == nil {
		return ""
	}

	qe, ok := As(err)
	if !ok {
		return err.Error()
	}

	var sb strings.Builder
	sb.WriteString("Error: ")
	sb.WriteString(qe.Message)
	sb.WriteString("\n")

	if qe.Suggestion != "" {
		sb.WriteString("\nSuggestion: ")
		sb.WriteString(qe.Suggestion)
		sb.WriteString("\n")
	}

	if debug {
		if qe.Cause != nil {
			fmt.Fprintf(&sb, "\nCause: %v\n", qe.Cause)
		}
		for _, k := range sortedKeys(qe.Details) {
			fmt.Fprintf(&sb, "  %s=%s\n", k, qe.Details[k])
		}
	}

	fmt.Fprintf(&sb, "\n[%s]", qe.Code)
	return sb.String()
}

// FormatForCLI formats an error for terminal output.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	qe, ok := As(err)
	if !ok {
		qe = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", qe.Message)
	if qe.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", qe.Suggestion)
	}
	fmt.Fprintf(&sb, "  Code: %s\n", qe.Code)

	return sb.String()
}

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
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	qe, ok := As(err)
	if !ok {
		qe = Wrap(ErrCodeInternal, err)
	}

	je := jsonError{
		Code:       qe.Code,
		Message:    qe.Message,
		Category:   string(qe.Category),
		Severity:   string(qe.Severity),
		Details:    qe.Details,
		Suggestion: qe.Suggestion,
		Retryable:  qe.Retryable,
	}
	if qe.Cause != nil {
		je.Cause = qe.Cause.Error()
	}

	return json.Marshal(je)
}

// FormatForLog flattens an error into slog-friendly attributes.
func FormatForLog(err error) []any {
	if err == nil {
		return nil
	}

	qe, ok := As(err)
	if !ok {
		return []any{"error", err.Error()}
	}

	attrs := []any{
		"error_code", qe.Code,
		"error", qe.Message,
		"category", string(qe.Category),
		"retryable", qe.Retryable,
	}
	if qe.Cause != nil {
		attrs = append(attrs, "cause", qe.Cause.Error())
	}
	for _, k := range sortedKeys(qe.Details) {
		attrs = append(attrs, "detail_"+k, qe.Details[k])
	}

	return attrs
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
