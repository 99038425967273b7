package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// replyFields are checked in order for the assistant's text.
var replyFields = []string{"response", "answer", "message"}

// ExtractReply turns a process payload into the assistant's text.
//
// For an object, the first candidate field holding a non-empty value wins;
// otherwise the whole object is rendered as canonical JSON. Any other value
// is rendered as text directly.
func ExtractReply(payload any) string {
	obj, ok := payload.(map[string]any)
	if !ok {
		return renderValue(payload)
	}

	for _, field := range replyFields {
		if value, ok := obj[field]; ok && !isEmptyPayload(value) {
			return renderValue(value)
		}
	}
	return renderValue(obj)
}

// renderValue renders strings verbatim and everything else as JSON.
func renderValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return fmt.Sprint(v)
		}
		return strings.TrimSuffix(buf.String(), "\n")
	}
}

// isEmptyPayload reports whether value carries nothing to show: null,
// false, zero, the empty string or an empty container.
func isEmptyPayload(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case bool:
		return !v
	case json.Number:
		f, err := v.Float64()
		return err == nil && f == 0
	case float64:
		return v == 0
	case map[string]any:
		return len(v) == 0
	case []any:
		return len(v) == 0
	default:
		return false
	}
}
