package jsonutil

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FlexibleString converts a decoded JSON value to a string, handling cases
// where LLMs return numbers or booleans for string fields. Returns empty
// string for nil.
func FlexibleString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case bool:
		return fmt.Sprintf("%t", val)
	case json.Number:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}

// FlexibleKey normalizes a record field value for use as a uniqueness or
// foreign-key lookup key: flexible string conversion plus trimming.
func FlexibleKey(v any) string {
	return strings.TrimSpace(FlexibleString(v))
}
