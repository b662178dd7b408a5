package runloop

import (
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/evanmarch/toolrun/jsonx"
)

// ParseArguments decodes a tool call's raw argument payload into a map.
// Models occasionally emit malformed JSON, so parsing is tolerant: a strict
// decode is tried first, then a repair pass, and if both fail the call
// proceeds with an empty argument map rather than being dropped.
func ParseArguments(raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}
	}

	var args map[string]any
	if err := jsonx.Unmarshal([]byte(raw), &args); err == nil && args != nil {
		return args
	}

	if repaired, err := jsonrepair.JSONRepair(raw); err == nil {
		args = nil
		if err := jsonx.Unmarshal([]byte(repaired), &args); err == nil && args != nil {
			return args
		}
	}

	return map[string]any{}
}

// StringArg returns args[key] as a string, or fallback when absent or not a
// string.
func StringArg(args map[string]any, key, fallback string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return fallback
}

// BoolArg returns args[key] as a bool, or fallback when absent or not a
// bool.
func BoolArg(args map[string]any, key string, fallback bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return fallback
}
