package runloop

import (
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/evanmarch/toolrun/jsonx"
)

// TryUnwrapAnswer extracts a final answer from raw assistant text. Models
// sometimes wrap the answer in a JSON object instead of replying in plain
// prose; when the text is a JSON object carrying one of the known answer
// keys, the unwrapped value is returned. Otherwise the trimmed text is
// returned as is.
func TryUnwrapAnswer(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	if !strings.HasPrefix(trimmed, "{") {
		return trimmed
	}

	obj := decodeObject(trimmed)
	if obj == nil {
		return trimmed
	}
	for _, key := range []string{"answer", "final_answer", "response", "content", "message"} {
		if v, ok := obj[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return trimmed
}

func decodeObject(s string) map[string]any {
	var obj map[string]any
	if err := jsonx.Unmarshal([]byte(s), &obj); err == nil {
		return obj
	}
	repaired, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return nil
	}
	obj = nil
	if err := jsonx.Unmarshal([]byte(repaired), &obj); err != nil {
		return nil
	}
	return obj
}
