package runloop

import (
	"fmt"
	"strings"
)

// delegateStrategy hands a subtask to a child agent. The result is terminal
// only when the child produced generated media or an embedded presentation;
// plain text results feed back into the loop so the caller keeps iterating.
type delegateStrategy struct{}

func (delegateStrategy) PrepareArgs(args map[string]any, rc *RunContext) map[string]any {
	out := cloneArgs(args)
	if rc != nil && rc.ExecutionID != "" {
		if _, ok := out["parent_execution_id"]; !ok {
			out["parent_execution_id"] = rc.ExecutionID
		}
	}
	return out
}

func (delegateStrategy) ProcessResult(raw any, _ map[string]any) ToolResult {
	if failed, msg := executionFailure(raw); failed {
		return FailureResult("delegation failed: %s", msg)
	}

	m := asMap(raw)
	res := ToolResult{
		Success:  true,
		Data:     m,
		Feedback: CapFeedback(childSummary(m, raw)),
	}
	if hasMedia(m) {
		res.Terminal = true
		res.Answer = childSummary(m, raw)
	}
	return res
}

// parallelStrategy runs delegate over N children. Each child result is
// structurally identical to a single delegate result; the run terminates if
// any child produced media.
type parallelStrategy struct{}

func (parallelStrategy) PrepareArgs(args map[string]any, rc *RunContext) map[string]any {
	return delegateStrategy{}.PrepareArgs(args, rc)
}

func (parallelStrategy) ProcessResult(raw any, _ map[string]any) ToolResult {
	if failed, msg := executionFailure(raw); failed {
		return FailureResult("parallel delegation failed: %s", msg)
	}

	children := childResults(raw)
	if len(children) == 0 {
		return SuccessResult(renderFeedback(raw), asMap(raw))
	}

	var parts []string
	terminal := false
	for i, child := range children {
		parts = append(parts, fmt.Sprintf("[%d] %s", i+1, childSummary(child, child)))
		if hasMedia(child) {
			terminal = true
		}
	}
	feedback := strings.Join(parts, "\n")

	res := ToolResult{
		Success:  true,
		Terminal: terminal,
		Data:     asMap(raw),
		Feedback: CapFeedback(feedback),
	}
	if terminal {
		res.Answer = feedback
	}
	return res
}

func childResults(raw any) []map[string]any {
	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case map[string]any:
		if rs, ok := v["results"].([]any); ok {
			items = rs
		}
	}
	var out []map[string]any
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func childSummary(m map[string]any, raw any) string {
	for _, key := range []string{"summary", "content", "output", "answer"} {
		if v, ok := m[key].(string); ok && v != "" {
			return v
		}
	}
	return renderFeedback(raw)
}

// hasMedia reports whether a delegate result carries generated media or an
// embedded presentation marker.
func hasMedia(m map[string]any) bool {
	if m == nil {
		return false
	}
	for _, key := range []string{"media", "images", "videos", "files"} {
		switch v := m[key].(type) {
		case []any:
			if len(v) > 0 {
				return true
			}
		case string:
			if v != "" {
				return true
			}
		}
	}
	if v, ok := m["presentation"]; ok && v != nil {
		return true
	}
	if v, ok := m["media_type"].(string); ok && v != "" {
		return true
	}
	return false
}
