package runloop

import (
	"fmt"

	"github.com/evanmarch/toolrun/jsonx"
)

// RunContext carries per-run identity and caller-supplied values into
// strategy argument preparation.
type RunContext struct {
	ExecutionID string
	NodeID      string
	Values      map[string]any
}

// Strategy customizes how one tool's invocation is prepared and how its raw
// execution output becomes a ToolResult. Strategies are stateless; one
// instance serves every invocation of its tool.
type Strategy interface {
	// PrepareArgs may enrich or rewrite the parsed arguments before
	// dispatch. It must not mutate the input map.
	PrepareArgs(args map[string]any, rc *RunContext) map[string]any
	// ProcessResult turns the raw execution output into the ToolResult
	// contract. Execution failures arrive as a map with "success": false
	// and an "error" string.
	ProcessResult(raw any, args map[string]any) ToolResult
}

// Built-in control tools that are always dispatchable regardless of which
// schemas were offered to the model.
var safeTools = map[string]struct{}{
	"finish":            {},
	"think":             {},
	"reflect":           {},
	"plan":              {},
	"delegate":          {},
	"parallel_delegate": {},
	"slides":            {},
}

// KnownSafeTool reports whether name is a built-in control tool.
func KnownSafeTool(name string) bool {
	_, ok := safeTools[name]
	return ok
}

// StrategyFor selects the strategy for a tool name. Selection is by name
// only and is pure; unknown names get the default strategy.
func StrategyFor(name string) Strategy {
	switch name {
	case "finish":
		return finishStrategy{}
	case "think", "reflect", "plan":
		return reasoningStrategy{}
	case "delegate":
		return delegateStrategy{}
	case "parallel_delegate":
		return parallelStrategy{}
	case "slides":
		return artifactStrategy{}
	default:
		return defaultStrategy{}
	}
}

// defaultStrategy passes arguments through untouched and renders the raw
// output as feedback. It never terminates the run.
type defaultStrategy struct{}

func (defaultStrategy) PrepareArgs(args map[string]any, _ *RunContext) map[string]any {
	return args
}

func (defaultStrategy) ProcessResult(raw any, _ map[string]any) ToolResult {
	if failed, msg := executionFailure(raw); failed {
		return FailureResult("%s", msg)
	}
	return SuccessResult(renderFeedback(raw), asMap(raw))
}

// executionFailure reports whether raw is a normalized execution failure
// and returns its error message.
func executionFailure(raw any) (bool, string) {
	m, ok := raw.(map[string]any)
	if !ok {
		return false, ""
	}
	if ok, present := m["success"].(bool); present && !ok {
		msg, _ := m["error"].(string)
		if msg == "" {
			msg = "tool execution failed"
		}
		return true, msg
	}
	return false, ""
}

func asMap(raw any) map[string]any {
	if m, ok := raw.(map[string]any); ok {
		return m
	}
	return nil
}

// renderFeedback produces the model-facing text for a raw tool output.
func renderFeedback(raw any) string {
	switch v := raw.(type) {
	case nil:
		return "OK"
	case string:
		return v
	case map[string]any:
		if out, ok := v["output"].(string); ok && out != "" {
			return out
		}
		b, err := jsonx.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	default:
		b, err := jsonx.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

func cloneArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args)+2)
	for k, v := range args {
		out[k] = v
	}
	return out
}
