package runloop

// thinkingLimit caps the surfaced thinking text.
const thinkingLimit = 4000

// reasoningStrategy handles think, reflect, and plan. It never terminates
// the run; the thinking text is surfaced back to the model as feedback and
// to observers as a token event.
type reasoningStrategy struct{}

func (reasoningStrategy) PrepareArgs(args map[string]any, _ *RunContext) map[string]any {
	return args
}

func (reasoningStrategy) ProcessResult(raw any, args map[string]any) ToolResult {
	thought := thinkingField(args)
	if thought == "" {
		thought = thinkingField(asMap(raw))
	}
	if len(thought) > thinkingLimit {
		thought = thought[:thinkingLimit]
	}

	res := ToolResult{
		Success:  true,
		Feedback: CapFeedback(thought),
	}
	if thought == "" {
		res.Feedback = "Noted."
	} else {
		res.Events = []ProgressEvent{{
			Kind: EventToken,
			Data: map[string]any{"text": thought},
		}}
	}
	return res
}

func thinkingField(m map[string]any) string {
	for _, key := range []string{"thought", "thinking", "reflection", "plan"} {
		if v, ok := m[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
