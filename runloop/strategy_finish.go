package runloop

// finishStrategy handles the terminal "finish" tool. The answer is taken
// from the tool's own output when present, else from the original
// invocation arguments; models are inconsistent about which they populate,
// so both are checked.
type finishStrategy struct{}

func (finishStrategy) PrepareArgs(args map[string]any, _ *RunContext) map[string]any {
	return args
}

func (finishStrategy) ProcessResult(raw any, args map[string]any) ToolResult {
	answer := answerField(asMap(raw))
	if answer == "" {
		answer = answerField(args)
	}

	res := ToolResult{
		Success:  true,
		Terminal: true,
		Answer:   answer,
		Data:     asMap(raw),
		Feedback: CapFeedback(answer),
	}
	if failed, msg := executionFailure(raw); failed {
		// Finish stays terminal even when its execution reported a
		// failure; the run is over either way.
		res.Success = false
		if res.Answer == "" {
			res.Answer = msg
		}
		res.Feedback = CapFeedback(msg)
	}
	return res
}

func answerField(m map[string]any) string {
	for _, key := range []string{"answer", "final_answer", "response", "result"} {
		if v, ok := m[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
