package runloop

// artifactStrategy handles generative-artifact tools such as slides. A
// successful artifact ends the run; a failure stays non-terminal so the
// model can retry or finish on its own terms.
type artifactStrategy struct{}

func (artifactStrategy) PrepareArgs(args map[string]any, _ *RunContext) map[string]any {
	return args
}

func (artifactStrategy) ProcessResult(raw any, _ map[string]any) ToolResult {
	if failed, msg := executionFailure(raw); failed {
		return FailureResult("artifact generation failed: %s", msg)
	}

	m := asMap(raw)
	summary := childSummary(m, raw)
	return ToolResult{
		Success:  true,
		Terminal: true,
		Answer:   summary,
		Data:     m,
		Feedback: CapFeedback(summary),
	}
}
