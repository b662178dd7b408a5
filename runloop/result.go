package runloop

import "fmt"

// FeedbackLimit is the maximum number of characters of tool feedback fed
// back to the model per invocation.
const FeedbackLimit = 16000

// TruncationMarker is appended to feedback that was cut at FeedbackLimit.
const TruncationMarker = "\n[feedback truncated]"

// ToolResult is the contract every tool invocation produces. A Strategy
// creates it once per invocation; the coordinator consumes it to extend the
// conversation and decide termination. It is never mutated after creation.
type ToolResult struct {
	Success  bool            `json:"success"`
	Terminal bool            `json:"terminal"`
	Answer   string          `json:"answer,omitempty"`
	Data     map[string]any  `json:"data,omitempty"`
	Feedback string          `json:"feedback"`
	Events   []ProgressEvent `json:"-"`
}

// CapFeedback enforces the feedback contract: text longer than
// FeedbackLimit is truncated to exactly FeedbackLimit characters with the
// truncation marker appended.
func CapFeedback(s string) string {
	if len(s) <= FeedbackLimit {
		return s
	}
	return s[:FeedbackLimit] + TruncationMarker
}

// SuccessResult builds a non-terminal success result with capped feedback.
func SuccessResult(feedback string, data map[string]any) ToolResult {
	return ToolResult{
		Success:  true,
		Data:     data,
		Feedback: CapFeedback(feedback),
	}
}

// FailureResult builds a non-terminal failure result with capped feedback.
func FailureResult(format string, args ...any) ToolResult {
	msg := fmt.Sprintf(format, args...)
	return ToolResult{
		Success:  false,
		Data:     map[string]any{"error": msg},
		Feedback: CapFeedback(msg),
	}
}
