package runloop

import "time"

// EventKind identifies the type of progress event.
type EventKind string

const (
	EventIterationStart   EventKind = "iteration_start"
	EventIterationEnd     EventKind = "iteration_end"
	EventToolStart        EventKind = "tool_start"
	EventToolEnd          EventKind = "tool_end"
	EventToken            EventKind = "token"
	EventError            EventKind = "error"
	EventIterationLimit   EventKind = "iteration_limit"
	EventResponseComplete EventKind = "response_complete"
)

// RunStats summarizes a finished run. It rides on the terminating
// response_complete event.
type RunStats struct {
	Iterations int      `json:"iterations"`
	ToolsUsed  []string `json:"tools_used,omitempty"`
	LimitHit   bool     `json:"limit_hit"`
}

// ProgressEvent is one record in the ordered progress side channel the
// coordinator produces during a run. Events are emitted in strict
// chronological order within one run; there is no ordering guarantee across
// concurrent runs. Answer and Stats are populated only on the terminating
// response_complete event.
type ProgressEvent struct {
	Kind        EventKind      `json:"kind"`
	ExecutionID string         `json:"execution_id"`
	NodeID      string         `json:"node_id,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Data        map[string]any `json:"data,omitempty"`
	Answer      string         `json:"answer,omitempty"`
	Stats       *RunStats      `json:"stats,omitempty"`
}

func newEvent(executionID, nodeID string, kind EventKind, data map[string]any) ProgressEvent {
	return ProgressEvent{
		Kind:        kind,
		ExecutionID: executionID,
		NodeID:      nodeID,
		Timestamp:   time.Now(),
		Data:        data,
	}
}
