package runloop

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/evanmarch/toolrun/llmgateway"
)

// ToolRegistry executes tools by name. Implementations must be safe for
// concurrent use; the coordinator itself dispatches sequentially within a
// run.
type ToolRegistry interface {
	Execute(ctx context.Context, name string, args map[string]any) (any, error)
}

// Coordinator drives the tool-calling loop for one or more runs. A single
// Coordinator may serve concurrent Run calls; all per-run state lives in
// the run itself.
type Coordinator struct {
	gateway  llmgateway.Gateway
	registry ToolRegistry
	cfg      RunConfig
	log      Logger
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithConfig sets the run configuration.
func WithConfig(cfg RunConfig) Option {
	return func(c *Coordinator) { c.cfg = cfg }
}

// WithLogger sets the coordinator's logger.
func WithLogger(log Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// New builds a Coordinator over a gateway and a tool registry.
func New(gateway llmgateway.Gateway, registry ToolRegistry, opts ...Option) *Coordinator {
	c := &Coordinator{
		gateway:  gateway,
		registry: registry,
		cfg:      DefaultRunConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cfg = c.cfg.withDefaults()
	c.log = orNop(c.log)
	return c
}

// RunResult is the synchronous view of a finished run.
type RunResult struct {
	Answer   string
	Complete bool
	Stats    RunStats
}

// runState is the per-run mutable state. It exists only for the duration of
// one Run call.
type runState struct {
	executionID string
	nodeID      string
	messages    []llmgateway.Message
	schemas     []llmgateway.ToolSchema
	offered     map[string]struct{}
	wire        WireAdapter
	detector    LoopDetector
	resultsLog  []ToolResult
	toolsUsed   []string
	seenTools   map[string]struct{}
	iteration   int
	answer      string
	complete    bool
	limitHit    bool
}

// Run starts the loop and returns the progress event channel. The channel
// is closed when the run ends; the final event before close is
// response_complete carrying the answer and stats, unless the context was
// cancelled first. Event delivery is pull-based: the loop blocks until the
// consumer receives each event or the context ends.
func (c *Coordinator) Run(ctx context.Context, messages []llmgateway.Message, schemas []llmgateway.ToolSchema) <-chan ProgressEvent {
	out := make(chan ProgressEvent)
	go func() {
		defer close(out)
		st := c.newRunState(messages, schemas)
		defer func() {
			if r := recover(); r != nil {
				c.log.Error("run %s panicked: %v", st.executionID, r)
				c.emit(ctx, out, newEvent(st.executionID, st.nodeID, EventError, map[string]any{
					"error": fmt.Sprintf("internal error: %v", r),
				}))
			}
		}()
		c.run(ctx, out, st)
	}()
	return out
}

// RunSync runs the loop to completion, discarding intermediate events. It
// returns an error only when the run produced no final answer, which
// happens when the context ends before completion.
func (c *Coordinator) RunSync(ctx context.Context, messages []llmgateway.Message, schemas []llmgateway.ToolSchema) (*RunResult, error) {
	var final *ProgressEvent
	for ev := range c.Run(ctx, messages, schemas) {
		if ev.Kind == EventResponseComplete {
			e := ev
			final = &e
		}
	}
	if final == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("run ended without a final answer")
	}
	res := &RunResult{Answer: final.Answer, Complete: true}
	if final.Stats != nil {
		res.Stats = *final.Stats
	}
	return res, nil
}

func (c *Coordinator) newRunState(messages []llmgateway.Message, schemas []llmgateway.ToolSchema) *runState {
	st := &runState{
		executionID: uuid.NewString(),
		messages:    append([]llmgateway.Message(nil), messages...),
		schemas:     schemas,
		offered:     make(map[string]struct{}, len(schemas)),
		wire:        WireFor(c.cfg.Profile),
		seenTools:   make(map[string]struct{}),
	}
	for _, s := range schemas {
		st.offered[s.Name] = struct{}{}
	}
	return st
}

func (c *Coordinator) run(ctx context.Context, out chan<- ProgressEvent, st *runState) {
	maxIter := c.cfg.MaxIterations

	for st.iteration = 1; st.iteration <= maxIter; st.iteration++ {
		if ctx.Err() != nil {
			return
		}
		if !c.emit(ctx, out, newEvent(st.executionID, st.nodeID, EventIterationStart, map[string]any{
			"iteration": st.iteration,
			"max":       maxIter,
		})) {
			return
		}

		reply, err := c.callGateway(ctx, st, st.schemas)
		if err != nil {
			// Provider failure is not fatal to the run; surface it and
			// retry via the next turn.
			c.log.Warn("run %s iteration %d: gateway call failed: %v", st.executionID, st.iteration, err)
			if !c.emit(ctx, out, newEvent(st.executionID, st.nodeID, EventError, map[string]any{
				"iteration": st.iteration,
				"error":     err.Error(),
			})) {
				return
			}
			continue
		}

		st.messages = append(st.messages, llmgateway.AssistantMessage(reply.Content, reply.ToolCalls...))

		if !reply.HasToolCalls() {
			if answer := TryUnwrapAnswer(reply.Content); answer != "" {
				st.answer = answer
				st.complete = true
				c.finish(ctx, out, st)
				return
			}
			if !c.emit(ctx, out, c.iterationEnd(st)) {
				return
			}
			continue
		}

		warned := false
		for _, inv := range reply.ToolCalls {
			if ctx.Err() != nil {
				return
			}
			done, ok := c.dispatch(ctx, out, st, inv, &warned)
			if !ok {
				return
			}
			if done {
				c.finish(ctx, out, st)
				return
			}
		}

		if !c.emit(ctx, out, c.iterationEnd(st)) {
			return
		}
	}

	st.iteration = maxIter
	st.limitHit = true
	if !c.emit(ctx, out, newEvent(st.executionID, st.nodeID, EventIterationLimit, map[string]any{
		"iterations": maxIter,
	})) {
		return
	}

	if c.cfg.AskBeforeContinue {
		st.answer = c.summarizeResults(st)
		st.answer += "\n\nThe iteration limit was reached before the task completed. Reply to continue."
		c.finish(ctx, out, st)
		return
	}

	st.answer = c.forceFinish(ctx, st)
	st.complete = true
	c.finish(ctx, out, st)
}

// dispatch runs one tool invocation. It returns done=true when the result
// was terminal and ok=false when the context ended mid-emit.
func (c *Coordinator) dispatch(ctx context.Context, out chan<- ProgressEvent, st *runState, inv llmgateway.ToolInvocation, warned *bool) (done, ok bool) {
	if !c.emit(ctx, out, newEvent(st.executionID, st.nodeID, EventToolStart, map[string]any{
		"tool":      inv.Name,
		"iteration": st.iteration,
	})) {
		return false, false
	}

	res := c.invoke(ctx, st, inv, warned)
	st.resultsLog = append(st.resultsLog, res)
	if _, seen := st.seenTools[inv.Name]; !seen {
		st.seenTools[inv.Name] = struct{}{}
		st.toolsUsed = append(st.toolsUsed, inv.Name)
	}

	st.messages = append(st.messages, st.wire.ToolFeedback(inv, res.Feedback))

	for _, ev := range res.Events {
		ev.ExecutionID = st.executionID
		ev.NodeID = st.nodeID
		if ev.Timestamp.IsZero() {
			ev.Timestamp = time.Now()
		}
		if !c.emit(ctx, out, ev) {
			return false, false
		}
	}

	if !c.emit(ctx, out, newEvent(st.executionID, st.nodeID, EventToolEnd, map[string]any{
		"tool":     inv.Name,
		"success":  res.Success,
		"terminal": res.Terminal,
	})) {
		return false, false
	}

	if res.Terminal {
		st.answer = res.Answer
		if st.answer == "" {
			st.answer = res.Feedback
		}
		if st.answer == "" {
			st.answer = "Done."
		}
		st.complete = true
		return true, true
	}
	return false, true
}

// invoke validates, prepares, executes, and post-processes one invocation.
// It never returns an error; every failure mode becomes a ToolResult.
func (c *Coordinator) invoke(ctx context.Context, st *runState, inv llmgateway.ToolInvocation, warned *bool) ToolResult {
	_, offered := st.offered[inv.Name]
	if !offered && !KnownSafeTool(inv.Name) {
		c.log.Warn("run %s: model requested unknown tool %q", st.executionID, inv.Name)
		return FailureResult("tool %q is not available; choose one of the offered tools", inv.Name)
	}

	args := ParseArguments(inv.Arguments)

	st.detector.Track(inv.Name)
	if st.detector.Repeating() && !*warned {
		*warned = true
		c.log.Warn("run %s: tool %q called %d times in a row", st.executionID, inv.Name, st.detector.Count())
		st.messages = append(st.messages, llmgateway.SystemMessage(fmt.Sprintf(
			"You have called %q %d times in a row. If it is not making progress, try a different approach or finish with your best answer.",
			inv.Name, st.detector.Count(),
		)))
	}

	strat := StrategyFor(inv.Name)
	rc := &RunContext{ExecutionID: st.executionID, NodeID: st.nodeID}
	prepared := strat.PrepareArgs(args, rc)

	raw, err := c.registry.Execute(ctx, inv.Name, prepared)
	if err != nil {
		// Normalize so strategies see one failure shape. Finish stays
		// terminal on failure; slides stays non-terminal.
		raw = map[string]any{"success": false, "error": err.Error()}
	}
	return strat.ProcessResult(raw, prepared)
}

func (c *Coordinator) callGateway(ctx context.Context, st *runState, schemas []llmgateway.ToolSchema) (*llmgateway.Reply, error) {
	return c.gateway.Call(ctx, llmgateway.Request{
		Messages:    st.messages,
		Schemas:     schemas,
		Model:       c.cfg.Model,
		Profile:     c.cfg.Profile,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
}

// forceFinish is the guaranteed exit path after the iteration ceiling. It
// always returns a non-empty answer.
func (c *Coordinator) forceFinish(ctx context.Context, st *runState) string {
	st.messages = append(st.messages, llmgateway.SystemMessage(
		"The step limit has been reached. Based on the work so far, produce your best final answer now as plain text. Do not call any tools.",
	))
	reply, err := c.callGateway(ctx, st, nil)
	if err == nil {
		if answer := TryUnwrapAnswer(reply.Content); answer != "" {
			return answer
		}
	} else {
		c.log.Warn("run %s: force-finish call failed: %v", st.executionID, err)
	}
	return c.summarizeResults(st)
}

// summarizeResults builds an answer from the recorded tool results, newest
// first. Always non-empty.
func (c *Coordinator) summarizeResults(st *runState) string {
	var parts []string
	for i := len(st.resultsLog) - 1; i >= 0 && len(parts) < 3; i-- {
		fb := strings.TrimSpace(st.resultsLog[i].Feedback)
		if fb != "" {
			parts = append(parts, fb)
		}
	}
	if len(parts) == 0 {
		return "I could not complete the task within the allowed number of steps."
	}
	return "I ran out of steps before finishing. Here is what I found so far:\n\n" + strings.Join(parts, "\n\n")
}

func (c *Coordinator) iterationEnd(st *runState) ProgressEvent {
	return newEvent(st.executionID, st.nodeID, EventIterationEnd, map[string]any{
		"iteration": st.iteration,
	})
}

func (c *Coordinator) finish(ctx context.Context, out chan<- ProgressEvent, st *runState) {
	ev := newEvent(st.executionID, st.nodeID, EventResponseComplete, nil)
	ev.Answer = st.answer
	ev.Stats = &RunStats{
		Iterations: st.iteration,
		ToolsUsed:  st.toolsUsed,
		LimitHit:   st.limitHit,
	}
	c.emit(ctx, out, ev)
}

// emit delivers one event, blocking until the consumer receives it or the
// context ends. Returns false when the context ended.
func (c *Coordinator) emit(ctx context.Context, out chan<- ProgressEvent, ev ProgressEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
